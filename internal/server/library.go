package server

import (
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunebox/internal/formatter"
	"github.com/desertthunder/tunebox/internal/library"
	"github.com/desertthunder/tunebox/internal/models"
)

// LibraryHandler serves songs, albums, artists and playlists as JSON.
type LibraryHandler struct {
	lib    *library.Service
	logger *log.Logger
	mux    *http.ServeMux
}

// NewLibraryHandler creates the library API handler.
func NewLibraryHandler(lib *library.Service, logger *log.Logger) *LibraryHandler {
	h := &LibraryHandler{lib: lib, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /api/songs", h.listSongs)
	h.mux.HandleFunc("GET /api/songs/{id}", h.getSong)
	h.mux.HandleFunc("DELETE /api/songs/{id}", h.deleteSong)
	h.mux.HandleFunc("GET /api/albums", h.listAlbums)
	h.mux.HandleFunc("GET /api/albums/{id}", h.getAlbum)
	h.mux.HandleFunc("GET /api/artists", h.listArtists)
	h.mux.HandleFunc("GET /api/playlists", h.listPlaylists)
	h.mux.HandleFunc("POST /api/playlists", h.createPlaylist)
	h.mux.HandleFunc("GET /api/playlists/{id}", h.getPlaylist)
	h.mux.HandleFunc("PUT /api/playlists/{id}/songs", h.setPlaylistSongs)
	h.mux.HandleFunc("DELETE /api/playlists/{id}", h.deletePlaylist)
	h.mux.HandleFunc("GET /api/playlists/{id}/export", h.exportPlaylist)
	return h
}

func (h *LibraryHandler) Routes() []string {
	return []string{
		"/api/songs", "/api/songs/",
		"/api/albums", "/api/albums/",
		"/api/artists", "/api/artists/",
		"/api/playlists", "/api/playlists/",
	}
}

func (h *LibraryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// listSongs supports ?q=, ?artist= and ?album= filters.
func (h *LibraryHandler) listSongs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	songs, err := h.lib.Songs().List(map[string]any{
		"query":     q.Get("q"),
		"artist_id": q.Get("artist"),
		"album_id":  q.Get("album"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(songs))
}

func (h *LibraryHandler) getSong(w http.ResponseWriter, r *http.Request) {
	song, err := h.lib.Songs().Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

func (h *LibraryHandler) deleteSong(w http.ResponseWriter, r *http.Request) {
	if err := h.lib.DeleteSong(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LibraryHandler) listAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := h.lib.Albums().List(map[string]any{
		"query":     r.URL.Query().Get("q"),
		"artist_id": r.URL.Query().Get("artist"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(albums))
}

type albumResponse struct {
	Album *models.Album  `json:"album"`
	Songs []*models.Song `json:"songs"`
}

func (h *LibraryHandler) getAlbum(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	album, err := h.lib.Albums().Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	songs, err := h.lib.Songs().List(map[string]any{"album_id": id})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, albumResponse{Album: album, Songs: nonNil(songs)})
}

func (h *LibraryHandler) listArtists(w http.ResponseWriter, r *http.Request) {
	artists, err := h.lib.Artists().List(map[string]any{"query": r.URL.Query().Get("q")})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(artists))
}

func (h *LibraryHandler) listPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.lib.Playlists().List(nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(playlists))
}

type playlistRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SongIDs     []string `json:"song_ids"`
}

type playlistResponse struct {
	Playlist *models.Playlist `json:"playlist"`
	Songs    []*models.Song   `json:"songs"`
}

func (h *LibraryHandler) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	playlist, err := h.lib.CreatePlaylist(req.Name, req.Description, req.SongIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	h.writePlaylist(w, http.StatusCreated, playlist)
}

func (h *LibraryHandler) getPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.lib.Playlists().Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.writePlaylist(w, http.StatusOK, playlist)
}

func (h *LibraryHandler) writePlaylist(w http.ResponseWriter, status int, playlist *models.Playlist) {
	songs, err := h.lib.Playlists().Songs(playlist.ID())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, playlistResponse{Playlist: playlist, Songs: nonNil(songs)})
}

type playlistSongsRequest struct {
	SongIDs []string `json:"song_ids"`
}

// setPlaylistSongs replaces the playlist's song set; an empty list empties it.
func (h *LibraryHandler) setPlaylistSongs(w http.ResponseWriter, r *http.Request) {
	var req playlistSongsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.SongIDs == nil {
		req.SongIDs = []string{}
	}

	playlist, err := h.lib.EditPlaylist(r.PathValue("id"), library.PlaylistEdit{SongIDs: req.SongIDs})
	if err != nil {
		writeError(w, err)
		return
	}
	h.writePlaylist(w, http.StatusOK, playlist)
}

func (h *LibraryHandler) deletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := h.lib.DeletePlaylist(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var exportContentTypes = map[formatter.Format]string{
	formatter.FormatCSV:      "text/csv; charset=utf-8",
	formatter.FormatMarkdown: "text/markdown; charset=utf-8",
	formatter.FormatText:     "text/plain; charset=utf-8",
	formatter.FormatJSON:     "application/json",
	formatter.FormatYAML:     "application/yaml",
	formatter.FormatM3U:      "audio/x-mpegurl",
}

// exportPlaylist renders the playlist with ?format= (default m3u).
func (h *LibraryHandler) exportPlaylist(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(formatter.FormatM3U)
	}
	format, err := formatter.ParseFormat(name)
	if err != nil {
		writeError(w, err)
		return
	}

	listing, err := h.lib.PlaylistListing(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := formatter.Export(listing, format)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", exportContentTypes[format])
	w.Header().Set("Content-Disposition", `attachment; filename="`+formatter.DefaultFilename(listing, format)+`"`)
	w.Write(data)
}

// nonNil keeps empty lists encoding as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
