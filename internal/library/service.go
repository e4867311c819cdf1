package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunebox/internal/media"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/repositories"
	"github.com/desertthunder/tunebox/internal/shared"
)

// Kind names a library record type that can carry artwork.
type Kind string

const (
	KindSong     Kind = "song"
	KindAlbum    Kind = "album"
	KindArtist   Kind = "artist"
	KindPlaylist Kind = "playlist"
)

// ParseKind accepts the singular or plural record name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.TrimSuffix(strings.ToLower(s), "s")); k {
	case KindSong, KindAlbum, KindArtist, KindPlaylist:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown record type %q", shared.ErrInvalidArgument, s)
}

// Service applies library edits that span records and files.
//
// Deleting a record also deletes its artwork, and deleting a song deletes its media file once no other
// live song refers to it.
type Service struct {
	songs     *repositories.SongRepository
	albums    *repositories.AlbumRepository
	artists   *repositories.ArtistRepository
	playlists *repositories.PlaylistRepository
	files     *Files
	artwork   shared.ArtworkConfig
	logger    *log.Logger
}

// NewService wires repositories over db with the file layout.
func NewService(db *sql.DB, files *Files, artwork shared.ArtworkConfig, logger *log.Logger) *Service {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Service{
		songs:     repositories.NewSongRepository(db),
		albums:    repositories.NewAlbumRepository(db),
		artists:   repositories.NewArtistRepository(db),
		playlists: repositories.NewPlaylistRepository(db),
		files:     files,
		artwork:   artwork,
		logger:    logger,
	}
}

func (s *Service) Songs() *repositories.SongRepository { return s.songs }
func (s *Service) Albums() *repositories.AlbumRepository { return s.albums }
func (s *Service) Artists() *repositories.ArtistRepository { return s.artists }
func (s *Service) Playlists() *repositories.PlaylistRepository { return s.playlists }
func (s *Service) Files() *Files { return s.files }

// DeleteSong removes the song record, its artwork and its media file.
//
// The record is deleted first; file removal errors are returned after it is gone.
func (s *Service) DeleteSong(id string) error {
	song, err := s.songs.Get(id)
	if err != nil {
		return err
	}

	if err := s.songs.Delete(id); err != nil {
		return err
	}

	var errs []error
	if err := s.files.RemoveThumbnail(song.Thumbnail); err != nil {
		errs = append(errs, err)
	}

	if song.MediaFile != "" {
		n, err := s.songs.CountByMediaFile(song.MediaFile)
		switch {
		case err != nil:
			errs = append(errs, err)
		case n == 0:
			if err := s.files.RemoveMedia(song.MediaFile); err != nil {
				errs = append(errs, err)
			}
		default:
			s.logger.Debug("media file still referenced, keeping it", "file", song.MediaFile, "songs", n)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("song %s deleted but files remain: %w", id, err)
	}

	s.logger.Info("deleted song", "id", id, "title", song.Title)
	return nil
}

// DeleteAlbum removes the album and its artwork. Its songs stay in the library without an album.
func (s *Service) DeleteAlbum(id string) error {
	album, err := s.albums.Get(id)
	if err != nil {
		return err
	}
	if err := s.albums.Delete(id); err != nil {
		return err
	}
	return s.removeArtwork(KindAlbum, id, album.Thumbnail)
}

// DeleteArtist removes the artist and its artwork. Songs and albums are detached, not deleted.
func (s *Service) DeleteArtist(id string) error {
	artist, err := s.artists.Get(id)
	if err != nil {
		return err
	}
	if err := s.artists.Delete(id); err != nil {
		return err
	}
	return s.removeArtwork(KindArtist, id, artist.Thumbnail)
}

// DeletePlaylist removes the playlist, its membership and its artwork.
func (s *Service) DeletePlaylist(id string) error {
	playlist, err := s.playlists.Get(id)
	if err != nil {
		return err
	}
	if err := s.playlists.Delete(id); err != nil {
		return err
	}
	return s.removeArtwork(KindPlaylist, id, playlist.Thumbnail)
}

func (s *Service) removeArtwork(kind Kind, id string, thumb models.Thumbnail) error {
	if err := s.files.RemoveThumbnail(thumb); err != nil {
		return fmt.Errorf("%s %s deleted but artwork remains: %w", kind, id, err)
	}
	s.logger.Info("deleted "+string(kind), "id", id)
	return nil
}

// CreatePlaylist creates a playlist holding songIDs in order.
func (s *Service) CreatePlaylist(name, description string, songIDs []string) (*models.Playlist, error) {
	playlist := models.NewPlaylist(0, name, description)
	if err := s.playlists.Create(playlist); err != nil {
		return nil, err
	}

	if len(songIDs) > 0 {
		if err := s.playlists.SetSongs(playlist.ID(), songIDs); err != nil {
			if delErr := s.playlists.Delete(playlist.ID()); delErr != nil {
				s.logger.Warn("failed to remove partially created playlist", "id", playlist.ID(), "error", delErr)
			}
			return nil, err
		}
	}

	return playlist, nil
}

// PlaylistEdit describes changes to a playlist. Nil fields are left as they are.
//
// A non-nil SongIDs replaces the whole song set, so an empty, non-nil slice empties the playlist.
type PlaylistEdit struct {
	Name        *string
	Description *string
	SongIDs     []string
}

// EditPlaylist renames the playlist and replaces its song set. Either both changes are saved or neither is.
func (s *Service) EditPlaylist(id string, edit PlaylistEdit) (*models.Playlist, error) {
	playlist, err := s.playlists.Get(id)
	if err != nil {
		return nil, err
	}

	if edit.Name != nil {
		playlist.Name = *edit.Name
	}
	if edit.Description != nil {
		playlist.Description = *edit.Description
	}
	if err := s.playlists.Edit(playlist, edit.SongIDs); err != nil {
		return nil, err
	}
	return playlist, nil
}

// CreateAlbum creates an album and moves songIDs into it.
func (s *Service) CreateAlbum(title, artistID string, songIDs []string) (*models.Album, error) {
	if artistID != "" {
		if _, err := s.artists.Get(artistID); err != nil {
			return nil, err
		}
	}

	album := models.NewAlbum(0, title, artistID)
	if err := s.albums.Create(album); err != nil {
		return nil, err
	}

	for _, songID := range songIDs {
		if err := s.AssignAlbum(songID, album.ID()); err != nil {
			return album, err
		}
	}
	return album, nil
}

// AssignAlbum moves a song into an album; an empty albumID detaches it.
func (s *Service) AssignAlbum(songID, albumID string) error {
	song, err := s.songs.Get(songID)
	if err != nil {
		return err
	}

	if albumID != "" {
		album, err := s.albums.Get(albumID)
		if err != nil {
			return err
		}
		if song.ArtistID == "" {
			song.ArtistID = album.ArtistID
		}
	}

	song.AlbumID = albumID
	return s.songs.Update(song)
}

// SetThumbnailFromBytes stores image data as the three artwork tiers of a record and swaps out the old files.
//
// The tiers are written under staging names and only moved over the record's files once the record is
// saved, so a failed save leaves the old artwork as it was.
func (s *Service) SetThumbnailFromBytes(kind Kind, id string, data []byte) (models.Thumbnail, error) {
	var (
		old  models.Thumbnail
		save func(models.Thumbnail) error
	)

	switch kind {
	case KindSong:
		rec, err := s.songs.Get(id)
		if err != nil {
			return models.Thumbnail{}, err
		}
		old = rec.Thumbnail
		save = func(t models.Thumbnail) error { rec.Thumbnail = t; return s.songs.Update(rec) }
	case KindAlbum:
		rec, err := s.albums.Get(id)
		if err != nil {
			return models.Thumbnail{}, err
		}
		old = rec.Thumbnail
		save = func(t models.Thumbnail) error { rec.Thumbnail = t; return s.albums.Update(rec) }
	case KindArtist:
		rec, err := s.artists.Get(id)
		if err != nil {
			return models.Thumbnail{}, err
		}
		old = rec.Thumbnail
		save = func(t models.Thumbnail) error { rec.Thumbnail = t; return s.artists.Update(rec) }
	case KindPlaylist:
		rec, err := s.playlists.Get(id)
		if err != nil {
			return models.Thumbnail{}, err
		}
		old = rec.Thumbnail
		save = func(t models.Thumbnail) error { rec.Thumbnail = t; return s.playlists.Update(rec) }
	default:
		return models.Thumbnail{}, fmt.Errorf("%w: unknown record type %q", shared.ErrInvalidArgument, kind)
	}

	base := string(kind) + "-" + id
	staged, err := media.SaveTiers(data, s.files.ImagesDir(), base+"."+shared.GenerateID()[:8], s.artwork)
	if err != nil {
		return models.Thumbnail{}, err
	}

	var thumb models.Thumbnail
	for _, size := range models.Sizes {
		thumb.Set(size, media.TierFilename(base, size))
	}

	if err := save(thumb); err != nil {
		s.files.RemoveThumbnail(staged)
		return models.Thumbnail{}, err
	}

	for _, size := range models.Sizes {
		if err := os.Rename(s.files.ImagePath(staged.Get(size)), s.files.ImagePath(thumb.Get(size))); err != nil {
			s.files.RemoveThumbnail(staged)
			return models.Thumbnail{}, fmt.Errorf("failed to move %s artwork into place: %w", size, err)
		}
	}

	if err := s.files.RemoveThumbnail(stale(old, thumb)); err != nil {
		s.logger.Warn("failed to remove replaced artwork", "kind", kind, "id", id, "error", err)
	}
	return thumb, nil
}

// stale returns the tiers of t whose names are not used by keep.
func stale(t, keep models.Thumbnail) models.Thumbnail {
	var out models.Thumbnail
	kept := keep.Files()
	for _, size := range models.Sizes {
		if name := t.Get(size); name != "" && !slices.Contains(kept, name) {
			out.Set(size, name)
		}
	}
	return out
}

// ImportFile copies a local audio file into the library and creates a song for it.
//
// The artist and album are taken from the file's tags; artists without a channel are matched by name.
func (s *Service) ImportFile(path string) (*models.Song, error) {
	info, err := media.Probe(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMissingFile, err)
	}

	name, err := s.files.CopyIntoMedia(path)
	if err != nil {
		return nil, err
	}

	song := models.NewSong(0, info.Title, "")
	song.MediaFile = name
	song.Duration = int(info.Duration)

	if info.Artist != "" {
		artist, _, err := s.artists.FindOrCreate("", info.Artist, models.Thumbnail{})
		if err != nil {
			s.files.RemoveMedia(name)
			return nil, err
		}
		song.ArtistID = artist.ID()
	}

	if info.Album != "" {
		album, err := s.findOrCreateAlbum(info.Album, song.ArtistID)
		if err != nil {
			s.files.RemoveMedia(name)
			return nil, err
		}
		song.AlbumID = album.ID()
	}

	if err := s.songs.Create(song); err != nil {
		s.files.RemoveMedia(name)
		return nil, err
	}

	s.logger.Info("imported song", "id", song.ID(), "title", song.Title, "file", name)
	return song, nil
}

func (s *Service) findOrCreateAlbum(title, artistID string) (*models.Album, error) {
	albums, err := s.albums.List(map[string]any{"artist_id": artistID, "query": title})
	if err != nil {
		return nil, err
	}
	for _, a := range albums {
		if strings.EqualFold(a.Title, title) {
			return a, nil
		}
	}

	album := models.NewAlbum(0, title, artistID)
	if err := s.albums.Create(album); err != nil {
		return nil, err
	}
	return album, nil
}

// Problem is a library record whose files are not where it says they are.
type Problem struct {
	Kind   Kind
	ID     string
	Name   string
	File   string
	Reason string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s %s (%s): %s %s", p.Kind, p.ID, p.Name, p.Reason, p.File)
}

// Verify checks that every live song's media file exists and every referenced artwork file exists.
func (s *Service) Verify() ([]Problem, error) {
	var problems []Problem

	missingArt := func(kind Kind, id, name string, t models.Thumbnail) {
		for _, file := range s.files.MissingThumbnails(t) {
			problems = append(problems, Problem{Kind: kind, ID: id, Name: name, File: file, Reason: "missing artwork"})
		}
	}

	songs, err := s.songs.List(nil)
	if err != nil {
		return nil, err
	}
	for _, song := range songs {
		switch {
		case song.MediaFile == "":
			problems = append(problems, Problem{Kind: KindSong, ID: song.ID(), Name: song.Title, Reason: "no media file"})
		case !s.files.Exists(s.files.MediaPath(song.MediaFile)):
			problems = append(problems, Problem{Kind: KindSong, ID: song.ID(), Name: song.Title, File: song.MediaFile, Reason: "missing media"})
		}
		missingArt(KindSong, song.ID(), song.Title, song.Thumbnail)
	}

	albums, err := s.albums.List(nil)
	if err != nil {
		return nil, err
	}
	for _, a := range albums {
		missingArt(KindAlbum, a.ID(), a.Title, a.Thumbnail)
	}

	artists, err := s.artists.List(nil)
	if err != nil {
		return nil, err
	}
	for _, a := range artists {
		missingArt(KindArtist, a.ID(), a.Name, a.Thumbnail)
	}

	playlists, err := s.playlists.List(nil)
	if err != nil {
		return nil, err
	}
	for _, p := range playlists {
		missingArt(KindPlaylist, p.ID(), p.Name, p.Thumbnail)
	}

	return problems, nil
}

// PruneMissing deletes songs whose media file no longer exists and returns how many were removed.
func (s *Service) PruneMissing() (int, error) {
	songs, err := s.songs.List(nil)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, song := range songs {
		if song.MediaFile == "" || s.files.Exists(s.files.MediaPath(song.MediaFile)) {
			continue
		}
		if err := s.DeleteSong(song.ID()); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

// SongsByMediaFile returns live songs whose media file is name.
func (s *Service) SongsByMediaFile(name string) ([]*models.Song, error) {
	songs, err := s.songs.List(nil)
	if err != nil {
		return nil, err
	}

	var out []*models.Song
	for _, song := range songs {
		if song.MediaFile == name {
			out = append(out, song)
		}
	}
	return out, nil
}
