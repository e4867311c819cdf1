package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunebox/internal/formatter"
	"github.com/desertthunder/tunebox/internal/library"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/services"
	"github.com/desertthunder/tunebox/internal/shared"
)

func requireArgs(cmd *cli.Command, n int, what string) ([]string, error) {
	args := cmd.Args().Slice()
	if len(args) < n {
		return nil, fmt.Errorf("%w: %s", shared.ErrMissingArgument, what)
	}
	return args, nil
}

// SongsList prints library songs, optionally filtered.
func (r *Runner) SongsList(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	songs, err := lib.Songs().List(map[string]any{
		"query":     cmd.String("query"),
		"artist_id": cmd.String("artist"),
		"album_id":  cmd.String("album"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(songs, true)
	}
	return r.writeSongs(lib, songs)
}

func (r *Runner) writeSongs(lib *library.Service, songs []*models.Song) error {
	if len(songs) == 0 {
		return r.writePlain("No songs\n")
	}

	artists, albums, err := lib.Names()
	if err != nil {
		return err
	}

	rows := make([]string, 0, len(songs))
	for _, s := range songs {
		rows = append(rows, fmt.Sprintf("%s\t%s\t%s\t%s\t%s",
			s.ID(), shared.FormatDuration(s.Duration), orDash(artists[s.ArtistID]), orDash(albums[s.AlbumID]), s.Title))
	}
	return r.writeTable("ID\tLENGTH\tARTIST\tALBUM\tTITLE", rows)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// SongsShow prints one song with its files.
func (r *Runner) SongsShow(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1, "song id")
	if err != nil {
		return err
	}
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	song, err := lib.Songs().Get(args[0])
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(song, true)
	}

	artists, albums, err := lib.Names()
	if err != nil {
		return err
	}

	files := lib.Files()
	r.writePlainHeader(song.Title)
	r.writePlain("ID:       %s\n", song.ID())
	r.writePlain("Artist:   %s\n", orDash(artists[song.ArtistID]))
	r.writePlain("Album:    %s\n", orDash(albums[song.AlbumID]))
	r.writePlain("Length:   %s\n", shared.FormatDuration(song.Duration))
	if song.VideoID != "" {
		r.writePlain("Video:    https://www.youtube.com/watch?v=%s\n", song.VideoID)
	}
	if song.MediaFile != "" {
		r.writePlain("Media:    %s\n", files.MediaPath(song.MediaFile))
	}
	for _, path := range song.Thumbnail.Paths(files.ImagesDir()) {
		r.writePlain("Artwork:  %s\n", path)
	}
	return nil
}

// SongsDelete deletes songs along with their media and artwork files.
func (r *Runner) SongsDelete(ctx context.Context, cmd *cli.Command) error {
	ids, err := requireArgs(cmd, 1, "song id")
	if err != nil {
		return err
	}
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := lib.DeleteSong(id); err != nil {
			return err
		}
		r.forgetHistory(id)
		r.writePlain("✓ Deleted song %s\n", id)
	}
	return nil
}

// forgetHistory drops a deleted song from the play history. Failures only warn since the song is already gone.
func (r *Runner) forgetHistory(songID string) {
	history, err := r.openHistory()
	if err != nil {
		r.logger.Warn("failed to open history", "error", err)
		return
	}
	if err := history.Remove(songID); err != nil {
		r.logger.Warn("failed to remove song from history", "song", songID, "error", err)
	}
}

// SongsEdit changes a song's title, artist, album or artwork.
func (r *Runner) SongsEdit(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1, "song id")
	if err != nil {
		return err
	}
	id := args[0]

	if !cmd.IsSet("title") && !cmd.IsSet("artist") && !cmd.IsSet("album") && !cmd.IsSet("artwork") {
		return fmt.Errorf("%w: one of --title, --artist, --album or --artwork", shared.ErrMissingArgument)
	}

	lib, err := r.openLibrary()
	if err != nil {
		return err
	}
	song, err := lib.Songs().Get(id)
	if err != nil {
		return err
	}

	if cmd.IsSet("title") || cmd.IsSet("artist") {
		if cmd.IsSet("title") {
			song.Title = cmd.String("title")
		}
		if cmd.IsSet("artist") {
			artistID := cmd.String("artist")
			if artistID != "" {
				if _, err := lib.Artists().Get(artistID); err != nil {
					return err
				}
			}
			song.ArtistID = artistID
		}
		if err := lib.Songs().Update(song); err != nil {
			return err
		}
	}

	if cmd.IsSet("album") {
		if err := lib.AssignAlbum(id, cmd.String("album")); err != nil {
			return err
		}
	}

	if cmd.IsSet("artwork") {
		if err := r.setArtwork(ctx, lib, library.KindSong, id, cmd.String("artwork")); err != nil {
			return err
		}
	}

	return r.writePlain("✓ Updated song %s\n", id)
}

// setArtwork stores an image file or URL as a record's three artwork tiers.
func (r *Runner) setArtwork(ctx context.Context, lib *library.Service, kind library.Kind, id, src string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		data, err = services.NewFetcher("", r.httpClient).Bytes(ctx, src)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return fmt.Errorf("failed to read artwork: %w", err)
	}

	thumb, err := lib.SetThumbnailFromBytes(kind, id, data)
	if err != nil {
		return err
	}
	r.logger.Info("artwork saved", "kind", kind, "id", id, "files", thumb.Files())
	return nil
}

// SongsImport copies local audio files into the library.
func (r *Runner) SongsImport(ctx context.Context, cmd *cli.Command) error {
	paths, err := requireArgs(cmd, 1, "audio file path")
	if err != nil {
		return err
	}
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	for _, path := range paths {
		song, err := lib.ImportFile(path)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", path, err)
		}
		r.writePlain("✓ Imported %s as song %s\n", song.Title, song.ID())
	}
	return nil
}

// AlbumsList prints albums.
func (r *Runner) AlbumsList(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	albums, err := lib.Albums().List(map[string]any{
		"query":     cmd.String("query"),
		"artist_id": cmd.String("artist"),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(albums, true)
	}
	if len(albums) == 0 {
		return r.writePlain("No albums\n")
	}

	artists, _, err := lib.Names()
	if err != nil {
		return err
	}
	rows := make([]string, 0, len(albums))
	for _, a := range albums {
		rows = append(rows, fmt.Sprintf("%s\t%s\t%s", a.ID(), orDash(artists[a.ArtistID]), a.Title))
	}
	return r.writeTable("ID\tARTIST\tTITLE", rows)
}

// AlbumsCreate creates an album and moves the given songs into it.
func (r *Runner) AlbumsCreate(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1, "album title")
	if err != nil {
		return err
	}
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	album, err := lib.CreateAlbum(args[0], cmd.String("artist"), args[1:])
	if err != nil {
		return err
	}
	return r.writePlain("✓ Created album %s (%s)\n", album.Title, album.ID())
}

// AlbumsDelete deletes albums and their artwork.
func (r *Runner) AlbumsDelete(ctx context.Context, cmd *cli.Command) error {
	ids, err := requireArgs(cmd, 1, "album id")
	if err != nil {
		return err
	}
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := lib.DeleteAlbum(id); err != nil {
			return err
		}
		r.writePlain("✓ Deleted album %s\n", id)
	}
	return nil
}

// AlbumsAdd moves songs into an album.
func (r *Runner) AlbumsAdd(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 2, "album id and at least one song id")
	if err != nil {
		return err
	}
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	for _, songID := range args[1:] {
		if err := lib.AssignAlbum(songID, args[0]); err != nil {
			return err
		}
	}
	return r.writePlain("✓ Added %d songs to album %s\n", len(args)-1, args[0])
}

// ArtistsList prints artists.
func (r *Runner) ArtistsList(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	artists, err := lib.Artists().List(map[string]any{"query": cmd.String("query")})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(artists, true)
	}
	if len(artists) == 0 {
		return r.writePlain("No artists\n")
	}

	rows := make([]string, 0, len(artists))
	for _, a := range artists {
		rows = append(rows, fmt.Sprintf("%s\t%s\t%s", a.ID(), orDash(a.ChannelID), a.Name))
	}
	return r.writeTable("ID\tCHANNEL\tNAME", rows)
}

// ArtistsDelete deletes artists and their artwork.
func (r *Runner) ArtistsDelete(ctx context.Context, cmd *cli.Command) error {
	ids, err := requireArgs(cmd, 1, "artist id")
	if err != nil {
		return err
	}
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := lib.DeleteArtist(id); err != nil {
			return err
		}
		r.writePlain("✓ Deleted artist %s\n", id)
	}
	return nil
}

// PlaylistsList prints playlists with their song counts.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	playlists, err := lib.Playlists().List(nil)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}
	if len(playlists) == 0 {
		return r.writePlain("No playlists\n")
	}

	rows := make([]string, 0, len(playlists))
	for _, p := range playlists {
		songs, err := lib.Playlists().Songs(p.ID())
		if err != nil {
			return err
		}
		rows = append(rows, fmt.Sprintf("%s\t%d\t%s", p.ID(), len(songs), p.Name))
	}
	return r.writeTable("ID\tSONGS\tNAME", rows)
}

// PlaylistsShow prints a playlist and its songs in order.
func (r *Runner) PlaylistsShow(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1, "playlist id")
	if err != nil {
		return err
	}
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	playlist, err := lib.Playlists().Get(args[0])
	if err != nil {
		return err
	}
	songs, err := lib.Playlists().Songs(playlist.ID())
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"playlist": playlist, "songs": songs}, true)
	}

	r.writePlainHeader(playlist.Name)
	if playlist.Description != "" {
		r.writePlain("%s\n", playlist.Description)
	}
	r.writePlain("\n")
	return r.writeSongs(lib, songs)
}

// PlaylistsCreate creates a playlist from the given songs.
func (r *Runner) PlaylistsCreate(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1, "playlist name")
	if err != nil {
		return err
	}
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	playlist, err := lib.CreatePlaylist(args[0], cmd.String("description"), args[1:])
	if err != nil {
		return err
	}
	return r.writePlain("✓ Created playlist %s (%s)\n", playlist.Name, playlist.ID())
}

// PlaylistsEdit renames a playlist and replaces, appends to or clears its songs.
func (r *Runner) PlaylistsEdit(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1, "playlist id")
	if err != nil {
		return err
	}
	id, songIDs := args[0], args[1:]

	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	var edit library.PlaylistEdit
	if cmd.IsSet("name") {
		name := cmd.String("name")
		edit.Name = &name
	}
	if cmd.IsSet("description") {
		description := cmd.String("description")
		edit.Description = &description
	}

	switch {
	case cmd.Bool("clear"):
		if len(songIDs) > 0 {
			return fmt.Errorf("%w: --clear takes no song ids", shared.ErrInvalidArgument)
		}
		edit.SongIDs = []string{}
	case cmd.Bool("append") && len(songIDs) > 0:
		current, err := lib.Playlists().Songs(id)
		if err != nil {
			return err
		}
		edit.SongIDs = make([]string, 0, len(current)+len(songIDs))
		for _, s := range current {
			edit.SongIDs = append(edit.SongIDs, s.ID())
		}
		edit.SongIDs = append(edit.SongIDs, songIDs...)
	case len(songIDs) > 0:
		edit.SongIDs = songIDs
	}

	if edit.Name == nil && edit.Description == nil && edit.SongIDs == nil {
		return fmt.Errorf("%w: nothing to change", shared.ErrMissingArgument)
	}

	playlist, err := lib.EditPlaylist(id, edit)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Updated playlist %s (%s)\n", playlist.Name, playlist.ID())
}

// PlaylistsDelete deletes playlists and their artwork. Songs stay in the library.
func (r *Runner) PlaylistsDelete(ctx context.Context, cmd *cli.Command) error {
	ids, err := requireArgs(cmd, 1, "playlist id")
	if err != nil {
		return err
	}
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := lib.DeletePlaylist(id); err != nil {
			return err
		}
		r.writePlain("✓ Deleted playlist %s\n", id)
	}
	return nil
}

// PlaylistsExport writes a playlist in one of the export formats.
func (r *Runner) PlaylistsExport(ctx context.Context, cmd *cli.Command) error {
	args, err := requireArgs(cmd, 1, "playlist id")
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	listing, err := lib.ListingFor(library.KindPlaylist, args[0])
	if err != nil {
		return err
	}
	return r.export(listing, format, cmd.String("output"))
}

// export writes listing to output, or to the runner's output when output is "-".
func (r *Runner) export(listing *models.Listing, format formatter.Format, output string) error {
	if output == "-" {
		data, err := formatter.Export(listing, format)
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	}

	path, err := formatter.WriteExport(listing, format, output)
	if err != nil {
		return err
	}
	r.logger.Info("exported listing", "name", listing.Name, "format", format, "path", path)
	return r.writePlain("✓ Exported %d songs to %s\n", len(listing.Tracks), path)
}
