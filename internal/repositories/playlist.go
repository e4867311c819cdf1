package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

const playlistColumns = `id, sequence, name, description, thumb_small, thumb_medium, thumb_large, created_at, updated_at, deleted_at`

// PlaylistRepository implements models.Repository[*models.Playlist].
//
// Membership lives in playlist_songs, ordered by position. A song may appear more than once.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist into the database with generated ID and sequence
func (r *PlaylistRepository) Create(playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	playlist.SetID(id)
	playlist.SetSequence(sequence)

	query := `
		INSERT INTO playlists (id, sequence, name, description, thumb_small, thumb_medium, thumb_large, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	args := []any{id, sequence, playlist.Name, playlist.Description}
	args = append(args, thumbArgs(playlist.Thumbnail)...)
	args = append(args, playlist.CreatedAt(), playlist.UpdatedAt())

	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	return nil
}

// Get retrieves a playlist by ID, excluding soft-deleted playlists
func (r *PlaylistRepository) Get(id string) (*models.Playlist, error) {
	playlist, err := scanPlaylist(r.db.QueryRow(`SELECT `+playlistColumns+` FROM playlists WHERE id = ? AND deleted_at IS NULL`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}
	return playlist, err
}

// Update modifies an existing playlist in the database
func (r *PlaylistRepository) Update(playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now()
	playlist.SetUpdatedAt(now)

	query := `
		UPDATE playlists
		SET name = ?, description = ?, thumb_small = ?, thumb_medium = ?, thumb_large = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	args := []any{playlist.Name, playlist.Description}
	args = append(args, thumbArgs(playlist.Thumbnail)...)
	args = append(args, now, playlist.ID())

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}

	return checkAffected(result, fmt.Errorf("%w: playlist not found or already deleted: %s", shared.ErrNotFound, playlist.ID()))
}

// Edit saves the playlist row and, when songIDs is non-nil, replaces its songs in the same transaction.
//
// A validation error or an unknown song leaves both the row and the membership as they were.
func (r *PlaylistRepository) Edit(playlist *models.Playlist, songIDs []string) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrInvalidInput, err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	result, err := tx.Exec(`
		UPDATE playlists SET name = ?, description = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, playlist.Name, playlist.Description, now, playlist.ID())
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}
	if err := checkAffected(result, fmt.Errorf("%w: playlist not found or already deleted: %s", shared.ErrNotFound, playlist.ID())); err != nil {
		return err
	}

	if songIDs != nil {
		if err := replaceSongs(tx, playlist.ID(), songIDs); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit playlist edit: %w", err)
	}
	playlist.SetUpdatedAt(now)
	return nil
}

// Delete soft-deletes a playlist by ID and clears its membership
func (r *PlaylistRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE playlists SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	if err := checkAffected(result, fmt.Errorf("%w: playlist not found or already deleted: %s", shared.ErrNotFound, id)); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM playlist_songs WHERE playlist_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear playlist songs: %w", err)
	}

	return tx.Commit()
}

// List retrieves all playlists matching the given criteria, excluding soft-deleted playlists.
//
// Supported criteria: "query" (case-insensitive name substring).
func (r *PlaylistRepository) List(criteria map[string]any) ([]*models.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE deleted_at IS NULL`
	args := []any{}

	if q, ok := criteria["query"].(string); ok && q != "" {
		query += " AND LOWER(name) LIKE ?"
		args = append(args, likePattern(q))
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.Playlist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

// Songs returns the live songs of a playlist in position order
func (r *PlaylistRepository) Songs(playlistID string) ([]*models.Song, error) {
	if _, err := r.Get(playlistID); err != nil {
		return nil, err
	}

	query := `
		SELECT s.id, s.sequence, s.title, s.video_id, s.media_file, s.duration, s.artist_id, s.album_id,
			s.thumb_small, s.thumb_medium, s.thumb_large, s.created_at, s.updated_at, s.deleted_at
		FROM playlist_songs ps
		JOIN songs s ON s.id = ps.song_id
		WHERE ps.playlist_id = ? AND s.deleted_at IS NULL
		ORDER BY ps.position ASC
	`

	rows, err := r.db.Query(query, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist songs: %w", err)
	}
	defer rows.Close()

	var songs []*models.Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return songs, nil
}

// SetSongs replaces the playlist's songs with songIDs, in order, within one transaction.
//
// Every id must refer to a live song; otherwise nothing changes.
func (r *PlaylistRepository) SetSongs(playlistID string, songIDs []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireLivePlaylist(tx, playlistID); err != nil {
		return err
	}

	if err := replaceSongs(tx, playlistID, songIDs); err != nil {
		return err
	}

	if err := touchPlaylist(tx, playlistID); err != nil {
		return err
	}

	return tx.Commit()
}

// AddSong appends a song to the end of the playlist
func (r *PlaylistRepository) AddSong(playlistID, songID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireLivePlaylist(tx, playlistID); err != nil {
		return err
	}
	if err := requireLiveSong(tx, songID); err != nil {
		return err
	}

	var next int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(position) + 1, 0) FROM playlist_songs WHERE playlist_id = ?`, playlistID).Scan(&next); err != nil {
		return fmt.Errorf("failed to get next position: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO playlist_songs (playlist_id, song_id, position) VALUES (?, ?, ?)`, playlistID, songID, next); err != nil {
		return fmt.Errorf("failed to add song to playlist: %w", err)
	}

	if err := touchPlaylist(tx, playlistID); err != nil {
		return err
	}

	return tx.Commit()
}

// RemoveSong removes every occurrence of a song from the playlist and compacts positions
func (r *PlaylistRepository) RemoveSong(playlistID, songID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireLivePlaylist(tx, playlistID); err != nil {
		return err
	}

	rows, err := tx.Query(`SELECT song_id FROM playlist_songs WHERE playlist_id = ? ORDER BY position ASC`, playlistID)
	if err != nil {
		return fmt.Errorf("failed to query playlist songs: %w", err)
	}

	var (
		kept  []string
		found bool
	)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan playlist song: %w", err)
		}
		if id == songID {
			found = true
			continue
		}
		kept = append(kept, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	if !found {
		return fmt.Errorf("%w: song %s is not in playlist %s", shared.ErrNotFound, songID, playlistID)
	}

	if err := replaceSongs(tx, playlistID, kept); err != nil {
		return err
	}

	if err := touchPlaylist(tx, playlistID); err != nil {
		return err
	}

	return tx.Commit()
}

func replaceSongs(tx *sql.Tx, playlistID string, songIDs []string) error {
	for _, id := range songIDs {
		if err := requireLiveSong(tx, id); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`DELETE FROM playlist_songs WHERE playlist_id = ?`, playlistID); err != nil {
		return fmt.Errorf("failed to clear playlist songs: %w", err)
	}

	for pos, id := range songIDs {
		if _, err := tx.Exec(`INSERT INTO playlist_songs (playlist_id, song_id, position) VALUES (?, ?, ?)`, playlistID, id, pos); err != nil {
			return fmt.Errorf("failed to insert playlist song: %w", err)
		}
	}

	return nil
}

func requireLivePlaylist(tx *sql.Tx, id string) error {
	var n int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM playlists WHERE id = ? AND deleted_at IS NULL`, id).Scan(&n); err != nil {
		return fmt.Errorf("failed to check playlist: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: playlist %s", shared.ErrNotFound, id)
	}
	return nil
}

func requireLiveSong(tx *sql.Tx, id string) error {
	var n int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM songs WHERE id = ? AND deleted_at IS NULL`, id).Scan(&n); err != nil {
		return fmt.Errorf("failed to check song: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: song %s", shared.ErrNotFound, id)
	}
	return nil
}

func touchPlaylist(tx *sql.Tx, id string) error {
	if _, err := tx.Exec(`UPDATE playlists SET updated_at = ? WHERE id = ?`, time.Now(), id); err != nil {
		return fmt.Errorf("failed to touch playlist: %w", err)
	}
	return nil
}

func scanPlaylist(row rowScanner) (*models.Playlist, error) {
	var (
		id, name, description string
		sequence              int
		small, medium, large  string
		createdAt, updatedAt  time.Time
		deletedAt             sql.NullTime
	)

	err := row.Scan(&id, &sequence, &name, &description, &small, &medium, &large, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	playlist := models.NewPlaylist(sequence, name, description)
	playlist.SetID(id)
	playlist.Thumbnail = models.Thumbnail{Small: small, Medium: medium, Large: large}
	playlist.SetCreatedAt(createdAt)
	playlist.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		playlist.SetDeletedAt(&deletedAt.Time)
	}

	return playlist, nil
}
