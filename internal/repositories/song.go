package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

const songColumns = `id, sequence, title, video_id, media_file, duration, artist_id, album_id,
	thumb_small, thumb_medium, thumb_large, created_at, updated_at, deleted_at`

// SongRepository implements models.Repository[*models.Song].
//
// A video id identifies at most one live song.
type SongRepository struct {
	db *sql.DB
}

// NewSongRepository creates a new SongRepository with the given database connection
func NewSongRepository(db *sql.DB) *SongRepository {
	return &SongRepository{db: db}
}

// Create inserts a new song into the database with generated ID and sequence.
//
// Returns [shared.ErrAlreadyInLibrary] when a live song already has the same video id.
func (r *SongRepository) Create(song *models.Song) error {
	if err := song.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "songs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	song.SetID(id)
	song.SetSequence(sequence)

	query := `
		INSERT INTO songs (id, sequence, title, video_id, media_file, duration, artist_id, album_id,
			thumb_small, thumb_medium, thumb_large, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	args := []any{id, sequence, song.Title, song.VideoID, song.MediaFile, song.Duration,
		nullable(song.ArtistID), nullable(song.AlbumID)}
	args = append(args, thumbArgs(song.Thumbnail)...)
	args = append(args, song.CreatedAt(), song.UpdatedAt())

	if _, err := r.db.Exec(query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: video %s", shared.ErrAlreadyInLibrary, song.VideoID)
		}
		return fmt.Errorf("failed to insert song: %w", err)
	}

	return nil
}

// Get retrieves a song by ID, excluding soft-deleted songs
func (r *SongRepository) Get(id string) (*models.Song, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id), id)
}

// GetByVideoID retrieves the live song downloaded from a video
func (r *SongRepository) GetByVideoID(videoID string) (*models.Song, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE video_id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, videoID), videoID)
}

// Update modifies an existing song in the database
func (r *SongRepository) Update(song *models.Song) error {
	if err := song.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now()
	song.SetUpdatedAt(now)

	query := `
		UPDATE songs
		SET title = ?, media_file = ?, duration = ?, artist_id = ?, album_id = ?,
			thumb_small = ?, thumb_medium = ?, thumb_large = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	args := []any{song.Title, song.MediaFile, song.Duration, nullable(song.ArtistID), nullable(song.AlbumID)}
	args = append(args, thumbArgs(song.Thumbnail)...)
	args = append(args, now, song.ID())

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update song: %w", err)
	}

	return checkAffected(result, fmt.Errorf("%w: song not found or already deleted: %s", shared.ErrNotFound, song.ID()))
}

// Delete soft-deletes a song by ID and removes it from every playlist
func (r *SongRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE songs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}
	if err := checkAffected(result, fmt.Errorf("%w: song not found or already deleted: %s", shared.ErrNotFound, id)); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM playlist_songs WHERE song_id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove song from playlists: %w", err)
	}

	return tx.Commit()
}

// List retrieves all songs matching the given criteria, excluding soft-deleted songs.
//
// Supported criteria: "artist_id", "album_id" (exact match) and "query" (case-insensitive title substring).
func (r *SongRepository) List(criteria map[string]any) ([]*models.Song, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE deleted_at IS NULL`
	args := []any{}

	if artistID, ok := criteria["artist_id"].(string); ok && artistID != "" {
		query += " AND artist_id = ?"
		args = append(args, artistID)
	}

	if albumID, ok := criteria["album_id"].(string); ok && albumID != "" {
		query += " AND album_id = ?"
		args = append(args, albumID)
	}

	if q, ok := criteria["query"].(string); ok && q != "" {
		query += " AND LOWER(title) LIKE ?"
		args = append(args, likePattern(q))
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
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

// CountByMediaFile returns how many live songs reference the media file.
func (r *SongRepository) CountByMediaFile(name string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM songs WHERE media_file = ? AND deleted_at IS NULL`, name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count songs: %w", err)
	}
	return n, nil
}

// scanOne scans a single row into a [models.Song]
func (r *SongRepository) scanOne(row *sql.Row, key string) (*models.Song, error) {
	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: song %s", shared.ErrNotFound, key)
	}
	return song, err
}

func scanSong(row rowScanner) (*models.Song, error) {
	var (
		id, title, videoID, mediaFile string
		sequence, duration            int
		artistID, albumID             sql.NullString
		small, medium, large          string
		createdAt, updatedAt          time.Time
		deletedAt                     sql.NullTime
	)

	err := row.Scan(&id, &sequence, &title, &videoID, &mediaFile, &duration, &artistID, &albumID,
		&small, &medium, &large, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan song: %w", err)
	}

	song := models.NewSong(sequence, title, videoID)
	song.SetID(id)
	song.MediaFile = mediaFile
	song.Duration = duration
	song.ArtistID = artistID.String
	song.AlbumID = albumID.String
	song.Thumbnail = models.Thumbnail{Small: small, Medium: medium, Large: large}
	song.SetCreatedAt(createdAt)
	song.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		song.SetDeletedAt(&deletedAt.Time)
	}

	return song, nil
}
