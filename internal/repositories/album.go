package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

const albumColumns = `id, sequence, title, artist_id, thumb_small, thumb_medium, thumb_large, created_at, updated_at, deleted_at`

// AlbumRepository implements models.Repository[*models.Album].
type AlbumRepository struct {
	db *sql.DB
}

// NewAlbumRepository creates a new AlbumRepository with the given database connection
func NewAlbumRepository(db *sql.DB) *AlbumRepository {
	return &AlbumRepository{db: db}
}

// Create inserts a new album into the database with generated ID and sequence
func (r *AlbumRepository) Create(album *models.Album) error {
	if err := album.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "albums")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	album.SetID(id)
	album.SetSequence(sequence)

	query := `
		INSERT INTO albums (id, sequence, title, artist_id, thumb_small, thumb_medium, thumb_large, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	args := []any{id, sequence, album.Title, nullable(album.ArtistID)}
	args = append(args, thumbArgs(album.Thumbnail)...)
	args = append(args, album.CreatedAt(), album.UpdatedAt())

	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert album: %w", err)
	}

	return nil
}

// Get retrieves an album by ID, excluding soft-deleted albums
func (r *AlbumRepository) Get(id string) (*models.Album, error) {
	album, err := scanAlbum(r.db.QueryRow(`SELECT `+albumColumns+` FROM albums WHERE id = ? AND deleted_at IS NULL`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: album %s", shared.ErrNotFound, id)
	}
	return album, err
}

// Update modifies an existing album in the database
func (r *AlbumRepository) Update(album *models.Album) error {
	if err := album.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now()
	album.SetUpdatedAt(now)

	query := `
		UPDATE albums
		SET title = ?, artist_id = ?, thumb_small = ?, thumb_medium = ?, thumb_large = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	args := []any{album.Title, nullable(album.ArtistID)}
	args = append(args, thumbArgs(album.Thumbnail)...)
	args = append(args, now, album.ID())

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update album: %w", err)
	}

	return checkAffected(result, fmt.Errorf("%w: album not found or already deleted: %s", shared.ErrNotFound, album.ID()))
}

// Delete soft-deletes an album by ID. Its songs stay in the library without an album.
func (r *AlbumRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	result, err := tx.Exec(`UPDATE albums SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete album: %w", err)
	}
	if err := checkAffected(result, fmt.Errorf("%w: album not found or already deleted: %s", shared.ErrNotFound, id)); err != nil {
		return err
	}

	if _, err := tx.Exec(`UPDATE songs SET album_id = NULL, updated_at = ? WHERE album_id = ?`, now, id); err != nil {
		return fmt.Errorf("failed to detach songs: %w", err)
	}

	return tx.Commit()
}

// List retrieves all albums matching the given criteria, excluding soft-deleted albums.
//
// Supported criteria: "artist_id" and "query" (case-insensitive title substring).
func (r *AlbumRepository) List(criteria map[string]any) ([]*models.Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums WHERE deleted_at IS NULL`
	args := []any{}

	if artistID, ok := criteria["artist_id"].(string); ok && artistID != "" {
		query += " AND artist_id = ?"
		args = append(args, artistID)
	}

	if q, ok := criteria["query"].(string); ok && q != "" {
		query += " AND LOWER(title) LIKE ?"
		args = append(args, likePattern(q))
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query albums: %w", err)
	}
	defer rows.Close()

	var albums []*models.Album
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, album)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return albums, nil
}

func scanAlbum(row rowScanner) (*models.Album, error) {
	var (
		id, title            string
		sequence             int
		artistID             sql.NullString
		small, medium, large string
		createdAt, updatedAt time.Time
		deletedAt            sql.NullTime
	)

	err := row.Scan(&id, &sequence, &title, &artistID, &small, &medium, &large, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan album: %w", err)
	}

	album := models.NewAlbum(sequence, title, artistID.String)
	album.SetID(id)
	album.Thumbnail = models.Thumbnail{Small: small, Medium: medium, Large: large}
	album.SetCreatedAt(createdAt)
	album.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		album.SetDeletedAt(&deletedAt.Time)
	}

	return album, nil
}
