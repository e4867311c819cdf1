package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

const artistColumns = `id, sequence, name, channel_id, thumb_small, thumb_medium, thumb_large, created_at, updated_at, deleted_at`

// ArtistRepository implements models.Repository[*models.Artist].
//
// Artists resolved from YouTube are unique by channel id among live rows.
type ArtistRepository struct {
	db *sql.DB
}

// NewArtistRepository creates a new ArtistRepository with the given database connection
func NewArtistRepository(db *sql.DB) *ArtistRepository {
	return &ArtistRepository{db: db}
}

// Create inserts a new artist into the database with generated ID and sequence
func (r *ArtistRepository) Create(artist *models.Artist) error {
	if err := artist.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "artists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	artist.SetID(id)
	artist.SetSequence(sequence)

	query := `
		INSERT INTO artists (id, sequence, name, channel_id, thumb_small, thumb_medium, thumb_large, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	args := []any{id, sequence, artist.Name, artist.ChannelID}
	args = append(args, thumbArgs(artist.Thumbnail)...)
	args = append(args, artist.CreatedAt(), artist.UpdatedAt())

	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to insert artist: %w", err)
	}

	return nil
}

// Get retrieves an artist by ID, excluding soft-deleted artists
func (r *ArtistRepository) Get(id string) (*models.Artist, error) {
	return r.scanOne(r.db.QueryRow(`SELECT `+artistColumns+` FROM artists WHERE id = ? AND deleted_at IS NULL`, id), id)
}

// GetByChannelID retrieves the live artist resolved from a YouTube channel
func (r *ArtistRepository) GetByChannelID(channelID string) (*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists WHERE channel_id = ? AND channel_id != '' AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, channelID), channelID)
}

// getByName finds a live artist without a channel by case-insensitive name
func (r *ArtistRepository) getByName(name string) (*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists
		WHERE channel_id = '' AND LOWER(name) = LOWER(?) AND deleted_at IS NULL
		ORDER BY sequence ASC LIMIT 1`
	return r.scanOne(r.db.QueryRow(query, name), name)
}

// FindOrCreate returns the artist for channelID, creating it with name and thumb when none exists.
//
// Without a channel id the artist is matched by name among artists that have no channel.
// The boolean result reports whether a new artist was created.
// A concurrent insert of the same channel is resolved by reading the winner back.
func (r *ArtistRepository) FindOrCreate(channelID, name string, thumb models.Thumbnail) (*models.Artist, bool, error) {
	var (
		existing *models.Artist
		err      error
	)
	if channelID != "" {
		existing, err = r.GetByChannelID(channelID)
	} else {
		existing, err = r.getByName(name)
	}
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, err
	}

	artist := models.NewArtist(0, name, channelID)
	artist.Thumbnail = thumb
	if err := r.Create(artist); err != nil {
		if channelID != "" && isUniqueViolation(err) {
			winner, getErr := r.GetByChannelID(channelID)
			if getErr != nil {
				return nil, false, getErr
			}
			return winner, false, nil
		}
		return nil, false, err
	}

	return artist, true, nil
}

// Update modifies an existing artist in the database
func (r *ArtistRepository) Update(artist *models.Artist) error {
	if err := artist.Validate(); err != nil {
		return fmt.Errorf("%w: validation failed: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now()
	artist.SetUpdatedAt(now)

	query := `
		UPDATE artists
		SET name = ?, thumb_small = ?, thumb_medium = ?, thumb_large = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	args := []any{artist.Name}
	args = append(args, thumbArgs(artist.Thumbnail)...)
	args = append(args, now, artist.ID())

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update artist: %w", err)
	}

	return checkAffected(result, fmt.Errorf("%w: artist not found or already deleted: %s", shared.ErrNotFound, artist.ID()))
}

// Delete soft-deletes an artist by ID, detaching its songs and albums.
func (r *ArtistRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	result, err := tx.Exec(`UPDATE artists SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete artist: %w", err)
	}
	if err := checkAffected(result, fmt.Errorf("%w: artist not found or already deleted: %s", shared.ErrNotFound, id)); err != nil {
		return err
	}

	if _, err := tx.Exec(`UPDATE songs SET artist_id = NULL, updated_at = ? WHERE artist_id = ?`, now, id); err != nil {
		return fmt.Errorf("failed to detach songs: %w", err)
	}
	if _, err := tx.Exec(`UPDATE albums SET artist_id = NULL, updated_at = ? WHERE artist_id = ?`, now, id); err != nil {
		return fmt.Errorf("failed to detach albums: %w", err)
	}

	return tx.Commit()
}

// List retrieves all artists matching the given criteria, excluding soft-deleted artists.
//
// Supported criteria: "query" (case-insensitive name substring).
func (r *ArtistRepository) List(criteria map[string]any) ([]*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists WHERE deleted_at IS NULL`
	args := []any{}

	if q, ok := criteria["query"].(string); ok && q != "" {
		query += " AND LOWER(name) LIKE ?"
		args = append(args, likePattern(q))
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	var artists []*models.Artist
	for rows.Next() {
		artist, err := scanArtist(rows)
		if err != nil {
			return nil, err
		}
		artists = append(artists, artist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return artists, nil
}

// scanOne scans a single row into a [models.Artist]
func (r *ArtistRepository) scanOne(row *sql.Row, key string) (*models.Artist, error) {
	artist, err := scanArtist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: artist %s", shared.ErrNotFound, key)
	}
	return artist, err
}

func scanArtist(row rowScanner) (*models.Artist, error) {
	var (
		id, name, channelID  string
		sequence             int
		small, medium, large string
		createdAt, updatedAt time.Time
		deletedAt            sql.NullTime
	)

	err := row.Scan(&id, &sequence, &name, &channelID, &small, &medium, &large, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan artist: %w", err)
	}

	artist := models.NewArtist(sequence, name, channelID)
	artist.SetID(id)
	artist.Thumbnail = models.Thumbnail{Small: small, Medium: medium, Large: large}
	artist.SetCreatedAt(createdAt)
	artist.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		artist.SetDeletedAt(&deletedAt.Time)
	}

	return artist, nil
}
