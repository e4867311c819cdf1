package player

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/desertthunder/tunebox/internal/models"
)

var (
	historyBucket = []byte("history")
	// song id -> key in historyBucket
	historyIndexBucket = []byte("history_index")
)

// Entry is one song in the play history.
type Entry struct {
	SongID   string    `json:"song_id"`
	Title    string    `json:"title"`
	PlayedAt time.Time `json:"played_at"`
	Position float64   `json:"position"` // resume point in seconds, 0 when played through
}

// HistoryStore keeps recently played songs, most recent last, in a bbolt file.
//
// Each song appears at most once. Keys are the bucket's sequence numbers so iteration order is play order.
type HistoryStore struct {
	db *bbolt.DB
}

// NewHistoryStore opens or creates the history database at path.
func NewHistoryStore(path string) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("could not create history directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open history database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{historyBucket, historyIndexBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create history buckets: %w", err)
	}

	return &HistoryStore{db: db}, nil
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// Add records song as the most recently played, keeping any stored resume position.
func (h *HistoryStore) Add(song *models.Song) error {
	return h.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(historyBucket)
		idx := tx.Bucket(historyIndexBucket)

		entry := Entry{SongID: song.ID(), Title: song.Title}
		if old := idx.Get([]byte(song.ID())); old != nil {
			if v := b.Get(old); v != nil {
				var prev Entry
				if err := json.Unmarshal(v, &prev); err == nil {
					entry.Position = prev.Position
				}
			}
			if err := b.Delete(old); err != nil {
				return err
			}
		}
		entry.PlayedAt = time.Now().UTC()

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := sequenceKey(seq)

		value, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("error serializing history entry: %w", err)
		}
		if err := b.Put(key, value); err != nil {
			return err
		}
		return idx.Put([]byte(song.ID()), key)
	})
}

// UpdatePosition stores the resume point for a song already in the history. Unknown songs are ignored.
func (h *HistoryStore) UpdatePosition(songID string, position float64) error {
	return h.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(historyBucket)
		key := tx.Bucket(historyIndexBucket).Get([]byte(songID))
		if key == nil {
			return nil
		}
		v := b.Get(key)
		if v == nil {
			return nil
		}

		var entry Entry
		if err := json.Unmarshal(v, &entry); err != nil {
			return fmt.Errorf("error deserializing history entry: %w", err)
		}
		entry.Position = max(position, 0)

		value, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put(key, value)
	})
}

// Recent returns up to limit entries, most recent first. A limit of 0 or less returns everything.
func (h *HistoryStore) Recent(limit int) ([]Entry, error) {
	var entries []Entry

	err := h.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(historyBucket).Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(entries) < limit); k, v = c.Prev() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("error deserializing history entry: %w", err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ResumePosition returns the stored position for songID, or 0 when it was never played or finished.
func (h *HistoryStore) ResumePosition(songID string) (float64, error) {
	var pos float64
	err := h.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket(historyIndexBucket).Get([]byte(songID))
		if key == nil {
			return nil
		}
		v := tx.Bucket(historyBucket).Get(key)
		if v == nil {
			return nil
		}
		var entry Entry
		if err := json.Unmarshal(v, &entry); err != nil {
			return fmt.Errorf("error deserializing history entry: %w", err)
		}
		pos = entry.Position
		return nil
	})
	return pos, err
}

// Remove drops a song from the history.
func (h *HistoryStore) Remove(songID string) error {
	return h.db.Update(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(historyIndexBucket)
		key := idx.Get([]byte(songID))
		if key == nil {
			return nil
		}
		if err := tx.Bucket(historyBucket).Delete(key); err != nil {
			return err
		}
		return idx.Delete([]byte(songID))
	})
}

// Clear removes every entry.
func (h *HistoryStore) Clear() error {
	return h.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{historyBucket, historyIndexBucket} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (h *HistoryStore) Close() error {
	return h.db.Close()
}
