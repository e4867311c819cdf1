package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunebox/internal/library"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

// resumeTail is how close to the end a stored position may be before a song restarts from the top.
const resumeTail = 5.0

// Session plays a [Queue] through a [Backend] and keeps the history up to date.
type Session struct {
	backend Backend
	queue   *Queue
	history *HistoryStore
	files   *library.Files
	logger  *log.Logger

	mu      sync.Mutex
	current *models.Song
	paused  bool
}

// NewSession wires a queue to a backend. history may be nil to play without recording.
func NewSession(backend Backend, queue *Queue, history *HistoryStore, files *library.Files, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	return &Session{backend: backend, queue: queue, history: history, files: files, logger: logger}
}

func (s *Session) Queue() *Queue { return s.queue }

// Current returns the song being played, or nil when stopped.
func (s *Session) Current() *models.Song {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Play starts the queue's current song, resuming from its stored position.
func (s *Session) Play() error {
	song, err := s.queue.Current()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.play(song)
}

// play must be called with s.mu held.
func (s *Session) play(song *models.Song) error {
	s.savePosition()

	if song.MediaFile == "" {
		return fmt.Errorf("%w: song %q has no media file", shared.ErrMissingFile, song.Title)
	}
	path := s.files.MediaPath(song.MediaFile)
	if !s.files.Exists(path) {
		return fmt.Errorf("%w: %s", shared.ErrMissingFile, song.MediaFile)
	}

	start := s.resumePoint(song)
	if err := s.backend.Load(path, start); err != nil {
		return err
	}
	s.logger.Info("playing", "song", song.ID(), "title", song.Title, "start", start)

	s.current = song
	s.paused = false
	if s.history != nil {
		if err := s.history.Add(song); err != nil {
			s.logger.Warn("failed to record history", "song", song.ID(), "error", err)
		}
	}
	return nil
}

func (s *Session) resumePoint(song *models.Song) float64 {
	if s.history == nil {
		return 0
	}
	pos, err := s.history.ResumePosition(song.ID())
	if err != nil {
		s.logger.Warn("failed to read resume position", "song", song.ID(), "error", err)
		return 0
	}
	if song.Duration > 0 && pos >= float64(song.Duration)-resumeTail {
		return 0
	}
	return pos
}

// savePosition records where the current song is. Must be called with s.mu held.
func (s *Session) savePosition() {
	if s.current == nil || s.history == nil {
		return
	}
	pos, err := s.backend.Position()
	if err != nil {
		s.logger.Debug("could not read position", "error", err)
		return
	}
	if err := s.history.UpdatePosition(s.current.ID(), pos); err != nil {
		s.logger.Warn("failed to save position", "song", s.current.ID(), "error", err)
	}
}

// Next plays the following song. ok is false when the queue is exhausted.
func (s *Session) Next() (ok bool, err error) {
	song, ok := s.queue.Next()
	if !ok {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return true, s.play(song)
}

// Previous plays the song before the current one.
func (s *Session) Previous() (ok bool, err error) {
	song, ok := s.queue.Previous()
	if !ok {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return true, s.play(song)
}

// TogglePause pauses or resumes playback and returns the new paused state.
func (s *Session) TogglePause() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return false, shared.ErrPlayerNotRunning
	}
	if s.paused {
		if err := s.backend.Resume(); err != nil {
			return s.paused, err
		}
		s.paused = false
		return false, nil
	}

	if err := s.backend.Pause(); err != nil {
		return s.paused, err
	}
	s.paused = true
	s.savePosition()
	return true, nil
}

// SeekBy moves playback by delta seconds, clamped at the start of the song.
func (s *Session) SeekBy(delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return shared.ErrPlayerNotRunning
	}
	pos, err := s.backend.Position()
	if err != nil {
		return err
	}
	target := max(pos+delta, 0)
	if d := float64(s.current.Duration); d > 0 && target > d {
		target = d
	}
	return s.backend.Seek(target)
}

// Stop saves the position and stops playback.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.savePosition()
	s.current = nil
	s.paused = false
	return s.backend.Stop()
}

// Run polls the backend every interval, saving the position and moving on when a song ends.
//
// It returns nil when the queue is exhausted or ctx is cancelled; in both cases playback is stopped.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.Stop()
		case <-ticker.C:
		}

		finished, err := s.tick()
		if err != nil {
			return err
		}
		if finished {
			return s.Stop()
		}
	}
}

func (s *Session) tick() (finished bool, err error) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == nil {
		return true, nil
	}

	idle, err := s.backend.Idle()
	if err != nil {
		return false, err
	}
	if !idle {
		s.mu.Lock()
		s.savePosition()
		s.mu.Unlock()
		return false, nil
	}

	if s.history != nil {
		if err := s.history.UpdatePosition(current.ID(), 0); err != nil {
			s.logger.Warn("failed to reset position", "song", current.ID(), "error", err)
		}
	}
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	for range s.queue.Len() {
		ok, err := s.Next()
		switch {
		case !ok:
			return true, nil
		case errors.Is(err, shared.ErrMissingFile):
			s.logger.Warn("skipping song", "error", err)
		default:
			return false, err
		}
	}
	return true, nil
}
