package library

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher follows the media directory and reacts when files referenced by songs disappear.
type Watcher struct {
	svc     *Service
	watcher *fsnotify.Watcher
	logger  *log.Logger
	prune   bool

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	delay   time.Duration

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewWatcher starts watching svc's media directory.
//
// Removals are collected for delay before they are checked. With prune set, songs whose media file is
// gone are deleted along with their artwork; otherwise they are only logged.
func NewWatcher(svc *Service, prune bool, delay time.Duration, logger *log.Logger) (*Watcher, error) {
	if err := svc.files.EnsureDirs(); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fw.Add(svc.files.MediaDir()); err != nil {
		fw.Close()
		return nil, err
	}

	if logger == nil {
		logger = svc.logger
	}

	w := &Watcher{
		svc:     svc,
		watcher: fw,
		logger:  logger,
		prune:   prune,
		pending: make(map[string]struct{}),
		delay:   delay,
		done:    make(chan struct{}),
	}

	w.wg.Add(1)
	go w.run()

	return w, nil
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.mu.Unlock()

		w.closeErr = w.watcher.Close()
		w.wg.Wait()
	})
	return w.closeErr
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("media watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.schedule(name)
	case event.Op&fsnotify.Create != 0:
		w.logger.Debug("new file in media directory", "file", name)
	}
}

func (w *Watcher) schedule(name string) {
	select {
	case <-w.done:
		return
	default:
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[name] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		names := w.pending
		w.pending = make(map[string]struct{})
		if w.timer == timer {
			w.timer = nil
		}
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
			w.check(names)
		}
	})
	w.timer = timer
}

func (w *Watcher) check(names map[string]struct{}) {
	for name := range names {
		if w.svc.files.Exists(w.svc.files.MediaPath(name)) {
			continue
		}

		songs, err := w.svc.SongsByMediaFile(name)
		if err != nil {
			w.logger.Error("failed to look up songs for removed file", "file", name, "error", err)
			continue
		}

		for _, song := range songs {
			if !w.prune {
				w.logger.Warn("media file missing", "song", song.ID(), "title", song.Title, "file", name)
				continue
			}
			if err := w.svc.DeleteSong(song.ID()); err != nil {
				w.logger.Error("failed to prune song", "song", song.ID(), "error", err)
				continue
			}
			w.logger.Info("pruned song with missing media", "song", song.ID(), "file", name)
		}
	}
}
