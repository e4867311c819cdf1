package player

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tunebox/internal/library"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
	tu "github.com/desertthunder/tunebox/internal/testing"
)

func newSong(id, title string, duration int) *models.Song {
	s := models.NewSong(0, title, id)
	s.SetID(id)
	s.MediaFile = id + ".m4a"
	s.Duration = duration
	return s
}

func ids(songs []*models.Song) []string {
	out := make([]string, len(songs))
	for i, s := range songs {
		out[i] = s.ID()
	}
	return out
}

func TestQueue(t *testing.T) {
	a, b, c := newSong("a", "A", 100), newSong("b", "B", 100), newSong("c", "C", 100)

	t.Run("Next And Previous", func(t *testing.T) {
		q := NewQueue(a, b, c)

		cur, err := q.Current()
		if err != nil || cur.ID() != "a" {
			t.Fatalf("expected a, got %v (%v)", cur, err)
		}

		for _, want := range []string{"b", "c"} {
			s, ok := q.Next()
			if !ok || s.ID() != want {
				t.Fatalf("expected %s, got %v (ok=%v)", want, s, ok)
			}
		}

		if _, ok := q.Next(); ok {
			t.Error("expected end of queue with repeat off")
		}
		if cur, _ := q.Current(); cur.ID() != "c" {
			t.Errorf("cursor should stay on c, got %s", cur.ID())
		}

		if s, ok := q.Previous(); !ok || s.ID() != "b" {
			t.Errorf("expected b, got %v", s)
		}
		q.Previous()
		if _, ok := q.Previous(); ok {
			t.Error("expected start of queue with repeat off")
		}
	})

	t.Run("Repeat Modes", func(t *testing.T) {
		q := NewQueue(a, b)

		q.SetRepeat(RepeatOne)
		if s, ok := q.Next(); !ok || s.ID() != "a" {
			t.Errorf("repeat one should stay on a, got %v", s)
		}

		q.SetRepeat(RepeatAll)
		q.Next()
		if s, ok := q.Next(); !ok || s.ID() != "a" {
			t.Errorf("repeat all should wrap to a, got %v", s)
		}
		if s, ok := q.Previous(); !ok || s.ID() != "b" {
			t.Errorf("repeat all should wrap back to b, got %v", s)
		}
	})

	t.Run("Shuffle Keeps Current First", func(t *testing.T) {
		songs := make([]*models.Song, 20)
		for i := range songs {
			songs[i] = newSong(fmt.Sprintf("s%02d", i), "S", 10)
		}
		q := NewQueue(songs...)
		q.Jump(7)

		q.SetShuffle(true)
		order, pos := q.Songs()
		if pos != 0 || order[0].ID() != "s07" {
			t.Fatalf("expected s07 at cursor 0, got %s at %d", order[pos].ID(), pos)
		}

		got := ids(order)
		slices.Sort(got)
		if !slices.Equal(got, ids(songs)) {
			t.Errorf("shuffle should be a permutation, got %v", got)
		}

		q.Next()
		q.Next()
		cur, _ := q.Current()

		q.SetShuffle(false)
		order, pos = q.Songs()
		if !slices.Equal(ids(order), ids(songs)) {
			t.Errorf("unshuffle should restore order, got %v", ids(order))
		}
		if order[pos].ID() != cur.ID() {
			t.Errorf("unshuffle should keep %s current, got %s", cur.ID(), order[pos].ID())
		}
	})

	t.Run("Empty", func(t *testing.T) {
		q := NewQueue()
		if _, err := q.Current(); !errors.Is(err, shared.ErrQueueEmpty) {
			t.Errorf("expected ErrQueueEmpty, got %v", err)
		}
		if _, ok := q.Next(); ok {
			t.Error("empty queue has no next")
		}
		q.SetShuffle(true)
		if _, err := q.Jump(0); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestParseRepeatMode(t *testing.T) {
	tests := []struct {
		in      string
		want    RepeatMode
		wantErr bool
	}{
		{"", RepeatOff, false},
		{"off", RepeatOff, false},
		{"One", RepeatOne, false},
		{"all", RepeatAll, false},
		{"sometimes", RepeatOff, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRepeatMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func setupHistory(t *testing.T) *HistoryStore {
	t.Helper()
	store, err := NewHistoryStore(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("failed to create history store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHistoryStore(t *testing.T) {
	t.Run("Recent Order And Dedupe", func(t *testing.T) {
		store := setupHistory(t)
		for _, id := range []string{"song1", "song2", "song3"} {
			if err := store.Add(newSong(id, id, 100)); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
		}

		entries, err := store.Recent(10)
		if err != nil {
			t.Fatalf("Recent failed: %v", err)
		}
		if got := entrySongs(entries); !slices.Equal(got, []string{"song3", "song2", "song1"}) {
			t.Errorf("unexpected order %v", got)
		}

		store.Add(newSong("song1", "Song 1 Again", 100))
		entries, _ = store.Recent(10)
		if got := entrySongs(entries); !slices.Equal(got, []string{"song1", "song3", "song2"}) {
			t.Errorf("replayed song should move to the front, got %v", got)
		}
		if entries[0].Title != "Song 1 Again" {
			t.Errorf("expected updated title, got %q", entries[0].Title)
		}

		limited, _ := store.Recent(2)
		if len(limited) != 2 {
			t.Errorf("expected 2 entries, got %d", len(limited))
		}
	})

	t.Run("Resume Position", func(t *testing.T) {
		store := setupHistory(t)
		song := newSong("song1", "Song", 300)

		if pos, err := store.ResumePosition("song1"); err != nil || pos != 0 {
			t.Errorf("expected 0 for unknown song, got %v (%v)", pos, err)
		}
		if err := store.UpdatePosition("song1", 42); err != nil {
			t.Errorf("updating an unknown song should be a no-op, got %v", err)
		}

		store.Add(song)
		store.UpdatePosition("song1", 42.5)
		if pos, _ := store.ResumePosition("song1"); pos != 42.5 {
			t.Errorf("expected 42.5, got %v", pos)
		}

		store.Add(newSong("song2", "Other", 10))
		store.Add(song)
		if pos, _ := store.ResumePosition("song1"); pos != 42.5 {
			t.Errorf("Add should keep the resume point, got %v", pos)
		}
	})

	t.Run("Remove And Clear", func(t *testing.T) {
		store := setupHistory(t)
		store.Add(newSong("a", "A", 1))
		store.Add(newSong("b", "B", 1))

		if err := store.Remove("a"); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		entries, _ := store.Recent(0)
		if got := entrySongs(entries); !slices.Equal(got, []string{"b"}) {
			t.Errorf("expected only b, got %v", got)
		}

		if err := store.Clear(); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		entries, _ = store.Recent(0)
		if len(entries) != 0 {
			t.Errorf("expected empty history, got %d", len(entries))
		}
		if err := store.Add(newSong("c", "C", 1)); err != nil {
			t.Errorf("Add after Clear failed: %v", err)
		}
	})

	t.Run("Persists Across Reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.db")
		store, err := NewHistoryStore(path)
		if err != nil {
			t.Fatal(err)
		}
		store.Add(newSong("a", "A", 100))
		store.UpdatePosition("a", 12)
		store.Close()

		reopened, err := NewHistoryStore(path)
		if err != nil {
			t.Fatal(err)
		}
		defer reopened.Close()
		if pos, _ := reopened.ResumePosition("a"); pos != 12 {
			t.Errorf("expected 12 after reopen, got %v", pos)
		}
	})
}

func entrySongs(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.SongID
	}
	return out
}

// fakeBackend records calls and plays files instantly.
type fakeBackend struct {
	mu       sync.Mutex
	loaded   []string
	starts   []float64
	position float64
	idle     bool
	paused   bool
	loadErr  error
}

func (f *fakeBackend) Load(path string, start float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = append(f.loaded, filepath.Base(path))
	f.starts = append(f.starts, start)
	f.position = start
	f.idle = false
	f.paused = false
	return nil
}

func (f *fakeBackend) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
	return nil
}

func (f *fakeBackend) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
	return nil
}

func (f *fakeBackend) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idle = true
	return nil
}

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) Seek(seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = seconds
	return nil
}

func (f *fakeBackend) Position() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position, nil
}

func (f *fakeBackend) Idle() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idle, nil
}

func (f *fakeBackend) set(position float64, idle bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = position
	f.idle = idle
}

func (f *fakeBackend) loads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.loaded)
}

func setupSession(t *testing.T, songs ...*models.Song) (*Session, *fakeBackend, *HistoryStore, *library.Files) {
	t.Helper()

	files := library.NewFiles(shared.LibraryConfig{Dir: t.TempDir(), MediaDir: "media", ImagesDir: "images"})
	if err := files.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	for _, s := range songs {
		tu.MustWriteFile(t, files.MediaPath(s.MediaFile), []byte("audio"))
	}

	backend := &fakeBackend{}
	history := setupHistory(t)
	session := NewSession(backend, NewQueue(songs...), history, files, shared.NewLogger(&bytes.Buffer{}))
	return session, backend, history, files
}

func TestSession(t *testing.T) {
	t.Run("Resumes From History", func(t *testing.T) {
		a, b := newSong("a", "A", 200), newSong("b", "B", 200)
		session, backend, history, _ := setupSession(t, a, b)

		history.Add(a)
		history.UpdatePosition("a", 61)

		if err := session.Play(); err != nil {
			t.Fatalf("Play failed: %v", err)
		}
		if backend.starts[0] != 61 {
			t.Errorf("expected start at 61, got %v", backend.starts[0])
		}

		backend.set(90, false)
		if ok, err := session.Next(); !ok || err != nil {
			t.Fatalf("Next failed: ok=%v err=%v", ok, err)
		}
		if pos, _ := history.ResumePosition("a"); pos != 90 {
			t.Errorf("leaving a song should save its position, got %v", pos)
		}
		if session.Current().ID() != "b" {
			t.Errorf("expected b current, got %s", session.Current().ID())
		}

		entries, _ := history.Recent(1)
		if entries[0].SongID != "b" {
			t.Errorf("expected b most recent, got %s", entries[0].SongID)
		}
	})

	t.Run("Restarts Near End", func(t *testing.T) {
		a := newSong("a", "A", 200)
		session, backend, history, _ := setupSession(t, a)
		history.Add(a)
		history.UpdatePosition("a", 198)

		session.Play()
		if backend.starts[0] != 0 {
			t.Errorf("expected restart from 0, got %v", backend.starts[0])
		}
	})

	t.Run("Missing Media", func(t *testing.T) {
		a := newSong("a", "A", 200)
		session, backend, _, files := setupSession(t, a)
		tu.AssertFileExists(t, files.MediaPath("a.m4a"))

		ghost := newSong("ghost", "Ghost", 10)
		session.Queue().Add(ghost)
		session.Queue().Jump(1)

		if err := session.Play(); !errors.Is(err, shared.ErrMissingFile) {
			t.Errorf("expected ErrMissingFile, got %v", err)
		}
		if len(backend.loads()) != 0 {
			t.Error("nothing should be loaded")
		}
	})

	t.Run("Pause And Seek", func(t *testing.T) {
		a := newSong("a", "A", 100)
		session, backend, history, _ := setupSession(t, a)

		if _, err := session.TogglePause(); !errors.Is(err, shared.ErrPlayerNotRunning) {
			t.Errorf("expected ErrPlayerNotRunning before play, got %v", err)
		}

		session.Play()
		backend.set(30, false)

		paused, err := session.TogglePause()
		if err != nil || !paused {
			t.Fatalf("expected paused, got %v (%v)", paused, err)
		}
		if pos, _ := history.ResumePosition("a"); pos != 30 {
			t.Errorf("pausing should save the position, got %v", pos)
		}
		if paused, _ := session.TogglePause(); paused {
			t.Error("expected resumed")
		}

		session.SeekBy(-45)
		if pos, _ := backend.Position(); pos != 0 {
			t.Errorf("seek should clamp at 0, got %v", pos)
		}
		session.SeekBy(500)
		if pos, _ := backend.Position(); pos != 100 {
			t.Errorf("seek should clamp at duration, got %v", pos)
		}
	})

	t.Run("Run Advances And Finishes", func(t *testing.T) {
		a, b, c := newSong("a", "A", 100), newSong("b", "B", 100), newSong("c", "C", 100)
		session, backend, history, files := setupSession(t, a, b, c)
		if err := files.RemoveMedia(b.MediaFile); err != nil {
			t.Fatal(err)
		}

		history.Add(a)
		history.UpdatePosition("a", 50)
		session.Play()

		done := make(chan error, 1)
		go func() { done <- session.Run(context.Background(), 5*time.Millisecond) }()

		// a plays to the end; b is missing so c follows
		backend.set(100, true)
		waitUntil(t, func() bool { return len(backend.loads()) == 2 })

		backend.set(100, true)
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Run returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not finish with the queue")
		}

		if got := backend.loads(); !slices.Equal(got, []string{"a.m4a", "c.m4a"}) {
			t.Errorf("unexpected play order %v", got)
		}
		if pos, _ := history.ResumePosition("a"); pos != 0 {
			t.Errorf("finished song should not resume, got %v", pos)
		}
		if session.Current() != nil {
			t.Error("expected no current song after the queue ends")
		}
	})

	t.Run("Run Stops On Cancel", func(t *testing.T) {
		a := newSong("a", "A", 100)
		session, backend, history, _ := setupSession(t, a)
		session.Play()
		backend.set(33, false)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- session.Run(ctx, time.Hour) }()
		cancel()

		if err := <-done; err != nil {
			t.Fatalf("Run returned %v", err)
		}
		if pos, _ := history.ResumePosition("a"); pos != 33 {
			t.Errorf("expected position saved on stop, got %v", pos)
		}
		if idle, _ := backend.Idle(); !idle {
			t.Error("backend should be stopped")
		}
	})
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// fakeMpv speaks enough of mpv's JSON IPC to drive [MpvPlayer].
type fakeMpv struct {
	mu       sync.Mutex
	commands [][]any
	props    map[string]any
}

func startFakeMpv(t *testing.T) (string, *fakeMpv) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("unix sockets")
	}

	sock := filepath.Join(t.TempDir(), "mpv.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	f := &fakeMpv{props: map[string]any{"idle-active": true, "pause": false}}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go f.serve(conn)
		}
	}()
	return sock, f
}

func (f *fakeMpv) serve(conn net.Conn) {
	defer conn.Close()

	enc := json.NewEncoder(conn)
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var req mpvCommand
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			return
		}

		// events are interleaved with replies
		enc.Encode(map[string]any{"event": "property-change"})
		data, errMsg := f.handle(req.Command)
		enc.Encode(map[string]any{"request_id": req.RequestID, "error": errMsg, "data": data})
	}
}

func (f *fakeMpv) handle(cmd []any) (any, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)

	switch cmd[0] {
	case "get_property":
		v, ok := f.props[cmd[1].(string)]
		if !ok {
			return nil, errPropertyUnavailable
		}
		return v, "success"
	case "set_property":
		f.props[cmd[1].(string)] = cmd[2]
	case "loadfile":
		f.props["path"] = cmd[1]
		f.props["idle-active"] = false
		f.props["time-pos"] = 0.0
	case "seek":
		f.props["time-pos"] = cmd[1]
	case "stop":
		f.props["idle-active"] = true
		delete(f.props, "time-pos")
	case "quit":
	default:
		return nil, "invalid parameter"
	}
	return nil, "success"
}

func (f *fakeMpv) prop(name string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.props[name]
}

func (f *fakeMpv) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.commands))
	for i, c := range f.commands {
		out[i] = c[0].(string)
	}
	return out
}

func TestMpvPlayer(t *testing.T) {
	t.Run("Attaches To Running Socket", func(t *testing.T) {
		sock, fake := startFakeMpv(t)
		p := NewMpvPlayer(shared.PlayerConfig{MpvPath: "/nonexistent/mpv", SocketPath: sock}, shared.NewLogger(&bytes.Buffer{}))
		defer p.Close()

		if idle, err := p.Idle(); err != nil || !idle {
			t.Errorf("expected idle before load, got %v (%v)", idle, err)
		}
		if pos, err := p.Position(); err != nil || pos != 0 {
			t.Errorf("expected 0 position while idle, got %v (%v)", pos, err)
		}

		if err := p.Load("/music/a.m4a", 12.5); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got := fake.prop("start"); got != "12.500" {
			t.Errorf("expected start option 12.500, got %v", got)
		}
		if idle, _ := p.Idle(); idle {
			t.Error("expected playing after load")
		}

		if err := p.Pause(); err != nil {
			t.Fatalf("Pause failed: %v", err)
		}
		if paused, _ := p.Paused(); !paused {
			t.Error("expected paused")
		}
		p.Resume()

		if err := p.Seek(40); err != nil {
			t.Fatalf("Seek failed: %v", err)
		}
		if pos, _ := p.Position(); pos != 40 {
			t.Errorf("expected 40, got %v", pos)
		}

		p.Load("/music/b.m4a", 0)
		if got := fake.prop("start"); got != "none" {
			t.Errorf("start should be reset for later files, got %v", got)
		}

		if err := p.Stop(); err != nil {
			t.Fatalf("Stop failed: %v", err)
		}
		if err := p.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
		tu.AssertFileExists(t, sock)

		if slices.Contains(fake.names(), "quit") {
			t.Error("an attached mpv should not be told to quit")
		}
	})

	t.Run("Rejected Command", func(t *testing.T) {
		sock, _ := startFakeMpv(t)
		p := NewMpvPlayer(shared.PlayerConfig{SocketPath: sock}, shared.NewLogger(&bytes.Buffer{}))

		if err := p.do([]any{"frobnicate"}); err == nil {
			t.Error("expected error for rejected command")
		}
	})

	t.Run("Not Running", func(t *testing.T) {
		sock := filepath.Join(t.TempDir(), "none.sock")
		p := NewMpvPlayer(shared.PlayerConfig{MpvPath: "/nonexistent/mpv", SocketPath: sock}, shared.NewLogger(&bytes.Buffer{}))

		if err := p.Pause(); !errors.Is(err, shared.ErrPlayerNotRunning) {
			t.Errorf("expected ErrPlayerNotRunning, got %v", err)
		}
		if err := p.Load("/music/a.m4a", 0); err == nil {
			t.Error("expected error when mpv cannot start")
		}
		if err := p.Close(); err != nil {
			t.Errorf("Close without a process should succeed, got %v", err)
		}
	})
}
