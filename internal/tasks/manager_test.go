package tasks

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tunebox/internal/library"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/services"
	"github.com/desertthunder/tunebox/internal/shared"
	tu "github.com/desertthunder/tunebox/internal/testing"
)

// mediaServer serves fake video bytes and artwork.
//
// With a gate set, requests without a Range header send half the body and then hold the connection
// until the gate closes or the client goes away.
type mediaServer struct {
	*httptest.Server
	data  []byte
	image []byte
	gate  chan struct{}

	mu     sync.Mutex
	ranges []string
}

func newMediaServer(t *testing.T, gated bool) *mediaServer {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 5), 90, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}

	s := &mediaServer{data: bytes.Repeat([]byte("video-bytes "), 4096), image: buf.Bytes()}
	if gated {
		s.gate = make(chan struct{})
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(func() {
		s.release()
		s.Close()
	})
	return s
}

func (s *mediaServer) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/art.png":
		w.Header().Set("Content-Type", "image/png")
		w.Write(s.image)
		return
	case !strings.HasPrefix(r.URL.Path, "/media/"):
		http.NotFound(w, r)
		return
	}

	rng := r.Header.Get("Range")
	s.mu.Lock()
	s.ranges = append(s.ranges, rng)
	s.mu.Unlock()

	if s.gate != nil && rng == "" {
		half := len(s.data) / 2
		w.Header().Set("Content-Length", strconv.Itoa(len(s.data)))
		w.WriteHeader(http.StatusOK)
		w.Write(s.data[:half])
		w.(http.Flusher).Flush()

		select {
		case <-s.gate:
			w.Write(s.data[half:])
		case <-r.Context().Done():
		}
		return
	}

	http.ServeContent(w, r, "video.mp4", time.Time{}, bytes.NewReader(s.data))
}

func (s *mediaServer) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		select {
		case <-s.gate:
		default:
			close(s.gate)
		}
	}
}

func (s *mediaServer) rangeRequests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.ranges {
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

func (s *mediaServer) stream(videoID, channelID string) models.Stream {
	return models.Stream{
		VideoID:       videoID,
		URL:           s.URL + "/media/" + videoID,
		MimeType:      "audio/mp4",
		Extension:     "m4a",
		ContentLength: int64(len(s.data)),
		Title:         "Title " + videoID,
		Author:        "Uploader",
		ChannelID:     channelID,
		Duration:      200,
		Thumbnails:    models.ImageURLs{Large: s.URL + "/art.png"},
	}
}

// fakeExtractor copies the input to the output, or blocks until cancelled when block is set.
type fakeExtractor struct {
	err   error
	block bool

	mu    sync.Mutex
	calls int
}

func (f *fakeExtractor) ExtractAudio(ctx context.Context, in, out string, onProgress func(float64)) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.block {
		os.WriteFile(out, []byte("partial"), 0644)
		<-ctx.Done()
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}

	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	if onProgress != nil {
		onProgress(0.5)
		onProgress(1)
	}
	return os.WriteFile(out, data, 0644)
}

type fixture struct {
	svc       *library.Service
	manager   *Manager
	resolver  *tu.MockResolver
	extractor *fakeExtractor
	server    *mediaServer
}

func setupManager(t *testing.T, gated bool) *fixture {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	cfg := shared.DefaultConfig()
	cfg.Library.Dir = t.TempDir()
	cfg.Download.MaxParallel = 4

	logger := shared.NewLogger(&bytes.Buffer{})
	files := library.NewFiles(cfg.Library)
	svc := library.NewService(db, files, cfg.Artwork, logger)

	srv := newMediaServer(t, gated)
	resolver := &tu.MockResolver{Streams: map[string]models.Stream{
		"vid1": srv.stream("vid1", "UC1"),
		"vid2": srv.stream("vid2", "UC1"),
		"vid3": srv.stream("vid3", "UC2"),
	}}
	search := &tu.MockSearchService{Channels: map[string]models.Channel{
		"UC1": {ID: "UC1", Title: "Channel One", Thumbnails: models.ImageURLs{Medium: srv.URL + "/art.png"}},
	}}
	extractor := &fakeExtractor{}

	m := NewManager(Deps{
		Library:   svc,
		Resolver:  resolver,
		Search:    search,
		Extractor: extractor,
		Fetcher:   services.NewFetcher("", srv.Client()),
		Client:    srv.Client(),
		Logger:    logger,
	}, cfg)

	t.Cleanup(func() {
		m.Close()
		db.Close()
	})

	return &fixture{svc: svc, manager: m, resolver: resolver, extractor: extractor, server: srv}
}

// waitFor polls the job until cond holds.
func waitFor(t *testing.T, m *Manager, id string, cond func(Job) bool) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := m.Get(id)
		if err != nil {
			t.Fatalf("failed to get job: %v", err)
		}
		if cond(job) {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := m.Get(id)
	t.Fatalf("timed out waiting for job, last state %s", job.Status)
	return Job{}
}

func wait(t *testing.T, m *Manager, id string) Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	job, err := m.Wait(ctx, id)
	if err != nil {
		t.Fatalf("failed waiting for job: %v", err)
	}
	return job
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	for _, e := range entries {
		t.Errorf("unexpected file left behind: %s", e.Name())
	}
}

func TestManagerDownload(t *testing.T) {
	t.Run("completes the pipeline", func(t *testing.T) {
		f := setupManager(t, false)

		job, err := f.manager.Start(context.Background(), "vid1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if job.Status != StatusPending || job.ID == "" {
			t.Errorf("unexpected initial job: %+v", job)
		}

		final := wait(t, f.manager, job.ID)
		if final.Status != StatusCompleted {
			t.Fatalf("expected completed, got %s (%s)", final.Status, final.Error)
		}

		song, err := f.svc.Songs().Get(final.SongID)
		if err != nil {
			t.Fatalf("expected song to be saved: %v", err)
		}
		if song.VideoID != "vid1" || song.Title != "Title vid1" || song.MediaFile != "vid1.m4a" || song.Duration != 200 {
			t.Errorf("unexpected song: %+v", song)
		}

		files := f.svc.Files()
		tu.AssertFileExists(t, files.MediaPath("vid1.m4a"))
		tu.AssertFileNotExists(t, files.MediaPath("vid1.download.m4a"))
		if entries, _ := os.ReadDir(files.MediaDir()); len(entries) != 1 {
			t.Errorf("expected only the song's audio in the media directory, got %d files", len(entries))
		}

		if len(song.Thumbnail.Files()) != 3 {
			t.Fatalf("expected 3 thumbnail tiers, got %+v", song.Thumbnail)
		}
		for _, path := range song.Thumbnail.Paths(files.ImagesDir()) {
			tu.AssertFileExists(t, path)
		}

		artist, err := f.svc.Artists().Get(song.ArtistID)
		if err != nil {
			t.Fatalf("expected artist: %v", err)
		}
		if artist.Name != "Channel One" || artist.ChannelID != "UC1" || artist.Thumbnail.IsEmpty() {
			t.Errorf("unexpected artist: %+v", artist)
		}
	})

	t.Run("rejects videos already in library", func(t *testing.T) {
		f := setupManager(t, false)

		job, _ := f.manager.Start(context.Background(), "vid1")
		wait(t, f.manager, job.ID)

		if _, err := f.manager.Start(context.Background(), "vid1"); !errors.Is(err, shared.ErrAlreadyInLibrary) {
			t.Errorf("expected ErrAlreadyInLibrary, got %v", err)
		}
	})

	t.Run("dedupes artists by channel", func(t *testing.T) {
		f := setupManager(t, false)

		a, _ := f.manager.Start(context.Background(), "vid1")
		b, _ := f.manager.Start(context.Background(), "vid2")
		c, _ := f.manager.Start(context.Background(), "vid3")
		for _, id := range []string{a.ID, b.ID, c.ID} {
			if job := wait(t, f.manager, id); job.Status != StatusCompleted {
				t.Fatalf("expected completed, got %s (%s)", job.Status, job.Error)
			}
		}

		artists, err := f.svc.Artists().List(nil)
		if err != nil {
			t.Fatalf("failed to list artists: %v", err)
		}
		if len(artists) != 2 {
			t.Fatalf("expected 2 artists, got %d", len(artists))
		}

		for _, artist := range artists {
			if artist.ChannelID == "UC2" && artist.Name != "Uploader" {
				t.Errorf("expected stream author as fallback name, got %q", artist.Name)
			}
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		f := setupManager(t, false)
		if _, err := f.manager.Start(context.Background(), "  "); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("unknown job", func(t *testing.T) {
		f := setupManager(t, false)
		if _, err := f.manager.Get("nope"); !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound, got %v", err)
		}
		if err := f.manager.Cancel("nope"); !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound, got %v", err)
		}
		if _, err := f.manager.Pause("nope"); !errors.Is(err, shared.ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound, got %v", err)
		}
	})
}

func TestManagerFailures(t *testing.T) {
	t.Run("unresolvable video", func(t *testing.T) {
		f := setupManager(t, false)

		job, _ := f.manager.Start(context.Background(), "missing")
		final := wait(t, f.manager, job.ID)
		if final.Status != StatusFailed || !strings.Contains(final.Error, shared.ErrNoStream.Error()) {
			t.Errorf("expected failed with no stream, got %s (%s)", final.Status, final.Error)
		}
	})

	t.Run("extraction failure leaves nothing behind", func(t *testing.T) {
		f := setupManager(t, false)
		f.extractor.err = errors.New("ffmpeg exploded")

		job, _ := f.manager.Start(context.Background(), "vid1")
		final := wait(t, f.manager, job.ID)
		if final.Status != StatusFailed {
			t.Fatalf("expected failed, got %s", final.Status)
		}

		if _, err := f.svc.Songs().GetByVideoID("vid1"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected no song, got %v", err)
		}
		assertDirEmpty(t, f.svc.Files().MediaDir())
		assertDirEmpty(t, f.svc.Files().ImagesDir())
	})

	t.Run("cancel during extraction", func(t *testing.T) {
		f := setupManager(t, false)
		f.extractor.block = true

		job, _ := f.manager.Start(context.Background(), "vid1")
		waitFor(t, f.manager, job.ID, func(j Job) bool { return j.Status == StatusExtracting })

		if err := f.manager.Cancel(job.ID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		final := wait(t, f.manager, job.ID)
		if final.Status != StatusCancelled {
			t.Fatalf("expected cancelled, got %s", final.Status)
		}
		if err := f.manager.Cancel(job.ID); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState cancelling a finished job, got %v", err)
		}

		assertDirEmpty(t, f.svc.Files().MediaDir())
		if songs, _ := f.svc.Songs().List(nil); len(songs) != 0 {
			t.Errorf("expected no songs, got %d", len(songs))
		}
	})

	t.Run("keeps files of a song saved elsewhere while downloading", func(t *testing.T) {
		f := setupManager(t, true)
		files := f.svc.Files()

		job, _ := f.manager.Start(context.Background(), "vid1")
		waitFor(t, f.manager, job.ID, func(j Job) bool { return j.BytesDone > 0 })

		live := models.NewSong(0, "Saved by another process", "vid1")
		live.MediaFile = "vid1.m4a"
		live.Thumbnail = models.Thumbnail{Small: "vid1_small.jpg", Medium: "vid1_medium.jpg", Large: "vid1_large.jpg"}
		tu.MustWriteFile(t, files.MediaPath(live.MediaFile), []byte("live audio"))
		for _, name := range live.Thumbnail.Files() {
			tu.MustWriteFile(t, files.ImagePath(name), []byte("live "+name))
		}
		if err := f.svc.Songs().Create(live); err != nil {
			t.Fatalf("failed to create song: %v", err)
		}

		f.server.release()
		final := wait(t, f.manager, job.ID)
		if final.Status != StatusFailed || !strings.Contains(final.Error, shared.ErrAlreadyInLibrary.Error()) {
			t.Fatalf("expected failed with already in library, got %s (%s)", final.Status, final.Error)
		}

		if got := tu.MustReadFile(t, files.MediaPath(live.MediaFile)); got != "live audio" {
			t.Errorf("expected saved audio untouched, got %q", got)
		}
		for _, name := range live.Thumbnail.Files() {
			if got := tu.MustReadFile(t, files.ImagePath(name)); got != "live "+name {
				t.Errorf("expected %s untouched, got %d bytes", name, len(got))
			}
		}
		if entries, _ := os.ReadDir(files.MediaDir()); len(entries) != 1 {
			t.Errorf("expected staged media to be removed, got %d files", len(entries))
		}
	})

	t.Run("cancel during download", func(t *testing.T) {
		f := setupManager(t, true)

		job, _ := f.manager.Start(context.Background(), "vid1")
		waitFor(t, f.manager, job.ID, func(j Job) bool { return j.BytesDone > 0 })

		if _, err := f.manager.Start(context.Background(), "vid1"); !errors.Is(err, shared.ErrDownloadActive) {
			t.Errorf("expected ErrDownloadActive, got %v", err)
		}

		f.manager.Cancel(job.ID)
		if final := wait(t, f.manager, job.ID); final.Status != StatusCancelled {
			t.Fatalf("expected cancelled, got %s", final.Status)
		}
		assertDirEmpty(t, f.svc.Files().MediaDir())
	})
}

func TestManagerPauseResume(t *testing.T) {
	f := setupManager(t, true)

	job, _ := f.manager.Start(context.Background(), "vid1")

	if _, err := f.manager.Resume(job.ID); !errors.Is(err, shared.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState resuming an unpaused job, got %v", err)
	}

	before := waitFor(t, f.manager, job.ID, func(j Job) bool {
		return j.Status == StatusDownloading && j.BytesDone > 0
	})

	paused, err := f.manager.Pause(job.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if paused.Status != StatusPaused {
		t.Errorf("expected paused, got %s", paused.Status)
	}
	if _, err := f.manager.Pause(job.ID); !errors.Is(err, shared.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState pausing twice, got %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if got, _ := f.manager.Get(job.ID); got.Status != StatusPaused {
		t.Errorf("expected job to stay paused, got %s", got.Status)
	}

	if _, err := f.manager.Resume(job.ID); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	final := wait(t, f.manager, job.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", final.Status, final.Error)
	}

	ranges := f.server.rangeRequests()
	if len(ranges) != 1 || !strings.HasPrefix(ranges[0], "bytes=") {
		t.Fatalf("expected one range request after resume, got %v", ranges)
	}
	if before.BytesDone <= 0 {
		t.Error("expected bytes before pause")
	}

	song, err := f.svc.Songs().Get(final.SongID)
	if err != nil {
		t.Fatalf("expected song: %v", err)
	}
	got := tu.MustReadFile(t, f.svc.Files().MediaPath(song.MediaFile))
	if got != string(f.server.data) {
		t.Errorf("expected resumed file to match source, got %d bytes", len(got))
	}
}

func TestManagerSubscribe(t *testing.T) {
	f := setupManager(t, false)

	updates, unsubscribe := f.manager.Subscribe()
	defer unsubscribe()

	job, _ := f.manager.Start(context.Background(), "vid1")
	wait(t, f.manager, job.ID)

	seen := map[Phase]bool{}
	timeout := time.After(2 * time.Second)
	for !seen[Done] {
		select {
		case u := <-updates:
			if u.Job.ID != job.ID {
				t.Errorf("unexpected job in update: %s", u.Job.ID)
			}
			seen[u.Phase] = true
		case <-timeout:
			t.Fatalf("did not receive final update, saw %v", seen)
		}
	}

	for _, phase := range []Phase{Queue, Resolve, Download, Extract, Finalize} {
		if !seen[phase] {
			t.Errorf("expected a %s update", phase)
		}
	}

	if list := f.manager.List(); len(list) != 1 || list[0].ID != job.ID {
		t.Errorf("expected job in list, got %d", len(list))
	}
}

func TestDownloadAll(t *testing.T) {
	f := setupManager(t, false)

	first, _ := f.manager.Start(context.Background(), "vid1")
	wait(t, f.manager, first.ID)

	prog := make(chan ProgressUpdate, 32)
	result, err := f.manager.DownloadAll(context.Background(), []string{"vid1", "vid2", "vid3", "missing"},
		BatchOpts{NumWorkers: 2, RateLimit: 100, SkipExisting: true}, prog)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if result.Total != 4 || result.Succeeded != 2 || result.Skipped != 1 || result.Failed != 1 {
		t.Errorf("unexpected result: total=%d ok=%d skipped=%d failed=%d",
			result.Total, result.Succeeded, result.Skipped, result.Failed)
	}

	for _, res := range result.Results {
		if res.VideoID == "missing" && res.Error == nil {
			t.Error("expected error for missing video")
		}
	}

	close(prog)
	var batchUpdates int
	for u := range prog {
		if u.Phase == Batch {
			batchUpdates++
		}
	}
	if batchUpdates != 5 {
		t.Errorf("expected 5 batch updates, got %d", batchUpdates)
	}
}
