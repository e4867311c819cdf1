package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunebox/internal/library"
	"github.com/desertthunder/tunebox/internal/services"
	"github.com/desertthunder/tunebox/internal/shared"
)

// Extractor writes the audio track of a media file to out.
type Extractor interface {
	ExtractAudio(ctx context.Context, in, out string, onProgress func(float64)) error
}

// Deps are the collaborators of a [Manager].
type Deps struct {
	Library   *library.Service
	Resolver  services.Resolver
	Search    services.SearchService // optional; used for artist names and artwork
	Extractor Extractor
	Fetcher   *services.Fetcher // artwork downloads
	Client    *http.Client      // media downloads
	Logger    *log.Logger
}

// Manager runs download jobs through the pipeline and tracks their state.
//
// Each job owns a context; pausing cancels the current transfer attempt and resuming starts a new
// attempt that continues from the bytes already on disk.
type Manager struct {
	lib       *library.Service
	resolver  services.Resolver
	search    services.SearchService
	extractor Extractor
	fetcher   *services.Fetcher
	transfer  *Transfer
	logger    *log.Logger

	audioExt string
	artwork  shared.ArtworkConfig
	timeout  time.Duration

	root   context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup

	mu    sync.Mutex
	jobs  map[string]*jobState
	order []string

	subMu sync.Mutex
	subs  map[int]chan ProgressUpdate
	subID int
}

type jobState struct {
	job     Job
	cancel  context.CancelFunc
	attempt context.CancelFunc // cancels the running transfer attempt
	resume  chan struct{}      // non-nil while paused
	done    chan struct{}
}

// NewManager creates a Manager. Download settings come from cfg.
func NewManager(deps Deps, cfg *shared.Config) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	parallel := cfg.Download.MaxParallel
	if parallel <= 0 {
		parallel = 1
	}

	ext := strings.TrimPrefix(strings.ToLower(cfg.Library.AudioFormat), ".")
	if ext == "" {
		ext = "m4a"
	}

	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = services.NewFetcher("", deps.Client)
	}

	root, cancel := context.WithCancel(context.Background())
	return &Manager{
		lib:       deps.Library,
		resolver:  deps.Resolver,
		search:    deps.Search,
		extractor: deps.Extractor,
		fetcher:   fetcher,
		transfer:  NewTransfer(deps.Client),
		logger:    logger,
		audioExt:  ext,
		artwork:   cfg.Artwork,
		timeout:   time.Duration(cfg.Download.TimeoutSeconds) * time.Second,
		root:      root,
		cancel:    cancel,
		sem:       make(chan struct{}, parallel),
		jobs:      make(map[string]*jobState),
		subs:      make(map[int]chan ProgressUpdate),
	}
}

// Start queues a download of videoID and returns its initial snapshot.
//
// Returns [shared.ErrAlreadyInLibrary] when a song for the video exists and [shared.ErrDownloadActive]
// when the video is already being downloaded. The job is not bound to ctx; use [Manager.Cancel].
func (m *Manager) Start(ctx context.Context, videoID string) (Job, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return Job{}, fmt.Errorf("%w: video id is required", shared.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}

	if song, err := m.lib.Songs().GetByVideoID(videoID); err == nil {
		return Job{}, fmt.Errorf("%w: %s is song %s", shared.ErrAlreadyInLibrary, videoID, song.ID())
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Job{}, err
	}

	m.mu.Lock()
	if m.root.Err() != nil {
		m.mu.Unlock()
		return Job{}, fmt.Errorf("%w: manager closed", shared.ErrServiceUnavailable)
	}
	for _, st := range m.jobs {
		if st.job.VideoID == videoID && !st.job.Status.IsFinished() {
			m.mu.Unlock()
			return Job{}, fmt.Errorf("%w: %s (job %s)", shared.ErrDownloadActive, videoID, st.job.ID)
		}
	}

	now := time.Now()
	jobCtx, cancel := context.WithCancel(m.root)
	st := &jobState{
		job: Job{
			ID:        shared.GenerateID(),
			VideoID:   videoID,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.jobs[st.job.ID] = st
	m.order = append(m.order, st.job.ID)
	snapshot := st.job
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("queued download", "job", snapshot.ID, "video", videoID)
	m.publish(jobUpdate(snapshot))

	go m.execute(jobCtx, st)
	return snapshot, nil
}

func (m *Manager) execute(ctx context.Context, st *jobState) {
	defer m.wg.Done()
	defer st.cancel()

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		m.finish(st, "", ctx.Err())
		return
	}

	songID, err := m.run(ctx, st)
	m.finish(st, songID, err)
}

func (m *Manager) finish(st *jobState, songID string, err error) {
	m.mu.Lock()
	now := time.Now()
	switch {
	case err == nil:
		st.job.Status = StatusCompleted
		st.job.SongID = songID
		st.job.Progress = 1
	case errors.Is(err, context.Canceled):
		st.job.Status = StatusCancelled
		st.job.Error = shared.ErrCancelled.Error()
	default:
		st.job.Status = StatusFailed
		st.job.Error = err.Error()
	}
	st.job.UpdatedAt = now
	st.job.FinishedAt = now
	st.resume = nil
	snapshot := st.job
	close(st.done)
	m.mu.Unlock()

	switch snapshot.Status {
	case StatusCompleted:
		m.logger.Info("download completed", "job", snapshot.ID, "video", snapshot.VideoID, "song", songID)
	case StatusCancelled:
		m.logger.Info("download cancelled", "job", snapshot.ID, "video", snapshot.VideoID)
	default:
		m.logger.Error("download failed", "job", snapshot.ID, "video", snapshot.VideoID, "error", err)
	}
	m.publish(jobUpdate(snapshot))
}

// Pause stops the transfer of a downloading job, keeping the bytes already written.
func (m *Manager) Pause(id string) (Job, error) {
	m.mu.Lock()
	st, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return Job{}, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	if st.job.Status != StatusDownloading {
		status := st.job.Status
		m.mu.Unlock()
		return Job{}, fmt.Errorf("%w: cannot pause a %s download", shared.ErrInvalidState, status)
	}

	st.job.Status = StatusPaused
	st.job.UpdatedAt = time.Now()
	st.resume = make(chan struct{})
	if st.attempt != nil {
		st.attempt()
	}
	snapshot := st.job
	m.mu.Unlock()

	m.logger.Info("download paused", "job", id, "bytes", snapshot.BytesDone)
	m.publish(jobUpdate(snapshot))
	return snapshot, nil
}

// Resume continues a paused job from where its transfer stopped.
func (m *Manager) Resume(id string) (Job, error) {
	m.mu.Lock()
	st, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return Job{}, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	if st.job.Status != StatusPaused || st.resume == nil {
		status := st.job.Status
		m.mu.Unlock()
		return Job{}, fmt.Errorf("%w: cannot resume a %s download", shared.ErrInvalidState, status)
	}

	st.job.Status = StatusDownloading
	st.job.UpdatedAt = time.Now()
	close(st.resume)
	st.resume = nil
	snapshot := st.job
	m.mu.Unlock()

	m.logger.Info("download resumed", "job", id, "bytes", snapshot.BytesDone)
	m.publish(jobUpdate(snapshot))
	return snapshot, nil
}

// Cancel stops a job that has not finished. Its files are removed and no song is saved.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	if st.job.Status.IsFinished() {
		return fmt.Errorf("%w: download already %s", shared.ErrInvalidState, st.job.Status)
	}

	st.cancel()
	return nil
}

// Get returns a snapshot of a job.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}
	return st.job, nil
}

// List returns snapshots of every job in the order they were started.
func (m *Manager) List() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := make([]Job, 0, len(m.order))
	for _, id := range m.order {
		jobs = append(jobs, m.jobs[id].job)
	}
	return jobs
}

// Wait blocks until the job finishes or ctx is done, and returns its final snapshot.
func (m *Manager) Wait(ctx context.Context, id string) (Job, error) {
	m.mu.Lock()
	st, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", shared.ErrJobNotFound, id)
	}

	select {
	case <-st.done:
		return m.Get(id)
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Subscribe returns a channel of progress updates and a function that unsubscribes it.
//
// Sends never block: a subscriber that falls behind misses updates.
func (m *Manager) Subscribe() (<-chan ProgressUpdate, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.subID
	m.subID++
	ch := make(chan ProgressUpdate, 64)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
			close(ch)
		})
	}
}

func (m *Manager) publish(update ProgressUpdate) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for _, ch := range m.subs {
		sendProgress(ch, update)
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Close cancels every unfinished job and waits for them to clean up.
func (m *Manager) Close() {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()
	m.wg.Wait()
}

// update applies fn to the job under the lock and publishes the result when publish is set.
func (m *Manager) update(st *jobState, publish bool, fn func(*Job)) {
	m.mu.Lock()
	fn(&st.job)
	st.job.UpdatedAt = time.Now()
	snapshot := st.job
	m.mu.Unlock()

	if publish {
		m.publish(jobUpdate(snapshot))
	}
}

func (m *Manager) setStatus(st *jobState, status Status) {
	m.update(st, true, func(j *Job) {
		j.Status = status
		j.Progress = 0
	})
}
