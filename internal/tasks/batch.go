package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/desertthunder/tunebox/internal/shared"
)

// BatchOpts contains configuration for downloading many videos.
type BatchOpts struct {
	NumWorkers   int     // Concurrent workers (default: 3, max: 10)
	RateLimit    float64 // Job starts per second (default: 2)
	SkipExisting bool    // Count videos already in the library as skipped instead of failed
}

// DownloadResult is the outcome of one video in a batch.
type DownloadResult struct {
	VideoID string
	Job     Job
	Skipped bool
	Error   error
}

// BatchResult summarizes a batch download.
type BatchResult struct {
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
	Results   []DownloadResult
}

// DownloadAll downloads ids with a pool of workers, starting at most opts.RateLimit jobs per second.
//
// Failures of individual videos are recorded in the result; the returned error is only set when ctx
// ends the batch early. Jobs still running at that point are cancelled.
func (m *Manager) DownloadAll(ctx context.Context, ids []string, opts BatchOpts, prog chan<- ProgressUpdate) (*BatchResult, error) {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}

	result := &BatchResult{
		Total:   len(ids),
		Results: make([]DownloadResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan string, len(ids))
	results := make(chan DownloadResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go m.batchWorker(ctx, &wg, limiter, jobs, results, opts)
	}

	sendProgress(prog, batchStartedUpdate(len(ids)))
	for _, id := range ids {
		jobs <- id
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		switch {
		case res.Skipped:
			result.Skipped++
		case res.Error == nil:
			result.Succeeded++
		default:
			result.Failed++
		}
		sendProgress(prog, batchItemUpdate(completed, len(ids), res))
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("batch stopped after %d of %d: %w", completed, len(ids), err)
	}
	return result, nil
}

// batchWorker starts and waits for the videos it receives from the jobs channel.
func (m *Manager) batchWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan string,
	results chan<- DownloadResult,
	opts BatchOpts,
) {
	defer wg.Done()

	for id := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- DownloadResult{VideoID: id, Error: err}
			continue
		}
		results <- m.downloadOne(ctx, id, opts)
	}
}

func (m *Manager) downloadOne(ctx context.Context, id string, opts BatchOpts) DownloadResult {
	res := DownloadResult{VideoID: id}

	job, err := m.Start(ctx, id)
	if err != nil {
		if opts.SkipExisting && errors.Is(err, shared.ErrAlreadyInLibrary) {
			res.Skipped = true
			return res
		}
		res.Error = err
		return res
	}

	final, err := m.Wait(ctx, job.ID)
	if err != nil {
		m.Cancel(job.ID)
		res.Job, _ = m.Wait(context.Background(), job.ID)
		res.Error = err
		return res
	}

	res.Job = final
	if final.Status != StatusCompleted {
		res.Error = errors.New(final.Error)
	}
	return res
}
