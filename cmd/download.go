package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kkdai/youtube/v2"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunebox/internal/shared"
	"github.com/desertthunder/tunebox/internal/tasks"
	"github.com/desertthunder/tunebox/internal/ui"
)

const tuiLogPath = "./tmp/tunebox-tui.log"

// videoIDs accepts bare ids and watch/share URLs, dropping duplicates.
func videoIDs(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: at least one video id or URL", shared.ErrMissingArgument)
	}

	seen := make(map[string]bool, len(args))
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		id, err := youtube.ExtractVideoID(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a video id or URL: %v", shared.ErrInvalidArgument, arg, err)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Download downloads the given videos into the library.
//
// One id runs in the foreground with progress lines; several go through a worker pool. With --watch
// the interactive monitor takes over the terminal, and quitting it cancels unfinished downloads.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	ids, err := videoIDs(cmd.Args().Slice())
	if err != nil {
		return err
	}

	opts := tasks.BatchOpts{
		NumWorkers:   int(cmd.Int("workers")),
		RateLimit:    r.config.Download.RateLimit,
		SkipExisting: cmd.Bool("skip-existing"),
	}

	if cmd.Bool("watch") {
		return r.watchDownloads(ctx, ids, opts)
	}

	manager, err := r.openManager()
	if err != nil {
		return err
	}
	if len(ids) == 1 {
		return r.downloadOne(ctx, manager, ids[0])
	}
	return r.downloadBatch(ctx, manager, ids, opts)
}

func (r *Runner) downloadOne(ctx context.Context, manager *tasks.Manager, videoID string) error {
	updates, unsubscribe := manager.Subscribe()
	defer unsubscribe()

	job, err := manager.Start(ctx, videoID)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.printJobUpdates(updates, job.ID)
	}()

	final, err := manager.Wait(ctx, job.ID)
	if err != nil {
		manager.Cancel(job.ID)
		final, _ = manager.Wait(context.Background(), job.ID)
	}
	unsubscribe()
	<-done

	switch final.Status {
	case tasks.StatusCompleted:
		return r.writePlain("✓ Saved %s as song %s\n", final.Title, final.SongID)
	case tasks.StatusCancelled:
		return fmt.Errorf("%w: %s", shared.ErrCancelled, videoID)
	default:
		return fmt.Errorf("download of %s failed: %s", videoID, final.Error)
	}
}

// printJobUpdates prints a line per status change of one job until updates is closed.
func (r *Runner) printJobUpdates(updates <-chan tasks.ProgressUpdate, jobID string) {
	var last tasks.Status
	lastPercent := -1
	for update := range updates {
		if update.Job.ID != jobID {
			continue
		}
		percent := int(update.Job.Progress * 100)
		if update.Job.Status == last && percent/10 == lastPercent/10 {
			continue
		}
		last, lastPercent = update.Job.Status, percent
		r.writePlain("%s\n", update.Message)
	}
}

func (r *Runner) downloadBatch(ctx context.Context, manager *tasks.Manager, ids []string, opts tasks.BatchOpts) error {
	prog := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range prog {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := manager.DownloadAll(ctx, ids, opts, prog)
	close(prog)
	<-done

	r.printBatchResult(result)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", result.Failed, result.Total)
	}
	return nil
}

func (r *Runner) watchDownloads(ctx context.Context, ids []string, opts tasks.BatchOpts) error {
	// the monitor owns the terminal, so logs go to a file
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	manager, err := r.openManager()
	if err != nil {
		return err
	}

	model := ui.NewModel(manager)
	defer model.Close()

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result *tasks.BatchResult
		err    error
	}
	finished := make(chan outcome, 1)
	go func() {
		result, err := manager.DownloadAll(batchCtx, ids, opts, nil)
		finished <- outcome{result, err}
	}()

	p := tea.NewProgram(model, tea.WithContext(ctx))
	_, runErr := p.Run()

	cancel()
	out := <-finished
	r.printBatchResult(out.result)

	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", runErr)
	}
	return nil
}

func (r *Runner) printBatchResult(result *tasks.BatchResult) {
	if result == nil {
		return
	}

	r.writePlainHeader("Downloads")
	r.writePlain("Total: %d  Succeeded: %d  Skipped: %d  Failed: %d\n",
		result.Total, result.Succeeded, result.Skipped, result.Failed)

	for _, res := range result.Results {
		switch {
		case res.Skipped:
			r.writePlain("  - %s already in library\n", res.VideoID)
		case res.Error != nil:
			r.writePlain("  ✗ %s: %v\n", res.VideoID, res.Error)
		}
	}
}
