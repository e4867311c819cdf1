package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event for a download job.
//
// Used to send real-time updates to the CLI, TUI or HTTP layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Pipeline phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Job     Job    // Snapshot of the job at the time of the update
}

// Pipeline phase enumeration
type Phase int

const (
	Queue Phase = iota
	Resolve
	Download
	Extract
	Finalize
	Done
	Batch
)

func (p Phase) String() string {
	switch p {
	case Queue:
		return "queue"
	case Resolve:
		return "resolve"
	case Download:
		return "download"
	case Extract:
		return "extract"
	case Finalize:
		return "finalize"
	case Done:
		return "done"
	case Batch:
		return "batch"
	default:
		return ""
	}
}

// phaseFor maps a job status to the phase that reports it.
func phaseFor(s Status) Phase {
	switch s {
	case StatusResolving:
		return Resolve
	case StatusDownloading, StatusPaused:
		return Download
	case StatusExtracting:
		return Extract
	case StatusFinalizing:
		return Finalize
	case StatusCompleted, StatusCancelled, StatusFailed:
		return Done
	default:
		return Queue
	}
}

// jobUpdate builds the update published on every job state change.
func jobUpdate(job Job) ProgressUpdate {
	var msg string
	switch job.Status {
	case StatusPending:
		msg = fmt.Sprintf("Queued %s", job.VideoID)
	case StatusResolving:
		msg = fmt.Sprintf("Resolving stream for %s...", job.VideoID)
	case StatusDownloading:
		msg = fmt.Sprintf("Downloading %s (%.0f%%)", job.label(), job.Progress*100)
	case StatusPaused:
		msg = fmt.Sprintf("Paused %s at %.0f%%", job.label(), job.Progress*100)
	case StatusExtracting:
		msg = fmt.Sprintf("Extracting audio from %s (%.0f%%)", job.label(), job.Progress*100)
	case StatusFinalizing:
		msg = fmt.Sprintf("Saving %s...", job.label())
	case StatusCompleted:
		msg = fmt.Sprintf("✓ %s", job.label())
	case StatusCancelled:
		msg = fmt.Sprintf("Cancelled %s", job.label())
	case StatusFailed:
		msg = fmt.Sprintf("✗ %s: %s", job.label(), job.Error)
	}

	return ProgressUpdate{
		Phase:   phaseFor(job.Status),
		Step:    int(job.Progress * 100),
		Total:   100,
		Message: msg,
		Job:     job,
	}
}

func batchStartedUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Batch,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Downloading %d videos...", total),
	}
}

func batchItemUpdate(step, total int, res DownloadResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s", step, total, res.VideoID)
	if res.Error != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.VideoID, res.Error)
	}
	return ProgressUpdate{
		Phase:   Batch,
		Step:    step,
		Total:   total,
		Message: msg,
		Job:     res.Job,
	}
}
