package tasks

import "time"

// Status is the lifecycle state of a download job.
type Status string

const (
	StatusPending     Status = "pending"
	StatusResolving   Status = "resolving"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusExtracting  Status = "extracting"
	StatusFinalizing  Status = "finalizing"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusFailed      Status = "failed"
)

func (s Status) String() string {
	return string(s)
}

// IsActive reports whether the job is doing work. Paused jobs are neither active nor finished.
func (s Status) IsActive() bool {
	switch s {
	case StatusPending, StatusResolving, StatusDownloading, StatusExtracting, StatusFinalizing:
		return true
	}
	return false
}

// IsFinished reports whether the job has reached a terminal state.
func (s Status) IsFinished() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Job is a snapshot of a download. Values handed out by [Manager] are copies.
type Job struct {
	ID         string    `json:"id"`
	VideoID    string    `json:"video_id"`
	Title      string    `json:"title,omitempty"`
	Status     Status    `json:"status"`
	BytesDone  int64     `json:"bytes_done"`
	BytesTotal int64     `json:"bytes_total"`
	Progress   float64   `json:"progress"` // fraction of the current step, 0 to 1
	SongID     string    `json:"song_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

func (j Job) label() string {
	if j.Title != "" {
		return j.Title
	}
	return j.VideoID
}
