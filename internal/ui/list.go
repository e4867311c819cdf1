package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"

	"github.com/desertthunder/tunebox/internal/tasks"
)

var (
	_ list.Item = jobItem{}
)

// jobItem wraps [tasks.Job] to implement [list.Item]. bar is rendered ahead of time so the item
// stays a plain value.
type jobItem struct {
	job tasks.Job
	bar string
}

func newJobItem(job tasks.Job, bar progress.Model) jobItem {
	return jobItem{job: job, bar: bar.ViewAs(jobPercent(job))}
}

func (i jobItem) FilterValue() string { return i.job.Title + " " + i.job.VideoID }

func (i jobItem) Title() string {
	if i.job.Title == "" {
		return i.job.VideoID
	}
	return fmt.Sprintf("%s (%s)", i.job.Title, i.job.VideoID)
}

func (i jobItem) Description() string {
	switch i.job.Status {
	case tasks.StatusDownloading, tasks.StatusPaused:
		return fmt.Sprintf("%s %s %s", i.bar, i.job.Status, byteProgress(i.job))
	case tasks.StatusExtracting:
		return fmt.Sprintf("%s %s", i.bar, i.job.Status)
	case tasks.StatusFailed:
		return styles.err.Render(fmt.Sprintf("failed: %s", i.job.Error))
	case tasks.StatusCompleted:
		return styles.ok.Render("✓ completed")
	case tasks.StatusCancelled:
		return styles.warn.Render("cancelled")
	default:
		return i.job.Status.String()
	}
}

// jobPercent is the fill of a job's bar. Finished jobs are full so completed rows read as done.
func jobPercent(job tasks.Job) float64 {
	switch {
	case job.Status == tasks.StatusCompleted:
		return 1
	case job.Progress < 0:
		return 0
	case job.Progress > 1:
		return 1
	}
	return job.Progress
}

func byteProgress(job tasks.Job) string {
	if job.BytesTotal <= 0 {
		return formatBytes(job.BytesDone)
	}
	return fmt.Sprintf("%s/%s", formatBytes(job.BytesDone), formatBytes(job.BytesTotal))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
