package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/tunebox/internal/tasks"
)

const barWidth = 30

// Controller is the part of a download manager the monitor drives.
type Controller interface {
	List() []tasks.Job
	Pause(id string) (tasks.Job, error)
	Resume(id string) (tasks.Job, error)
	Cancel(id string) error
	Subscribe() (<-chan tasks.ProgressUpdate, func())
}

var _ Controller = (*tasks.Manager)(nil)

// Model represents the TUI application state.
type Model struct {
	ctrl        Controller
	updates     <-chan tasks.ProgressUpdate
	unsubscribe func()
	jobs        []tasks.Job
	list        list.Model
	bar         progress.Model
	help        help.Model
	keys        keyMap
	status      string
	err         error
	closed      bool
	width       int
	height      int
}

// NewModel subscribes to ctrl and seeds the list with the jobs it already knows about.
func NewModel(ctrl Controller) *Model {
	updates, unsubscribe := ctrl.Subscribe()

	m := &Model{
		ctrl:        ctrl,
		updates:     updates,
		unsubscribe: unsubscribe,
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
		help:        help.New(),
		keys:        newKeyMap(),
	}

	m.list = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.list.Title = "Downloads"
	m.list.SetFilteringEnabled(false)
	m.list.SetShowHelp(false)
	m.list.DisableQuitKeybindings()

	for _, job := range ctrl.List() {
		m.upsert(job)
	}
	m.refresh()
	return m
}

// Init starts listening for progress updates.
func (m *Model) Init() tea.Cmd {
	return m.waitForUpdate()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the job list, a summary line and contextual help.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.list.View())
	b.WriteString("\n\n")
	b.WriteString(m.summary())
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.status != "":
		b.WriteString(styles.help.Render(m.status))
	}
	b.WriteString("\n")

	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

// Jobs returns the latest snapshot of every job the monitor has seen.
func (m *Model) Jobs() []tasks.Job {
	return append([]tasks.Job(nil), m.jobs...)
}

// Close stops the progress subscription. Safe to call more than once.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.pause):
		return m, m.control("pause")
	case key.Matches(msg, m.keys.resume):
		return m, m.control("resume")
	case key.Matches(msg, m.keys.cancel):
		return m, m.control("cancel")
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		if update.Job.ID != "" {
			m.upsert(update.Job)
			m.refresh()
		}
		return m, m.waitForUpdate()

	case MsgStreamClosed:
		m.closed = true
		return m, nil

	case MsgControlDone:
		res := msg.data.(controlResult)
		if res.err != nil {
			m.err = res.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		if res.job.ID != "" {
			m.upsert(res.job)
			m.refresh()
		}
		m.status = res.describe()
	}
	return m, nil
}

// control runs action against the selected job off the update loop.
func (m *Model) control(action string) tea.Cmd {
	selected, ok := m.list.SelectedItem().(jobItem)
	if !ok {
		return nil
	}
	ctrl, id := m.ctrl, selected.job.ID

	return func() tea.Msg {
		var (
			job tasks.Job
			err error
		)
		switch action {
		case "pause":
			job, err = ctrl.Pause(id)
		case "resume":
			job, err = ctrl.Resume(id)
		case "cancel":
			err = ctrl.Cancel(id)
			job = tasks.Job{VideoID: selected.job.VideoID}
		}
		return controlDoneMsg(action, job, err)
	}
}

func (r controlResult) describe() string {
	switch r.action {
	case "pause":
		return "Paused " + r.job.VideoID
	case "resume":
		return "Resumed " + r.job.VideoID
	case "cancel":
		return "Cancelling " + r.job.VideoID
	}
	return ""
}

func (m *Model) waitForUpdate() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return streamClosedMsg()
		}
		return progressUpdateMsg(update)
	}
}

// upsert records a job snapshot, ignoring snapshots older than the one already held.
func (m *Model) upsert(job tasks.Job) {
	for i, existing := range m.jobs {
		if existing.ID != job.ID {
			continue
		}
		if !job.UpdatedAt.Before(existing.UpdatedAt) {
			m.jobs[i] = job
		}
		return
	}
	m.jobs = append(m.jobs, job)
}

func (m *Model) refresh() {
	items := make([]list.Item, len(m.jobs))
	for i, job := range m.jobs {
		items[i] = newJobItem(job, m.bar)
	}
	m.list.SetItems(items)
}

func (m *Model) summary() string {
	var active, paused, completed, failed int
	for _, job := range m.jobs {
		switch {
		case job.Status == tasks.StatusPaused:
			paused++
		case job.Status == tasks.StatusCompleted:
			completed++
		case job.Status == tasks.StatusFailed:
			failed++
		case job.Status.IsActive():
			active++
		}
	}

	line := fmt.Sprintf("%d jobs • %d active • %d paused • %d completed • %d failed",
		len(m.jobs), active, paused, completed, failed)
	if len(m.jobs) > 0 && active == 0 && paused == 0 {
		line += " • all downloads finished"
	}
	if m.closed {
		line += " • updates stopped"
	}
	return line
}
