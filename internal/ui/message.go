package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/tunebox/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgStreamClosed
	MsgControlDone
)

// controlResult carries the outcome of a pause, resume or cancel request.
type controlResult struct {
	action string
	job    tasks.Job
	err    error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// streamClosedMsg is the constructor for [MsgStreamClosed]
func streamClosedMsg() Msg {
	return Msg{kind: MsgStreamClosed}
}

// controlDoneMsg is the constructor for [MsgControlDone]
func controlDoneMsg(action string, job tasks.Job, err error) Msg {
	return Msg{kind: MsgControlDone, data: controlResult{action: action, job: job, err: err}}
}
