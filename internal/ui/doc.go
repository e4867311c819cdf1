// Package ui implements a terminal download monitor using bubbletea's Elm architecture.
//
// The [Model] lists every job known to a download manager with a progress bar per job. Updates
// arrive through the manager's Subscribe channel, read one at a time by a [tea.Cmd], so the
// program never blocks on the pipeline.
//
// Keys: j/k (or arrows) move the selection, p pauses, r resumes and c cancels the selected job,
// q quits. Help is rendered with charmbracelet/bubbles/help.
package ui
