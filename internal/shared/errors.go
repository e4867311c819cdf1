package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNoStream           = fmt.Errorf("no playable stream")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Library errors
	ErrNotFound         = fmt.Errorf("record not found")
	ErrAlreadyInLibrary = fmt.Errorf("already in library")
	ErrMissingFile      = fmt.Errorf("file missing from library")

	// Download errors
	ErrJobNotFound    = fmt.Errorf("download not found")
	ErrDownloadActive = fmt.Errorf("download already in progress")
	ErrInvalidState   = fmt.Errorf("invalid download state")
	ErrCancelled      = fmt.Errorf("download cancelled")

	// Playback errors
	ErrPlayerNotRunning = fmt.Errorf("player not running")
	ErrQueueEmpty       = fmt.Errorf("queue is empty")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
