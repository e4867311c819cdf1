// package player plays library songs through mpv, with a queue and a resumable play history.
package player

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunebox/internal/shared"
)

const (
	socketCheckRetries  = 20
	socketCheckInterval = 100 * time.Millisecond
	socketReadDeadline  = 500 * time.Millisecond
	quitGracePeriod     = time.Second
)

// Backend is an audio output that plays one file at a time.
type Backend interface {
	// Load replaces the current file with path, starting at start seconds.
	Load(path string, start float64) error
	Pause() error
	Resume() error
	Stop() error
	// Seek moves to an absolute position in seconds.
	Seek(seconds float64) error
	Position() (float64, error)
	// Idle reports whether nothing is loaded, including after a file has played to the end.
	Idle() (bool, error)
	Close() error
}

type mpvCommand struct {
	Command   []any `json:"command"`
	RequestID int   `json:"request_id"`
}

type mpvResponse struct {
	Error     string `json:"error"`
	Data      any    `json:"data"`
	RequestID int    `json:"request_id"`
	Event     string `json:"event"`
}

// errPropertyUnavailable is what mpv answers for time-pos and friends while idle.
const errPropertyUnavailable = "property unavailable"

// MpvPlayer drives an mpv process over its JSON IPC socket.
//
// The process is started lazily on the first Load. When something is already listening on the socket
// path the player attaches to it instead and leaves it running on Close.
type MpvPlayer struct {
	mpvPath    string
	socketPath string
	logger     *log.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
}

// NewMpvPlayer creates a player for cfg. No process is started until a file is loaded.
func NewMpvPlayer(cfg shared.PlayerConfig, logger *log.Logger) *MpvPlayer {
	path := cfg.MpvPath
	if path == "" {
		path = "mpv"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &MpvPlayer{mpvPath: path, socketPath: cfg.SocketPath, logger: logger}
}

func (p *MpvPlayer) ownsProcess() bool {
	if p.cmd == nil {
		return false
	}
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

func (p *MpvPlayer) reachable() bool {
	conn, err := net.DialTimeout("unix", p.socketPath, socketReadDeadline)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ensureRunning must be called with p.mu held.
func (p *MpvPlayer) ensureRunning() error {
	if p.ownsProcess() {
		return nil
	}
	if p.reachable() {
		p.logger.Debug("attaching to running mpv", "socket", p.socketPath)
		return nil
	}

	if err := os.Remove(p.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale mpv socket: %w", err)
	}

	p.logger.Info("starting mpv", "path", p.mpvPath, "socket", p.socketPath)
	cmd := exec.Command(p.mpvPath,
		"--idle",
		"--input-ipc-server="+p.socketPath,
		"--no-video",
		"--no-config",
		"--no-terminal",
	)
	cmd.Stderr = p.logger.StandardLog(log.StandardLogOptions{ForceLevel: log.DebugLevel}).Writer()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("could not start mpv: %w", err)
	}

	exited := make(chan struct{})
	go func() {
		cmd.Wait()
		close(exited)
	}()
	p.cmd = cmd
	p.exited = exited

	for range socketCheckRetries {
		if p.reachable() {
			return nil
		}
		select {
		case <-exited:
			p.cmd = nil
			return fmt.Errorf("mpv exited before opening %s", p.socketPath)
		case <-time.After(socketCheckInterval):
		}
	}

	cmd.Process.Kill()
	p.cmd = nil
	return fmt.Errorf("mpv started but socket did not appear at %s", p.socketPath)
}

// send writes every command on one connection and returns the responses in command order.
func (p *MpvPlayer) send(cmds ...[]any) ([]mpvResponse, error) {
	conn, err := net.Dial("unix", p.socketPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPlayerNotRunning, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(socketReadDeadline))

	enc := json.NewEncoder(conn)
	for i, c := range cmds {
		if err := enc.Encode(mpvCommand{Command: c, RequestID: i + 1}); err != nil {
			return nil, fmt.Errorf("error sending mpv command: %w", err)
		}
	}

	responses := make([]mpvResponse, len(cmds))
	received := 0
	scanner := bufio.NewScanner(conn)
	for received < len(cmds) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("error reading from mpv: %w", err)
			}
			return nil, fmt.Errorf("mpv closed the connection after %d of %d replies", received, len(cmds))
		}

		var resp mpvResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			p.logger.Warn("could not parse line from mpv", "line", scanner.Text(), "error", err)
			continue
		}
		if resp.Event != "" || resp.RequestID < 1 || resp.RequestID > len(cmds) {
			continue
		}
		responses[resp.RequestID-1] = resp
		received++
	}
	return responses, nil
}

// do runs commands and fails on the first one mpv rejects.
func (p *MpvPlayer) do(cmds ...[]any) error {
	responses, err := p.send(cmds...)
	if err != nil {
		return err
	}
	for i, resp := range responses {
		if resp.Error != "success" {
			return fmt.Errorf("mpv %v: %s", cmds[i][0], resp.Error)
		}
	}
	return nil
}

func (p *MpvPlayer) property(name string) (any, bool, error) {
	responses, err := p.send([]any{"get_property", name})
	if err != nil {
		return nil, false, err
	}
	switch resp := responses[0]; resp.Error {
	case "success":
		return resp.Data, true, nil
	case errPropertyUnavailable:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("mpv get_property %s: %s", name, resp.Error)
	}
}

func (p *MpvPlayer) Load(path string, start float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureRunning(); err != nil {
		return err
	}

	// start is an option, so it sticks for every later file until reset
	startAt := "none"
	if start > 0 {
		startAt = strconv.FormatFloat(start, 'f', 3, 64)
	}
	return p.do(
		[]any{"set_property", "start", startAt},
		[]any{"loadfile", path, "replace"},
		[]any{"set_property", "pause", false},
	)
}

func (p *MpvPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.do([]any{"set_property", "pause", true})
}

func (p *MpvPlayer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.do([]any{"set_property", "pause", false})
}

func (p *MpvPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.do([]any{"stop"})
}

func (p *MpvPlayer) Seek(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.do([]any{"seek", seconds, "absolute"})
}

// Position returns the playback position in seconds, or 0 when nothing is loaded.
func (p *MpvPlayer) Position() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok, err := p.property("time-pos")
	if err != nil || !ok {
		return 0, err
	}
	pos, _ := v.(float64)
	return pos, nil
}

func (p *MpvPlayer) Idle() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok, err := p.property("idle-active")
	if err != nil || !ok {
		return true, err
	}
	idle, _ := v.(bool)
	return idle, nil
}

// Paused reports whether playback is paused.
func (p *MpvPlayer) Paused() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok, err := p.property("pause")
	if err != nil || !ok {
		return false, err
	}
	paused, _ := v.(bool)
	return paused, nil
}

// Close quits an mpv process started by this player. An attached mpv is left running.
func (p *MpvPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ownsProcess() {
		return nil
	}

	if err := p.do([]any{"quit"}); err != nil {
		p.logger.Debug("mpv quit failed", "error", err)
	}

	select {
	case <-p.exited:
	case <-time.After(quitGracePeriod):
		if err := p.cmd.Process.Kill(); err != nil {
			p.logger.Error("error terminating mpv", "error", err)
		}
		<-p.exited
	}
	p.cmd = nil

	if err := os.Remove(p.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
