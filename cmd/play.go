package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tunebox/internal/library"
	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/player"
	"github.com/desertthunder/tunebox/internal/shared"
)

const (
	pollInterval = time.Second
	seekStep     = 10.0
)

const controlsHelp = "Controls: p pause/resume • n next • b back • + / - seek 10s • q quit (then Enter)"

// Play queues songs and plays them through mpv until the queue ends, q is entered or the command is interrupted.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	repeat, err := player.ParseRepeatMode(cmd.String("repeat"))
	if err != nil {
		return err
	}

	lib, err := r.openLibrary()
	if err != nil {
		return err
	}

	songs, err := queueSongs(lib, cmd.String("playlist"), cmd.String("album"), cmd.Args().Slice())
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		return shared.ErrQueueEmpty
	}

	queue := player.NewQueue(songs...)
	queue.SetShuffle(cmd.Bool("shuffle"))
	queue.SetRepeat(repeat)

	history, err := r.openHistory()
	if err != nil {
		r.logger.Warn("playing without history", "error", err)
		history = nil
	}

	backend := player.NewMpvPlayer(r.config.Player, r.logger)
	defer func() {
		if err := backend.Close(); err != nil {
			r.logger.Warn("failed to close mpv", "error", err)
		}
	}()

	session := player.NewSession(backend, queue, history, lib.Files(), r.logger)
	if err := session.Play(); err != nil {
		return err
	}

	r.writePlain("Queued %d songs (shuffle %v, repeat %s)\n", queue.Len(), queue.Shuffled(), queue.Repeat())
	r.writePlain("%s\n", controlsHelp)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go r.announce(ctx, session)
	go r.readControls(ctx, session, cancel)

	return session.Run(ctx, pollInterval)
}

// queueSongs collects a playlist, an album and individual songs in that order.
// With none of them it queues the whole library.
func queueSongs(lib *library.Service, playlistID, albumID string, songIDs []string) ([]*models.Song, error) {
	if playlistID == "" && albumID == "" && len(songIDs) == 0 {
		return lib.Songs().List(nil)
	}

	var songs []*models.Song
	if playlistID != "" {
		if _, err := lib.Playlists().Get(playlistID); err != nil {
			return nil, err
		}
		found, err := lib.Playlists().Songs(playlistID)
		if err != nil {
			return nil, err
		}
		songs = append(songs, found...)
	}

	if albumID != "" {
		if _, err := lib.Albums().Get(albumID); err != nil {
			return nil, err
		}
		found, err := lib.Songs().List(map[string]any{"album_id": albumID})
		if err != nil {
			return nil, err
		}
		songs = append(songs, found...)
	}

	for _, id := range songIDs {
		song, err := lib.Songs().Get(id)
		if err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}
	return songs, nil
}

// announce prints the current song whenever it changes.
func (r *Runner) announce(ctx context.Context, session *player.Session) {
	ticker := time.NewTicker(pollInterval / 2)
	defer ticker.Stop()

	var last string
	for {
		if song := session.Current(); song != nil && song.ID() != last {
			last = song.ID()
			r.writePlain("▶ %s [%s]\n", song.Title, shared.FormatDuration(song.Duration))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// readControls applies one command per input line. It stops at EOF without ending playback.
func (r *Runner) readControls(ctx context.Context, session *player.Session, quit context.CancelFunc) {
	scanner := bufio.NewScanner(r.input)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if done := r.control(session, strings.TrimSpace(scanner.Text())); done {
			quit()
			return
		}
	}
}

// control runs a single playback command and reports whether playback should stop.
func (r *Runner) control(session *player.Session, input string) (done bool) {
	var err error
	switch input {
	case "":
		return false
	case "q", "quit":
		return true
	case "p", "pause":
		var paused bool
		if paused, err = session.TogglePause(); err == nil {
			if paused {
				r.writePlain("⏸ Paused\n")
			} else {
				r.writePlain("▶ Resumed\n")
			}
		}
	case "n", "next":
		var ok bool
		if ok, err = session.Next(); err == nil && !ok {
			r.writePlain("End of queue\n")
		}
	case "b", "back":
		var ok bool
		if ok, err = session.Previous(); err == nil && !ok {
			r.writePlain("Start of queue\n")
		}
	case "+":
		err = session.SeekBy(seekStep)
	case "-":
		err = session.SeekBy(-seekStep)
	default:
		r.writePlain("%s\n", controlsHelp)
	}

	if err != nil {
		if errors.Is(err, shared.ErrMissingFile) {
			r.writePlain("⚠ %v\n", err)
		} else {
			r.logger.Warn("playback command failed", "command", input, "error", err)
		}
	}
	return false
}

// History lists recently played songs or clears the history.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	history, err := r.openHistory()
	if err != nil {
		return err
	}

	if cmd.Bool("clear") {
		if err := history.Clear(); err != nil {
			return err
		}
		return r.writePlain("✓ Cleared play history\n")
	}

	entries, err := history.Recent(int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if entries == nil {
			entries = []player.Entry{}
		}
		return r.writeJSON(entries, true)
	}
	if len(entries) == 0 {
		return r.writePlain("Nothing played yet\n")
	}

	rows := make([]string, 0, len(entries))
	for _, e := range entries {
		resume := "-"
		if e.Position > 0 {
			resume = shared.FormatDuration(int(e.Position))
		}
		rows = append(rows, fmt.Sprintf("%s\t%s\t%s\t%s",
			e.PlayedAt.Local().Format("2006-01-02 15:04"), resume, e.SongID, e.Title))
	}
	return r.writeTable("PLAYED\tRESUME\tSONG\tTITLE", rows)
}
