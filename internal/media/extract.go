// package media wraps ffmpeg for audio extraction and handles artwork images and audio tags
package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/tunebox/internal/shared"
)

const (
	defaultFFmpeg  = "ffmpeg"
	defaultFFprobe = "ffprobe"

	progressPipeTarget = "pipe:2"
	progressTimePrefix = "out_time_us="

	// stderrTail is how many non-progress stderr lines are kept for error messages.
	stderrTail = 8
)

// Extractor produces audio-only files from downloaded media by running ffmpeg.
type Extractor struct {
	ffmpeg  string
	ffprobe string
	logger  *log.Logger
}

// NewExtractor creates an Extractor. Empty paths fall back to "ffmpeg" and "ffprobe" on PATH.
func NewExtractor(ffmpegPath, ffprobePath string, logger *log.Logger) *Extractor {
	if ffmpegPath == "" {
		ffmpegPath = defaultFFmpeg
	}
	if ffprobePath == "" {
		ffprobePath = defaultFFprobe
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Extractor{ffmpeg: ffmpegPath, ffprobe: ffprobePath, logger: logger}
}

// Args builds the ffmpeg arguments to write the audio of in to out.
//
// The output codec follows out's extension: ".mp3" encodes with LAME; ".m4a" copies AAC from MP4 sources
// and encodes AAC otherwise.
func (e *Extractor) Args(in, out string) []string {
	args := []string{"-y", "-hide_banner", "-i", in, "-vn"}

	inExt := strings.ToLower(filepath.Ext(in))
	switch strings.ToLower(filepath.Ext(out)) {
	case ".mp3":
		args = append(args, "-c:a", "libmp3lame", "-q:a", "2")
	default:
		if inExt == ".m4a" || inExt == ".mp4" {
			args = append(args, "-c:a", "copy")
		} else {
			args = append(args, "-c:a", "aac", "-b:a", "192k")
		}
		args = append(args, "-movflags", "+faststart")
	}

	return append(args, "-progress", progressPipeTarget, "-nostats", out)
}

// ExtractAudio writes the audio track of in to out, reporting progress in [0, 1] when the duration is known.
//
// On failure or cancellation the partial output is removed.
func (e *Extractor) ExtractAudio(ctx context.Context, in, out string, onProgress func(float64)) error {
	if _, err := os.Stat(in); err != nil {
		return fmt.Errorf("%w: %s", shared.ErrMissingFile, in)
	}

	total, err := e.Duration(ctx, in)
	if err != nil {
		e.logger.Debug("duration unavailable, extracting without progress", "path", in, "error", err)
	}

	cmd := exec.CommandContext(ctx, e.ffmpeg, e.Args(in, out)...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var tail []string
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if pos, ok := ParseProgressLine(line); ok {
			if total > 0 && onProgress != nil {
				onProgress(min(pos.Seconds()/total, 1))
			}
			continue
		}
		if line != "" && !strings.Contains(line, "=") {
			tail = append(tail, line)
			if len(tail) > stderrTail {
				tail = tail[1:]
			}
		}
	}

	err = cmd.Wait()
	switch {
	case ctx.Err() != nil:
		os.Remove(out)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: extracting %s", shared.ErrTimeout, in)
		}
		return ctx.Err()
	case err != nil:
		os.Remove(out)
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.Join(tail, "; "))
	}

	if onProgress != nil {
		onProgress(1)
	}
	return nil
}

// Duration returns the duration of a media file in seconds using ffprobe.
func (e *Extractor) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.ffprobe, "-v", "error", "-show_entries", "format=duration", "-of", "csv=p=0", path)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("failed to run ffprobe: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return duration, nil
}

// ParseProgressLine parses an "out_time_us=<microseconds>" line from ffmpeg's -progress output.
func ParseProgressLine(line string) (time.Duration, bool) {
	value, ok := strings.CutPrefix(line, progressTimePrefix)
	if !ok {
		return 0, false
	}
	us, err := strconv.ParseInt(value, 10, 64)
	if err != nil || us < 0 {
		return 0, false
	}
	return time.Duration(us) * time.Microsecond, true
}
