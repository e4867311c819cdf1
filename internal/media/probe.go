package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"
)

// Info is what can be read from an audio file without ffmpeg.
type Info struct {
	Title    string
	Artist   string
	Album    string
	Duration float64 // seconds, zero when unknown
	Size     int64
}

// Probe reads tags from an audio file and, for MP3s, sums frame durations.
//
// Missing tags are not an error: the title falls back to the file name.
func Probe(path string) (Info, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	if stat.IsDir() {
		return Info{}, fmt.Errorf("%s is a directory", path)
	}

	info := Info{Size: stat.Size()}
	info.Title, info.Artist, info.Album = readTags(path)
	if info.Title == "" {
		info.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		if d, err := MP3Duration(path); err == nil {
			info.Duration = d
		}
	}

	return info, nil
}

func readTags(path string) (title, artist, album string) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", ""
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return "", "", ""
	}

	return strings.TrimSpace(meta.Title()), strings.TrimSpace(meta.Artist()), strings.TrimSpace(meta.Album())
}

// MP3Duration decodes every frame header of an MP3 file and returns the summed duration in seconds.
func MP3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var (
		frame   mp3.Frame
		skipped int
		total   float64
		frames  int
	)

	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, err
		}
		frames++
		total += frame.Duration().Seconds()
	}

	if frames == 0 {
		return 0, fmt.Errorf("no mp3 frames in %s", path)
	}
	return total, nil
}
