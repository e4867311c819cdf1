// Stream URL resolution via github.com/kkdai/youtube
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

// videoClient is the subset of [youtube.Client] used by [StreamResolver].
type videoClient interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
	GetStreamURLContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error)
}

// StreamResolver implements [Resolver] with the kkdai/youtube client.
//
// Audio-only formats are preferred over muxed ones; among them the preferred container wins, then bitrate.
type StreamResolver struct {
	client      videoClient
	preferAudio string
}

// NewStreamResolver creates a resolver. preferExt is the library's audio format ("m4a" or "mp3");
// "m4a" prefers AAC streams so extraction can copy rather than transcode.
func NewStreamResolver(httpClient *http.Client, preferExt string) *StreamResolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &StreamResolver{
		client:      &youtube.Client{HTTPClient: httpClient},
		preferAudio: preferredMime(preferExt),
	}
}

func preferredMime(ext string) string {
	if ext == "m4a" {
		return "audio/mp4"
	}
	return ""
}

// Resolve fetches video metadata and returns the best audio-capable stream.
func (s *StreamResolver) Resolve(ctx context.Context, videoID string) (*models.Stream, error) {
	video, err := s.client.GetVideoContext(ctx, videoID)
	if err != nil {
		switch {
		case errors.Is(err, youtube.ErrLoginRequired),
			errors.Is(err, youtube.ErrVideoPrivate),
			errors.Is(err, youtube.ErrNotPlayableInEmbed):
			return nil, fmt.Errorf("%w: %s: %v", shared.ErrNoStream, videoID, err)
		}
		return nil, fmt.Errorf("failed to fetch video %s: %w", videoID, err)
	}

	format := pickAudioFormat(video.Formats, s.preferAudio)
	if format == nil {
		return nil, fmt.Errorf("%w: %s has no audio formats", shared.ErrNoStream, videoID)
	}

	streamURL, err := s.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve stream url for %s: %w", videoID, err)
	}

	return toStream(video, format, streamURL), nil
}

// pickAudioFormat prefers audio-only formats, then the preferred mime type, then the highest bitrate.
// Muxed formats are the fallback when no audio-only format exists.
func pickAudioFormat(formats youtube.FormatList, preferMime string) *youtube.Format {
	var audioOnly, muxed []*youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 && !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if strings.HasPrefix(f.MimeType, "audio/") {
			audioOnly = append(audioOnly, f)
		} else {
			muxed = append(muxed, f)
		}
	}

	candidates := audioOnly
	if len(candidates) == 0 {
		candidates = muxed
	}

	var best *youtube.Format
	for _, f := range candidates {
		if best == nil || betterAudioFormat(f, best, preferMime) {
			best = f
		}
	}
	return best
}

func betterAudioFormat(candidate, current *youtube.Format, preferMime string) bool {
	if preferMime != "" {
		cp := strings.HasPrefix(candidate.MimeType, preferMime)
		bp := strings.HasPrefix(current.MimeType, preferMime)
		if cp != bp {
			return cp
		}
	}
	return bitrateForFormat(candidate) > bitrateForFormat(current)
}

func bitrateForFormat(f *youtube.Format) int {
	if f.Bitrate > 0 {
		return f.Bitrate
	}
	return f.AverageBitrate
}

// ExtensionForMime maps a stream mime type such as `audio/mp4; codecs="mp4a.40.2"` to a file extension.
func ExtensionForMime(mime string) string {
	base, _, _ := strings.Cut(mime, ";")
	switch strings.TrimSpace(base) {
	case "audio/mp4":
		return "m4a"
	case "video/mp4":
		return "mp4"
	case "audio/webm", "video/webm":
		return "webm"
	case "audio/mpeg":
		return "mp3"
	}
	return "bin"
}

func toStream(video *youtube.Video, format *youtube.Format, streamURL string) *models.Stream {
	stream := &models.Stream{
		VideoID:       video.ID,
		URL:           streamURL,
		MimeType:      format.MimeType,
		Extension:     ExtensionForMime(format.MimeType),
		ContentLength: format.ContentLength,
		Bitrate:       bitrateForFormat(format),
		Title:         video.Title,
		Author:        video.Author,
		ChannelID:     video.ChannelID,
		Duration:      int(video.Duration.Seconds()),
	}

	thumbs := append(youtube.Thumbnails(nil), video.Thumbnails...)
	sort.Slice(thumbs, func(i, j int) bool { return thumbs[i].Width < thumbs[j].Width })
	if n := len(thumbs); n > 0 {
		stream.Thumbnails = models.ImageURLs{
			Small:  thumbs[0].URL,
			Medium: thumbs[n/2].URL,
			Large:  thumbs[n-1].URL,
		}
	}

	return stream
}
