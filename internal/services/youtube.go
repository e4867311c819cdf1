// YouTube Data API v3 [SearchService] implementation
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

const defaultYTBaseURL string = "https://www.googleapis.com/youtube/v3"

// musicCategoryID is the YouTube video category for Music.
const musicCategoryID = "10"

// YouTubeThumbnail is one entry of a snippet's thumbnails map.
type YouTubeThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type youtubeSnippet struct {
	Title        string                      `json:"title"`
	Description  string                      `json:"description"`
	ChannelID    string                      `json:"channelId"`
	ChannelTitle string                      `json:"channelTitle"`
	PublishedAt  time.Time                   `json:"publishedAt"`
	Thumbnails   map[string]YouTubeThumbnail `json:"thumbnails"`
}

type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet youtubeSnippet `json:"snippet"`
	} `json:"items"`
}

type youtubeVideosResponse struct {
	Items []struct {
		ID             string         `json:"id"`
		Snippet        youtubeSnippet `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type youtubeChannelsResponse struct {
	Items []struct {
		ID      string         `json:"id"`
		Snippet youtubeSnippet `json:"snippet"`
	} `json:"items"`
}

// YouTubeService implements [SearchService] against the YouTube Data API v3.
//
// Every request carries the API key as the "key" query parameter and waits on a shared rate limiter.
type YouTubeService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewYouTubeService creates a new YouTube Data API service instance.
//
// perSecond <= 0 disables rate limiting.
func NewYouTubeService(baseURL, apiKey string, perSecond float64) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}

	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	return &YouTubeService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube"
}

func (y *YouTubeService) doRequest(ctx context.Context, endpoint string, params url.Values, result any) error {
	if y.apiKey == "" {
		return fmt.Errorf("%w: youtube api_key", shared.ErrMissingCredentials)
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	params.Set("key", y.apiKey)
	apiURL := y.baseURL + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Message != "" {
			return fmt.Errorf("%w: youtube (status %d): %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Error.Message)
		}
		return fmt.Errorf("%w: youtube: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// Search returns music videos matching query.
//
// Calls GET /search, then GET /videos once to fill in durations.
// A failed duration lookup leaves durations at zero rather than failing the search.
func (y *YouTubeService) Search(ctx context.Context, query string, limit int) ([]models.Video, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}
	if limit <= 0 || limit > 50 {
		limit = 25
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("videoCategoryId", musicCategoryID)
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(limit))

	var resp youtubeSearchResponse
	if err := y.doRequest(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}

	videos := make([]models.Video, 0, len(resp.Items))
	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, videoFromSnippet(item.ID.VideoID, item.Snippet))
		ids = append(ids, item.ID.VideoID)
	}

	if len(ids) == 0 {
		return videos, nil
	}

	details, err := y.videos(ctx, ids)
	if err != nil {
		return videos, nil
	}

	durations := make(map[string]int, len(details))
	for _, d := range details {
		durations[d.ID] = d.Duration
	}
	for i := range videos {
		videos[i].Duration = durations[videos[i].ID]
	}

	return videos, nil
}

// Video retrieves a single video by id.
//
// Calls GET /videos?part=snippet,contentDetails.
func (y *YouTubeService) Video(ctx context.Context, videoID string) (*models.Video, error) {
	videos, err := y.videos(ctx, []string{videoID})
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("%w: video %s", shared.ErrNotFound, videoID)
	}
	return &videos[0], nil
}

func (y *YouTubeService) videos(ctx context.Context, ids []string) ([]models.Video, error) {
	params := url.Values{}
	params.Set("part", "snippet,contentDetails")
	params.Set("id", strings.Join(ids, ","))

	var resp youtubeVideosResponse
	if err := y.doRequest(ctx, "/videos", params, &resp); err != nil {
		return nil, err
	}

	videos := make([]models.Video, len(resp.Items))
	for i, item := range resp.Items {
		videos[i] = videoFromSnippet(item.ID, item.Snippet)
		if seconds, err := ParseISODuration(item.ContentDetails.Duration); err == nil {
			videos[i].Duration = seconds
		}
	}
	return videos, nil
}

// Channel retrieves a channel by id.
//
// Calls GET /channels?part=snippet.
func (y *YouTubeService) Channel(ctx context.Context, channelID string) (*models.Channel, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("id", channelID)

	var resp youtubeChannelsResponse
	if err := y.doRequest(ctx, "/channels", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: channel %s", shared.ErrNotFound, channelID)
	}

	item := resp.Items[0]
	return &models.Channel{
		ID:          item.ID,
		Title:       item.Snippet.Title,
		Description: item.Snippet.Description,
		Thumbnails:  pickThumbnails(item.Snippet.Thumbnails),
	}, nil
}

func videoFromSnippet(id string, s youtubeSnippet) models.Video {
	return models.Video{
		ID:           id,
		Title:        s.Title,
		Description:  s.Description,
		ChannelID:    s.ChannelID,
		ChannelTitle: s.ChannelTitle,
		PublishedAt:  s.PublishedAt,
		Thumbnails:   pickThumbnails(s.Thumbnails),
	}
}

// pickThumbnails maps the API's named thumbnails onto small, medium and large tiers.
//
// Large prefers the highest resolution available.
func pickThumbnails(thumbs map[string]YouTubeThumbnail) models.ImageURLs {
	first := func(keys ...string) string {
		for _, k := range keys {
			if t, ok := thumbs[k]; ok && t.URL != "" {
				return t.URL
			}
		}
		return ""
	}

	return models.ImageURLs{
		Small:  first("default", "medium", "high"),
		Medium: first("medium", "high", "default"),
		Large:  first("maxres", "standard", "high", "medium", "default"),
	}
}

// ParseISODuration converts an ISO-8601 duration such as "PT1H2M3S" or "P1DT4M" to seconds.
func ParseISODuration(s string) (int, error) {
	if !strings.HasPrefix(s, "P") || len(s) < 3 {
		return 0, fmt.Errorf("%w: duration %q", shared.ErrInvalidInput, s)
	}

	total := 0
	inTime := false
	num := ""
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'T':
			if inTime || num != "" {
				return 0, fmt.Errorf("%w: duration %q", shared.ErrInvalidInput, s)
			}
			inTime = true
		default:
			if num == "" {
				return 0, fmt.Errorf("%w: duration %q", shared.ErrInvalidInput, s)
			}
			n, _ := strconv.Atoi(num)
			num = ""

			var unit int
			switch {
			case r == 'W' && !inTime:
				unit = 7 * 24 * 3600
			case r == 'D' && !inTime:
				unit = 24 * 3600
			case r == 'H' && inTime:
				unit = 3600
			case r == 'M' && inTime:
				unit = 60
			case r == 'S' && inTime:
				unit = 1
			default:
				return 0, fmt.Errorf("%w: duration %q", shared.ErrInvalidInput, s)
			}
			total += n * unit
		}
	}

	if num != "" {
		return 0, fmt.Errorf("%w: duration %q", shared.ErrInvalidInput, s)
	}
	return total, nil
}
