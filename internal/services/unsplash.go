// Unsplash [ImageService] implementation
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

const defaultUnsplashBaseURL string = "https://api.unsplash.com"

// UnsplashPhoto is a photo in an Unsplash search response.
type UnsplashPhoto struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	AltDescription string `json:"alt_description"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	URLs           struct {
		Thumb   string `json:"thumb"`
		Small   string `json:"small"`
		Regular string `json:"regular"`
		Full    string `json:"full"`
	} `json:"urls"`
	User struct {
		Name string `json:"name"`
	} `json:"user"`
}

// UnsplashService searches Unsplash for artwork.
type UnsplashService struct {
	baseURL    string
	accessKey  string
	httpClient *http.Client
}

// NewUnsplashService creates a new Unsplash service instance.
func NewUnsplashService(baseURL, accessKey string) *UnsplashService {
	if baseURL == "" {
		baseURL = defaultUnsplashBaseURL
	}
	return &UnsplashService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accessKey:  accessKey,
		httpClient: http.DefaultClient,
	}
}

// Name returns the service name.
func (u *UnsplashService) Name() string {
	return "Unsplash"
}

// SearchImages returns up to limit photos matching query.
//
// Calls GET /search/photos with the "Authorization: Client-ID" header.
func (u *UnsplashService) SearchImages(ctx context.Context, query string, limit int) ([]models.Image, error) {
	if u.accessKey == "" {
		return nil, fmt.Errorf("%w: unsplash access_key", shared.ErrMissingCredentials)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}
	if limit <= 0 || limit > 30 {
		limit = 10
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL+"/search/photos?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+u.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Errors []string `json:"errors"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && len(errResp.Errors) > 0 {
			return nil, fmt.Errorf("%w: unsplash (status %d): %s", shared.ErrAPIRequest, resp.StatusCode, strings.Join(errResp.Errors, "; "))
		}
		return nil, fmt.Errorf("%w: unsplash: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var result struct {
		Results []UnsplashPhoto `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	images := make([]models.Image, len(result.Results))
	for i, p := range result.Results {
		desc := p.Description
		if desc == "" {
			desc = p.AltDescription
		}
		images[i] = models.Image{
			ID:          p.ID,
			Description: desc,
			Author:      p.User.Name,
			Width:       p.Width,
			Height:      p.Height,
			URLs: models.ImageURLs{
				Small:  firstNonEmpty(p.URLs.Thumb, p.URLs.Small),
				Medium: firstNonEmpty(p.URLs.Small, p.URLs.Regular),
				Large:  firstNonEmpty(p.URLs.Regular, p.URLs.Full),
			},
		}
	}

	return images, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
