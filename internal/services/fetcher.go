// Raw HTTP access for artwork downloads and API debugging
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/tunebox/internal/shared"
)

// Fetcher makes raw GET requests, either to absolute URLs or to paths under a base URL.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
}

// NewFetcher creates a new Fetcher. Relative paths resolve against baseURL.
func NewFetcher(baseURL string, client *http.Client) *Fetcher {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:3000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &Fetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// Response represents a raw response with status and body.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (f *Fetcher) resolve(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return f.baseURL + target
}

// Get performs a GET request and returns the raw response regardless of status.
func (f *Fetcher) Get(ctx context.Context, target string) (*Response, error) {
	return f.Do(ctx, http.MethodGet, target, nil)
}

// Bytes fetches target and returns its body, failing on a non-2xx status.
func (f *Fetcher) Bytes(ctx context.Context, target string) ([]byte, error) {
	resp, err := f.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: GET %s: status %d", shared.ErrAPIRequest, target, resp.StatusCode)
	}
	return resp.Body, nil
}

// Do performs a request with an optional JSON body and returns the raw response regardless of status.
func (f *Fetcher) Do(ctx context.Context, method, target string, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, f.resolve(target), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	out := &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}
	var jsonData any
	if err := json.Unmarshal(data, &jsonData); err == nil {
		out.IsJSON = true
		out.JSONData = jsonData
	}
	return out, nil
}
