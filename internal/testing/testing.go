// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/tunebox/internal/models"
	"github.com/desertthunder/tunebox/internal/shared"
)

// MockSearchService is a test double for [services.SearchService]
type MockSearchService struct {
	Videos   map[string]models.Video
	Channels map[string]models.Channel
	Err      error
}

func (m *MockSearchService) Search(ctx context.Context, query string, limit int) ([]models.Video, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.Video
	for _, v := range m.Videos {
		out = append(out, v)
	}
	return out, nil
}

func (m *MockSearchService) Video(ctx context.Context, videoID string) (*models.Video, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	v, ok := m.Videos[videoID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &v, nil
}

func (m *MockSearchService) Channel(ctx context.Context, channelID string) (*models.Channel, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	c, ok := m.Channels[channelID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &c, nil
}

func (m *MockSearchService) Name() string { return "mock" }

// MockResolver is a test double for [services.Resolver] returning a fixed stream per video id
type MockResolver struct {
	mu      sync.Mutex
	Streams map[string]models.Stream
	Err     error
	Calls   int
}

func (m *MockResolver) Resolve(ctx context.Context, videoID string) (*models.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	s, ok := m.Streams[videoID]
	if !ok {
		return nil, shared.ErrNoStream
	}
	return &s, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
