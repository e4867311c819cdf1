package tasks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/tunebox/internal/shared"
)

// Transfer downloads a URL to a file, continuing from whatever is already on disk.
type Transfer struct {
	client *http.Client
}

// NewTransfer creates a Transfer. A nil client uses [http.DefaultClient].
func NewTransfer(client *http.Client) *Transfer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Transfer{client: client}
}

// Download fetches url into path and returns the final file size.
//
// When path already holds data a Range request asks for the rest. A server that answers 200 instead of
// 206 restarts the file from zero. A 206 that does not start at the end of the file removes the partial
// file and fails, so the next attempt starts over. onProgress receives bytes on disk and the total, or -1 when unknown.
func (t *Transfer) Download(ctx context.Context, url, path string, onProgress func(done, total int64)) (int64, error) {
	var offset int64
	if info, err := os.Stat(path); err == nil {
		offset = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return offset, ctx.Err()
		}
		return offset, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	total := int64(-1)

	switch resp.StatusCode {
	case http.StatusPartialContent:
		start, _, size, ok := parseContentRange(resp.Header.Get("Content-Range"))
		if !ok || start != offset {
			os.Remove(path)
			return 0, fmt.Errorf("%w: server resumed at %q, expected byte %d", shared.ErrAPIRequest, resp.Header.Get("Content-Range"), offset)
		}
		flags |= os.O_APPEND
		total = size
	case http.StatusOK:
		flags |= os.O_TRUNC
		offset = 0
		total = resp.ContentLength
	case http.StatusRequestedRangeNotSatisfiable:
		if _, _, size, ok := parseContentRange(resp.Header.Get("Content-Range")); ok && size == offset {
			if onProgress != nil {
				onProgress(offset, offset)
			}
			return offset, nil
		}
		os.Remove(path)
		return 0, fmt.Errorf("%w: partial file does not match remote size", shared.ErrAPIRequest)
	default:
		return offset, fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return offset, fmt.Errorf("failed to open %s: %w", path, err)
	}

	pw := &progressWriter{done: offset, total: total, report: onProgress}
	_, copyErr := io.Copy(io.MultiWriter(f, pw), resp.Body)
	closeErr := f.Close()

	switch {
	case copyErr != nil && ctx.Err() != nil:
		return pw.done, ctx.Err()
	case copyErr != nil:
		return pw.done, fmt.Errorf("download interrupted: %w", copyErr)
	case closeErr != nil:
		return pw.done, closeErr
	case total > 0 && pw.done != total:
		return pw.done, fmt.Errorf("%w: got %d of %d bytes", io.ErrUnexpectedEOF, pw.done, total)
	}

	return pw.done, nil
}

// progressWriter counts bytes as they are written and reports them.
type progressWriter struct {
	done   int64
	total  int64
	report func(done, total int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.done += int64(len(b))
	if p.report != nil {
		p.report(p.done, p.total)
	}
	return len(b), nil
}

// parseContentRange parses "bytes start-end/size" and "bytes */size".
func parseContentRange(header string) (start, end, size int64, ok bool) {
	spec, found := strings.CutPrefix(header, "bytes ")
	if !found {
		return 0, 0, 0, false
	}

	rng, sizeStr, found := strings.Cut(spec, "/")
	if !found {
		return 0, 0, 0, false
	}

	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return 0, 0, 0, false
	}

	if rng == "*" {
		return 0, 0, size, true
	}

	startStr, endStr, found := strings.Cut(rng, "-")
	if !found {
		return 0, 0, 0, false
	}
	if start, err = strconv.ParseInt(startStr, 10, 64); err != nil {
		return 0, 0, 0, false
	}
	if end, err = strconv.ParseInt(endStr, 10, 64); err != nil {
		return 0, 0, 0, false
	}
	return start, end, size, true
}
