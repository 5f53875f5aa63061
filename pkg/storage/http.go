package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// HTTP opens http and https URLs. Seeking uses Range requests when the
// server supports them and skips forward through the body otherwise.
type HTTP struct {
	Client *http.Client
}

func (h *HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}

// Open issues a HEAD request for the resource size and returns an Object
// that fetches the body on first read.
func (h *HTTP) Open(ctx context.Context, rawURL string) (Object, error) {
	size := int64(-1)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	resp, err := h.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: head %s: %w", rawURL, err)
	}
	resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("storage: open %s: %w", rawURL, os.ErrNotExist)
	case resp.StatusCode < 300:
		size = resp.ContentLength
	}
	// Servers that reject HEAD still get a GET on first read.
	return newRangeObject(ctx, size, func(ctx context.Context, off int64) (io.ReadCloser, error) {
		return h.get(ctx, rawURL, off)
	}), nil
}

func (h *HTTP) get(ctx context.Context, rawURL string, off int64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if off > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", off))
	}
	resp, err := h.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", rawURL, err)
	}
	switch resp.StatusCode {
	case http.StatusPartialContent:
		return resp.Body, nil
	case http.StatusOK:
		if off > 0 {
			if _, err := io.CopyN(io.Discard, resp.Body, off); err != nil {
				resp.Body.Close()
				return nil, fmt.Errorf("storage: skip to %d in %s: %w", off, rawURL, err)
			}
		}
		return resp.Body, nil
	case http.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return io.NopCloser(strings.NewReader("")), nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("storage: get %s: %w", rawURL, os.ErrNotExist)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("storage: get %s: unexpected status %s", rawURL, resp.Status)
	}
}

var _ Opener = (*HTTP)(nil)
