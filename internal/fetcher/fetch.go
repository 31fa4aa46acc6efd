// Package fetcher retrieves playlist documents over HTTP with a hard
// byte ceiling, so a single oversized or lying server cannot exhaust
// memory.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const readChunk = 32 * 1024

// Client fetches documents with a size ceiling and per-request timeout.
// Redirects are followed; nothing is retried.
type Client struct {
	http     *http.Client
	maxBytes int64
}

// New builds a Client. The timeout covers the whole exchange including
// body streaming; maxBytes caps how much body is ever buffered.
func New(userAgent string, timeout time.Duration, maxBytes int64) *Client {
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &HeaderTransport{
				Headers: BrowserHeaders(userAgent),
			},
		},
		maxBytes: maxBytes,
	}
}

// Fetch GETs url and returns the buffered body. Typed failures:
// ErrTooLarge when the declared or streamed size passes the ceiling,
// ErrEmptyBody for zero bytes without a declared zero length, and
// *StatusError for HTTP 4xx/5xx. An early close after partial data is
// not a failure; the Result comes back with Incomplete set.
func (c *Client) Fetch(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("NewRequest: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	declared := resp.ContentLength // -1 when unknown
	if declared > c.maxBytes {
		return nil, fmt.Errorf("declared %d bytes: %w", declared, ErrTooLarge)
	}

	var buf bytes.Buffer
	if declared > 0 {
		buf.Grow(int(declared))
	}
	chunk := make([]byte, readChunk)
	var total int64
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			total += int64(n)
			// Servers omit or lie about Content-Length; the running
			// total is the enforcement that actually counts.
			if total > c.maxBytes {
				return nil, fmt.Errorf("streamed %d bytes: %w", total, ErrTooLarge)
			}
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) && total > 0 {
				// Connection closed short of the declared length.
				// Keep what arrived; many playlist servers report
				// lengths they never deliver.
				return &Result{
					Body:           buf.Bytes(),
					BytesRead:      total,
					DeclaredLength: declared,
					Incomplete:     true,
				}, nil
			}
			return nil, fmt.Errorf("read body: %w", err)
		}
	}

	if total == 0 && declared != 0 {
		return nil, ErrEmptyBody
	}
	return &Result{
		Body:           buf.Bytes(),
		BytesRead:      total,
		DeclaredLength: declared,
		Incomplete:     declared > 0 && total < declared,
	}, nil
}
