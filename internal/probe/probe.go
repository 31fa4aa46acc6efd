// Package probe measures whether saved playlist entries actually
// stream at a watchable rate. A probe opens the first channel of a
// playlist file and reads it for a window, judging the sustained
// transfer rate after an initial buffer grace period.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/voyagen/streamsift/internal/fetcher"
)

const readChunk = 32 * 1024

// Verdict is the outcome of measuring a single stream URL.
type Verdict struct {
	URL     string  `json:"url"`
	OK      bool    `json:"ok"`
	Bytes   int64   `json:"bytes"`
	Seconds float64 `json:"seconds"`
	KBps    float64 `json:"kbps"`
	Reason  string  `json:"reason,omitempty"`
}

// Prober reads streams against a time window and a minimum rate.
type Prober struct {
	http    *http.Client
	window  time.Duration
	buffer  time.Duration
	minKBps float64
}

// New builds a Prober. dnsServers, when non-empty, overrides system
// DNS with the given resolvers tried in order. The buffer is the
// grace period before the rate floor is enforced.
func New(userAgent string, window, buffer time.Duration, minKBps float64, dnsServers []string) *Prober {
	dialer := &net.Dialer{
		Timeout:  10 * time.Second,
		Resolver: resolver(dnsServers),
	}
	base := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        16,
	}
	return &Prober{
		http: &http.Client{
			Transport: &fetcher.HeaderTransport{
				Headers: fetcher.BrowserHeaders(userAgent),
				Base:    base,
			},
		},
		window:  window,
		buffer:  buffer,
		minKBps: minKBps,
	}
}

// resolver returns nil when no servers are configured, which keeps
// the dialer on system DNS.
func resolver(servers []string) *net.Resolver {
	if len(servers) == 0 {
		return nil
	}
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: 5 * time.Second}
			var lastErr error
			for _, s := range servers {
				conn, err := d.DialContext(ctx, network, net.JoinHostPort(s, "53"))
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			return nil, lastErr
		},
	}
}

// Measure reads rawURL for up to the window and returns a Verdict.
// The window includes connection setup. A stream that ends before the
// buffer period, or that falls under the rate floor after it, fails.
func (p *Prober) Measure(ctx context.Context, rawURL string) Verdict {
	v := Verdict{URL: rawURL}
	start := time.Now()
	deadline := start.Add(p.window)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		v.Reason = fmt.Sprintf("request: %v", err)
		return v
	}
	resp, err := p.http.Do(req)
	if err != nil {
		v.Seconds = time.Since(start).Seconds()
		v.Reason = fmt.Sprintf("connect: %v", err)
		return v
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		v.Seconds = time.Since(start).Seconds()
		v.Reason = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return v
	}

	buf := make([]byte, readChunk)
	var total int64
	for {
		n, err := resp.Body.Read(buf)
		total += int64(n)
		elapsed := time.Since(start)
		v.Bytes, v.Seconds, v.KBps = total, elapsed.Seconds(), kbps(total, elapsed)

		if err != nil {
			switch {
			case errors.Is(err, io.EOF) && elapsed >= p.buffer && v.KBps >= p.minKBps:
				v.OK = true
			case errors.Is(err, io.EOF):
				v.Reason = "stream ended early"
			case ctx.Err() != nil && v.KBps >= p.minKBps:
				// Window elapsed while blocked in a read.
				v.OK = true
			case ctx.Err() != nil:
				v.Reason = "below minimum rate"
			default:
				v.Reason = err.Error()
			}
			return v
		}
		if elapsed >= p.window {
			v.OK = v.KBps >= p.minKBps
			if !v.OK {
				v.Reason = "below minimum rate"
			}
			return v
		}
		if elapsed >= p.buffer && v.KBps < p.minKBps {
			v.Reason = "below minimum rate"
			return v
		}
	}
}

func kbps(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / 1024 / d.Seconds()
}
