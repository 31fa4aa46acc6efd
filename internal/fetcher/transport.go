package fetcher

import "net/http"

// HeaderTransport injects default headers into every request before
// delegating to the base RoundTripper. Headers already present on a
// request are left alone.
type HeaderTransport struct {
	Headers map[string]string
	Base    http.RoundTripper
}

func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// BrowserHeaders returns the conservative browser-like header set many
// playlist servers expect. Accept-Encoding is left to the transport so
// gzip bodies arrive transparently decoded.
func BrowserHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent": userAgent,
		"Accept":     "*/*",
		"Connection": "keep-alive",
	}
}
