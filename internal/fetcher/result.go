package fetcher

// Result is a fully buffered response body plus transfer diagnostics.
type Result struct {
	Body []byte
	// BytesRead is the number of body bytes actually received.
	BytesRead int64
	// DeclaredLength is the Content-Length the server announced,
	// or -1 when it sent none.
	DeclaredLength int64
	// Incomplete is set when the connection closed before the full
	// declared length arrived. The partial body is still usable.
	Incomplete bool
}
