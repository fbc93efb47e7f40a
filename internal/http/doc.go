// Package http provides the HTTP client used to talk to the mod catalog and
// the mod storage.
//
// The Client in this package handles:
//   - User-Agent headers
//   - Request timeouts
//   - Client-side rate limiting (golang.org/x/time/rate)
//   - Ranged streaming for resumable downloads
//   - HEAD requests and range-support checks
//
// Non-success HTTP statuses are returned as *StatusError wrapped in a
// categorised failure: 5xx, 408 and 429 are network failures and may be
// retried, every other 4xx is a validation failure.
//
// # Basic Usage
//
//	client := http.NewClient(
//	    http.WithTimeout(30*time.Second),
//	    http.WithRateLimit(2, 4),
//	)
//
//	// Fetch an HTML page
//	html, err := client.GetString(ctx, "https://mods.factorio.com/mod/flib")
//
//	// Stream an artifact from byte 1024 onwards
//	stream, err := client.Stream(ctx, zipURL, 1024)
//	if err == nil {
//	    defer stream.Body.Close()
//	    // stream.Start is 1024 if the server honoured the range, 0 otherwise
//	}
package http
