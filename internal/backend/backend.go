// Package backend abstracts the reasoning model behind the pipeline stages.
// Stages see a single Complete call; transport concerns (auth, retry-worthy
// status codes, timeouts) stay behind the interface.
package backend

import "context"

// Request is one completion request. Role and Goal frame the persona the
// stage runs as; Context carries the assembled prompt body.
type Request struct {
	Role    string
	Goal    string
	Context string
}

// Backend produces a raw completion for a request. Implementations return
// the model's text verbatim; parsing is the caller's concern.
//
// Errors are classified through the errors package: retryable failures
// (timeouts, rate limits, server errors) satisfy errors.IsRetryable so the
// stage runner can decide whether another attempt is worthwhile.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}
