package report

import "errors"

var (
	// ErrTransport covers unreachable collectors, timeouts and non-2xx answers. The cycle is skipped.
	ErrTransport = errors.New("report transport error")
	// ErrProtocol is a response body that cannot be read as feedback. Local state is left alone.
	ErrProtocol = errors.New("report protocol error")
	ErrNoURL    = errors.New("report: URL is required")
)
