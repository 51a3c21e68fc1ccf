package broadcast

import "errors"

var (
	// ErrClosed indicates the broadcaster has been shut down.
	ErrClosed = errors.New("broadcast.closed")
)
