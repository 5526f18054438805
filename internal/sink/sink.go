// Package sink dispatches committed key selections to the host system.
package sink

import (
	"context"

	"github.com/jblick1327/switch-interface/internal/layout"
)

// Sink receives committed key selections. Implementations must be safe to
// call from a single dispatch goroutine and should fail fast; the scan engine
// logs failures and keeps scanning.
type Sink interface {
	Commit(context.Context, layout.Key) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(context.Context, layout.Key) error

func (f SinkFunc) Commit(ctx context.Context, key layout.Key) error {
	return f(ctx, key)
}
