package watchdir

import (
	"context"
	"time"
)

const (
	// DefaultMaxDepth is the default number of directory levels, including the root, that get watched.
	DefaultMaxDepth = 64

	// DefaultPollInterval is the interval of the notifier used when none is configured.
	DefaultPollInterval = 2 * time.Second

	// DefaultConcurrency is the default number of entries stat'ed in parallel while listing a directory.
	DefaultConcurrency = 16
)

// WatchDir represents a watch directory instance
type WatchDir interface {
	// Watch builds the watch tree and blocks until the context is cancelled, the handler returns
	// an error, or the root directory can no longer be watched. The handler is called from the
	// goroutine that called Watch, one event at a time, and is never called after Watch returns.
	Watch(ctx context.Context, handler Handler) error
}

// Handler receives the events of a watch directory. Returning an error stops the watch.
type Handler interface {
	WatchEvent(ctx context.Context, event Event) error
}

type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) WatchEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}
