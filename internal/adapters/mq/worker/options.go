package worker

import (
	"context"

	"github.com/okian/belay/internal/adapters/mq/queue"
	"github.com/okian/belay/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithAfter registers a hook run after every command, on the worker goroutine.
func WithAfter(fn func(ctx context.Context, c queue.Command)) Option {
	return func(w *InMemoryWorker) {
		if fn != nil {
			w.after = fn
		}
	}
}
