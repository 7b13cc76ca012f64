// Package worker runs the single executor that owns the contest. Every
// command is handled to completion before the next one is read.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/belay/internal/adapters/mq/queue"
	"github.com/okian/belay/pkg/logger"
	"github.com/okian/belay/pkg/metrics"
)

// Handler executes one command.
type Handler interface {
	Handle(ctx context.Context, c queue.Command) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, c queue.Command) (any, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, c queue.Command) (any, error) { return f(ctx, c) }

// Queue defines how the worker receives commands.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Command
}

// Worker processes commands one at a time.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or Shutdown is called.
	Run(ctx context.Context)
	// Shutdown stops the worker after the command in progress.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker on top of a Queue.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	after   func(ctx context.Context, c queue.Command)
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, handler Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		handler:  handler,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	commands := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case c, ok := <-commands:
			if !ok {
				return
			}
			w.process(ctx, c)
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process handles a single command, runs the after hook and replies to its
// submitter.
func (w *InMemoryWorker) process(ctx context.Context, c queue.Command) {
	start := time.Now()
	value, err := w.handle(ctx, c)
	metrics.RecordCommand(c.Kind.String(), float64(time.Since(start).Microseconds())/1000, err != nil)

	if err != nil {
		w.logger.Debug(ctx, "command rejected",
			logger.String("kind", c.Kind.String()),
			logger.Error(err),
		)
	}
	// The after hook runs first so a submitter reading state sees its command.
	if w.after != nil {
		w.after(ctx, c)
	}
	if c.Done != nil {
		select {
		case c.Done <- queue.Reply{Value: value, Err: err}:
		default:
			w.logger.Warn(ctx, "reply dropped", logger.String("kind", c.Kind.String()))
		}
	}
}

// handle runs the handler, turning a panic into an error so one bad command
// does not take the contest down.
func (w *InMemoryWorker) handle(ctx context.Context, c queue.Command) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("worker", "panic")
			w.logger.Error(ctx, "command panicked",
				logger.String("kind", c.Kind.String()),
				logger.Any("panic", r),
			)
			err = fmt.Errorf("command %s panicked: %v", c.Kind, r)
		}
	}()
	return w.handler.Handle(ctx, c)
}
