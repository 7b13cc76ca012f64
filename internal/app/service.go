// Package service hosts the contest. Every mutation is a queue.Command run
// by a single worker goroutine that owns the orchestrator; readers get the
// immutable snapshot published after each command.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/belay/internal/adapters/auth"
	"github.com/okian/belay/internal/adapters/feed"
	"github.com/okian/belay/internal/adapters/mq/queue"
	"github.com/okian/belay/internal/adapters/mq/worker"
	"github.com/okian/belay/internal/adapters/repository"
	"github.com/okian/belay/internal/adapters/roster"
	"github.com/okian/belay/internal/domain/clock"
	"github.com/okian/belay/internal/domain/contest"
	"github.com/okian/belay/internal/domain/dedupe"
	"github.com/okian/belay/internal/domain/model"
	"github.com/okian/belay/internal/domain/scoring"
	"github.com/okian/belay/internal/domain/types"
	"github.com/okian/belay/pkg/logger"
	"github.com/okian/belay/pkg/metrics"
)

const shutdownTimeout = 5 * time.Second

type handlerFunc func(ctx context.Context, c queue.Command) (any, error)

// Service runs one contest at a time.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	store     scoring.Store
	publisher feed.Publisher
	roster    roster.Store
	gate      *auth.Gate
	clk       clockwork.Clock

	// Configuration
	queueSize     int
	dedupeSize    int
	durations     clock.Durations
	minDelay      time.Duration
	defaultRoutes int
	defaultPause  int
	boot          *SetupRequest

	// Runtime components
	queue    *queue.InMemoryQueue
	worker   *worker.InMemoryWorker
	deduper  dedupe.Deduper
	orch     *contest.Orchestrator
	dispatch map[queue.Kind]handlerFunc
	cancel   context.CancelFunc
	alerts   sync.WaitGroup

	// Owned by the worker goroutine.
	entrants []model.Entrant
	version  uint64
	dirty    bool

	view atomic.Pointer[types.View]

	// State
	started bool
	stopCh  chan struct{}

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		clk:           clockwork.NewRealClock(),
		queueSize:     1024,
		dedupeSize:    10_000,
		defaultRoutes: 5,
		defaultPause:  1,
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.view.Store(&types.View{Clock: clockView(clock.State{})})
	return s
}

// Start builds the components, starts the command loop and, when a boot
// contest is configured, sets it up.
func (s *Service) Start(ctx context.Context) error {
	started, err := s.start(ctx)
	if err != nil || !started || s.boot == nil {
		return err
	}
	if _, err := s.Setup(ctx, *s.boot); err != nil {
		return fmt.Errorf("boot contest: %w", err)
	}
	return nil
}

func (s *Service) start(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return false, nil
	}
	select {
	case <-s.stopCh:
		return false, ErrStopped
	default:
	}

	s.logger.Info(ctx, "starting contest service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory score store")
	}
	if s.gate == nil {
		gate, err := auth.NewGate("", nil)
		if err != nil {
			return false, err
		}
		s.gate = gate
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	scheduler := clock.NewTimerScheduler(s.clk, s.deliverTick)
	aggregator := scoring.NewAggregator(scoring.NewBoulderScorer(), s.store, scoring.WithNow(s.clk.Now))
	s.orch = contest.New(scheduler, aggregator,
		contest.WithObserver(s),
		contest.WithClockOptions(
			clock.WithClock(s.clk),
			clock.WithDurations(s.durations),
			clock.WithMinDelay(s.minDelay),
		),
	)
	s.dispatch = s.handlers()
	s.worker = worker.NewInMemoryWorker(s.queue, worker.HandlerFunc(s.handle),
		worker.WithName("contest"),
		worker.WithAfter(s.afterCommand),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.worker.Run(runCtx)

	s.started = true
	s.logger.Info(ctx, "contest service started",
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return true, nil
}

// Stop drains the command loop and closes the store and the feed. A stopped
// service cannot be started again.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping contest service...")

	_ = s.queue.Close()
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	if err := s.worker.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "worker did not stop cleanly", logger.Error(err))
	}
	cancel()
	s.cancel()
	s.alerts.Wait()

	if closer, ok := s.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn(ctx, "closing score store failed", logger.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Warn(ctx, "closing feed failed", logger.Error(err))
		}
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.started = false
	s.logger.Info(ctx, "contest service stopped")
}

// deliverTick runs on timer goroutines and hands the token to the loop. A
// dropped tick stalls the clock until the next command re-arms it, so it is
// logged loudly.
func (s *Service) deliverTick(token uint64) {
	ctx := context.Background()
	if !s.queue.Enqueue(ctx, queue.Tick(token)) {
		if s.queue.IsClosed() {
			return
		}
		metrics.RecordErrorByComponent("service", "tick_dropped")
		s.logger.Error(ctx, "clock tick dropped: command queue full", logger.Int("token", int(token)))
	}
}

// submit enqueues a command and waits for its reply.
func (s *Service) submit(ctx context.Context, kind queue.Kind, payload any) (any, error) {
	s.mu.RLock()
	q, w, started := s.queue, s.worker, s.started
	s.mu.RUnlock()
	if !started {
		return nil, ErrStopped
	}

	cmd := queue.NewCommand(kind, payload)
	if !q.Enqueue(ctx, cmd) {
		if q.IsClosed() {
			return nil, ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrBackpressure, kind)
	}
	select {
	case r := <-cmd.Done:
		return r.Value, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.Done():
		return nil, ErrStopped
	}
}

// handle dispatches a command to its handler.
func (s *Service) handle(ctx context.Context, c queue.Command) (any, error) {
	h, ok := s.dispatch[c.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown command %s", model.ErrInvalidInput, c.Kind)
	}
	return h(ctx, c)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.view.Load()
	stats := map[string]interface{}{
		"started":     s.started,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"configured":  v.Configured,
		"version":     v.Version,
		"phase":       v.Clock.Phase,
		"round":       v.Round,
		"rotation":    v.Rotation,
		"finished":    v.Finished,
		"competitors": len(v.Competitors),
	}
	if s.started {
		queueLen := s.queue.Len(context.Background())
		stats["queueLength"] = queueLen
		stats["submissionsSeen"] = s.deduper.Size()
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}

// Size returns the number of remembered score submission ids.
func (s *Service) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

func isRejection(err error) bool {
	return errors.Is(err, model.ErrInvalidInput) ||
		errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrConfiguration)
}
