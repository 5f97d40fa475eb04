package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"filmstream/internal/infra/metrics"
)

// Job is one run of a recurring task.
type Job func(ctx context.Context) error

// Ticker abstracts time.Ticker so tests can drive ticks by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory builds a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// RealTicker is the TickerFactory backed by time.NewTicker.
func RealTicker(d time.Duration) Ticker { return realTicker{t: time.NewTicker(d)} }

type Option func(*Scheduler)

// WithTicker replaces the wall-clock ticker.
func WithTicker(f TickerFactory) Option { return func(s *Scheduler) { s.newTicker = f } }

// WithRunTimeout bounds every single run. Defaults to 30s.
func WithRunTimeout(d time.Duration) Option { return func(s *Scheduler) { s.runTimeout = d } }

// WithRunOnStart runs the job once right after Start.
func WithRunOnStart() Option { return func(s *Scheduler) { s.runOnStart = true } }

// Scheduler periodically runs a Job.
type Scheduler struct {
	name       string
	interval   time.Duration
	job        Job
	logger     *zerolog.Logger
	newTicker  TickerFactory
	runTimeout time.Duration
	runOnStart bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler constructs a scheduler that runs job every `interval`.
// If interval <= 0 it defaults to 1 minute.
func NewScheduler(name string, interval time.Duration, job Job, logger *zerolog.Logger, opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "Scheduler").Str("job", name).Logger()
	s := &Scheduler{
		name:       name,
		interval:   interval,
		job:        job,
		logger:     &l,
		newTicker:  RealTicker,
		runTimeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start begins the loop in a background goroutine.
// Calling Start on a running scheduler has no effect.
func (s *Scheduler) Start(parentCtx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.cancel = cancel
	s.done = make(chan struct{})
	ticker := s.newTicker(s.interval)

	go s.loop(ctx, ticker, s.done)
}

func (s *Scheduler) loop(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer func() {
		ticker.Stop()
		close(done)
	}()

	s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")
	if s.runOnStart {
		s.RunOnce(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("context cancelled; stopping")
			return
		case <-ticker.C():
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes the job synchronously with the configured timeout.
func (s *Scheduler) RunOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	start := time.Now()
	err := s.job(runCtx)
	metrics.ObserveJob(s.name, time.Since(start), err)
	if err != nil {
		s.logger.Error().Err(err).Msg("job run failed")
	}
}

// Stop cancels the loop and waits for it to finish. It is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info().Msg("scheduler stopped")
}
