package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/botflow/internal/logging"
	"github.com/aretw0/botflow/pkg/ports"
	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the expiry sweep every minute.
const DefaultSweepSchedule = "@every 1m"

// cronParser accepts standard 5-field expressions and descriptors such as "@every 5m".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Sweeper periodically asks a store to retire expired sessions.
type Sweeper struct {
	store   ports.SessionStore
	cron    *cron.Cron
	timeout time.Duration
	logger  *slog.Logger
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepLogger configures a logger for the Sweeper.
func WithSweepLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithSweepTimeout bounds a single sweep.
func WithSweepTimeout(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.timeout = d
	}
}

// NewSweeper schedules store sweeps. An empty schedule selects DefaultSweepSchedule.
func NewSweeper(store ports.SessionStore, schedule string, opts ...SweeperOption) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	s := &Sweeper{
		store:   store,
		timeout: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running sweeps in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep, or for ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// Sweep runs one sweep immediately.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	n, err := s.store.CleanExpiredSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("clean expired sessions: %w", err)
	}
	return n, nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("Session sweep failed", "err", err)
		return
	}
	if n > 0 {
		s.logger.Info("Expired sessions retired", "count", n)
	}
}
