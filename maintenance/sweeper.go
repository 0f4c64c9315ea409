// Package maintenance runs background housekeeping over stored sessions.
//
// The sweeper periodically compacts sessions that have gone idle, so long
// conversations do not sit at full length between visits. It should run on
// one instance at a time; gate it behind leadership election.
package maintenance

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fintalk/fintalk/store"
	"github.com/fintalk/fintalk/summarizer"
)

// Default sweeper configuration values
const (
	DefaultSweepInterval = 10 * time.Minute
	DefaultIdleAfter     = 30 * time.Minute
	DefaultBatchLimit    = 20
)

// Compactor compacts one session's history. *fintalk.Client satisfies it.
type Compactor interface {
	Compact(ctx context.Context, sessionID string) (*summarizer.Result, error)
}

// SweeperConfig holds sweep timing and batch sizing.
type SweeperConfig struct {
	// Interval is how often to sweep. Default: 10 minutes.
	Interval time.Duration

	// IdleAfter is how long a session must be untouched before it is
	// eligible for compaction. Default: 30 minutes.
	IdleAfter time.Duration

	// BatchLimit caps how many sessions one sweep compacts. Default: 20.
	BatchLimit int
}

// DefaultSweeperConfig returns the default sweep configuration.
func DefaultSweeperConfig() *SweeperConfig {
	return &SweeperConfig{
		Interval:   DefaultSweepInterval,
		IdleAfter:  DefaultIdleAfter,
		BatchLimit: DefaultBatchLimit,
	}
}

// SweepResult reports what one sweep did.
type SweepResult struct {
	// Swept is the number of idle sessions examined.
	Swept int

	// Compacted is the number of sessions whose history was rewritten.
	Compacted int

	// Errors holds per-session compaction failures. A failure on one
	// session does not stop the sweep.
	Errors []error
}

// Sweeper compacts idle sessions on a timer.
type Sweeper struct {
	store     store.Store
	compactor Compactor
	config    *SweeperConfig
	logger    zerolog.Logger

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewSweeper creates a sweeper over the given store.
func NewSweeper(st store.Store, compactor Compactor, config *SweeperConfig, logger zerolog.Logger) *Sweeper {
	if config == nil {
		config = DefaultSweeperConfig()
	}
	return &Sweeper{
		store:     st,
		compactor: compactor,
		config:    config,
		logger:    logger,
	}
}

// Start begins the sweep loop in a background goroutine. A stopped sweeper
// can be started again; leadership handoffs cycle the same instance.
func (s *Sweeper) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	s.done = make(chan struct{})
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	return nil
}

// Stop stops the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() error {
	if !s.started.Load() {
		return ErrNotStarted
	}
	s.cancel()
	<-s.done
	s.started.Store(false)
	return nil
}

// IsRunning reports whether the sweep loop is active.
func (s *Sweeper) IsRunning() bool {
	return s.started.Load()
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := s.RunOnce(ctx)
			if result.Compacted > 0 || len(result.Errors) > 0 {
				s.logger.Info().
					Int("swept", result.Swept).
					Int("compacted", result.Compacted).
					Int("errors", len(result.Errors)).
					Msg("idle session sweep")
			}
		}
	}
}

// RunOnce performs a single sweep and returns what it did.
func (s *Sweeper) RunOnce(ctx context.Context) *SweepResult {
	result := &SweepResult{}

	cutoff := time.Now().Add(-s.config.IdleAfter)
	ids, err := s.store.ListSessionsUpdatedBefore(ctx, cutoff, s.config.BatchLimit)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}

	for _, id := range ids {
		result.Swept++
		compaction, err := s.compactor.Compact(ctx, id)
		if err != nil {
			result.Errors = append(result.Errors, err)
			s.logger.Warn().Err(err).Str("session_id", id).Msg("sweep compaction failed")
			continue
		}
		if compaction != nil {
			result.Compacted++
		}
	}
	return result
}
