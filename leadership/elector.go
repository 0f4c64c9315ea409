// Package leadership elects one server instance to run singleton background
// work, such as the idle-session compaction sweep.
//
// Election uses a TTL lease in the session store. The leader must renew its
// lease before it expires, or another instance takes over.
package leadership

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fintalk/fintalk/store"
)

// Default configuration values
const (
	DefaultLeaseTTL       = 30 * time.Second
	DefaultElectionPeriod = 10 * time.Second
	DefaultRenewPeriod    = 5 * time.Second

	// LeaseName is the lease all instances compete for.
	LeaseName = "fintalk-leader"
)

// Config holds leader election timing.
type Config struct {
	// LeaseTTL is how long the leader's lease is valid. Default: 30s.
	LeaseTTL time.Duration

	// ElectionPeriod is how often to attempt election while not leader.
	// Default: 10s.
	ElectionPeriod time.Duration

	// RenewPeriod is how often the leader renews its lease. Must be less
	// than LeaseTTL. Default: 5s.
	RenewPeriod time.Duration
}

// DefaultConfig returns the default election timing.
func DefaultConfig() *Config {
	return &Config{
		LeaseTTL:       DefaultLeaseTTL,
		ElectionPeriod: DefaultElectionPeriod,
		RenewPeriod:    DefaultRenewPeriod,
	}
}

// Callbacks are invoked when leadership changes hands.
type Callbacks struct {
	// OnBecameLeader runs when this instance wins the lease.
	OnBecameLeader func(ctx context.Context)

	// OnLostLeadership runs when the lease is lost or given up.
	OnLostLeadership func(ctx context.Context)
}

// Elector competes for the leader lease on behalf of one instance.
type Elector struct {
	store      store.Store
	instanceID string
	config     *Config
	callbacks  Callbacks

	mu       sync.RWMutex
	isLeader bool

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewElector creates an elector for the given instance ID.
func NewElector(st store.Store, instanceID string, config *Config, callbacks Callbacks) *Elector {
	if config == nil {
		config = DefaultConfig()
	}
	return &Elector{
		store:      st,
		instanceID: instanceID,
		config:     config,
		callbacks:  callbacks,
	}
}

// Start begins competing for the lease in a background goroutine. A stopped
// elector can be started again.
func (e *Elector) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	e.done = make(chan struct{})
	ctx, e.cancel = context.WithCancel(ctx)
	go e.run(ctx)
	return nil
}

// Stop stops the election loop, resigning first when leader.
func (e *Elector) Stop(ctx context.Context) error {
	if !e.started.Load() {
		return ErrNotStarted
	}

	e.cancel()
	<-e.done

	e.mu.Lock()
	wasLeader := e.isLeader
	e.isLeader = false
	e.mu.Unlock()

	if wasLeader {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = e.store.ReleaseLease(releaseCtx, LeaseName, e.instanceID)

		if e.callbacks.OnLostLeadership != nil {
			e.callbacks.OnLostLeadership(ctx)
		}
	}

	e.started.Store(false)
	return nil
}

// IsLeader reports whether this instance currently holds the lease.
func (e *Elector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

func (e *Elector) run(ctx context.Context) {
	defer close(e.done)

	e.attemptElection(ctx)

	for {
		var delay time.Duration
		if e.IsLeader() {
			delay = e.config.RenewPeriod
		} else {
			delay = e.config.ElectionPeriod
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			if e.IsLeader() {
				e.attemptRenewal(ctx)
			} else {
				e.attemptElection(ctx)
			}
		}
	}
}

func (e *Elector) attemptElection(ctx context.Context) {
	elected, err := e.store.AcquireLease(ctx, LeaseName, e.instanceID, e.config.LeaseTTL)
	if err != nil || !elected {
		// Retry on the next tick.
		return
	}

	e.mu.Lock()
	wasLeader := e.isLeader
	e.isLeader = true
	e.mu.Unlock()

	if !wasLeader && e.callbacks.OnBecameLeader != nil {
		e.callbacks.OnBecameLeader(ctx)
	}
}

func (e *Elector) attemptRenewal(ctx context.Context) {
	renewed, err := e.store.RenewLease(ctx, LeaseName, e.instanceID, e.config.LeaseTTL)
	if err == nil && renewed {
		return
	}

	e.mu.Lock()
	e.isLeader = false
	e.mu.Unlock()

	if e.callbacks.OnLostLeadership != nil {
		e.callbacks.OnLostLeadership(ctx)
	}
}
