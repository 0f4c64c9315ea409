package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fintalk/fintalk/store"
	"github.com/fintalk/fintalk/summarizer"
	"github.com/fintalk/fintalk/types"
)

// fakeCompactor records which sessions it was asked to compact.
type fakeCompactor struct {
	compacted []string
	failOn    string
}

func (f *fakeCompactor) Compact(_ context.Context, sessionID string) (*summarizer.Result, error) {
	if sessionID == f.failOn {
		return nil, errors.New("summary model unavailable")
	}
	f.compacted = append(f.compacted, sessionID)
	return &summarizer.Result{Messages: []types.Message{}}, nil
}

func TestSweeper_RunOnceCompactsIdleSessions(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()
	a, _ := s.CreateSession(ctx, "u1")
	b, _ := s.CreateSession(ctx, "u2")

	compactor := &fakeCompactor{}
	sweeper := NewSweeper(s, compactor, &SweeperConfig{
		Interval:   time.Hour,
		IdleAfter:  -time.Second, // everything counts as idle
		BatchLimit: 10,
	}, zerolog.Nop())

	result := sweeper.RunOnce(ctx)
	if result.Swept != 2 {
		t.Errorf("Swept = %d, want 2", result.Swept)
	}
	if result.Compacted != 2 {
		t.Errorf("Compacted = %d, want 2", result.Compacted)
	}
	if len(compactor.compacted) != 2 {
		t.Fatalf("compactor saw %d sessions, want 2", len(compactor.compacted))
	}
	seen := map[string]bool{compactor.compacted[0]: true, compactor.compacted[1]: true}
	if !seen[a.ID] || !seen[b.ID] {
		t.Errorf("compacted %v, want both %s and %s", compactor.compacted, a.ID, b.ID)
	}
}

func TestSweeper_SkipsFreshSessions(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()
	s.CreateSession(ctx, "u1")

	compactor := &fakeCompactor{}
	sweeper := NewSweeper(s, compactor, &SweeperConfig{
		Interval:   time.Hour,
		IdleAfter:  time.Hour,
		BatchLimit: 10,
	}, zerolog.Nop())

	result := sweeper.RunOnce(ctx)
	if result.Swept != 0 || len(compactor.compacted) != 0 {
		t.Errorf("sweep touched fresh sessions: %+v", result)
	}
}

func TestSweeper_OneFailureDoesNotStopTheSweep(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()
	a, _ := s.CreateSession(ctx, "u1")
	s.CreateSession(ctx, "u2")

	compactor := &fakeCompactor{failOn: a.ID}
	sweeper := NewSweeper(s, compactor, &SweeperConfig{
		Interval:   time.Hour,
		IdleAfter:  -time.Second,
		BatchLimit: 10,
	}, zerolog.Nop())

	result := sweeper.RunOnce(ctx)
	if result.Swept != 2 {
		t.Errorf("Swept = %d, want 2", result.Swept)
	}
	if result.Compacted != 1 {
		t.Errorf("Compacted = %d, want 1", result.Compacted)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want one entry", result.Errors)
	}
}

func TestSweeper_Restartable(t *testing.T) {
	ctx := context.Background()
	sweeper := NewSweeper(store.NewMemStore(), &fakeCompactor{}, &SweeperConfig{
		Interval:   time.Millisecond,
		IdleAfter:  time.Hour,
		BatchLimit: 10,
	}, zerolog.Nop())

	// Leadership can flap, so the same sweeper is started and stopped
	// repeatedly over the life of the process.
	for i := 0; i < 3; i++ {
		if err := sweeper.Start(ctx); err != nil {
			t.Fatalf("Start() cycle %d error = %v", i, err)
		}
		time.Sleep(5 * time.Millisecond)
		if err := sweeper.Stop(); err != nil {
			t.Fatalf("Stop() cycle %d error = %v", i, err)
		}
	}
	// Give a leaked loop goroutine time to surface a close-of-closed panic.
	time.Sleep(20 * time.Millisecond)
	if sweeper.IsRunning() {
		t.Error("IsRunning() = true after final Stop")
	}
}

func TestSweeper_StartStopStates(t *testing.T) {
	ctx := context.Background()
	sweeper := NewSweeper(store.NewMemStore(), &fakeCompactor{}, nil, zerolog.Nop())

	if err := sweeper.Stop(); err != ErrNotStarted {
		t.Errorf("Stop() before Start error = %v, want ErrNotStarted", err)
	}
	if err := sweeper.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := sweeper.Start(ctx); err != ErrAlreadyStarted {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
	if !sweeper.IsRunning() {
		t.Error("IsRunning() = false while started")
	}
	if err := sweeper.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
