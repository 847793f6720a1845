package schedule

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/IshaanNene/StockGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeStarter struct {
	mu      sync.Mutex
	results []error
	calls   [][]string
}

func (f *fakeStarter) Start(names []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, names)
	var err error
	if len(f.results) > 0 {
		err = f.results[0]
		f.results = f.results[1:]
	}
	if err != nil {
		return "", err
	}
	return "run-1", nil
}

func (f *fakeStarter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestTrigger(t *testing.T) {
	starter := &fakeStarter{results: []error{nil, types.ErrRunInProgress, errors.New("boom")}}
	s := New(starter, time.Hour, []string{"Miro"}, testLogger)

	if !s.Trigger() {
		t.Error("first trigger should start a run")
	}
	if s.Trigger() {
		t.Error("trigger during a run should be skipped")
	}
	if s.Trigger() {
		t.Error("trigger with a start error should report false")
	}
	if got := starter.calls[0]; len(got) != 1 || got[0] != "Miro" {
		t.Errorf("unexpected distributors: %v", got)
	}
}

func TestRunTicks(t *testing.T) {
	starter := &fakeStarter{}
	s := New(starter, time.Hour, nil, testLogger)

	ticks := make(chan time.Time)
	stopped := false
	s.tick = func(time.Duration) (<-chan time.Time, func()) {
		return ticks, func() { stopped = true }
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	ticks <- time.Now()
	ticks <- time.Now()
	cancel()
	<-done

	if n := starter.callCount(); n != 2 {
		t.Errorf("expected 2 starts, got %d", n)
	}
	if !stopped {
		t.Error("ticker was not stopped")
	}
}
