package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRegisterInvalidSpecReturnsError(t *testing.T) {
	s := New(context.Background(), nil)
	if err := s.Register("bad", "not a cron spec", func(context.Context) error { return nil }); err == nil {
		t.Fatal("Register() with an invalid cron spec: error = nil, want non-nil")
	}
}

func TestRunOnceRecoversPanic(t *testing.T) {
	s := New(context.Background(), nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.runOnce("panicky", func(context.Context) error {
			panic("boom")
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runOnce() did not return after a panicking job")
	}
}

func TestRunOnceSurvivesJobError(t *testing.T) {
	s := New(context.Background(), nil)
	var ran bool
	var mu sync.Mutex
	s.runOnce("failing", func(context.Context) error {
		mu.Lock()
		ran = true
		mu.Unlock()
		return errors.New("boom")
	})

	mu.Lock()
	defer mu.Unlock()
	if !ran {
		t.Error("job was not invoked")
	}
}

func TestStartAndStop(t *testing.T) {
	s := New(context.Background(), nil)
	var calls int
	var mu sync.Mutex
	if err := s.Register("tick", "@every 1s", func(context.Context) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	s.Start()
	s.Stop()
}
