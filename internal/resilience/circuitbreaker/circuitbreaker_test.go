package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestNew_StartsClosed(t *testing.T) {
	cb := New(DefaultConfig("test"))

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected closed state, got %v", cb.State())
	}
	if cb.Name() != "test" {
		t.Errorf("expected name 'test', got %q", cb.Name())
	}
	if cb.IsOpen() {
		t.Error("new breaker must not be open")
	}
}

func TestExecute_PassesThroughResult(t *testing.T) {
	cb := New(DefaultConfig("test"))

	got, err := cb.Execute(func() (interface{}, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(int) != 42 {
		t.Errorf("expected 42, got %v", got)
	}
}

func TestExecute_OpensAfterFailures(t *testing.T) {
	cfg := Config{
		Name:             "test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 1.0,
		MinRequests:      3,
	}
	cb := New(cfg)

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, boom })
	}

	if !cb.IsOpen() {
		t.Fatalf("expected open state after failures, got %v", cb.State())
	}

	_, err := cb.Execute(func() (interface{}, error) { return nil, nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
}

func TestExecute_StaysClosedBelowMinRequests(t *testing.T) {
	cfg := DefaultConfig("test") // MinRequests: 5
	cb := New(cfg)

	boom := errors.New("boom")
	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, boom })
	}

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected closed below MinRequests, got %v", cb.State())
	}
}
