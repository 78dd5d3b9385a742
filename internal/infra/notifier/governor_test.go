package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeTransport records send times and plays back scripted errors.
type fakeTransport struct {
	mu    sync.Mutex
	calls []time.Time
	errs  []error // consumed in order; nil entries succeed
}

func (f *fakeTransport) Send(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, time.Now())
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func fastGovernor(transport Messenger, minInterval time.Duration) *Governor {
	return NewGovernor(transport, GovernorConfig{
		MinInterval: minInterval,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		PoolDelay:   5 * time.Millisecond,
	})
}

func TestGovernor_Send_Success(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	g := fastGovernor(transport, time.Millisecond)

	if err := g.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if transport.callCount() != 1 {
		t.Fatalf("calls = %d, want 1", transport.callCount())
	}
}

func TestGovernor_Send_EnforcesSpacing(t *testing.T) {
	t.Parallel()

	const minInterval = 50 * time.Millisecond
	transport := &fakeTransport{}
	g := fastGovernor(transport, minInterval)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := g.Send(ctx, "msg"); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	for i := 1; i < len(transport.calls); i++ {
		gap := transport.calls[i].Sub(transport.calls[i-1])
		// Allow a small scheduling tolerance
		if gap < minInterval-5*time.Millisecond {
			t.Errorf("gap[%d] = %v, want >= %v", i, gap, minInterval)
		}
	}
}

func TestGovernor_Send_SpacingMeasuredFromLastSuccess(t *testing.T) {
	t.Parallel()

	const minInterval = 100 * time.Millisecond
	transport := &fakeTransport{errs: []error{
		&ServerError{StatusCode: 502, Message: "bad gateway"},
		nil, // first message succeeds on the retry
		nil, // second message
	}}
	g := NewGovernor(transport, GovernorConfig{
		MinInterval: minInterval,
		MaxAttempts: 3,
		BaseDelay:   120 * time.Millisecond,
		PoolDelay:   5 * time.Millisecond,
	})

	ctx := context.Background()
	if err := g.Send(ctx, "first"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := g.Send(ctx, "second"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if len(transport.calls) != 3 {
		t.Fatalf("calls = %d, want 3", len(transport.calls))
	}
	// calls[1] is the first confirmed transmission; the retry backoff
	// before it must not count toward the gap to the second message.
	gap := transport.calls[2].Sub(transport.calls[1])
	if gap < minInterval-5*time.Millisecond {
		t.Errorf("gap between successful sends = %v, want >= %v", gap, minInterval)
	}
}

func TestGovernor_Send_RetriesServerError(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{errs: []error{
		&ServerError{StatusCode: 502, Message: "bad gateway"},
		nil,
	}}
	g := fastGovernor(transport, time.Millisecond)

	if err := g.Send(context.Background(), "msg"); err != nil {
		t.Fatalf("Send() error = %v, want nil after retry", err)
	}
	if transport.callCount() != 2 {
		t.Fatalf("calls = %d, want 2", transport.callCount())
	}
}

func TestGovernor_Send_WaitsRetryAfterOn429(t *testing.T) {
	t.Parallel()

	const retryAfter = 40 * time.Millisecond
	transport := &fakeTransport{errs: []error{
		&RateLimitError{RetryAfter: retryAfter},
		nil,
	}}
	g := fastGovernor(transport, time.Millisecond)

	if err := g.Send(context.Background(), "msg"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if len(transport.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(transport.calls))
	}
	if gap := transport.calls[1].Sub(transport.calls[0]); gap < retryAfter {
		t.Errorf("gap = %v, want >= %v", gap, retryAfter)
	}
}

func TestGovernor_Send_ClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{errs: []error{
		&ClientError{StatusCode: 400, Message: "chat not found"},
	}}
	g := fastGovernor(transport, time.Millisecond)

	err := g.Send(context.Background(), "msg")

	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("Send() error = %v, want DeliveryError", err)
	}
	if deliveryErr.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", deliveryErr.Attempts)
	}
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Errorf("DeliveryError should wrap ClientError, got %v", deliveryErr.Err)
	}
	if transport.callCount() != 1 {
		t.Fatalf("calls = %d, want 1", transport.callCount())
	}
}

func TestGovernor_Send_Exhaustion(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{errs: []error{
		&ServerError{StatusCode: 500, Message: "boom"},
		&ServerError{StatusCode: 500, Message: "boom"},
		&ServerError{StatusCode: 500, Message: "boom"},
	}}
	g := fastGovernor(transport, time.Millisecond)

	err := g.Send(context.Background(), "msg")

	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("Send() error = %v, want DeliveryError", err)
	}
	if deliveryErr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", deliveryErr.Attempts)
	}
	if transport.callCount() != 3 {
		t.Fatalf("calls = %d, want 3", transport.callCount())
	}
}

func TestGovernor_Send_PoolTimeoutUsesFixedDelay(t *testing.T) {
	t.Parallel()

	const poolDelay = 30 * time.Millisecond
	transport := &fakeTransport{errs: []error{
		&PoolTimeoutError{Message: "pool timeout"},
		nil,
	}}
	g := NewGovernor(transport, GovernorConfig{
		MinInterval: time.Millisecond,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		PoolDelay:   poolDelay,
	})

	if err := g.Send(context.Background(), "msg"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if gap := transport.calls[1].Sub(transport.calls[0]); gap < poolDelay {
		t.Errorf("gap = %v, want >= %v", gap, poolDelay)
	}
}

func TestGovernor_Send_ContextCanceledDuringBackoff(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{errs: []error{
		&RateLimitError{RetryAfter: time.Minute},
	}}
	g := fastGovernor(transport, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := g.Send(ctx, "msg")
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Send() error = %v, want deadline exceeded", err)
	}
}
