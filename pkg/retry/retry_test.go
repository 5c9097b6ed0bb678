package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")
var errPermanent = errors.New("permanent")

func classifier() Classifier {
	return ClassifierFunc(func(err error) Classification {
		if errors.Is(err, errPermanent) {
			return Permanent
		}
		return Transient
	})
}

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestDoRetriesTransient(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), classifier(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), classifier(), func(ctx context.Context) error {
		calls++
		return errPermanent
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("Do() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("permanent failure must not retry, got %d attempts", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), classifier(), func(ctx context.Context) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("Do() error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestDoPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, fastPolicy(3), classifier(), func(ctx context.Context) error {
		calls++
		return errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() error: %v", err)
	}
	if calls != 0 {
		t.Errorf("cancelled context must not attempt, got %d", calls)
	}
}

func TestDoReturnsContextErrorFromFn(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), classifier(), func(ctx context.Context) error {
		calls++
		return context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("context errors from fn must not retry, got %d attempts", calls)
	}
}
