// Package retry executes operations against the Reddit API with exponential
// backoff. Failures are classified before retrying: network timeouts, rate
// limiting, and 5xx responses are transient; auth/permission problems,
// malformed requests, and not-found are permanent and surface immediately.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Classification of a failure.
type Classification int

const (
	// Transient errors are worth another attempt after a delay.
	Transient Classification = iota
	// Permanent errors never succeed on retry.
	Permanent
)

// Classifier maps an error to a Classification.
type Classifier interface {
	Classify(err error) Classification
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(err error) Classification

func (f ClassifierFunc) Classify(err error) Classification {
	return f(err)
}

// Policy controls attempt count and backoff shape.
type Policy struct {
	MaxAttempts int           // total attempts including the first; <=0 means 1
	BaseDelay   time.Duration // first retry delay
	MaxDelay    time.Duration // backoff cap
	Jitter      bool
}

// DefaultPolicy is the step-level policy for platform calls: up to 5
// attempts, 1s doubling to a 30s cap.
var DefaultPolicy = Policy{
	MaxAttempts: 5,
	BaseDelay:   1 * time.Second,
	MaxDelay:    30 * time.Second,
	Jitter:      true,
}

// ConservativePolicy is for low-priority maintenance paths (calendar jobs,
// alerts) where giving up early is preferable to hammering the API.
var ConservativePolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   2 * time.Second,
	MaxDelay:    10 * time.Second,
	Jitter:      true,
}

// Do runs fn until it succeeds, fails permanently, exhausts attempts, or ctx
// is done. Context errors propagate unchanged so cancellation is never
// mistaken for a platform failure.
func Do(ctx context.Context, policy Policy, classifier Classifier, fn func(ctx context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if classifier != nil && classifier.Classify(lastErr) == Permanent {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(policy, attempt)):
		}
	}
	return lastErr
}

// backoffDelay computes baseDelay * 2^attempt capped at maxDelay, with
// optional jitter in [0, baseDelay).
func backoffDelay(policy Policy, attempt int) time.Duration {
	delay := policy.BaseDelay << uint(attempt)
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	if policy.Jitter && policy.BaseDelay > 0 {
		delay += time.Duration(rand.Int63n(int64(policy.BaseDelay)))
	}
	return delay
}
