package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter throttles outbound API calls to stay inside a remote quota.
type Limiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	Remaining() int
	ResetAt() time.Time
}

// SlidingWindow admits at most limit requests per windowSize, measured over
// a sliding window of recorded request timestamps. Reddit's OAuth quota is
// 100 requests per minute per client; the bot runs slightly under that.
type SlidingWindow struct {
	limit      int
	windowSize time.Duration

	mu       sync.Mutex
	requests []time.Time
}

func NewSlidingWindow(limit int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:      limit,
		windowSize: windowSize,
	}
}

// Allow records and admits the request if the window has room.
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.evict(time.Now())
	if len(sw.requests) >= sw.limit {
		return false
	}
	sw.requests = append(sw.requests, time.Now())
	return true
}

// Wait blocks until the request is admitted or ctx is done.
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		if sw.Allow() {
			return nil
		}

		sw.mu.Lock()
		wait := 100 * time.Millisecond
		if len(sw.requests) > 0 {
			if until := sw.windowSize - time.Since(sw.requests[0]); until > wait {
				wait = until
			}
		}
		sw.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Remaining reports how many requests the current window still admits.
func (sw *SlidingWindow) Remaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.evict(time.Now())
	if n := sw.limit - len(sw.requests); n > 0 {
		return n
	}
	return 0
}

// ResetAt reports when the oldest recorded request leaves the window.
func (sw *SlidingWindow) ResetAt() time.Time {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if len(sw.requests) == 0 {
		return time.Now()
	}
	return sw.requests[0].Add(sw.windowSize)
}

// evict drops timestamps older than the window. Caller holds mu.
func (sw *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-sw.windowSize)
	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		sw.requests = append(sw.requests[:0], sw.requests[i:]...)
	}
}
