package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/domain"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/flair"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/ports"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/retry"
)

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func newCoordinator(platform *ports.MockPlatform) *Coordinator {
	platform.FlairTemplates = []ports.FlairTemplate{
		{ID: "t1", Text: "Trades: 0-49"},
		{ID: "t2", Text: "Trades: 50-99"},
	}
	metadata := flair.NewMetadata(platform, time.Minute)
	return New(platform, metadata, nil, Options{RetryPolicy: fastPolicy()})
}

func TestApplyIncrementsAndFormats(t *testing.T) {
	platform := ports.NewMockPlatform()
	platform.Flair["seller"] = "Trades: 7"
	c := newCoordinator(platform)

	res, err := c.Apply(context.Background(), domain.IncrementRequest{
		Username: "seller", RequestID: "r1", Delta: 1,
	})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, 7, res.OldCount)
	assert.Equal(t, 8, res.NewCount)
	assert.Equal(t, "Trades: 8", res.NewFlair)
	assert.Equal(t, "Trades: 8", platform.Flair["seller"])
}

func TestApplyEmptyFlairStartsAtZero(t *testing.T) {
	platform := ports.NewMockPlatform()
	c := newCoordinator(platform)

	res, err := c.Apply(context.Background(), domain.IncrementRequest{
		Username: "newbie", RequestID: "r1", Delta: 1,
	})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, 0, res.OldCount)
	assert.Equal(t, 1, res.NewCount)
	assert.Equal(t, "Trades: 1", platform.Flair["newbie"])
}

func TestApplyLeavesCustomFlairAlone(t *testing.T) {
	platform := ports.NewMockPlatform()
	platform.Flair["artist"] = "Resident Memelord"
	c := newCoordinator(platform)

	res, err := c.Apply(context.Background(), domain.IncrementRequest{
		Username: "artist", RequestID: "r1", Delta: 1,
	})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, "Resident Memelord", res.NewFlair)
	assert.Equal(t, "Resident Memelord", platform.Flair["artist"])
	assert.Zero(t, platform.CallCount("SetUserFlair"))
}

func TestApplyDeduplicatesByRequestID(t *testing.T) {
	platform := ports.NewMockPlatform()
	platform.Flair["seller"] = "Trades: 7"
	c := newCoordinator(platform)
	ctx := context.Background()

	req := domain.IncrementRequest{Username: "seller", RequestID: "r1", Delta: 1}
	first, err := c.Apply(ctx, req)
	require.NoError(t, err)

	// Replaying the same request id must not touch the platform again.
	reads := platform.CallCount("GetUserFlair")
	second, err := c.Apply(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, reads, platform.CallCount("GetUserFlair"))
	assert.Equal(t, "Trades: 8", platform.Flair["seller"])
}

func TestApplyMasksLaggingReads(t *testing.T) {
	platform := ports.NewMockPlatform()
	platform.Flair["seller"] = "Trades: 7"
	c := newCoordinator(platform)
	ctx := context.Background()

	_, err := c.Apply(ctx, domain.IncrementRequest{Username: "seller", RequestID: "r1", Delta: 1})
	require.NoError(t, err)

	// Simulate read-after-write lag: the external read regresses to the
	// pre-write value. The coordinator's own bookkeeping must win.
	platform.Flair["seller"] = "Trades: 7"
	res, err := c.Apply(ctx, domain.IncrementRequest{Username: "seller", RequestID: "r2", Delta: 1})
	require.NoError(t, err)
	assert.Equal(t, 8, res.OldCount)
	assert.Equal(t, 9, res.NewCount)
}

func TestApplySerializesPerUser(t *testing.T) {
	platform := ports.NewMockPlatform()
	platform.Flair["seller"] = "Trades: 0"
	c := newCoordinator(platform)
	ctx := context.Background()

	const n = 25
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Apply(ctx, domain.IncrementRequest{
				Username: "seller", RequestID: fmt.Sprintf("r%d", i), Delta: 1,
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "request %d", i)
	}
	// Lost updates would leave the count below n.
	assert.Equal(t, fmt.Sprintf("Trades: %d", n), platform.Flair["seller"])
}

func TestApplyRetriesTransientReadFailures(t *testing.T) {
	platform := ports.NewMockPlatform()
	platform.Flair["seller"] = "Trades: 7"
	platform.ErrorOnNext["GetUserFlair"] = errors.New("connection reset")
	c := newCoordinator(platform)

	res, err := c.Apply(context.Background(), domain.IncrementRequest{
		Username: "seller", RequestID: "r1", Delta: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 8, res.NewCount)
}

func TestResultCacheEvictsOldest(t *testing.T) {
	platform := ports.NewMockPlatform()
	metadata := flair.NewMetadata(platform, time.Minute)
	c := New(platform, metadata, nil, Options{
		MaxCachedResults: 2,
		RetryPolicy:      fastPolicy(),
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Apply(ctx, domain.IncrementRequest{
			Username: "seller", RequestID: fmt.Sprintf("r%d", i), Delta: 1,
		})
		require.NoError(t, err)
	}

	// r0 was evicted, so replaying it applies again.
	writes := platform.CallCount("SetUserFlair")
	_, err := c.Apply(ctx, domain.IncrementRequest{Username: "seller", RequestID: "r0", Delta: 1})
	require.NoError(t, err)
	assert.Equal(t, writes+1, platform.CallCount("SetUserFlair"))

	// r2 is still cached.
	writes = platform.CallCount("SetUserFlair")
	_, err = c.Apply(ctx, domain.IncrementRequest{Username: "seller", RequestID: "r2", Delta: 1})
	require.NoError(t, err)
	assert.Equal(t, writes, platform.CallCount("SetUserFlair"))
}

// No request is ever lost or double-applied, whatever the interleaving.
func TestApplyNeverLosesUpdates(t *testing.T) {
	property := func(ops uint8, dupes uint8) bool {
		n := int(ops%24) + 1
		platform := ports.NewMockPlatform()
		platform.Flair["seller"] = "Trades: 0"
		c := newCoordinator(platform)

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("r%d", i)
			// Replay a share of the requests concurrently with the original.
			attempts := 1 + int(dupes%3)
			for a := 0; a < attempts; a++ {
				wg.Add(1)
				go func(id string) {
					defer wg.Done()
					_, err := c.Apply(context.Background(), domain.IncrementRequest{
						Username: "seller", RequestID: id, Delta: 1,
					})
					if err != nil {
						t.Errorf("apply %s: %v", id, err)
					}
				}(id)
			}
		}
		wg.Wait()

		return platform.Flair["seller"] == fmt.Sprintf("Trades: %d", n)
	}
	if err := quick.Check(property, &quick.Config{MaxCount: 20}); err != nil {
		t.Fatal(err)
	}
}

func TestGetExposesLaneState(t *testing.T) {
	platform := ports.NewMockPlatform()
	platform.Flair["seller"] = "Trades: 7"
	c := newCoordinator(platform)

	state := c.Get("seller")
	assert.False(t, state.Known)

	_, err := c.Apply(context.Background(), domain.IncrementRequest{
		Username: "seller", RequestID: "r1", Delta: 1,
	})
	require.NoError(t, err)

	state = c.Get("seller")
	assert.True(t, state.Known)
	assert.Equal(t, 8, state.KnownCount)
}
