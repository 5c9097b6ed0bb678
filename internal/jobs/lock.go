package jobs

import (
	"context"
	"fmt"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/domain"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/ports"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/logger"
)

// LockOldThreads locks the bot's confirmation threads from previous months a
// few days into the new one, after the stale-thread grace period. Already
// locked threads are left alone.
type LockOldThreads struct {
	platform SubmissionPlatform
	clock    ports.Clock
}

func NewLockOldThreads(platform SubmissionPlatform, clock ports.Clock) *LockOldThreads {
	return &LockOldThreads{platform: platform, clock: clock}
}

func (j *LockOldThreads) Name() string { return "lock-old-threads" }

func (j *LockOldThreads) Run(ctx context.Context) error {
	now := j.clock.Now().UTC()

	subs, err := j.platform.ListBotSubmissions(ctx, 10)
	if err != nil {
		return fmt.Errorf("list bot submissions: %w", err)
	}

	locked := 0
	for _, s := range subs {
		// A stickied thread is still the live one even if the monthly post
		// that should replace it has not landed yet.
		if s.Locked || s.Stickied || domain.SameMonth(s.CreatedUTC, now) {
			continue
		}
		if err := j.platform.LockSubmission(ctx, s.ID); err != nil {
			return fmt.Errorf("lock %s: %w", s.ID, err)
		}
		locked++
		logger.WithField("submission", s.ID).Info("lock-old-threads: locked thread")
	}
	if locked == 0 {
		logger.Debug("lock-old-threads: nothing to lock")
	}
	return nil
}
