// Package jobs holds the calendar-driven maintenance work: posting the
// monthly confirmation thread and locking the previous ones. Every job is
// idempotent so the scheduler and the control plane can both trigger it.
package jobs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/domain"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/ports"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/logger"
)

// SubmissionPlatform is the adapter slice the jobs act on.
type SubmissionPlatform interface {
	ports.SubmissionReader
	ports.SubmissionWriter
}

// MonthlyPost creates the month's confirmation thread, stickies it, and
// unstickies the previous one. Running it twice in a month is a no-op.
type MonthlyPost struct {
	platform  SubmissionPlatform
	templates ports.TemplateSource
	notifier  ports.Notifier
	clock     ports.Clock

	subreddit string
	botName   string
	flairID   string

	// invalidate tells the poller its bot-submission cache is stale.
	invalidate func()
}

func NewMonthlyPost(platform SubmissionPlatform, templates ports.TemplateSource, notifier ports.Notifier, clock ports.Clock, subreddit, botName, flairID string, invalidate func()) *MonthlyPost {
	return &MonthlyPost{
		platform:   platform,
		templates:  templates,
		notifier:   notifier,
		clock:      clock,
		subreddit:  subreddit,
		botName:    botName,
		flairID:    flairID,
		invalidate: invalidate,
	}
}

func (j *MonthlyPost) Name() string { return "monthly-post" }

func (j *MonthlyPost) Run(ctx context.Context) error {
	now := j.clock.Now().UTC()

	subs, err := j.platform.ListBotSubmissions(ctx, 5)
	if err != nil {
		return fmt.Errorf("list bot submissions: %w", err)
	}
	for _, s := range subs {
		if domain.SameMonth(s.CreatedUTC, now) {
			logger.WithField("submission", s.ID).Debug("monthly-post: current thread already exists")
			return nil
		}
	}

	title, err := j.templates.Render(ctx, "monthly_post_title", map[string]string{
		"month": now.Month().String(),
		"year":  strconv.Itoa(now.Year()),
	})
	if err != nil {
		return fmt.Errorf("render title: %w", err)
	}
	body, err := j.templates.Render(ctx, "monthly_post", map[string]string{
		"subreddit_name": j.subreddit,
		"bot_name":       j.botName,
	})
	if err != nil {
		return fmt.Errorf("render body: %w", err)
	}

	for _, s := range subs {
		if !s.Stickied {
			continue
		}
		if err := j.platform.StickySubmission(ctx, s.ID, false); err != nil {
			logger.Warnf("monthly-post: failed to unsticky %s: %v", s.ID, err)
		}
	}

	post, err := j.platform.SubmitPost(ctx, title, body, j.flairID)
	if err != nil {
		return fmt.Errorf("submit post: %w", err)
	}
	if err := j.platform.StickySubmission(ctx, post.ID, true); err != nil {
		logger.Warnf("monthly-post: failed to sticky %s: %v", post.ID, err)
	}
	if err := j.platform.SetSuggestedSort(ctx, post.ID, "new"); err != nil {
		logger.Warnf("monthly-post: failed to set suggested sort on %s: %v", post.ID, err)
	}

	if j.invalidate != nil {
		j.invalidate()
	}

	logger.WithFields(map[string]interface{}{
		"submission": post.ID, "title": title,
	}).Info("monthly-post: thread created")

	if j.notifier != nil {
		msg := fmt.Sprintf("Posted the monthly confirmation thread for r/%s: %s", j.subreddit, post.Permalink)
		if err := j.notifier.Notify(ctx, msg); err != nil {
			logger.Warnf("monthly-post: notify failed: %v", err)
		}
	}
	return nil
}
