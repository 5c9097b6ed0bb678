package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/domain"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/ports"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/templates"
)

var testNow = time.Date(2024, time.June, 1, 0, 30, 0, 0, time.UTC)

func testClock() ports.Clock {
	return ports.ClockFunc(func() time.Time { return testNow })
}

func templateDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"monthly_post_title": "Monthly Trade Confirmation Thread — {month} {year}",
		"monthly_post":       "Welcome to r/{subreddit_name}, brought to you by u/{bot_name}.",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name+".md"), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newMonthlyFixture(t *testing.T) (*ports.MockPlatform, *MonthlyPost, *int) {
	t.Helper()
	platform := ports.NewMockPlatform()
	source := templates.NewSource(platform, templateDir(t), time.Minute)
	invalidations := 0
	job := NewMonthlyPost(platform, source, nil, testClock(),
		"pkmntcgtrades", "tradebot", "flair1",
		func() { invalidations++ })
	return platform, job, &invalidations
}

func TestMonthlyPostCreatesAndStickies(t *testing.T) {
	platform, job, invalidations := newMonthlyFixture(t)
	prev := domain.Submission{
		ID: "old1", Stickied: true,
		CreatedUTC: testNow.AddDate(0, -1, 0),
	}
	platform.SubmissionsByID["old1"] = prev
	platform.BotSubmissions = []domain.Submission{prev}

	require.NoError(t, job.Run(context.Background()))

	// Previous thread unstickied, new one created and stickied.
	assert.False(t, platform.SubmissionsByID["old1"].Stickied)
	require.Equal(t, 1, platform.CallCount("SubmitPost"))
	created := platform.BotSubmissions[0]
	assert.Contains(t, created.Title, "June 2024")
	assert.True(t, platform.SubmissionsByID[created.ID].Stickied)
	assert.Equal(t, 1, platform.CallCount("SetSuggestedSort"))
	assert.Equal(t, 1, *invalidations)
}

func TestMonthlyPostIsIdempotent(t *testing.T) {
	platform, job, _ := newMonthlyFixture(t)
	current := domain.Submission{ID: "cur1", Stickied: true, CreatedUTC: testNow}
	platform.SubmissionsByID["cur1"] = current
	platform.BotSubmissions = []domain.Submission{current}

	require.NoError(t, job.Run(context.Background()))
	assert.Zero(t, platform.CallCount("SubmitPost"))
	assert.True(t, platform.SubmissionsByID["cur1"].Stickied)
}

func TestLockOldThreads(t *testing.T) {
	platform := ports.NewMockPlatform()
	old := domain.Submission{ID: "old1", CreatedUTC: testNow.AddDate(0, -1, 0)}
	older := domain.Submission{ID: "old2", CreatedUTC: testNow.AddDate(0, -2, 0), Locked: true}
	// Still stickied because the monthly post never replaced it.
	stuck := domain.Submission{ID: "old3", CreatedUTC: testNow.AddDate(0, -1, 0), Stickied: true}
	current := domain.Submission{ID: "cur1", CreatedUTC: testNow}
	for _, s := range []domain.Submission{old, older, stuck, current} {
		platform.SubmissionsByID[s.ID] = s
	}
	platform.BotSubmissions = []domain.Submission{current, stuck, old, older}

	job := NewLockOldThreads(platform, testClock())
	require.NoError(t, job.Run(context.Background()))

	assert.True(t, platform.SubmissionsByID["old1"].Locked)
	assert.False(t, platform.SubmissionsByID["cur1"].Locked)
	assert.False(t, platform.SubmissionsByID["old3"].Locked, "stickied threads stay unlocked")
	// Already locked threads are not re-locked.
	assert.Equal(t, 1, platform.CallCount("LockSubmission"))
}

type trackedJob struct {
	name string
	runs *int
}

func (j trackedJob) Name() string { return j.name }
func (j trackedJob) Run(ctx context.Context) error {
	*j.runs++
	return nil
}

func TestSchedulerRunsOncePerMonth(t *testing.T) {
	runs := 0
	s := NewScheduler(testClock(), []Entry{{Job: trackedJob{name: "j1", runs: &runs}, Day: 1}})

	s.sweep(context.Background())
	s.sweep(context.Background())
	assert.Equal(t, 1, runs, "a due job runs once per month")
}

func TestSchedulerWaitsForDueDay(t *testing.T) {
	runs := 0
	s := NewScheduler(testClock(), []Entry{{Job: trackedJob{name: "j1", runs: &runs}, Day: 5}})

	s.sweep(context.Background())
	assert.Zero(t, runs, "job due on the 5th must not run on the 1st")
}

func TestSchedulerTrigger(t *testing.T) {
	runs := 0
	s := NewScheduler(testClock(), []Entry{{Job: trackedJob{name: "j1", runs: &runs}, Day: 28}})

	require.NoError(t, s.Trigger(context.Background(), "j1"))
	assert.Equal(t, 1, runs)
	require.Error(t, s.Trigger(context.Background(), "nope"))
}
