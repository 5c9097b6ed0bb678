package ports

import (
	"context"
	"time"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/domain"
)

// Small interfaces the orchestration layer depends on (poller, processor,
// coordinator, jobs). The Reddit client satisfies all of them; tests use
// mocks.

// ListingPage is one windowed scan of the newest comments.
type ListingPage struct {
	Comments []domain.Comment
	// Exhausted is true when the listing ended before the window cap, i.e.
	// there was nothing older left to scan.
	Exhausted bool
}

type CommentLister interface {
	// ListRecentComments returns up to limit subreddit comments newest-first.
	ListRecentComments(ctx context.Context, limit int) (ListingPage, error)
}

type CommentReader interface {
	GetComment(ctx context.Context, id string) (domain.Comment, error)
}

type CommentWriter interface {
	// MarkProcessed saves the comment, the durable "handled" marker.
	MarkProcessed(ctx context.Context, id string) error
	Reply(ctx context.Context, parentID, text string) (string, error)
	LockComment(ctx context.Context, id string) error
}

type SubmissionReader interface {
	GetSubmission(ctx context.Context, id string) (domain.Submission, error)
	// ListBotSubmissions returns the bot's own submissions newest-first.
	ListBotSubmissions(ctx context.Context, limit int) ([]domain.Submission, error)
}

type SubmissionWriter interface {
	SubmitPost(ctx context.Context, title, body, flairID string) (domain.Submission, error)
	StickySubmission(ctx context.Context, id string, state bool) error
	SetSuggestedSort(ctx context.Context, id, sort string) error
	LockSubmission(ctx context.Context, id string) error
}

type FlairReader interface {
	GetUserFlair(ctx context.Context, username string) (string, error)
	ListFlairTemplates(ctx context.Context) ([]FlairTemplate, error)
}

type FlairWriter interface {
	SetUserFlair(ctx context.Context, username, text, templateID string) error
}

type ModeratorLister interface {
	ListModerators(ctx context.Context) ([]string, error)
}

type WikiReader interface {
	// GetWikiPage returns the markdown body of a subreddit wiki page.
	GetWikiPage(ctx context.Context, name string) (string, error)
}

type UserChecker interface {
	// IsUserProcessable reports whether the author exists, is not suspended,
	// and is not the bot itself.
	IsUserProcessable(ctx context.Context, username string) (bool, error)
}

// FlairTemplate is one subreddit flair template.
type FlairTemplate struct {
	ID      string
	Text    string
	ModOnly bool
}

// Platform is the full source adapter surface.
type Platform interface {
	CommentLister
	CommentReader
	CommentWriter
	SubmissionReader
	SubmissionWriter
	FlairReader
	FlairWriter
	ModeratorLister
	WikiReader
	UserChecker
}

// Notifier delivers operator alerts. Implementations must be safe to call
// when unconfigured (no-op) and must never be load-bearing for correctness.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// TemplateSource resolves a logical template name into formatted text.
type TemplateSource interface {
	Render(ctx context.Context, name string, args map[string]string) (string, error)
	// Reload drops cached template bodies so the next Render re-reads them.
	Reload()
}

// Clock lets tests pin the reporting period.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
