// Package validate classifies one comment against platform-observed context
// into a tagged ValidationResult. Platform read failures surface as errors;
// every business conclusion lands in the result.
package validate

import (
	"context"
	"errors"
	"strings"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/domain"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/flair"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/ports"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/reddit"
)

const (
	confirmKeyword = "confirmed"
	approveKeyword = "approved"
)

// IsConfirming reports whether a comment body reads as a trade confirmation.
// A fixed substring rule, by contract.
func IsConfirming(body string) bool {
	return strings.Contains(strings.ToLower(body), confirmKeyword)
}

// IsApproving reports whether a comment body reads as a moderator approval.
func IsApproving(body string) bool {
	return strings.Contains(strings.ToLower(body), approveKeyword)
}

// Validator classifies comments. It is stateless; the metadata dependency
// carries its own caches.
type Validator struct {
	platform interface {
		ports.CommentReader
		ports.SubmissionReader
		ports.UserChecker
	}
	metadata *flair.Metadata
	clock    ports.Clock
}

func New(platform interface {
	ports.CommentReader
	ports.SubmissionReader
	ports.UserChecker
}, metadata *flair.Metadata, clock ports.Clock) *Validator {
	return &Validator{platform: platform, metadata: metadata, clock: clock}
}

// Validate classifies one comment.
func (v *Validator) Validate(ctx context.Context, comment domain.Comment) (domain.ValidationResult, error) {
	if comment.IsRoot {
		return v.validateRoot(ctx, comment)
	}
	return v.validateReply(ctx, comment)
}

// validateRoot handles top-level comments. They can never be confirmations;
// the only question is whether the thread they sit on is stale.
func (v *Validator) validateRoot(ctx context.Context, comment domain.Comment) (domain.ValidationResult, error) {
	submission, err := v.platform.GetSubmission(ctx, comment.SubmissionID)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	if submission.Stickied {
		// Active thread. A root comment's processed marker means "its trade
		// was confirmed", so it must stay unmarked here.
		return domain.ValidationResult{Skip: true}, nil
	}
	if !domain.SameMonth(comment.CreatedUTC, v.clock.Now()) {
		return domain.ValidationResult{Reason: domain.RejectionStaleThread}, nil
	}
	return domain.ValidationResult{}, nil
}

func (v *Validator) validateReply(ctx context.Context, comment domain.Comment) (domain.ValidationResult, error) {
	parent, err := v.platform.GetComment(ctx, comment.ParentID)
	if errors.Is(err, reddit.ErrNotFound) {
		return domain.ValidationResult{}, nil
	}
	if err != nil {
		return domain.ValidationResult{}, err
	}
	if parent.Removed {
		return domain.ValidationResult{}, nil
	}
	ok, err := v.platform.IsUserProcessable(ctx, parent.AuthorName)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	if !ok {
		return domain.ValidationResult{}, nil
	}
	// Users cannot confirm their own trades.
	if strings.EqualFold(parent.AuthorName, comment.AuthorName) {
		return domain.ValidationResult{}, nil
	}

	if !parent.IsRoot {
		return v.validateModApproval(ctx, comment, parent)
	}

	if !IsConfirming(comment.Body) {
		return domain.ValidationResult{}, nil
	}
	if parent.Saved {
		return domain.ValidationResult{
			Reason:       domain.RejectionAlreadyConfirmed,
			ParentAuthor: parent.AuthorName,
		}, nil
	}
	if !mentionsUser(parent, comment.AuthorName) {
		return domain.ValidationResult{
			Reason:       domain.RejectionUserNotMentioned,
			ParentAuthor: parent.AuthorName,
			Confirmer:    comment.AuthorName,
		}, nil
	}

	return domain.ValidationResult{
		Valid:           true,
		ParentAuthor:    parent.AuthorName,
		Confirmer:       comment.AuthorName,
		ParentCommentID: parent.ID,
		ReplyTargetID:   comment.ID,
	}, nil
}

// validateModApproval resolves the two-hop case: a moderator replies
// "approved" to a pending confirmation that itself replies to a root trade
// comment. The trade participants are the root author and the confirmer, not
// the moderator.
func (v *Validator) validateModApproval(ctx context.Context, comment, parent domain.Comment) (domain.ValidationResult, error) {
	if !IsApproving(comment.Body) {
		return domain.ValidationResult{}, nil
	}
	isMod, err := v.metadata.IsModerator(ctx, comment.AuthorName)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	if !isMod {
		return domain.ValidationResult{}, nil
	}
	grandparent, err := v.platform.GetComment(ctx, parent.ParentID)
	if errors.Is(err, reddit.ErrNotFound) {
		return domain.ValidationResult{}, nil
	}
	if err != nil {
		return domain.ValidationResult{}, err
	}
	if !grandparent.IsRoot || grandparent.Removed {
		return domain.ValidationResult{}, nil
	}
	return domain.ValidationResult{
		Valid:           true,
		IsModApproval:   true,
		ParentAuthor:    grandparent.AuthorName,
		Confirmer:       parent.AuthorName,
		ParentCommentID: grandparent.ID,
		// The confirmation reply lands under the pending confirmation, not
		// under the moderator's approval.
		ReplyTargetID: parent.ID,
	}, nil
}

func mentionsUser(parent domain.Comment, username string) bool {
	needle := strings.ToLower(username)
	return strings.Contains(strings.ToLower(parent.Body), needle) ||
		strings.Contains(strings.ToLower(parent.BodyHTML), needle)
}
