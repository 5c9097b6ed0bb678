// Package processor runs one trigger comment through validation, counter
// updates, and the confirmation reply. Every run ends in a terminal outcome;
// failures degrade to a manual-review alert instead of retry loops.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/domain"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/ports"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/validate"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/logger"
)

// Incrementer is what the processor needs from the coordinator.
type Incrementer interface {
	Apply(ctx context.Context, req domain.IncrementRequest) (domain.IncrementResult, error)
}

// Recorder persists terminal outcomes for operator review. Best effort;
// recording failures never change the outcome.
type Recorder interface {
	RecordOutcome(ctx context.Context, outcome domain.Outcome) error
}

// Processor executes the per-event state machine.
type Processor struct {
	platform  ports.CommentWriter
	validator *validate.Validator
	counters  Incrementer
	templates ports.TemplateSource
	notifier  ports.Notifier
	recorder  Recorder
}

func New(platform ports.CommentWriter, validator *validate.Validator, counters Incrementer, templates ports.TemplateSource, notifier ports.Notifier, recorder Recorder) *Processor {
	return &Processor{
		platform:  platform,
		validator: validator,
		counters:  counters,
		templates: templates,
		notifier:  notifier,
		recorder:  recorder,
	}
}

// Process takes one trigger comment to a terminal outcome. Context
// cancellation is the only error it returns; everything else becomes a
// manual-review outcome.
func (p *Processor) Process(ctx context.Context, comment domain.Comment) (domain.Outcome, error) {
	outcome, err := p.run(ctx, comment)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.Outcome{}, err
		}
		outcome = p.manualReview(ctx, comment, err)
	}
	p.record(ctx, outcome)
	return outcome, nil
}

func (p *Processor) run(ctx context.Context, comment domain.Comment) (domain.Outcome, error) {
	result, err := p.validator.Validate(ctx, comment)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("validate %s: %w", comment.ID, err)
	}

	if result.Skip {
		return domain.Outcome{
			Status:    domain.StatusSkipped,
			CommentID: comment.ID,
			Author:    comment.AuthorName,
		}, nil
	}

	if !result.Valid {
		return p.reject(ctx, comment, result)
	}

	return p.confirm(ctx, comment, result)
}

// reject marks the trigger processed and, when the reason warrants it,
// replies with the matching template first. Silent rejections only mark.
func (p *Processor) reject(ctx context.Context, comment domain.Comment, result domain.ValidationResult) (domain.Outcome, error) {
	if result.Reason != domain.RejectionNone {
		body, err := p.templates.Render(ctx, string(result.Reason), map[string]string{
			"confirmer":     result.Confirmer,
			"parent_author": result.ParentAuthor,
		})
		if err != nil {
			return domain.Outcome{}, fmt.Errorf("render rejection %s: %w", result.Reason, err)
		}
		if _, err := p.platform.Reply(ctx, comment.ID, body); err != nil {
			return domain.Outcome{}, fmt.Errorf("reply to %s: %w", comment.ID, err)
		}
	}
	// A stale root stays locked so nobody confirms under it.
	if result.Reason == domain.RejectionStaleThread {
		if err := p.platform.LockComment(ctx, comment.ID); err != nil {
			return domain.Outcome{}, fmt.Errorf("lock %s: %w", comment.ID, err)
		}
	}
	if err := p.platform.MarkProcessed(ctx, comment.ID); err != nil {
		return domain.Outcome{}, fmt.Errorf("mark %s: %w", comment.ID, err)
	}
	logger.WithFields(map[string]interface{}{
		"comment": comment.ID, "reason": string(result.Reason),
	}).Info("processor: rejected")
	return domain.Outcome{
		Status:    domain.StatusRejected,
		CommentID: comment.ID,
		Author:    comment.AuthorName,
		Reason:    result.Reason,
	}, nil
}

// confirm credits both participants, marks the parent as closed, posts the
// confirmation reply, and only then marks the trigger. Marking the trigger
// last means a crash anywhere earlier gets picked up by the next scan, and
// the idempotency keys make the replayed increments no-ops.
func (p *Processor) confirm(ctx context.Context, comment domain.Comment, result domain.ValidationResult) (domain.Outcome, error) {
	parentReq := domain.IncrementRequest{
		Username:  result.ParentAuthor,
		RequestID: domain.IncrementRequestID(result.ParentCommentID, result.Confirmer, domain.RoleParent),
		Delta:     1,
	}
	confirmerReq := domain.IncrementRequest{
		Username:  result.Confirmer,
		RequestID: domain.IncrementRequestID(result.ParentCommentID, result.Confirmer, domain.RoleConfirmer),
		Delta:     1,
	}

	var (
		wg           sync.WaitGroup
		parentRes    domain.IncrementResult
		confirmerRes domain.IncrementResult
		parentErr    error
		confirmerErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		parentRes, parentErr = p.counters.Apply(ctx, parentReq)
	}()
	go func() {
		defer wg.Done()
		confirmerRes, confirmerErr = p.counters.Apply(ctx, confirmerReq)
	}()
	wg.Wait()
	if parentErr != nil {
		return domain.Outcome{}, fmt.Errorf("increment parent %s: %w", result.ParentAuthor, parentErr)
	}
	if confirmerErr != nil {
		return domain.Outcome{}, fmt.Errorf("increment confirmer %s: %w", result.Confirmer, confirmerErr)
	}

	// Closing the parent stops any second confirmation of the same trade.
	if err := p.platform.MarkProcessed(ctx, result.ParentCommentID); err != nil {
		return domain.Outcome{}, fmt.Errorf("mark parent %s: %w", result.ParentCommentID, err)
	}

	body, err := p.templates.Render(ctx, "trade_confirmation", map[string]string{
		"parent_author":       result.ParentAuthor,
		"confirmer":           result.Confirmer,
		"parent_old_flair":    flairOrDefault(parentRes.OldFlair),
		"parent_new_flair":    flairOrDefault(parentRes.NewFlair),
		"confirmer_old_flair": flairOrDefault(confirmerRes.OldFlair),
		"confirmer_new_flair": flairOrDefault(confirmerRes.NewFlair),
	})
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("render confirmation: %w", err)
	}
	if _, err := p.platform.Reply(ctx, result.ReplyTargetID, body); err != nil {
		return domain.Outcome{}, fmt.Errorf("reply to %s: %w", result.ReplyTargetID, err)
	}

	if err := p.platform.MarkProcessed(ctx, comment.ID); err != nil {
		return domain.Outcome{}, fmt.Errorf("mark trigger %s: %w", comment.ID, err)
	}

	logger.WithFields(map[string]interface{}{
		"comment":      comment.ID,
		"parent":       result.ParentAuthor,
		"confirmer":    result.Confirmer,
		"mod_approval": result.IsModApproval,
	}).Info("processor: trade confirmed")

	return domain.Outcome{
		Status:            domain.StatusConfirmed,
		CommentID:         comment.ID,
		Author:            comment.AuthorName,
		ParentAuthor:      result.ParentAuthor,
		Confirmer:         result.Confirmer,
		ParentNewFlair:    parentRes.NewFlair,
		ConfirmerNewFlair: confirmerRes.NewFlair,
	}, nil
}

// manualReview alerts the operator and marks the trigger so the scanner stops
// re-dispatching a comment that keeps failing.
func (p *Processor) manualReview(ctx context.Context, comment domain.Comment, cause error) domain.Outcome {
	logger.WithField("comment", comment.ID).Errorf("processor: manual review required: %v", cause)

	if p.notifier != nil {
		msg := fmt.Sprintf("Manual review needed for comment %s (u/%s): %v\nhttps://reddit.com%s",
			comment.ID, comment.AuthorName, cause, comment.Permalink)
		if nerr := p.notifier.Notify(ctx, msg); nerr != nil {
			logger.Warnf("processor: notify failed: %v", nerr)
		}
	}
	if merr := p.platform.MarkProcessed(ctx, comment.ID); merr != nil {
		logger.Warnf("processor: failed to mark %s after error: %v", comment.ID, merr)
	}
	return domain.Outcome{
		Status:    domain.StatusManualReview,
		CommentID: comment.ID,
		Author:    comment.AuthorName,
		ErrorType: fmt.Sprintf("%T", cause),
		Error:     cause.Error(),
	}
}

func (p *Processor) record(ctx context.Context, outcome domain.Outcome) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.RecordOutcome(ctx, outcome); err != nil {
		logger.Warnf("processor: failed to record outcome for %s: %v", outcome.CommentID, err)
	}
}

func flairOrDefault(text string) string {
	if text == "" {
		return "Trades: 0"
	}
	return text
}
