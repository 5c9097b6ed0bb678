package domain

// OutcomeStatus is the terminal state of one event processor run.
type OutcomeStatus string

const (
	StatusSkipped      OutcomeStatus = "skipped"
	StatusRejected     OutcomeStatus = "rejected"
	StatusConfirmed    OutcomeStatus = "confirmed"
	StatusManualReview OutcomeStatus = "manual_review_required"
)

// Outcome is the diagnostic record an event processor returns. ManualReview
// outcomes carry the error text rather than raising it, so redispatch storms
// cannot form.
type Outcome struct {
	Status    OutcomeStatus   `json:"status"`
	CommentID string          `json:"comment_id"`
	Author    string          `json:"author,omitempty"`
	Reason    RejectionReason `json:"reason,omitempty"`

	ParentAuthor      string `json:"parent_author,omitempty"`
	Confirmer         string `json:"confirmer,omitempty"`
	ParentNewFlair    string `json:"parent_new_flair,omitempty"`
	ConfirmerNewFlair string `json:"confirmer_new_flair,omitempty"`

	ErrorType string `json:"error_type,omitempty"`
	Error     string `json:"error,omitempty"`
}
