package domain

// RejectionReason names a business-rule violation. Reasons other than
// RejectionNone double as the reply template for the user-facing response.
type RejectionReason string

const (
	// RejectionNone rejects silently: mark processed, no reply.
	RejectionNone RejectionReason = ""
	// RejectionStaleThread is a root comment on a confirmation thread from a
	// prior reporting period.
	RejectionStaleThread RejectionReason = "old_confirmation_thread"
	// RejectionAlreadyConfirmed is a reply under a parent whose trade already
	// closed.
	RejectionAlreadyConfirmed RejectionReason = "already_confirmed"
	// RejectionUserNotMentioned is a confirmation whose author is not named in
	// the parent comment.
	RejectionUserNotMentioned RejectionReason = "cant_confirm_username"
)

// ValidationResult is the tagged outcome of classifying one comment against
// platform-observed context. Produced fresh per event, never persisted.
type ValidationResult struct {
	Valid bool `json:"valid"`

	// Reason is set on invalid results that warrant a templated reply.
	Reason RejectionReason `json:"reason,omitempty"`

	// Skip marks root comments on the active thread: no action at all, not
	// even a processed mark.
	Skip bool `json:"skip,omitempty"`

	ParentAuthor    string `json:"parent_author,omitempty"`
	Confirmer       string `json:"confirmer,omitempty"`
	ParentCommentID string `json:"parent_comment_id,omitempty"`
	IsModApproval   bool   `json:"is_mod_approval,omitempty"`

	// ReplyTargetID is the comment the confirmation reply should land under.
	// For mod approvals this is the pending confirmation, not the approval.
	ReplyTargetID string `json:"reply_target_id,omitempty"`
}
