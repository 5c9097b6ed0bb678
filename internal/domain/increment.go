package domain

import (
	"fmt"
	"strings"
)

// IncrementRole distinguishes the two participants of a confirmed trade when
// deriving idempotency keys.
type IncrementRole string

const (
	RoleParent    IncrementRole = "parent"
	RoleConfirmer IncrementRole = "confirmer"
)

// IncrementRequest asks the coordinator to move one user's trade counter.
// RequestID is the idempotency key: the coordinator applies a given RequestID
// at most once, ever.
type IncrementRequest struct {
	Username  string `json:"username"`
	RequestID string `json:"request_id"`
	Delta     int    `json:"delta"`
}

// IncrementRequestID derives the deterministic idempotency key for one side of
// a trade. Lowercased so replays agree regardless of author-name casing.
func IncrementRequestID(parentCommentID, confirmer string, role IncrementRole) string {
	return fmt.Sprintf("%s:%s:%s", strings.ToLower(parentCommentID), strings.ToLower(confirmer), role)
}

// IncrementResult reports what one increment actually did. Applied is false
// when the user's flair did not match the trackable pattern and was left
// untouched.
type IncrementResult struct {
	Username string `json:"username"`
	Applied  bool   `json:"applied"`
	OldCount int    `json:"old_count"`
	NewCount int    `json:"new_count"`
	OldFlair string `json:"old_flair"`
	NewFlair string `json:"new_flair"`
}
