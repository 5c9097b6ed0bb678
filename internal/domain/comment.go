package domain

import (
	"strconv"
	"strings"
	"time"
)

// Comment is an immutable snapshot of one Reddit comment as observed during a
// poll cycle. It is materialized once by the adapter and never mutated
// locally; the Saved flag is the source-of-truth "processed" marker the
// processor writes back on terminal outcomes.
type Comment struct {
	ID           string    `json:"id"`
	Body         string    `json:"body"`
	BodyHTML     string    `json:"body_html"`
	AuthorName   string    `json:"author_name"`
	Permalink    string    `json:"permalink"`
	CreatedUTC   time.Time `json:"created_utc"`
	IsRoot       bool      `json:"is_root"`
	ParentID     string    `json:"parent_id"`
	SubmissionID string    `json:"submission_id"`
	Saved        bool      `json:"saved"`
	Removed      bool      `json:"removed"`
	Locked       bool      `json:"locked"`
}

// Rank converts the base36 comment id into a chronologically comparable
// integer. Reddit ids are monotonic, so Rank ordering is creation ordering.
func (c Comment) Rank() int64 {
	return IDRank(c.ID)
}

// IDRank parses a base36 Reddit id. Returns 0 for malformed ids so they sort
// before everything real.
func IDRank(id string) int64 {
	n, err := strconv.ParseInt(strings.ToLower(strings.TrimSpace(id)), 36, 64)
	if err != nil {
		return 0
	}
	return n
}

// Submission is the slice of a Reddit submission the core cares about.
type Submission struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	AuthorName string    `json:"author_name"`
	Permalink  string    `json:"permalink"`
	CreatedUTC time.Time `json:"created_utc"`
	Stickied   bool      `json:"stickied"`
	Locked     bool      `json:"locked"`
}

// SameMonth reports whether t falls in the same calendar month as ref, in UTC.
func SameMonth(t, ref time.Time) bool {
	t, ref = t.UTC(), ref.UTC()
	return t.Year() == ref.Year() && t.Month() == ref.Month()
}
