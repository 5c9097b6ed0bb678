package reddit

import (
	"strings"
	"time"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/domain"
)

// Listing envelope shared by comment and submission endpoints.
type listing[T any] struct {
	Data struct {
		Children []struct {
			Kind string `json:"kind"`
			Data T      `json:"data"`
		} `json:"children"`
		After string `json:"after"`
	} `json:"data"`
}

type commentData struct {
	ID         string  `json:"id"`
	Body       string  `json:"body"`
	BodyHTML   string  `json:"body_html"`
	Author     string  `json:"author"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
	ParentID   string  `json:"parent_id"`
	LinkID     string  `json:"link_id"`
	Saved      bool    `json:"saved"`
	Locked     bool    `json:"locked"`
	BannedBy   any     `json:"banned_by"`
}

func (d commentData) toDomain() domain.Comment {
	return domain.Comment{
		ID:           d.ID,
		Body:         d.Body,
		BodyHTML:     d.BodyHTML,
		AuthorName:   d.Author,
		Permalink:    d.Permalink,
		CreatedUTC:   time.Unix(int64(d.CreatedUTC), 0).UTC(),
		IsRoot:       strings.HasPrefix(d.ParentID, submissionKind+"_"),
		ParentID:     stripKind(d.ParentID),
		SubmissionID: stripKind(d.LinkID),
		Saved:        d.Saved,
		Locked:       d.Locked,
		Removed:      d.BannedBy != nil,
	}
}

type submissionData struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
	Stickied   bool    `json:"stickied"`
	Locked     bool    `json:"locked"`
}

func (d submissionData) toDomain() domain.Submission {
	return domain.Submission{
		ID:         d.ID,
		Title:      d.Title,
		AuthorName: d.Author,
		Permalink:  d.Permalink,
		CreatedUTC: time.Unix(int64(d.CreatedUTC), 0).UTC(),
		Stickied:   d.Stickied,
		Locked:     d.Locked,
	}
}

// Thing kind prefixes in fullnames (t1_xxx comments, t3_xxx submissions).
const (
	commentKind    = "t1"
	submissionKind = "t3"
)

func commentFullname(id string) string {
	return commentKind + "_" + id
}

func submissionFullname(id string) string {
	return submissionKind + "_" + id
}

func stripKind(fullname string) string {
	if i := strings.IndexByte(fullname, '_'); i >= 0 {
		return fullname[i+1:]
	}
	return fullname
}
