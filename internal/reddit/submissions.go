package reddit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/domain"
)

// GetSubmission fetches one submission by id.
func (c *Client) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	var out listing[submissionData]
	err := c.do(ctx, "GET", "/api/info", requestOptions{params: map[string]string{
		"id":       submissionFullname(id),
		"raw_json": "1",
	}}, &out)
	if err != nil {
		return domain.Submission{}, err
	}
	if len(out.Data.Children) == 0 {
		return domain.Submission{}, fmt.Errorf("submission %s: %w", id, ErrNotFound)
	}
	return out.Data.Children[0].Data.toDomain(), nil
}

// ListBotSubmissions returns the bot account's submissions newest-first.
func (c *Client) ListBotSubmissions(ctx context.Context, limit int) ([]domain.Submission, error) {
	if limit <= 0 {
		limit = 10
	}
	var out listing[submissionData]
	err := c.do(ctx, "GET", fmt.Sprintf("/user/%s/submitted", c.creds.Username), requestOptions{params: map[string]string{
		"limit":    strconv.Itoa(limit),
		"sort":     "new",
		"raw_json": "1",
	}}, &out)
	if err != nil {
		return nil, err
	}
	subs := make([]domain.Submission, 0, len(out.Data.Children))
	for _, child := range out.Data.Children {
		subs = append(subs, child.Data.toDomain())
	}
	return subs, nil
}

// SubmitPost creates a self post on the subreddit and returns it.
func (c *Client) SubmitPost(ctx context.Context, title, body, flairID string) (domain.Submission, error) {
	form := map[string]string{
		"api_type":    "json",
		"sr":          c.subreddit,
		"kind":        "self",
		"title":       title,
		"text":        body,
		"sendreplies": "false",
	}
	if flairID != "" {
		form["flair_id"] = flairID
	}
	var out struct {
		JSON struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
			Errors [][]any `json:"errors"`
		} `json:"json"`
	}
	if err := c.do(ctx, "POST", "/api/submit", requestOptions{form: form}, &out); err != nil {
		return domain.Submission{}, err
	}
	if len(out.JSON.Errors) > 0 {
		return domain.Submission{}, &APIError{StatusCode: 400, Endpoint: "/api/submit", Message: fmt.Sprint(out.JSON.Errors)}
	}
	return c.GetSubmission(ctx, out.JSON.Data.ID)
}

// StickySubmission stickies (state true) or unstickies (state false) a post.
func (c *Client) StickySubmission(ctx context.Context, id string, state bool) error {
	return c.do(ctx, "POST", "/api/set_subreddit_sticky", requestOptions{form: map[string]string{
		"api_type": "json",
		"id":       submissionFullname(id),
		"state":    strconv.FormatBool(state),
	}}, nil)
}

// SetSuggestedSort sets the default comment sort of a submission.
func (c *Client) SetSuggestedSort(ctx context.Context, id, sort string) error {
	return c.do(ctx, "POST", "/api/set_suggested_sort", requestOptions{form: map[string]string{
		"api_type": "json",
		"id":       submissionFullname(id),
		"sort":     sort,
	}}, nil)
}

// LockSubmission locks a submission against new comments.
func (c *Client) LockSubmission(ctx context.Context, id string) error {
	return c.do(ctx, "POST", "/api/lock", requestOptions{form: map[string]string{
		"id": submissionFullname(id),
	}}, nil)
}
