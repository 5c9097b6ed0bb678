package reddit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/domain"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/ports"
)

// ListRecentComments fetches up to limit subreddit comments newest-first.
// Exhausted reports that the listing ended before the cap, meaning nothing
// older was available in the window.
func (c *Client) ListRecentComments(ctx context.Context, limit int) (ports.ListingPage, error) {
	if limit <= 0 {
		limit = 100
	}
	var page ports.ListingPage
	after := ""
	remaining := limit
	for remaining > 0 {
		batch := remaining
		if batch > 100 {
			batch = 100
		}
		params := map[string]string{
			"limit": strconv.Itoa(batch),
			"raw_json": "1",
		}
		if after != "" {
			params["after"] = after
		}
		var out listing[commentData]
		err := c.do(ctx, "GET", fmt.Sprintf("/r/%s/comments", c.subreddit), requestOptions{params: params}, &out)
		if err != nil {
			return ports.ListingPage{}, err
		}
		for _, child := range out.Data.Children {
			page.Comments = append(page.Comments, child.Data.toDomain())
		}
		after = out.Data.After
		remaining -= len(out.Data.Children)
		if after == "" || len(out.Data.Children) == 0 {
			page.Exhausted = true
			break
		}
	}
	return page, nil
}

// GetComment fetches one comment by id.
func (c *Client) GetComment(ctx context.Context, id string) (domain.Comment, error) {
	var out listing[commentData]
	err := c.do(ctx, "GET", "/api/info", requestOptions{params: map[string]string{
		"id":       commentFullname(id),
		"raw_json": "1",
	}}, &out)
	if err != nil {
		return domain.Comment{}, err
	}
	if len(out.Data.Children) == 0 {
		return domain.Comment{}, fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	return out.Data.Children[0].Data.toDomain(), nil
}

// MarkProcessed saves the comment on the bot account. Saving an already-saved
// comment is a no-op on Reddit's side, which is what makes redelivery safe.
func (c *Client) MarkProcessed(ctx context.Context, id string) error {
	return c.do(ctx, "POST", "/api/save", requestOptions{form: map[string]string{
		"id": commentFullname(id),
	}}, nil)
}

// Reply posts a reply under parentID and returns the new comment id. The
// reply itself is saved immediately so the next scan skips it.
func (c *Client) Reply(ctx context.Context, parentID, text string) (string, error) {
	var out struct {
		JSON struct {
			Data struct {
				Things []struct {
					Data struct {
						ID string `json:"id"`
					} `json:"data"`
				} `json:"things"`
			} `json:"data"`
			Errors [][]any `json:"errors"`
		} `json:"json"`
	}
	err := c.do(ctx, "POST", "/api/comment", requestOptions{form: map[string]string{
		"api_type": "json",
		"thing_id": commentFullname(parentID),
		"text":     text,
	}}, &out)
	if err != nil {
		return "", err
	}
	if len(out.JSON.Errors) > 0 {
		return "", &APIError{StatusCode: 400, Endpoint: "/api/comment", Message: fmt.Sprint(out.JSON.Errors)}
	}
	if len(out.JSON.Data.Things) == 0 {
		return "", &APIError{StatusCode: 500, Endpoint: "/api/comment", Message: "reply did not post"}
	}
	replyID := out.JSON.Data.Things[0].Data.ID
	if err := c.MarkProcessed(ctx, replyID); err != nil {
		// The reply exists; a failed save just means one extra scan pass.
		return replyID, nil
	}
	return replyID, nil
}

// LockComment locks a comment thread.
func (c *Client) LockComment(ctx context.Context, id string) error {
	return c.do(ctx, "POST", "/api/lock", requestOptions{form: map[string]string{
		"id": commentFullname(id),
	}}, nil)
}
