package reddit

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ListModerators returns the subreddit moderator usernames.
func (c *Client) ListModerators(ctx context.Context) ([]string, error) {
	var out struct {
		Data struct {
			Children []struct {
				Name string `json:"name"`
			} `json:"children"`
		} `json:"data"`
	}
	err := c.do(ctx, "GET", fmt.Sprintf("/r/%s/about/moderators", c.subreddit), requestOptions{params: map[string]string{
		"raw_json": "1",
	}}, &out)
	if err != nil {
		return nil, err
	}
	mods := make([]string, 0, len(out.Data.Children))
	for _, child := range out.Data.Children {
		mods = append(mods, child.Name)
	}
	return mods, nil
}

// GetWikiPage returns the markdown body of a subreddit wiki page.
func (c *Client) GetWikiPage(ctx context.Context, name string) (string, error) {
	var out struct {
		Data struct {
			ContentMD string `json:"content_md"`
		} `json:"data"`
	}
	err := c.do(ctx, "GET", fmt.Sprintf("/r/%s/wiki/%s", c.subreddit, name), requestOptions{params: map[string]string{
		"raw_json": "1",
	}}, &out)
	if err != nil {
		return "", err
	}
	return out.Data.ContentMD, nil
}

// IsUserProcessable reports whether a username belongs to an existing,
// non-suspended account that is not the bot itself. Deleted accounts show up
// as "[deleted]" in comment data.
func (c *Client) IsUserProcessable(ctx context.Context, username string) (bool, error) {
	if username == "" || username == "[deleted]" {
		return false, nil
	}
	if strings.EqualFold(username, c.creds.Username) {
		return false, nil
	}
	var out struct {
		Data struct {
			Name        string `json:"name"`
			IsSuspended bool   `json:"is_suspended"`
		} `json:"data"`
	}
	err := c.do(ctx, "GET", fmt.Sprintf("/user/%s/about", username), requestOptions{params: map[string]string{
		"raw_json": "1",
	}}, &out)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !out.Data.IsSuspended, nil
}
