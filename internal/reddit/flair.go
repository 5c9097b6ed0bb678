package reddit

import (
	"context"
	"fmt"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/ports"
)

// GetUserFlair returns the user's current flair text, empty when unset.
func (c *Client) GetUserFlair(ctx context.Context, username string) (string, error) {
	var out struct {
		Users []struct {
			User      string `json:"user"`
			FlairText string `json:"flair_text"`
		} `json:"users"`
	}
	err := c.do(ctx, "GET", fmt.Sprintf("/r/%s/api/flairlist", c.subreddit), requestOptions{params: map[string]string{
		"name":     username,
		"raw_json": "1",
	}}, &out)
	if err != nil {
		return "", err
	}
	if len(out.Users) == 0 {
		return "", nil
	}
	return out.Users[0].FlairText, nil
}

// SetUserFlair assigns flair text to a user, optionally through a template.
func (c *Client) SetUserFlair(ctx context.Context, username, text, templateID string) error {
	form := map[string]string{
		"api_type": "json",
		"name":     username,
		"text":     text,
	}
	if templateID != "" {
		form["flair_template_id"] = templateID
	}
	return c.do(ctx, "POST", fmt.Sprintf("/r/%s/api/selectflair", c.subreddit), requestOptions{form: form}, nil)
}

// ListFlairTemplates returns the subreddit's user flair templates.
func (c *Client) ListFlairTemplates(ctx context.Context) ([]ports.FlairTemplate, error) {
	var out []struct {
		ID      string `json:"id"`
		Text    string `json:"text"`
		ModOnly bool   `json:"mod_only"`
	}
	err := c.do(ctx, "GET", fmt.Sprintf("/r/%s/api/user_flair_v2", c.subreddit), requestOptions{params: map[string]string{
		"raw_json": "1",
	}}, &out)
	if err != nil {
		return nil, err
	}
	templates := make([]ports.FlairTemplate, 0, len(out))
	for _, t := range out {
		templates = append(templates, ports.FlairTemplate{ID: t.ID, Text: t.Text, ModOnly: t.ModOnly})
	}
	return templates, nil
}
