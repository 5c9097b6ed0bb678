// Package notify delivers operator alerts through Pushover. Alerts are
// advisory; the bot never depends on delivery.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/logger"
)

const pushoverURL = "https://api.pushover.net/1/messages.json"

// Pushover sends messages to the operator's devices. A zero-credential
// Pushover is a no-op, so callers never have to branch on configuration.
type Pushover struct {
	appToken string
	userKey  string
	client   *resty.Client
}

func NewPushover(appToken, userKey string) *Pushover {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)
	return &Pushover{appToken: appToken, userKey: userKey, client: client}
}

// Enabled reports whether credentials were configured.
func (p *Pushover) Enabled() bool {
	return p.appToken != "" && p.userKey != ""
}

func (p *Pushover) Notify(ctx context.Context, message string) error {
	if !p.Enabled() {
		logger.Debug("notify: pushover not configured, dropping alert")
		return nil
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"token":   p.appToken,
			"user":    p.userKey,
			"message": message,
		}).
		Post(pushoverURL)
	if err != nil {
		return fmt.Errorf("pushover request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("pushover responded %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
