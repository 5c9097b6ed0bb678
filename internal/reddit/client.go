package reddit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/logger"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/ratelimit"
)

const (
	defaultAuthURL = "https://www.reddit.com"
	defaultAPIURL  = "https://oauth.reddit.com"
)

// Credentials for the OAuth password grant (script app).
type Credentials struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
}

// Client talks to the Reddit API for one subreddit. It implements
// ports.Platform. All methods take a context and honor its deadline.
type Client struct {
	http      *resty.Client
	auth      *resty.Client
	creds     Credentials
	subreddit string
	limiter   ratelimit.Limiter

	tokenMu      sync.Mutex
	token        string
	tokenExpires time.Time
}

// Option tweaks client construction (tests point it at a local server).
type Option func(*Client)

func WithBaseURLs(authURL, apiURL string) Option {
	return func(c *Client) {
		c.auth.SetBaseURL(strings.TrimSuffix(authURL, "/"))
		c.http.SetBaseURL(strings.TrimSuffix(apiURL, "/"))
	}
}

// WithRateLimit swaps the request limiter (tests use a permissive one).
func WithRateLimit(l ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// NewClient builds the API client. Transport-level retry stays small (resty
// handles 429 Retry-After); step-level retry policy lives in pkg/retry at the
// call sites.
func NewClient(creds Credentials, subreddit string, opts ...Option) *Client {
	newResty := func(base string) *resty.Client {
		return resty.New().
			SetBaseURL(base).
			SetTimeout(60 * time.Second).
			SetHeader("User-Agent", creds.UserAgent).
			SetRetryCount(2).
			SetRetryWaitTime(1 * time.Second).
			SetRetryMaxWaitTime(10 * time.Second).
			SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
				if resp.StatusCode() == 429 {
					if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
						if d, err := time.ParseDuration(retryAfter + "s"); err == nil {
							return d, nil
						}
					}
					return 10 * time.Second, nil
				}
				return 0, nil
			})
	}

	c := &Client{
		http:      newResty(defaultAPIURL),
		auth:      newResty(defaultAuthURL),
		creds:     creds,
		subreddit: subreddit,
		// Reddit allows 100 OAuth requests per minute; leave headroom.
		limiter: ratelimit.NewSlidingWindow(95, time.Minute),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subreddit returns the subreddit this client is bound to.
func (c *Client) Subreddit() string {
	return c.subreddit
}

// BotUsername returns the authenticated account name.
func (c *Client) BotUsername() string {
	return c.creds.Username
}

type tokenResponse struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   float64 `json:"expires_in"`
	TokenType   string  `json:"token_type"`
	Error       string  `json:"error"`
}

// accessToken returns a valid bearer token, refreshing through the password
// grant when the cached one is near expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Until(c.tokenExpires) > 1*time.Minute {
		return c.token, nil
	}

	var out tokenResponse
	resp, err := c.auth.R().
		SetContext(ctx).
		SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret).
		SetFormData(map[string]string{
			"grant_type": "password",
			"username":   c.creds.Username,
			"password":   c.creds.Password,
		}).
		SetResult(&out).
		Post("/api/v1/access_token")
	if err != nil {
		return "", errors.Wrap(err, "reddit: token request")
	}
	if resp.IsError() {
		return "", &APIError{StatusCode: resp.StatusCode(), Endpoint: "/api/v1/access_token", Message: string(resp.Body())}
	}
	if out.AccessToken == "" {
		return "", &APIError{StatusCode: 401, Endpoint: "/api/v1/access_token", Message: out.Error}
	}

	c.token = out.AccessToken
	c.tokenExpires = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	logger.WithField("expires_in", out.ExpiresIn).Debug("refreshed reddit access token")
	return c.token, nil
}

type requestOptions struct {
	params map[string]string
	form   map[string]string
}

// do issues an authenticated request and decodes the JSON body into out.
// It blocks on the rate limiter first so bursts stay inside the API quota.
func (c *Client) do(ctx context.Context, method, endpoint string, opt requestOptions, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	r := c.http.R().
		SetContext(ctx).
		SetAuthToken(token)
	if opt.params != nil {
		r.SetQueryParams(opt.params)
	}
	if opt.form != nil {
		r.SetFormData(opt.form)
	}
	if out != nil {
		r.SetResult(out)
	}

	var resp *resty.Response
	switch method {
	case "GET":
		resp, err = r.Get(endpoint)
	case "POST":
		resp, err = r.Post(endpoint)
	default:
		return fmt.Errorf("reddit: unsupported method %s", method)
	}
	if err != nil {
		return errors.Wrapf(err, "reddit: %s %s", method, endpoint)
	}
	if resp.IsError() {
		// Drop the cached token on auth failure so the next call re-grants.
		if resp.StatusCode() == 401 {
			c.tokenMu.Lock()
			c.token = ""
			c.tokenMu.Unlock()
		}
		return &APIError{StatusCode: resp.StatusCode(), Endpoint: endpoint, Message: truncate(string(resp.Body()), 200)}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
