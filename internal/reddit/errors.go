package reddit

import (
	"errors"
	"fmt"
	"net"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/retry"
)

// Sentinel errors for callers that branch on outcome rather than status code.
var (
	ErrNotFound     = errors.New("reddit: not found")
	ErrRateLimited  = errors.New("reddit: rate limited")
	ErrUnauthorized = errors.New("reddit: unauthorized")
	ErrForbidden    = errors.New("reddit: forbidden")
)

// APIError is a non-2xx response from the Reddit API.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reddit: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Unwrap maps status classes onto the sentinels so errors.Is works through a
// wrapped APIError.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == 404:
		return ErrNotFound
	case e.StatusCode == 429:
		return ErrRateLimited
	case e.StatusCode == 401:
		return ErrUnauthorized
	case e.StatusCode == 403:
		return ErrForbidden
	}
	return nil
}

// Classify implements the platform retry taxonomy: rate limits, 5xx, and
// network failures are transient; auth, permission, malformed-request, and
// not-found are permanent.
func Classify(err error) retry.Classification {
	if err == nil {
		return retry.Permanent
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			return retry.Transient
		case apiErr.StatusCode >= 500:
			return retry.Transient
		default:
			return retry.Permanent
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return retry.Transient
	}
	// Unrecognized failures get retried; the attempt budget bounds the cost.
	return retry.Transient
}

// Classifier is the retry.Classifier for Reddit API calls.
var Classifier = retry.ClassifierFunc(Classify)
