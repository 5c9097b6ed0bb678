package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/secretstore"
)

// Secrets holds credentials. They never live in the config file: they come
// from the environment (godotenv in main) or the Badger secret store.
type Secrets struct {
	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string
	RedditUsername     string
	RedditPassword     string
	PushoverAppToken   string
	PushoverUserToken  string
}

var secretKeys = []string{
	"REDDIT_CLIENT_ID",
	"REDDIT_CLIENT_SECRET",
	"REDDIT_USER_AGENT",
	"REDDIT_USERNAME",
	"REDDIT_PASSWORD",
	"PUSHOVER_APP_TOKEN",
	"PUSHOVER_USER_TOKEN",
}

// LoadSecrets reads credentials from env, falling back per key to the secret
// store when one is provided. Pushover tokens are optional; Reddit
// credentials are not.
func LoadSecrets(store *secretstore.Store) (*Secrets, error) {
	get := func(key string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		if store != nil {
			if v, ok, err := store.GetString("env/" + key); err == nil && ok {
				return v
			}
		}
		return ""
	}

	values := make(map[string]string, len(secretKeys))
	for _, key := range secretKeys {
		values[key] = get(key)
	}

	s := &Secrets{
		RedditClientID:     values["REDDIT_CLIENT_ID"],
		RedditClientSecret: values["REDDIT_CLIENT_SECRET"],
		RedditUserAgent:    values["REDDIT_USER_AGENT"],
		RedditUsername:     values["REDDIT_USERNAME"],
		RedditPassword:     values["REDDIT_PASSWORD"],
		PushoverAppToken:   values["PUSHOVER_APP_TOKEN"],
		PushoverUserToken:  values["PUSHOVER_USER_TOKEN"],
	}

	for _, key := range []string{"REDDIT_CLIENT_ID", "REDDIT_CLIENT_SECRET", "REDDIT_USERNAME", "REDDIT_PASSWORD"} {
		if values[key] == "" {
			return nil, fmt.Errorf("missing required secret %s", key)
		}
	}
	if s.RedditUserAgent == "" {
		s.RedditUserAgent = fmt.Sprintf("trade-confirmation-bot (by u/%s)", s.RedditUsername)
	}
	return s, nil
}
