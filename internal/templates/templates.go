// Package templates resolves logical reply template names to formatted text.
// The subreddit wiki copy is preferred (editable without redeploy); the
// bundled local file is the fallback when the wiki page is missing,
// inaccessible, or does not format cleanly against the supplied arguments.
package templates

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/ports"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/cache"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/logger"
)

// wikiPrefix namespaces the bot's wiki pages.
const wikiPrefix = "trade-confirmation-bot/"

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Source loads template bodies from the wiki with local-file fallback and
// caches them with a TTL. Implements ports.TemplateSource.
type Source struct {
	wiki     ports.WikiReader
	localDir string
	bodies   *cache.InMemoryCache[string, string]
	ttl      time.Duration
}

func NewSource(wiki ports.WikiReader, localDir string, ttl time.Duration) *Source {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	return &Source{
		wiki:     wiki,
		localDir: localDir,
		bodies:   cache.NewInMemoryCache[string, string](ttl),
		ttl:      ttl,
	}
}

// Render resolves name and substitutes args into {placeholder} slots. A wiki
// body that leaves unresolved placeholders is treated as broken and the local
// copy is used instead.
func (s *Source) Render(ctx context.Context, name string, args map[string]string) (string, error) {
	if body, ok := s.bodies.Get(name); ok {
		if text, err := format(body, args); err == nil {
			return text, nil
		}
		// A cached body that stopped formatting means someone edited the
		// wiki incompatibly; fall through and re-resolve.
		s.bodies.Delete(name)
	}

	if s.wiki != nil {
		body, err := s.wiki.GetWikiPage(ctx, wikiPrefix+name)
		if err == nil {
			if text, ferr := format(body, args); ferr == nil {
				s.bodies.Set(name, body, s.ttl)
				logger.WithField("template", name).Debug("loaded template from wiki")
				return text, nil
			}
			logger.WithField("template", name).Warn("wiki template does not format, using local copy")
		}
	}

	body, err := s.local(name)
	if err != nil {
		return "", err
	}
	text, err := format(body, args)
	if err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	s.bodies.Set(name, body, s.ttl)
	return text, nil
}

// Reload drops all cached bodies.
func (s *Source) Reload() {
	s.bodies.Clear()
}

func (s *Source) local(name string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(s.localDir, name+".md"))
	if err != nil {
		return "", fmt.Errorf("local template %s: %w", name, err)
	}
	return string(raw), nil
}

// format substitutes {key} placeholders. Unknown placeholders are an error so
// a broken wiki edit can't leak raw braces into user-facing replies.
func format(body string, args map[string]string) (string, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(body, func(m string) string {
		key := strings.Trim(m, "{}")
		if v, ok := args[key]; ok {
			return v
		}
		missing = append(missing, key)
		return m
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved placeholders: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
