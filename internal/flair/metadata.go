package flair

import (
	"context"
	"strings"
	"time"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/ports"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/cache"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/logger"
)

// Template is a parsed subreddit flair template.
type Template struct {
	ID      string
	Text    string
	Range   Range
	ModOnly bool
}

// Metadata owns the cached subreddit state the flair logic needs: parsed
// flair templates and the moderator list. State is instance-owned with a TTL
// and an explicit Reload, not package globals.
type Metadata struct {
	platform interface {
		ports.FlairReader
		ports.ModeratorLister
	}
	store *cache.InMemoryCache[string, []Template]
	mods  *cache.InMemoryCache[string, map[string]bool]
	ttl   time.Duration
}

const (
	templatesKey = "templates"
	modsKey      = "moderators"
)

func NewMetadata(platform interface {
	ports.FlairReader
	ports.ModeratorLister
}, ttl time.Duration) *Metadata {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Metadata{
		platform: platform,
		store:    cache.NewInMemoryCache[string, []Template](ttl),
		mods:     cache.NewInMemoryCache[string, map[string]bool](ttl),
		ttl:      ttl,
	}
}

// Templates returns the parsed range-bearing flair templates.
func (m *Metadata) Templates(ctx context.Context) ([]Template, error) {
	if cached, ok := m.store.Get(templatesKey); ok {
		return cached, nil
	}
	raw, err := m.platform.ListFlairTemplates(ctx)
	if err != nil {
		return nil, err
	}
	templates := make([]Template, 0, len(raw))
	for _, t := range raw {
		r, ok := ParseRange(t.Text)
		if !ok {
			continue
		}
		templates = append(templates, Template{ID: t.ID, Text: t.Text, Range: r, ModOnly: t.ModOnly})
		logger.WithFields(map[string]interface{}{
			"min": r.Min, "max": r.Max, "mod_only": t.ModOnly,
		}).Debug("loaded flair template")
	}
	m.store.Set(templatesKey, templates, m.ttl)
	return templates, nil
}

// IsModerator reports whether username moderates the subreddit.
func (m *Metadata) IsModerator(ctx context.Context, username string) (bool, error) {
	mods, err := m.moderators(ctx)
	if err != nil {
		return false, err
	}
	return mods[strings.ToLower(username)], nil
}

func (m *Metadata) moderators(ctx context.Context) (map[string]bool, error) {
	if cached, ok := m.mods.Get(modsKey); ok {
		return cached, nil
	}
	names, err := m.platform.ListModerators(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[strings.ToLower(name)] = true
	}
	m.mods.Set(modsKey, set, m.ttl)
	return set, nil
}

// Reload drops the caches so the next read refetches.
func (m *Metadata) Reload() {
	m.store.Clear()
	m.mods.Clear()
}

// TemplateFor picks the template whose range contains count, honoring
// mod-only templates for moderators. Returns ok=false when no template
// covers the count.
func (m *Metadata) TemplateFor(ctx context.Context, count int, username string) (Template, bool, error) {
	templates, err := m.Templates(ctx)
	if err != nil {
		return Template{}, false, err
	}
	isMod, err := m.IsModerator(ctx, username)
	if err != nil {
		return Template{}, false, err
	}
	for _, t := range templates {
		if t.Range.Min <= count && count <= t.Range.Max && t.ModOnly == isMod {
			return t, true, nil
		}
	}
	return Template{}, false, nil
}
