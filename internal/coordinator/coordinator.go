// Package coordinator serializes trade-counter mutations per user and
// deduplicates them by request id. It is the only code path that writes
// flair: everything else observes.
package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/domain"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/flair"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/ports"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/reddit"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/logger"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/persistence"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/retry"
)

// FlairPlatform is the slice of the adapter the coordinator needs.
type FlairPlatform interface {
	ports.FlairReader
	ports.FlairWriter
}

// Options bound the coordinator's memory.
type Options struct {
	MaxCachedResults int // dedup results retained; oldest evicted beyond this
	RotateAfter      int // applies between snapshot compactions
	RetryPolicy      retry.Policy
}

// Coordinator owns one serializing lane per user. Distinct users proceed in
// parallel; requests naming the same user are strictly ordered.
type Coordinator struct {
	platform FlairPlatform
	metadata *flair.Metadata
	store    persistence.Store
	opts     Options

	mu        sync.Mutex
	lanes     map[string]*lane
	results   map[string]domain.IncrementResult
	order     []string // request id insertion order, for eviction
	lastKnown map[string]int
	applied   int
}

// lane serializes mutations of one user's counter.
type lane struct {
	mu sync.Mutex
}

// snapshot is the persisted coordinator state, carried across restarts the
// way a history-bounding rollover carries workflow state.
type snapshot struct {
	Results   []snapshotResult `json:"results"`
	LastKnown map[string]int   `json:"last_known"`
}

type snapshotResult struct {
	RequestID string                 `json:"request_id"`
	Result    domain.IncrementResult `json:"result"`
}

// New builds a coordinator, restoring any persisted snapshot. store may be
// nil in tests.
func New(platform FlairPlatform, metadata *flair.Metadata, store persistence.Store, opts Options) *Coordinator {
	if opts.MaxCachedResults <= 0 {
		opts.MaxCachedResults = 2000
	}
	if opts.RotateAfter <= 0 {
		opts.RotateAfter = 500
	}
	if opts.RetryPolicy.MaxAttempts == 0 {
		opts.RetryPolicy = retry.DefaultPolicy
	}
	c := &Coordinator{
		platform:  platform,
		metadata:  metadata,
		store:     store,
		opts:      opts,
		lanes:     make(map[string]*lane),
		results:   make(map[string]domain.IncrementResult),
		lastKnown: make(map[string]int),
	}
	c.restore()
	return c
}

func (c *Coordinator) restore() {
	if c.store == nil {
		return
	}
	var snap snapshot
	if err := c.store.Load(&snap); err != nil {
		if err != persistence.ErrNotExists {
			logger.Warnf("coordinator: failed to load snapshot: %v", err)
		}
		return
	}
	for _, item := range snap.Results {
		c.results[item.RequestID] = item.Result
		c.order = append(c.order, item.RequestID)
	}
	if snap.LastKnown != nil {
		c.lastKnown = snap.LastKnown
	}
	logger.WithFields(map[string]interface{}{
		"results": len(c.results), "users": len(c.lastKnown),
	}).Info("coordinator: restored snapshot")
}

// Apply applies one increment request at most once. A request id seen before
// returns the cached result without touching the platform.
func (c *Coordinator) Apply(ctx context.Context, req domain.IncrementRequest) (domain.IncrementResult, error) {
	if req.Username == "" || req.RequestID == "" {
		return domain.IncrementResult{}, fmt.Errorf("coordinator: username and request id are required")
	}

	if cached, ok := c.cachedResult(req.RequestID); ok {
		return cached, nil
	}

	userLane := c.laneFor(req.Username)
	userLane.mu.Lock()
	defer userLane.mu.Unlock()

	// A concurrent caller may have completed this request while we waited.
	if cached, ok := c.cachedResult(req.RequestID); ok {
		return cached, nil
	}

	result, err := c.applyLocked(ctx, req)
	if err != nil {
		return domain.IncrementResult{}, err
	}

	c.cacheResult(req.RequestID, result)
	return result, nil
}

// applyLocked performs the read-modify-write under the user's lane lock.
func (c *Coordinator) applyLocked(ctx context.Context, req domain.IncrementRequest) (domain.IncrementResult, error) {
	var text string
	err := retry.Do(ctx, c.opts.RetryPolicy, reddit.Classifier, func(ctx context.Context) error {
		var rerr error
		text, rerr = c.platform.GetUserFlair(ctx, req.Username)
		return rerr
	})
	if err != nil {
		return domain.IncrementResult{}, fmt.Errorf("read flair for %s: %w", req.Username, err)
	}

	// Custom flair the bot doesn't manage stays untouched.
	if !flair.Tracked(text) {
		logger.WithField("user", req.Username).Info("coordinator: custom flair, not updating")
		return domain.IncrementResult{
			Username: req.Username,
			Applied:  false,
			OldFlair: text,
			NewFlair: text,
		}, nil
	}

	readCount, _ := flair.ParseCount(text)

	// The external store's reads can lag its writes. Our own bookkeeping of
	// the last value we wrote is authoritative when they disagree.
	current := readCount
	if known, ok := c.knownCount(req.Username); ok && known > current {
		current = known
	}
	target := current + req.Delta

	newText, err := c.renderFlair(ctx, req.Username, target)
	if err != nil {
		return domain.IncrementResult{}, err
	}

	if err := c.writeFlair(ctx, req.Username, target, newText); err != nil {
		return domain.IncrementResult{}, fmt.Errorf("write flair for %s: %w", req.Username, err)
	}
	c.setKnownCount(req.Username, target)

	logger.WithFields(map[string]interface{}{
		"user": req.Username, "old": current, "new": target,
	}).Info("coordinator: counter updated")

	return domain.IncrementResult{
		Username: req.Username,
		Applied:  true,
		OldCount: current,
		NewCount: target,
		OldFlair: text,
		NewFlair: newText,
	}, nil
}

// renderFlair resolves the flair text for a count, preferring a matching
// subreddit template and falling back to the plain pattern when no template's
// range covers the count.
func (c *Coordinator) renderFlair(ctx context.Context, username string, count int) (string, error) {
	if c.metadata != nil {
		tmpl, ok, err := c.metadata.TemplateFor(ctx, count, username)
		if err != nil {
			return "", fmt.Errorf("flair template for %s: %w", username, err)
		}
		if ok {
			return flair.FormatText(tmpl.Text, count), nil
		}
		logger.WithFields(map[string]interface{}{"user": username, "count": count}).
			Warn("coordinator: no flair template covers count, using plain text")
	}
	return fmt.Sprintf("Trades: %d", count), nil
}

func (c *Coordinator) writeFlair(ctx context.Context, username string, count int, text string) error {
	templateID := ""
	if c.metadata != nil {
		if tmpl, ok, err := c.metadata.TemplateFor(ctx, count, username); err == nil && ok {
			templateID = tmpl.ID
		}
	}
	return retry.Do(ctx, c.opts.RetryPolicy, reddit.Classifier, func(ctx context.Context) error {
		return c.platform.SetUserFlair(ctx, username, text, templateID)
	})
}

func (c *Coordinator) laneFor(username string) *lane {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lanes[username]
	if !ok {
		l = &lane{}
		c.lanes[username] = l
	}
	return l
}

func (c *Coordinator) cachedResult(requestID string) (domain.IncrementResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result, ok := c.results[requestID]
	return result, ok
}

func (c *Coordinator) knownCount(username string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.lastKnown[username]
	return n, ok
}

func (c *Coordinator) setKnownCount(username string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastKnown[username] = count
}

func (c *Coordinator) cacheResult(requestID string, result domain.IncrementResult) {
	c.mu.Lock()
	c.results[requestID] = result
	c.order = append(c.order, requestID)
	for len(c.order) > c.opts.MaxCachedResults {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.results, oldest)
	}
	c.applied++
	rotate := c.applied >= c.opts.RotateAfter
	if rotate {
		c.applied = 0
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(snap)
	if rotate {
		logger.WithField("results", len(snap.Results)).Debug("coordinator: rotation checkpoint")
	}
}

func (c *Coordinator) snapshotLocked() snapshot {
	snap := snapshot{LastKnown: make(map[string]int, len(c.lastKnown))}
	for _, id := range c.order {
		snap.Results = append(snap.Results, snapshotResult{RequestID: id, Result: c.results[id]})
	}
	for k, v := range c.lastKnown {
		snap.LastKnown[k] = v
	}
	return snap
}

func (c *Coordinator) persist(snap snapshot) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(snap); err != nil {
		logger.Warnf("coordinator: failed to persist snapshot: %v", err)
	}
}

// State is the queryable view of one user's lane.
type State struct {
	Username   string `json:"username"`
	KnownCount int    `json:"known_count"`
	Known      bool   `json:"known"`
}

// Get exposes a user's lane state for the control plane.
func (c *Coordinator) Get(username string) State {
	n, ok := c.knownCount(username)
	return State{Username: username, KnownCount: n, Known: ok}
}

// Stats summarizes coordinator occupancy.
type Stats struct {
	CachedResults int `json:"cached_results"`
	TrackedUsers  int `json:"tracked_users"`
	Lanes         int `json:"lanes"`
}

func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		CachedResults: len(c.results),
		TrackedUsers:  len(c.lastKnown),
		Lanes:         len(c.lanes),
	}
}
