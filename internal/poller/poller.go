// Package poller scans the subreddit comment stream against a watermark set
// of already-seen ids, dispatches candidate confirmations, and adapts its
// cadence to activity. State survives restarts through the persistence layer.
package poller

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/dispatcher"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/domain"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/flair"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/ports"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/validate"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/logger"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/persistence"
)

// ControlMessage steers a running poller from the outside.
type ControlMessage string

const (
	// MsgStop ends the poll loop cleanly.
	MsgStop ControlMessage = "stop"
	// MsgInvalidateSubmissions drops the cached set of bot submissions so the
	// next scan re-reads it, e.g. right after a new monthly post.
	MsgInvalidateSubmissions ControlMessage = "invalidate-submission-cache"
	// MsgReloadMetadata refreshes flair templates, the moderator list, and
	// any registered reloaders (reply templates).
	MsgReloadMetadata ControlMessage = "reload-metadata"
)

// Reloader drops a cache so the next read refetches.
type Reloader interface {
	Reload()
}

// Platform is the slice of the adapter the poller uses: listing scans plus
// the processed marker for off-topic chatter it filters out itself.
type Platform interface {
	ports.CommentLister
	ports.CommentWriter
	ports.SubmissionReader
}

// Options tune the scan loop. Zero values take the documented defaults.
type Options struct {
	MinDelay         time.Duration // floor of the adaptive delay
	MaxDelay         time.Duration // ceiling of the adaptive delay
	MaxIterations    int           // scans per generation before rollover
	SeenCap          int           // watermark ids retained
	GapScanThreshold int           // scanned-without-watermark count that raises a gap alert
	ListingLimit     int           // listing horizon fetched per scan
	SubmissionTTL    time.Duration // how long the bot-submission set is trusted
}

func (o *Options) applyDefaults() {
	if o.MinDelay <= 0 {
		o.MinDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 16 * time.Second
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = 500
	}
	if o.SeenCap <= 0 {
		o.SeenCap = 1000
	}
	if o.GapScanThreshold <= 0 {
		o.GapScanThreshold = 900
	}
	if o.ListingLimit <= 0 {
		o.ListingLimit = 1000
	}
	if o.SubmissionTTL <= 0 {
		o.SubmissionTTL = 30 * time.Minute
	}
}

// Status is the queryable view of the loop.
type Status struct {
	Generation   string        `json:"generation"`
	Iteration    int           `json:"iteration"`
	Running      bool          `json:"running"`
	Watermark    string        `json:"watermark"`
	Delay        time.Duration `json:"delay"`
	SeenIDs      int           `json:"seen_ids"`
	Dispatched   uint64        `json:"dispatched"`
	Scanned      uint64        `json:"scanned"`
	GapAlerts    uint64        `json:"gap_alerts"`
	LastScanTime time.Time     `json:"last_scan_time"`
}

// persisted is the checkpoint written after every scan.
type persisted struct {
	SeenOrder []string      `json:"seen_order"`
	Delay     time.Duration `json:"delay"`
}

// Poller runs the scan loop.
type Poller struct {
	platform Platform
	dispatch *dispatcher.Dispatcher
	metadata *flair.Metadata
	notifier ports.Notifier
	store    persistence.Store
	opts     Options

	control chan ControlMessage

	reloaders []Reloader

	mu        sync.Mutex
	status    Status
	running   bool
	seen      map[string]struct{}
	seenOrder []string
	delay     time.Duration

	submissions       map[string]struct{}
	submissionsLoaded time.Time

	gapAlerted       bool
	lastGapWatermark string
}

func New(platform Platform, dispatch *dispatcher.Dispatcher, metadata *flair.Metadata, notifier ports.Notifier, store persistence.Store, opts Options) *Poller {
	opts.applyDefaults()
	p := &Poller{
		platform: platform,
		dispatch: dispatch,
		metadata: metadata,
		notifier: notifier,
		store:    store,
		opts:     opts,
		control:  make(chan ControlMessage, 16),
		seen:     make(map[string]struct{}),
		delay:    opts.MinDelay,
	}
	p.restore()
	return p
}

func (p *Poller) restore() {
	if p.store == nil {
		return
	}
	var state persisted
	if err := p.store.Load(&state); err != nil {
		if err != persistence.ErrNotExists {
			logger.Warnf("poller: failed to load checkpoint: %v", err)
		}
		return
	}
	for _, id := range state.SeenOrder {
		p.markSeenLocked(id)
	}
	if state.Delay >= p.opts.MinDelay && state.Delay <= p.opts.MaxDelay {
		p.delay = state.Delay
	}
	logger.WithField("seen", len(p.seen)).Info("poller: restored checkpoint")
}

// SetDispatcher installs the dispatcher. The poller and the dispatcher's
// processor reference each other's surroundings, so wiring happens in two
// steps; call this before Run.
func (p *Poller) SetDispatcher(d *dispatcher.Dispatcher) {
	p.dispatch = d
}

// AddReloader registers a cache to flush on reload-metadata. Call before Run.
func (p *Poller) AddReloader(r Reloader) {
	p.reloaders = append(p.reloaders, r)
}

// Control enqueues a control message. It never blocks; a full inbox drops the
// message with an error.
func (p *Poller) Control(msg ControlMessage) error {
	select {
	case p.control <- msg:
		return nil
	default:
		return fmt.Errorf("poller: control inbox full, dropped %q", msg)
	}
}

// Status returns a snapshot of the loop state.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.status
	s.Running = p.running
	s.SeenIDs = len(p.seen)
	s.Delay = p.delay
	if len(p.seenOrder) > 0 {
		s.Watermark = p.seenOrder[len(p.seenOrder)-1]
	}
	return s
}

// Run polls until ctx ends or a stop message arrives. Each generation runs a
// bounded number of scans, then the loop restarts under a fresh generation id
// carrying the watermark set and delay forward.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	for {
		stopped, err := p.runGeneration(ctx)
		if err != nil {
			return err
		}
		if stopped {
			return nil
		}
	}
}

func (p *Poller) runGeneration(ctx context.Context) (stopped bool, err error) {
	gen := uuid.NewString()
	p.mu.Lock()
	p.status.Generation = gen
	p.status.Iteration = 0
	p.mu.Unlock()
	logger.WithField("generation", gen).Info("poller: generation started")

	for i := 0; i < p.opts.MaxIterations; i++ {
		p.mu.Lock()
		p.status.Iteration = i
		delay := p.delay
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case msg := <-p.control:
			if p.handleControl(ctx, msg) {
				return true, nil
			}
			// A control message spends the wait; scan immediately after.
		case <-time.After(delay):
		}

		if err := p.scan(ctx); err != nil {
			if ctx.Err() != nil {
				return true, ctx.Err()
			}
			// Scan failures are transient by assumption; next iteration retries
			// at the backed-off cadence.
			logger.Warnf("poller: scan failed: %v", err)
			p.backOff()
		}
		p.checkpoint()
	}

	logger.WithField("generation", gen).Info("poller: generation rolling over")
	return false, nil
}

// handleControl applies one control message. It returns true when the loop
// should stop.
func (p *Poller) handleControl(ctx context.Context, msg ControlMessage) bool {
	logger.WithField("message", string(msg)).Info("poller: control message")
	switch msg {
	case MsgStop:
		return true
	case MsgInvalidateSubmissions:
		p.mu.Lock()
		p.submissions = nil
		p.mu.Unlock()
	case MsgReloadMetadata:
		p.metadata.Reload()
		for _, r := range p.reloaders {
			r.Reload()
		}
	default:
		logger.Warnf("poller: unknown control message %q", msg)
	}
	return false
}

// scan reads the newest comments down to the watermark and dispatches the
// candidates among them.
func (p *Poller) scan(ctx context.Context) error {
	page, err := p.platform.ListRecentComments(ctx, p.opts.ListingLimit)
	if err != nil {
		return fmt.Errorf("list comments: %w", err)
	}

	subs, err := p.activeSubmissions(ctx)
	if err != nil {
		return fmt.Errorf("resolve bot submissions: %w", err)
	}

	p.mu.Lock()
	hadWatermark := len(p.seenOrder) > 0
	p.mu.Unlock()

	var fresh []domain.Comment
	foundSeen := false
	scanned := 0
	for _, c := range page.Comments {
		scanned++
		if p.isSeen(c.ID) {
			foundSeen = true
			break
		}
		fresh = append(fresh, c)
	}

	// A gap is real only when the whole listing window was walked without
	// reaching a watermark that exists. Finding it again re-arms the alert.
	if foundSeen {
		p.mu.Lock()
		p.gapAlerted = false
		p.mu.Unlock()
	} else if hadWatermark && page.Exhausted && scanned >= p.opts.GapScanThreshold {
		p.alertGap(ctx, scanned)
	}

	dispatched := 0
	// Dispatch oldest-first so confirmations on the same thread land in
	// arrival order. Ids are ranked rather than trusting listing order.
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].Rank() < fresh[j].Rank() })
	for i := range fresh {
		c := fresh[i]
		p.markSeen(c.ID)
		if p.isCandidate(c, subs) {
			if _, started := p.dispatch.Dispatch(c); started {
				dispatched++
			}
			continue
		}
		// Off-topic chatter gets the processed marker at the source, so a
		// lost checkpoint cannot resurface it.
		if isOffTopic(c) {
			if err := p.platform.MarkProcessed(ctx, c.ID); err != nil {
				logger.Warnf("poller: mark off-topic %s: %v", c.ID, err)
			}
		}
	}

	p.adjustDelay(dispatched)

	p.mu.Lock()
	p.status.Scanned += uint64(scanned)
	p.status.Dispatched += uint64(dispatched)
	p.status.LastScanTime = time.Now()
	p.mu.Unlock()

	if dispatched > 0 {
		logger.WithFields(map[string]interface{}{
			"scanned": scanned, "dispatched": dispatched,
		}).Info("poller: scan complete")
	}
	return nil
}

// isCandidate keeps only comments the processor could act on: comments under
// one of the bot's own submissions that are either root comments or carry a
// confirmation or approval keyword. Removed and already-marked comments never
// qualify.
func (p *Poller) isCandidate(c domain.Comment, subs map[string]struct{}) bool {
	if c.Removed || c.Saved {
		return false
	}
	if _, ok := subs[c.SubmissionID]; !ok {
		return false
	}
	if c.IsRoot {
		return true
	}
	return validate.IsConfirming(c.Body) || validate.IsApproving(c.Body)
}

// isOffTopic matches non-root replies with no confirmation or approval
// keyword. Removed and already-marked comments are left alone.
func isOffTopic(c domain.Comment) bool {
	return !c.IsRoot && !c.Removed && !c.Saved &&
		!validate.IsConfirming(c.Body) && !validate.IsApproving(c.Body)
}

// activeSubmissions returns the cached set of the bot's submission ids,
// refreshing it when stale or invalidated.
func (p *Poller) activeSubmissions(ctx context.Context) (map[string]struct{}, error) {
	p.mu.Lock()
	if p.submissions != nil && time.Since(p.submissionsLoaded) < p.opts.SubmissionTTL {
		subs := p.submissions
		p.mu.Unlock()
		return subs, nil
	}
	p.mu.Unlock()

	listed, err := p.platform.ListBotSubmissions(ctx, 10)
	if err != nil {
		return nil, err
	}
	subs := make(map[string]struct{}, len(listed))
	for _, s := range listed {
		subs[s.ID] = struct{}{}
	}

	p.mu.Lock()
	p.submissions = subs
	p.submissionsLoaded = time.Now()
	p.mu.Unlock()
	logger.WithField("submissions", len(subs)).Debug("poller: refreshed bot submission set")
	return subs, nil
}

// alertGap notifies the operator that comments may have been missed between
// scans. One alert per watermark position; repeated scans from the same spot
// stay quiet.
func (p *Poller) alertGap(ctx context.Context, scanned int) {
	p.mu.Lock()
	watermark := ""
	if len(p.seenOrder) > 0 {
		watermark = p.seenOrder[len(p.seenOrder)-1]
	}
	if p.gapAlerted && watermark == p.lastGapWatermark {
		p.mu.Unlock()
		return
	}
	p.gapAlerted = true
	p.lastGapWatermark = watermark
	p.status.GapAlerts++
	p.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"scanned": scanned, "watermark": watermark,
	}).Warn("poller: possible gap, watermark not found in listing window")

	if p.notifier != nil {
		msg := fmt.Sprintf("Poller scanned %d comments without reaching the last seen id (%s). Comments may have been missed.", scanned, watermark)
		if err := p.notifier.Notify(ctx, msg); err != nil {
			logger.Warnf("poller: gap alert delivery failed: %v", err)
		}
	}
}

// adjustDelay halves the delay after an active scan and doubles it after an
// idle one, clamped to [MinDelay, MaxDelay].
func (p *Poller) adjustDelay(dispatched int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if dispatched > 0 {
		p.delay = p.opts.MinDelay
		return
	}
	p.delay *= 2
	if p.delay > p.opts.MaxDelay {
		p.delay = p.opts.MaxDelay
	}
}

func (p *Poller) backOff() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay *= 2
	if p.delay > p.opts.MaxDelay {
		p.delay = p.opts.MaxDelay
	}
}

func (p *Poller) isSeen(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.seen[id]
	return ok
}

func (p *Poller) markSeen(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markSeenLocked(id)
}

func (p *Poller) markSeenLocked(id string) {
	if _, ok := p.seen[id]; ok {
		return
	}
	p.seen[id] = struct{}{}
	p.seenOrder = append(p.seenOrder, id)
	for len(p.seenOrder) > p.opts.SeenCap {
		oldest := p.seenOrder[0]
		p.seenOrder = p.seenOrder[1:]
		delete(p.seen, oldest)
	}
}

// checkpoint persists the watermark set and delay after each scan.
func (p *Poller) checkpoint() {
	if p.store == nil {
		return
	}
	p.mu.Lock()
	state := persisted{
		SeenOrder: append([]string(nil), p.seenOrder...),
		Delay:     p.delay,
	}
	p.mu.Unlock()
	if err := p.store.Save(state); err != nil {
		logger.Warnf("poller: failed to persist checkpoint: %v", err)
	}
}
