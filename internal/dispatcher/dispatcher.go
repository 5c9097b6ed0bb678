// Package dispatcher starts at most one processing unit per comment and lets
// concurrent dispatches of the same comment join the in-flight run instead of
// racing it.
package dispatcher

import (
	"context"
	"sync"

	"github.com/mikeacjones/reddit-trade-confirmation-bot/internal/domain"
	"github.com/mikeacjones/reddit-trade-confirmation-bot/pkg/logger"
)

// Runner executes one comment to a terminal outcome.
type Runner interface {
	Process(ctx context.Context, comment domain.Comment) (domain.Outcome, error)
}

// Handle is an awaitable reference to a processing unit.
type Handle struct {
	unit *unit
}

// Await blocks until the unit finishes or ctx ends.
func (h *Handle) Await(ctx context.Context) (domain.Outcome, error) {
	select {
	case <-h.unit.done:
		return h.unit.outcome, h.unit.err
	case <-ctx.Done():
		return domain.Outcome{}, ctx.Err()
	}
}

// Done reports whether the unit has finished without blocking.
func (h *Handle) Done() bool {
	select {
	case <-h.unit.done:
		return true
	default:
		return false
	}
}

type unit struct {
	key     string
	done    chan struct{}
	outcome domain.Outcome
	err     error
}

// Dispatcher deduplicates processing by unit key. Finished units are retained
// for a while so late joiners still resolve, then evicted oldest-first.
type Dispatcher struct {
	runner      Runner
	maxFinished int

	mu       sync.Mutex
	units    map[string]*unit
	finished []string
	running  sync.WaitGroup

	rootCtx context.Context
}

// New builds a dispatcher whose units run under rootCtx. Shutting the bot
// down cancels rootCtx, which flows into every in-flight unit.
func New(rootCtx context.Context, runner Runner, maxFinished int) *Dispatcher {
	if maxFinished <= 0 {
		maxFinished = 200
	}
	return &Dispatcher{
		runner:      runner,
		maxFinished: maxFinished,
		units:       make(map[string]*unit),
		rootCtx:     rootCtx,
	}
}

func unitKey(commentID string) string { return "process-" + commentID }

// Dispatch starts processing for a comment, or joins the unit already
// processing it. The second return reports whether a new unit was started.
func (d *Dispatcher) Dispatch(comment domain.Comment) (*Handle, bool) {
	key := unitKey(comment.ID)

	d.mu.Lock()
	if existing, ok := d.units[key]; ok {
		d.mu.Unlock()
		return &Handle{unit: existing}, false
	}
	u := &unit{key: key, done: make(chan struct{})}
	d.units[key] = u
	d.running.Add(1)
	d.mu.Unlock()

	go d.run(u, comment)
	return &Handle{unit: u}, true
}

func (d *Dispatcher) run(u *unit, comment domain.Comment) {
	defer d.running.Done()
	u.outcome, u.err = d.runner.Process(d.rootCtx, comment)
	close(u.done)

	d.mu.Lock()
	d.finished = append(d.finished, u.key)
	for len(d.finished) > d.maxFinished {
		oldest := d.finished[0]
		d.finished = d.finished[1:]
		delete(d.units, oldest)
	}
	d.mu.Unlock()

	if u.err != nil {
		logger.WithField("unit", u.key).Debugf("dispatcher: unit ended with error: %v", u.err)
	}
}

// Lookup returns the handle for a comment's unit if it is known.
func (d *Dispatcher) Lookup(commentID string) (*Handle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.units[unitKey(commentID)]
	if !ok {
		return nil, false
	}
	return &Handle{unit: u}, true
}

// Drain waits for in-flight units to finish, or gives up when ctx ends.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats summarizes dispatcher occupancy.
type Stats struct {
	Known    int `json:"known"`
	Finished int `json:"finished"`
	Running  int `json:"running"`
}

func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		Known:    len(d.units),
		Finished: len(d.finished),
		Running:  len(d.units) - len(d.finished),
	}
}
