package syncgroup

import "sync"

// Group runs a set of long-lived background functions and waits for them
// to finish. It wraps sync.WaitGroup so callers cannot forget the Add/Done
// pairing. Add the runners first, then call Run once, then Wait.
type Group struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	fns     []func()
	started bool
}

func New() *Group {
	return &Group{}
}

// Add registers a function to run. Calls after Run are ignored.
func (g *Group) Add(fn func()) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return
	}
	g.fns = append(g.fns, fn)
}

// Run starts every registered function in its own goroutine. Only the first
// call starts anything.
func (g *Group) Run() {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	fns := g.fns
	g.fns = nil
	g.mu.Unlock()

	for _, fn := range fns {
		g.wg.Add(1)
		go func(fn func()) {
			defer g.wg.Done()
			fn()
		}(fn)
	}
}

// Wait blocks until every started function has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}
