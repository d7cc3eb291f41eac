// Package signal implements a small synchronous observable graph: mutable
// cells, memoized computed cells, and effects that re-run when their
// dependencies change.
//
// Dependency tracking is explicit. A derivation or effect closure receives a
// *Ctx and reads its sources through it (cell.Get(rx)); whatever it reads
// that way becomes a dependency for the next run. The context travels down
// the call stack, so concurrent runs on different goroutines each collect
// their own dependencies and never observe another goroutine's. Reads
// outside any derivation use Peek, or pass a nil Ctx, and subscribe nothing.
//
// Writes propagate synchronously on the writing goroutine: by the time Set
// returns, every affected computed cell is marked stale and subscribed
// effects have run, or are being drained by a flush already in progress on
// another goroutine. Computed cells recompute lazily on read and cache
// until a dependency changes.
package signal

import "sync"

// Graph owns the bookkeeping shared by all cells, computeds, and effects
// created against it.
type Graph struct {
	mu       sync.Mutex
	queue    []*Effect
	flushing bool
	nextSeq  int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Ctx identifies the computation currently collecting dependencies: a
// computed cell's derivation or an effect body. The graph passes one to
// every derivation and effect run. A nil Ctx is valid everywhere and means
// "read without subscribing".
type Ctx struct {
	comp *computation
}

// computation is one trackable unit: a computed cell's recompute or an
// effect's run. invalidate is called when any dependency changes.
type computation struct {
	invalidate func()
	sources    []*depSet // sources this computation is currently subscribed to
}

// detach removes the computation from every source it subscribed to during
// its last run. Called before each re-run so stale dependencies drop off.
// Caller holds g.mu.
func (c *computation) detach() {
	for _, s := range c.sources {
		delete(s.obs, c)
	}
	c.sources = c.sources[:0]
}

// depSet is the observer list of a single source (cell or computed).
type depSet struct {
	obs map[*computation]struct{}
}

func newDepSet() *depSet {
	return &depSet{obs: make(map[*computation]struct{})}
}

// track registers rx's computation (if any) as an observer of src.
// Caller holds g.mu.
func (g *Graph) track(rx *Ctx, src *depSet) {
	if rx == nil || rx.comp == nil {
		return
	}
	if _, ok := src.obs[rx.comp]; ok {
		return
	}
	src.obs[rx.comp] = struct{}{}
	rx.comp.sources = append(rx.comp.sources, src)
}

// notify invalidates every observer of src. Caller holds g.mu.
// Observers are copied first because invalidation may mutate the set.
func (g *Graph) notify(src *depSet) {
	if len(src.obs) == 0 {
		return
	}
	pending := make([]*computation, 0, len(src.obs))
	for c := range src.obs {
		pending = append(pending, c)
	}
	for _, c := range pending {
		c.invalidate()
	}
}

// flush drains the effect queue. Caller holds g.mu; the lock is released
// around each effect run so effects can read and write cells. At most one
// flush cycle runs at a time: writes from inside an effect, or from another
// goroutine while a flush is in progress, only enqueue, and the running
// flush loops until the queue is empty.
func (g *Graph) flush() {
	if g.flushing {
		return
	}
	g.flushing = true
	for len(g.queue) > 0 {
		// Run in subscription order.
		min := 0
		for i := range g.queue {
			if g.queue[i].seq < g.queue[min].seq {
				min = i
			}
		}
		eff := g.queue[min]
		g.queue = append(g.queue[:min], g.queue[min+1:]...)
		eff.enqueued = false
		g.run(eff)
	}
	g.flushing = false
}

// run executes one effect with a fresh tracking context. Caller holds g.mu.
func (g *Graph) run(eff *Effect) {
	if eff.disposed {
		return
	}
	eff.comp.detach()
	g.mu.Unlock()
	eff.fn(&Ctx{comp: eff.comp})
	g.mu.Lock()
}

// ─── Cells ────────────────────────────────────────────────────────────────────

// Cell is a mutable observable value.
type Cell[T any] struct {
	g     *Graph
	value T
	deps  *depSet
	eq    func(a, b T) bool // nil means every Set propagates
}

// NewCell creates a cell holding initial. Every Set propagates, even if the
// new value equals the old one.
func NewCell[T any](g *Graph, initial T) *Cell[T] {
	return &Cell[T]{g: g, value: initial, deps: newDepSet()}
}

// NewCellEq creates a cell that skips propagation when eq reports the new
// value equal to the current one.
func NewCellEq[T any](g *Graph, initial T, eq func(a, b T) bool) *Cell[T] {
	return &Cell[T]{g: g, value: initial, deps: newDepSet(), eq: eq}
}

// Get returns the current value, subscribing rx's computation.
func (c *Cell[T]) Get(rx *Ctx) T {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	c.g.track(rx, c.deps)
	return c.value
}

// Peek returns the current value without subscribing. Use for reads outside
// any derivation, or inside an effect for a cell the effect must not depend
// on.
func (c *Cell[T]) Peek() T {
	c.g.mu.Lock()
	defer c.g.mu.Unlock()
	return c.value
}

// Set replaces the value and synchronously propagates: dependent computed
// cells are marked stale and subscribed effects run before Set returns.
func (c *Cell[T]) Set(v T) {
	c.g.mu.Lock()
	if c.eq != nil && c.eq(c.value, v) {
		c.g.mu.Unlock()
		return
	}
	c.value = v
	c.g.notify(c.deps)
	c.g.flush()
	c.g.mu.Unlock()
}

// Update applies fn to the current value and stores the result. fn runs
// under the graph lock and must not read other cells; the write propagates
// as in Set.
func (c *Cell[T]) Update(fn func(T) T) {
	c.g.mu.Lock()
	v := fn(c.value)
	if c.eq != nil && c.eq(c.value, v) {
		c.g.mu.Unlock()
		return
	}
	c.value = v
	c.g.notify(c.deps)
	c.g.flush()
	c.g.mu.Unlock()
}

// ─── Computed Cells ───────────────────────────────────────────────────────────

// Computed is a memoized cell derived from other cells. It recomputes on
// read when stale and caches otherwise. The derivation must be pure: safe to
// re-run redundantly, no observable side effects.
type Computed[T any] struct {
	g     *Graph
	fn    func(*Ctx) T
	runMu sync.Mutex // serializes recomputes of this cell
	value T
	dirty bool
	gen   uint64 // bumped on invalidate; detects writes racing a recompute
	deps  *depSet
	comp  *computation
}

// NewComputed creates a computed cell from a pure derivation.
func NewComputed[T any](g *Graph, fn func(*Ctx) T) *Computed[T] {
	c := &Computed[T]{g: g, fn: fn, dirty: true, deps: newDepSet()}
	c.comp = &computation{invalidate: func() {
		c.gen++
		if c.dirty {
			return
		}
		c.dirty = true
		// Propagate staleness so downstream computeds and effects notice.
		g.notify(c.deps)
	}}
	return c
}

// Get returns the derived value, recomputing if a dependency changed since
// the last read. Subscribes rx's computation.
func (c *Computed[T]) Get(rx *Ctx) T {
	c.g.mu.Lock()
	c.g.track(rx, c.deps)
	if !c.dirty {
		v := c.value
		c.g.mu.Unlock()
		return v
	}
	c.g.mu.Unlock()

	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.g.mu.Lock()
	if c.dirty {
		// The derivation runs with this cell's own tracking context and the
		// graph lock released, so it can read other cells. If a dependency
		// is written while it runs, gen moves and the cell stays dirty: the
		// next read recomputes instead of trusting the torn value.
		start := c.gen
		c.comp.detach()
		c.g.mu.Unlock()
		v := c.fn(&Ctx{comp: c.comp})
		c.g.mu.Lock()
		c.value = v
		if c.gen == start {
			c.dirty = false
		}
	}
	v := c.value
	c.g.mu.Unlock()
	return v
}

// Peek returns the derived value without subscribing.
func (c *Computed[T]) Peek() T {
	return c.Get(nil)
}

// ─── Effects ──────────────────────────────────────────────────────────────────

// Effect is an impure subscriber: its closure runs once at creation to
// collect dependencies, then again after any dependency changes.
type Effect struct {
	g        *Graph
	fn       func(*Ctx)
	comp     *computation
	seq      int
	enqueued bool
	disposed bool
}

// NewEffect creates the effect and runs it immediately.
func NewEffect(g *Graph, fn func(*Ctx)) *Effect {
	g.mu.Lock()
	eff := &Effect{g: g, fn: fn, seq: g.nextSeq}
	g.nextSeq++
	eff.comp = &computation{invalidate: func() {
		if eff.enqueued || eff.disposed {
			return
		}
		eff.enqueued = true
		g.queue = append(g.queue, eff)
	}}
	g.run(eff)
	g.flush()
	g.mu.Unlock()
	return eff
}

// Dispose unsubscribes the effect from all dependencies. It will not run
// again.
func (e *Effect) Dispose() {
	e.g.mu.Lock()
	e.disposed = true
	e.comp.detach()
	e.g.mu.Unlock()
}
