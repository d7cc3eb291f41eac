// Package loading tracks which history item ids have an outstanding
// asynchronous thumbnail capture. The set lives in a signal cell and every
// mutation installs a fresh copy, so observers that compare snapshots by
// identity always see a change.
//
// There is no timeout: an id stays marked until Clear is called for it. A
// capture that never completes leaves its item marked loading for the life
// of the process.
package loading

import (
	"sort"

	"github.com/dmfenton/plotdesk/internal/bus"
	"github.com/dmfenton/plotdesk/internal/signal"
)

// Tracker is an observable set of in-flight history item ids.
type Tracker struct {
	ids    *signal.Cell[map[string]struct{}]
	events *bus.Bus // may be nil
}

// New creates an empty tracker on the given graph.
func New(g *signal.Graph, events *bus.Bus) *Tracker {
	return &Tracker{
		ids:    signal.NewCell(g, map[string]struct{}{}),
		events: events,
	}
}

// Mark adds id to the set.
func (t *Tracker) Mark(id string) {
	t.ids.Update(func(cur map[string]struct{}) map[string]struct{} {
		next := make(map[string]struct{}, len(cur)+1)
		for k := range cur {
			next[k] = struct{}{}
		}
		next[id] = struct{}{}
		return next
	})
	t.notify()
}

// Clear removes id from the set. Clearing an absent id is a no-op.
func (t *Tracker) Clear(id string) {
	t.ids.Update(func(cur map[string]struct{}) map[string]struct{} {
		if _, ok := cur[id]; !ok {
			return cur
		}
		next := make(map[string]struct{}, len(cur))
		for k := range cur {
			if k != id {
				next[k] = struct{}{}
			}
		}
		return next
	})
	t.notify()
}

// IsLoading reports whether id is in the set, subscribing rx's computation.
// A nil rx reads without subscribing.
func (t *Tracker) IsLoading(rx *signal.Ctx, id string) bool {
	_, ok := t.ids.Get(rx)[id]
	return ok
}

// IDs returns a sorted snapshot of the set, subscribing rx's computation.
func (t *Tracker) IDs(rx *signal.Ctx) []string {
	cur := t.ids.Get(rx)
	out := make([]string, 0, len(cur))
	for id := range cur {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Cell exposes the underlying signal for derived cells that need the raw
// snapshot.
func (t *Tracker) Cell() *signal.Cell[map[string]struct{}] {
	return t.ids
}

func (t *Tracker) notify() {
	if t.events != nil {
		t.events.Publish(bus.LoadingChanged{IDs: t.snapshot()})
	}
}

// snapshot is IDs without dependency tracking, for event payloads.
func (t *Tracker) snapshot() []string {
	cur := t.ids.Peek()
	out := make([]string, 0, len(cur))
	for id := range cur {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
