// Package bus is a small synchronous in-process event bus. It replaces
// document-wide broadcast with typed events delivered to explicit
// subscribers, in subscription order, on the publisher's goroutine.
package bus

import "sync"

// Event is implemented by every message type carried on the bus.
type Event interface {
	Topic() string
}

// HistoryUpdated fires after any mutation of a user's plot history.
type HistoryUpdated struct {
	UserID string
}

func (HistoryUpdated) Topic() string { return "history-updated" }

// LoadingChanged fires when the set of in-flight history ids changes.
type LoadingChanged struct {
	IDs []string
}

func (LoadingChanged) Topic() string { return "loading-changed" }

// GeneratePlot announces that the user asked for a plot to be generated.
type GeneratePlot struct {
	HistoryID string
}

func (GeneratePlot) Topic() string { return "generate-plot" }

// Bus delivers events synchronously to all subscribers.
type Bus struct {
	mu   sync.Mutex
	subs []subscription
	next int
}

type subscription struct {
	id int
	fn func(Event)
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers fn for all events. The returned function removes the
// subscription.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers e to every subscriber in subscription order. Delivery is
// synchronous; subscribers must not block.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(e)
	}
}
