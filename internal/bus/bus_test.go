package bus_test

import (
	"testing"

	"github.com/dmfenton/plotdesk/internal/bus"
)

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	b := bus.New()
	var order []string
	b.Subscribe(func(bus.Event) { order = append(order, "first") })
	b.Subscribe(func(bus.Event) { order = append(order, "second") })

	b.Publish(bus.HistoryUpdated{UserID: "grace"})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v", order)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := bus.New()
	var count int
	unsub := b.Subscribe(func(bus.Event) { count++ })

	b.Publish(bus.GeneratePlot{HistoryID: "x"})
	unsub()
	b.Publish(bus.GeneratePlot{HistoryID: "y"})

	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := bus.New()
	var count int
	unsub := b.Subscribe(func(bus.Event) { count++ })
	keep := 0
	b.Subscribe(func(bus.Event) { keep++ })

	unsub()
	unsub()
	b.Publish(bus.LoadingChanged{})

	if count != 0 || keep != 1 {
		t.Fatalf("count = %d keep = %d", count, keep)
	}
}

func TestEventTopics(t *testing.T) {
	cases := []struct {
		event bus.Event
		topic string
	}{
		{bus.HistoryUpdated{}, "history-updated"},
		{bus.LoadingChanged{}, "loading-changed"},
		{bus.GeneratePlot{}, "generate-plot"},
	}
	for _, c := range cases {
		if got := c.event.Topic(); got != c.topic {
			t.Errorf("%T topic = %q, want %q", c.event, got, c.topic)
		}
	}
}

func TestSubscriberSeesTypedPayload(t *testing.T) {
	b := bus.New()
	var got string
	b.Subscribe(func(e bus.Event) {
		if hu, ok := e.(bus.HistoryUpdated); ok {
			got = hu.UserID
		}
	})
	b.Publish(bus.HistoryUpdated{UserID: "ada"})
	if got != "ada" {
		t.Fatalf("user = %q", got)
	}
}
