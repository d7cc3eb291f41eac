// Package capture orchestrates the plot-generation lifecycle: minting the
// history fingerprint, tracking the in-flight id, persisting the placeholder
// entry, and patching the thumbnail when the asynchronous capture completes.
//
// Begin and Complete are the two calls plot-rendering components make.
// Everything between them is best-effort: a capture that fails patches a nil
// thumbnail rather than leaving the item perpetually loading, and a capture
// whose context is cancelled performs no final write at all.
package capture

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/dmfenton/plotdesk/internal/bus"
	"github.com/dmfenton/plotdesk/internal/history"
	"github.com/dmfenton/plotdesk/internal/loading"
	"github.com/dmfenton/plotdesk/internal/model"
	"github.com/dmfenton/plotdesk/internal/session"
)

// Coordinator ties the history store, loading tracker, and identity layer
// together for plot components.
type Coordinator struct {
	store    *history.Store
	tracker  *loading.Tracker
	sessions session.Provider
	events   *bus.Bus      // may be nil
	limiter  *rate.Limiter // bounds thumbnail-capture work
}

// New creates a coordinator. capturesPerSec bounds how many thumbnail
// completions are processed per second; zero or negative means unlimited.
func New(store *history.Store, tracker *loading.Tracker, sessions session.Provider, events *bus.Bus, capturesPerSec float64) *Coordinator {
	var limiter *rate.Limiter
	if capturesPerSec > 0 {
		burst := int(capturesPerSec)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(capturesPerSec), burst)
	}
	return &Coordinator{
		store:    store,
		tracker:  tracker,
		sessions: sessions,
		events:   events,
		limiter:  limiter,
	}
}

// Begin starts a plot generation: mints the fingerprint, marks it loading,
// and persists a placeholder history entry without a thumbnail. The returned
// id is passed back to Complete once rendering finishes.
//
// The entry is persisted before rendering completes, so the history panel
// shows the request immediately with a loading indicator. For anonymous
// sessions nothing is persisted, but the id is still minted and tracked so
// the in-session UI behaves the same.
func (c *Coordinator) Begin(request model.TimeSeriesRequest, plotType model.PlotType) (string, error) {
	// Placeholder entries never carry a thumbnail.
	request.Thumbnail = nil

	id := history.Fingerprint(request)
	c.tracker.Mark(id)

	userID := c.sessions.CurrentUser()
	if _, err := c.store.Append(userID, request, plotType, id); err != nil {
		c.tracker.Clear(id)
		return "", err
	}

	if c.events != nil {
		c.events.Publish(bus.GeneratePlot{HistoryID: id})
	}
	return id, nil
}

// Complete finishes a plot generation: clears the loading mark and patches
// the captured thumbnail onto the history entry. A nil thumbnail records
// "capture produced nothing"; the entry keeps its placeholder rendering.
//
// If ctx is cancelled (the owning component was destroyed), the final write
// is skipped; the loading mark is still cleared so the item does not stay
// stuck.
func (c *Coordinator) Complete(ctx context.Context, id string, thumbnail []byte) error {
	c.tracker.Clear(id)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			slog.Debug("thumbnail patch skipped", "id", id, "reason", err)
			return nil
		}
	}
	if err := ctx.Err(); err != nil {
		slog.Debug("thumbnail patch skipped", "id", id, "reason", err)
		return nil
	}

	userID := c.sessions.CurrentUser()
	if len(thumbnail) == 0 {
		// Best-effort degrade: capture failed or produced an empty image.
		return c.store.PatchThumbnail(userID, id, nil)
	}
	return c.store.PatchThumbnail(userID, id, thumbnail)
}

// UpdatePlotOptions patches rendering options (color map, opacity) onto an
// existing entry. Used when the user re-styles a plot after generation.
func (c *Coordinator) UpdatePlotOptions(id, colorMapName string, opacity *float64) error {
	return c.store.PatchPlotOptions(c.sessions.CurrentUser(), id, colorMapName, opacity)
}
