// Package app wires together configuration, the catalog client, the state
// graph, and the history subsystem into a single Deps struct that commands
// receive at runtime.
package app

import (
	"errors"

	"github.com/dmfenton/plotdesk/internal/bus"
	"github.com/dmfenton/plotdesk/internal/capture"
	"github.com/dmfenton/plotdesk/internal/catalog"
	"github.com/dmfenton/plotdesk/internal/config"
	"github.com/dmfenton/plotdesk/internal/history"
	"github.com/dmfenton/plotdesk/internal/loading"
	"github.com/dmfenton/plotdesk/internal/model"
	"github.com/dmfenton/plotdesk/internal/session"
	"github.com/dmfenton/plotdesk/internal/state"
)

// Deps holds all runtime dependencies injected into command Run functions.
// The history store is opened lazily via RequireStore so read-only commands
// never touch the database file.
type Deps struct {
	Config  *config.Config
	Catalog *catalog.Client
	Events  *bus.Bus
	State   *state.Store
	Loading *loading.Tracker
	Session session.Provider

	Store   *history.Store
	Capture *capture.Coordinator
}

// New builds a Deps from resolved config.
func New(cfg *config.Config) *Deps {
	events := bus.New()
	st := state.New(state.Options{
		BaseURL:         cfg.BaseURL,
		InitialPlotType: model.PlotType(cfg.PlotType),
	})
	sess := session.Static{UserID: cfg.User}
	st.ApplySession(sess)

	return &Deps{
		Config:  cfg,
		Catalog: catalog.NewClient(cfg.CatalogURL, cfg.Timeout, cfg.Rate, cfg.Debug),
		Events:  events,
		State:   st,
		Loading: loading.New(st.Graph(), events),
		Session: sess,
	}
}

// RequireStore opens the history database if it is not already open, and
// builds the capture coordinator on top of it.
func (d *Deps) RequireStore() error {
	if d.Store != nil {
		return nil
	}
	if d.Config.DBPath == "" {
		return errors.New("no database path configured; set db_path in config.json or PLOTDESK_DB_PATH")
	}
	store, err := history.Open(d.Config.DBPath, d.Events)
	if err != nil {
		return err
	}
	d.Store = store
	d.Capture = capture.New(store, d.Loading, d.Session, d.Events, d.Config.Rate)
	return nil
}

// Close releases the store if it was opened.
func (d *Deps) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	d.Capture = nil
	return err
}
