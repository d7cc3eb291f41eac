// Package state wires the selection cells, derived cells, and reconciling
// effects into the application's reactive core. UI surfaces (the HTTP server,
// the CLI) read and write the cells here; boundary math lives in bounds.
package state

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/dmfenton/plotdesk/internal/bounds"
	"github.com/dmfenton/plotdesk/internal/model"
	"github.com/dmfenton/plotdesk/internal/session"
	"github.com/dmfenton/plotdesk/internal/signal"
)

// DefaultDateRangeDays is how many trailing available days the default date
// range covers when variables are selected before any explicit range.
const DefaultDateRangeDays = 7

// Store holds every selection cell and derivation. All cells share one
// graph, so a write to any primitive cell settles every derived cell and
// effect before the write returns.
type Store struct {
	graph *signal.Graph

	// Primitive cells, written by UI surfaces.
	Variables     *signal.Cell[[]model.Variable]
	SpatialArea   *signal.Cell[*model.SpatialArea] // nil means unset, derive a default
	DateTimeRange *signal.Cell[*model.DateTimeRange]
	PlotType      *signal.Cell[model.PlotType]
	User          *signal.Cell[model.UserState]
	TokenPresent  *signal.Cell[bool]

	// Derived cells.
	ValidDateTimeRange    *signal.Computed[model.ValidDateTimeRange]
	HasValidDateTimeRange *signal.Computed[bool]
	EffectiveSpatialArea  *signal.Computed[model.SpatialArea]
	CanGeneratePlots      *signal.Computed[bool]
	NeedsLogin            *signal.Computed[bool]
	TimeOfDayEnabled      *signal.Computed[bool]
	ConfiguredURL         *signal.Computed[string]

	effects []*signal.Effect
}

// Options configures the store.
type Options struct {
	// BaseURL is the application URL that ConfiguredURL builds share links
	// from, e.g. "https://plots.example.com/".
	BaseURL string
	// InitialPlotType seeds the plot-type cell; defaults to PlotTypePlot.
	InitialPlotType model.PlotType
}

// New builds the store, its derivations, and its reconciling effects on a
// fresh graph.
func New(opts Options) *Store {
	if opts.InitialPlotType == "" {
		opts.InitialPlotType = model.PlotTypePlot
	}

	g := signal.NewGraph()
	s := &Store{
		graph:         g,
		Variables:     signal.NewCell(g, []model.Variable(nil)),
		SpatialArea:   signal.NewCell(g, (*model.SpatialArea)(nil)),
		DateTimeRange: signal.NewCell(g, (*model.DateTimeRange)(nil)),
		PlotType:      signal.NewCell(g, opts.InitialPlotType),
		User:          signal.NewCell(g, model.UserState{}),
		TokenPresent:  signal.NewCell(g, false),
	}

	s.ValidDateTimeRange = signal.NewComputed(g, func(rx *signal.Ctx) model.ValidDateTimeRange {
		return bounds.ValidDateRange(s.Variables.Get(rx))
	})

	s.HasValidDateTimeRange = signal.NewComputed(g, func(rx *signal.Ctx) bool {
		r := s.DateTimeRange.Get(rx)
		return r != nil && r.Complete()
	})

	s.EffectiveSpatialArea = signal.NewComputed(g, func(rx *signal.Ctx) model.SpatialArea {
		if area := s.SpatialArea.Get(rx); area != nil {
			return *area
		}
		// Unset: fall back to the variables' combined default, which is the
		// whole globe when no variables are selected.
		return bounds.DefaultSpatialArea(s.Variables.Get(rx))
	})

	// Spatial area is not required: it always has a derived default.
	s.CanGeneratePlots = signal.NewComputed(g, func(rx *signal.Ctx) bool {
		return len(s.Variables.Get(rx)) > 0 && s.HasValidDateTimeRange.Get(rx)
	})

	s.NeedsLogin = signal.NewComputed(g, func(rx *signal.Ctx) bool {
		user := s.User.Get(rx)
		token := s.TokenPresent.Get(rx)
		if token && !user.Checked {
			// Assume a stored token is valid until the background check says
			// otherwise.
			return false
		}
		return !token || user.UserID == ""
	})

	s.TimeOfDayEnabled = signal.NewComputed(g, func(rx *signal.Ctx) bool {
		return bounds.AnyHourly(s.Variables.Get(rx))
	})

	s.ConfiguredURL = signal.NewComputed(g, func(rx *signal.Ctx) string {
		return s.buildConfiguredURL(rx, opts.BaseURL)
	})

	s.effects = []*signal.Effect{
		s.defaultSpatialAreaEffect(),
		s.defaultDateRangeEffect(),
		s.clampDateRangeEffect(),
	}

	return s
}

// Graph exposes the underlying graph so collaborators (the loading tracker,
// custom effects) share it.
func (s *Store) Graph() *signal.Graph {
	return s.graph
}

// Dispose stops all reconciling effects.
func (s *Store) Dispose() {
	for _, e := range s.effects {
		e.Dispose()
	}
}

// ─── Selection Helpers ────────────────────────────────────────────────────────

// SelectVariable appends v to the selection unless a variable with the same
// data field id is already selected.
func (s *Store) SelectVariable(v model.Variable) {
	s.Variables.Update(func(cur []model.Variable) []model.Variable {
		for _, existing := range cur {
			if existing.DataFieldID == v.DataFieldID {
				return cur
			}
		}
		next := make([]model.Variable, len(cur), len(cur)+1)
		copy(next, cur)
		return append(next, v)
	})
}

// DeselectVariable removes the variable with the given data field id.
func (s *Store) DeselectVariable(dataFieldID string) {
	s.Variables.Update(func(cur []model.Variable) []model.Variable {
		next := make([]model.Variable, 0, len(cur))
		for _, v := range cur {
			if v.DataFieldID != dataFieldID {
				next = append(next, v)
			}
		}
		return next
	})
}

// ApplySession copies the identity provider's answer into the user cells.
func (s *Store) ApplySession(p session.Provider) {
	s.TokenPresent.Set(p.HasToken())
	s.User.Set(model.UserState{Checked: p.Resolved(), UserID: p.CurrentUser()})
}

// CurrentRequest assembles a plot request from the current selection for
// the given variable. The spatial area is the effective one, never nil.
func (s *Store) CurrentRequest(v model.Variable) model.TimeSeriesRequest {
	req := model.TimeSeriesRequest{
		Variable:    v,
		SpatialArea: s.EffectiveSpatialArea.Peek(),
	}
	if r := s.DateTimeRange.Peek(); r != nil {
		req.DateTimeRange = *r
	}
	return req
}

// ─── Effects ──────────────────────────────────────────────────────────────────

// defaultSpatialAreaEffect materializes the variables' default area into the
// explicit cell when no area is set, but only when the default is
// non-global, so a later manual "zoom out" to global is never silently
// overridden.
func (s *Store) defaultSpatialAreaEffect() *signal.Effect {
	return signal.NewEffect(s.graph, func(rx *signal.Ctx) {
		if s.SpatialArea.Get(rx) != nil {
			return
		}
		vars := s.Variables.Get(rx)
		if len(vars) == 0 {
			return
		}
		def := bounds.DefaultSpatialArea(vars)
		if def.IsGlobal() {
			return
		}
		s.SpatialArea.Set(&def)
	})
}

// defaultDateRangeEffect fills an unset or incomplete date range with the
// last few available days once variables are selected. No default is applied
// when the boundary's max date is unknown.
func (s *Store) defaultDateRangeEffect() *signal.Effect {
	return signal.NewEffect(s.graph, func(rx *signal.Ctx) {
		cur := s.DateTimeRange.Get(rx)
		if cur != nil && cur.Complete() {
			return
		}
		if len(s.Variables.Get(rx)) == 0 {
			return
		}
		boundary := s.ValidDateTimeRange.Get(rx)
		def, ok := bounds.LastNAvailableDays(boundary.MinDate, boundary.MaxDate, DefaultDateRangeDays)
		if !ok {
			return
		}
		s.DateTimeRange.Set(&def)
	})
}

// clampDateRangeEffect keeps the selection inside the boundary, whether the
// boundary shifted or the user picked dates outside it. Writing the clamped
// range re-triggers the effect once; clamping is idempotent, so the second
// run sees an in-boundary range and settles.
func (s *Store) clampDateRangeEffect() *signal.Effect {
	return signal.NewEffect(s.graph, func(rx *signal.Ctx) {
		boundary := s.ValidDateTimeRange.Get(rx)
		if boundary.MinDate == "" && boundary.MaxDate == "" {
			return
		}
		cur := s.DateTimeRange.Get(rx)
		if cur == nil || !cur.Complete() {
			return
		}
		clamped := bounds.ClampRange(*cur, boundary)
		if clamped != *cur {
			s.DateTimeRange.Set(&clamped)
		}
	})
}

// ─── Share Links ──────────────────────────────────────────────────────────────

// buildConfiguredURL renders the current selection as a shareable URL. All
// selection parameters are cleared and rewritten on every recompute.
func (s *Store) buildConfiguredURL(rx *signal.Ctx, base string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		u = &url.URL{Path: "/"}
	}

	q := u.Query()
	for _, key := range []string{"lat", "lng", "bounds", "startDate", "endDate", "variable", "type"} {
		q.Del(key)
	}

	if pt := s.PlotType.Get(rx); pt != "" && pt != model.PlotTypePlot {
		q.Set("type", string(pt))
	}

	// The global area is the default view, so it carries no parameters.
	area := s.EffectiveSpatialArea.Get(rx)
	switch {
	case area.IsGlobal():
	case area.Type == model.AreaCoordinates:
		q.Set("lat", formatCoord(area.Point.Lat))
		q.Set("lng", formatCoord(area.Point.Lng))
	case area.Type == model.AreaBoundingBox:
		b := area.Bounds
		q.Set("bounds", fmt.Sprintf("%s,%s,%s,%s",
			formatCoord(b.West), formatCoord(b.South), formatCoord(b.East), formatCoord(b.North)))
	}

	if r := s.DateTimeRange.Get(rx); r != nil && r.Complete() {
		q.Set("startDate", r.StartDate)
		q.Set("endDate", r.EndDate)
	}

	for _, v := range s.Variables.Get(rx) {
		q.Add("variable", v.DataFieldID)
	}

	u.RawQuery = q.Encode()
	return u.String()
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
