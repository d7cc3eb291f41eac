// Package server exposes the reactive core to the browser UI: JSON
// endpoints over the selection cells and derived cells, plot begin/complete
// calls for rendering components, history CRUD, and a websocket feed that
// pushes history and loading-set changes.
//
// The server renders nothing. It is a transport for the state surface; all
// invariants live in the state, bounds, history, and capture packages.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmfenton/plotdesk/internal/app"
	"github.com/dmfenton/plotdesk/internal/model"
	"github.com/dmfenton/plotdesk/internal/util"
)

// maxThumbnailBytes caps uploaded thumbnail size.
const maxThumbnailBytes = 1 << 20

// Server wires the deps container to an HTTP router.
type Server struct {
	deps *app.Deps
	hub  *hub
}

// New creates a server over deps. RequireStore must have been called.
func New(deps *app.Deps) *Server {
	return &Server{
		deps: deps,
		hub:  newHub(deps.Events),
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleGetState)

		r.Route("/variables", func(r chi.Router) {
			r.Get("/", s.handleListVariables)
			r.Post("/", s.handleSelectVariable)
			r.Delete("/{id}", s.handleDeselectVariable)
		})

		r.Put("/spatial-area", s.handleSetSpatialArea)
		r.Put("/date-range", s.handleSetDateRange)
		r.Put("/plot-type", s.handleSetPlotType)

		r.Route("/plots", func(r chi.Router) {
			r.Post("/", s.handleBeginPlot)
			r.Post("/{id}/complete", s.handleCompletePlot)
		})

		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.handleListHistory)
			r.Delete("/{id}", s.handleDeleteHistory)
			r.Patch("/{id}/options", s.handlePatchOptions)
		})
	})

	r.Get("/events", s.hub.handleConnect)

	return r
}

// Close shuts down the websocket hub.
func (s *Server) Close() {
	s.hub.close()
}

// ─── State ────────────────────────────────────────────────────────────────────

// stateSnapshot is the wire shape of GET /api/state: every primitive and
// derived cell in one read.
type stateSnapshot struct {
	Variables            []model.Variable         `json:"variables"`
	SpatialArea          *model.SpatialArea       `json:"spatialArea"`
	EffectiveSpatialArea model.SpatialArea        `json:"effectiveSpatialArea"`
	DateTimeRange        *model.DateTimeRange     `json:"dateTimeRange"`
	ValidDateTimeRange   model.ValidDateTimeRange `json:"validDateTimeRange"`
	PlotType             model.PlotType           `json:"plotType"`
	CanGeneratePlots     bool                     `json:"canGeneratePlots"`
	NeedsLogin           bool                     `json:"needsLogin"`
	TimeOfDayEnabled     bool                     `json:"timeOfDayEnabled"`
	ConfiguredURL        string                   `json:"configuredUrl"`
	LoadingIDs           []string                 `json:"loadingIds"`
}

func (s *Server) snapshot() stateSnapshot {
	st := s.deps.State
	return stateSnapshot{
		Variables:            st.Variables.Peek(),
		SpatialArea:          st.SpatialArea.Peek(),
		EffectiveSpatialArea: st.EffectiveSpatialArea.Peek(),
		DateTimeRange:        st.DateTimeRange.Peek(),
		ValidDateTimeRange:   st.ValidDateTimeRange.Peek(),
		PlotType:             st.PlotType.Peek(),
		CanGeneratePlots:     st.CanGeneratePlots.Peek(),
		NeedsLogin:           st.NeedsLogin.Peek(),
		TimeOfDayEnabled:     st.TimeOfDayEnabled.Peek(),
		ConfiguredURL:        st.ConfiguredURL.Peek(),
		LoadingIDs:           s.deps.Loading.IDs(nil),
	}
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

// ─── Selection ────────────────────────────────────────────────────────────────

func (s *Server) handleListVariables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.State.Variables.Peek())
}

func (s *Server) handleSelectVariable(w http.ResponseWriter, r *http.Request) {
	var v model.Variable
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding variable: %w", err))
		return
	}
	if v.DataFieldID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("dataFieldId is required"))
		return
	}
	s.deps.State.SelectVariable(v)
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleDeselectVariable(w http.ResponseWriter, r *http.Request) {
	s.deps.State.DeselectVariable(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleSetSpatialArea(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	// A JSON null clears the explicit area; the derived default takes over.
	if string(body) == "null" || len(body) == 0 {
		s.deps.State.SpatialArea.Set(nil)
		writeJSON(w, http.StatusOK, s.snapshot())
		return
	}
	var area model.SpatialArea
	if err := json.Unmarshal(body, &area); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding spatial area: %w", err))
		return
	}
	s.deps.State.SpatialArea.Set(&area)
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleSetDateRange(w http.ResponseWriter, r *http.Request) {
	var rng model.DateTimeRange
	if err := json.NewDecoder(r.Body).Decode(&rng); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding date range: %w", err))
		return
	}
	// Dates arrive as plain YYYY-MM-DD; reject anything else before it
	// reaches the graph. Empty means "leave this end unset".
	for _, d := range []string{rng.StartDate, rng.EndDate} {
		if d == "" {
			continue
		}
		if _, err := util.ParseDate(d); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	s.deps.State.DateTimeRange.Set(&rng)
	// The snapshot reflects any clamping the reconciler applied.
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleSetPlotType(w http.ResponseWriter, r *http.Request) {
	var pt model.PlotType
	if err := json.NewDecoder(r.Body).Decode(&pt); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding plot type: %w", err))
		return
	}
	if pt != model.PlotTypeMap && pt != model.PlotTypePlot {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown plot type %q", pt))
		return
	}
	s.deps.State.PlotType.Set(pt)
	writeJSON(w, http.StatusOK, s.snapshot())
}

// ─── Plot Lifecycle ───────────────────────────────────────────────────────────

type beginPlotRequest struct {
	VariableID string `json:"variableId"`
}

type beginPlotResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleBeginPlot(w http.ResponseWriter, r *http.Request) {
	st := s.deps.State
	if !st.CanGeneratePlots.Peek() {
		writeError(w, http.StatusConflict, fmt.Errorf("cannot generate plots: incomplete selection"))
		return
	}

	var body beginPlotRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}

	var selected *model.Variable
	for _, v := range st.Variables.Peek() {
		if v.DataFieldID == body.VariableID {
			selected = &v
			break
		}
	}
	if selected == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("variable %q is not selected", body.VariableID))
		return
	}

	id, err := s.deps.Capture.Begin(st.CurrentRequest(*selected), st.PlotType.Peek())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, beginPlotResponse{ID: id})
}

func (s *Server) handleCompletePlot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// The body is the raw thumbnail image; empty means capture failed and
	// the entry keeps its placeholder.
	thumbnail, err := io.ReadAll(io.LimitReader(r.Body, maxThumbnailBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("reading thumbnail: %w", err))
		return
	}
	if len(thumbnail) > maxThumbnailBytes {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("thumbnail exceeds %d bytes", maxThumbnailBytes))
		return
	}

	if err := s.deps.Capture.Complete(r.Context(), id, thumbnail); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── History ──────────────────────────────────────────────────────────────────

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Store.ListForUser(s.deps.Session.CurrentUser())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if items == nil {
		items = []model.HistoryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.deps.Loading.IsLoading(nil, id) {
		// Deletion is disabled while a thumbnail capture is outstanding.
		writeError(w, http.StatusConflict, fmt.Errorf("item %s is still loading", id))
		return
	}
	if err := s.deps.Store.Delete(s.deps.Session.CurrentUser(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type patchOptionsRequest struct {
	ColorMapName string   `json:"colorMapName,omitempty"`
	Opacity      *float64 `json:"opacity,omitempty"`
}

func (s *Server) handlePatchOptions(w http.ResponseWriter, r *http.Request) {
	var body patchOptionsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding options: %w", err))
		return
	}
	if err := s.deps.Capture.UpdatePlotOptions(chi.URLParam(r, "id"), body.ColorMapName, body.Opacity); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "err", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
