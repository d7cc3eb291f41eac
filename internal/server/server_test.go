package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmfenton/plotdesk/internal/app"
	"github.com/dmfenton/plotdesk/internal/config"
	"github.com/dmfenton/plotdesk/internal/model"
	"github.com/dmfenton/plotdesk/internal/server"
)

func newTestServer(t *testing.T, user string) (*httptest.Server, *app.Deps) {
	t.Helper()
	cfg := &config.Config{
		User:     user,
		BaseURL:  "http://localhost:8585/",
		DBPath:   filepath.Join(t.TempDir(), "plotdesk.db"),
		Timeout:  5 * time.Second,
		Rate:     0,
		PlotType: "plot",
	}
	deps := app.New(cfg)
	if err := deps.RequireStore(); err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { deps.Close() })

	srv := server.New(deps)
	t.Cleanup(srv.Close)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, deps
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func selectVariable(t *testing.T, base string, v model.Variable) {
	t.Helper()
	resp := doJSON(t, http.MethodPost, base+"/api/variables/", v)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("select variable: status %d", resp.StatusCode)
	}
}

func testVariable() model.Variable {
	return model.Variable{
		DataFieldID:              "GPM_3IMERGDF_06_precipitation",
		LongName:                 "Precipitation",
		DataProductBeginDateTime: "2020-01-01",
		DataProductEndDateTime:   "2021-06-30",
		West:                     -180, South: -90, East: 180, North: 90,
	}
}

// snapshot mirrors the wire shape of GET /api/state.
type snapshot struct {
	Variables          []model.Variable         `json:"variables"`
	SpatialArea        *model.SpatialArea       `json:"spatialArea"`
	EffectiveArea      model.SpatialArea        `json:"effectiveSpatialArea"`
	DateTimeRange      *model.DateTimeRange     `json:"dateTimeRange"`
	ValidDateTimeRange model.ValidDateTimeRange `json:"validDateTimeRange"`
	PlotType           model.PlotType           `json:"plotType"`
	CanGeneratePlots   bool                     `json:"canGeneratePlots"`
	NeedsLogin         bool                     `json:"needsLogin"`
	ConfiguredURL      string                   `json:"configuredUrl"`
	LoadingIDs         []string                 `json:"loadingIds"`
}

func getState(t *testing.T, base string) snapshot {
	t.Helper()
	resp := doJSON(t, http.MethodGet, base+"/api/state", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get state: status %d", resp.StatusCode)
	}
	var s snapshot
	decode(t, resp, &s)
	return s
}

// ─── State ────────────────────────────────────────────────────────────────────

func TestGetStateEmpty(t *testing.T) {
	ts, _ := newTestServer(t, "grace")

	s := getState(t, ts.URL)
	if len(s.Variables) != 0 {
		t.Errorf("variables = %v", s.Variables)
	}
	if s.CanGeneratePlots {
		t.Error("empty selection should not be plot-ready")
	}
	if !s.EffectiveArea.IsGlobal() {
		t.Errorf("effective area = %+v, want global", s.EffectiveArea)
	}
	if s.PlotType != model.PlotTypePlot {
		t.Errorf("plot type = %q", s.PlotType)
	}
}

func TestSelectVariableDerivesState(t *testing.T) {
	ts, _ := newTestServer(t, "grace")
	selectVariable(t, ts.URL, testVariable())

	s := getState(t, ts.URL)
	if len(s.Variables) != 1 {
		t.Fatalf("variables = %v", s.Variables)
	}
	if s.ValidDateTimeRange.MinDate != "2020-01-01" || s.ValidDateTimeRange.MaxDate != "2021-06-30" {
		t.Errorf("boundary = %+v", s.ValidDateTimeRange)
	}
	// The default date range filled in, so the selection is plot-ready.
	if s.DateTimeRange == nil || !s.CanGeneratePlots {
		t.Errorf("range = %+v ready = %v", s.DateTimeRange, s.CanGeneratePlots)
	}
	if !strings.Contains(s.ConfiguredURL, "variable=GPM_3IMERGDF_06_precipitation") {
		t.Errorf("configured url = %q", s.ConfiguredURL)
	}
}

func TestSelectVariableRequiresID(t *testing.T) {
	ts, _ := newTestServer(t, "grace")
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/variables/", model.Variable{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDeselectVariable(t *testing.T) {
	ts, _ := newTestServer(t, "grace")
	v := testVariable()
	selectVariable(t, ts.URL, v)

	resp := doJSON(t, http.MethodDelete, ts.URL+"/api/variables/"+v.DataFieldID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if s := getState(t, ts.URL); len(s.Variables) != 0 || s.CanGeneratePlots {
		t.Errorf("state after deselect = %+v", s)
	}
}

// ─── Spatial Area and Date Range ─────────────────────────────────────────────

func TestSetSpatialAreaAndClear(t *testing.T) {
	ts, _ := newTestServer(t, "grace")

	area := model.PointArea(38.9, -77)
	resp := doJSON(t, http.MethodPut, ts.URL+"/api/spatial-area", area)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set area: status %d", resp.StatusCode)
	}
	s := getState(t, ts.URL)
	if s.SpatialArea == nil || s.SpatialArea.Type != model.AreaCoordinates {
		t.Fatalf("spatial area = %+v", s.SpatialArea)
	}

	// JSON null clears the explicit area; the derived default takes over.
	resp = doJSON(t, http.MethodPut, ts.URL+"/api/spatial-area", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear area: status %d", resp.StatusCode)
	}
	s = getState(t, ts.URL)
	if s.SpatialArea != nil {
		t.Fatalf("cleared area = %+v", s.SpatialArea)
	}
	if !s.EffectiveArea.IsGlobal() {
		t.Errorf("effective area = %+v", s.EffectiveArea)
	}
}

func TestSetDateRangeReflectsClamping(t *testing.T) {
	ts, _ := newTestServer(t, "grace")
	selectVariable(t, ts.URL, testVariable())

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/date-range",
		model.DateTimeRange{StartDate: "2019-01-01", EndDate: "2019-02-01"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var s snapshot
	decode(t, resp, &s)
	// Both bounds fell before the boundary, so they clamp to its minimum.
	if s.DateTimeRange == nil || s.DateTimeRange.StartDate != "2020-01-01" || s.DateTimeRange.EndDate != "2020-01-01" {
		t.Fatalf("range = %+v", s.DateTimeRange)
	}
}

func TestSetDateRangeRejectsMalformedDates(t *testing.T) {
	ts, deps := newTestServer(t, "grace")

	for _, bad := range []model.DateTimeRange{
		{StartDate: "01/02/2020", EndDate: "2020-03-01"},
		{StartDate: "2020-01-01", EndDate: "2020-13-40"},
		{StartDate: "2020-01-01T00:00:00Z", EndDate: "2020-03-01"},
	} {
		resp := doJSON(t, http.MethodPut, ts.URL+"/api/date-range", bad)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("range %+v: status = %d, want 400", bad, resp.StatusCode)
		}
	}
	if r := deps.State.DateTimeRange.Peek(); r != nil {
		t.Fatalf("rejected writes reached the graph: %+v", r)
	}
}

func TestSetPlotTypeRejectsUnknown(t *testing.T) {
	ts, _ := newTestServer(t, "grace")
	resp := doJSON(t, http.MethodPut, ts.URL+"/api/plot-type", "hologram")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPut, ts.URL+"/api/plot-type", "map")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

// ─── Plot Lifecycle ───────────────────────────────────────────────────────────

func beginPlot(t *testing.T, base, variableID string) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, base+"/api/plots/", map[string]string{"variableId": variableID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("begin plot: status %d", resp.StatusCode)
	}
	var out struct {
		ID string `json:"id"`
	}
	decode(t, resp, &out)
	return out.ID
}

func TestBeginPlotRejectedWhenNotReady(t *testing.T) {
	ts, _ := newTestServer(t, "grace")
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/plots/", map[string]string{"variableId": "x"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestBeginPlotUnknownVariable(t *testing.T) {
	ts, _ := newTestServer(t, "grace")
	selectVariable(t, ts.URL, testVariable())
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/plots/", map[string]string{"variableId": "unselected"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestPlotLifecycle(t *testing.T) {
	ts, _ := newTestServer(t, "grace")
	v := testVariable()
	selectVariable(t, ts.URL, v)

	id := beginPlot(t, ts.URL, v.DataFieldID)
	if id == "" {
		t.Fatal("expected a plot id")
	}

	s := getState(t, ts.URL)
	if len(s.LoadingIDs) != 1 || s.LoadingIDs[0] != id {
		t.Fatalf("loading ids = %v", s.LoadingIDs)
	}

	// History shows the placeholder immediately.
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/history/", nil)
	var items []model.HistoryItem
	decode(t, resp, &items)
	if len(items) != 1 || items[0].ID != id {
		t.Fatalf("history = %+v", items)
	}
	if items[0].Request.Thumbnail != nil {
		t.Error("placeholder should have no thumbnail")
	}

	// Complete with a thumbnail body.
	req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/api/plots/%s/complete", ts.URL, id),
		strings.NewReader("png-bytes"))
	cresp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	cresp.Body.Close()
	if cresp.StatusCode != http.StatusNoContent {
		t.Fatalf("complete: status %d", cresp.StatusCode)
	}

	if s := getState(t, ts.URL); len(s.LoadingIDs) != 0 {
		t.Fatalf("loading ids after complete = %v", s.LoadingIDs)
	}
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/history/", nil)
	decode(t, resp, &items)
	if string(items[0].Request.Thumbnail) != "png-bytes" {
		t.Fatalf("thumbnail = %q", items[0].Request.Thumbnail)
	}
}

// ─── History ──────────────────────────────────────────────────────────────────

func TestDeleteHistoryBlockedWhileLoading(t *testing.T) {
	ts, deps := newTestServer(t, "grace")
	v := testVariable()
	selectVariable(t, ts.URL, v)
	id := beginPlot(t, ts.URL, v.DataFieldID)

	resp := doJSON(t, http.MethodDelete, ts.URL+"/api/history/"+id, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("delete while loading: status %d, want 409", resp.StatusCode)
	}

	deps.Loading.Clear(id)
	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/history/"+id, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete after clear: status %d", resp.StatusCode)
	}

	var items []model.HistoryItem
	decode(t, doJSON(t, http.MethodGet, ts.URL+"/api/history/", nil), &items)
	if len(items) != 0 {
		t.Fatalf("history after delete = %+v", items)
	}
}

func TestPatchHistoryOptions(t *testing.T) {
	ts, deps := newTestServer(t, "grace")
	v := testVariable()
	selectVariable(t, ts.URL, v)
	id := beginPlot(t, ts.URL, v.DataFieldID)

	opacity := 0.4
	resp := doJSON(t, http.MethodPatch, ts.URL+"/api/history/"+id+"/options",
		map[string]interface{}{"colorMapName": "viridis", "opacity": opacity})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("patch: status %d", resp.StatusCode)
	}

	item, ok, err := deps.Store.Get("grace", id)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if item.Request.ColorMapName != "viridis" || item.Request.Opacity == nil || *item.Request.Opacity != 0.4 {
		t.Fatalf("options = %q/%v", item.Request.ColorMapName, item.Request.Opacity)
	}
}

func TestHistoryEmptyForAnonymous(t *testing.T) {
	ts, _ := newTestServer(t, "")
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/history/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var items []model.HistoryItem
	decode(t, resp, &items)
	if len(items) != 0 {
		t.Fatalf("anonymous history = %+v", items)
	}
}
