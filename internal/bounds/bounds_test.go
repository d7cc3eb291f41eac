package bounds_test

import (
	"testing"

	"github.com/dmfenton/plotdesk/internal/bounds"
	"github.com/dmfenton/plotdesk/internal/model"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// tvar builds a variable with temporal coverage only.
func tvar(id, begin, end string) model.Variable {
	return model.Variable{
		DataFieldID:              id,
		DataProductBeginDateTime: begin,
		DataProductEndDateTime:   end,
		West:                     -180, South: -90, East: 180, North: 90,
	}
}

// svar builds a variable with spatial coverage only.
func svar(id string, west, south, east, north float64) model.Variable {
	return model.Variable{
		DataFieldID:              id,
		DataProductBeginDateTime: "2000-01-01",
		DataProductEndDateTime:   "2030-01-01",
		West:                     west, South: south, East: east, North: north,
	}
}

// ─── Valid Date Range ─────────────────────────────────────────────────────────

func TestValidDateRangeEmptyVariables(t *testing.T) {
	got := bounds.ValidDateRange(nil)
	if got.MinDate != "" || got.MaxDate != "" {
		t.Fatalf("empty variable list: got %+v, want empty boundary", got)
	}
}

func TestValidDateRangeSingleVariable(t *testing.T) {
	got := bounds.ValidDateRange([]model.Variable{tvar("a", "2020-01-01", "2020-12-31")})
	if got.MinDate != "2020-01-01" || got.MaxDate != "2020-12-31" {
		t.Fatalf("single variable: got %+v", got)
	}
}

func TestValidDateRangeIntersection(t *testing.T) {
	// Latest begin wins for min, earliest end wins for max.
	vars := []model.Variable{
		tvar("a", "2020-01-01", "2020-12-31"),
		tvar("b", "2020-06-01", "2021-06-01"),
	}
	got := bounds.ValidDateRange(vars)
	if got.MinDate != "2020-06-01" {
		t.Errorf("MinDate = %q, want 2020-06-01", got.MinDate)
	}
	if got.MaxDate != "2020-12-31" {
		t.Errorf("MaxDate = %q, want 2020-12-31", got.MaxDate)
	}
}

func TestValidDateRangeDisjointCoverage(t *testing.T) {
	// No date satisfies both: degrade to no boundary, never min > max.
	vars := []model.Variable{
		tvar("a", "2020-01-01", "2020-02-01"),
		tvar("b", "2021-01-01", "2021-02-01"),
	}
	got := bounds.ValidDateRange(vars)
	if got.MinDate != "" || got.MaxDate != "" {
		t.Fatalf("disjoint coverage: got %+v, want empty boundary", got)
	}
}

func TestValidDateRangeMixedTimestampForms(t *testing.T) {
	vars := []model.Variable{
		tvar("a", "2020-01-01T00:00:00Z", "2021-12-31T23:59:59Z"),
		tvar("b", "2020-03-15", "2021-06-01"),
	}
	got := bounds.ValidDateRange(vars)
	if got.MinDate != "2020-03-15" {
		t.Errorf("MinDate = %q, want 2020-03-15", got.MinDate)
	}
	if got.MaxDate != "2021-06-01" {
		t.Errorf("MaxDate = %q, want 2021-06-01", got.MaxDate)
	}
}

// ─── Clamping ─────────────────────────────────────────────────────────────────

func TestDateInBoundaryNoBoundaryPassesThrough(t *testing.T) {
	if got := bounds.DateInBoundary("2021-01-01", "", bounds.BoundStart); got != "2021-01-01" {
		t.Fatalf("no boundary: got %q", got)
	}
}

func TestDateInBoundaryNoExistingDefaultsToBoundary(t *testing.T) {
	if got := bounds.DateInBoundary("", "2021-05-01", bounds.BoundStart); got != "2021-05-01" {
		t.Fatalf("no existing date: got %q", got)
	}
}

func TestClampRangeBothBoundsBelowBoundary(t *testing.T) {
	// Existing range entirely before the boundary collapses onto MinDate.
	got := bounds.ClampRange(
		model.DateTimeRange{StartDate: "2021-01-01", EndDate: "2021-01-02"},
		model.ValidDateTimeRange{MinDate: "2021-05-01", MaxDate: "2021-05-30"},
	)
	if got.StartDate != "2021-05-01" || got.EndDate != "2021-05-01" {
		t.Fatalf("got %+v, want start=end=2021-05-01", got)
	}
}

func TestClampRangeInsideBoundaryUnchanged(t *testing.T) {
	r := model.DateTimeRange{StartDate: "2021-05-10", EndDate: "2021-05-20"}
	b := model.ValidDateTimeRange{MinDate: "2021-05-01", MaxDate: "2021-05-30"}
	if got := bounds.ClampRange(r, b); got != r {
		t.Fatalf("in-boundary range changed: got %+v", got)
	}
}

func TestClampRangeAboveBoundary(t *testing.T) {
	got := bounds.ClampRange(
		model.DateTimeRange{StartDate: "2022-01-01", EndDate: "2022-06-01"},
		model.ValidDateTimeRange{MinDate: "2021-05-01", MaxDate: "2021-05-30"},
	)
	if got.StartDate != "2021-05-30" || got.EndDate != "2021-05-30" {
		t.Fatalf("got %+v, want start=end=2021-05-30", got)
	}
}

func TestClampRangeIdempotent(t *testing.T) {
	b := model.ValidDateTimeRange{MinDate: "2021-05-01", MaxDate: "2021-05-30"}
	cases := []model.DateTimeRange{
		{StartDate: "2021-01-01", EndDate: "2021-01-02"},
		{StartDate: "2021-05-10", EndDate: "2021-05-20"},
		{StartDate: "2020-01-01", EndDate: "2022-01-01"},
		{StartDate: "", EndDate: "2022-01-01"},
	}
	for _, r := range cases {
		once := bounds.ClampRange(r, b)
		twice := bounds.ClampRange(once, b)
		if once != twice {
			t.Errorf("clamp not idempotent for %+v: once=%+v twice=%+v", r, once, twice)
		}
	}
}

// ─── Default Date Range ───────────────────────────────────────────────────────

func TestLastNAvailableDays(t *testing.T) {
	got, ok := bounds.LastNAvailableDays("2021-01-01", "2021-06-30", 7)
	if !ok {
		t.Fatal("expected a default range")
	}
	if got.StartDate != "2021-06-24" || got.EndDate != "2021-06-30" {
		t.Fatalf("got %+v, want 2021-06-24..2021-06-30", got)
	}
}

func TestLastNAvailableDaysClippedToMin(t *testing.T) {
	// Fewer than 7 days available: clip forward to the boundary minimum.
	got, ok := bounds.LastNAvailableDays("2021-01-03", "2021-01-04", 7)
	if !ok {
		t.Fatal("expected a default range")
	}
	if got.StartDate != "2021-01-03" || got.EndDate != "2021-01-04" {
		t.Fatalf("got %+v, want 2021-01-03..2021-01-04", got)
	}
}

func TestLastNAvailableDaysNoMaxDate(t *testing.T) {
	if _, ok := bounds.LastNAvailableDays("2021-01-01", "", 7); ok {
		t.Fatal("expected no default when max date is unknown")
	}
}

// ─── Default Spatial Area ─────────────────────────────────────────────────────

func TestDefaultSpatialAreaEmptyVariables(t *testing.T) {
	got := bounds.DefaultSpatialArea(nil)
	if !got.IsGlobal() {
		t.Fatalf("empty variable list: got %+v, want global", got)
	}
}

func TestDefaultSpatialAreaIntersection(t *testing.T) {
	vars := []model.Variable{
		svar("a", -100, -50, 100, 50),
		svar("b", -80, -60, 120, 40),
	}
	got := bounds.DefaultSpatialArea(vars)
	want := model.BoundingBox{West: -80, South: -50, East: 100, North: 40}
	if got.Type != model.AreaBoundingBox || got.Bounds != want {
		t.Fatalf("got %+v, want bounds %+v", got, want)
	}
}

func TestDefaultSpatialAreaDegenerateIntersection(t *testing.T) {
	// Disjoint in longitude: west >= east after intersecting.
	vars := []model.Variable{
		svar("a", -100, -50, -60, 50),
		svar("b", 10, -50, 100, 50),
	}
	got := bounds.DefaultSpatialArea(vars)
	if !got.IsGlobal() {
		t.Fatalf("degenerate intersection: got %+v, want global", got)
	}
}

func TestDefaultSpatialAreaGlobalCoverage(t *testing.T) {
	vars := []model.Variable{
		svar("a", -180, -90, 180, 90),
		svar("b", -180, -90, 180, 90),
	}
	got := bounds.DefaultSpatialArea(vars)
	if !got.IsGlobal() {
		t.Fatalf("global coverage: got %+v, want global", got)
	}
}

// ─── Time-of-Day Mode ─────────────────────────────────────────────────────────

func TestAnyHourly(t *testing.T) {
	daily := tvar("d", "2020-01-01", "2021-01-01")
	daily.TimeInterval = "daily"
	hourly := tvar("h", "2020-01-01", "2021-01-01")
	hourly.TimeInterval = "half-hourly"

	if bounds.AnyHourly([]model.Variable{daily}) {
		t.Error("daily-only selection should not enable time of day")
	}
	if !bounds.AnyHourly([]model.Variable{daily, hourly}) {
		t.Error("selection with an hourly variable should enable time of day")
	}
}
