// Package bounds computes validity boundaries from variable metadata: the
// date range and spatial area a plot request is allowed to cover, as the
// intersection of constraints across all selected variables.
//
// Everything here is a pure function of its inputs. Degenerate intersections
// (disjoint temporal coverage, empty spatial overlap) degrade to "no
// boundary" or the whole-globe box, never an error.
package bounds

import (
	"strings"

	"github.com/dmfenton/plotdesk/internal/model"
	"github.com/dmfenton/plotdesk/internal/util"
)

// ─── Temporal Boundaries ──────────────────────────────────────────────────────

// ValidDateRange returns the intersection of the variables' temporal
// coverage: the latest begin date and the earliest end date. An empty
// variable list yields an empty boundary. A disjoint intersection
// (min > max) also yields an empty boundary rather than a negative-length
// interval.
func ValidDateRange(variables []model.Variable) model.ValidDateTimeRange {
	if len(variables) == 0 {
		return model.ValidDateTimeRange{}
	}

	minDate := variables[0].DataProductBeginDateTime
	maxDate := variables[0].DataProductEndDateTime
	for _, v := range variables[1:] {
		if util.DateAfter(v.DataProductBeginDateTime, minDate) {
			minDate = v.DataProductBeginDateTime
		}
		if util.DateBefore(v.DataProductEndDateTime, maxDate) {
			maxDate = v.DataProductEndDateTime
		}
	}

	if minDate != "" && maxDate != "" && util.DateAfter(minDate, maxDate) {
		// Disjoint coverage: no date satisfies every variable.
		return model.ValidDateTimeRange{}
	}
	return model.ValidDateTimeRange{MinDate: minDate, MaxDate: maxDate}
}

// boundaryKind tells DateInBoundary which side of the boundary applies.
type boundaryKind int

const (
	// BoundStart clamps a date that falls before the boundary.
	BoundStart boundaryKind = iota
	// BoundEnd clamps a date that falls after the boundary.
	BoundEnd
)

// DateInBoundary returns existing moved inside the boundary if it falls
// outside. An empty boundary passes existing through unchanged (metadata
// gaps should not destroy a user's selection); an empty existing date
// defaults to the boundary itself.
func DateInBoundary(existing, boundary string, kind boundaryKind) string {
	if boundary == "" {
		return existing
	}
	if existing == "" {
		return boundary
	}
	outside := false
	switch kind {
	case BoundStart:
		outside = util.DateBefore(existing, boundary)
	case BoundEnd:
		outside = util.DateAfter(existing, boundary)
	}
	if outside {
		return boundary
	}
	return existing
}

// ClampRange clamps both bounds of a date range into the boundary
// independently: start is raised to MinDate and lowered to MaxDate, end
// symmetrically. Clamping is idempotent: a range already inside the
// boundary passes through unchanged.
func ClampRange(r model.DateTimeRange, boundary model.ValidDateTimeRange) model.DateTimeRange {
	return model.DateTimeRange{
		StartDate: DateInBoundary(DateInBoundary(r.StartDate, boundary.MinDate, BoundStart), boundary.MaxDate, BoundEnd),
		EndDate:   DateInBoundary(DateInBoundary(r.EndDate, boundary.MinDate, BoundStart), boundary.MaxDate, BoundEnd),
	}
}

// LastNAvailableDays returns the default date range covering the last n
// available days ending at maxDate, clipped forward to minDate when fewer
// than n days are available. Returns (zero, false) when maxDate is unknown.
func LastNAvailableDays(minDate, maxDate string, n int) (model.DateTimeRange, bool) {
	if maxDate == "" {
		return model.DateTimeRange{}, false
	}
	end, err := util.ParseAnyDate(maxDate)
	if err != nil {
		return model.DateTimeRange{}, false
	}
	start := end.AddDate(0, 0, -(n - 1))
	if minDate != "" {
		if min, err := util.ParseAnyDate(minDate); err == nil && start.Before(min) {
			start = min
		}
	}
	return model.DateTimeRange{
		StartDate: util.FormatDate(start),
		EndDate:   util.FormatDate(end),
	}, true
}

// ─── Spatial Boundaries ───────────────────────────────────────────────────────

// DefaultSpatialArea returns the bounding-box intersection of the variables'
// spatial coverage: the maximum west and south, the minimum east and north.
// A degenerate intersection (west >= east or south >= north) or one no
// smaller than the globe falls back to the whole-globe box.
func DefaultSpatialArea(variables []model.Variable) model.SpatialArea {
	if len(variables) == 0 {
		return model.BoxArea(model.GlobalBounds)
	}

	box := model.BoundingBox{
		West:  variables[0].West,
		South: variables[0].South,
		East:  variables[0].East,
		North: variables[0].North,
	}
	for _, v := range variables[1:] {
		box.West = max(box.West, v.West)
		box.South = max(box.South, v.South)
		box.East = min(box.East, v.East)
		box.North = min(box.North, v.North)
	}

	if box.West >= box.East || box.South >= box.North {
		return model.BoxArea(model.GlobalBounds)
	}

	area := (box.East - box.West) * (box.North - box.South)
	globalArea := (model.GlobalBounds.East - model.GlobalBounds.West) *
		(model.GlobalBounds.North - model.GlobalBounds.South)
	if area >= globalArea {
		return model.BoxArea(model.GlobalBounds)
	}
	return model.BoxArea(box)
}

// ─── Time-of-Day Mode ────────────────────────────────────────────────────────

// AnyHourly reports whether any variable carries hourly (or finer) temporal
// resolution, which switches the date pickers into time-of-day mode.
func AnyHourly(variables []model.Variable) bool {
	for _, v := range variables {
		if strings.Contains(strings.ToLower(v.TimeInterval), "hour") {
			return true
		}
	}
	return false
}
