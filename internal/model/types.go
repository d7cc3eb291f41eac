// Package model defines the canonical data types used throughout plotdesk.
// These types are the single source of truth for variable metadata, spatial
// areas, date ranges, plot requests, and the result envelope that every
// command returns.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ─── Variables ────────────────────────────────────────────────────────────────

// Variable holds metadata for a single scientific data field. Variables are
// immutable once selected; constraints on the user's date range and spatial
// area are derived from the data-product bounds carried here.
type Variable struct {
	DataFieldID              string    `json:"dataFieldId"`
	LongName                 string    `json:"dataFieldLongName"`
	ShortName                string    `json:"dataFieldShortName"`
	TimeInterval             string    `json:"dataProductTimeInterval"` // e.g. "hourly", "daily"
	DataProductBeginDateTime string    `json:"dataProductBeginDateTime"`
	DataProductEndDateTime   string    `json:"dataProductEndDateTime"`
	West                     float64   `json:"dataProductWest"`
	South                    float64   `json:"dataProductSouth"`
	East                     float64   `json:"dataProductEast"`
	North                    float64   `json:"dataProductNorth"`
	Units                    string    `json:"dataFieldUnits,omitempty"`
	FetchedAt                time.Time `json:"fetched_at,omitempty"`
}

// ─── Spatial Areas ────────────────────────────────────────────────────────────

// SpatialAreaType discriminates the SpatialArea tagged union.
type SpatialAreaType string

const (
	AreaGlobal      SpatialAreaType = "global"
	AreaCoordinates SpatialAreaType = "coordinates"
	AreaBoundingBox SpatialAreaType = "bounding_box"
)

// LatLng is a single point of interest.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BoundingBox is a rectangular area in degrees.
type BoundingBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// GlobalBounds is the whole-globe bounding box.
var GlobalBounds = BoundingBox{West: -180, South: -90, East: 180, North: 90}

// SpatialArea is a tagged union: global (no payload), a point, or a box.
// The zero value is not valid; use one of the constructors. A nil
// *SpatialArea means "unset, derive a default from the selected variables".
type SpatialArea struct {
	Type   SpatialAreaType
	Point  LatLng      // valid when Type == AreaCoordinates
	Bounds BoundingBox // valid when Type == AreaBoundingBox
}

// GlobalArea returns the global spatial area.
func GlobalArea() SpatialArea {
	return SpatialArea{Type: AreaGlobal}
}

// PointArea returns a coordinates spatial area.
func PointArea(lat, lng float64) SpatialArea {
	return SpatialArea{Type: AreaCoordinates, Point: LatLng{Lat: lat, Lng: lng}}
}

// BoxArea returns a bounding-box spatial area.
func BoxArea(b BoundingBox) SpatialArea {
	return SpatialArea{Type: AreaBoundingBox, Bounds: b}
}

// spatialAreaJSON is the wire shape of a SpatialArea. The value field is
// absent for global areas, a LatLng for coordinates, a BoundingBox for boxes.
type spatialAreaJSON struct {
	Type  SpatialAreaType `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes the tagged union with a type discriminator.
func (a SpatialArea) MarshalJSON() ([]byte, error) {
	out := spatialAreaJSON{Type: a.Type}
	switch a.Type {
	case AreaGlobal:
	case AreaCoordinates:
		v, err := json.Marshal(a.Point)
		if err != nil {
			return nil, err
		}
		out.Value = v
	case AreaBoundingBox:
		v, err := json.Marshal(a.Bounds)
		if err != nil {
			return nil, err
		}
		out.Value = v
	default:
		return nil, fmt.Errorf("unknown spatial area type %q", a.Type)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the tagged union.
func (a *SpatialArea) UnmarshalJSON(data []byte) error {
	var raw spatialAreaJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case AreaGlobal:
		*a = SpatialArea{Type: AreaGlobal}
	case AreaCoordinates:
		var p LatLng
		if err := json.Unmarshal(raw.Value, &p); err != nil {
			return fmt.Errorf("coordinates payload: %w", err)
		}
		*a = SpatialArea{Type: AreaCoordinates, Point: p}
	case AreaBoundingBox:
		var b BoundingBox
		if err := json.Unmarshal(raw.Value, &b); err != nil {
			return fmt.Errorf("bounding box payload: %w", err)
		}
		*a = SpatialArea{Type: AreaBoundingBox, Bounds: b}
	default:
		return fmt.Errorf("unknown spatial area type %q", raw.Type)
	}
	return nil
}

// IsGlobal reports whether the area covers the whole globe, either as the
// explicit global type or as a bounding box equal to GlobalBounds.
func (a SpatialArea) IsGlobal() bool {
	if a.Type == AreaGlobal {
		return true
	}
	return a.Type == AreaBoundingBox && a.Bounds == GlobalBounds
}

// ─── Date Ranges ──────────────────────────────────────────────────────────────

// DateTimeRange is the user's selected range. Either bound may be empty,
// meaning "incomplete"; incomplete ranges gate plot generation.
type DateTimeRange struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// Complete reports whether both bounds are set.
func (r DateTimeRange) Complete() bool {
	return r.StartDate != "" && r.EndDate != ""
}

// ValidDateTimeRange is the derived boundary: the intersection of the
// selected variables' temporal coverage. Empty strings mean "no boundary"
// (no variables selected, or disjoint coverage).
type ValidDateTimeRange struct {
	MinDate string `json:"minDate,omitempty"`
	MaxDate string `json:"maxDate,omitempty"`
}

// ─── Plot Requests ────────────────────────────────────────────────────────────

// PlotType identifies the kind of plot a request produced.
type PlotType string

const (
	PlotTypeMap  PlotType = "map"
	PlotTypePlot PlotType = "plot"
)

// TimeSeriesRequest is the unit of "a plot configuration": what the user
// asked to plot. Thumbnail and plot options are attached after rendering.
type TimeSeriesRequest struct {
	Variable      Variable      `json:"variable"`
	SpatialArea   SpatialArea   `json:"spatialArea"`
	DateTimeRange DateTimeRange `json:"dateTimeRange"`
	Thumbnail     []byte        `json:"thumbnail,omitempty"`
	ColorMapName  string        `json:"colorMapName,omitempty"`
	Opacity       *float64      `json:"opacity,omitempty"`
}

// HistoryItem is one entry in a user's plot history. ID is a fingerprint
// minted at generation time (see the history package); CreatedAt is an
// ISO-8601 timestamp, so lexicographic order is chronological order.
type HistoryItem struct {
	ID        string            `json:"id"`
	Request   TimeSeriesRequest `json:"request"`
	CreatedAt string            `json:"createdAt"`
	PlotType  PlotType          `json:"plotType"`
}

// ─── Users ────────────────────────────────────────────────────────────────────

// UserState holds the identity layer's view of the current session.
// Checked is false until the auth backend has confirmed or rejected the
// session token; UserID is empty for anonymous sessions.
type UserState struct {
	Checked bool   `json:"userChecked"`
	UserID  string `json:"userId,omitempty"`
}

// ─── Result Envelope ─────────────────────────────────────────────────────────

// ResultStats carries performance metadata for a command result.
type ResultStats struct {
	DurationMs int64 `json:"duration_ms"`
	Items      int   `json:"items"`
}

// Result is the uniform envelope returned by every command.
// The Data field holds the typed payload; Kind identifies what is in it.
// Renderers switch on Kind to format output appropriately.
type Result struct {
	Kind        string      `json:"kind"`
	GeneratedAt time.Time   `json:"generated_at"`
	Command     string      `json:"command"`
	Data        interface{} `json:"data"`
	Warnings    []string    `json:"warnings,omitempty"`
	Stats       ResultStats `json:"stats"`
}

// Kind constants for Result.Kind.
const (
	KindHistoryList = "history_list"
	KindHistoryItem = "history_item"
	KindVariable    = "variable"
	KindState       = "state"
	KindReport      = "report"
)

// Report is a generic field/value payload for commands that summarize
// derived state rather than return a stored entity. Used with KindState
// and KindReport.
type Report struct {
	Rows []ReportRow `json:"rows"`
}

// ReportRow is one line of a report.
type ReportRow struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}
