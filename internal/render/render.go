// Package render converts Result values into human-readable or machine-parseable
// output. Each format is a separate function; the top-level Render dispatcher
// selects based on the format string.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dmfenton/plotdesk/internal/model"
	"github.com/olekukonko/tablewriter"
)

// Format constants matching --format flag values.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTSV   = "tsv"
	FormatMD    = "md"
)

// Render writes result to w in the specified format.
func Render(w io.Writer, result *model.Result, format string) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, result)
	case FormatJSONL:
		return renderJSONL(w, result)
	case FormatCSV:
		return renderDelimited(w, result, ',')
	case FormatTSV:
		return renderDelimited(w, result, '\t')
	case FormatMD:
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

// RenderTo writes to stdout by default; if path is non-empty, writes to file.
func RenderTo(path string, result *model.Result, format string) error {
	if path == "" {
		return Render(os.Stdout, result, format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return Render(f, result, format)
}

// ─── JSON ─────────────────────────────────────────────────────────────────────

func renderJSON(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// ─── JSONL ────────────────────────────────────────────────────────────────────

func renderJSONL(w io.Writer, result *model.Result) error {
	enc := json.NewEncoder(w)
	switch result.Kind {
	case model.KindHistoryList:
		items, ok := result.Data.([]model.HistoryItem)
		if !ok {
			return enc.Encode(result.Data)
		}
		for _, item := range items {
			if err := enc.Encode(item); err != nil {
				return err
			}
		}
		return nil
	default:
		return enc.Encode(result.Data)
	}
}

// ─── Table ────────────────────────────────────────────────────────────────────

func renderTable(w io.Writer, result *model.Result) error {
	switch result.Kind {
	case model.KindHistoryList:
		items, ok := result.Data.([]model.HistoryItem)
		if !ok {
			return fmt.Errorf("unexpected data type for history_list")
		}
		return renderHistoryListTable(w, items)
	case model.KindHistoryItem:
		item, ok := result.Data.(*model.HistoryItem)
		if !ok {
			return fmt.Errorf("unexpected data type for history_item")
		}
		return renderHistoryItemTable(w, item)
	case model.KindVariable:
		if vars, ok := result.Data.([]model.Variable); ok {
			return renderVariableSliceTable(w, vars)
		}
		v, ok := result.Data.(*model.Variable)
		if !ok {
			return fmt.Errorf("unexpected data type for variable")
		}
		return renderVariableTable(w, v)
	case model.KindState, model.KindReport:
		rep, ok := result.Data.(*model.Report)
		if !ok {
			return fmt.Errorf("unexpected data type for %s", result.Kind)
		}
		return renderReportTable(w, rep)
	default:
		// Fallback: JSON
		return renderJSON(w, result)
	}
}

func renderReportTable(w io.Writer, rep *model.Report) error {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"FIELD", "VALUE"})
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetColWidth(80)
	tw.SetAutoWrapText(true)

	for _, r := range rep.Rows {
		tw.Append([]string{r.Name, r.Value})
	}
	tw.Render()
	return nil
}

func renderHistoryListTable(w io.Writer, items []model.HistoryItem) error {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"ID", "VARIABLE", "AREA", "START", "END", "TYPE", "CREATED", "THUMB"})
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	tw.SetColWidth(40)

	for _, item := range items {
		thumb := "-"
		if len(item.Request.Thumbnail) > 0 {
			thumb = fmt.Sprintf("%dB", len(item.Request.Thumbnail))
		}
		tw.Append([]string{
			truncate(item.ID, 28),
			truncate(item.Request.Variable.DataFieldID, 36),
			DescribeArea(item.Request.SpatialArea),
			item.Request.DateTimeRange.StartDate,
			item.Request.DateTimeRange.EndDate,
			string(item.PlotType),
			item.CreatedAt,
			thumb,
		})
	}
	tw.Render()
	return nil
}

func renderHistoryItemTable(w io.Writer, item *model.HistoryItem) error {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"FIELD", "VALUE"})
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetColWidth(80)
	tw.SetAutoWrapText(true)

	rows := [][]string{
		{"ID", item.ID},
		{"Variable", item.Request.Variable.DataFieldID},
		{"Variable Name", item.Request.Variable.LongName},
		{"Area", DescribeArea(item.Request.SpatialArea)},
		{"Start", item.Request.DateTimeRange.StartDate},
		{"End", item.Request.DateTimeRange.EndDate},
		{"Plot Type", string(item.PlotType)},
		{"Created", item.CreatedAt},
	}
	if item.Request.ColorMapName != "" {
		rows = append(rows, []string{"Color Map", item.Request.ColorMapName})
	}
	if item.Request.Opacity != nil {
		rows = append(rows, []string{"Opacity", fmt.Sprintf("%g", *item.Request.Opacity)})
	}
	if len(item.Request.Thumbnail) > 0 {
		rows = append(rows, []string{"Thumbnail", fmt.Sprintf("%d bytes", len(item.Request.Thumbnail))})
	}
	for _, r := range rows {
		tw.Append(r)
	}
	tw.Render()
	return nil
}

func renderVariableTable(w io.Writer, v *model.Variable) error {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"FIELD", "VALUE"})
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetColWidth(80)
	tw.SetAutoWrapText(true)

	rows := [][]string{
		{"ID", v.DataFieldID},
		{"Long Name", v.LongName},
		{"Short Name", v.ShortName},
		{"Interval", v.TimeInterval},
		{"Begin", v.DataProductBeginDateTime},
		{"End", v.DataProductEndDateTime},
		{"Bounds", fmt.Sprintf("%g,%g,%g,%g", v.West, v.South, v.East, v.North)},
	}
	if v.Units != "" {
		rows = append(rows, []string{"Units", v.Units})
	}
	for _, r := range rows {
		tw.Append(r)
	}
	tw.Render()
	return nil
}

func renderVariableSliceTable(w io.Writer, vars []model.Variable) error {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"ID", "NAME", "INTERVAL", "BEGIN", "END"})
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAutoWrapText(false)
	tw.SetColWidth(40)

	for _, v := range vars {
		tw.Append([]string{
			truncate(v.DataFieldID, 36),
			truncate(v.LongName, 50),
			v.TimeInterval,
			v.DataProductBeginDateTime,
			v.DataProductEndDateTime,
		})
	}
	tw.Render()
	return nil
}

// ─── CSV / TSV ────────────────────────────────────────────────────────────────

func renderDelimited(w io.Writer, result *model.Result, sep rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = sep

	switch result.Kind {
	case model.KindHistoryList:
		items, ok := result.Data.([]model.HistoryItem)
		if !ok {
			return fmt.Errorf("unexpected data type for history_list")
		}
		_ = cw.Write([]string{"id", "variable", "area", "start_date", "end_date", "plot_type", "created_at"})
		for _, item := range items {
			_ = cw.Write([]string{
				item.ID,
				item.Request.Variable.DataFieldID,
				DescribeArea(item.Request.SpatialArea),
				item.Request.DateTimeRange.StartDate,
				item.Request.DateTimeRange.EndDate,
				string(item.PlotType),
				item.CreatedAt,
			})
		}
	case model.KindVariable:
		if vars, ok := result.Data.([]model.Variable); ok {
			_ = cw.Write([]string{"id", "long_name", "interval", "begin", "end", "west", "south", "east", "north"})
			for _, v := range vars {
				_ = cw.Write([]string{
					v.DataFieldID, v.LongName, v.TimeInterval,
					v.DataProductBeginDateTime, v.DataProductEndDateTime,
					fmt.Sprintf("%g", v.West), fmt.Sprintf("%g", v.South),
					fmt.Sprintf("%g", v.East), fmt.Sprintf("%g", v.North),
				})
			}
		}
	case model.KindState, model.KindReport:
		if rep, ok := result.Data.(*model.Report); ok {
			_ = cw.Write([]string{"name", "value"})
			for _, r := range rep.Rows {
				_ = cw.Write([]string{r.Name, r.Value})
			}
		}
	default:
		// Fallback: serialize as JSON on a single line
		b, _ := json.Marshal(result.Data)
		_ = cw.Write([]string{string(b)})
	}

	cw.Flush()
	return cw.Error()
}

// ─── Markdown ─────────────────────────────────────────────────────────────────

func renderMarkdown(w io.Writer, result *model.Result) error {
	switch result.Kind {
	case model.KindHistoryList:
		items, ok := result.Data.([]model.HistoryItem)
		if !ok {
			return renderJSON(w, result)
		}
		fmt.Fprintf(w, "| ID | VARIABLE | AREA | START | END | TYPE | CREATED |\n|----|----|----|----|----|----|----|\n")
		for _, item := range items {
			fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s | %s |\n",
				mdEscape(truncate(item.ID, 28)),
				mdEscape(item.Request.Variable.DataFieldID),
				mdEscape(DescribeArea(item.Request.SpatialArea)),
				item.Request.DateTimeRange.StartDate,
				item.Request.DateTimeRange.EndDate,
				item.PlotType,
				item.CreatedAt,
			)
		}
		return nil
	default:
		return renderJSON(w, result)
	}
}

// ─── Warnings / Stats Footer ─────────────────────────────────────────────────

// PrintFooter writes warnings and stats to w when verbose mode is on.
func PrintFooter(w io.Writer, result *model.Result, verbose bool) {
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "⚠  %s\n", warn)
	}
	if verbose {
		fmt.Fprintf(w, "\n[%s • %d items • %dms]\n",
			result.GeneratedAt.Format(time.RFC3339),
			result.Stats.Items,
			result.Stats.DurationMs,
		)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// DescribeArea renders a spatial area as a short single-line label.
func DescribeArea(a model.SpatialArea) string {
	switch a.Type {
	case model.AreaGlobal:
		return "global"
	case model.AreaCoordinates:
		return fmt.Sprintf("%g,%g", a.Point.Lat, a.Point.Lng)
	case model.AreaBoundingBox:
		if a.IsGlobal() {
			return "global"
		}
		b := a.Bounds
		return fmt.Sprintf("%g,%g,%g,%g", b.West, b.South, b.East, b.North)
	default:
		return string(a.Type)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
