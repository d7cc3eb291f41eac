package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmfenton/plotdesk/internal/bounds"
	"github.com/dmfenton/plotdesk/internal/model"
	"github.com/dmfenton/plotdesk/internal/render"
	"github.com/dmfenton/plotdesk/internal/util"
)

var variableCmd = &cobra.Command{
	Use:   "variable",
	Short: "Look up scientific variables in the catalog",
	Long: `Query the variable catalog for data fields and their validity bounds.

  plotdesk variable get AIRX3STD_006_Temperature_A
  plotdesk variable search "precipitation"
  plotdesk variable bounds ID1 ID2    # intersection of validity bounds`,
}

// ─── variable get ─────────────────────────────────────────────────────────────

var variableGetCmd = &cobra.Command{
	Use:   "get <ID>",
	Short: "Fetch metadata for a variable by data field id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), deps.Config.Timeout)
		defer cancel()

		v, err := deps.Catalog.GetVariable(ctx, args[0])
		if err != nil {
			return err
		}

		result := &model.Result{
			Kind:        model.KindVariable,
			GeneratedAt: time.Now(),
			Command:     "variable get",
			Data:        v,
			Stats:       model.ResultStats{Items: 1},
		}
		return render.RenderTo(globalFlags.Out, result, resolveFormat(deps.Config.Format))
	},
}

// ─── variable search ──────────────────────────────────────────────────────────

var variableSearchLimit int

var variableSearchCmd = &cobra.Command{
	Use:   "search <QUERY>",
	Short: "Search the catalog by free text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), deps.Config.Timeout)
		defer cancel()

		start := time.Now()
		vars, err := deps.Catalog.SearchVariables(ctx, args[0], variableSearchLimit)
		if err != nil {
			return err
		}

		result := &model.Result{
			Kind:        model.KindVariable,
			GeneratedAt: time.Now(),
			Command:     "variable search",
			Data:        vars,
			Stats: model.ResultStats{
				DurationMs: time.Since(start).Milliseconds(),
				Items:      len(vars),
			},
		}
		return render.RenderTo(globalFlags.Out, result, resolveFormat(deps.Config.Format))
	},
}

// ─── variable bounds ──────────────────────────────────────────────────────────

var variableBoundsCmd = &cobra.Command{
	Use:   "bounds <ID>...",
	Short: "Show the combined validity bounds of a set of variables",
	Long: `Fetch each variable and print the intersection of their temporal and
spatial coverage, the same boundary the UI clamps selections into.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), deps.Config.Timeout)
		defer cancel()

		// Collect what resolves; a partial selection still has bounds.
		var vars []model.Variable
		var errs util.MultiError
		for _, id := range args {
			v, err := deps.Catalog.GetVariable(ctx, id)
			if err != nil {
				errs.Add(fmt.Errorf("%s: %w", id, err))
				continue
			}
			vars = append(vars, *v)
		}
		if len(vars) == 0 {
			return errs.Err()
		}

		dateRange := bounds.ValidDateRange(vars)
		area := bounds.DefaultSpatialArea(vars)

		rangeLabel := "none (disjoint temporal coverage)"
		if dateRange.MinDate != "" || dateRange.MaxDate != "" {
			rangeLabel = fmt.Sprintf("%s .. %s", dateRange.MinDate, dateRange.MaxDate)
		}
		timeOfDay := "disabled"
		if bounds.AnyHourly(vars) {
			timeOfDay = "enabled (hourly variable selected)"
		}

		result := &model.Result{
			Kind:        model.KindReport,
			GeneratedAt: time.Now(),
			Command:     "variable bounds",
			Data: &model.Report{Rows: []model.ReportRow{
				{Name: "Valid Date Range", Value: rangeLabel},
				{Name: "Default Area", Value: render.DescribeArea(area)},
				{Name: "Time Of Day", Value: timeOfDay},
			}},
			Stats: model.ResultStats{Items: len(vars)},
		}
		if err := errs.Err(); err != nil {
			result.Warnings = append(result.Warnings, err.Error())
		}
		return render.RenderTo(globalFlags.Out, result, resolveFormat(deps.Config.Format))
	},
}

func init() {
	variableSearchCmd.Flags().IntVar(&variableSearchLimit, "limit", 25,
		"maximum number of search results")

	variableCmd.AddCommand(variableGetCmd)
	variableCmd.AddCommand(variableSearchCmd)
	variableCmd.AddCommand(variableBoundsCmd)
	rootCmd.AddCommand(variableCmd)
}
