package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmfenton/plotdesk/internal/model"
	"github.com/dmfenton/plotdesk/internal/render"
)

var stateCmd = &cobra.Command{
	Use:   "state [ID]...",
	Short: "Show the resolved selection state",
	Long: `Resolve the selection state the UI would derive for the given variables:
the validity boundary, the defaulted and clamped date range, the effective
spatial area, plot readiness, and the shareable URL. With no arguments the
command shows the empty-selection state for the configured user.

  plotdesk state
  plotdesk state AIRX3STD_006_Temperature_A GPM_3IMERGDF_07_precipitation`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), deps.Config.Timeout)
		defer cancel()

		for _, id := range args {
			v, err := deps.Catalog.GetVariable(ctx, id)
			if err != nil {
				return err
			}
			deps.State.SelectVariable(*v)
		}

		st := deps.State
		vars := st.Variables.Peek()
		ids := make([]string, len(vars))
		for i, v := range vars {
			ids[i] = v.DataFieldID
		}

		boundary := st.ValidDateTimeRange.Peek()
		boundaryLabel := "none"
		if boundary.MinDate != "" || boundary.MaxDate != "" {
			boundaryLabel = fmt.Sprintf("%s .. %s", boundary.MinDate, boundary.MaxDate)
		}
		rangeLabel := "unset"
		if r := st.DateTimeRange.Peek(); r != nil {
			rangeLabel = fmt.Sprintf("%s .. %s", r.StartDate, r.EndDate)
		}

		result := &model.Result{
			Kind:        model.KindState,
			GeneratedAt: time.Now(),
			Command:     "state",
			Data: &model.Report{Rows: []model.ReportRow{
				{Name: "User", Value: deps.Config.User},
				{Name: "Needs Login", Value: strconv.FormatBool(st.NeedsLogin.Peek())},
				{Name: "Plot Type", Value: string(st.PlotType.Peek())},
				{Name: "Variables", Value: strings.Join(ids, ", ")},
				{Name: "Valid Date Range", Value: boundaryLabel},
				{Name: "Date Range", Value: rangeLabel},
				{Name: "Effective Area", Value: render.DescribeArea(st.EffectiveSpatialArea.Peek())},
				{Name: "Time Of Day", Value: strconv.FormatBool(st.TimeOfDayEnabled.Peek())},
				{Name: "Can Generate Plots", Value: strconv.FormatBool(st.CanGeneratePlots.Peek())},
				{Name: "Share URL", Value: st.ConfiguredURL.Peek()},
			}},
			Stats: model.ResultStats{Items: len(vars)},
		}
		return render.RenderTo(globalFlags.Out, result, resolveFormat(deps.Config.Format))
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
}
