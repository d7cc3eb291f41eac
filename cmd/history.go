package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmfenton/plotdesk/internal/model"
	"github.com/dmfenton/plotdesk/internal/render"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and manage the plot request history",
	Long: `History records every plot a user generated: the variable, spatial
area, date range, plot type, and (once rendering finished) a thumbnail.

  plotdesk history list --user u1
  plotdesk history show <ID> --user u1
  plotdesk history delete <ID> --user u1`,
}

// ─── history list ─────────────────────────────────────────────────────────────

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List history entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		items, err := deps.Store.ListForUser(deps.Config.User)
		if err != nil {
			return err
		}

		result := &model.Result{
			Kind:        model.KindHistoryList,
			GeneratedAt: time.Now(),
			Command:     "history list",
			Data:        items,
			Stats: model.ResultStats{
				DurationMs: time.Since(start).Milliseconds(),
				Items:      len(items),
			},
		}
		if deps.Config.User == "" {
			result.Warnings = append(result.Warnings,
				"no user configured; history is per-user (set --user or PLOTDESK_USER)")
		}

		if err := render.RenderTo(globalFlags.Out, result, resolveFormat(deps.Config.Format)); err != nil {
			return err
		}
		if !deps.Config.Quiet {
			render.PrintFooter(os.Stderr, result, deps.Config.Verbose)
		}
		return nil
	},
}

// ─── history show ─────────────────────────────────────────────────────────────

var historyShowCmd = &cobra.Command{
	Use:   "show <ID>",
	Short: "Show a single history entry in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		item, ok, err := deps.Store.Get(deps.Config.User, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("history item %s not found for user %q", args[0], deps.Config.User)
		}

		result := &model.Result{
			Kind:        model.KindHistoryItem,
			GeneratedAt: time.Now(),
			Command:     "history show",
			Data:        &item,
			Stats:       model.ResultStats{Items: 1},
		}
		return render.RenderTo(globalFlags.Out, result, resolveFormat(deps.Config.Format))
	},
}

// ─── history delete ───────────────────────────────────────────────────────────

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <ID>",
	Short: "Delete a history entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		if err := deps.RequireStore(); err != nil {
			return err
		}
		defer deps.Close()

		if deps.Config.User == "" {
			return fmt.Errorf("history is per-user: set --user or PLOTDESK_USER")
		}
		if err := deps.Store.Delete(deps.Config.User, args[0]); err != nil {
			return err
		}
		if !deps.Config.Quiet {
			fmt.Printf("✓ Deleted %s\n", args[0])
		}
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}
