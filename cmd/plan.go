package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"blinklift/internal/plan"
	"blinklift/internal/source"
	"blinklift/internal/ui"
)

var planShowAll bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Discover source tables and build the migration plan",
	Long: "Scans the source catalog, classifies every user table into a business\n" +
		"domain, scores it for migration priority, and writes the plan CSV.",
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	reader := source.NewReader(cfg.Source, time.Duration(cfg.Migration.TimeoutSeconds)*time.Second)

	spinner := ui.NewSpinner("Connecting to source database")
	spinner.Start()
	if err := reader.Connect(ctx); err != nil {
		spinner.Stop(false, "Source connection failed")
		return err
	}
	defer reader.Close()
	spinner.UpdateMessage("Discovering source tables")

	planner := plan.NewPlanner(cfg.Migration.PlanPath)
	entries, err := planner.Build(ctx, reader)
	if err != nil {
		spinner.Stop(false, "Plan build failed")
		return err
	}
	spinner.Stop(true, fmt.Sprintf("Planned %d tables", len(entries)))

	printDomainSummary(entries)
	printTopEntries(entries)

	ui.ShowSuccess("Plan written to " + planner.Path())
	return nil
}

func printDomainSummary(entries []plan.Entry) {
	ui.ShowHeader("Migration Plan by Domain")

	table := ui.NewTable("Domain", "Tables", "Total Rows", "Avg Priority")
	for _, s := range plan.Summarize(entries) {
		table.Append([]string{
			s.Domain,
			strconv.Itoa(s.Tables),
			ui.FormatRowCount(s.TotalRows),
			fmt.Sprintf("%.1f", s.AvgPriority),
		})
	}
	table.Render()
}

func printTopEntries(entries []plan.Entry) {
	limit := 20
	if planShowAll || len(entries) < limit {
		limit = len(entries)
	}

	ui.ShowHeader("Top Priority Tables")

	table := ui.NewTable("Table", "Domain", "Rows", "Columns", "Priority")
	for _, e := range entries[:limit] {
		table.Append([]string{
			e.QualifiedName(),
			e.Domain,
			ui.FormatRowCount(e.RowCount),
			strconv.Itoa(e.ColumnCount),
			fmt.Sprintf("%.2f", e.PriorityScore),
		})
	}
	table.Render()

	if limit < len(entries) {
		fmt.Printf("  ... and %d more (use --all to list everything)\n", len(entries)-limit)
	}
}

func init() {
	planCmd.Flags().BoolVar(&planShowAll, "all", false, "List every planned table, not just the top 20")
	rootCmd.AddCommand(planCmd)
}
