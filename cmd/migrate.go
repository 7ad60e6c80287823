package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"blinklift/internal/migrate"
	"blinklift/internal/plan"
	"blinklift/internal/source"
	"blinklift/internal/ui"
	"blinklift/internal/warehouse"
	"blinklift/pkg/errors"
)

var (
	migratePriority int
	migrateDomain   string
	migrateAll      bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate planned tables into the warehouse RAW schema",
	Long: "Migrates source tables into wide-VARCHAR tables in the RAW schema,\n" +
		"in plan priority order. Already-migrated targets are skipped.",
	RunE: runMigrate,
}

// selectorCount reports how many of the mutually exclusive table
// selectors were given.
func selectorCount(flags *pflag.FlagSet) int {
	selected := 0
	if n, _ := flags.GetInt("priority"); n > 0 {
		selected++
	}
	if d, _ := flags.GetString("domain"); d != "" {
		selected++
	}
	if all, _ := flags.GetBool("all"); all {
		selected++
	}
	return selected
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if selectorCount(cmd.Flags()) != 1 {
		return errors.New(errors.ErrCodeConfigInvalid,
			"Specify exactly one of --priority, --domain, or --all")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	planner := plan.NewPlanner(cfg.Migration.PlanPath)
	entries, err := planner.Load()
	if err != nil {
		return err
	}

	switch {
	case migratePriority > 0:
		entries = plan.NextBatch(entries, migratePriority)
	case migrateDomain != "":
		entries = plan.ByDomain(entries, migrateDomain)
		if len(entries) == 0 {
			return errors.New(errors.ErrCodePlanInvalid,
				fmt.Sprintf("No plan entries in domain %q", migrateDomain))
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeout := time.Duration(cfg.Migration.TimeoutSeconds) * time.Second

	reader := source.NewReader(cfg.Source, timeout)
	if err := reader.Connect(ctx); err != nil {
		return err
	}
	defer reader.Close()

	service := warehouse.NewService(cfg.Warehouse, timeout)
	if err := service.Connect(ctx); err != nil {
		return err
	}
	defer service.Close()

	writer := warehouse.NewWriter(service, cfg.Migration.InsertBatchSize)

	orch := migrate.New(reader, writer, migrate.Options{
		ReadBatchSize:  cfg.Migration.ReadBatchSize,
		MaxMemoryRows:  cfg.Migration.MaxMemoryRows,
		TableBatchSize: cfg.Migration.TableBatchSize,
		Pace:           true,
	}, func(format string, args ...interface{}) {
		ui.ShowInfo(fmt.Sprintf(format, args...))
	})

	runErr := orch.Run(ctx, entries)
	ledger := orch.Ledger()

	printRunSummary(ledger)
	if err := ledger.WriteSummary(cfg.Migration.SummaryPath); err != nil {
		ui.ShowWarning("Could not write run summary: " + err.Error())
	} else {
		ui.ShowInfo("Run summary written to " + cfg.Migration.SummaryPath)
	}

	if runErr != nil {
		if ctx.Err() != nil {
			ui.ShowWarning("Run cancelled, re-run migrate to continue where it stopped")
		}
		return runErr
	}
	if ledger.Failed() > 0 {
		return fmt.Errorf("%d of %d tables failed to migrate", ledger.Failed(), ledger.Attempted())
	}
	return nil
}

// printRunSummary renders per-table outcomes with up to five errors
// inline; the rest go to the JSON summary.
func printRunSummary(ledger *migrate.Ledger) {
	ui.ShowHeader("Migration Summary")

	table := ui.NewTable("Table", "Rows", "Skipped", "Status")
	for _, o := range ledger.Outcomes() {
		status := ui.ColorSuccess("ok")
		if !o.Success {
			status = ui.ColorError(string(o.ErrorCode))
		}
		table.Append([]string{
			o.Table,
			ui.FormatRowCount(o.Rows),
			fmt.Sprintf("%d", o.Skipped),
			status,
		})
	}
	table.Render()

	fmt.Printf("\n  %d attempted, %d successful, %d failed, %s rows in %s\n",
		ledger.Attempted(), ledger.Successful(), ledger.Failed(),
		ui.FormatRowCount(ledger.TotalRows()),
		ledger.Elapsed().Round(time.Second))

	shown := 0
	for _, o := range ledger.Outcomes() {
		if o.Success || shown >= 5 {
			continue
		}
		ui.ShowWarning(fmt.Sprintf("%s: %s", o.Table, o.Message))
		for _, s := range o.Suggestions {
			fmt.Printf("    %s\n", ui.ColorDim(s))
		}
		shown++
	}
	if ledger.Failed() > shown {
		fmt.Printf("  ... %d more errors in the run summary\n", ledger.Failed()-shown)
	}
}

func init() {
	migrateCmd.Flags().IntVar(&migratePriority, "priority", 0, "Migrate the top-N plan entries")
	migrateCmd.Flags().StringVar(&migrateDomain, "domain", "", "Migrate all plan entries of one domain")
	migrateCmd.Flags().BoolVar(&migrateAll, "all", false, "Migrate every remaining plan entry")
	rootCmd.AddCommand(migrateCmd)
}
