package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"blinklift/internal/datamart"
	"blinklift/internal/ui"
	"blinklift/internal/warehouse"
)

var datamartSummary bool

var datamartCmd = &cobra.Command{
	Use:   "build-datamart",
	Short: "Build dimensions, facts, and views from the RAW schema",
	Long: "Creates the DATAMART schema and builds the dimensional model:\n" +
		"date and SCD type-2 dimensions, transaction facts, and reporting views.",
	RunE: runDatamart,
}

func runDatamart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	timeout := time.Duration(cfg.Migration.TimeoutSeconds) * time.Second

	service := warehouse.NewService(cfg.Warehouse, timeout)
	if err := service.Connect(ctx); err != nil {
		return err
	}
	defer service.Close()

	builder := datamart.NewBuilder(service, datamart.DefaultOptions(), func(format string, args ...interface{}) {
		ui.ShowInfo(fmt.Sprintf(format, args...))
	})

	spinner := ui.NewSpinner("Building datamart")
	spinner.Start()
	if err := builder.Build(ctx); err != nil {
		spinner.Stop(false, "Datamart build failed")
		return err
	}
	spinner.Stop(true, "Datamart build complete")

	if datamartSummary {
		counts, err := builder.Summary(ctx)
		if err != nil {
			return err
		}

		ui.ShowHeader("Datamart Summary")
		table := ui.NewTable("Table", "Rows")
		for _, c := range counts {
			table.Append([]string{c.Table, ui.FormatRowCount(c.Rows)})
		}
		table.Render()
	}

	return nil
}

func init() {
	datamartCmd.Flags().BoolVar(&datamartSummary, "summary", false, "Print row counts after the build")
	rootCmd.AddCommand(datamartCmd)
}
