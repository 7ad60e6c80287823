package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"blinklift/internal/investigate"
	"blinklift/internal/source"
	"blinklift/internal/ui"
)

var investigateEncoding bool

var investigateCmd = &cobra.Command{
	Use:   "investigate TABLE",
	Short: "Diagnose a table that failed to migrate",
	Long: "Searches the source catalog for tables matching a name that could not\n" +
		"be found, or probes a table's rows for encoding problems.",
	Args: cobra.ExactArgs(1),
	RunE: runInvestigate,
}

func runInvestigate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	schema := cfg.Source.Schema
	name := args[0]
	if parts := strings.SplitN(name, ".", 2); len(parts) == 2 {
		schema, name = parts[0], parts[1]
	}

	ctx := cmd.Context()
	reader := source.NewReader(cfg.Source, time.Duration(cfg.Migration.TimeoutSeconds)*time.Second)
	if err := reader.Connect(ctx); err != nil {
		return err
	}
	defer reader.Close()

	inv := investigate.New(reader)

	var report investigate.Report
	if investigateEncoding {
		report, err = inv.EncodingProbe(ctx, schema, name)
	} else {
		report, err = inv.MissingTable(ctx, schema, name)
	}
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

func printReport(report investigate.Report) {
	ui.ShowHeader("Investigation: " + report.Requested)

	if report.Found {
		ui.ShowSuccess(report.Suggestion())
	} else {
		ui.ShowWarning(report.Suggestion())
	}

	if len(report.Candidates) > 0 {
		table := ui.NewTable("Candidate")
		for _, c := range report.Candidates {
			table.Append([]string{c})
		}
		table.Render()
	}

	for _, note := range report.Notes {
		fmt.Printf("  %s\n", ui.ColorDim(note))
	}
}

func init() {
	investigateCmd.Flags().BoolVar(&investigateEncoding, "encoding", false, "Probe sample rows for encoding problems")
	rootCmd.AddCommand(investigateCmd)
}
