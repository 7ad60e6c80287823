package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"blinklift/internal/config"
	"blinklift/internal/ui"
	"blinklift/pkg/errors"
	"blinklift/pkg/models"
)

// Exit codes of the CLI.
const (
	ExitOK            = 0
	ExitTableFailures = 1
	ExitUnrecoverable = 2
)

var rootCmd = &cobra.Command{
	Use:   "blinklift",
	Short: "Migrate eyecare practice data into Snowflake",
	Long: "Blinklift migrates tables from a practice management SQL Server database\n" +
		"into a Snowflake RAW schema and builds the dimensional datamart on top of it.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and maps failures to exit codes.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.ShowError(err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor distinguishes unrecoverable connectivity failures from
// per-table failures.
func exitCodeFor(err error) int {
	switch errors.GetErrorCode(err) {
	case errors.ErrCodeWarehouseUnavailable,
		errors.ErrCodeSourceUnavailable,
		errors.ErrCodeAuthenticationFailed,
		errors.ErrCodeConnectionTimeout:
		return ExitUnrecoverable
	default:
		return ExitTableFailures
	}
}

// loadConfig loads and validates configuration for commands that talk
// to the databases.
func loadConfig() (*models.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	ui.SetVerbose(strings.EqualFold(cfg.Migration.LogLevel, "DEBUG"))
	return cfg, nil
}
