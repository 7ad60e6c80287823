package cmd

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"

	"blinklift/internal/config"
	"blinklift/pkg/models"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initial configuration setup",
	Run:   runSetup,
}

func runSetup(cmd *cobra.Command, args []string) {
	fmt.Println("Setting up blinklift...")
	fmt.Println()

	if config.Exists() {
		var overwrite bool
		prompt := &survey.Confirm{
			Message: "Configuration already exists. Do you want to overwrite it?",
			Default: false,
		}
		survey.AskOne(prompt, &overwrite)
		if !overwrite {
			fmt.Println("Setup cancelled.")
			return
		}
	}

	cfg := &models.Config{}

	fmt.Println("Source Database Configuration")
	fmt.Println("-----------------------------")

	sourceQs := []*survey.Question{
		{
			Name: "host",
			Prompt: &survey.Input{
				Message: "SQL Server host:",
			},
			Validate: survey.Required,
		},
		{
			Name: "port",
			Prompt: &survey.Input{
				Message: "Port:",
				Default: "1433",
			},
		},
		{
			Name: "database",
			Prompt: &survey.Input{
				Message: "Database name:",
				Default: "blink_dev1",
			},
			Validate: survey.Required,
		},
		{
			Name: "username",
			Prompt: &survey.Input{
				Message: "Username:",
			},
			Validate: survey.Required,
		},
		{
			Name: "password",
			Prompt: &survey.Password{
				Message: "Password:",
			},
			Validate: survey.Required,
		},
		{
			Name: "schema",
			Prompt: &survey.Input{
				Message: "Schema:",
				Default: "dbo",
			},
		},
	}

	if err := survey.Ask(sourceQs, &cfg.Source); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("Warehouse Configuration")
	fmt.Println("-----------------------")

	warehouseQs := []*survey.Question{
		{
			Name: "account",
			Prompt: &survey.Input{
				Message: "Snowflake account (e.g., xy12345.us-east-1):",
			},
			Validate: survey.Required,
		},
		{
			Name: "username",
			Prompt: &survey.Input{
				Message: "Username:",
			},
			Validate: survey.Required,
		},
		{
			Name: "password",
			Prompt: &survey.Password{
				Message: "Password:",
			},
			Validate: survey.Required,
		},
		{
			Name: "role",
			Prompt: &survey.Input{
				Message: "Role:",
				Default: "SYSADMIN",
			},
			Validate: survey.Required,
		},
		{
			Name: "warehouse",
			Prompt: &survey.Input{
				Message: "Warehouse:",
				Default: "COMPUTE_WH",
			},
			Validate: survey.Required,
		},
		{
			Name: "database",
			Prompt: &survey.Input{
				Message: "Target database:",
				Default: "EYECARE_ANALYTICS",
			},
			Validate: survey.Required,
		},
	}

	if err := survey.Ask(warehouseQs, &cfg.Warehouse); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// Prefer the system keyring for the warehouse password; the config
	// file then carries no secret.
	var useKeyring bool
	keyringPrompt := &survey.Confirm{
		Message: "Store the warehouse password in the system keyring?",
		Default: true,
	}
	survey.AskOne(keyringPrompt, &useKeyring)

	if useKeyring {
		if err := keyring.Set(config.KeyringService, cfg.Warehouse.Username, cfg.Warehouse.Password); err != nil {
			fmt.Printf("Keyring unavailable (%v), keeping the password in the config file.\n", err)
		} else {
			cfg.Warehouse.Password = ""
		}
	}

	if err := config.Save(cfg); err != nil {
		fmt.Printf("Error saving configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("Configuration saved to:", config.GetConfigFile())
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  blinklift plan             # discover and prioritize source tables")
	fmt.Println("  blinklift migrate --all    # migrate everything into RAW")
	fmt.Println("  blinklift build-datamart   # build dimensions and facts")
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
