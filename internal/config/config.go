package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"blinklift/pkg/errors"
	"blinklift/pkg/models"
)

// KeyringService is the service name under which warehouse passwords are
// stored in the OS credential store.
const KeyringService = "blinklift"

// GetConfigPath returns the directory holding the config file.
func GetConfigPath() string {
	if configPath := os.Getenv("BLINKLIFT_CONFIG"); configPath != "" {
		return filepath.Dir(configPath)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".blinklift")
}

// GetConfigFile returns the full path of the config file.
func GetConfigFile() string {
	if configFile := os.Getenv("BLINKLIFT_CONFIG"); configFile != "" {
		return configFile
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

// Load reads configuration from the YAML config file and the environment.
// Environment variables take precedence over file values.
func Load() (*models.Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(GetConfigFile())
	v.SetConfigType("yaml")
	// Config file is optional; env vars alone are a valid setup.
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v)

	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to parse configuration")
	}

	// Fall back to the OS credential store for the warehouse password.
	if cfg.Warehouse.Password == "" && cfg.Warehouse.Username != "" {
		if secret, err := keyring.Get(KeyringService, cfg.Warehouse.Username); err == nil {
			cfg.Warehouse.Password = secret
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.port", 1433)
	v.SetDefault("source.schema", "dbo")
	v.SetDefault("migration.read_batch_size", 10000)
	v.SetDefault("migration.insert_batch_size", 500)
	v.SetDefault("migration.max_memory_rows", 50000)
	v.SetDefault("migration.table_batch_size", 50)
	v.SetDefault("migration.plan_path", filepath.Join(GetConfigPath(), "migration_plan.csv"))
	v.SetDefault("migration.summary_path", filepath.Join(GetConfigPath(), "run_summary.json"))
	v.SetDefault("migration.timeout_seconds", 30)
	v.SetDefault("migration.log_level", "INFO")
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("source.host", "SOURCE_DB_HOST")
	_ = v.BindEnv("source.port", "SOURCE_DB_PORT")
	_ = v.BindEnv("source.database", "SOURCE_DB_NAME")
	_ = v.BindEnv("source.username", "SOURCE_DB_USER")
	_ = v.BindEnv("source.password", "SOURCE_DB_PASSWORD")
	_ = v.BindEnv("source.schema", "SOURCE_DB_SCHEMA")

	_ = v.BindEnv("warehouse.account", "WAREHOUSE_ACCOUNT")
	_ = v.BindEnv("warehouse.username", "WAREHOUSE_USER")
	_ = v.BindEnv("warehouse.password", "WAREHOUSE_PASSWORD")
	_ = v.BindEnv("warehouse.role", "WAREHOUSE_ROLE")
	_ = v.BindEnv("warehouse.warehouse", "WAREHOUSE_WAREHOUSE")
	_ = v.BindEnv("warehouse.database", "WAREHOUSE_DATABASE")

	// BATCH_SIZE tunes the source read batch. The 500-row insert
	// sub-batch has its own knob so one variable never carries two
	// defaults.
	_ = v.BindEnv("migration.read_batch_size", "BATCH_SIZE")
	_ = v.BindEnv("migration.insert_batch_size", "INSERT_BATCH_SIZE")
	_ = v.BindEnv("migration.max_memory_rows", "MAX_MEMORY_ROWS")
	_ = v.BindEnv("migration.log_level", "LOG_LEVEL")
}

// Save writes the configuration to the YAML config file.
func Save(cfg *models.Config) error {
	configPath := GetConfigPath()
	if err := os.MkdirAll(configPath, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(GetConfigFile(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Exists reports whether a config file is present on disk.
func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}

// Validate checks that the configuration can support a migration run.
func Validate(cfg *models.Config) error {
	if cfg.Source.Host == "" {
		return errors.ConfigError("source host is required", "source.host")
	}
	if cfg.Source.Database == "" {
		return errors.ConfigError("source database is required", "source.database")
	}
	if cfg.Source.Username == "" {
		return errors.ConfigError("source username is required", "source.username")
	}
	if cfg.Warehouse.Account == "" {
		return errors.ConfigError("warehouse account is required", "warehouse.account")
	}
	if cfg.Warehouse.Username == "" {
		return errors.ConfigError("warehouse username is required", "warehouse.username")
	}
	if cfg.Warehouse.Database == "" {
		return errors.ConfigError("warehouse database is required", "warehouse.database")
	}
	if cfg.Migration.ReadBatchSize < 1 {
		return errors.ConfigError("read batch size must be positive", "migration.read_batch_size")
	}
	if cfg.Migration.InsertBatchSize < 1 {
		return errors.ConfigError("insert batch size must be positive", "migration.insert_batch_size")
	}
	return nil
}
