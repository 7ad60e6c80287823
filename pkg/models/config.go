package models

// Config is the root configuration for the migration engine and datamart builder.
type Config struct {
	Source    Source    `yaml:"source" mapstructure:"source"`
	Warehouse Warehouse `yaml:"warehouse" mapstructure:"warehouse"`
	Migration Migration `yaml:"migration" mapstructure:"migration"`
}

// Source describes the vendor SQL Server OLTP database.
type Source struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Database string `yaml:"database" mapstructure:"database"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Schema   string `yaml:"schema" mapstructure:"schema"`
}

// Warehouse describes the Snowflake analytics warehouse.
type Warehouse struct {
	Account   string `yaml:"account" mapstructure:"account"`
	Username  string `yaml:"username" mapstructure:"username"`
	Password  string `yaml:"password" mapstructure:"password"`
	Role      string `yaml:"role" mapstructure:"role"`
	Warehouse string `yaml:"warehouse" mapstructure:"warehouse"`
	Database  string `yaml:"database" mapstructure:"database"`
}

// Migration holds tunables for the batch migration pipeline.
type Migration struct {
	ReadBatchSize   int    `yaml:"read_batch_size" mapstructure:"read_batch_size"`
	InsertBatchSize int    `yaml:"insert_batch_size" mapstructure:"insert_batch_size"`
	MaxMemoryRows   int    `yaml:"max_memory_rows" mapstructure:"max_memory_rows"`
	TableBatchSize  int    `yaml:"table_batch_size" mapstructure:"table_batch_size"`
	PlanPath        string `yaml:"plan_path" mapstructure:"plan_path"`
	SummaryPath     string `yaml:"summary_path" mapstructure:"summary_path"`
	TimeoutSeconds  int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	LogLevel        string `yaml:"log_level" mapstructure:"log_level"`
}
