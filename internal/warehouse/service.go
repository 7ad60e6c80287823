package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/snowflakedb/gosnowflake"

	"blinklift/pkg/errors"
	"blinklift/pkg/models"
)

// RawSchema is the landing schema every migrated table is written into.
const RawSchema = "RAW"

// Service provides warehouse database operations
type Service struct {
	db        *sql.DB
	config    models.Warehouse
	timeout   time.Duration
	connected bool
}

// NewService creates a new warehouse service
func NewService(config models.Warehouse, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		config:  config,
		timeout: timeout,
	}
}

// Connect establishes a connection to the warehouse
func (s *Service) Connect(ctx context.Context) error {
	if s.connected {
		return nil
	}

	return errors.RetryWithBackoff(ctx, func(ctx context.Context) error {
		dsn := fmt.Sprintf("%s:%s@%s/%s/%s?warehouse=%s&role=%s",
			s.config.Username,
			s.config.Password,
			s.config.Account,
			s.config.Database,
			RawSchema,
			s.config.Warehouse,
			s.config.Role,
		)

		db, err := sql.Open("snowflake", dsn)
		if err != nil {
			return errors.WarehouseConnectionError("Failed to open warehouse connection", err).
				WithContext("account", s.config.Account).
				WithContext("warehouse", s.config.Warehouse)
		}

		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(10 * time.Minute)

		connCtx, cancel := s.getContext(ctx)
		defer cancel()

		if err := db.PingContext(connCtx); err != nil {
			db.Close()

			if strings.Contains(err.Error(), "authentication") {
				return errors.New(errors.ErrCodeAuthenticationFailed, "Warehouse authentication failed").
					WithContext("user", s.config.Username).
					WithSuggestions(
						"Verify WAREHOUSE_USER and WAREHOUSE_PASSWORD",
						"Check if your account is locked",
						"Ensure the account identifier includes the region if required",
					)
			}

			return errors.WarehouseConnectionError("Failed to connect to warehouse", err).
				WithContext("account", s.config.Account).
				AsRecoverable()
		}

		s.db = db
		s.connected = true
		return nil
	})
}

// Close closes the database connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}
	s.connected = false
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for packages that issue their own statements.
func (s *Service) DB() *sql.DB {
	return s.db
}

// Database returns the configured warehouse database name.
func (s *Service) Database() string {
	return s.config.Database
}

// Exec runs a single statement with the service timeout applied.
func (s *Service) Exec(ctx context.Context, statement string) error {
	if !s.connected {
		return errors.New(errors.ErrCodeWarehouseUnavailable, "Not connected to warehouse").
			WithSuggestions("Call Connect() before executing statements")
	}

	execCtx, cancel := s.getContext(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(execCtx, statement); err != nil {
		return errors.WriteError("Statement execution failed", statement, err)
	}
	return nil
}

// QueryRowCount runs a COUNT(*) against a fully qualified object.
func (s *Service) QueryRowCount(ctx context.Context, qualified string) (int64, error) {
	if !s.connected {
		return 0, errors.New(errors.ErrCodeWarehouseUnavailable, "Not connected to warehouse")
	}

	queryCtx, cancel := s.getContext(ctx)
	defer cancel()

	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", qualified)
	if err := s.db.QueryRowContext(queryCtx, query).Scan(&n); err != nil {
		return 0, errors.WriteError("Row count query failed", query, err)
	}
	return n, nil
}

func (s *Service) getContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, s.timeout)
}

// forTesting wires an externally created handle, used by sqlmock tests.
func (s *Service) forTesting(db *sql.DB) {
	s.db = db
	s.connected = true
}
