package cmd

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blinklift/pkg/errors"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"warehouse down", errors.New(errors.ErrCodeWarehouseUnavailable, "no connectivity"), ExitUnrecoverable},
		{"source down", errors.New(errors.ErrCodeSourceUnavailable, "no connectivity"), ExitUnrecoverable},
		{"bad credentials", errors.New(errors.ErrCodeAuthenticationFailed, "denied"), ExitUnrecoverable},
		{"table failures", fmt.Errorf("3 of 10 tables failed to migrate"), ExitTableFailures},
		{"missing plan", errors.PlanMissingError("/tmp/plan.csv"), ExitTableFailures},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}

func TestMigrateRequiresExactlyOneSelector(t *testing.T) {
	reset := func() {
		migratePriority = 0
		migrateDomain = ""
		migrateAll = false
	}

	reset()
	err := runMigrate(migrateCmd, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))

	migratePriority = 5
	migrateAll = true
	err = runMigrate(migrateCmd, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
	reset()
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"plan", "migrate", "build-datamart", "investigate", "setup", "version"} {
		assert.True(t, names[want], "command %s should be registered", want)
	}
}
