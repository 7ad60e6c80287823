package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatRowCount(t *testing.T) {
	tests := []struct {
		n        int64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1500, "1.5K"},
		{2500000, "2.5M"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatRowCount(tt.n))
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "500ms", formatDuration(500*time.Millisecond))
	assert.Equal(t, "2.5s", formatDuration(2500*time.Millisecond))
	assert.Equal(t, "1m30s", formatDuration(90*time.Second))
	assert.Equal(t, "2h5m", formatDuration(2*time.Hour+5*time.Minute))
}

func TestGetSuggestion(t *testing.T) {
	assert.Contains(t, getSuggestion("Authentication failed for user"), "credentials")
	assert.Contains(t, getSuggestion("invalid object name 'dbo.InvoiceDetail'"), "investigate")
	assert.Contains(t, getSuggestion("Plan file is empty"), "plan")
	assert.Empty(t, getSuggestion("something else entirely"))
}

func TestProgressBarCounts(t *testing.T) {
	p := NewProgressBar(3)
	p.Update("DBO_PATIENTS", 100, true)
	p.Update("DBO_ORDERS", 50, true)
	p.Update("DBO_MISSING", 0, false)

	assert.Equal(t, 2, p.successCount)
	assert.Equal(t, 1, p.failureCount)
	assert.Equal(t, int64(150), p.totalRows)
	assert.Zero(t, p.eta())
}

func TestSpinnerStop(t *testing.T) {
	s := NewSpinner("working")
	s.Start()
	s.UpdateMessage("still working")
	s.Stop(true, "done")

	assert.True(t, s.stopped)
}
