package plan

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blinklift/internal/source"
	"blinklift/pkg/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		schema, name string
		wantDomain   string
		wantScore    int
	}{
		{"dbo", "PatientDemographics", "patient", 1},
		{"dbo", "PatientInsuranceClaim", "billing", 2},
		{"dbo", "AppointmentSchedule", "appointment", 2},
		{"dbo", "InvoiceLineItems", "billing", 1},
		{"dbo", "FrameInventory", "inventory", 2},
		{"dbo", "SystemSettings", "other", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			domain, score := Classify(tt.schema, tt.name)
			assert.Equal(t, tt.wantDomain, domain)
			assert.Equal(t, tt.wantScore, score)
		})
	}
}

func TestScore(t *testing.T) {
	// patient weight 10: 10 * (log10(1000) + 20/10 + 2*1) = 70
	assert.Equal(t, 70.0, Score("patient", 1, 1000, 20))

	// zero rows clamp to 1 so the log term vanishes
	assert.Equal(t, 1.0, Score("other", 0, 0, 10))

	// unknown domains fall back to the lowest weight
	assert.Equal(t, Score("other", 0, 50, 5), Score("mystery", 0, 50, 5))
}

func TestSortOrdering(t *testing.T) {
	entries := []Entry{
		{Name: "b", PriorityScore: 5, RowCount: 10},
		{Name: "a", PriorityScore: 5, RowCount: 10},
		{Name: "c", PriorityScore: 5, RowCount: 99},
		{Name: "d", PriorityScore: 9, RowCount: 1},
	}

	Sort(entries)

	names := []string{entries[0].Name, entries[1].Name, entries[2].Name, entries[3].Name}
	assert.Equal(t, []string{"d", "c", "a", "b"}, names)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.csv")
	p := NewPlanner(path)

	in := []Entry{
		{Schema: "dbo", Name: "Patients", RowCount: 1200, ColumnCount: 14, Domain: "patient", DomainScore: 1, PriorityScore: 52.31},
		{Schema: "dbo", Name: "Orders", RowCount: 300, ColumnCount: 8, Domain: "order", DomainScore: 1, PriorityScore: 36.94},
	}
	require.NoError(t, p.Save(in))

	out, err := p.Load()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoadMissingPlan(t *testing.T) {
	p := NewPlanner(filepath.Join(t.TempDir(), "nope.csv"))

	_, err := p.Load()

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePlanMissing, errors.GetErrorCode(err))
}

type fakeCatalog struct {
	tables []source.TableDescriptor
}

func (f fakeCatalog) ListUserTables(ctx context.Context) ([]source.TableDescriptor, error) {
	return f.tables, nil
}

func TestBuildScoresAndPersists(t *testing.T) {
	p := NewPlanner(filepath.Join(t.TempDir(), "plan.csv"))

	entries, err := p.Build(context.Background(), fakeCatalog{tables: []source.TableDescriptor{
		{Schema: "dbo", Name: "SystemLog", RowCount: 9000000, ColumnCount: 4},
		{Schema: "dbo", Name: "Patients", RowCount: 1000, ColumnCount: 20},
	}})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// The patient table outranks the bigger but valueless log table.
	assert.Equal(t, "Patients", entries[0].Name)

	reloaded, err := p.Load()
	require.NoError(t, err)
	assert.Equal(t, entries, reloaded)
}

func TestRemaining(t *testing.T) {
	entries := []Entry{
		{Schema: "dbo", Name: "Patients"},
		{Schema: "dbo", Name: "Orders"},
	}
	existing := map[string]bool{"DBO_PATIENTS": true}

	left := Remaining(entries, existing)

	require.Len(t, left, 1)
	assert.Equal(t, "Orders", left[0].Name)
}

func TestNextBatch(t *testing.T) {
	entries := []Entry{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	assert.Len(t, NextBatch(entries, 2), 2)
	assert.Len(t, NextBatch(entries, 10), 3)
	assert.Len(t, NextBatch(entries, 0), 3)
}

func TestByDomain(t *testing.T) {
	entries := []Entry{
		{Name: "a", Domain: "patient"},
		{Name: "b", Domain: "billing"},
		{Name: "c", Domain: "patient"},
	}

	got := ByDomain(entries, "Patient")

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
}

func TestSummarize(t *testing.T) {
	entries := []Entry{
		{Domain: "patient", RowCount: 100, PriorityScore: 50},
		{Domain: "patient", RowCount: 200, PriorityScore: 40},
		{Domain: "other", RowCount: 5, PriorityScore: 2},
	}

	stats := Summarize(entries)

	require.Len(t, stats, 2)
	assert.Equal(t, "patient", stats[0].Domain)
	assert.Equal(t, 2, stats[0].Tables)
	assert.Equal(t, int64(300), stats[0].TotalRows)
	assert.Equal(t, 45.0, stats[0].AvgPriority)
}
