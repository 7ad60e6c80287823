package investigate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blinklift/internal/source"
)

type fakeCatalog struct {
	tables    []source.TableDescriptor
	sample    *source.RowBatch
	sampleErr error
}

func (f fakeCatalog) ListUserTables(ctx context.Context) ([]source.TableDescriptor, error) {
	return f.tables, nil
}

func (f fakeCatalog) Sample(ctx context.Context, schema, name string, k int) (*source.RowBatch, error) {
	return f.sample, f.sampleErr
}

func tables(names ...string) []source.TableDescriptor {
	out := make([]source.TableDescriptor, len(names))
	for i, n := range names {
		out[i] = source.TableDescriptor{Schema: "dbo", Name: n}
	}
	return out
}

func TestMissingTableExactMatch(t *testing.T) {
	inv := New(fakeCatalog{tables: tables("Patients", "invoicedetail")})

	report, err := inv.MissingTable(context.Background(), "dbo", "InvoiceDetail")

	require.NoError(t, err)
	assert.True(t, report.Found)
	assert.Equal(t, []string{"dbo.invoicedetail"}, report.Candidates)
}

func TestMissingTablePrefixMatch(t *testing.T) {
	inv := New(fakeCatalog{tables: tables("InvoiceDet", "Patients")})

	report, err := inv.MissingTable(context.Background(), "dbo", "InvoiceDetail")

	require.NoError(t, err)
	assert.False(t, report.Found)
	require.NotEmpty(t, report.Candidates)
	assert.Equal(t, "dbo.InvoiceDet", report.Candidates[0])
	assert.Contains(t, report.Suggestion(), "InvoiceDet")
}

func TestMissingTableDomainHintMatch(t *testing.T) {
	inv := New(fakeCatalog{tables: tables("SalesOrderHeader", "Patients")})

	report, err := inv.MissingTable(context.Background(), "dbo", "CustomerOrderArchive")

	require.NoError(t, err)
	assert.Contains(t, report.Candidates, "dbo.SalesOrderHeader")
}

func TestMissingTableCandidateCap(t *testing.T) {
	inv := New(fakeCatalog{tables: tables(
		"InvoiceA", "InvoiceB", "InvoiceC", "InvoiceD", "InvoiceE",
	)})

	report, err := inv.MissingTable(context.Background(), "dbo", "InvoiceDetail")

	require.NoError(t, err)
	assert.Len(t, report.Candidates, 3)
}

func TestMissingTableNoMatches(t *testing.T) {
	inv := New(fakeCatalog{tables: tables("Patients")})

	report, err := inv.MissingTable(context.Background(), "dbo", "ZZZUnknown")

	require.NoError(t, err)
	assert.Empty(t, report.Candidates)
	assert.Contains(t, report.Suggestion(), "no similar names")
}

func TestEncodingProbeCleanSample(t *testing.T) {
	inv := New(fakeCatalog{sample: &source.RowBatch{
		Columns: []string{"id", "name"},
		Rows: [][]interface{}{
			{int64(1), []byte{0xff, 0xfe, 'A'}},
		},
	}})

	report, err := inv.EncodingProbe(context.Background(), "dbo", "Vendors")

	require.NoError(t, err)
	assert.True(t, report.RetryStrict)
}

func TestEncodingProbeSampleFailure(t *testing.T) {
	inv := New(fakeCatalog{sampleErr: fmt.Errorf("connection reset")})

	report, err := inv.EncodingProbe(context.Background(), "dbo", "Vendors")

	require.Error(t, err)
	assert.False(t, report.RetryStrict)
}
