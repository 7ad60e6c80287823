package source

import (
	"fmt"
	"strings"
)

// TargetName derives the warehouse RAW table name for a source table.
func TargetName(schema, name string) string {
	return strings.ToUpper(schema + "_" + name)
}

// Column describes one column of a source table as declared in the catalog.
type Column struct {
	Name      string
	DataType  string
	Nullable  bool
	MaxLength int64 // -1 for unbounded types such as VARCHAR(MAX)
	Ordinal   int
}

// TableDescriptor describes a source table discovered in the catalog.
// Descriptors are immutable after discovery.
type TableDescriptor struct {
	Schema      string
	Name        string
	RowCount    int64
	ColumnCount int
	Columns     []Column
}

// QualifiedName returns the schema-qualified source name.
func (t TableDescriptor) QualifiedName() string {
	return fmt.Sprintf("%s.%s", t.Schema, t.Name)
}

// TargetName derives the warehouse table name: SCHEMA_TABLE uppercased.
func (t TableDescriptor) TargetName() string {
	return TargetName(t.Schema, t.Name)
}

// ColumnNames returns the ordered column names.
func (t TableDescriptor) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// RowBatch is an ordered, column-aligned slice of rows read from the source.
// Batches are transient and never persisted.
type RowBatch struct {
	Columns []string
	Rows    [][]interface{}
}

// Len returns the number of rows in the batch.
func (b RowBatch) Len() int {
	return len(b.Rows)
}
