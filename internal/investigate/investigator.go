package investigate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"blinklift/internal/sanitize"
	"blinklift/internal/source"
)

// maxCandidates bounds how many renamed-table suggestions a report carries.
const maxCandidates = 3

// domainHints are tokens that often survive vendor table renames, used
// for partial matching when a prefix search finds nothing.
var domainHints = []string{"invoice", "order", "item", "employee", "appointment", "schedule"}

// Report is the investigator's finding for one failing table.
type Report struct {
	Requested   string
	Found       bool
	Candidates  []string
	RetryStrict bool
	Notes       []string
}

// Suggestion renders the report's primary advice for batch outcomes.
func (r Report) Suggestion() string {
	switch {
	case r.Found:
		return "table exists in the source catalog, re-run the migration"
	case len(r.Candidates) > 0:
		return fmt.Sprintf("table not found, closest match: %s", r.Candidates[0])
	case r.RetryStrict:
		return "re-run the table with byte-safe decoding"
	default:
		return "table not found and no similar names exist in the source"
	}
}

// Catalog is the slice of Reader the investigator needs.
type Catalog interface {
	ListUserTables(ctx context.Context) ([]source.TableDescriptor, error)
	Sample(ctx context.Context, schema, name string, k int) (*source.RowBatch, error)
}

// Investigator diagnoses tables that failed to migrate.
type Investigator struct {
	catalog Catalog
}

// New creates an investigator over the given source catalog.
func New(catalog Catalog) *Investigator {
	return &Investigator{catalog: catalog}
}

// MissingTable searches the source catalog for a table that could not
// be found under its planned name. Matching is case-insensitive exact
// first, then partial on the first five characters, then on domain
// hint tokens shared with the requested name. It never retries under a
// different name; the report only carries suggestions.
func (inv *Investigator) MissingTable(ctx context.Context, schema, name string) (Report, error) {
	report := Report{Requested: schema + "." + name}

	tables, err := inv.catalog.ListUserTables(ctx)
	if err != nil {
		return report, err
	}

	wanted := strings.ToLower(name)
	for _, t := range tables {
		if strings.ToLower(t.Name) == wanted {
			report.Found = true
			report.Candidates = []string{t.QualifiedName()}
			report.Notes = append(report.Notes,
				fmt.Sprintf("exact match found as %s", t.QualifiedName()))
			return report, nil
		}
	}

	prefix := wanted
	if len(prefix) > 5 {
		prefix = prefix[:5]
	}

	var hints []string
	for _, hint := range domainHints {
		if strings.Contains(wanted, hint) {
			hints = append(hints, hint)
		}
	}

	seen := make(map[string]bool)
	sorted := append([]source.TableDescriptor(nil), tables...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, t := range sorted {
		candidate := strings.ToLower(t.Name)
		if strings.HasPrefix(candidate, prefix) {
			inv.add(&report, seen, t, "shares the first five characters with the requested name")
		}
	}
	for _, hint := range hints {
		for _, t := range sorted {
			if strings.Contains(strings.ToLower(t.Name), hint) {
				inv.add(&report, seen, t, fmt.Sprintf("matches domain token %q", hint))
			}
		}
	}

	return report, nil
}

func (inv *Investigator) add(report *Report, seen map[string]bool, t source.TableDescriptor, note string) {
	qualified := t.QualifiedName()
	if seen[qualified] || len(report.Candidates) >= maxCandidates {
		return
	}
	seen[qualified] = true
	report.Candidates = append(report.Candidates, qualified)
	report.Notes = append(report.Notes, fmt.Sprintf("%s %s", qualified, note))
}

// EncodingProbe pulls a five-row sample through byte-safe decoding.
// If the sample survives, the table is safe to re-run under the strict
// sanitizer mode.
func (inv *Investigator) EncodingProbe(ctx context.Context, schema, name string) (Report, error) {
	report := Report{Requested: schema + "." + name}

	batch, err := inv.catalog.Sample(ctx, schema, name, 5)
	if err != nil {
		report.Notes = append(report.Notes, "sample read failed, the problem is not row encoding")
		return report, err
	}

	strict := sanitize.NewStrict()
	for _, row := range batch.Rows {
		strict.CleanRow(row)
	}

	report.Found = true
	report.RetryStrict = true
	report.Notes = append(report.Notes,
		fmt.Sprintf("%d sample rows decoded cleanly with byte-safe handling", len(batch.Rows)))
	return report, nil
}
