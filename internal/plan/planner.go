package plan

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"blinklift/internal/source"
	"blinklift/pkg/errors"
)

// Business domains a source table can be classified into, highest
// migration value first.
const (
	DomainPatient      = "patient"
	DomainAppointment  = "appointment"
	DomainBilling      = "billing"
	DomainPrescription = "prescription"
	DomainOrder        = "order"
	DomainInventory    = "inventory"
	DomainEmployee     = "employee"
	DomainLocation     = "location"
	DomainLab          = "lab"
	DomainVendor       = "vendor"
	DomainOther        = "other"
)

var domainKeywords = map[string][]string{
	DomainPatient:      {"patient", "customer", "person", "individual", "client"},
	DomainAppointment:  {"appointment", "visit", "schedule", "booking", "exam"},
	DomainBilling:      {"billing", "invoice", "payment", "charge", "claim", "insurance"},
	DomainInventory:    {"inventory", "product", "frame", "lens", "contact", "supply"},
	DomainPrescription: {"prescription", "rx", "refraction", "vision", "eye"},
	DomainEmployee:     {"employee", "staff", "doctor", "optometrist", "technician"},
	DomainLocation:     {"location", "office", "store", "branch", "clinic"},
	DomainOrder:        {"order", "sale", "transaction", "purchase"},
	DomainLab:          {"lab", "laboratory", "manufacturing", "production"},
	DomainVendor:       {"vendor", "supplier", "manufacturer", "provider"},
}

var domainWeights = map[string]float64{
	DomainPatient:      10,
	DomainAppointment:  9,
	DomainBilling:      8,
	DomainPrescription: 8,
	DomainOrder:        7,
	DomainInventory:    6,
	DomainEmployee:     5,
	DomainLocation:     5,
	DomainLab:          4,
	DomainVendor:       3,
	DomainOther:        1,
}

// Entry is one row of the migration plan.
type Entry struct {
	Schema        string
	Name          string
	RowCount      int64
	ColumnCount   int
	Domain        string
	DomainScore   int
	PriorityScore float64
}

// TargetName derives the warehouse table name for this entry.
func (e Entry) TargetName() string {
	return source.TargetName(e.Schema, e.Name)
}

// QualifiedName returns the source-side schema.name.
func (e Entry) QualifiedName() string {
	return e.Schema + "." + e.Name
}

// Classify scores a table name against every domain keyword list and
// returns the best domain with its keyword hit count.
func Classify(schema, name string) (string, int) {
	fullName := strings.ToLower(schema + "." + name)

	bestDomain := DomainOther
	bestScore := 0
	for domain, keywords := range domainKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(fullName, kw) {
				score++
			}
		}
		if score > bestScore || (score == bestScore && score > 0 && domain < bestDomain) {
			bestDomain = domain
			bestScore = score
		}
	}
	return bestDomain, bestScore
}

// Score computes the migration priority for a classified table.
// Larger tables with more columns in higher value domains go first.
func Score(domain string, domainScore int, rowCount int64, columnCount int) float64 {
	weight, ok := domainWeights[domain]
	if !ok {
		weight = domainWeights[DomainOther]
	}

	rows := float64(rowCount)
	if rows < 1 {
		rows = 1
	}

	score := weight * (math.Log10(rows) + float64(columnCount)/10 + float64(domainScore)*2)
	return math.Round(score*100) / 100
}

// Planner materializes and serves the priority-ordered migration plan.
type Planner struct {
	path string
}

// NewPlanner creates a planner persisting the plan at path.
func NewPlanner(path string) *Planner {
	return &Planner{path: path}
}

// Path returns the plan file location.
func (p *Planner) Path() string {
	return p.path
}

// Catalog is the slice of Reader needed to build a plan.
type Catalog interface {
	ListUserTables(ctx context.Context) ([]source.TableDescriptor, error)
}

// Build discovers all source tables, scores them, sorts them, and
// persists the plan.
func (p *Planner) Build(ctx context.Context, catalog Catalog) ([]Entry, error) {
	tables, err := catalog.ListUserTables(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(tables))
	for _, t := range tables {
		domain, domainScore := Classify(t.Schema, t.Name)
		entries = append(entries, Entry{
			Schema:        t.Schema,
			Name:          t.Name,
			RowCount:      t.RowCount,
			ColumnCount:   t.ColumnCount,
			Domain:        domain,
			DomainScore:   domainScore,
			PriorityScore: Score(domain, domainScore, t.RowCount, t.ColumnCount),
		})
	}

	Sort(entries)

	if err := p.Save(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Sort orders entries by priority descending, breaking ties by row
// count descending, then table name ascending.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].PriorityScore != entries[j].PriorityScore {
			return entries[i].PriorityScore > entries[j].PriorityScore
		}
		if entries[i].RowCount != entries[j].RowCount {
			return entries[i].RowCount > entries[j].RowCount
		}
		return entries[i].Name < entries[j].Name
	})
}

var csvHeader = []string{"TABLE_SCHEMA", "TABLE_NAME", "ROW_COUNT", "COLUMN_COUNT", "domain", "domain_score", "priority_score"}

// Save writes the plan CSV, creating the parent directory if needed.
func (p *Planner) Save(entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create plan directory: %w", err)
	}

	f, err := os.Create(p.path)
	if err != nil {
		return fmt.Errorf("failed to create plan file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		record := []string{
			e.Schema,
			e.Name,
			strconv.FormatInt(e.RowCount, 10),
			strconv.Itoa(e.ColumnCount),
			e.Domain,
			strconv.Itoa(e.DomainScore),
			strconv.FormatFloat(e.PriorityScore, 'f', 2, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Load reads the persisted plan. A missing file is reported with a
// suggestion to run plan building first.
func (p *Planner) Load() ([]Entry, error) {
	f, err := os.Open(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.PlanMissingError(p.path)
		}
		return nil, fmt.Errorf("failed to open plan file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.New(errors.ErrCodePlanInvalid, "Plan file is not valid CSV").
			WithContext("path", p.path)
	}
	if len(records) == 0 {
		return nil, errors.New(errors.ErrCodePlanInvalid, "Plan file is empty").
			WithContext("path", p.path)
	}

	entries := make([]Entry, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != len(csvHeader) {
			return nil, errors.New(errors.ErrCodePlanInvalid,
				fmt.Sprintf("Plan record %d has %d fields, want %d", i+2, len(record), len(csvHeader))).
				WithContext("path", p.path)
		}

		rowCount, err := strconv.ParseInt(record[2], 10, 64)
		if err != nil {
			return nil, errors.New(errors.ErrCodePlanInvalid, "Plan record has non-numeric row count").
				WithContext("record", i+2)
		}
		colCount, _ := strconv.Atoi(record[3])
		domainScore, _ := strconv.Atoi(record[5])
		priority, _ := strconv.ParseFloat(record[6], 64)

		entries = append(entries, Entry{
			Schema:        record[0],
			Name:          record[1],
			RowCount:      rowCount,
			ColumnCount:   colCount,
			Domain:        record[4],
			DomainScore:   domainScore,
			PriorityScore: priority,
		})
	}

	return entries, nil
}

// Remaining filters out entries whose derived target already exists in
// the warehouse.
func Remaining(entries []Entry, existing map[string]bool) []Entry {
	var out []Entry
	for _, e := range entries {
		if !existing[e.TargetName()] {
			out = append(out, e)
		}
	}
	return out
}

// NextBatch returns the first size entries.
func NextBatch(entries []Entry, size int) []Entry {
	if size <= 0 || size >= len(entries) {
		return entries
	}
	return entries[:size]
}

// ByDomain filters entries to one domain tag.
func ByDomain(entries []Entry, domain string) []Entry {
	domain = strings.ToLower(domain)
	var out []Entry
	for _, e := range entries {
		if e.Domain == domain {
			out = append(out, e)
		}
	}
	return out
}

// DomainStats aggregates plan entries per domain for reporting.
type DomainStats struct {
	Domain      string
	Tables      int
	TotalRows   int64
	AvgPriority float64
}

// Summarize rolls entries up by domain, ordered by average priority
// descending.
func Summarize(entries []Entry) []DomainStats {
	byDomain := make(map[string]*DomainStats)
	for _, e := range entries {
		s, ok := byDomain[e.Domain]
		if !ok {
			s = &DomainStats{Domain: e.Domain}
			byDomain[e.Domain] = s
		}
		s.Tables++
		s.TotalRows += e.RowCount
		s.AvgPriority += e.PriorityScore
	}

	out := make([]DomainStats, 0, len(byDomain))
	for _, s := range byDomain {
		s.AvgPriority = math.Round(s.AvgPriority/float64(s.Tables)*10) / 10
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgPriority != out[j].AvgPriority {
			return out[i].AvgPriority > out[j].AvgPriority
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}
