package engine

import (
	"sort"
	"strings"

	"github.com/celerix-dev/robot-ops/pkg/schema"
	"github.com/pkg/errors"
)

// Field names a groupable attribute of a state record.
type Field string

const (
	FieldStatus    Field = "status"
	FieldCreatedAt Field = "createdAt"
	FieldUpdatedAt Field = "updatedAt"
)

// Truncation selects how a timestamp is turned into a group key.
type Truncation string

const (
	TruncNone      Truncation = ""
	TruncHour      Truncation = "hour"      // 2024-03-05 14
	TruncDay       Truncation = "day"       // 2024-03-05
	TruncMonth     Truncation = "month"     // 2024-03
	TruncHourOfDay Truncation = "hourOfDay" // 14
)

var truncLayouts = map[Truncation]string{
	TruncHour:      "2006-01-02 15",
	TruncDay:       "2006-01-02",
	TruncMonth:     "2006-01",
	TruncHourOfDay: "15",
}

// Dimension is one component of a group key.
type Dimension struct {
	Field    Field
	Truncate Truncation
}

// SortOrder orders the rows of an aggregation.
type SortOrder int

const (
	// SortKeyAsc orders rows lexicographically by their keys.
	SortKeyAsc SortOrder = iota
	// SortCountDesc orders rows by count, highest first, then by keys.
	SortCountDesc
)

// Pipeline describes a group/filter/sort/limit query over the state records.
type Pipeline struct {
	GroupBy []Dimension
	// ModifiedOnly keeps only records whose updatedAt differs from createdAt.
	ModifiedOnly bool
	Sort         SortOrder
	// Limit caps the number of rows; zero means no limit.
	Limit int
}

// Row is one group of an aggregation result.
type Row struct {
	Keys  []string
	Count int
}

// Validate checks that every dimension can be evaluated by all backends.
func (p Pipeline) Validate() error {
	if len(p.GroupBy) == 0 {
		return errors.Wrap(ErrInvalidPipeline, "no group key")
	}
	if p.Limit < 0 {
		return errors.Wrapf(ErrInvalidPipeline, "negative limit %d", p.Limit)
	}
	for _, d := range p.GroupBy {
		switch d.Field {
		case FieldStatus:
			if d.Truncate != TruncNone {
				return errors.Wrapf(ErrInvalidPipeline, "status cannot be truncated to %q", d.Truncate)
			}
		case FieldCreatedAt, FieldUpdatedAt:
			if _, ok := truncLayouts[d.Truncate]; !ok {
				return errors.Wrapf(ErrInvalidPipeline, "unknown truncation %q for %s", d.Truncate, d.Field)
			}
		default:
			return errors.Wrapf(ErrInvalidPipeline, "unknown field %q", d.Field)
		}
	}
	return nil
}

// key renders the group key of rec for this dimension. Timestamps are keyed in UTC.
func (d Dimension) key(rec schema.StateRecord) string {
	switch d.Field {
	case FieldStatus:
		return string(rec.Status)
	case FieldCreatedAt:
		return rec.CreatedAt.UTC().Format(truncLayouts[d.Truncate])
	case FieldUpdatedAt:
		return rec.UpdatedAt.UTC().Format(truncLayouts[d.Truncate])
	}
	return ""
}

// evaluate runs p over recs in memory. p must already be validated.
func evaluate(p Pipeline, recs []schema.StateRecord) []Row {
	groups := make(map[string]*Row)
	for _, rec := range recs {
		if p.ModifiedOnly && !rec.Modified() {
			continue
		}
		keys := make([]string, len(p.GroupBy))
		for i, d := range p.GroupBy {
			keys[i] = d.key(rec)
		}
		id := strings.Join(keys, "\x00")
		row, ok := groups[id]
		if !ok {
			row = &Row{Keys: keys}
			groups[id] = row
		}
		row.Count++
	}

	rows := make([]Row, 0, len(groups))
	for _, row := range groups {
		rows = append(rows, *row)
	}
	return sortRows(rows, p.Sort, p.Limit)
}

func sortRows(rows []Row, order SortOrder, limit int) []Row {
	sort.SliceStable(rows, func(i, j int) bool {
		if order == SortCountDesc && rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return lessKeys(rows[i].Keys, rows[j].Keys)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func lessKeys(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
