package contracts

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical trading-date encoding. Dates are stored as
// ISO text so lexicographic order in SQLite matches chronological order.
const DateLayout = "2006-01-02"

// Row is one entity record keyed by column name. Values come either from a
// provider batch or from a store read; store reads normalize types to
// string / int64 / float64.
type Row map[string]interface{}

// String returns a column as string
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Float returns a column as float64
func (r Row) Float(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

// Int returns a column as int64
func (r Row) Int(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Date parses a column as a trading date
func (r Row) Date(col string) (time.Time, error) {
	return time.Parse(DateLayout, r.String(col))
}

// Batch is a tabular result of one provider fetch or store read
type Batch struct {
	Kind Kind
	Rows []Row
}

// RangeQuery is a logical request for entity rows: one or more entity ids
// and either an exact date or a [Start,End] range. When both an exact date
// and a range are given, the exact date wins.
type RangeQuery struct {
	IDs   []string
	Exact time.Time // zero when unset
	Start time.Time
	End   time.Time
	Desc  bool // ordering of the result by date
}

// IsExact reports whether the query targets a single date
func (q RangeQuery) IsExact() bool {
	return !q.Exact.IsZero()
}

// HasRange reports whether the query carries a [Start,End] pair
func (q RangeQuery) HasRange() bool {
	return !q.Start.IsZero() && !q.End.IsZero()
}

// Validate checks id presence and range ordering
func (q RangeQuery) Validate() error {
	if len(q.IDs) == 0 {
		return fmt.Errorf("range query requires at least one entity id")
	}
	for _, id := range q.IDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("range query contains an empty entity id")
		}
	}
	if q.IsExact() {
		return nil
	}
	if q.HasRange() && q.End.Before(q.Start) {
		return fmt.Errorf("range query end %s precedes start %s",
			q.End.Format(DateLayout), q.Start.Format(DateLayout))
	}
	return nil
}

// Span is the completeness witness for one entity id: the min and max
// trading date present in the store. A zero span means no rows.
type Span struct {
	ID  string
	Min time.Time
	Max time.Time
}

// Covers reports whether the span brackets [start, end]. The check is
// coarse on purpose: ingestion always writes full provider-side ranges,
// so a bracketing span has no interior gaps.
func (s Span) Covers(start, end time.Time) bool {
	if s.Min.IsZero() || s.Max.IsZero() {
		return false
	}
	return !s.Min.After(start) && !s.Max.Before(end)
}
