package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jwlim/sectorpulse/internal/contracts"
	"github.com/jwlim/sectorpulse/pkg/logger"
)

// resolveState tracks the bounded-retry resolution state machine
type resolveState int

const (
	stateResolving resolveState = iota
	stateDegenerate
	stateWidenedRetry
	stateResolved
	statePartiallyResolved
)

func (s resolveState) String() string {
	switch s {
	case stateResolving:
		return "resolving"
	case stateDegenerate:
		return "degenerate"
	case stateWidenedRetry:
		return "widened_retry"
	case stateResolved:
		return "resolved"
	case statePartiallyResolved:
		return "partially_resolved"
	default:
		return "unknown"
	}
}

// defaultLookbackDays is the initial calendar window behind asOf. Wide
// enough to cover long holiday stretches before any widening.
const defaultLookbackDays = 30

// Resolver resolves a nominal as-of date into the actual trading dates at
// and before it. Primary source is the provider's trading calendar served
// through the cache; when that is unavailable or empty it falls back to the
// benchmark index's own observed dates, which are trading dates by
// construction. The resolver owns no state in the entity store; it only
// causes cache fills.
type Resolver struct {
	reader       contracts.RangeReader
	exchange     string
	benchmarkID  string
	logger       *logger.Logger
	lookbackDays int
}

// New creates a resolver over the range-completeness cache
func New(reader contracts.RangeReader, exchange, benchmarkID string, log *logger.Logger) *Resolver {
	return &Resolver{
		reader:       reader,
		exchange:     exchange,
		benchmarkID:  benchmarkID,
		logger:       log,
		lookbackDays: defaultLookbackDays,
	}
}

var _ contracts.CalendarResolver = (*Resolver)(nil)

// ResolveTradingDates returns up to count trading dates ending at asOf,
// most recent first. The result may be shorter when history is thin. A
// degenerate first resolution (duplicate head or fewer than two dates)
// doubles the lookback window and retries once; a still-degenerate retry
// returns the partially resolved head instead of erroring.
func (r *Resolver) ResolveTradingDates(ctx context.Context, asOf time.Time, count int) ([]time.Time, error) {
	if count <= 0 {
		return nil, fmt.Errorf("trading date count must be positive, got %d", count)
	}

	state := stateResolving
	lookback := r.lookbackDays

	dates, err := r.resolveOnce(ctx, asOf, count, lookback)
	if err != nil {
		return nil, err
	}

	if !degenerate(dates, count) {
		state = stateResolved
		r.logState(state, asOf, dates)
		return dates, nil
	}

	state = stateDegenerate
	r.logState(state, asOf, dates)

	// Double the window and retry exactly once
	state = stateWidenedRetry
	lookback *= 2
	widened, err := r.resolveOnce(ctx, asOf, count, lookback)
	if err == nil && len(widened) > 0 {
		dates = widened
	}

	if !degenerate(dates, count) {
		state = stateResolved
		r.logState(state, asOf, dates)
		return dates, nil
	}

	// Still degenerate: keep the resolved head, drop the suspect tail.
	// Downstream velocity composition simply omits those comparisons.
	state = statePartiallyResolved
	if len(dates) == 0 {
		return nil, fmt.Errorf("no trading date resolvable at or before %s",
			asOf.Format(contracts.DateLayout))
	}

	head := dates[:1]
	r.logState(state, asOf, head)
	return head, nil
}

// resolveOnce performs one resolution pass over a lookback window
func (r *Resolver) resolveOnce(ctx context.Context, asOf time.Time, count, lookbackDays int) ([]time.Time, error) {
	start := asOf.AddDate(0, 0, -lookbackDays)

	dates, err := r.fromCalendar(ctx, start, asOf)
	if err != nil || len(dates) == 0 {
		if err != nil {
			r.logger.WithError(err).Warn("Calendar source unavailable, falling back to benchmark dates")
		}
		dates, err = r.fromBenchmark(ctx, start, asOf)
		if err != nil {
			return nil, fmt.Errorf("resolve trading dates: %w", err)
		}
	}

	dates = dedupeDesc(dates, asOf)
	if len(dates) > count {
		dates = dates[:count]
	}

	return dates, nil
}

// fromCalendar reads open days from the provider trading calendar
func (r *Resolver) fromCalendar(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	rows, _, err := r.reader.FetchOrServe(ctx, contracts.KindTradeCalendar, contracts.RangeQuery{
		IDs:   []string{r.exchange},
		Start: start,
		End:   end,
	})
	if err != nil {
		return nil, err
	}

	var dates []time.Time
	for _, row := range rows {
		if row.Int("is_open") != 1 {
			continue
		}
		d, err := row.Date("trade_date")
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}

	return dates, nil
}

// fromBenchmark derives trading dates from the benchmark index's own
// observed snapshot dates
func (r *Resolver) fromBenchmark(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	rows, _, err := r.reader.FetchOrServe(ctx, contracts.KindIndexDaily, contracts.RangeQuery{
		IDs:   []string{r.benchmarkID},
		Start: start,
		End:   end,
	})
	if err != nil {
		return nil, err
	}

	var dates []time.Time
	for _, row := range rows {
		d, err := row.Date("trade_date")
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}

	return dates, nil
}

// dedupeDesc filters dates after asOf, sorts most recent first and drops
// duplicates
func dedupeDesc(dates []time.Time, asOf time.Time) []time.Time {
	seen := make(map[string]bool, len(dates))
	out := make([]time.Time, 0, len(dates))

	for _, d := range dates {
		if d.After(asOf) {
			continue
		}
		key := d.Format(contracts.DateLayout)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out
}

// degenerate reports whether a resolution needs the widened retry: a
// duplicated head or fewer than two dates when more were requested
func degenerate(dates []time.Time, count int) bool {
	if len(dates) >= 2 && dates[0].Equal(dates[1]) {
		return true
	}
	if count >= 2 && len(dates) < 2 {
		return true
	}
	return false
}

func (r *Resolver) logState(state resolveState, asOf time.Time, dates []time.Time) {
	r.logger.WithFields(map[string]interface{}{
		"state": state.String(),
		"as_of": asOf.Format(contracts.DateLayout),
		"count": len(dates),
	}).Debug("Trading date resolution")
}
