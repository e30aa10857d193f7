package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwlim/sectorpulse/internal/contracts"
	"github.com/jwlim/sectorpulse/pkg/logger"
)

// fakeReader serves canned rows per entity kind and records the windows it
// was asked for
type fakeReader struct {
	calendarRows  []contracts.Row
	calendarErr   error
	benchmarkRows []contracts.Row
	benchmarkErr  error

	// rows served only when the requested window is at least this wide
	wideCalendarRows []contracts.Row
	wideThresholdDays int

	windows []int // requested window widths in days
}

func (f *fakeReader) FetchOrServe(ctx context.Context, kind contracts.Kind, query contracts.RangeQuery) ([]contracts.Row, bool, error) {
	width := int(query.End.Sub(query.Start).Hours() / 24)
	f.windows = append(f.windows, width)

	switch kind.Name {
	case contracts.KindTradeCalendar.Name:
		if f.calendarErr != nil {
			return nil, false, f.calendarErr
		}
		if f.wideCalendarRows != nil && width >= f.wideThresholdDays {
			return f.wideCalendarRows, true, nil
		}
		return f.calendarRows, true, nil
	case contracts.KindIndexDaily.Name:
		if f.benchmarkErr != nil {
			return nil, false, f.benchmarkErr
		}
		return f.benchmarkRows, true, nil
	}
	return nil, false, nil
}

func calRow(day string, open int64) contracts.Row {
	return contracts.Row{"exchange": "SSE", "trade_date": day, "is_open": open}
}

func idxRow(day string) contracts.Row {
	return contracts.Row{"trade_date": day, "index_id": "000300", "close_price": 4000.0}
}

func date(s string) time.Time {
	d, _ := time.Parse(contracts.DateLayout, s)
	return d
}

func newResolver(reader contracts.RangeReader) *Resolver {
	return New(reader, "SSE", "000300", logger.NewNop())
}

func TestResolveFromCalendar(t *testing.T) {
	reader := &fakeReader{
		calendarRows: []contracts.Row{
			calRow("2026-08-24", 1),
			calRow("2026-08-25", 1),
			calRow("2026-08-26", 1),
			calRow("2026-08-27", 1),
			calRow("2026-08-28", 1),
			calRow("2026-08-29", 0), // Saturday
			calRow("2026-08-30", 0), // Sunday
		},
	}
	r := newResolver(reader)

	dates, err := r.ResolveTradingDates(context.Background(), date("2026-08-30"), 3)
	require.NoError(t, err)

	require.Len(t, dates, 3)
	assert.Equal(t, date("2026-08-28"), dates[0], "most recent open day first")
	assert.Equal(t, date("2026-08-27"), dates[1])
	assert.Equal(t, date("2026-08-26"), dates[2])
}

func TestResolveFiltersFutureDates(t *testing.T) {
	reader := &fakeReader{
		calendarRows: []contracts.Row{
			calRow("2026-08-27", 1),
			calRow("2026-08-28", 1),
			calRow("2026-08-31", 1), // after asOf
		},
	}
	r := newResolver(reader)

	dates, err := r.ResolveTradingDates(context.Background(), date("2026-08-28"), 2)
	require.NoError(t, err)

	require.Len(t, dates, 2)
	assert.Equal(t, date("2026-08-28"), dates[0])
	assert.Equal(t, date("2026-08-27"), dates[1])
}

func TestResolveFallsBackToBenchmark(t *testing.T) {
	reader := &fakeReader{
		calendarErr: errors.New("calendar endpoint down"),
		benchmarkRows: []contracts.Row{
			idxRow("2026-08-26"),
			idxRow("2026-08-27"),
			idxRow("2026-08-28"),
		},
	}
	r := newResolver(reader)

	dates, err := r.ResolveTradingDates(context.Background(), date("2026-08-28"), 3)
	require.NoError(t, err)

	require.Len(t, dates, 3)
	assert.Equal(t, date("2026-08-28"), dates[0])
}

func TestResolveEmptyCalendarUsesBenchmark(t *testing.T) {
	reader := &fakeReader{
		calendarRows: nil,
		benchmarkRows: []contracts.Row{
			idxRow("2026-08-27"),
			idxRow("2026-08-28"),
		},
	}
	r := newResolver(reader)

	dates, err := r.ResolveTradingDates(context.Background(), date("2026-08-28"), 2)
	require.NoError(t, err)
	assert.Len(t, dates, 2)
}

func TestResolveWidensOnThinHistory(t *testing.T) {
	// The narrow window sees one date; only the doubled window sees three
	reader := &fakeReader{
		calendarRows: []contracts.Row{
			calRow("2026-08-28", 1),
		},
		wideCalendarRows: []contracts.Row{
			calRow("2026-08-26", 1),
			calRow("2026-08-27", 1),
			calRow("2026-08-28", 1),
		},
		wideThresholdDays: 45,
	}
	r := newResolver(reader)

	dates, err := r.ResolveTradingDates(context.Background(), date("2026-08-28"), 3)
	require.NoError(t, err)

	require.Len(t, dates, 3)
	assert.Equal(t, date("2026-08-28"), dates[0])

	// First window is the default, the retry doubles it
	require.GreaterOrEqual(t, len(reader.windows), 2)
	assert.Greater(t, reader.windows[len(reader.windows)-1], reader.windows[0])
}

func TestResolveStillDegenerateKeepsHead(t *testing.T) {
	// Even the widened window only ever sees a single date
	reader := &fakeReader{
		calendarRows: []contracts.Row{
			calRow("2026-08-28", 1),
		},
	}
	r := newResolver(reader)

	dates, err := r.ResolveTradingDates(context.Background(), date("2026-08-28"), 3)
	require.NoError(t, err)

	// Positions 1 and 2 are absent rather than an error
	require.Len(t, dates, 1)
	assert.Equal(t, date("2026-08-28"), dates[0])
}

func TestResolveNothingResolvableIsAnError(t *testing.T) {
	reader := &fakeReader{}
	r := newResolver(reader)

	_, err := r.ResolveTradingDates(context.Background(), date("2026-08-28"), 3)
	require.Error(t, err)
}

func TestResolveRejectsNonPositiveCount(t *testing.T) {
	r := newResolver(&fakeReader{})

	_, err := r.ResolveTradingDates(context.Background(), date("2026-08-28"), 0)
	require.Error(t, err)
}

func TestResolveSingleDateRequested(t *testing.T) {
	reader := &fakeReader{
		calendarRows: []contracts.Row{
			calRow("2026-08-27", 1),
			calRow("2026-08-28", 1),
		},
	}
	r := newResolver(reader)

	dates, err := r.ResolveTradingDates(context.Background(), date("2026-08-28"), 1)
	require.NoError(t, err)

	require.Len(t, dates, 1)
	assert.Equal(t, date("2026-08-28"), dates[0])
}
