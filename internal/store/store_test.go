package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwlim/sectorpulse/internal/contracts"
	"github.com/jwlim/sectorpulse/pkg/logger"
	"github.com/jwlim/sectorpulse/pkg/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sqlite.Open(":memory:", time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(db, logger.NewNop())
	require.NoError(t, err)
	return s
}

func date(s string) time.Time {
	d, _ := time.Parse(contracts.DateLayout, s)
	return d
}

func bar(code, day string, close float64) contracts.Row {
	return contracts.Row{
		"stock_code":  code,
		"trade_date":  day,
		"open_price":  close - 1,
		"high_price":  close + 1,
		"low_price":   close - 2,
		"close_price": close,
		"volume":      int64(1000),
		"turnover":    close * 1000,
	}
}

func TestUpsertBatchAndSelect(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := contracts.Batch{
		Kind: contracts.KindStockDaily,
		Rows: []contracts.Row{
			bar("600519", "2026-08-26", 1700),
			bar("600519", "2026-08-27", 1710),
			bar("600519", "2026-08-28", 1720),
		},
	}

	written, err := s.UpsertBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, written)

	rows, err := s.Select(ctx, contracts.KindStockDaily, contracts.RangeQuery{
		IDs:   []string{"600519"},
		Start: date("2026-08-26"),
		End:   date("2026-08-28"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Ascending date order
	assert.Equal(t, "2026-08-26", rows[0].String("trade_date"))
	assert.Equal(t, "2026-08-28", rows[2].String("trade_date"))
	assert.Equal(t, 1720.0, rows[2].Float("close_price"))

	// Every row carries the ingestion timestamp
	assert.Greater(t, rows[0].Int("ingested_at"), int64(0))
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := contracts.Batch{
		Kind: contracts.KindStockDaily,
		Rows: []contracts.Row{
			bar("600519", "2026-08-27", 1710),
			bar("600519", "2026-08-28", 1720),
		},
	}

	_, err := s.UpsertBatch(ctx, batch)
	require.NoError(t, err)

	// Same batch again: same row count, same content
	_, err = s.UpsertBatch(ctx, batch)
	require.NoError(t, err)

	rows, err := s.Select(ctx, contracts.KindStockDaily, contracts.RangeQuery{
		IDs:   []string{"600519"},
		Start: date("2026-08-01"),
		End:   date("2026-08-31"),
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 1720.0, rows[1].Float("close_price"))
}

func TestReplaceNotAppend(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := contracts.Batch{
		Kind: contracts.KindStockDaily,
		Rows: []contracts.Row{bar("600519", "2026-08-28", 1720)},
	}
	_, err := s.UpsertBatch(ctx, first)
	require.NoError(t, err)

	// Same natural key, different close price
	second := contracts.Batch{
		Kind: contracts.KindStockDaily,
		Rows: []contracts.Row{bar("600519", "2026-08-28", 1725)},
	}
	_, err = s.UpsertBatch(ctx, second)
	require.NoError(t, err)

	rows, err := s.Select(ctx, contracts.KindStockDaily, contracts.RangeQuery{
		IDs:   []string{"600519"},
		Exact: date("2026-08-28"),
	})
	require.NoError(t, err)

	require.Len(t, rows, 1, "store must never hold two rows with one natural key")
	assert.Equal(t, 1725.0, rows[0].Float("close_price"))
}

func TestSelectExactWinsAndMultiID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := contracts.Batch{
		Kind: contracts.KindStockDaily,
		Rows: []contracts.Row{
			bar("600519", "2026-08-27", 1710),
			bar("600519", "2026-08-28", 1720),
			bar("000858", "2026-08-28", 152),
			bar("601318", "2026-08-28", 55),
		},
	}
	_, err := s.UpsertBatch(ctx, batch)
	require.NoError(t, err)

	// Exact date beats the range when both are present
	rows, err := s.Select(ctx, contracts.KindStockDaily, contracts.RangeQuery{
		IDs:   []string{"600519"},
		Exact: date("2026-08-28"),
		Start: date("2026-08-01"),
		End:   date("2026-08-31"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026-08-28", rows[0].String("trade_date"))

	// Multi-id IN filter
	rows, err = s.Select(ctx, contracts.KindStockDaily, contracts.RangeQuery{
		IDs:   []string{"600519", "000858"},
		Exact: date("2026-08-28"),
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSelectDescending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := contracts.Batch{
		Kind: contracts.KindIndexDaily,
		Rows: []contracts.Row{
			{"trade_date": "2026-08-26", "index_id": "BK0475", "close_price": 1010.0},
			{"trade_date": "2026-08-27", "index_id": "BK0475", "close_price": 1020.0},
			{"trade_date": "2026-08-28", "index_id": "BK0475", "close_price": 1030.0},
		},
	}
	_, err := s.UpsertBatch(ctx, batch)
	require.NoError(t, err)

	rows, err := s.Select(ctx, contracts.KindIndexDaily, contracts.RangeQuery{
		IDs:   []string{"BK0475"},
		Start: date("2026-08-26"),
		End:   date("2026-08-28"),
		Desc:  true,
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2026-08-28", rows[0].String("trade_date"))
	assert.Equal(t, "2026-08-26", rows[2].String("trade_date"))
}

func TestSpans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := contracts.Batch{
		Kind: contracts.KindStockDaily,
		Rows: []contracts.Row{
			bar("600519", "2026-08-20", 1700),
			bar("600519", "2026-08-28", 1720),
			bar("000858", "2026-08-25", 150),
		},
	}
	_, err := s.UpsertBatch(ctx, batch)
	require.NoError(t, err)

	spans, err := s.Spans(ctx, contracts.KindStockDaily, []string{"600519", "000858", "999999"})
	require.NoError(t, err)

	require.Contains(t, spans, "600519")
	assert.Equal(t, date("2026-08-20"), spans["600519"].Min)
	assert.Equal(t, date("2026-08-28"), spans["600519"].Max)

	require.Contains(t, spans, "000858")
	assert.Equal(t, date("2026-08-25"), spans["000858"].Min)

	// Unknown id has no witness at all
	assert.NotContains(t, spans, "999999")
}

func TestSpanMonotonicity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertBatch(ctx, contracts.Batch{
		Kind: contracts.KindStockDaily,
		Rows: []contracts.Row{
			bar("600519", "2026-08-20", 1700),
			bar("600519", "2026-08-28", 1720),
		},
	})
	require.NoError(t, err)

	spans, err := s.Spans(ctx, contracts.KindStockDaily, []string{"600519"})
	require.NoError(t, err)
	require.True(t, spans["600519"].Covers(date("2026-08-20"), date("2026-08-28")))

	// Upsert inside the bracket: coverage must survive, including sub-ranges
	_, err = s.UpsertBatch(ctx, contracts.Batch{
		Kind: contracts.KindStockDaily,
		Rows: []contracts.Row{bar("600519", "2026-08-24", 1715)},
	})
	require.NoError(t, err)

	spans, err = s.Spans(ctx, contracts.KindStockDaily, []string{"600519"})
	require.NoError(t, err)
	assert.True(t, spans["600519"].Covers(date("2026-08-20"), date("2026-08-28")))
	assert.True(t, spans["600519"].Covers(date("2026-08-22"), date("2026-08-26")))
}

func TestExistsAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertBatch(ctx, contracts.Batch{
		Kind: contracts.KindBoardMember,
		Rows: []contracts.Row{
			{"board_id": "BK0475", "trade_date": "2026-08-28", "stock_code": "600519", "stock_name": "贵州茅台", "weight": 0.12},
			{"board_id": "BK0475", "trade_date": "2026-08-28", "stock_code": "000858", "stock_name": "五粮液", "weight": 0.08},
		},
	})
	require.NoError(t, err)

	exists, err := s.Exists(ctx, contracts.KindBoardMember, "BK0475")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.Exists(ctx, contracts.KindBoardMember, "BK9999")
	require.NoError(t, err)
	assert.False(t, exists)

	deleted, err := s.DeleteByID(ctx, contracts.KindBoardMember, "BK0475")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	exists, err = s.Exists(ctx, contracts.KindBoardMember, "BK0475")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMalformedBatchWritesNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := contracts.Batch{
		Kind: contracts.KindStockDaily,
		Rows: []contracts.Row{
			bar("600519", "2026-08-27", 1710),
			{"close_price": 1720.0}, // missing both key columns
		},
	}

	_, err := s.UpsertBatch(ctx, batch)
	require.Error(t, err)

	var malformed *contracts.MalformedBatchError
	require.ErrorAs(t, err, &malformed)

	// The valid row of the rejected batch must not have been written
	rows, err := s.Select(ctx, contracts.KindStockDaily, contracts.RangeQuery{
		IDs:   []string{"600519"},
		Exact: date("2026-08-27"),
	})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
