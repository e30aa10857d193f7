package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwlim/sectorpulse/internal/contracts"
	"github.com/jwlim/sectorpulse/internal/store"
	"github.com/jwlim/sectorpulse/pkg/logger"
	"github.com/jwlim/sectorpulse/pkg/sqlite"
)

// fakeGateway serves canned batches and counts calls
type fakeGateway struct {
	calls   int32
	batches map[string]contracts.Batch // keyed by first id
	err     error
}

func (g *fakeGateway) Fetch(ctx context.Context, kind contracts.Kind, query contracts.RangeQuery) (contracts.Batch, error) {
	atomic.AddInt32(&g.calls, 1)
	if g.err != nil {
		return contracts.Batch{}, g.err
	}
	if b, ok := g.batches[query.IDs[0]]; ok {
		return b, nil
	}
	return contracts.Batch{Kind: kind}, nil
}

func (g *fakeGateway) callCount() int32 {
	return atomic.LoadInt32(&g.calls)
}

func date(s string) time.Time {
	d, _ := time.Parse(contracts.DateLayout, s)
	return d
}

func newTestCache(t *testing.T, gw contracts.ProviderGateway) *Cache {
	t.Helper()

	db, err := sqlite.Open(":memory:", time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st, err := store.New(db, logger.NewNop())
	require.NoError(t, err)

	return New(st, gw, logger.NewNop())
}

func indexBatch(id string, days ...string) contracts.Batch {
	rows := make([]contracts.Row, 0, len(days))
	for i, d := range days {
		rows = append(rows, contracts.Row{
			"trade_date":  d,
			"index_id":    id,
			"close_price": 1000.0 + float64(i)*10,
		})
	}
	return contracts.Batch{Kind: contracts.KindIndexDaily, Rows: rows}
}

func TestMissThenHit(t *testing.T) {
	gw := &fakeGateway{batches: map[string]contracts.Batch{
		"BK0475": indexBatch("BK0475", "2026-08-26", "2026-08-27", "2026-08-28"),
	}}
	c := newTestCache(t, gw)
	ctx := context.Background()

	query := contracts.RangeQuery{
		IDs:   []string{"BK0475"},
		Start: date("2026-08-26"),
		End:   date("2026-08-28"),
	}

	// Never-seen key: exactly one gateway call
	rows, fromCache, err := c.FetchOrServe(ctx, contracts.KindIndexDaily, query)
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Len(t, rows, 3)
	assert.Equal(t, int32(1), gw.callCount())

	// Identical repeat: zero further gateway calls
	rows, fromCache, err = c.FetchOrServe(ctx, contracts.KindIndexDaily, query)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Len(t, rows, 3)
	assert.Equal(t, int32(1), gw.callCount())

	// Sub-range of a complete bracket is also a hit
	sub := contracts.RangeQuery{
		IDs:   []string{"BK0475"},
		Start: date("2026-08-27"),
		End:   date("2026-08-28"),
	}
	rows, fromCache, err = c.FetchOrServe(ctx, contracts.KindIndexDaily, sub)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Len(t, rows, 2)
	assert.Equal(t, int32(1), gw.callCount())
}

func TestWiderRangeIsMiss(t *testing.T) {
	gw := &fakeGateway{batches: map[string]contracts.Batch{
		"BK0475": indexBatch("BK0475", "2026-08-25", "2026-08-26", "2026-08-27", "2026-08-28"),
	}}
	c := newTestCache(t, gw)
	ctx := context.Background()

	_, _, err := c.FetchOrServe(ctx, contracts.KindIndexDaily, contracts.RangeQuery{
		IDs:   []string{"BK0475"},
		Start: date("2026-08-26"),
		End:   date("2026-08-28"),
	})
	require.NoError(t, err)
	require.Equal(t, int32(1), gw.callCount())

	// Witness does not bracket the widened start: refetch
	rows, fromCache, err := c.FetchOrServe(ctx, contracts.KindIndexDaily, contracts.RangeQuery{
		IDs:   []string{"BK0475"},
		Start: date("2026-08-25"),
		End:   date("2026-08-28"),
	})
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Len(t, rows, 4)
	assert.Equal(t, int32(2), gw.callCount())
}

func TestMultiIDRequiresEveryWitness(t *testing.T) {
	gw := &fakeGateway{batches: map[string]contracts.Batch{
		"BK0475": {
			Kind: contracts.KindIndexDaily,
			Rows: append(
				indexBatch("BK0475", "2026-08-27", "2026-08-28").Rows,
				indexBatch("BK0428", "2026-08-27", "2026-08-28").Rows...,
			),
		},
	}}
	c := newTestCache(t, gw)
	ctx := context.Background()

	// Seed only one of the two ids
	_, _, err := c.FetchOrServe(ctx, contracts.KindIndexDaily, contracts.RangeQuery{
		IDs:   []string{"BK0475"},
		Start: date("2026-08-27"),
		End:   date("2026-08-28"),
	})
	require.NoError(t, err)

	// Multi-id query: the second id has no witness, so this is a miss
	rows, fromCache, err := c.FetchOrServe(ctx, contracts.KindIndexDaily, contracts.RangeQuery{
		IDs:   []string{"BK0475", "BK0428"},
		Start: date("2026-08-27"),
		End:   date("2026-08-28"),
	})
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Len(t, rows, 4)
	assert.Equal(t, int32(2), gw.callCount())
}

func TestProviderFailureServesCachedRows(t *testing.T) {
	gw := &fakeGateway{batches: map[string]contracts.Batch{
		"BK0475": indexBatch("BK0475", "2026-08-27", "2026-08-28"),
	}}
	c := newTestCache(t, gw)
	ctx := context.Background()

	_, _, err := c.FetchOrServe(ctx, contracts.KindIndexDaily, contracts.RangeQuery{
		IDs:   []string{"BK0475"},
		Start: date("2026-08-27"),
		End:   date("2026-08-28"),
	})
	require.NoError(t, err)

	// Provider breaks; a wider request must surface the error but still
	// hand back the rows the store already held.
	gw.err = errors.New("connection reset")

	rows, fromCache, err := c.FetchOrServe(ctx, contracts.KindIndexDaily, contracts.RangeQuery{
		IDs:   []string{"BK0475"},
		Start: date("2026-08-20"),
		End:   date("2026-08-28"),
	})
	require.Error(t, err)
	assert.True(t, contracts.IsTransient(err))
	assert.False(t, fromCache)
	assert.Len(t, rows, 2, "previously cached rows survive a transient failure")
}

func TestEmptyEverywhereIsNotAnError(t *testing.T) {
	gw := &fakeGateway{batches: map[string]contracts.Batch{}}
	c := newTestCache(t, gw)

	rows, fromCache, err := c.FetchOrServe(context.Background(), contracts.KindIndexDaily, contracts.RangeQuery{
		IDs:   []string{"BK9999"},
		Start: date("2026-08-27"),
		End:   date("2026-08-28"),
	})
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Empty(t, rows)
}

func TestMalformedBatchIsRejected(t *testing.T) {
	db, err := sqlite.Open(":memory:", time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st, err := store.New(db, logger.NewNop())
	require.NoError(t, err)

	gw := &fakeGateway{batches: map[string]contracts.Batch{
		"BK0475": {
			Kind: contracts.KindIndexDaily,
			Rows: []contracts.Row{
				{"close_price": 1000.0}, // no key columns at all
			},
		},
	}}
	c := New(st, gw, logger.NewNop())
	ctx := context.Background()

	_, _, err = c.FetchOrServe(ctx, contracts.KindIndexDaily, contracts.RangeQuery{
		IDs:   []string{"BK0475"},
		Start: date("2026-08-27"),
		End:   date("2026-08-28"),
	})
	require.Error(t, err)

	var malformed *contracts.MalformedBatchError
	assert.ErrorAs(t, err, &malformed)

	// Nothing may have been written
	rows, err := st.Select(ctx, contracts.KindIndexDaily, contracts.RangeQuery{
		IDs:   []string{"BK0475"},
		Start: date("2026-08-01"),
		End:   date("2026-08-31"),
	})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestExactDateHitAfterFill(t *testing.T) {
	gw := &fakeGateway{batches: map[string]contracts.Batch{
		"BK0475": indexBatch("BK0475", "2026-08-28"),
	}}
	c := newTestCache(t, gw)
	ctx := context.Background()

	query := contracts.RangeQuery{IDs: []string{"BK0475"}, Exact: date("2026-08-28")}

	_, fromCache, err := c.FetchOrServe(ctx, contracts.KindIndexDaily, query)
	require.NoError(t, err)
	assert.False(t, fromCache)

	_, fromCache, err = c.FetchOrServe(ctx, contracts.KindIndexDaily, query)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, int32(1), gw.callCount())
}

func TestExactDateMultiIDRequiresEveryID(t *testing.T) {
	gw := &fakeGateway{batches: map[string]contracts.Batch{
		"BK0475": indexBatch("BK0475", "2026-08-28"),
	}}
	c := newTestCache(t, gw)
	ctx := context.Background()

	// Warm only BK0475 for the date
	_, _, err := c.FetchOrServe(ctx, contracts.KindIndexDaily, contracts.RangeQuery{
		IDs: []string{"BK0475"}, Exact: date("2026-08-28"),
	})
	require.NoError(t, err)
	require.Equal(t, int32(1), gw.callCount())

	gw.batches["BK0475"] = contracts.Batch{
		Kind: contracts.KindIndexDaily,
		Rows: append(
			indexBatch("BK0475", "2026-08-28").Rows,
			indexBatch("BK0428", "2026-08-28").Rows...,
		),
	}

	// BK0428 has no row for the date, so the combined query must refetch
	query := contracts.RangeQuery{IDs: []string{"BK0475", "BK0428"}, Exact: date("2026-08-28")}
	rows, fromCache, err := c.FetchOrServe(ctx, contracts.KindIndexDaily, query)
	require.NoError(t, err)
	assert.False(t, fromCache, "one uncached id must turn the whole query into a miss")
	assert.Len(t, rows, 2)
	assert.Equal(t, int32(2), gw.callCount())

	// Both ids now have the date: hit without another provider call
	rows, fromCache, err = c.FetchOrServe(ctx, contracts.KindIndexDaily, query)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Len(t, rows, 2)
	assert.Equal(t, int32(2), gw.callCount())
}
