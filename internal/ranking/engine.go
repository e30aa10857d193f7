package ranking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jwlim/sectorpulse/internal/contracts"
	"github.com/jwlim/sectorpulse/pkg/logger"
)

// Score weights: the 2-day alpha dominates, the 5-day alpha confirms.
// When the 5-day alpha is undefined the score degrades to the 2-day
// alpha alone.
const (
	weightAlpha2D = 0.6
	weightAlpha5D = 0.4
)

// minSessions is the history depth needed for the longest horizon (5
// sessions back requires 6 closes)
const minSessions = 6

// Engine computes a cross-sectional relative-strength ranking for one
// trading date. Per-entity history is fetched through the
// range-completeness cache with a bounded worker pool; a failed or
// data-poor entity is skipped with a recorded reason and never aborts
// the batch.
type Engine struct {
	reader      contracts.RangeReader
	logger      *logger.Logger
	historyDays int
	workers     int
}

// New creates a ranking engine over the cache
func New(reader contracts.RangeReader, historyDays, workers int, log *logger.Logger) *Engine {
	if historyDays < minSessions {
		historyDays = minSessions * 2
	}
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		reader:      reader,
		logger:      log,
		historyDays: historyDays,
		workers:     workers,
	}
}

// entityOutcome is one worker's result for one entity
type entityOutcome struct {
	row  *contracts.RankingRow
	skip *contracts.SkipReason
}

// Rank computes the ranking of the universe against the benchmark for one
// trading date. The benchmark history is fetched once and shared. On
// cancellation the ranking computed from the entities that completed is
// returned, marked incomplete.
func (e *Engine) Rank(ctx context.Context, universe []string, benchmarkID string, asOf time.Time) (*contracts.RankingResult, error) {
	if len(universe) == 0 {
		return nil, fmt.Errorf("ranking universe is empty")
	}

	benchmark, err := e.closes(ctx, benchmarkID, asOf)
	if err != nil {
		return nil, fmt.Errorf("fetch benchmark %s history: %w", benchmarkID, err)
	}

	benchReturns := periodReturns(benchmark.prices)

	outcomes := make(map[string]entityOutcome, len(universe))
	var mu sync.Mutex

	ids := make(chan string)
	var wg sync.WaitGroup

	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				outcome := e.rankOne(ctx, id, asOf, benchReturns)
				mu.Lock()
				outcomes[id] = outcome
				mu.Unlock()
			}
		}()
	}

	incomplete := false
dispatch:
	for _, id := range universe {
		select {
		case <-ctx.Done():
			incomplete = true
			break dispatch
		case ids <- id:
		}
	}
	close(ids)
	wg.Wait()

	result := &contracts.RankingResult{AsOf: asOf}

	// Assemble in universe order so ties keep a stable input order
	for _, id := range universe {
		outcome, ok := outcomes[id]
		if !ok {
			result.Skipped = append(result.Skipped, contracts.SkipReason{
				ID: id, Reason: "cancelled before fetch",
			})
			continue
		}
		if outcome.skip != nil {
			result.Skipped = append(result.Skipped, *outcome.skip)
			continue
		}
		result.Rows = append(result.Rows, *outcome.row)
	}
	result.Incomplete = incomplete

	if len(result.Rows) == 0 {
		if incomplete {
			return result, ctx.Err()
		}
		return nil, fmt.Errorf("no entity in a universe of %d could be ranked", len(universe))
	}

	// Stable sort, strongest score first; assign 1-based ranks
	sort.SliceStable(result.Rows, func(i, j int) bool {
		return *result.Rows[i].Score > *result.Rows[j].Score
	})
	for i := range result.Rows {
		result.Rows[i].Rank = i + 1
	}

	e.logger.WithFields(map[string]interface{}{
		"as_of":      asOf.Format(contracts.DateLayout),
		"ranked":     len(result.Rows),
		"skipped":    len(result.Skipped),
		"incomplete": incomplete,
		"top":        result.Rows[0].ID,
	}).Info("Ranking completed")

	return result, nil
}

// rankOne computes one entity's returns, alphas and score. Any failure is
// absorbed into a skip reason.
func (e *Engine) rankOne(ctx context.Context, id string, asOf time.Time, bench horizonReturns) entityOutcome {
	closes, err := e.closes(ctx, id, asOf)
	if err != nil {
		e.logger.WithError(err).WithField("id", id).Warn("Entity skipped")
		return entityOutcome{skip: &contracts.SkipReason{ID: id, Reason: err.Error()}}
	}

	returns := periodReturns(closes.prices)
	alphas := horizonReturns{
		r1: alpha(returns.r1, bench.r1),
		r2: alpha(returns.r2, bench.r2),
		r5: alpha(returns.r5, bench.r5),
	}

	score := compositeScore(alphas.r2, alphas.r5)
	if score == nil {
		return entityOutcome{skip: &contracts.SkipReason{
			ID:     id,
			Reason: fmt.Sprintf("insufficient history: %d session(s)", len(closes.prices)),
		}}
	}

	return entityOutcome{row: &contracts.RankingRow{
		ID:       id,
		Name:     closes.name,
		AsOf:     asOf,
		Return1D: returns.r1,
		Return2D: returns.r2,
		Return5D: returns.r5,
		Alpha1D:  alphas.r1,
		Alpha2D:  alphas.r2,
		Alpha5D:  alphas.r5,
		Score:    score,
	}}
}

// series is an entity's recent close history, most recent first
type series struct {
	name   string
	prices []float64
}

// closes fetches an entity's close history ending at asOf through the
// cache, most recent session first
func (e *Engine) closes(ctx context.Context, id string, asOf time.Time) (series, error) {
	rows, _, err := e.reader.FetchOrServe(ctx, contracts.KindIndexDaily, contracts.RangeQuery{
		IDs:   []string{id},
		Start: asOf.AddDate(0, 0, -e.historyDays),
		End:   asOf,
		Desc:  true,
	})
	if err != nil {
		return series{}, err
	}
	if len(rows) == 0 {
		return series{}, fmt.Errorf("no sessions for %s ending %s: %w",
			id, asOf.Format(contracts.DateLayout), contracts.ErrDataAbsent)
	}

	s := series{name: rows[0].String("index_name")}
	for _, row := range rows {
		close := row.Float("close_price")
		if close <= 0 {
			return series{}, fmt.Errorf("malformed close price for %s on %s",
				id, row.String("trade_date"))
		}
		s.prices = append(s.prices, close)
	}

	return s, nil
}

// horizonReturns carries the 1/2/5-session returns; nil means undefined
type horizonReturns struct {
	r1, r2, r5 *float64
}

// periodReturns computes (p0 - ph) / ph per horizon over prices ordered
// most recent first. A horizon with fewer than h+1 sessions is undefined.
func periodReturns(prices []float64) horizonReturns {
	return horizonReturns{
		r1: periodReturn(prices, 1),
		r2: periodReturn(prices, 2),
		r5: periodReturn(prices, 5),
	}
}

func periodReturn(prices []float64, h int) *float64 {
	if len(prices) < h+1 || prices[h] == 0 {
		return nil
	}
	r := (prices[0] - prices[h]) / prices[h]
	return &r
}

// alpha is entity return minus benchmark return, undefined when either
// operand is undefined
func alpha(entity, benchmark *float64) *float64 {
	if entity == nil || benchmark == nil {
		return nil
	}
	a := *entity - *benchmark
	return &a
}

// compositeScore blends the 2-day and 5-day alphas. With no 5-day alpha
// the score is exactly the 2-day alpha; with no 2-day alpha there is no
// score at all.
func compositeScore(alpha2, alpha5 *float64) *float64 {
	if alpha2 == nil {
		return nil
	}
	if alpha5 == nil {
		s := *alpha2
		return &s
	}
	s := *alpha2*weightAlpha2D + *alpha5*weightAlpha5D
	return &s
}
