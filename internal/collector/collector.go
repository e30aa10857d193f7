package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jwlim/sectorpulse/internal/contracts"
	"github.com/jwlim/sectorpulse/pkg/logger"
)

// Collector pre-warms the cache ahead of ranking runs. Every fetch goes
// through the range-completeness cache, so a re-run over an already
// collected window costs no provider calls.
// SSOT: bulk collection orchestration lives in this package only
type Collector struct {
	reader contracts.RangeReader
	logger *logger.Logger
}

// Config holds collector configuration
type Config struct {
	Workers     int // Number of concurrent workers
	HistoryDays int // Lookback window per entity
}

// NewCollector creates a new Collector instance
func NewCollector(reader contracts.RangeReader, log *logger.Logger) *Collector {
	return &Collector{
		reader: reader,
		logger: log.WithField("module", "collector"),
	}
}

// FetchResult represents the result of a fetch operation for one entity
type FetchResult struct {
	ID        string
	RowCount  int
	FromCache bool
	Error     error
}

// CollectIndexDaily fills the daily history of the universe plus the
// benchmark over the lookback window ending at asOf
func (c *Collector) CollectIndexDaily(ctx context.Context, universe []string, benchmarkID string, asOf time.Time, cfg Config) ([]FetchResult, error) {
	ids := append(append([]string{}, universe...), benchmarkID)
	from := asOf.AddDate(0, 0, -cfg.HistoryDays)

	c.logger.WithFields(map[string]interface{}{
		"index_count": len(ids),
		"from":        from.Format(contracts.DateLayout),
		"to":          asOf.Format(contracts.DateLayout),
		"workers":     cfg.Workers,
	}).Info("Starting index history collection")

	results := c.collect(ctx, ids, cfg.Workers, func(ctx context.Context, id string) (int, bool, error) {
		rows, cached, err := c.reader.FetchOrServe(ctx, contracts.KindIndexDaily, contracts.RangeQuery{
			IDs:   []string{id},
			Start: from,
			End:   asOf,
		})
		return len(rows), cached, err
	})

	c.logSummary("Index history collection completed", results)
	return results, nil
}

// CollectBoardMembers fills the membership snapshot of each board for the
// asOf date
func (c *Collector) CollectBoardMembers(ctx context.Context, boards []string, asOf time.Time, cfg Config) ([]FetchResult, error) {
	c.logger.WithFields(map[string]interface{}{
		"board_count": len(boards),
		"trade_date":  asOf.Format(contracts.DateLayout),
		"workers":     cfg.Workers,
	}).Info("Starting board member collection")

	results := c.collect(ctx, boards, cfg.Workers, func(ctx context.Context, id string) (int, bool, error) {
		rows, cached, err := c.reader.FetchOrServe(ctx, contracts.KindBoardMember, contracts.RangeQuery{
			IDs:   []string{id},
			Exact: asOf,
		})
		return len(rows), cached, err
	})

	c.logSummary("Board member collection completed", results)
	return results, nil
}

// CollectCalendar fills the trading calendar of one exchange over the
// lookback window ending at asOf
func (c *Collector) CollectCalendar(ctx context.Context, exchange string, asOf time.Time, cfg Config) error {
	from := asOf.AddDate(0, 0, -cfg.HistoryDays)

	rows, cached, err := c.reader.FetchOrServe(ctx, contracts.KindTradeCalendar, contracts.RangeQuery{
		IDs:   []string{exchange},
		Start: from,
		End:   asOf,
	})
	if err != nil {
		return fmt.Errorf("collect calendar %s: %w", exchange, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"exchange":   exchange,
		"days":       len(rows),
		"from_cache": cached,
	}).Info("Calendar collection completed")

	return nil
}

// CollectAll runs the index, member and calendar collections concurrently
func (c *Collector) CollectAll(ctx context.Context, universe []string, benchmarkID, exchange string, asOf time.Time, cfg Config) error {
	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := c.CollectIndexDaily(ctx, universe, benchmarkID, asOf, cfg); err != nil {
			errCh <- fmt.Errorf("collect index histories: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := c.CollectBoardMembers(ctx, universe, asOf, cfg); err != nil {
			errCh <- fmt.Errorf("collect board members: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.CollectCalendar(ctx, exchange, asOf, cfg); err != nil {
			errCh <- err
		}
	}()

	go func() {
		wg.Wait()
		close(errCh)
	}()

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("collection errors: %v", errs)
	}
	return nil
}

// collect fans fetchOne over a bounded worker pool. Per-entity failures
// land in the result slice instead of aborting the run.
func (c *Collector) collect(ctx context.Context, ids []string, workers int, fetchOne func(context.Context, string) (int, bool, error)) []FetchResult {
	if workers < 1 {
		workers = 1
	}

	idCh := make(chan string, len(ids))
	resultCh := make(chan FetchResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for id := range idCh {
				select {
				case <-ctx.Done():
					resultCh <- FetchResult{ID: id, Error: ctx.Err()}
					continue
				default:
				}

				count, cached, err := fetchOne(ctx, id)
				if err != nil {
					c.logger.WithError(err).WithFields(map[string]interface{}{
						"worker": workerID,
						"id":     id,
					}).Error("Failed to collect")
					resultCh <- FetchResult{ID: id, RowCount: count, Error: err}
					continue
				}

				c.logger.WithFields(map[string]interface{}{
					"worker":     workerID,
					"id":         id,
					"count":      count,
					"from_cache": cached,
				}).Debug("Collected")
				resultCh <- FetchResult{ID: id, RowCount: count, FromCache: cached}
			}
		}(i)
	}

	for _, id := range ids {
		idCh <- id
	}
	close(idCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]FetchResult, 0, len(ids))
	for result := range resultCh {
		results = append(results, result)
	}
	return results
}

func (c *Collector) logSummary(msg string, results []FetchResult) {
	success, failed := 0, 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		} else {
			success++
		}
	}
	c.logger.WithFields(map[string]interface{}{
		"success": success,
		"failed":  failed,
		"total":   len(results),
	}).Info(msg)
}
