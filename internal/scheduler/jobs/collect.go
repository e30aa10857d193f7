package jobs

import (
	"context"
	"time"

	"github.com/jwlim/sectorpulse/internal/collector"
	"github.com/jwlim/sectorpulse/pkg/config"
	"github.com/jwlim/sectorpulse/pkg/logger"
)

// defaultExchange is the trading calendar filled by the daily job
const defaultExchange = "SSE"

// collectTimeout bounds one end-of-day collection run
const collectTimeout = 30 * time.Minute

// CollectJob runs the end-of-day collection: index histories for the
// universe and benchmark, board membership snapshots, and the trading
// calendar. Scheduled after the market close so the session's bars are
// final when they land in the store.
type CollectJob struct {
	collector *collector.Collector
	cfg       *config.Config
	logger    *logger.Logger
}

// NewCollectJob creates the daily collection job
func NewCollectJob(c *collector.Collector, cfg *config.Config, log *logger.Logger) *CollectJob {
	return &CollectJob{
		collector: c,
		cfg:       cfg,
		logger:    log.WithField("job", "daily_collect"),
	}
}

// Name returns the job name
func (j *CollectJob) Name() string {
	return "daily_collect"
}

// Schedule returns the cron expression from configuration
func (j *CollectJob) Schedule() string {
	return j.cfg.CollectSchedule
}

// Run executes one collection pass over the configured universe
func (j *CollectJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, collectTimeout)
	defer cancel()

	asOf := time.Now()
	j.logger.WithFields(map[string]interface{}{
		"universe":  len(j.cfg.Ranking.Universe),
		"benchmark": j.cfg.Ranking.BenchmarkID,
		"as_of":     asOf.Format("2006-01-02"),
	}).Info("Daily collection started")

	return j.collector.CollectAll(ctx,
		j.cfg.Ranking.Universe,
		j.cfg.Ranking.BenchmarkID,
		defaultExchange,
		asOf,
		collector.Config{
			Workers:     j.cfg.Ranking.FetchWorkers,
			HistoryDays: j.cfg.Ranking.HistoryDays,
		})
}
