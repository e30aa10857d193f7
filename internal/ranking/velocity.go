package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/jwlim/sectorpulse/internal/contracts"
	"github.com/jwlim/sectorpulse/pkg/logger"
)

// resolveDepth is how many trading dates are requested from the resolver;
// velocity itself only consumes the newest three
const resolveDepth = 5

// Composer produces rank-velocity reports: today's ranking joined with the
// rankings of the one and two preceding trading sessions. Today's ranking
// is mandatory; the older two degrade to absent columns when they fail.
type Composer struct {
	engine   *Engine
	resolver contracts.CalendarResolver
	logger   *logger.Logger
	delay    time.Duration
}

// NewComposer creates a velocity composer. delay is the pause between the
// per-date ranking runs, giving the provider room to breathe on cold caches.
func NewComposer(engine *Engine, resolver contracts.CalendarResolver, delay time.Duration, log *logger.Logger) *Composer {
	return &Composer{
		engine:   engine,
		resolver: resolver,
		logger:   log,
		delay:    delay,
	}
}

// Velocity ranks the universe on the most recent trading session and on up
// to two sessions before it, and reports each entity's rank movement.
// Positive change means the rank improved (moved toward 1).
func (c *Composer) Velocity(ctx context.Context, universe []string, benchmarkID string, asOf time.Time) (*contracts.VelocityReport, error) {
	dates, err := c.resolver.ResolveTradingDates(ctx, asOf, resolveDepth)
	if err != nil {
		return nil, fmt.Errorf("resolve trading dates: %w", err)
	}

	current, err := c.engine.Rank(ctx, universe, benchmarkID, dates[0])
	if err != nil {
		return nil, fmt.Errorf("rank current session %s: %w",
			dates[0].Format(contracts.DateLayout), err)
	}

	report := &contracts.VelocityReport{
		ResolvedDates: []time.Time{dates[0]},
		Skipped:       current.Skipped,
		Incomplete:    current.Incomplete,
	}

	ranksBack := make([]map[string]int, 2)
	for back := 1; back <= 2 && back < len(dates); back++ {
		if err := c.pause(ctx); err != nil {
			report.Incomplete = true
			break
		}

		past, err := c.engine.Rank(ctx, universe, benchmarkID, dates[back])
		if err != nil {
			// Older sessions are best effort; the column stays absent
			c.logger.WithError(err).WithField("trade_date",
				dates[back].Format(contracts.DateLayout)).Warn("Past session ranking unavailable")
			continue
		}

		ranks := make(map[string]int, len(past.Rows))
		for _, row := range past.Rows {
			ranks[row.ID] = row.Rank
		}
		ranksBack[back-1] = ranks
		report.ResolvedDates = append(report.ResolvedDates, dates[back])
		report.Incomplete = report.Incomplete || past.Incomplete
	}

	for _, row := range current.Rows {
		v := contracts.VelocityRow{
			ID:          row.ID,
			Name:        row.Name,
			CurrentRank: row.Rank,
			Score:       row.Score,
			Change1D:    rankChange(ranksBack[0], row.ID, row.Rank),
			Change2D:    rankChange(ranksBack[1], row.ID, row.Rank),
		}
		report.Rows = append(report.Rows, v)
	}

	c.logger.WithFields(map[string]interface{}{
		"as_of":    dates[0].Format(contracts.DateLayout),
		"sessions": len(report.ResolvedDates),
		"rows":     len(report.Rows),
	}).Info("Velocity report composed")

	return report, nil
}

// rankChange is pastRank - currentRank: positive when the entity climbed.
// Nil when the entity was absent from the past session's ranking.
func rankChange(past map[string]int, id string, currentRank int) *int {
	if past == nil {
		return nil
	}
	pastRank, ok := past[id]
	if !ok {
		return nil
	}
	change := pastRank - currentRank
	return &change
}

func (c *Composer) pause(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
