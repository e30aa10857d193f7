package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/jwlim/sectorpulse/internal/contracts"
)

// calendarEnvelope is the JSON shape of the trading-calendar endpoint
type calendarEnvelope struct {
	Data *struct {
		Exchange string `json:"exchange"`
		Days     []struct {
			Date string `json:"date"`
			Open int    `json:"open"`
		} `json:"days"`
	} `json:"data"`
}

// FetchTradeCalendar fetches the trading calendar of one exchange for a
// [from, to] window. Closed days are included with is_open = 0 so the
// cached window has no gaps.
func (c *Client) FetchTradeCalendar(ctx context.Context, exchange string, from, to time.Time) ([]contracts.Row, error) {
	params := url.Values{}
	params.Set("exchange", exchange)
	params.Set("beg", from.Format(contracts.DateLayout))
	params.Set("end", to.Format(contracts.DateLayout))

	body, err := c.fetchBody(ctx, c.quoteBase, "/api/qt/trade/calendar", params)
	if err != nil {
		return nil, err
	}

	rows, err := parseCalendar(body, exchange)
	if err != nil {
		return nil, fmt.Errorf("parse trade calendar for %s: %w", exchange, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"exchange": exchange,
		"count":    len(rows),
	}).Debug("Fetched trade calendar")
	return rows, nil
}

// parseCalendar parses the calendar envelope. Days with unparseable dates
// are skipped.
func parseCalendar(body, exchange string) ([]contracts.Row, error) {
	var envelope calendarEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, fmt.Errorf("decode calendar response: %w", err)
	}

	if envelope.Data == nil {
		return nil, fmt.Errorf("calendar response for %s carries no data", exchange)
	}

	rows := make([]contracts.Row, 0, len(envelope.Data.Days))
	for _, day := range envelope.Data.Days {
		if _, err := time.Parse(contracts.DateLayout, day.Date); err != nil {
			continue
		}
		rows = append(rows, contracts.Row{
			"exchange":   exchange,
			"trade_date": day.Date,
			"is_open":    int64(day.Open),
		})
	}

	return rows, nil
}
