package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jwlim/sectorpulse/internal/contracts"
)

// klineEnvelope is the JSON shape of the daily kline endpoint
type klineEnvelope struct {
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// secid renders the provider's market-prefixed security id.
// Board indexes live on pseudo-market 90, Shanghai on 1, Shenzhen on 0.
func secid(id string) string {
	switch {
	case strings.HasPrefix(id, "BK"):
		return "90." + id
	case strings.HasPrefix(id, "6") || strings.HasPrefix(id, "000300"):
		return "1." + id
	default:
		return "0." + id
	}
}

// FetchIndexDaily fetches daily snapshots for one board or benchmark index
func (c *Client) FetchIndexDaily(ctx context.Context, indexID string, from, to time.Time) ([]contracts.Row, error) {
	body, err := c.fetchKline(ctx, indexID, from, to)
	if err != nil {
		return nil, err
	}

	rows, name, err := parseKlines(body, indexID)
	if err != nil {
		return nil, fmt.Errorf("parse index klines for %s: %w", indexID, err)
	}

	out := make([]contracts.Row, 0, len(rows))
	for _, k := range rows {
		out = append(out, contracts.Row{
			"trade_date":  k.Date,
			"index_id":    indexID,
			"index_name":  name,
			"open_price":  k.Open,
			"high_price":  k.High,
			"low_price":   k.Low,
			"close_price": k.Close,
			"volume":      k.Volume,
			"turnover":    k.Turnover,
			"change_pct":  k.ChangePct,
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"index_id": indexID,
		"count":    len(out),
	}).Debug("Fetched index klines")
	return out, nil
}

// FetchStockDaily fetches daily bars for one stock
func (c *Client) FetchStockDaily(ctx context.Context, stockCode string, from, to time.Time) ([]contracts.Row, error) {
	body, err := c.fetchKline(ctx, stockCode, from, to)
	if err != nil {
		return nil, err
	}

	rows, _, err := parseKlines(body, stockCode)
	if err != nil {
		return nil, fmt.Errorf("parse stock klines for %s: %w", stockCode, err)
	}

	out := make([]contracts.Row, 0, len(rows))
	for _, k := range rows {
		out = append(out, contracts.Row{
			"stock_code":  stockCode,
			"trade_date":  k.Date,
			"open_price":  k.Open,
			"high_price":  k.High,
			"low_price":   k.Low,
			"close_price": k.Close,
			"volume":      k.Volume,
			"turnover":    k.Turnover,
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"stock_code": stockCode,
		"count":      len(out),
	}).Debug("Fetched stock klines")
	return out, nil
}

func (c *Client) fetchKline(ctx context.Context, id string, from, to time.Time) (string, error) {
	params := url.Values{}
	params.Set("secid", secid(id))
	params.Set("klt", "101") // daily
	params.Set("fqt", "1")   // forward adjusted
	params.Set("beg", strings.ReplaceAll(from.Format(contracts.DateLayout), "-", ""))
	params.Set("end", strings.ReplaceAll(to.Format(contracts.DateLayout), "-", ""))
	params.Set("fields1", "f1,f2,f3,f4,f5,f6")
	params.Set("fields2", "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61")

	return c.fetchBody(ctx, c.quoteBase, "/api/qt/stock/kline/get", params)
}

// kline is one parsed kline record
type kline struct {
	Date      string
	Open      float64
	Close     float64
	High      float64
	Low       float64
	Volume    int64
	Turnover  float64
	ChangePct float64
}

// parseKlines parses the kline envelope. Each kline string is
// "date,open,close,high,low,volume,turnover,amplitude,change_pct,change,turnover_rate".
// Rows with unparseable dates or too few fields are skipped.
func parseKlines(body, id string) ([]kline, string, error) {
	var envelope klineEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, "", fmt.Errorf("decode kline response: %w", err)
	}

	if envelope.Data == nil {
		return nil, "", fmt.Errorf("kline response for %s carries no data", id)
	}

	klines := make([]kline, 0, len(envelope.Data.Klines))
	for _, line := range envelope.Data.Klines {
		fields := strings.Split(line, ",")
		if len(fields) < 7 {
			continue
		}

		if _, err := time.Parse(contracts.DateLayout, fields[0]); err != nil {
			continue
		}

		k := kline{
			Date:     fields[0],
			Open:     toFloat(fields[1]),
			Close:    toFloat(fields[2]),
			High:     toFloat(fields[3]),
			Low:      toFloat(fields[4]),
			Volume:   toInt(fields[5]),
			Turnover: toFloat(fields[6]),
		}
		if len(fields) >= 9 {
			k.ChangePct = toFloat(fields[8])
		}
		klines = append(klines, k)
	}

	return klines, envelope.Data.Name, nil
}

func toFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func toInt(s string) int64 {
	v, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return v
}
