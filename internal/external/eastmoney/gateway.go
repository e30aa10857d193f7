package eastmoney

import (
	"context"
	"fmt"
	"time"

	"github.com/jwlim/sectorpulse/internal/contracts"
)

// Gateway adapts the EastMoney client to the provider-gateway boundary.
// One Fetch call performs one logical fetch of the full requested span;
// it is stateless and never caches.
type Gateway struct {
	client *Client
}

// NewGateway wraps a client as a contracts.ProviderGateway
func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client}
}

var _ contracts.ProviderGateway = (*Gateway)(nil)

// Fetch fetches one batch for the kind and query. Multi-id queries fetch
// each id over the same span and return the combined batch.
func (g *Gateway) Fetch(ctx context.Context, kind contracts.Kind, query contracts.RangeQuery) (contracts.Batch, error) {
	if err := query.Validate(); err != nil {
		return contracts.Batch{}, err
	}

	from, to := querySpan(query)
	batch := contracts.Batch{Kind: kind}

	for _, id := range query.IDs {
		var rows []contracts.Row
		var err error

		switch kind.Name {
		case contracts.KindIndexDaily.Name:
			rows, err = g.client.FetchIndexDaily(ctx, id, from, to)
		case contracts.KindStockDaily.Name:
			rows, err = g.client.FetchStockDaily(ctx, id, from, to)
		case contracts.KindBoardMember.Name:
			rows, err = g.client.FetchBoardMembers(ctx, id, to)
		case contracts.KindTradeCalendar.Name:
			rows, err = g.client.FetchTradeCalendar(ctx, id, from, to)
		default:
			return contracts.Batch{}, fmt.Errorf("unknown entity kind %q", kind.Name)
		}

		if err != nil {
			return contracts.Batch{}, err
		}
		batch.Rows = append(batch.Rows, rows...)
	}

	return batch, nil
}

// querySpan maps a range query onto a provider [from, to] window.
// Exact-date requests collapse to a one-day span.
func querySpan(query contracts.RangeQuery) (time.Time, time.Time) {
	if query.IsExact() {
		return query.Exact, query.Exact
	}
	if query.HasRange() {
		return query.Start, query.End
	}
	// Open-ended request: a generous historical window ending today
	now := time.Now()
	return now.AddDate(-3, 0, 0), now
}
