package contracts

import (
	"context"
	"time"
)

// ProviderGateway is the stateless boundary to the remote data provider.
// One call performs one logical fetch of the full requested span; retry,
// backoff and caching are the caller's responsibility.
type ProviderGateway interface {
	Fetch(ctx context.Context, kind Kind, query RangeQuery) (Batch, error)
}

// EntityStore is the persistence boundary: one table per entity kind,
// primary key = natural key, replace-on-conflict writes only.
type EntityStore interface {
	UpsertBatch(ctx context.Context, batch Batch) (int, error)
	Select(ctx context.Context, kind Kind, query RangeQuery) ([]Row, error)
	Exists(ctx context.Context, kind Kind, id string) (bool, error)
	Spans(ctx context.Context, kind Kind, ids []string) (map[string]Span, error)
	DeleteByID(ctx context.Context, kind Kind, id string) (int64, error)
}

// RangeReader serves range queries cache-aside: from the store when the
// completeness witness covers the request, otherwise through the gateway.
type RangeReader interface {
	FetchOrServe(ctx context.Context, kind Kind, query RangeQuery) (rows []Row, servedFromCache bool, err error)
}

// CalendarResolver resolves a nominal as-of date into actual trading dates,
// most recent first. The result may be shorter than count when history is
// thin; absent positions are zero times only in velocity composition.
type CalendarResolver interface {
	ResolveTradingDates(ctx context.Context, asOf time.Time, count int) ([]time.Time, error)
}
