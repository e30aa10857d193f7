package cache

import (
	"context"
	"errors"
	"strings"

	"github.com/jwlim/sectorpulse/internal/contracts"
	"github.com/jwlim/sectorpulse/pkg/logger"
)

// Cache serves range queries cache-aside over the entity store. A request
// is answered from the store when the completeness witness of every
// requested id brackets the range; otherwise the full span is fetched from
// the provider, replace-upserted, and re-read from the store so the caller
// always sees store-normalized rows.
//
// Entries never expire by time: data for a closed trading date is immutable
// at the source, so staleness is defined purely by range coverage.
type Cache struct {
	store   contracts.EntityStore
	gateway contracts.ProviderGateway
	logger  *logger.Logger
}

// New creates a cache over a store and a provider gateway
func New(store contracts.EntityStore, gateway contracts.ProviderGateway, log *logger.Logger) *Cache {
	return &Cache{
		store:   store,
		gateway: gateway,
		logger:  log,
	}
}

// FetchOrServe returns rows for the query, reporting whether they were
// served from the local store without touching the provider.
//
// On a miss the provider is asked for the same full span, never a partial
// slice. A provider failure surfaces the error together with whatever the
// store already held; previously cached rows are never corrupted.
func (c *Cache) FetchOrServe(ctx context.Context, kind contracts.Kind, query contracts.RangeQuery) ([]contracts.Row, bool, error) {
	if err := query.Validate(); err != nil {
		return nil, false, err
	}

	cached, err := c.store.Select(ctx, kind, query)
	if err != nil {
		return nil, false, err
	}

	complete, err := c.isComplete(ctx, kind, query, cached)
	if err != nil {
		return nil, false, err
	}

	if complete {
		c.logger.WithFields(map[string]interface{}{
			"kind": kind.Name,
			"ids":  strings.Join(query.IDs, ","),
			"rows": len(cached),
		}).Debug("Cache hit")
		return cached, true, nil
	}

	batch, err := c.gateway.Fetch(ctx, kind, query)
	if err != nil {
		// Serve what was already cached alongside the fetch error
		if !contracts.IsTransient(err) && !isCtxErr(err) {
			err = &contracts.TransientFetchError{
				Kind: kind.Name,
				Key:  strings.Join(query.IDs, ","),
				Err:  err,
			}
		}
		return cached, false, err
	}

	if len(batch.Rows) == 0 {
		// Store and provider both have nothing: empty, non-error result
		return cached, false, nil
	}

	if _, err := c.store.UpsertBatch(ctx, batch); err != nil {
		return cached, false, err
	}

	// Re-read so types and ordering are store-normalized
	fresh, err := c.store.Select(ctx, kind, query)
	if err != nil {
		return nil, false, err
	}

	c.logger.WithFields(map[string]interface{}{
		"kind":    kind.Name,
		"ids":     strings.Join(query.IDs, ","),
		"fetched": len(batch.Rows),
		"served":  len(fresh),
	}).Debug("Cache filled from provider")

	return fresh, false, nil
}

// isComplete decides whether the cached rows satisfy the query. An
// exact-date request needs a row for every requested id on that date; a
// range request needs every id's witness to bracket [Start, End]
// individually. One absent id is a miss for the whole query.
func (c *Cache) isComplete(ctx context.Context, kind contracts.Kind, query contracts.RangeQuery, cached []contracts.Row) (bool, error) {
	if len(cached) == 0 {
		return false, nil
	}

	if query.IsExact() || !query.HasRange() {
		if len(query.IDs) == 0 {
			return true, nil
		}
		seen := make(map[string]bool, len(query.IDs))
		for _, row := range cached {
			if id, ok := row[kind.IDColumn].(string); ok {
				seen[id] = true
			}
		}
		for _, id := range query.IDs {
			if !seen[id] {
				return false, nil
			}
		}
		return true, nil
	}

	spans, err := c.store.Spans(ctx, kind, query.IDs)
	if err != nil {
		return false, err
	}

	for _, id := range query.IDs {
		span, ok := spans[id]
		if !ok || !span.Covers(query.Start, query.End) {
			return false, nil
		}
	}

	return true, nil
}

func isCtxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
