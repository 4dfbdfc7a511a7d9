package redis

import (
	"context"
	"time"

	"github.com/retail-insights/backend/internal/datastore"
	"github.com/retail-insights/backend/internal/metrics"
	"github.com/retail-insights/backend/pkg/utils"
)

const schemaTTL = 24 * time.Hour

// SchemaCachedStore decorates a datastore.Store with a redis-backed cache
// for the schema description, which is rebuilt on every cold start but
// stable for the life of the dataset.
type SchemaCachedStore struct {
	datastore.Store
	cache *Client
	key   string
}

func NewSchemaCachedStore(store datastore.Store, cache *Client, table string) *SchemaCachedStore {
	return &SchemaCachedStore{
		Store: store,
		cache: cache,
		key:   utils.HashString(table),
	}
}

func (s *SchemaCachedStore) DescribeSchema(ctx context.Context) (string, error) {
	if text, ok, err := s.cache.GetSchema(ctx, s.key); err == nil && ok {
		metrics.CacheHits.WithLabelValues("schema").Inc()
		return text, nil
	}
	metrics.CacheMisses.WithLabelValues("schema").Inc()

	text, err := s.Store.DescribeSchema(ctx)
	if err != nil {
		return "", err
	}

	// Cache failures are not worth failing the pipeline over.
	_ = s.cache.SetSchema(ctx, s.key, text, schemaTTL)
	return text, nil
}
