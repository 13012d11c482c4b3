package cache

import (
	"context"
	"fmt"
	"time"

	"kasirtoko/backend/internal/domain"
)

// SummaryCache keeps computed daily sales summaries. Keys carry the store's
// generation; Invalidate bumps it whenever a receipt for that store is
// committed, so a summary computed before the sale is never read again.
type SummaryCache interface {
	Get(ctx context.Context, key string) (*domain.SalesSummary, bool, error)
	Set(ctx context.Context, key string, value *domain.SalesSummary, ttl time.Duration) error
	Generation(ctx context.Context, storeID string) (int64, error)
	Invalidate(ctx context.Context, storeID string) error
}

func SummaryKey(storeID string, generation int64, date string) string {
	return fmt.Sprintf("%s%s:g%d:%s", storePrefix, storeID, generation, date)
}

func GenerationKey(storeID string) string {
	return generationPrefix + storeID
}

const (
	storePrefix      = "kasirtoko:summary:"
	generationPrefix = "kasirtoko:summary-gen:"
)

type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(_ context.Context, _ string) (*domain.SalesSummary, bool, error) {
	return nil, false, nil
}

func (NoopSummaryCache) Set(_ context.Context, _ string, _ *domain.SalesSummary, _ time.Duration) error {
	return nil
}

func (NoopSummaryCache) Generation(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

func (NoopSummaryCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
