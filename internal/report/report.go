package report

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kasirtoko/backend/internal/cache"
	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/store"
)

const (
	dateLayout       = "2006-01-02"
	defaultListLimit = 50
	maxListLimit     = 500
)

type Repository interface {
	FindReceipt(ctx context.Context, storeID string, id string) (*domain.Receipt, error)
	ListReceipts(ctx context.Context, storeID string, filter store.ReceiptFilter) ([]domain.Receipt, error)
	GetSalesSummary(ctx context.Context, storeID string, from time.Time, to time.Time) (domain.SalesSummary, error)
}

type ListOptions struct {
	// IncludeManual adds manual receipts to the regular listing.
	IncludeManual bool
	OnlyManual    bool
	Date          string
	Limit         int
}

// View answers read-only questions about committed receipts of one store.
type View struct {
	repo     Repository
	cache    cache.SummaryCache
	ttl      time.Duration
	location *time.Location
	now      func() time.Time
	logger   zerolog.Logger
}

func NewView(repo Repository, summaryCache cache.SummaryCache, ttl time.Duration, location *time.Location) *View {
	if summaryCache == nil {
		summaryCache = cache.NoopSummaryCache{}
	}
	if location == nil {
		location = time.UTC
	}
	return &View{
		repo:     repo,
		cache:    summaryCache,
		ttl:      ttl,
		location: location,
		now:      time.Now,
		logger:   log.With().Str("component", "report").Logger(),
	}
}

// ListReceipts returns the store's receipts, newest first. Manual receipts are
// left out unless asked for.
func (v *View) ListReceipts(ctx context.Context, session domain.Session, opts ListOptions) ([]domain.Receipt, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}

	filter := store.ReceiptFilter{
		ExcludeManual: !opts.IncludeManual && !opts.OnlyManual,
		OnlyManual:    opts.OnlyManual,
		Limit:         clampLimit(opts.Limit),
	}
	if strings.TrimSpace(opts.Date) != "" {
		from, to, err := v.dayRange(opts.Date)
		if err != nil {
			return nil, err
		}
		filter.From, filter.To = from, to
	}

	receipts, err := v.repo.ListReceipts(ctx, session.StoreID, filter)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Receipt, 0, len(receipts))
	for _, rcpt := range receipts {
		if rcpt.StoreID != session.StoreID {
			continue
		}
		if filter.ExcludeManual && rcpt.IsManual() {
			continue
		}
		if filter.OnlyManual && !rcpt.IsManual() {
			continue
		}
		result = append(result, rcpt)
	}
	return result, nil
}

// GetReceipt returns a receipt of the session's store, manual or not.
func (v *View) GetReceipt(ctx context.Context, session domain.Session, id string) (domain.Receipt, error) {
	if err := session.Validate(); err != nil {
		return domain.Receipt{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Receipt{}, domain.NewValidationError("id", "required")
	}
	rcpt, err := v.repo.FindReceipt(ctx, session.StoreID, id)
	if err != nil {
		return domain.Receipt{}, err
	}
	return *rcpt, nil
}

// DailySummary aggregates the regular receipts of one calendar day in the
// view's location. An empty date means today.
func (v *View) DailySummary(ctx context.Context, session domain.Session, date string) (domain.SalesSummary, error) {
	if err := session.Validate(); err != nil {
		return domain.SalesSummary{}, err
	}
	if strings.TrimSpace(date) == "" {
		date = v.now().In(v.location).Format(dateLayout)
	}
	from, to, err := v.dayRange(date)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	day := from.In(v.location).Format(dateLayout)

	key := ""
	if v.ttl > 0 {
		gen, err := v.cache.Generation(ctx, session.StoreID)
		if err != nil {
			v.logger.Warn().Err(err).Str("store_id", session.StoreID).Msg("summary cache generation failed")
		} else {
			key = cache.SummaryKey(session.StoreID, gen, day)
		}
	}
	if key != "" {
		cached, ok, err := v.cache.Get(ctx, key)
		if err != nil {
			v.logger.Warn().Err(err).Str("key", key).Msg("summary cache get failed")
		} else if ok {
			return *cached, nil
		}
	}

	summary, err := v.repo.GetSalesSummary(ctx, session.StoreID, from, to)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	summary.StoreID = session.StoreID
	summary.Date = day
	if summary.ByPayment == nil {
		summary.ByPayment = []domain.PaymentSummary{}
	}

	if key != "" {
		if err := v.cache.Set(ctx, key, &summary, v.ttl); err != nil {
			v.logger.Warn().Err(err).Str("key", key).Msg("summary cache set failed")
		}
	}
	return summary, nil
}

// Invalidate drops cached summaries of a store after new sales.
func (v *View) Invalidate(ctx context.Context, storeID string) {
	if err := v.cache.Invalidate(ctx, storeID); err != nil {
		v.logger.Warn().Err(err).Str("store_id", storeID).Msg("summary cache invalidate failed")
	}
}

func (v *View) dayRange(date string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), v.location)
	if err != nil {
		return time.Time{}, time.Time{}, domain.NewValidationError("date", "must be formatted as YYYY-MM-DD")
	}
	return day.UTC(), day.AddDate(0, 0, 1).UTC(), nil
}

func clampLimit(limit int) int {
	if limit < 1 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
