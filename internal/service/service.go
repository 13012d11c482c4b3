package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kasirtoko/backend/internal/cache"
	"kasirtoko/backend/internal/checkout"
	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/recommendation"
	"kasirtoko/backend/internal/report"
	"kasirtoko/backend/internal/store"
	"kasirtoko/backend/internal/xid"
)

var ErrForbidden = errors.New("forbidden")

type Options struct {
	Checkout     checkout.Config
	SummaryCache cache.SummaryCache
	SummaryTTL   time.Duration
	Location     *time.Location
}

// Service is the application surface used by the HTTP layer. Every
// store-scoped operation takes the caller's session explicitly.
type Service struct {
	repo     store.Repository
	checkout *checkout.Coordinator
	reports  *report.View
	restock  *recommendation.Restock
	logger   zerolog.Logger
}

func New(repo store.Repository, opts Options) *Service {
	return &Service{
		repo:     repo,
		checkout: checkout.NewCoordinator(repo, opts.Checkout),
		reports:  report.NewView(repo, opts.SummaryCache, opts.SummaryTTL, opts.Location),
		restock:  recommendation.NewRestock(recommendation.DefaultThreshold),
		logger:   log.With().Str("component", "service").Logger(),
	}
}

func requireAdmin(session domain.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	if !session.IsAdmin() {
		return fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return nil
}

func (s *Service) GetStore(ctx context.Context, session domain.Session) (domain.Store, error) {
	if err := session.Validate(); err != nil {
		return domain.Store{}, err
	}
	st, err := s.repo.GetStore(ctx, session.StoreID)
	if err != nil {
		return domain.Store{}, err
	}
	return *st, nil
}

func (s *Service) UpdateStore(ctx context.Context, session domain.Session, req domain.StoreUpdateRequest) (domain.Store, error) {
	if err := requireAdmin(session); err != nil {
		return domain.Store{}, err
	}
	existing, err := s.repo.GetStore(ctx, session.StoreID)
	if err != nil {
		return domain.Store{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Store{}, domain.NewValidationError("name", "required")
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := domain.StoreCategory(strings.TrimSpace(*req.Category))
		if !category.Valid() {
			return domain.Store{}, domain.NewValidationError("category", fmt.Sprintf("unknown category %q", *req.Category))
		}
		updated.Category = category
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}
	if req.CashierName != nil {
		updated.CashierName = strings.TrimSpace(*req.CashierName)
	}

	saved, err := s.repo.UpdateStore(ctx, updated)
	if err != nil {
		return domain.Store{}, err
	}
	s.logAudit(ctx, session, "store_update", "store", saved.ID, fmt.Sprintf("name=%s,category=%s", saved.Name, saved.Category))
	return *saved, nil
}

func (s *Service) ListProducts(ctx context.Context, session domain.Session) ([]domain.Product, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, session.StoreID)
}

func (s *Service) CreateProduct(ctx context.Context, session domain.Session, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(session); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Barcode = strings.TrimSpace(req.Barcode)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" {
		return domain.Product{}, domain.NewValidationError("name", "required")
	}
	if req.CostPrice < 0 || req.SellPrice < 0 {
		return domain.Product{}, domain.NewValidationError("price", "must not be negative")
	}
	if req.InitialStock < 0 {
		return domain.Product{}, domain.NewValidationError("initial_stock", "must not be negative")
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:          xid.New("prd"),
		StoreID:     session.StoreID,
		Name:        req.Name,
		Barcode:     req.Barcode,
		Category:    req.Category,
		CostPrice:   req.CostPrice,
		SellPrice:   req.SellPrice,
		IsPhotocopy: req.IsPhotocopy,
	})
	if err != nil {
		return domain.Product{}, err
	}

	if req.InitialStock > 0 {
		stocked, err := s.repo.Restock(ctx, domain.StockMovement{
			ID:             xid.New("mv"),
			StoreID:        session.StoreID,
			ProductID:      created.ID,
			QuantityChange: req.InitialStock,
			CreatedBy:      session.UserID,
		})
		if err != nil {
			return domain.Product{}, err
		}
		created = stocked
	}

	s.logAudit(ctx, session, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%d,stock=%d", created.Name, created.SellPrice, created.Stock))
	return *created, nil
}

func (s *Service) RestockProduct(ctx context.Context, session domain.Session, productID string, req domain.RestockRequest) (domain.Product, error) {
	if err := requireAdmin(session); err != nil {
		return domain.Product{}, err
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, domain.NewValidationError("product_id", "required")
	}
	if req.Quantity < 1 {
		return domain.Product{}, domain.NewValidationError("quantity", "must be at least 1")
	}

	product, err := s.repo.Restock(ctx, domain.StockMovement{
		ID:             xid.New("mv"),
		StoreID:        session.StoreID,
		ProductID:      productID,
		QuantityChange: req.Quantity,
		CreatedBy:      session.UserID,
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.logAudit(ctx, session, "product_restock", "product", product.ID, fmt.Sprintf("qty=%d,stock=%d", req.Quantity, product.Stock))
	return *product, nil
}

func (s *Service) ListStockMovements(ctx context.Context, session domain.Session, productID string, limit int) ([]domain.StockMovement, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListStockMovements(ctx, session.StoreID, strings.TrimSpace(productID), limit)
}

// Checkout turns the request into a cart and runs it through the coordinator.
// Manual receipts are restricted to admins.
func (s *Service) Checkout(ctx context.Context, session domain.Session, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if err := session.Validate(); err != nil {
		return domain.CheckoutResponse{}, err
	}
	kind := domain.ReceiptKindInventory
	if req.Manual {
		if !session.IsAdmin() {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: manual receipts require admin role", ErrForbidden)
		}
		kind = domain.ReceiptKindManual
	}
	if req.CreatedAt != nil && !req.Manual {
		return domain.CheckoutResponse{}, domain.NewValidationError("created_at", "only manual receipts may be backdated")
	}

	cart, err := domain.CartFromLines(req.Items)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	result, err := s.checkout.Checkout(ctx, checkout.Request{
		Session:        session,
		Cart:           cart,
		Discount:       req.Discount,
		PaymentMethod:  req.PaymentMethod,
		Kind:           kind,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      req.CreatedAt,
	})
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	if !result.Duplicate {
		s.reports.Invalidate(context.WithoutCancel(ctx), session.StoreID)
		if kind == domain.ReceiptKindManual {
			s.logAudit(ctx, session, "manual_receipt_create", "receipt", result.Receipt.ID, fmt.Sprintf("total=%d,items=%d", result.Receipt.Total, len(result.Receipt.Items)))
		}
	}

	return domain.CheckoutResponse{
		Receipt:   *result.Receipt,
		Duplicate: result.Duplicate,
		Attempts:  result.Attempts,
	}, nil
}

func (s *Service) ListReceipts(ctx context.Context, session domain.Session, opts report.ListOptions) ([]domain.Receipt, error) {
	return s.reports.ListReceipts(ctx, session, opts)
}

func (s *Service) GetReceipt(ctx context.Context, session domain.Session, id string) (domain.Receipt, error) {
	return s.reports.GetReceipt(ctx, session, id)
}

func (s *Service) DailySummary(ctx context.Context, session domain.Session, date string) (domain.SalesSummary, error) {
	return s.reports.DailySummary(ctx, session, date)
}

func (s *Service) CreateShoppingItem(ctx context.Context, session domain.Session, req domain.ShoppingItemCreateRequest) (domain.ShoppingItem, error) {
	if err := session.Validate(); err != nil {
		return domain.ShoppingItem{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ShoppingItem{}, domain.NewValidationError("name", "required")
	}
	if req.Quantity < 1 {
		return domain.ShoppingItem{}, domain.NewValidationError("quantity", "must be at least 1")
	}
	unit := strings.TrimSpace(req.Unit)
	if unit == "" {
		unit = "pcs"
	}

	item, err := s.repo.CreateShoppingItem(ctx, domain.ShoppingItem{
		ID:           xid.New("shop"),
		StoreID:      session.StoreID,
		UserID:       session.UserID,
		Name:         name,
		Quantity:     req.Quantity,
		Unit:         unit,
		CurrentStock: req.CurrentStock,
		Notes:        strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return domain.ShoppingItem{}, err
	}
	return *item, nil
}

func (s *Service) ListShoppingItems(ctx context.Context, session domain.Session) ([]domain.ShoppingItem, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListShoppingItems(ctx, session.StoreID)
}

func (s *Service) SetShoppingItemCompleted(ctx context.Context, session domain.Session, id string, completed bool) (domain.ShoppingItem, error) {
	if err := session.Validate(); err != nil {
		return domain.ShoppingItem{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ShoppingItem{}, domain.NewValidationError("id", "required")
	}
	item, err := s.repo.SetShoppingItemCompleted(ctx, session.StoreID, id, completed)
	if err != nil {
		return domain.ShoppingItem{}, err
	}
	return *item, nil
}

// RestockSuggestions lists products at or below threshold, lowest stock first,
// and flags those already on the pending shopping list.
func (s *Service) RestockSuggestions(ctx context.Context, session domain.Session, threshold int) ([]domain.RestockSuggestion, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if threshold < 0 {
		return nil, domain.NewValidationError("threshold", "must not be negative")
	}

	products, err := s.repo.ListProducts(ctx, session.StoreID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListShoppingItems(ctx, session.StoreID)
	if err != nil {
		return nil, err
	}
	return s.restock.Suggest(products, items, threshold), nil
}

func (s *Service) ListAuditLogs(ctx context.Context, session domain.Session, limit int) ([]domain.AuditLog, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, session.StoreID, limit)
}

func (s *Service) logAudit(ctx context.Context, session domain.Session, action string, entityType string, entityID string, detail string) {
	if err := s.repo.CreateAuditLog(context.WithoutCancel(ctx), domain.AuditLog{
		ID:         xid.New("audit"),
		StoreID:    session.StoreID,
		UserID:     session.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn().Err(err).
			Str("action", action).
			Str("entity", entityType+"/"+entityID).
			Msg("failed to write audit log")
	}
}
