package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/inventory"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("already exists")
	// ErrStockConflict means a product's stock no longer matched the value the
	// checkout was validated against. Nothing from the commit was applied.
	ErrStockConflict = errors.New("stock changed since validation")
	// ErrDuplicateReceipt means a receipt with the same id or idempotency key
	// already exists for the store.
	ErrDuplicateReceipt = errors.New("duplicate receipt")
)

// CheckoutCommit is the atomic unit written by a checkout: the receipt with
// its items, the guarded stock decrements and the matching ledger entries.
// Manual receipts carry no decrements or movements.
type CheckoutCommit struct {
	Receipt    domain.Receipt
	Decrements []inventory.StockDecrement
	Movements  []domain.StockMovement
}

type ReceiptFilter struct {
	ExcludeManual bool
	OnlyManual    bool
	From          time.Time
	To            time.Time
	Limit         int
}

type Repository interface {
	GetStore(ctx context.Context, storeID string) (*domain.Store, error)
	UpdateStore(ctx context.Context, s domain.Store) (*domain.Store, error)

	ListProducts(ctx context.Context, storeID string) ([]domain.Product, error)
	GetProductsByIDs(ctx context.Context, storeID string, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	Restock(ctx context.Context, movement domain.StockMovement) (*domain.Product, error)
	ListStockMovements(ctx context.Context, storeID string, productID string, limit int) ([]domain.StockMovement, error)

	CommitCheckout(ctx context.Context, commit CheckoutCommit) (*domain.Receipt, error)
	FindReceiptByIdempotency(ctx context.Context, storeID string, key string) (*domain.Receipt, error)
	FindReceipt(ctx context.Context, storeID string, id string) (*domain.Receipt, error)
	ListReceipts(ctx context.Context, storeID string, filter ReceiptFilter) ([]domain.Receipt, error)
	GetSalesSummary(ctx context.Context, storeID string, from time.Time, to time.Time) (domain.SalesSummary, error)

	CreateShoppingItem(ctx context.Context, item domain.ShoppingItem) (*domain.ShoppingItem, error)
	ListShoppingItems(ctx context.Context, storeID string) ([]domain.ShoppingItem, error)
	SetShoppingItemCompleted(ctx context.Context, storeID string, id string, completed bool) (*domain.ShoppingItem, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeID string, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// UniqueIDs returns the distinct, non-empty ids in ascending order.
func UniqueIDs(ids []string) []string {
	set := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
