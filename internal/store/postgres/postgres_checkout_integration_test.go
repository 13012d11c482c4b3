package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/inventory"
	"kasirtoko/backend/internal/store"
)

func newIntegrationStore(t *testing.T) (*Store, string, string) {
	t.Helper()
	databaseURL := os.Getenv("KASIRTOKO_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set KASIRTOKO_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stamp := time.Now().UnixNano()
	storeID := fmt.Sprintf("store-it-%d", stamp)
	productID := fmt.Sprintf("prd-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stores WHERE id = $1`, storeID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM receipts WHERE user_id = 'it-user' AND store_id IS NULL`)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO stores (id, name, category, owner_id) VALUES ($1, 'Toko IT', 'sembako', 'it-owner')
	`, storeID); err != nil {
		t.Fatalf("insert store: %v", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, store_id, name, category, cost_price, sell_price, stock)
		VALUES ($1, $2, 'Produk IT', 'pangan', 6000, 10000, 5)
	`, productID, storeID); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	return s, storeID, productID
}

func integrationReceipt(id string, storeID string, productID string, qty int) domain.Receipt {
	now := time.Now().UTC()
	return domain.Receipt{
		ID: id, StoreID: storeID, UserID: "it-user", Kind: domain.ReceiptKindInventory,
		Subtotal: int64(qty) * 10000, Total: int64(qty) * 10000, Profit: int64(qty) * 4000,
		PaymentMethod: "cash", CreatedAt: now,
		Items: []domain.ReceiptItem{{
			ID: id + "-item", ReceiptID: id, ProductID: productID, ProductName: "Produk IT",
			Quantity: qty, UnitPrice: 10000, UnitCost: 6000, FinalPrice: int64(qty) * 10000,
		}},
	}
}

func TestCommitCheckoutPersistsAtomically(t *testing.T) {
	s, storeID, productID := newIntegrationStore(t)
	ctx := context.Background()

	rcptID := fmt.Sprintf("rcpt-it-%d", time.Now().UnixNano())
	_, err := s.CommitCheckout(ctx, store.CheckoutCommit{
		Receipt:    integrationReceipt(rcptID, storeID, productID, 2),
		Decrements: []inventory.StockDecrement{{ProductID: productID, Quantity: 2, ExpectedStock: 5}},
		Movements: []domain.StockMovement{{
			ID: rcptID + "-mv", StoreID: storeID, ProductID: productID, ReceiptID: rcptID,
			Kind: domain.MovementSale, QuantityChange: -2, QuantityBefore: 5, QuantityAfter: 3, CreatedBy: "it-user",
		}},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	products, err := s.GetProductsByIDs(ctx, storeID, []string{productID})
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if products[productID].Stock != 3 {
		t.Fatalf("expected stock 3, got %d", products[productID].Stock)
	}

	found, err := s.FindReceipt(ctx, storeID, rcptID)
	if err != nil {
		t.Fatalf("find receipt: %v", err)
	}
	if len(found.Items) != 1 || found.Items[0].UnitPrice != 10000 || found.Total != found.Subtotal-found.Discount {
		t.Fatalf("unexpected receipt %+v", found)
	}

	stale := integrationReceipt(rcptID+"-stale", storeID, productID, 1)
	_, err = s.CommitCheckout(ctx, store.CheckoutCommit{
		Receipt:    stale,
		Decrements: []inventory.StockDecrement{{ProductID: productID, Quantity: 1, ExpectedStock: 5}},
	})
	if !errors.Is(err, store.ErrStockConflict) {
		t.Fatalf("expected stock conflict, got %v", err)
	}
	if _, err := s.FindReceipt(ctx, storeID, stale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("conflicting receipt must be rolled back, got %v", err)
	}
}

func TestCommitCheckoutConcurrentSingleWinner(t *testing.T) {
	s, storeID, productID := newIntegrationStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("rcpt-race-%d-%d", time.Now().UnixNano(), n)
			_, err := s.CommitCheckout(ctx, store.CheckoutCommit{
				Receipt:    integrationReceipt(id, storeID, productID, 5),
				Decrements: []inventory.StockDecrement{{ProductID: productID, Quantity: 5, ExpectedStock: 5}},
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		if !errors.Is(err, store.ErrStockConflict) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}

	products, _ := s.GetProductsByIDs(ctx, storeID, []string{productID})
	if products[productID].Stock != 0 {
		t.Fatalf("expected stock 0, got %d", products[productID].Stock)
	}
}
