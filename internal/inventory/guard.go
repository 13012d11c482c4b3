package inventory

import (
	"sort"
	"time"

	"kasirtoko/backend/internal/domain"
)

// StockDecrement is an authorised stock reduction. ExpectedStock is the value
// observed at validation time and is used as the compare-and-set guard.
type StockDecrement struct {
	ProductID     string
	Quantity      int
	ExpectedStock int
}

type Authorization struct {
	Decrements []StockDecrement
}

// Movements turns the authorised decrements into sale ledger entries.
func (a Authorization) Movements(session domain.Session, receiptID string, newID func() string, at time.Time) []domain.StockMovement {
	movements := make([]domain.StockMovement, 0, len(a.Decrements))
	for _, d := range a.Decrements {
		movements = append(movements, domain.StockMovement{
			ID:             newID(),
			StoreID:        session.StoreID,
			ProductID:      d.ProductID,
			ReceiptID:      receiptID,
			Kind:           domain.MovementSale,
			QuantityChange: -d.Quantity,
			QuantityBefore: d.ExpectedStock,
			QuantityAfter:  d.ExpectedStock - d.Quantity,
			CreatedBy:      session.UserID,
			CreatedAt:      at,
		})
	}
	return movements
}

// Authorize checks every cart line against the product snapshot. Quantities
// for the same product are summed before comparison. All shortages are
// reported together; a product absent from the snapshot has no stock.
func Authorize(lines []domain.CartLine, snapshot map[string]domain.Product) (Authorization, error) {
	requested := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return Authorization{}, domain.NewValidationError("quantity", "must be positive")
		}
		requested[line.ProductID] += line.Quantity
	}

	ids := make([]string, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	shortages := make([]domain.StockShortage, 0)
	decrements := make([]StockDecrement, 0, len(ids))
	for _, id := range ids {
		qty := requested[id]
		product, ok := snapshot[id]
		available := 0
		if ok {
			available = max(product.Stock, 0)
		}
		if qty > available {
			shortages = append(shortages, domain.StockShortage{
				ProductID: id,
				Name:      product.Name,
				Requested: qty,
				Available: available,
			})
			continue
		}
		decrements = append(decrements, StockDecrement{
			ProductID:     id,
			Quantity:      qty,
			ExpectedStock: product.Stock,
		})
	}

	if len(shortages) > 0 {
		return Authorization{}, &domain.InsufficientStockError{Shortages: shortages}
	}
	return Authorization{Decrements: decrements}, nil
}
