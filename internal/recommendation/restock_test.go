package recommendation

import (
	"testing"

	"kasirtoko/backend/internal/domain"
)

func catalog() []domain.Product {
	return []domain.Product{
		{ID: "p-kopi", Name: "Kopi Sachet", CostPrice: 1800, SellPrice: 2500, Stock: 3},
		{ID: "p-gas", Name: "Gas  3kg", CostPrice: 19000, SellPrice: 22000, Stock: 0},
		{ID: "p-rokok", Name: "Rokok", CostPrice: 20000, SellPrice: 34000, Stock: 3},
		{ID: "p-beras", Name: "Beras 5kg", CostPrice: 62000, SellPrice: 72000, Stock: 40},
		{ID: "p-fc", Name: "Fotokopi A4", CostPrice: 150, SellPrice: 300, Stock: 1, IsPhotocopy: true},
	}
}

func TestSuggestOrdersByStockThenUrgency(t *testing.T) {
	got := NewRestock(0).Suggest(catalog(), nil, 0)

	want := []string{"p-gas", "p-rokok", "p-kopi"}
	if len(got) != len(want) {
		t.Fatalf("expected %d suggestions, got %+v", len(want), got)
	}
	for i, id := range want {
		if got[i].ProductID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ProductID)
		}
		if got[i].Threshold != DefaultThreshold {
			t.Fatalf("expected default threshold, got %d", got[i].Threshold)
		}
	}
	if got[0].ReasonCode != ReasonOutOfStock || got[0].Urgency < 0.75 {
		t.Fatalf("expected out of stock item to be most urgent, got %+v", got[0])
	}
	if got[1].Urgency <= got[2].Urgency {
		t.Fatalf("expected higher margin to break the tie, got %v <= %v", got[1].Urgency, got[2].Urgency)
	}
}

func TestSuggestFlagsPendingShoppingItems(t *testing.T) {
	shopping := []domain.ShoppingItem{
		{Name: "kopi   sachet"},
		{Name: "Gas 3kg", IsCompleted: true},
	}
	got := NewRestock(5).Suggest(catalog(), shopping, 0)

	flagged := map[string]bool{}
	for _, s := range got {
		flagged[s.ProductID] = s.OnList
	}
	if !flagged["p-kopi"] {
		t.Fatalf("expected kopi to be flagged")
	}
	if flagged["p-gas"] {
		t.Fatalf("completed shopping items must not flag a product")
	}
}

func TestSuggestSkipsPhotocopyAndWellStocked(t *testing.T) {
	got := NewRestock(5).Suggest(catalog(), nil, 50)
	for _, s := range got {
		if s.ProductID == "p-fc" {
			t.Fatalf("photocopy service must not be suggested")
		}
	}
	if len(got) != 4 {
		t.Fatalf("expected beras included at threshold 50, got %d", len(got))
	}
}
