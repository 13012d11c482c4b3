package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"kasirtoko/backend/internal/domain"
)

func TestCalculateSingleLineNoDiscount(t *testing.T) {
	totals, err := Calculate([]Line{
		{ProductID: "p-1", Quantity: 2, UnitPrice: 10000, UnitCost: 6000},
	}, domain.Discount{}, ProfitCostBasis)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if totals.Subtotal != 20000 || totals.Discount != 0 || totals.Total != 20000 {
		t.Fatalf("unexpected totals %+v", totals)
	}
	if totals.Profit != 8000 {
		t.Fatalf("expected profit 8000, got %d", totals.Profit)
	}
}

func TestCalculateTotalInvariant(t *testing.T) {
	lines := []Line{
		{ProductID: "p-1", Quantity: 3, UnitPrice: 4500, UnitCost: 3000, LineDiscount: 500},
		{ProductID: "p-2", Quantity: 1, UnitPrice: 12000, UnitCost: 9000},
	}
	for _, d := range []domain.Discount{
		{},
		domain.AmountDiscount(2000),
		domain.PercentDiscount(decimal.NewFromInt(10)),
		domain.AmountDiscount(1_000_000),
	} {
		totals, err := Calculate(lines, d, ProfitCostBasis)
		if err != nil {
			t.Fatalf("calculate: %v", err)
		}
		if totals.Total != totals.Subtotal-totals.Discount {
			t.Fatalf("total %d != subtotal %d - discount %d", totals.Total, totals.Subtotal, totals.Discount)
		}
		if totals.Total < 0 || totals.Discount > totals.Subtotal {
			t.Fatalf("discount must be clamped to subtotal: %+v", totals)
		}
	}
}

func TestCalculatePercentAppliesAfterLineDiscounts(t *testing.T) {
	totals, err := Calculate([]Line{
		{ProductID: "p-1", Quantity: 1, UnitPrice: 10000, UnitCost: 5000, LineDiscount: 2000},
	}, domain.PercentDiscount(decimal.NewFromInt(10)), ProfitCostBasis)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if totals.CartDiscount != 800 {
		t.Fatalf("expected cart discount 800, got %d", totals.CartDiscount)
	}
	if totals.Discount != 2800 || totals.Total != 7200 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}

func TestCalculateProfitPolicies(t *testing.T) {
	lines := []Line{
		{ProductID: "p-1", Quantity: 2, UnitPrice: 10000, UnitCost: 6000, LineDiscount: 1000},
	}
	discount := domain.AmountDiscount(3000)

	costBasis, err := Calculate(lines, discount, ProfitCostBasis)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if costBasis.Profit != 7000 {
		t.Fatalf("cost basis: expected profit 7000, got %d", costBasis.Profit)
	}

	net, err := Calculate(lines, discount, ProfitNetOfDiscount)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if net.Profit != 4000 {
		t.Fatalf("net of discount: expected profit 4000, got %d", net.Profit)
	}
}

func TestCalculateRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name     string
		lines    []Line
		discount domain.Discount
	}{
		{"zero quantity", []Line{{ProductID: "p-1", Quantity: 0, UnitPrice: 100}}, domain.Discount{}},
		{"negative quantity", []Line{{ProductID: "p-1", Quantity: -2, UnitPrice: 100}}, domain.Discount{}},
		{"negative line discount", []Line{{ProductID: "p-1", Quantity: 1, UnitPrice: 100, LineDiscount: -1}}, domain.Discount{}},
		{"negative discount", []Line{{ProductID: "p-1", Quantity: 1, UnitPrice: 100}}, domain.AmountDiscount(-5)},
		{"percent above 100", []Line{{ProductID: "p-1", Quantity: 1, UnitPrice: 100}}, domain.PercentDiscount(decimal.NewFromInt(120))},
	}
	for _, tc := range cases {
		_, err := Calculate(tc.lines, tc.discount, ProfitCostBasis)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestCalculateEmptyCart(t *testing.T) {
	totals, err := Calculate(nil, domain.Discount{}, ProfitCostBasis)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if totals.Subtotal != 0 || totals.Total != 0 || totals.Profit != 0 {
		t.Fatalf("expected zero totals, got %+v", totals)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != ProfitCostBasis {
		t.Fatalf("expected default cost basis, got %q %v", p, err)
	}
	if p, err := ParsePolicy("NET_OF_DISCOUNT"); err != nil || p != ProfitNetOfDiscount {
		t.Fatalf("expected net of discount, got %q %v", p, err)
	}
	if _, err := ParsePolicy("margin"); err == nil {
		t.Fatalf("expected unknown policy to fail")
	}
}

func TestCalculateRejectsAmountsThatOverflow(t *testing.T) {
	cases := []struct {
		name  string
		lines []Line
	}{
		{"quantity above column range", []Line{{ProductID: "p-1", Quantity: 922337203685478, UnitPrice: 10000, UnitCost: 6000}}},
		{"line gross overflows", []Line{{ProductID: "p-1", Quantity: 2_000_000, UnitPrice: 5_000_000_000_000, UnitCost: 1}}},
		{"line cost overflows", []Line{{ProductID: "p-1", Quantity: 2_000_000, UnitPrice: 1, UnitCost: 5_000_000_000_000}}},
		{"subtotal overflows", []Line{
			{ProductID: "p-1", Quantity: 1_000_000, UnitPrice: 5_000_000_000_000},
			{ProductID: "p-2", Quantity: 1_000_000, UnitPrice: 5_000_000_000_000},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			totals, err := Calculate(tc.lines, domain.Discount{}, ProfitCostBasis)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v (totals %+v)", err, totals)
			}
		})
	}

	totals, err := Calculate([]Line{{ProductID: "p-1", Quantity: domain.MaxQuantity, UnitPrice: 10000, UnitCost: 6000}}, domain.Discount{}, ProfitCostBasis)
	if err != nil {
		t.Fatalf("largest quantity must still price: %v", err)
	}
	if totals.Subtotal != int64(domain.MaxQuantity)*10000 || totals.Subtotal < 0 {
		t.Fatalf("unexpected subtotal %d", totals.Subtotal)
	}
}
