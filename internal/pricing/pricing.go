package pricing

import (
	"fmt"
	"math"
	"strings"

	"kasirtoko/backend/internal/domain"
)

// ProfitPolicy decides whether a cart-level discount reduces recorded profit.
type ProfitPolicy string

const (
	// ProfitCostBasis records profit as final line price minus cost. Line
	// discounts reduce profit, the cart-level discount does not.
	ProfitCostBasis ProfitPolicy = "cost_basis"
	// ProfitNetOfDiscount also deducts the cart-level discount.
	ProfitNetOfDiscount ProfitPolicy = "net_of_discount"
)

func ParsePolicy(raw string) (ProfitPolicy, error) {
	switch ProfitPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ProfitCostBasis:
		return ProfitCostBasis, nil
	case ProfitNetOfDiscount:
		return ProfitNetOfDiscount, nil
	default:
		return "", fmt.Errorf("unknown profit policy %q", raw)
	}
}

type Line struct {
	ProductID    string
	Quantity     int
	UnitPrice    int64
	UnitCost     int64
	LineDiscount int64
}

type LineTotal struct {
	ProductID string
	Gross     int64
	Discount  int64
	Final     int64
	Cost      int64
}

type Totals struct {
	Subtotal     int64
	Discount     int64
	CartDiscount int64
	Total        int64
	Profit       int64
	Lines        []LineTotal
}

type Calculator struct {
	Policy ProfitPolicy
}

func NewCalculator(policy ProfitPolicy) Calculator {
	if policy == "" {
		policy = ProfitCostBasis
	}
	return Calculator{Policy: policy}
}

func (c Calculator) Calculate(lines []Line, discount domain.Discount) (Totals, error) {
	return Calculate(lines, discount, c.Policy)
}

// Calculate derives subtotal, discount, total and profit for priced lines.
// It has no side effects.
func Calculate(lines []Line, discount domain.Discount, policy ProfitPolicy) (Totals, error) {
	if err := discount.Validate(); err != nil {
		return Totals{}, err
	}
	if len(lines) == 0 {
		return Totals{Lines: []LineTotal{}}, nil
	}

	totals := Totals{Lines: make([]LineTotal, 0, len(lines))}
	lineDiscounts := int64(0)
	for _, line := range lines {
		if line.Quantity <= 0 {
			return Totals{}, domain.NewValidationError("quantity", fmt.Sprintf("must be positive for product %s", line.ProductID))
		}
		if line.UnitPrice < 0 || line.UnitCost < 0 {
			return Totals{}, domain.NewValidationError("price", fmt.Sprintf("must not be negative for product %s", line.ProductID))
		}
		if line.LineDiscount < 0 {
			return Totals{}, domain.NewValidationError("line_discount", fmt.Sprintf("must not be negative for product %s", line.ProductID))
		}

		if line.Quantity > domain.MaxQuantity {
			return Totals{}, domain.NewValidationError("quantity", fmt.Sprintf("must not exceed %d for product %s", domain.MaxQuantity, line.ProductID))
		}

		qty := int64(line.Quantity)
		if line.UnitPrice > math.MaxInt64/qty || line.UnitCost > math.MaxInt64/qty {
			return Totals{}, domain.NewValidationError("quantity", fmt.Sprintf("amount too large for product %s", line.ProductID))
		}
		gross := line.UnitPrice * qty
		if totals.Subtotal > math.MaxInt64-gross {
			return Totals{}, domain.NewValidationError("quantity", "cart amount too large")
		}
		lineDiscount := min(line.LineDiscount, gross)
		lt := LineTotal{
			ProductID: line.ProductID,
			Gross:     gross,
			Discount:  lineDiscount,
			Final:     gross - lineDiscount,
			Cost:      line.UnitCost * qty,
		}
		totals.Lines = append(totals.Lines, lt)
		totals.Subtotal += gross
		lineDiscounts += lineDiscount
		totals.Profit += lt.Final - lt.Cost
	}

	totals.CartDiscount = discount.Resolve(totals.Subtotal - lineDiscounts)
	totals.Discount = min(lineDiscounts+totals.CartDiscount, totals.Subtotal)
	totals.Total = totals.Subtotal - totals.Discount

	if policy == ProfitNetOfDiscount {
		totals.Profit -= totals.CartDiscount
	}
	return totals, nil
}
