package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Discount is a cart-level reduction given either as a fixed amount or as a
// percentage of the discountable base. At most one of the two may be set.
type Discount struct {
	Amount  int64           `json:"amount"`
	Percent decimal.Decimal `json:"percent"`
}

func AmountDiscount(amount int64) Discount {
	return Discount{Amount: amount}
}

func PercentDiscount(percent decimal.Decimal) Discount {
	return Discount{Percent: percent}
}

func (d Discount) IsZero() bool {
	return d.Amount == 0 && d.Percent.IsZero()
}

func (d Discount) Validate() error {
	if d.Amount < 0 {
		return NewValidationError("discount.amount", "must not be negative")
	}
	if d.Percent.IsNegative() || d.Percent.GreaterThan(hundred) {
		return NewValidationError("discount.percent", "must be between 0 and 100")
	}
	if d.Amount != 0 && !d.Percent.IsZero() {
		return NewValidationError("discount", "amount and percent are mutually exclusive")
	}
	return nil
}

// Resolve converts the discount into currency units against base, rounding
// percentages half-up and clamping the result to base.
func (d Discount) Resolve(base int64) int64 {
	if base <= 0 {
		return 0
	}
	amount := d.Amount
	if !d.Percent.IsZero() {
		amount = decimal.NewFromInt(base).Mul(d.Percent).Div(hundred).Round(0).IntPart()
	}
	if amount > base {
		return base
	}
	if amount < 0 {
		return 0
	}
	return amount
}
