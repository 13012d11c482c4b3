package receipt

import (
	"fmt"
	"strings"
	"time"

	"kasirtoko/backend/internal/domain"
	"kasirtoko/backend/internal/pricing"
	"kasirtoko/backend/internal/xid"
)

const DefaultPaymentMethod = "cash"

// NewID returns a fresh receipt identifier for the given kind.
func NewID(kind domain.ReceiptKind) string {
	if kind == domain.ReceiptKindManual {
		return domain.ManualReceiptPrefix + xid.UUID()
	}
	return xid.UUID()
}

func NormalizePaymentMethod(method string) (string, error) {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		return DefaultPaymentMethod, nil
	}
	switch method {
	case "cash", "card", "qris", "transfer", "ewallet":
		return method, nil
	default:
		return "", domain.NewValidationError("payment_method", fmt.Sprintf("unsupported method %q", method))
	}
}

type Input struct {
	Session        domain.Session
	Kind           domain.ReceiptKind
	Lines          []pricing.Line
	Products       map[string]domain.Product
	Totals         pricing.Totals
	PaymentMethod  string
	IdempotencyKey string
	ReceiptID      string
	// CreatedAt backdates manual receipts. Ignored for inventory receipts.
	CreatedAt *time.Time
}

type Assembler struct {
	now func() time.Time
}

func NewAssembler(now func() time.Time) *Assembler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Assembler{now: now}
}

// Assemble freezes priced lines into a receipt. Unit price and cost are
// copied so later catalog edits never change a recorded sale.
func (a *Assembler) Assemble(in Input) (domain.Receipt, error) {
	if err := in.Session.Validate(); err != nil {
		return domain.Receipt{}, err
	}
	kind := in.Kind
	if kind == "" {
		kind = domain.ReceiptKindInventory
	}
	if kind != domain.ReceiptKindInventory && kind != domain.ReceiptKindManual {
		return domain.Receipt{}, domain.NewValidationError("kind", fmt.Sprintf("unknown receipt kind %q", kind))
	}
	if len(in.Lines) == 0 {
		return domain.Receipt{}, domain.NewValidationError("items", "at least one item is required")
	}
	if len(in.Totals.Lines) != len(in.Lines) {
		return domain.Receipt{}, fmt.Errorf("receipt assembly: %d priced lines for %d items", len(in.Totals.Lines), len(in.Lines))
	}
	paymentMethod, err := NormalizePaymentMethod(in.PaymentMethod)
	if err != nil {
		return domain.Receipt{}, err
	}

	id := in.ReceiptID
	if id == "" {
		id = NewID(kind)
	}
	if (kind == domain.ReceiptKindManual) != strings.HasPrefix(id, domain.ManualReceiptPrefix) {
		return domain.Receipt{}, domain.NewValidationError("id", "manual marker does not match receipt kind")
	}

	createdAt := a.now()
	if kind == domain.ReceiptKindManual && in.CreatedAt != nil && !in.CreatedAt.IsZero() {
		createdAt = in.CreatedAt.UTC()
	}

	items := make([]domain.ReceiptItem, 0, len(in.Lines))
	for i, line := range in.Lines {
		lt := in.Totals.Lines[i]
		items = append(items, domain.ReceiptItem{
			ID:           xid.UUID(),
			ReceiptID:    id,
			ProductID:    line.ProductID,
			ProductName:  in.Products[line.ProductID].Name,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			UnitCost:     line.UnitCost,
			LineDiscount: lt.Discount,
			FinalPrice:   lt.Final,
			CreatedAt:    createdAt,
		})
	}

	return domain.Receipt{
		ID:             id,
		StoreID:        in.Session.StoreID,
		UserID:         in.Session.UserID,
		Kind:           kind,
		Subtotal:       in.Totals.Subtotal,
		Discount:       in.Totals.Discount,
		Total:          in.Totals.Total,
		Profit:         in.Totals.Profit,
		PaymentMethod:  paymentMethod,
		IdempotencyKey: strings.TrimSpace(in.IdempotencyKey),
		CreatedAt:      createdAt,
		Items:          items,
	}, nil
}
