package printout

import (
	"bytes"
	"testing"
	"time"

	"kasirtoko/backend/internal/domain"
)

func TestRupiah(t *testing.T) {
	cases := map[int64]string{
		0:        "Rp 0",
		500:      "Rp 500",
		12500:    "Rp 12.500",
		1250000:  "Rp 1.250.000",
		-3000:    "-Rp 3.000",
		72000000: "Rp 72.000.000",
	}
	for amount, want := range cases {
		if got := Rupiah(amount); got != want {
			t.Fatalf("Rupiah(%d) = %q, want %q", amount, got, want)
		}
	}
}

func TestReceiptPDF(t *testing.T) {
	st := domain.Store{ID: "toko-berkah", Name: "Toko Berkah", Address: "Jl. Pasar Baru No. 12", CashierName: "Sari"}
	rcpt := domain.Receipt{
		ID: "5b0f1c2e-7d7a-4c53-9f57-4f1c8b7e1a10", StoreID: st.ID, Kind: domain.ReceiptKindInventory,
		Subtotal: 20000, Discount: 1000, Total: 19000, PaymentMethod: "cash", CreatedAt: time.Now(),
		Items: []domain.ReceiptItem{{ProductName: "Beras 1kg", Quantity: 2, UnitPrice: 10000, FinalPrice: 20000}},
	}

	out, err := ReceiptPDF(st, rcpt)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("expected pdf header, got %d bytes", len(out))
	}

	if _, err := ReceiptPDF(st, domain.Receipt{}); err == nil {
		t.Fatalf("expected error for receipt without id")
	}
}
