package printout

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"kasirtoko/backend/internal/domain"
)

// ReceiptWidthMM matches 80mm thermal paper.
const ReceiptWidthMM = 80.0

// ReceiptPDF renders a receipt as a narrow printable PDF with a QR code of
// the receipt id for lookups at the counter.
func ReceiptPDF(st domain.Store, rcpt domain.Receipt) ([]byte, error) {
	if rcpt.ID == "" {
		return nil, fmt.Errorf("receipt id is required")
	}

	qrPNG, err := qrcode.Encode(rcpt.ID, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	height := 110.0 + float64(len(rcpt.Items))*10
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    gofpdf.SizeType{Wd: ReceiptWidthMM, Ht: height},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 4)
	pdf.AddPage()
	contentWidth := ReceiptWidthMM - 8

	pdf.SetFont("Courier", "B", 11)
	pdf.CellFormat(contentWidth, 6, st.Name, "", 1, "C", false, 0, "")
	pdf.SetFont("Courier", "", 8)
	if st.Address != "" {
		pdf.CellFormat(contentWidth, 4, st.Address, "", 1, "C", false, 0, "")
	}
	if st.Phone != "" {
		pdf.CellFormat(contentWidth, 4, st.Phone, "", 1, "C", false, 0, "")
	}
	pdf.Ln(2)

	pdf.CellFormat(contentWidth, 4, "No: "+rcpt.ID, "", 1, "L", false, 0, "")
	pdf.CellFormat(contentWidth, 4, "Tanggal: "+rcpt.CreatedAt.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	if st.CashierName != "" {
		pdf.CellFormat(contentWidth, 4, "Kasir: "+st.CashierName, "", 1, "L", false, 0, "")
	}
	if rcpt.IsManual() {
		pdf.CellFormat(contentWidth, 4, "NOTA MANUAL", "", 1, "L", false, 0, "")
	}
	divider(pdf, contentWidth)

	for _, item := range rcpt.Items {
		pdf.CellFormat(contentWidth, 4, item.ProductName, "", 1, "L", false, 0, "")
		left := fmt.Sprintf("%d x %s", item.Quantity, Rupiah(item.UnitPrice))
		pdf.CellFormat(contentWidth/2, 4, left, "", 0, "L", false, 0, "")
		pdf.CellFormat(contentWidth/2, 4, Rupiah(item.FinalPrice), "", 1, "R", false, 0, "")
		if item.LineDiscount > 0 {
			pdf.CellFormat(contentWidth, 4, "  diskon -"+Rupiah(item.LineDiscount), "", 1, "L", false, 0, "")
		}
	}
	divider(pdf, contentWidth)

	totalRow(pdf, contentWidth, "Subtotal", rcpt.Subtotal)
	if rcpt.Discount > 0 {
		totalRow(pdf, contentWidth, "Diskon", -rcpt.Discount)
	}
	pdf.SetFont("Courier", "B", 9)
	totalRow(pdf, contentWidth, "TOTAL", rcpt.Total)
	pdf.SetFont("Courier", "", 8)
	pdf.CellFormat(contentWidth, 4, "Bayar: "+strings.ToUpper(rcpt.PaymentMethod), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
	qrSize := 28.0
	pdf.ImageOptions("qr", (ReceiptWidthMM-qrSize)/2, pdf.GetY(), qrSize, qrSize, true, opts, 0, "")
	pdf.Ln(2)
	pdf.CellFormat(contentWidth, 4, "Terima kasih", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func divider(pdf *gofpdf.Fpdf, width float64) {
	pdf.CellFormat(width, 3, strings.Repeat("-", 40), "", 1, "C", false, 0, "")
}

func totalRow(pdf *gofpdf.Fpdf, width float64, label string, amount int64) {
	pdf.CellFormat(width/2, 5, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(width/2, 5, Rupiah(amount), "", 1, "R", false, 0, "")
}

// Rupiah formats minor units as "Rp 12.500".
func Rupiah(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "Rp " + b.String()
}
