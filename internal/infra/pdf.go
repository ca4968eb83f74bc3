package infra

// pdf.go: kitchen ticket generation using go-pdf/fpdf.
// The ticket is a narrow thermal-receipt page with:
//   - Restaurant name header
//   - Short order id, timestamp and customer
//   - Item lines (quantity, name, subtotal)
//   - Kitchen note, if any
//   - Bold total and payment type

import (
	"bytes"
	"fmt"
	"strings"

	"oishi/internal/model"

	"github.com/go-pdf/fpdf"
)

// TicketInput is everything the ticket prints. Items come already sanitized.
type TicketInput struct {
	Restaurant string
	WidthMM    int
	Pedido     *model.Pedido
	Items      []model.ItemPedido
}

// GenerateTicketPDF renders the kitchen ticket and returns the PDF bytes.
func GenerateTicketPDF(in TicketInput) ([]byte, error) {
	if in.Pedido == nil {
		return nil, fmt.Errorf("pdf: nil order")
	}
	width := float64(in.WidthMM)
	if width <= 0 {
		width = 80
	}
	// Height grows with the number of lines; thermal paper has no fixed length
	height := 70 + float64(len(in.Items))*5
	if in.Pedido.Note != "" {
		height += 12
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, tr(in.Restaurant), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, "Comanda de cocina", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	// ── Order info ───────────────────────────────────────────────────────────
	p := in.Pedido
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW, 5, "Pedido #"+ShortID(p.ID.String()), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, p.CreatedAt.Format("02/01/2006  15:04"), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 4, tr(p.ClientName+"  "+p.ClientPhone), "", 1, "L", false, 0, "")
	pdf.Ln(1)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Items ────────────────────────────────────────────────────────────────
	colQty := contentW * 0.14
	colName := contentW * 0.56
	colSub := contentW * 0.30

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(colQty, 5, "Cant", "B", 0, "L", false, 0, "")
	pdf.CellFormat(colName, 5, "Producto", "B", 0, "L", false, 0, "")
	pdf.CellFormat(colSub, 5, "Subtotal", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	for _, item := range in.Items {
		name := item.Name
		if r := []rune(name); len(r) > 26 {
			name = string(r[:25]) + "."
		}
		pdf.CellFormat(colQty, 5, fmt.Sprintf("%dx", item.Quantity), "", 0, "L", false, 0, "")
		pdf.CellFormat(colName, 5, tr(name), "", 0, "L", false, 0, "")
		pdf.CellFormat(colSub, 5, FormatCLP(item.Subtotal()), "", 1, "R", false, 0, "")
	}

	if p.Note != "" {
		pdf.Ln(1)
		pdf.SetFont("Helvetica", "B", 7)
		pdf.CellFormat(contentW, 4, "Nota:", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "I", 7)
		pdf.MultiCell(contentW, 4, tr(p.Note), "", "L", false)
	}

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Total ────────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(colQty+colName, 6, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(colSub, 6, FormatCLP(p.Total), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, tr("Pago: "+p.PaymentType), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatCLP prints whole pesos with dot thousands separators: 12000 → "$12.000".
func FormatCLP(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}

// ShortID is the first 8 characters of an id, as printed on tickets and messages.
func ShortID(id string) string {
	if len(id) > 8 {
		return strings.ToUpper(id[:8])
	}
	return strings.ToUpper(id)
}
