package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/nurpe/buildops-contracts/internal/model"
)

type Generator struct {
	fontName string
}

func NewGenerator() (*Generator, error) {
	return &Generator{fontName: "Helvetica"}, nil
}

// Generate renders a contract value summary: rollup totals, the schedule of
// values and the approved change orders.
func (g *Generator) Generate(doc model.ContractDocument) ([]byte, error) {
	contract := doc.Contract

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, "Contract Value Summary", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Contract No. %s", contract.ContractNumber), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s", formatDateTime(doc.GeneratedAt)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Totals", "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Original contract value: %s", contract.OriginalAmount), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Approved variations: %s", doc.ApprovedTotal), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Revised contract value: %s", contract.RevisedAmount), "", 1, "L", false, 0, "")
	if !doc.PendingTotal.IsZero() {
		pdf.CellFormat(0, 6, fmt.Sprintf("Pending variations (excluded from revised value): %s", doc.PendingTotal), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Schedule of Values", "", 1, "L", false, 0, "")

	lineHeaders := []string{"Line", "Description", "Scheduled value"}
	lineWidths := []float64{20, 110, 50}
	drawTableRow(pdf, g.fontName, lineHeaders, lineWidths, true)
	for _, line := range contract.Lines {
		row := []string{
			fmt.Sprintf("%d", line.LineNumber),
			truncate(line.Description, 70),
			line.ScheduledValue.String(),
		}
		drawTableRow(pdf, g.fontName, row, lineWidths, false)
	}
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Approved Variations", "", 1, "L", false, 0, "")

	approved := approvedVariations(contract)
	if len(approved) == 0 {
		pdf.SetFont(g.fontName, "", 11)
		pdf.CellFormat(0, 6, "None", "", 1, "L", false, 0, "")
	} else {
		variationHeaders := []string{"No.", "Title", "Type", "Amount"}
		variationWidths := []float64{20, 95, 25, 40}
		drawTableRow(pdf, g.fontName, variationHeaders, variationWidths, true)
		for _, v := range approved {
			row := []string{
				fmt.Sprintf("%d", v.VariationNumber),
				truncate(v.Title, 60),
				v.Type,
				v.Amount.String(),
			}
			drawTableRow(pdf, g.fontName, row, variationWidths, false)
		}
	}

	pdf.Ln(8)
	pdf.SetFont(g.fontName, "", 11)
	signatureBlock(pdf, g.fontName, "Owner")
	signatureBlock(pdf, g.fontName, "Contractor")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func approvedVariations(contract model.Contract) []model.Variation {
	var approved []model.Variation
	for _, v := range contract.Variations {
		if v.Status == model.VariationStatusApproved {
			approved = append(approved, v)
		}
	}
	return approved
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i == len(cols)-1 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, col, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func signatureBlock(pdf *gofpdf.Fpdf, fontName, label string) {
	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 8, fmt.Sprintf("%s: ______________________  Date: ____________", label), "", 1, "L", false, 0, "")
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-3]) + "..."
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04 MST")
}
