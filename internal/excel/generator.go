package excel

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nurpe/buildops-contracts/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders the contract as a workbook: a summary sheet with the
// rollup totals, a Lines sheet with the schedule of values and a Variations
// sheet with every change order and its status.
func (g *Generator) Generate(doc model.ContractDocument) ([]byte, error) {
	file := excelize.NewFile()

	summarySheet := "Summary"
	file.SetSheetName("Sheet1", summarySheet)
	if err := g.writeSummary(file, summarySheet, doc); err != nil {
		return nil, err
	}

	linesSheet := "Lines"
	file.NewSheet(linesSheet)
	if err := g.writeLines(file, linesSheet, doc.Contract); err != nil {
		return nil, err
	}

	variationsSheet := "Variations"
	file.NewSheet(variationsSheet)
	if err := g.writeVariations(file, variationsSheet, doc.Contract); err != nil {
		return nil, err
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, doc model.ContractDocument) error {
	contract := doc.Contract

	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Contract number")
	set("B1", contract.ContractNumber)
	set("A2", "Status")
	set("B2", string(contract.Status))
	set("A3", "Generated")
	set("B3", formatDateTime(doc.GeneratedAt))
	set("A4", "Schedule of values lines")
	set("B4", len(contract.Lines))
	set("A5", "Variations")
	set("B5", len(contract.Variations))

	set("A7", "Original contract value")
	set("B7", contract.OriginalAmount.String())
	set("A8", "Approved variations")
	set("B8", doc.ApprovedTotal.String())
	set("A9", "Pending variations (excluded)")
	set("B9", doc.PendingTotal.String())
	set("A10", "Revised contract value")
	set("B10", contract.RevisedAmount.String())

	_ = file.SetColWidth(sheet, "A", "A", 32)
	_ = file.SetColWidth(sheet, "B", "B", 24)
	return nil
}

func (g *Generator) writeLines(file *excelize.File, sheet string, contract model.Contract) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{"Line", "Description", "Scheduled value"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	for i, line := range contract.Lines {
		row := i + 2
		set(fmt.Sprintf("A%d", row), line.LineNumber)
		set(fmt.Sprintf("B%d", row), line.Description)
		set(fmt.Sprintf("C%d", row), line.ScheduledValue.String())
	}

	totalRow := len(contract.Lines) + 3
	set(fmt.Sprintf("B%d", totalRow), "Total")
	set(fmt.Sprintf("C%d", totalRow), contract.OriginalAmount.String())

	_ = file.SetColWidth(sheet, "A", "A", 8)
	_ = file.SetColWidth(sheet, "B", "B", 48)
	_ = file.SetColWidth(sheet, "C", "C", 18)
	return nil
}

func (g *Generator) writeVariations(file *excelize.File, sheet string, contract model.Contract) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{"No.", "Title", "Type", "Amount", "Status", "Decided at", "Rejection reason"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	for i, v := range contract.Variations {
		row := i + 2
		set(fmt.Sprintf("A%d", row), v.VariationNumber)
		set(fmt.Sprintf("B%d", row), v.Title)
		set(fmt.Sprintf("C%d", row), v.Type)
		set(fmt.Sprintf("D%d", row), v.Amount.String())
		set(fmt.Sprintf("E%d", row), string(v.Status))
		if v.ApprovedAt != nil {
			set(fmt.Sprintf("F%d", row), formatDateTime(*v.ApprovedAt))
		}
		if v.RejectionReason != nil {
			set(fmt.Sprintf("G%d", row), *v.RejectionReason)
		}
	}

	_ = file.SetColWidth(sheet, "A", "A", 8)
	_ = file.SetColWidth(sheet, "B", "B", 40)
	_ = file.SetColWidth(sheet, "C", "C", 10)
	_ = file.SetColWidth(sheet, "D", "E", 16)
	_ = file.SetColWidth(sheet, "F", "F", 20)
	_ = file.SetColWidth(sheet, "G", "G", 36)
	return nil
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
