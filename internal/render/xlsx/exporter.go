// Package xlsx exports a report as an Excel workbook.
package xlsx

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/mamadbah2/silicalab/internal/domain/models"
)

const (
	detailsSheet = "Details"
	sievesSheet  = "Sieves"
)

var sieveColumns = []string{"Mesh Size", "Aperture (MIC)", "Weight (g)", "Multiplying Factor", "Product"}

// Exporter writes a two-sheet workbook: the report details and the sieve table.
type Exporter struct{}

// NewExporter builds an exporter.
func NewExporter() *Exporter {
	return &Exporter{}
}

// ContentType is the MIME type of exported workbooks.
func (e *Exporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension is the file extension of exported workbooks.
func (e *Exporter) Extension() string { return "xlsx" }

// Render builds the workbook in memory.
func (e *Exporter) Render(report models.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", detailsSheet); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRenderingUnavailable, err)
	}
	if _, err := f.NewSheet(sievesSheet); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRenderingUnavailable, err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRenderingUnavailable, err)
	}

	details := [][]any{
		{"Report ID", report.ID},
		{"Company Name", report.CompanyName},
		{"Report Date", report.ReportDate.Format(models.DateLayout)},
		{"Truck No", report.TruckNo},
		{"Dry Bed No", report.DryBedNo},
		{"Material Type", report.MaterialType},
		{"Sieve Reference", report.SieveReference},
		{"Total Quantity (g)", report.TotalQuantity},
		{"Total AFS", report.TotalAFS},
	}
	for i, row := range details {
		if err := setRow(f, detailsSheet, i+1, row); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(detailsSheet, "A", "A", 20); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRenderingUnavailable, err)
	}
	if err := f.SetColWidth(detailsSheet, "B", "B", 32); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRenderingUnavailable, err)
	}
	if err := f.SetCellStyle(detailsSheet, "A1", fmt.Sprintf("A%d", len(details)), headerStyle); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRenderingUnavailable, err)
	}

	header := make([]any, len(sieveColumns))
	for i, col := range sieveColumns {
		header[i] = col
	}
	if err := setRow(f, sievesSheet, 1, header); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sievesSheet, "A1", "E1", headerStyle); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRenderingUnavailable, err)
	}
	if err := f.SetColWidth(sievesSheet, "A", "E", 18); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRenderingUnavailable, err)
	}

	for i, line := range report.Sieves {
		row := []any{line.MeshSize, line.Aperture, line.Weight, line.MultiplyingFactor, line.Product}
		if err := setRow(f, sievesSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRenderingUnavailable, err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrRenderingUnavailable, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("%w: %v", models.ErrRenderingUnavailable, err)
	}
	return nil
}
