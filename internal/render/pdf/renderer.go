// Package pdf lays out a sieve-analysis report as a PDF document.
package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/mamadbah2/silicalab/internal/domain/models"
)

const (
	fontRegularFile = "DejaVuSans.ttf"
	fontBoldFile    = "DejaVuSans-Bold.ttf"
	utf8Family      = "DejaVu"
	coreFamily      = "Helvetica"

	inch = 25.4
)

var (
	darkBlue   = [3]int{0, 0, 139}
	lightGrey  = [3]int{211, 211, 211}
	whiteSmoke = [3]int{245, 245, 245}
	white      = [3]int{255, 255, 255}
	black      = [3]int{0, 0, 0}
)

// Renderer produces the lab's PDF layout. Output only depends on the report, so
// rendering the same stored report twice yields identical bytes.
type Renderer struct {
	fontDir  string
	compress bool
	logger   *zap.Logger
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithFontDir embeds the DejaVu fonts found in dir instead of the core Helvetica font.
func WithFontDir(dir string) Option {
	return func(r *Renderer) { r.fontDir = dir }
}

// WithCompression toggles stream compression (on by default).
func WithCompression(compress bool) Option {
	return func(r *Renderer) { r.compress = compress }
}

// NewRenderer builds a renderer.
func NewRenderer(logger *zap.Logger, opts ...Option) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Renderer{compress: true, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ContentType is the MIME type of rendered documents.
func (r *Renderer) ContentType() string { return "application/pdf" }

// Extension is the file extension of rendered documents.
func (r *Renderer) Extension() string { return "pdf" }

// Render lays out the details block and the sieve table. Failures of the PDF
// toolchain itself (missing fonts, layout errors) wrap models.ErrRenderingUnavailable.
func (r *Renderer) Render(report models.Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetCompression(r.compress)
	pdf.SetCreationDate(report.ReportDate)
	pdf.SetModificationDate(report.ReportDate)
	pdf.SetTitle(fmt.Sprintf("Silica Lab AFS Test Report %d", report.ID), true)
	pdf.SetCreator("silicalab", true)

	family, tr, err := r.setupFonts(pdf)
	if err != nil {
		return nil, err
	}

	setText := func(c [3]int) { pdf.SetTextColor(c[0], c[1], c[2]) }
	setFill := func(c [3]int) { pdf.SetFillColor(c[0], c[1], c[2]) }

	pdf.AddPage()
	pdf.SetDrawColor(black[0], black[1], black[2])

	pdf.SetFont(family, "B", 24)
	setText(darkBlue)
	pdf.CellFormat(0, 12, tr("Silica Lab AFS Test Report"), "", 1, "C", false, 0, "")
	pdf.Ln(0.5 * inch)

	heading := func(title string) {
		pdf.SetFont(family, "B", 16)
		setText(darkBlue)
		pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
		pdf.Ln(4)
	}

	heading("Report Details")
	pdf.SetFont(family, "", 12)
	for _, row := range DetailRows(report) {
		setText(black)
		setFill(lightGrey)
		pdf.CellFormat(2*inch, 8, tr(row[0]), "1", 0, "L", true, 0, "")
		setFill(white)
		pdf.CellFormat(4*inch, 8, tr(row[1]), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(0.5 * inch)

	heading("Sieve Analysis Results")
	colWidth := 1.5 * inch

	pdf.SetFont(family, "B", 12)
	setFill(darkBlue)
	setText(white)
	for _, caption := range SieveHeader {
		pdf.CellFormat(colWidth, 9, tr(caption), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(family, "", 10)
	setText(black)
	for i, row := range SieveRows(report) {
		if i%2 == 0 {
			setFill(whiteSmoke)
		} else {
			setFill(white)
		}
		for _, cell := range row {
			pdf.CellFormat(colWidth, 7, tr(cell), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRenderingUnavailable, err)
	}

	r.logger.Debug("report rendered", zap.Int64("report_id", report.ID), zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

func (r *Renderer) setupFonts(pdf *gofpdf.Fpdf) (string, func(string) string, error) {
	if r.fontDir == "" {
		return coreFamily, pdf.UnicodeTranslatorFromDescriptor(""), nil
	}

	pdf.SetFontLocation(r.fontDir)
	for _, font := range []struct{ style, file string }{{"", fontRegularFile}, {"B", fontBoldFile}} {
		path := filepath.Join(r.fontDir, font.file)
		if _, err := os.Stat(path); err != nil {
			return "", nil, fmt.Errorf("%w: font %s: %v", models.ErrRenderingUnavailable, path, err)
		}
		pdf.AddUTF8Font(utf8Family, font.style, font.file)
	}
	if pdf.Err() {
		return "", nil, fmt.Errorf("%w: %v", models.ErrRenderingUnavailable, pdf.Error())
	}
	return utf8Family, func(s string) string { return s }, nil
}

// SieveHeader holds the sieve table captions.
var SieveHeader = []string{"Mesh Size", "Aperture (MIC)", "Weight (g)", "Multiplying Factor", "Product"}

// DetailRows returns the label/value pairs of the details block.
func DetailRows(report models.Report) [][2]string {
	return [][2]string{
		{"Report ID:", strconv.FormatInt(report.ID, 10)},
		{"Company Name:", report.CompanyName},
		{"Report Date:", report.ReportDate.Format(models.DateLayout)},
		{"Truck No:", report.TruckNo},
		{"Dry Bed No:", report.DryBedNo},
		{"Material Type:", report.MaterialType},
		{"Sieve Reference:", report.SieveReference},
		{"Total Quantity:", fmt.Sprintf("%.2f g", report.TotalQuantity)},
		{"Total AFS:", fmt.Sprintf("%.2f", report.TotalAFS)},
	}
}

// SieveRows formats every sieve line in stored order.
func SieveRows(report models.Report) [][]string {
	rows := make([][]string, 0, len(report.Sieves))
	for _, line := range report.Sieves {
		rows = append(rows, []string{
			line.MeshSize,
			fmt.Sprintf("%.2f", line.Aperture),
			fmt.Sprintf("%.2f", line.Weight),
			fmt.Sprintf("%.2f", line.MultiplyingFactor),
			fmt.Sprintf("%.2f", line.Product),
		})
	}
	return rows
}
