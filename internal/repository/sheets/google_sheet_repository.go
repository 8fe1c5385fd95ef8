package sheets

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/silicalab/internal/config"
	"github.com/mamadbah2/silicalab/internal/domain/models"
)

const (
	reportsWriteRange = "Reports!A:J"
	sievesWriteRange  = "Sieves!A:F"
)

// RowWriter appends rows to a sheet range.
type RowWriter interface {
	WriteRow(ctx context.Context, sheetRange string, values []interface{}) error
}

// GoogleSheetRepository appends rows through the official Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// WriteRow appends the provided values to the supplied sheet range.
func (r *GoogleSheetRepository) WriteRow(ctx context.Context, sheetRange string, values []interface{}) error {
	if sheetRange == "" {
		return fmt.Errorf("sheetRange must not be empty")
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheetRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append row into range %s: %w", sheetRange, err)
	}

	r.logger.Debug("row appended to sheet", zap.String("range", sheetRange))
	return nil
}

// Mirror copies saved reports into a spreadsheet: one summary row per report on
// the Reports tab and one row per sieve line on the Sieves tab.
type Mirror struct {
	writer RowWriter
}

// NewMirror wraps a row writer.
func NewMirror(writer RowWriter) *Mirror {
	return &Mirror{writer: writer}
}

// AppendReport writes the summary row first, then the sieve rows in stored order.
func (m *Mirror) AppendReport(ctx context.Context, report models.Report) error {
	if err := m.writer.WriteRow(ctx, reportsWriteRange, ReportRow(report)); err != nil {
		return fmt.Errorf("mirror report %d: %w", report.ID, err)
	}
	for i, line := range report.Sieves {
		if err := m.writer.WriteRow(ctx, sievesWriteRange, SieveRow(report.ID, line)); err != nil {
			return fmt.Errorf("mirror sieve %d of report %d: %w", i, report.ID, err)
		}
	}
	return nil
}

// ReportRow is the Reports tab layout.
func ReportRow(report models.Report) []interface{} {
	return []interface{}{
		report.ID,
		report.ReportDate.Format(models.DateLayout),
		report.CompanyName,
		report.TruckNo,
		report.DryBedNo,
		report.MaterialType,
		report.SieveReference,
		report.TotalQuantity,
		report.TotalAFS,
		report.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// SieveRow is the Sieves tab layout.
func SieveRow(reportID int64, line models.SieveLine) []interface{} {
	return []interface{}{
		reportID,
		line.MeshSize,
		line.Aperture,
		line.Weight,
		line.MultiplyingFactor,
		line.Product,
	}
}
