// Package sqlite stores reports and their sieve lines in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mamadbah2/silicalab/internal/domain/models"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_name TEXT NOT NULL,
		report_date TEXT NOT NULL,
		truck_no TEXT NOT NULL,
		dry_bed_no TEXT NOT NULL DEFAULT '',
		material_type TEXT NOT NULL,
		sieve_reference TEXT NOT NULL,
		total_quantity REAL NOT NULL,
		total_afs REAL NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS sieve_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id INTEGER NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		mesh_size TEXT NOT NULL,
		aperture REAL NOT NULL,
		weight REAL NOT NULL,
		multiplying_factor REAL NOT NULL,
		product REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sieve_results_report ON sieve_results(report_id, position);`

const reportColumns = `id, company_name, report_date, truck_no, dry_bed_no, material_type,
	sieve_reference, total_quantity, total_afs, created_at`

// Repository implements the report store on top of database/sql.
type Repository struct {
	db     *sql.DB
	DBPath string
	logger *zap.Logger
	now    func() time.Time
}

// NewRepository opens (and creates if needed) the SQLite database at dbPath.
// Foreign keys are enabled on every connection so deletes cascade to sieve lines.
func NewRepository(dbPath string, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if dbPath == "" {
		dbPath = filepath.Join("data", "silicalab.db")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	logger.Info("opening sqlite database", zap.String("path", dbPath))
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	return &Repository{
		db:     db,
		DBPath: dbPath,
		logger: logger,
		now:    time.Now,
	}, nil
}

// EnsureSchema creates the tables when they do not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (r *Repository) Close(_ context.Context) error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Save inserts the report and every sieve line in one transaction and returns
// the report with its assigned identity.
func (r *Repository) Save(ctx context.Context, report models.Report) (models.Report, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Report{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	report.CreatedAt = r.now().UTC()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO reports(company_name, report_date, truck_no, dry_bed_no, material_type,
			sieve_reference, total_quantity, total_afs, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.CompanyName,
		report.ReportDate.Format(models.DateLayout),
		report.TruckNo,
		report.DryBedNo,
		report.MaterialType,
		report.SieveReference,
		report.TotalQuantity,
		report.TotalAFS,
		report.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return models.Report{}, fmt.Errorf("insert report: %w", err)
	}

	report.ID, err = res.LastInsertId()
	if err != nil {
		return models.Report{}, fmt.Errorf("read report id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sieve_results(report_id, position, mesh_size, aperture, weight, multiplying_factor, product)
		VALUES(?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return models.Report{}, fmt.Errorf("prepare sieve insert: %w", err)
	}
	defer stmt.Close()

	lines := make([]models.SieveLine, len(report.Sieves))
	for i, line := range report.Sieves {
		res, err := stmt.ExecContext(ctx, report.ID, i, line.MeshSize, line.Aperture, line.Weight, line.MultiplyingFactor, line.Product)
		if err != nil {
			return models.Report{}, fmt.Errorf("insert sieve %d of report %d: %w", i, report.ID, err)
		}
		if line.ID, err = res.LastInsertId(); err != nil {
			return models.Report{}, fmt.Errorf("read sieve id: %w", err)
		}
		lines[i] = line
	}
	report.Sieves = lines

	if err := tx.Commit(); err != nil {
		return models.Report{}, fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.Debug("report saved", zap.Int64("report_id", report.ID), zap.Int("sieves", len(lines)))
	return report, nil
}

// Get loads one report with its sieve lines in stored order.
func (r *Repository) Get(ctx context.Context, id int64) (models.Report, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Report{}, fmt.Errorf("report %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Report{}, err
	}

	byReport, err := r.loadSieves(ctx, `WHERE report_id = ?`, id)
	if err != nil {
		return models.Report{}, err
	}
	report.Sieves = byReport[id]
	return report, nil
}

// List returns every report, most recently created first.
func (r *Repository) List(ctx context.Context) ([]models.Report, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	byReport, err := r.loadSieves(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range reports {
		reports[i].Sieves = byReport[reports[i].ID]
	}
	return reports, nil
}

// Delete removes a report; its sieve lines go with it through the foreign key.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete report %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete report %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("report %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// GetSieveLine looks up a single sieve line by its own identity.
func (r *Repository) GetSieveLine(ctx context.Context, id int64) (models.SieveLine, error) {
	byReport, err := r.loadSieves(ctx, `WHERE id = ?`, id)
	if err != nil {
		return models.SieveLine{}, err
	}
	for _, lines := range byReport {
		if len(lines) > 0 {
			return lines[0], nil
		}
	}
	return models.SieveLine{}, fmt.Errorf("sieve line %d: %w", id, models.ErrNotFound)
}

func (r *Repository) loadSieves(ctx context.Context, where string, args ...any) (map[int64][]models.SieveLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, report_id, mesh_size, aperture, weight, multiplying_factor, product
		FROM sieve_results `+where+`
		ORDER BY report_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("query sieve results: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]models.SieveLine)
	for rows.Next() {
		var (
			reportID int64
			line     models.SieveLine
		)
		if err := rows.Scan(&line.ID, &reportID, &line.MeshSize, &line.Aperture, &line.Weight, &line.MultiplyingFactor, &line.Product); err != nil {
			return nil, fmt.Errorf("failed to scan sieve row: %w", err)
		}
		result[reportID] = append(result[reportID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (models.Report, error) {
	var (
		report     models.Report
		reportDate string
		createdAt  string
	)
	err := s.Scan(
		&report.ID,
		&report.CompanyName,
		&reportDate,
		&report.TruckNo,
		&report.DryBedNo,
		&report.MaterialType,
		&report.SieveReference,
		&report.TotalQuantity,
		&report.TotalAFS,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Report{}, err
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("failed to scan report row: %w", err)
	}

	if report.ReportDate, err = time.Parse(models.DateLayout, reportDate); err != nil {
		return models.Report{}, fmt.Errorf("parse report date %q: %w", reportDate, err)
	}
	if report.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return models.Report{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return report, nil
}
