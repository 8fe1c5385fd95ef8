package reporting

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/silicalab/internal/domain/models"
	"github.com/mamadbah2/silicalab/internal/service/analysis"
	"github.com/mamadbah2/silicalab/pkg/clients/notify"
)

const sideEffectTimeout = 10 * time.Second

// ReportStore persists reports. Save must assign the identity and make the
// report visible together with all of its sieve lines, or not at all.
type ReportStore interface {
	EnsureSchema(ctx context.Context) error
	Save(ctx context.Context, report models.Report) (models.Report, error)
	Get(ctx context.Context, id int64) (models.Report, error)
	List(ctx context.Context) ([]models.Report, error)
	Delete(ctx context.Context, id int64) error
}

// Renderer turns a stored report into a document.
type Renderer interface {
	Render(report models.Report) ([]byte, error)
	ContentType() string
	Extension() string
}

// Mirror receives a copy of each newly created report.
type Mirror interface {
	AppendReport(ctx context.Context, report models.Report) error
}

// Document is a rendered report ready to be served.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Service creates, reads and renders sieve-analysis reports.
type Service struct {
	store    ReportStore
	pdf      Renderer
	xlsx     Renderer
	mirror   Mirror
	notifier notify.Client
	logger   *zap.Logger
	now      func() time.Time
}

// Option wires optional collaborators.
type Option func(*Service)

// WithMirror copies created reports to m.
func WithMirror(m Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

// WithNotifier announces created reports through c.
func WithNotifier(c notify.Client) Option {
	return func(s *Service) { s.notifier = c }
}

// NewService wires a new reporting service instance.
func NewService(store ReportStore, pdf, xlsx Renderer, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:  store,
		pdf:    pdf,
		xlsx:   xlsx,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and aggregates the submission, then persists it. Mirror and
// notifier failures are logged; they never undo a saved report.
func (s *Service) Create(ctx context.Context, sub models.Submission) (models.Report, error) {
	report, err := analysis.BuildReport(sub)
	if err != nil {
		return models.Report{}, err
	}

	saved, err := s.store.Save(ctx, report)
	if err != nil {
		return models.Report{}, fmt.Errorf("save report: %w", err)
	}

	s.logger.Info("report created",
		zap.Int64("report_id", saved.ID),
		zap.String("company", saved.CompanyName),
		zap.Int("sieves", len(saved.Sieves)),
		zap.Float64("total_quantity", saved.TotalQuantity),
		zap.Float64("total_afs", saved.TotalAFS))

	s.afterCreate(ctx, saved)
	return saved, nil
}

func (s *Service) afterCreate(ctx context.Context, report models.Report) {
	if s.mirror == nil && s.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if s.mirror != nil {
		if err := s.mirror.AppendReport(ctx, report); err != nil {
			s.logger.Warn("failed to mirror report", zap.Int64("report_id", report.ID), zap.Error(err))
		}
	}

	if s.notifier != nil {
		msg := notify.Message{
			Event:    "report.created",
			ReportID: report.ID,
			Text: fmt.Sprintf("Report %d for %s (truck %s): total %.2f g, AFS %.2f.",
				report.ID, report.CompanyName, report.TruckNo, report.TotalQuantity, report.TotalAFS),
		}
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Warn("failed to send report notification", zap.Int64("report_id", report.ID), zap.Error(err))
		}
	}
}

// Get returns a stored report.
func (s *Service) Get(ctx context.Context, id int64) (models.Report, error) {
	return s.store.Get(ctx, id)
}

// List returns every stored report, most recent first.
func (s *Service) List(ctx context.Context) ([]models.Report, error) {
	return s.store.List(ctx)
}

// Delete removes a report and its sieve lines.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("report deleted", zap.Int64("report_id", id))
	return nil
}

// RenderPDF renders the stored report as a PDF.
func (s *Service) RenderPDF(ctx context.Context, id int64) (Document, error) {
	return s.render(ctx, id, s.pdf)
}

// ExportXLSX renders the stored report as an Excel workbook.
func (s *Service) ExportXLSX(ctx context.Context, id int64) (Document, error) {
	return s.render(ctx, id, s.xlsx)
}

func (s *Service) render(ctx context.Context, id int64, renderer Renderer) (Document, error) {
	if renderer == nil {
		return Document{}, fmt.Errorf("%w: no renderer configured", models.ErrRenderingUnavailable)
	}

	report, err := s.store.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}

	body, err := renderer.Render(report)
	if err != nil {
		return Document{}, fmt.Errorf("render report %d: %w", id, err)
	}

	return Document{
		Filename:    fmt.Sprintf("silica_report_%d.%s", report.ID, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

// Summarize aggregates the reports created in [since, now).
func (s *Service) Summarize(ctx context.Context, since time.Time) (models.Digest, error) {
	reports, err := s.store.List(ctx)
	if err != nil {
		return models.Digest{}, fmt.Errorf("load reports: %w", err)
	}

	digest := models.Digest{Since: since, Until: s.now()}
	var afsSum float64
	for _, r := range reports {
		if r.CreatedAt.Before(digest.Since) || !r.CreatedAt.Before(digest.Until) {
			continue
		}
		digest.Reports++
		digest.TotalQuantity += r.TotalQuantity
		afsSum += r.TotalAFS
	}

	if digest.Reports > 0 {
		digest.MeanAFS = analysis.Round2(afsSum / float64(digest.Reports))
	}
	return digest, nil
}

// FormatDigest renders a digest as a one-line message.
func FormatDigest(d models.Digest) string {
	if d.Reports == 0 {
		return fmt.Sprintf("Lab digest (%s - %s): no reports recorded.",
			d.Since.Format("2006-01-02 15:04"), d.Until.Format("2006-01-02 15:04"))
	}
	return fmt.Sprintf("Lab digest (%s - %s): %d reports, %.2f g weighed, mean AFS %.2f.",
		d.Since.Format("2006-01-02 15:04"), d.Until.Format("2006-01-02 15:04"), d.Reports, d.TotalQuantity, d.MeanAFS)
}
