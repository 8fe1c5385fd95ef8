package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/mamadbah2/silicalab/internal/domain/models"
	"github.com/mamadbah2/silicalab/internal/service/analysis"
	"github.com/mamadbah2/silicalab/internal/service/reporting"
)

// ReportService is the subset of the reporting service exposed over HTTP.
type ReportService interface {
	Create(ctx context.Context, sub models.Submission) (models.Report, error)
	Get(ctx context.Context, id int64) (models.Report, error)
	List(ctx context.Context) ([]models.Report, error)
	Delete(ctx context.Context, id int64) error
	RenderPDF(ctx context.Context, id int64) (reporting.Document, error)
	ExportXLSX(ctx context.Context, id int64) (reporting.Document, error)
}

// ReportHandler adapts the reporting service to gin.
type ReportHandler struct {
	svc    ReportService
	logger *zap.Logger
}

// NewReportHandler constructs the HTTP handler adapter.
func NewReportHandler(svc ReportService, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{svc: svc, logger: logger}
}

// SieveResponse is the wire form of a sieve line.
type SieveResponse struct {
	ID                int64   `json:"id,omitempty"`
	MeshSize          string  `json:"mesh_size"`
	Aperture          float64 `json:"aperture"`
	Weight            float64 `json:"weight"`
	MultiplyingFactor float64 `json:"multiplying_factor"`
	Product           float64 `json:"product"`
}

// ReportResponse is the wire form of a report.
type ReportResponse struct {
	ID             int64           `json:"id"`
	CompanyName    string          `json:"company_name"`
	ReportDate     string          `json:"report_date"`
	TruckNo        string          `json:"truck_no"`
	DryBedNo       string          `json:"dry_bed_no"`
	MaterialType   string          `json:"material_type"`
	SieveReference string          `json:"sieve_reference"`
	TotalQuantity  float64         `json:"total_quantity"`
	TotalAFS       float64         `json:"total_afs"`
	CreatedAt      string          `json:"created_at"`
	Sieves         []SieveResponse `json:"sieves"`
}

func newReportResponse(r models.Report) ReportResponse {
	sieves := make([]SieveResponse, 0, len(r.Sieves))
	for _, line := range r.Sieves {
		sieves = append(sieves, SieveResponse{
			ID:                line.ID,
			MeshSize:          line.MeshSize,
			Aperture:          line.Aperture,
			Weight:            line.Weight,
			MultiplyingFactor: line.MultiplyingFactor,
			Product:           line.Product,
		})
	}
	return ReportResponse{
		ID:             r.ID,
		CompanyName:    r.CompanyName,
		ReportDate:     r.ReportDate.Format(models.DateLayout),
		TruckNo:        r.TruckNo,
		DryBedNo:       r.DryBedNo,
		MaterialType:   r.MaterialType,
		SieveReference: r.SieveReference,
		TotalQuantity:  r.TotalQuantity,
		TotalAFS:       r.TotalAFS,
		CreatedAt:      r.CreatedAt.UTC().Format(time.RFC3339),
		Sieves:         sieves,
	}
}

// SubmitForm accepts the lab's HTML form, where each sieve column is posted as
// a repeated field, and redirects to the office list.
func (h *ReportHandler) SubmitForm(c *gin.Context) {
	form := models.FormSubmission{
		CompanyName:       c.PostForm("company_name"),
		ReportDate:        c.PostForm("report_date"),
		TruckNo:           c.PostForm("truck_no"),
		DryBedNo:          c.PostForm("dry_bed_no"),
		MaterialType:      c.PostForm("material_type"),
		SieveReference:    c.PostForm("sieve_reference"),
		MeshSize:          c.PostFormArray("mesh_size"),
		Aperture:          c.PostFormArray("aperture"),
		Weight:            c.PostFormArray("weight"),
		MultiplyingFactor: c.PostFormArray("multiplying_factor"),
	}

	sub, err := analysis.FromForm(form)
	if err != nil {
		h.writeError(c, err)
		return
	}

	report, err := h.svc.Create(c.Request.Context(), sub)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/office?created=%d", report.ID))
}

// Create accepts a JSON submission.
func (h *ReportHandler) Create(c *gin.Context) {
	var sub models.Submission
	if err := c.ShouldBindBodyWith(&sub, binding.JSON); err != nil {
		h.logger.Warn("invalid report payload", zap.Error(err))
		body, _ := c.Get(gin.BodyBytesKey)
		if verr := typeErrorFields(body, err); verr != nil {
			h.writeError(c, verr)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	report, err := h.svc.Create(c.Request.Context(), sub)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newReportResponse(report))
}

// List returns every report, newest first.
func (h *ReportHandler) List(c *gin.Context) {
	reports, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]ReportResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, newReportResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"reports": out})
}

// Get returns a single report.
func (h *ReportHandler) Get(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}

	report, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, newReportResponse(report))
}

// Delete removes a report and its sieve lines.
func (h *ReportHandler) Delete(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// PDF streams the report as a PDF attachment.
func (h *ReportHandler) PDF(c *gin.Context) {
	h.download(c, h.svc.RenderPDF)
}

// XLSX streams the report as an Excel attachment.
func (h *ReportHandler) XLSX(c *gin.Context) {
	h.download(c, h.svc.ExportXLSX)
}

func (h *ReportHandler) download(c *gin.Context, render func(context.Context, int64) (reporting.Document, error)) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}

	doc, err := render(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

// typeErrorFields turns a JSON type mismatch into field errors. Mismatches
// inside sieve rows are located by re-decoding each row on its own.
func typeErrorFields(body any, err error) *models.ValidationError {
	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) {
		return nil
	}

	verr := &models.ValidationError{}
	if raw, ok := body.([]byte); ok && strings.HasPrefix(typeErr.Field, "sieves.") {
		var envelope struct {
			Sieves []json.RawMessage `json:"sieves"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			for i, row := range envelope.Sieves {
				var entry models.SieveEntry
				var rowErr *json.UnmarshalTypeError
				if errors.As(json.Unmarshal(row, &entry), &rowErr) {
					verr.Add(fmt.Sprintf("sieves[%d].%s", i, rowErr.Field), "expected %s, got %s", rowErr.Type, rowErr.Value)
				}
			}
		}
	}

	if len(verr.Fields) == 0 {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		verr.Add(field, "expected %s, got %s", typeErr.Type, typeErr.Value)
	}
	return verr
}

func (h *ReportHandler) reportID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return 0, false
	}
	return id, true
}

func (h *ReportHandler) writeError(c *gin.Context, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, models.ErrDivisionByZero):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "total quantity is zero, AFS cannot be computed",
			"code":  "zero_total_quantity",
		})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
	case errors.Is(err, models.ErrRenderingUnavailable):
		h.logger.Error("rendering unavailable", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report rendering is unavailable"})
	default:
		h.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
