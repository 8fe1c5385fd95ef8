package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mamadbah2/silicalab/internal/domain/models"
	"github.com/mamadbah2/silicalab/internal/server/handlers"
	"github.com/mamadbah2/silicalab/internal/service/reporting"
)

type emptyService struct{}

func (emptyService) Create(context.Context, models.Submission) (models.Report, error) {
	return models.Report{}, nil
}
func (emptyService) Get(context.Context, int64) (models.Report, error) {
	return models.Report{}, models.ErrNotFound
}
func (emptyService) List(context.Context) ([]models.Report, error) { return nil, nil }
func (emptyService) Delete(context.Context, int64) error            { return models.ErrNotFound }
func (emptyService) RenderPDF(context.Context, int64) (reporting.Document, error) {
	return reporting.Document{}, models.ErrNotFound
}
func (emptyService) ExportXLSX(context.Context, int64) (reporting.Document, error) {
	return reporting.Document{}, models.ErrNotFound
}

func TestRoutes(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	engine := New(handlers.NewReportHandler(emptyService{}, nil), zap.New(core))

	tests := []struct {
		method, path string
		wantCode     int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/office", http.StatusOK},
		{http.MethodGet, "/api/reports", http.StatusOK},
		{http.MethodGet, "/api/reports/1", http.StatusNotFound},
		{http.MethodDelete, "/api/reports/1", http.StatusNotFound},
		{http.MethodGet, "/reports/1/pdf", http.StatusNotFound},
		{http.MethodGet, "/reports/1/xlsx", http.StatusNotFound},
		{http.MethodPut, "/api/reports/1", http.StatusNotFound},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		if w.Code != tt.wantCode {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, w.Code, tt.wantCode)
		}
	}

	if got := logs.FilterMessage("request completed").Len(); got != len(tests) {
		t.Errorf("logged %d requests, want %d", got, len(tests))
	}
}
