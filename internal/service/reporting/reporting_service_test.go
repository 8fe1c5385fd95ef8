package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mamadbah2/silicalab/internal/domain/models"
	"github.com/mamadbah2/silicalab/pkg/clients/notify"
)

type memoryStore struct {
	mu      sync.Mutex
	nextID  int64
	reports map[int64]models.Report
	saveErr error
	now     time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{reports: map[int64]models.Report{}, now: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (m *memoryStore) EnsureSchema(context.Context) error { return nil }

func (m *memoryStore) Save(_ context.Context, r models.Report) (models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return models.Report{}, m.saveErr
	}
	m.nextID++
	r.ID = m.nextID
	r.CreatedAt = m.now
	m.reports[r.ID] = r
	return r, nil
}

func (m *memoryStore) Get(_ context.Context, id int64) (models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return models.Report{}, fmt.Errorf("report %d: %w", id, models.ErrNotFound)
	}
	return r, nil
}

func (m *memoryStore) List(context.Context) ([]models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Report, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memoryStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return fmt.Errorf("report %d: %w", id, models.ErrNotFound)
	}
	delete(m.reports, id)
	return nil
}

type stubRenderer struct {
	err   error
	calls int
}

func (r *stubRenderer) Render(report models.Report) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte(fmt.Sprintf("report %d afs %.2f", report.ID, report.TotalAFS)), nil
}

func (r *stubRenderer) ContentType() string { return "application/pdf" }
func (r *stubRenderer) Extension() string   { return "pdf" }

type recordingMirror struct {
	reports []models.Report
	err     error
}

func (m *recordingMirror) AppendReport(_ context.Context, r models.Report) error {
	m.reports = append(m.reports, r)
	return m.err
}

type recordingNotifier struct {
	messages []notify.Message
	err      error
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.messages = append(n.messages, msg)
	return n.err
}

func f(v float64) *float64 { return &v }

func submission() models.Submission {
	return models.Submission{
		CompanyName:    "Acme Sand Co",
		ReportDate:     "2024-01-15",
		TruckNo:        "TRK-7",
		MaterialType:   "Silica",
		SieveReference: "ASTM-E11",
		Sieves: []models.SieveEntry{
			{MeshSize: "30", Aperture: f(600), Weight: f(10), MultiplyingFactor: f(2)},
			{MeshSize: "50", Aperture: f(300), Weight: f(15), MultiplyingFactor: f(3)},
		},
	}
}

func TestCreatePersistsAndAnnounces(t *testing.T) {
	store := newMemoryStore()
	mirror := &recordingMirror{}
	notifier := &recordingNotifier{}
	svc := NewService(store, &stubRenderer{}, &stubRenderer{}, nil, WithMirror(mirror), WithNotifier(notifier))

	report, err := svc.Create(context.Background(), submission())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.ID != 1 || report.TotalAFS != 2.6 || report.TotalQuantity != 25 {
		t.Errorf("unexpected report: %+v", report)
	}
	if _, err := store.Get(context.Background(), report.ID); err != nil {
		t.Errorf("report should be stored: %v", err)
	}
	if len(mirror.reports) != 1 || mirror.reports[0].ID != report.ID {
		t.Errorf("mirror received %v", mirror.reports)
	}
	if len(notifier.messages) != 1 || notifier.messages[0].ReportID != report.ID {
		t.Fatalf("notifier received %v", notifier.messages)
	}
	if !strings.Contains(notifier.messages[0].Text, "AFS 2.60") {
		t.Errorf("notification text = %q", notifier.messages[0].Text)
	}
}

func TestCreateSideEffectFailuresKeepReport(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil, nil,
		WithMirror(&recordingMirror{err: errors.New("sheets down")}),
		WithNotifier(&recordingNotifier{err: errors.New("webhook down")}))

	report, err := svc.Create(context.Background(), submission())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Get(context.Background(), report.ID); err != nil {
		t.Errorf("report should survive side-effect failures: %v", err)
	}
}

func TestCreateRejectsBeforePersisting(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Submission)
		check  func(error) bool
	}{
		{
			name:   "zero quantity",
			mutate: func(s *models.Submission) { s.Sieves[0].Weight = f(0); s.Sieves[1].Weight = f(0) },
			check:  func(err error) bool { return errors.Is(err, models.ErrDivisionByZero) },
		},
		{
			name: "overflowing totals",
			mutate: func(s *models.Submission) {
				for i := range s.Sieves {
					s.Sieves[i].Weight = f(1e308)
					s.Sieves[i].MultiplyingFactor = f(1)
				}
			},
			check: func(err error) bool {
				var verr *models.ValidationError
				return errors.As(err, &verr) && verr.Has("sieves")
			},
		},
		{
			name:   "validation",
			mutate: func(s *models.Submission) { s.TruckNo = "" },
			check: func(err error) bool {
				var verr *models.ValidationError
				return errors.As(err, &verr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			mirror := &recordingMirror{}
			svc := NewService(store, nil, nil, nil, WithMirror(mirror))

			sub := submission()
			tt.mutate(&sub)

			_, err := svc.Create(context.Background(), sub)
			if !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(store.reports) != 0 {
				t.Errorf("nothing should be persisted, found %d reports", len(store.reports))
			}
			if len(mirror.reports) != 0 {
				t.Error("nothing should be mirrored")
			}
		})
	}
}

func TestCreatePropagatesStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.saveErr = errors.New("disk full")
	notifier := &recordingNotifier{}
	svc := NewService(store, nil, nil, nil, WithNotifier(notifier))

	_, err := svc.Create(context.Background(), submission())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err = %v, want storage failure", err)
	}
	if len(notifier.messages) != 0 {
		t.Error("no notification should be sent for a failed save")
	}
}

func TestRenderPDFOnRead(t *testing.T) {
	store := newMemoryStore()
	renderer := &stubRenderer{}
	svc := NewService(store, renderer, nil, nil)

	report, err := svc.Create(context.Background(), submission())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := svc.RenderPDF(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	second, err := svc.RenderPDF(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if first.Filename != "silica_report_1.pdf" || first.ContentType != "application/pdf" {
		t.Errorf("unexpected document metadata: %+v", first)
	}
	if string(first.Body) != string(second.Body) {
		t.Error("rendering should be repeatable")
	}
	if renderer.calls != 2 {
		t.Errorf("renderer called %d times, want 2", renderer.calls)
	}
}

func TestRenderErrors(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, &stubRenderer{err: fmt.Errorf("%w: fonts missing", models.ErrRenderingUnavailable)}, nil, nil)

	if _, err := svc.RenderPDF(context.Background(), 99); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}

	report, err := svc.Create(context.Background(), submission())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.RenderPDF(context.Background(), report.ID); !errors.Is(err, models.ErrRenderingUnavailable) {
		t.Errorf("broken renderer: err = %v, want ErrRenderingUnavailable", err)
	}
	if _, err := svc.ExportXLSX(context.Background(), report.ID); !errors.Is(err, models.ErrRenderingUnavailable) {
		t.Errorf("missing renderer: err = %v, want ErrRenderingUnavailable", err)
	}
}

func TestDeleteThenGet(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil, nil)

	report, err := svc.Create(context.Background(), submission())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), report.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), report.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(context.Background(), report.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestSummarize(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC) }

	store.now = time.Date(2024, 1, 13, 8, 0, 0, 0, time.UTC)
	if _, err := svc.Create(context.Background(), submission()); err != nil {
		t.Fatalf("create: %v", err)
	}

	store.now = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	if _, err := svc.Create(context.Background(), submission()); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := submission()
	second.Sieves[0].MultiplyingFactor = f(4)
	if _, err := svc.Create(context.Background(), second); err != nil {
		t.Fatalf("create: %v", err)
	}

	digest, err := svc.Summarize(context.Background(), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if digest.Reports != 2 {
		t.Errorf("Reports = %d, want 2", digest.Reports)
	}
	if digest.TotalQuantity != 50 {
		t.Errorf("TotalQuantity = %v, want 50", digest.TotalQuantity)
	}
	// (2.6 + 3.4) / 2
	if digest.MeanAFS != 3 {
		t.Errorf("MeanAFS = %v, want 3", digest.MeanAFS)
	}
	if msg := FormatDigest(digest); !strings.Contains(msg, "2 reports") {
		t.Errorf("FormatDigest = %q", msg)
	}
}
