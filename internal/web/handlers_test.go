package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/proddash/internal/config"
	"github.com/JonMunkholm/proddash/internal/core"
	"github.com/JonMunkholm/proddash/internal/fetch"
	"github.com/JonMunkholm/proddash/internal/logging"
	"github.com/JonMunkholm/proddash/internal/snapshot"
	"github.com/JonMunkholm/proddash/internal/summary"
)

// ---- Fixtures

const testPassword = "s3cret"

var (
	workbook = []byte("country,item,category,sub_category,week,target,completed\n" +
		"KR,Cap,ACC,Ball cap,48,100,40\n" +
		"KR,Tee,APP,Short sleeve,48,50,10\n")
	workbookNoTarget = []byte("country,item,category,sub_category,week,completed\n" +
		"KR,Cap,ACC,Ball cap,48,40\n")
)

type stubFetcher struct {
	mu   sync.Mutex
	data []byte
	err  error
}

func (f *stubFetcher) Fetch(ctx context.Context, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data, f.err
}

func (f *stubFetcher) set(data []byte, err error) {
	f.mu.Lock()
	f.data, f.err = data, err
	f.mu.Unlock()
}

func testConfig() *config.Config {
	return &config.Config{
		Sync: config.SyncConfig{
			FileURL:         "https://1drv.ms/x/s!token",
			IntervalSeconds: 3600,
			FileName:        "★26SS 생산.csv",
			QuantitySheet:   "Summary",
		},
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Rate: config.RateLimitConfig{
			RequestsPerMinute: 100,
			RefreshLimit:      100,
			MaxRefreshWaiters: 4,
		},
		Security: config.SecurityConfig{Password: testPassword},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *stubFetcher) {
	t.Helper()
	f := &stubFetcher{data: workbook}
	store := snapshot.New()
	syncer := core.NewSyncer(core.SyncConfig{
		ShareURL: cfg.Sync.FileURL,
		FileName: cfg.Sync.FileName,
		Selector: summary.NewSelector(cfg.Sync.QuantitySheet, cfg.Sync.StyleSheet),
		Interval: cfg.Sync.Interval(),
	}, f, summary.NewParser(summary.Options{}), store, core.WithLogger(logging.Discard()))

	s := NewServer(core.NewService(store, syncer), cfg)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, f
}

func do(s *Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.SetBasicAuth("anyone", testPassword)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func syncNow(t *testing.T, s *Server) {
	t.Helper()
	rec := do(s, http.MethodPost, "/api/refresh?wait=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

// ---- Tests

func TestHealth_NoAuthRequired(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" || body["has_data"] != false {
		t.Errorf("body = %v, want ok without data", body)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestAPI_RequiresPassword(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	tests := []struct {
		name     string
		auth     func(*http.Request)
		wantCode int
		wantErr  string
	}{
		{"no credentials", func(*http.Request) {}, http.StatusUnauthorized, "AUTH001"},
		{"wrong password", func(r *http.Request) { r.SetBasicAuth("x", "nope") }, http.StatusUnauthorized, "AUTH002"},
		{"correct password", func(r *http.Request) { r.SetBasicAuth("x", testPassword) }, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, prefix := range []string{"/api", "/api/v2"} {
				req := httptest.NewRequest(http.MethodGet, prefix+"/auth/verify", nil)
				tt.auth(req)
				rec := httptest.NewRecorder()
				s.Router().ServeHTTP(rec, req)

				if rec.Code != tt.wantCode {
					t.Fatalf("%s status = %d, want %d", prefix, rec.Code, tt.wantCode)
				}
				if tt.wantErr == "" {
					continue
				}
				if got := rec.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, `Basic realm="dashboard"`) {
					t.Errorf("WWW-Authenticate = %q", got)
				}
				if body := decode[map[string]string](t, rec); body["code"] != tt.wantErr {
					t.Errorf("code = %q, want %q", body["code"], tt.wantErr)
				}
			}
		})
	}
}

func TestSummary_EmptyBeforeFirstSync(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, http.MethodGet, "/api/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode[core.SummaryView](t, rec)
	if !body.Empty || body.KPI.TotalTarget != 0 {
		t.Errorf("body = %+v, want empty summary", body)
	}
}

func TestSummary_AfterSync(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	syncNow(t, s)

	for _, target := range []string{
		"/api/summary?basis=quantity&week=current",
		"/api/quantity",
		"/api/v2/quantity?week=next",
	} {
		rec := do(s, http.MethodGet, target, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d, want 200", target, rec.Code)
		}
		body := decode[core.SummaryView](t, rec)
		if body.Empty || body.Stale {
			t.Errorf("GET %s Empty = %v Stale = %v, want fresh data", target, body.Empty, body.Stale)
		}
		if body.KPI.TotalTarget != 150 || body.KPI.TotalCompleted != 50 {
			t.Errorf("GET %s totals = %v/%v, want 150/50", target, body.KPI.TotalTarget, body.KPI.TotalCompleted)
		}
		if body.Sync.LastSuccess == nil {
			t.Errorf("GET %s sync.last_success = nil", target)
		}
	}
}

func TestSummary_BadParameters(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	tests := []struct {
		target   string
		wantCode string
	}{
		{"/api/summary?basis=revenue", "API001"},
		{"/api/summary?week=later", "API002"},
		{"/api/quantity?week=2", "API002"},
	}

	for _, tt := range tests {
		rec := do(s, http.MethodGet, tt.target, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", tt.target, rec.Code)
			continue
		}
		if body := decode[ErrorResponse](t, rec); body.Code != tt.wantCode {
			t.Errorf("GET %s code = %q, want %q", tt.target, body.Code, tt.wantCode)
		}
	}
}

func TestRefresh_FailureStatus(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		err        error
		wantStatus int
		wantCode   string
	}{
		{"schema error", workbookNoTarget, nil, http.StatusUnprocessableEntity, "SCH002"},
		{"fetch error", nil, &fetch.FetchError{URL: "https://1drv.ms/x/s!token", Attempts: 1, Err: fetch.ErrHTMLPage},
			http.StatusBadGateway, "FETCH003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, f := newTestServer(t, testConfig())
			syncNow(t, s)
			f.set(tt.data, tt.err)

			rec := do(s, http.MethodPost, "/api/refresh?wait=true", nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if body := decode[ErrorResponse](t, rec); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}

			// The previous summary is still served, flagged stale.
			view := decode[core.SummaryView](t, do(s, http.MethodGet, "/api/summary", nil))
			if view.Empty || !view.Stale || view.KPI.TotalTarget != 150 {
				t.Errorf("summary Empty = %v Stale = %v target = %v, want stale previous data",
					view.Empty, view.Stale, view.KPI.TotalTarget)
			}

			status := decode[map[string]any](t, do(s, http.MethodGet, "/api/sync-status", nil))
			if status["stale"] != true || status["last_error_code"] != tt.wantCode {
				t.Errorf("sync-status = %v, want stale with %s", status, tt.wantCode)
			}
		})
	}
}

func TestRefresh_WithoutWaitAccepted(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, http.MethodPost, "/api/refresh", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	body := decode[core.RefreshResponse](t, rec)
	if body.Status != core.RefreshAccepted && body.Status != core.RefreshCoalesced {
		t.Errorf("status = %q, want accepted or coalesced", body.Status)
	}
}

func TestRefresh_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RefreshLimit = 1
	s, _ := newTestServer(t, cfg)

	if rec := do(s, http.MethodPost, "/api/refresh?wait=true", nil); rec.Code != http.StatusOK {
		t.Fatalf("first refresh status = %d, want 200", rec.Code)
	}
	rec := do(s, http.MethodPost, "/api/refresh?wait=true", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second refresh status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
	if body := decode[ErrorResponse](t, rec); body.Code != "RATE001" {
		t.Errorf("code = %q, want RATE001", body.Code)
	}

	// Reads have their own budget.
	if rec := do(s, http.MethodGet, "/api/summary", nil); rec.Code != http.StatusOK {
		t.Errorf("summary status = %d, want 200", rec.Code)
	}
}

func TestExport_NoData(t *testing.T) {
	s, _ := newTestServer(t, testConfig())

	rec := do(s, http.MethodGet, "/api/export/excel", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body := decode[ErrorResponse](t, rec); body.Code != "API003" {
		t.Errorf("code = %q, want API003", body.Code)
	}
}

func TestExport_ServesWorkbook(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	syncNow(t, s)

	rec := do(s, http.MethodGet, "/api/export/excel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != string(workbook) {
		t.Error("body is not the synced workbook")
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	wantCD := `attachment; filename="26SS .csv"; filename*=UTF-8''%E2%98%8526SS%20%EC%83%9D%EC%82%B0.csv`
	if got := rec.Header().Get("Content-Disposition"); got != wantCD {
		t.Errorf("Content-Disposition = %q, want %q", got, wantCD)
	}

	etag := rec.Header().Get("ETag")
	if len(etag) < 3 {
		t.Fatalf("ETag = %q, want content hash", etag)
	}
	rec = do(s, http.MethodGet, "/api/export/excel", http.Header{"If-None-Match": {etag}})
	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional status = %d, want 304", rec.Code)
	}
}

func TestSheets(t *testing.T) {
	s, _ := newTestServer(t, testConfig())
	syncNow(t, s)

	body := decode[map[string]any](t, do(s, http.MethodGet, "/api/sheets", nil))
	if body["quantity_sheet"] != "Summary" || body["quantity_sheet_ok"] != true {
		t.Errorf("sheets = %v, want configured sheet present", body)
	}
	if body["file_name"] != "★26SS 생산.csv" {
		t.Errorf("file_name = %v", body["file_name"])
	}
}

func TestContentDisposition(t *testing.T) {
	tests := map[string]string{
		"report.xlsx": `attachment; filename="report.xlsx"; filename*=UTF-8''report.xlsx`,
		"생산.xlsx":     `attachment; filename="workbook.xlsx"; filename*=UTF-8''%EC%83%9D%EC%82%B0.xlsx`,
		`a"b.csv`:     `attachment; filename="ab.csv"; filename*=UTF-8''a%22b.csv`,
	}

	for name, want := range tests {
		if got := contentDisposition(name); got != want {
			t.Errorf("contentDisposition(%q) = %q, want %q", name, got, want)
		}
	}
}
