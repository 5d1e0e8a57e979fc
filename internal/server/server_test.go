package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/tally/internal/app"
	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
)

var (
	testAccount = models.Account{ID: uuid.New(), Name: "Checking", Currency: "USD"}
	testFood    = models.Category{ID: uuid.New(), Name: "Food"}
	testDining  = models.Category{ID: uuid.New(), Name: "Restaurants", ParentID: &testFood.ID}
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "ledger")
	cfg.Logging.Level = "error"

	a, err := app.NewAppWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewAppWithConfig failed: %v", err)
	}
	t.Cleanup(a.Close)
	return NewServer(a)
}

func seedLedger(t *testing.T, s *Server) {
	t.Helper()
	ctx := context.Background()
	store := s.app.Storage.LedgerStore()

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
	must(store.SaveAccount(ctx, testAccount))
	must(store.SaveCategory(ctx, testFood))
	must(store.SaveCategory(ctx, testDining))

	add := func(typ models.TransactionType, amount string, day int, cat *models.Category) {
		when := time.Date(2024, 5, day, 12, 0, 0, 0, time.UTC)
		rec := interfaces.TransactionRecord{
			ID:        uuid.New(),
			Amount:    decimal.RequireFromString(amount),
			Type:      typ,
			DateTime:  &when,
			AccountID: testAccount.ID,
		}
		if cat != nil {
			rec.CategoryID = &cat.ID
		}
		must(store.SaveTransaction(ctx, rec))
	}
	add(models.TxIncome, "500", 1, nil)
	add(models.TxExpense, "60", 2, &testFood)
	add(models.TxExpense, "40", 3, &testDining)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthAndVersion(t *testing.T) {
	s := newTestServer(t)

	rr := doRequest(t, s, http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("health body: %s", rr.Body.String())
	}

	rr = doRequest(t, s, http.MethodGet, "/api/version", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("version: expected 200, got %d", rr.Code)
	}
	var v map[string]string
	json.Unmarshal(rr.Body.Bytes(), &v)
	if v["version"] != common.GetVersion() {
		t.Errorf("version: expected %q, got %q", common.GetVersion(), v["version"])
	}
	if v["git_commit"] != common.GetGitCommit() {
		t.Errorf("git_commit: expected %q, got %q", common.GetGitCommit(), v["git_commit"])
	}

	rr = doRequest(t, s, http.MethodPost, "/api/health", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST /api/health, got %d", rr.Code)
	}
}

func TestCorrelationIDHeader(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Correlation-ID"); got != "abc123" {
		t.Errorf("expected correlation id abc123, got %q", got)
	}

	rr = doRequest(t, s, http.MethodGet, "/api/health", "")
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Error("expected a generated correlation id")
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	rr := doRequest(t, s, http.MethodOptions, "/api/report", "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(common.NewSilentLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rr.Code)
	}
}

func TestReport_RunAndFetch(t *testing.T) {
	s := newTestServer(t)
	seedLedger(t, s)

	rr := doRequest(t, s, http.MethodGet, "/api/report", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any run, got %d", rr.Code)
	}

	rr = doRequest(t, s, http.MethodPost, "/api/report", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var rep struct {
		Stats struct {
			Income  string `json:"income"`
			Expense string `json:"expense"`
		} `json:"stats"`
		History   []map[string]interface{} `json:"history"`
		Breakdown []models.CategoryGroup   `json:"breakdown"`
		Count     int                      `json:"count"`
		Currency  string                   `json:"currency"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Stats.Income != "500" || rep.Stats.Expense != "100" {
		t.Errorf("stats = %+v", rep.Stats)
	}
	if rep.Count != 3 {
		t.Errorf("count = %d, want 3", rep.Count)
	}
	// Three dates, one row each.
	if len(rep.History) != 6 {
		t.Errorf("history length = %d, want 6", len(rep.History))
	}
	if rep.History[0]["kind"] != "date" {
		t.Errorf("first history entry should be a date divider, got %v", rep.History[0]["kind"])
	}
	if len(rep.Breakdown) != 1 || rep.Breakdown[0].Parent.Category.ID != testFood.ID {
		t.Fatalf("breakdown = %+v", rep.Breakdown)
	}

	rr = doRequest(t, s, http.MethodGet, "/api/report", "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected published report, got %d", rr.Code)
	}
}

func TestReport_InvalidFilter(t *testing.T) {
	s := newTestServer(t)
	seedLedger(t, s)

	rr := doRequest(t, s, http.MethodPost, "/api/report", `{"min_amount": "10", "max_amount": "1"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var e ErrorResponse
	json.Unmarshal(rr.Body.Bytes(), &e)
	if e.Code != "invalid_filter" {
		t.Errorf("expected invalid_filter code, got %q", e.Code)
	}

	rr = doRequest(t, s, http.MethodPost, "/api/report", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad JSON, got %d", rr.Code)
	}
}

func TestReport_CollapseExpandSelect(t *testing.T) {
	s := newTestServer(t)
	seedLedger(t, s)

	if rr := doRequest(t, s, http.MethodPost, "/api/report", ""); rr.Code != http.StatusOK {
		t.Fatalf("run failed: %d", rr.Code)
	}

	rr := doRequest(t, s, http.MethodPost, "/api/report/collapse", `{"date": "2024-05-02"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("collapse: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var collapsed struct {
		Collapsed []string `json:"collapsed"`
	}
	json.Unmarshal(rr.Body.Bytes(), &collapsed)
	if len(collapsed.Collapsed) != 1 || collapsed.Collapsed[0] != "2024-05-02" {
		t.Errorf("collapsed = %v", collapsed.Collapsed)
	}

	rr = doRequest(t, s, http.MethodPost, "/api/report/collapse", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("collapse without date: expected 400, got %d", rr.Code)
	}

	var groups struct {
		Breakdown []models.CategoryGroup `json:"breakdown"`
	}
	rr = doRequest(t, s, http.MethodPost, "/api/report/expand", `{"category_id": "`+testFood.ID.String()+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expand: expected 200, got %d", rr.Code)
	}
	json.Unmarshal(rr.Body.Bytes(), &groups)
	if len(groups.Breakdown) != 1 || !groups.Breakdown[0].Parent.IsExpanded {
		t.Errorf("expected Food expanded, got %+v", groups.Breakdown)
	}

	rr = doRequest(t, s, http.MethodPost, "/api/report/select", `{"category_id": "`+testDining.ID.String()+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("select: expected 200, got %d", rr.Code)
	}
	groups.Breakdown = nil
	json.Unmarshal(rr.Body.Bytes(), &groups)
	if len(groups.Breakdown) != 1 || len(groups.Breakdown[0].Children) != 1 || !groups.Breakdown[0].Children[0].IsSelected {
		t.Errorf("expected Restaurants selected, got %+v", groups.Breakdown)
	}

	rr = doRequest(t, s, http.MethodPost, "/api/report/select", `{"category_id": "`+uuid.New().String()+`"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("select unknown: expected 404, got %d", rr.Code)
	}

	rr = doRequest(t, s, http.MethodPost, "/api/report/select", `{"category_id": null}`)
	if rr.Code != http.StatusOK {
		t.Errorf("clear selection: expected 200, got %d", rr.Code)
	}
}

func TestReport_Chart(t *testing.T) {
	s := newTestServer(t)
	seedLedger(t, s)

	rr := doRequest(t, s, http.MethodGet, "/api/report/chart.png", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any run, got %d", rr.Code)
	}

	doRequest(t, s, http.MethodPost, "/api/report", "")
	rr = doRequest(t, s, http.MethodGet, "/api/report/chart.png", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Content-Type") != "image/png" {
		t.Errorf("content type = %q", rr.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}
}

func TestDiagnosticsAndConfig(t *testing.T) {
	s := newTestServer(t)

	rr := doRequest(t, s, http.MethodGet, "/api/diagnostics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("diagnostics: expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "degraded_conversions") {
		t.Errorf("diagnostics body: %s", rr.Body.String())
	}

	rr = doRequest(t, s, http.MethodGet, "/api/config", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("config: expected 200, got %d", rr.Code)
	}
	var cfg map[string]interface{}
	json.Unmarshal(rr.Body.Bytes(), &cfg)
	if cfg["base_currency"] != "USD" {
		t.Errorf("base_currency = %v", cfg["base_currency"])
	}
}

func TestShutdownEndpoint(t *testing.T) {
	s := newTestServer(t)
	ch := make(chan struct{}, 1)
	s.SetShutdownChannel(ch)

	rr := doRequest(t, s, http.MethodPost, "/api/shutdown", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown channel was not signalled")
	}

	s.app.Config.Environment = "production"
	rr = doRequest(t, s, http.MethodPost, "/api/shutdown", "")
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 in production, got %d", rr.Code)
	}
}
