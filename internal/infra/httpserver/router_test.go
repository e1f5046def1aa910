package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	appcapture "github.com/plusishibba-design/barcode-scanner-cloud/internal/application/capture"
	appproducts "github.com/plusishibba-design/barcode-scanner-cloud/internal/application/products"
	appscans "github.com/plusishibba-design/barcode-scanner-cloud/internal/application/scans"
	domscans "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/scans"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/infra/db/memory"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/metrics"
)

type testServer struct {
	handler  http.Handler
	store    *memory.Store
	sessions *appcapture.Manager
}

func newTestServer(t *testing.T, scanRepo domscans.Repository) *testServer {
	t.Helper()
	store := memory.NewStore()
	if scanRepo == nil {
		scanRepo = store
	}
	productsSvc := appproducts.NewService(store, store.ImportErrors(), nil)
	productsSvc.ChunkDelay = time.Millisecond
	scansSvc := &appscans.Service{Repo: scanRepo, Lookup: productsSvc}
	sessions := appcapture.NewManager(scansSvc, appcapture.Options{DedupWindow: time.Second}, time.Minute)
	t.Cleanup(sessions.Close)

	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	return &testServer{
		handler:  NewRouter(scansSvc, productsSvc, sessions, Options{Gatherer: reg}),
		store:    store,
		sessions: sessions,
	}
}

func (ts *testServer) do(t *testing.T, method, path, contentType string, body []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func (ts *testServer) postJSON(t *testing.T, path string, v any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ts.do(t, http.MethodPost, path, "application/json", b)
}

func TestSubmitScan_EmptyCodeRejected(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, body := ts.postJSON(t, "/scans", map[string]string{"code": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["success"] != false || body["error"] == "" {
		t.Fatalf("unexpected body %v", body)
	}
	if st, _ := ts.store.Stats(context.Background(), time.Time{}); st.Total != 0 {
		t.Fatalf("nothing should be persisted")
	}
}

func TestSubmitScan_InvalidJSON(t *testing.T) {
	ts := newTestServer(t, nil)
	rec, body := ts.do(t, http.MethodPost, "/scans", "application/json", []byte("{"))
	if rec.Code != http.StatusBadRequest || body["success"] != false {
		t.Fatalf("status = %d body=%v", rec.Code, body)
	}
}

// Importing a product makes the next scan of that code carry its description.
func TestImportThenScan_DescriptionVisible(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, body := ts.postJSON(t, "/scans", map[string]string{"code": "12-345"})
	if rec.Code != http.StatusOK {
		t.Fatalf("first scan status = %d body=%v", rec.Code, body)
	}
	if _, ok := body["description"]; ok {
		t.Fatalf("unknown product must not have a description: %v", body)
	}

	rec, body = ts.postJSON(t, "/products/import", map[string]any{
		"products": []map[string]string{
			{"partNum": "12-345", "partDescription": "Hex bolt M6"},
			{"partNum": "", "partDescription": "orphan"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d body=%v", rec.Code, body)
	}
	if body["total"] != float64(2) || body["inserted"] != float64(1) || body["skipped"] != float64(1) {
		t.Fatalf("unexpected import stats %v", body)
	}

	rec, body = ts.postJSON(t, "/scans", map[string]string{"code": "12-345", "timestamp": "2024-05-01T09:00:00.000Z"})
	if rec.Code != http.StatusOK {
		t.Fatalf("second scan status = %d", rec.Code)
	}
	if body["description"] != "Hex bolt M6" {
		t.Fatalf("description = %v", body["description"])
	}
	data := body["data"].(map[string]any)
	if data["timestamp"] != "2024-05-01T09:00:00.000Z" || data["description"] != "Hex bolt M6" {
		t.Fatalf("unexpected data %v", data)
	}

	rec, body = ts.do(t, http.MethodGet, "/scans", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := body["scans"].([]any)
	if len(list) != 2 {
		t.Fatalf("expected 2 scans, got %d", len(list))
	}
	newest := list[0].(map[string]any)
	if newest["description"] != "Hex bolt M6" {
		t.Fatalf("newest scan should come first: %v", newest)
	}

	rec, body = ts.do(t, http.MethodGet, "/scans/stats", "", nil)
	if rec.Code != http.StatusOK || body["total"] != float64(2) {
		t.Fatalf("stats status=%d body=%v", rec.Code, body)
	}
}

func TestImport_EmptyRejected(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, payload := range []any{map[string]any{}, map[string]any{"products": []any{}}} {
		rec, body := ts.postJSON(t, "/products/import", payload)
		if rec.Code != http.StatusBadRequest || body["success"] != false {
			t.Fatalf("payload %v: status = %d body=%v", payload, rec.Code, body)
		}
	}
}

func TestImportCSV_AndProductRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	csv := "partNum,partDescription\n12-345,Bolt\n12-346,\"Nut, M6\"\n,missing\n"

	rec, body := ts.do(t, http.MethodPost, "/products/import/csv", "text/csv", []byte(csv))
	if rec.Code != http.StatusOK {
		t.Fatalf("csv import status = %d body=%v", rec.Code, body)
	}
	if body["inserted"] != float64(2) || body["skipped"] != float64(1) || body["malformed"] != float64(1) {
		t.Fatalf("unexpected stats %v", body)
	}
	if _, ok := body["archiveUrl"]; ok {
		t.Fatalf("no archive configured, got archiveUrl")
	}

	rec, body = ts.do(t, http.MethodGet, "/products/12-346", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get product status = %d", rec.Code)
	}
	if p := body["product"].(map[string]any); p["partDescription"] != "Nut, M6" {
		t.Fatalf("unexpected product %v", p)
	}

	rec, _ = ts.do(t, http.MethodGet, "/products/99-999", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing product status = %d", rec.Code)
	}

	rec, body = ts.do(t, http.MethodGet, "/products/stats", "", nil)
	if rec.Code != http.StatusOK || body["total"] != float64(2) {
		t.Fatalf("product stats status=%d body=%v", rec.Code, body)
	}

	runID := "6f1c2a3e-2b1d-4c5e-9f00-123456789abc"
	rec, body = ts.do(t, http.MethodGet, "/products/imports/"+runID+"/errors", "", nil)
	if rec.Code != http.StatusOK || len(body["errors"].([]any)) != 0 {
		t.Fatalf("import errors status=%d body=%v", rec.Code, body)
	}
}

type failingScans struct{}

func (failingScans) Append(ctx context.Context, s *domscans.Scan) error {
	return errors.New("connection refused")
}
func (failingScans) Latest(ctx context.Context, limit int) ([]*domscans.Scan, error) {
	return nil, errors.New("connection refused")
}
func (failingScans) Stats(ctx context.Context, dayStart time.Time) (domscans.Stats, error) {
	return domscans.Stats{}, errors.New("connection refused")
}

func TestStorageFailure_Returns500WithDetails(t *testing.T) {
	ts := newTestServer(t, failingScans{})

	rec, body := ts.postJSON(t, "/scans", map[string]string{"code": "12-345"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["error"] != "failed to save scan" || !strings.Contains(body["details"].(string), "connection refused") {
		t.Fatalf("unexpected body %v", body)
	}

	rec, body = ts.do(t, http.MethodGet, "/scans", "", nil)
	if rec.Code != http.StatusInternalServerError || body["success"] != false {
		t.Fatalf("list status = %d body=%v", rec.Code, body)
	}
}

func TestSessions_DecodeDedupAndLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, body := ts.do(t, http.MethodPost, "/sessions", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	id := body["session"].(map[string]any)["id"].(string)

	rec, body = ts.postJSON(t, "/sessions/"+id+"/decode", map[string]string{"code": "4901234567894"})
	if rec.Code != http.StatusOK || body["status"] != "recorded" {
		t.Fatalf("first decode status=%d body=%v", rec.Code, body)
	}
	rec, body = ts.postJSON(t, "/sessions/"+id+"/decode", map[string]string{"code": "4901234567894"})
	if rec.Code != http.StatusOK || body["status"] != "duplicate" {
		t.Fatalf("second decode status=%d body=%v", rec.Code, body)
	}
	if _, ok := body["data"]; ok {
		t.Fatalf("duplicate must not carry data")
	}

	rec, _ = ts.do(t, http.MethodPost, "/sessions/"+id+"/frames", "image/jpeg", []byte{0xff, 0xd8, 0xff})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("frame status = %d", rec.Code)
	}
	rec, _ = ts.do(t, http.MethodPost, "/sessions/"+id+"/frames", "text/plain", []byte("x"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("text frame status = %d", rec.Code)
	}

	rec, body = ts.do(t, http.MethodGet, "/sessions/"+id, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	st := body["session"].(map[string]any)
	if st["accepted"] != float64(1) || st["duplicates"] != float64(1) {
		t.Fatalf("unexpected session stats %v", st)
	}

	rec, body = ts.do(t, http.MethodDelete, "/sessions/"+id, "", nil)
	if rec.Code != http.StatusOK || body["session"].(map[string]any)["closed"] != true {
		t.Fatalf("delete status=%d body=%v", rec.Code, body)
	}
	rec, _ = ts.postJSON(t, "/sessions/"+id+"/decode", map[string]string{"code": "X"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("decode after delete status = %d", rec.Code)
	}
	if ts.sessions.Len() != 0 {
		t.Fatalf("session still registered")
	}

	rec, _ = ts.do(t, http.MethodGet, "/sessions/not-a-uuid", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id status = %d", rec.Code)
	}
}

func TestOperationalRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, path := range []string{"/health", "/ready", "/live"} {
		rec, _ := ts.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
	}

	ts.do(t, http.MethodGet, "/scans", "", nil)
	rec, _ := ts.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("metrics status=%d body=%s", rec.Code, rec.Body.String())
	}
}
