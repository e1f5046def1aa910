package httpserver

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appproducts "github.com/plusishibba-design/barcode-scanner-cloud/internal/application/products"
	appscans "github.com/plusishibba-design/barcode-scanner-cloud/internal/application/scans"
	domcapture "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/capture"
	domproducts "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/products"
	domscans "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/scans"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/middleware"
)

type scanBody struct {
	Code      string `json:"code"`
	Timestamp string `json:"timestamp"`
}

func submitResponse(res appscans.SubmitResult) map[string]any {
	out := map[string]any{"success": true, "status": res.Status}
	if res.Scan != nil {
		out["data"] = res.Scan
	}
	if res.Description != nil {
		out["description"] = *res.Description
	}
	return out
}

// GET /scans?limit=
func (r *Router) handleListScans(w http.ResponseWriter, req *http.Request) error {
	limit := middleware.ValidateLimit(req.URL.Query().Get("limit"), appscans.GetLimit, appscans.GetLimit)
	list, err := r.scansSvc.Latest(req.Context(), limit)
	if err != nil {
		return failed("failed to fetch scans", err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"success": true, "scans": list})
}

// POST /scans
// Body: {"code": "...", "timestamp": "<ISO-8601, optional>"}
func (r *Router) handleSubmitScan(w http.ResponseWriter, req *http.Request) error {
	var body scanBody
	if err := decodeJSON(req, w, &body); err != nil {
		return err
	}
	res, err := r.scansSvc.Submit(req.Context(), appscans.SubmitCommand{
		Code:      body.Code,
		Timestamp: body.Timestamp,
		Source:    domscans.SourceManual,
	}, nil)
	if err != nil {
		if errors.Is(err, domscans.ErrStorage) {
			return failed("failed to save scan", err)
		}
		return err
	}
	return writeJSON(w, http.StatusOK, submitResponse(res))
}

// GET /scans/stats
func (r *Router) handleScanStats(w http.ResponseWriter, req *http.Request) error {
	st, err := r.scansSvc.Stats(req.Context())
	if err != nil {
		return failed("failed to fetch scan stats", err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"success": true, "total": st.Total, "today": st.Today})
}

func importResponse(st domproducts.ImportStats) map[string]any {
	return map[string]any{
		"success":      true,
		"runId":        st.RunID,
		"total":        st.Total,
		"inserted":     st.Inserted,
		"updated":      st.Updated,
		"skipped":      st.Skipped,
		"chunks":       st.Chunks,
		"failedChunks": st.FailedChunks,
	}
}

// POST /products/import
// Body: {"products": [{"partNum": "...", "partDescription": "..."}]}
func (r *Router) handleImport(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Products []domproducts.Row `json:"products"`
	}
	if err := decodeJSON(req, w, &body); err != nil {
		return err
	}
	if len(body.Products) == 0 {
		return badRequest("invalid products data", domproducts.ErrInvalidInput)
	}
	st, err := r.productsSvc.Import(req.Context(), body.Products, appproducts.ImportOptions{})
	if err != nil {
		return failed("failed to import products", err)
	}
	return writeJSON(w, http.StatusOK, importResponse(st))
}

// POST /products/import/csv
// Body: raw CSV, header row first.
func (r *Router) handleImportCSV(w http.ResponseWriter, req *http.Request) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxCSVBody))
	if err != nil {
		return badRequest("failed to read CSV body", err)
	}
	parsed, err := appproducts.ParseCSV(bytes.NewReader(data))
	if err != nil {
		return badRequest("invalid CSV", err)
	}
	if len(parsed.Rows) == 0 {
		return badRequest("CSV contains no data rows", domproducts.ErrInvalidInput)
	}

	runID := uuid.New().String()
	archiveURL, err := r.productsSvc.ArchiveRaw(req.Context(), runID, data)
	if err != nil {
		// the import itself does not depend on the archive
		log.Printf("import archive failed run=%s err=%v", runID, err)
	}

	st, err := r.productsSvc.Import(req.Context(), parsed.Rows, appproducts.ImportOptions{RunID: runID})
	if err != nil {
		return failed("failed to import products", err)
	}
	resp := importResponse(st)
	resp["malformed"] = parsed.Malformed
	if archiveURL != "" {
		resp["archiveUrl"] = archiveURL
	}
	return writeJSON(w, http.StatusOK, resp)
}

// GET /products/stats
func (r *Router) handleProductStats(w http.ResponseWriter, req *http.Request) error {
	n, err := r.productsSvc.Count(req.Context())
	if err != nil {
		return failed("failed to fetch product stats", err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"success": true, "total": n})
}

// GET /products/{partNum}
func (r *Router) handleGetProduct(w http.ResponseWriter, req *http.Request) error {
	partNum := middleware.SanitizeString(chi.URLParam(req, "partNum"))
	if err := middleware.ValidatePartNum(partNum); err != nil {
		return badRequest(err.Error(), domproducts.ErrInvalidInput)
	}
	p, err := r.productsSvc.Get(req.Context(), partNum)
	if err != nil {
		if errors.Is(err, domproducts.ErrNotFound) {
			return err
		}
		return failed("failed to fetch product", err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"success": true, "product": p})
}

// GET /products/imports/{runId}/errors
func (r *Router) handleImportErrors(w http.ResponseWriter, req *http.Request) error {
	runID := chi.URLParam(req, "runId")
	if _, err := uuid.Parse(runID); err != nil {
		return badRequest("invalid run ID format", domproducts.ErrInvalidInput)
	}
	limit := middleware.ValidateLimit(req.URL.Query().Get("limit"), 100, 1000)
	list, err := r.productsSvc.ImportErrors(req.Context(), runID, limit)
	if err != nil {
		return failed("failed to fetch import errors", err)
	}
	return writeJSON(w, http.StatusOK, map[string]any{"success": true, "runId": runID, "errors": list})
}

// POST /sessions
func (r *Router) handleCreateSession(w http.ResponseWriter, req *http.Request) error {
	s, err := r.sessions.Create(req.Context())
	if err != nil {
		return failed("failed to start capture session", err)
	}
	st := s.Stats()
	return writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"session": map[string]any{"id": st.ID, "startedAt": st.StartedAt},
	})
}

// GET /sessions/{id}
func (r *Router) handleSessionStats(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSessionID(id); err != nil {
		return badRequest(err.Error(), domscans.ErrInvalidInput)
	}
	s, err := r.sessions.Get(id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": s.Stats()})
}

// DELETE /sessions/{id}
func (r *Router) handleStopSession(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSessionID(id); err != nil {
		return badRequest(err.Error(), domscans.ErrInvalidInput)
	}
	st, err := r.sessions.Remove(id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": st})
}

// POST /sessions/{id}/decode
// Body: {"code": "...", "timestamp": "<optional>"}
func (r *Router) handleDecode(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSessionID(id); err != nil {
		return badRequest(err.Error(), domscans.ErrInvalidInput)
	}
	s, err := r.sessions.Get(id)
	if err != nil {
		return err
	}
	var body scanBody
	if err := decodeJSON(req, w, &body); err != nil {
		return err
	}
	res, err := s.Decode(req.Context(), body.Code, body.Timestamp)
	if err != nil {
		if errors.Is(err, domscans.ErrStorage) {
			return failed("failed to save scan", err)
		}
		return err
	}
	return writeJSON(w, http.StatusOK, submitResponse(res))
}

// POST /sessions/{id}/frames
// Body: one image (image/jpeg, image/png or image/webp).
func (r *Router) handleFrame(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSessionID(id); err != nil {
		return badRequest(err.Error(), domscans.ErrInvalidInput)
	}
	ct, err := middleware.ValidateImageContentType(req.Header.Get("Content-Type"))
	if err != nil {
		return badRequest(err.Error(), domscans.ErrInvalidInput)
	}
	s, err := r.sessions.Get(id)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxFrameBody))
	if err != nil {
		return badRequest("failed to read frame", err)
	}
	if len(data) == 0 {
		return badRequest("empty frame", domscans.ErrInvalidInput)
	}
	if err := s.PushFrame(domcapture.Frame{Data: data, ContentType: ct}); err != nil {
		return err
	}
	return writeJSON(w, http.StatusAccepted, map[string]any{"success": true})
}
