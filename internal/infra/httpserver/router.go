package httpserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	appcapture "github.com/plusishibba-design/barcode-scanner-cloud/internal/application/capture"
	appproducts "github.com/plusishibba-design/barcode-scanner-cloud/internal/application/products"
	appscans "github.com/plusishibba-design/barcode-scanner-cloud/internal/application/scans"
	domcapture "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/capture"
	domproducts "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/products"
	domscans "github.com/plusishibba-design/barcode-scanner-cloud/internal/domain/scans"
	"github.com/plusishibba-design/barcode-scanner-cloud/internal/middleware"
)

const (
	maxJSONBody  = 10 << 20
	maxCSVBody   = 10 << 20
	maxFrameBody = 5 << 20
)

// Options carry the cross-cutting pieces wired by main.
type Options struct {
	CORSOrigins []string
	APIKeys     []string
	RateLimiter *middleware.RateLimiter
	Health      map[string]middleware.HealthChecker
	Readiness   *middleware.Readiness
	Gatherer    prometheus.Gatherer
}

type Router struct {
	scansSvc    *appscans.Service
	productsSvc *appproducts.Service
	sessions    *appcapture.Manager
}

func NewRouter(scansSvc *appscans.Service, productsSvc *appproducts.Service, sessions *appcapture.Manager, opts Options) http.Handler {
	r := &Router{scansSvc: scansSvc, productsSvc: productsSvc, sessions: sessions}
	mux := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	if opts.RateLimiter != nil {
		mux.Use(middleware.RateLimitMiddleware(opts.RateLimiter))
	}

	readiness := opts.Readiness
	if readiness == nil {
		readiness = middleware.NewReadiness()
	}
	mux.Get("/health", middleware.HealthHandler(opts.Health))
	mux.Get("/ready", readiness.Handler)
	mux.Get("/live", middleware.LivenessHandler)
	if opts.Gatherer != nil {
		mux.Method(http.MethodGet, "/metrics", middleware.MetricsHandler(opts.Gatherer))
	}

	mux.Route("/scans", func(rt chi.Router) {
		rt.Get("/", r.wrap(r.handleListScans))
		rt.Post("/", r.wrap(r.handleSubmitScan))
		rt.Get("/stats", r.wrap(r.handleScanStats))
	})

	mux.Route("/products", func(rt chi.Router) {
		rt.Post("/import", r.wrap(r.handleImport))
		rt.Post("/import/csv", r.wrap(r.handleImportCSV))
		rt.Get("/stats", r.wrap(r.handleProductStats))
		rt.Get("/imports/{runId}/errors", r.wrap(r.handleImportErrors))
		rt.Get("/{partNum}", r.wrap(r.handleGetProduct))
	})

	mux.Route("/sessions", func(rt chi.Router) {
		rt.Post("/", r.wrap(r.handleCreateSession))
		rt.Get("/{id}", r.wrap(r.handleSessionStats))
		rt.Delete("/{id}", r.wrap(r.handleStopSession))
		rt.Post("/{id}/decode", r.wrap(r.handleDecode))
		rt.Post("/{id}/frames", r.wrap(r.handleFrame))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// apiError lets a handler pick the status and message shown to the client
// while keeping the cause for the details field.
type apiError struct {
	status int
	msg    string
	err    error
}

func (e *apiError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *apiError) Unwrap() error { return e.err }

func badRequest(msg string, err error) error {
	return &apiError{status: http.StatusBadRequest, msg: msg, err: err}
}

func failed(msg string, err error) error {
	return &apiError{status: http.StatusInternalServerError, msg: msg, err: err}
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status, msg, details := classify(err)
		if status >= http.StatusInternalServerError {
			log.Printf("request failed method=%s path=%s status=%d err=%v", req.Method, req.URL.Path, status, err)
		}
		writeError(w, status, msg, details)
	}
}

// classify maps an error to status, client message and details. Sentinel
// errors win over the apiError status so a wrapped not-found still yields 404.
func classify(err error) (int, string, string) {
	var ae *apiError
	hasAPI := errors.As(err, &ae)
	msg := func(def string) string {
		if hasAPI {
			return ae.msg
		}
		return def
	}

	switch {
	case errors.Is(err, domscans.ErrInvalidInput), errors.Is(err, domproducts.ErrInvalidInput):
		return http.StatusBadRequest, msg(err.Error()), ""
	case errors.Is(err, domproducts.ErrNotFound):
		return http.StatusNotFound, msg("product not found"), ""
	case errors.Is(err, appcapture.ErrSessionNotFound):
		return http.StatusNotFound, msg("session not found"), ""
	case errors.Is(err, appcapture.ErrSessionClosed), errors.Is(err, appcapture.ErrFramesNotAllowed):
		return http.StatusConflict, msg(err.Error()), ""
	case errors.Is(err, domcapture.ErrQuotaExceeded):
		return http.StatusTooManyRequests, msg("recognition quota exceeded"), ""
	}

	if hasAPI {
		details := ""
		if ae.err != nil {
			details = ae.err.Error()
		}
		return ae.status, ae.msg, details
	}
	return http.StatusInternalServerError, "internal error", err.Error()
}

func decodeJSON(req *http.Request, w http.ResponseWriter, v any) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxJSONBody)
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return badRequest("invalid JSON body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	body := map[string]any{"success": false, "error": msg}
	if details != "" {
		body["details"] = details
	}
	if err := writeJSON(w, status, body); err != nil {
		log.Printf("write error response err=%v", err)
	}
}
