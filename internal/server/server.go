// Package server exposes the screenshot audit over HTTP: the upload
// endpoint, report lookup, health and metrics routes, and the embedded
// browser client.
package server

import (
	"context"
	"io/fs"
	"net/http"
	"net/url"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/screen-audit/internal/analysis"
	"github.com/fpang/screen-audit/internal/filehandler"
	"github.com/fpang/screen-audit/internal/metrics"
	"github.com/fpang/screen-audit/internal/ratelimit"
	"github.com/fpang/screen-audit/internal/store"
	"github.com/fpang/screen-audit/internal/webui"
)

// Analyzer produces a report for an uploaded image.
type Analyzer interface {
	ProduceReport(ctx context.Context, img *filehandler.Image) (*analysis.Report, error)
}

// Archive stores uploaded images and reports.
type Archive interface {
	Put(ctx context.Context, reportID string, createdAt time.Time, image []byte, mimeType, markdown string) (string, error)
	GetReport(ctx context.Context, prefix string) (string, error)
	ImageURL(ctx context.Context, prefix, mimeType string, expiry time.Duration) (string, error)
}

// Config wires a Server. Analyzer is required; everything else is optional.
type Config struct {
	Analyzer Analyzer
	History  store.HistoryStore
	Archive  Archive
	Metrics  *metrics.Metrics
	Limiter  *ratelimit.Limiter

	// AllowedOrigins lists CORS origins; "http://localhost:*" style
	// entries match any port.
	AllowedOrigins []string
	// BackendURL is handed to the browser client through /env.js. Empty
	// means same origin.
	BackendURL string
	Version    string
}

// Server holds the handler dependencies. It is safe for concurrent use.
type Server struct {
	analyzer Analyzer
	history  store.HistoryStore
	archive  Archive
	metrics  *metrics.Metrics
	limiter  *ratelimit.Limiter

	allowedOrigins []string
	backendURL     string
	version        string
	assets         fs.FS

	stop chan struct{}
}

// New builds a Server and starts the rate limiter janitor when a limiter is
// configured. Call Close to stop it.
func New(cfg Config) *Server {
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewMetrics()
	}
	s := &Server{
		analyzer:       cfg.Analyzer,
		history:        cfg.History,
		archive:        cfg.Archive,
		metrics:        m,
		limiter:        cfg.Limiter,
		allowedOrigins: cfg.AllowedOrigins,
		backendURL:     cfg.BackendURL,
		version:        cfg.Version,
		assets:         webui.Assets(),
		stop:           make(chan struct{}),
	}
	if s.limiter != nil {
		s.limiter.StartCleanup(time.Minute, s.stop)
	}
	return s
}

// Close stops background work started by New.
func (s *Server) Close() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	var upload http.Handler = http.HandlerFunc(s.handleUpload)
	if s.limiter != nil {
		upload = s.limiter.Middleware(upload, s.rejectRateLimited)
	}
	mux.Handle("POST /upload", upload)
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		mux.HandleFunc(method+" /upload", s.handleUploadMethodNotAllowed)
	}
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/reports/{id}", s.handleGetReport)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /env.js", s.handleEnvJS)
	mux.Handle("GET /", withSecurityHeaders(connectOrigin(s.backendURL), s.staticHandler()))

	var h http.Handler = gzhttp.GzipHandler(mux)
	h = withCORS(s.allowedOrigins, h)
	h = withMetrics(s.metrics, h)
	h = withLogging(h)
	h = withRequestID(h)
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Server) handleUploadMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	httpError(w, r, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
}

func (s *Server) rejectRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	w.Header().Set("Retry-After", "60")
	httpError(w, r, http.StatusTooManyRequests, CodeRateLimited, "too many requests, please wait before uploading again")
}

// connectOrigin returns the scheme://host of a backend URL for the CSP
// connect-src directive, or "" when it is unset or same-origin.
func connectOrigin(backendURL string) string {
	if backendURL == "" {
		return ""
	}
	u, err := url.Parse(backendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		log.Warn().Str("backendUrl", backendURL).Msg("Ignoring malformed backend URL for CSP")
		return ""
	}
	return u.Scheme + "://" + u.Host
}
