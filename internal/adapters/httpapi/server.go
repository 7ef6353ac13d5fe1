package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"tickerSignal/internal/adapters/logger"
	"tickerSignal/internal/adapters/signalhub"
	"tickerSignal/internal/app"
	"tickerSignal/internal/domain"
	"tickerSignal/internal/ports"
	"tickerSignal/internal/strategy/optimization"
)

const maxBodyBytes = 32 << 20

// RequestMetrics counts served requests and exposes the metrics endpoint.
type RequestMetrics interface {
	HTTPRequest(route string, status int)
	Handler() http.Handler
}

// Config holds the HTTP server dependencies.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Service      *app.SignalService
	Logger       ports.Logger
	Metrics      RequestMetrics // optional
	Hub          *signalhub.Hub // optional; enables GET /ws/signals
}

// Server is the thin HTTP layer over the SignalService.
type Server struct {
	cfg     Config
	svc     *app.SignalService
	logger  ports.Logger
	metrics RequestMetrics
	hub     *signalhub.Hub
	handler http.Handler
}

// NewServer builds the routes.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for HTTP server")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	s := &Server{cfg: cfg, svc: cfg.Service, logger: cfg.Logger, metrics: cfg.Metrics, hub: cfg.Hub}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /data", s.handleIngest)
	mux.HandleFunc("POST /data/batch", s.handleIngestBatch)
	mux.HandleFunc("GET /data/{symbol}", s.handleHistory)
	mux.HandleFunc("GET /symbols", s.handleSymbols)
	mux.HandleFunc("GET /signal/{symbol}", s.handleSignal)
	mux.HandleFunc("GET /signal/{symbol}/trace", s.handleSignalTrace)
	mux.HandleFunc("GET /strategy/performance/{symbol}", s.handlePerformance)
	mux.HandleFunc("GET /strategy/optimize/{symbol}", s.handleOptimize)
	mux.HandleFunc("POST /import/csv", s.handleImportCSV)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	if s.hub != nil {
		mux.HandleFunc("GET /ws/signals", s.handleSignalStream)
	}

	s.handler = s.withRequestLogging(mux)
	return s, nil
}

// Handler returns the root handler, including middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.logger.Info(ctx, "HTTP API listening", map[string]interface{}{"addr": ln.Addr().String()})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info(context.Background(), "Shutting down HTTP API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}

// --- Middleware ---

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		r = r.WithContext(logger.WithFields(r.Context(), map[string]interface{}{"requestId": requestID}))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if s.metrics != nil {
			s.metrics.HTTPRequest(route, rec.status)
		}

		fields := map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"durationMs": time.Since(started).Milliseconds(),
		}
		if rec.status >= http.StatusInternalServerError {
			s.logger.Warn(r.Context(), "HTTP request failed", fields)
		} else {
			s.logger.Debug(r.Context(), "HTTP request served", fields)
		}
	})
}

// --- Helpers ---

// writeJSON encodes body before writing the header so an unencodable body
// becomes a 500 instead of an empty 2xx response.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	payload, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		payload, _ = json.Marshal(errorResponse{Detail: "internal server error"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(payload, '\n'))
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInsufficientData):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	detail := err.Error()
	switch status {
	case http.StatusInternalServerError:
		s.logger.Error(r.Context(), err, "Unhandled error serving request", map[string]interface{}{"path": r.URL.Path})
		detail = "internal server error"
	case http.StatusServiceUnavailable:
		detail = "ticker store unavailable"
	}
	writeJSON(w, status, errorResponse{Detail: detail})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", ports.ErrInvalidRequest, err)
	}
	return nil
}

// intParam reads an optional integer query parameter. Missing yields 0.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", ports.ErrInvalidRequest, name, raw)
	}
	return v, nil
}

// windowsParam reads the per-request window overrides. Zero fields mean
// "use the service default"; explicit non-positive values are rejected.
func windowsParam(r *http.Request) (domain.Windows, error) {
	short, err := positiveParam(r, "short_window")
	if err != nil {
		return domain.Windows{}, err
	}
	long, err := positiveParam(r, "long_window")
	if err != nil {
		return domain.Windows{}, err
	}
	return domain.Windows{Short: short, Long: long}, nil
}

// rangeParam reads name_min, name_max and name_step, falling back to def
// for any that are missing.
func rangeParam(r *http.Request, name string, def optimization.ParameterRange) (optimization.ParameterRange, error) {
	out := def
	for _, p := range []struct {
		suffix string
		dst    *int
	}{{"_min", &out.Min}, {"_max", &out.Max}, {"_step", &out.Step}} {
		v, err := positiveParam(r, name+p.suffix)
		if err != nil {
			return optimization.ParameterRange{}, err
		}
		if v != 0 {
			*p.dst = v
		}
	}
	return out, nil
}

func positiveParam(r *http.Request, name string) (int, error) {
	v, err := intParam(r, name)
	if err != nil {
		return 0, err
	}
	if r.URL.Query().Has(name) && v <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive, got %d", domain.ErrValidation, name, v)
	}
	return v, nil
}
