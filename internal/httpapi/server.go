// Package httpapi exposes the engine over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"index-returns/internal/comparison"
	"index-returns/internal/config"
	"index-returns/internal/indexdata"
	"index-returns/internal/period"
	"index-returns/internal/service"
	"index-returns/internal/table"
	"index-returns/internal/version"
)

// Engine is the part of the service the handlers call.
type Engine interface {
	Compare(ctx context.Context, req service.Request) (*comparison.Comparison, error)
	Stats(ctx context.Context, req service.Request, p period.Period) (*service.StatsResult, error)
	Indices(ctx context.Context) ([]indexdata.Index, error)
	IndexView(ctx context.Context, name string) (*indexdata.IndexView, error)
	Ready() bool
}

// ServiceResponse is the envelope every endpoint returns.
type ServiceResponse[T any] struct {
	Data  *T     `json:"data"`
	Error string `json:"error"`
}

// Pong answers the ping endpoint.
type Pong struct {
	Message string `json:"message"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
}

type handler struct {
	engine Engine
	logger zerolog.Logger
}

// NewRouter wires the API routes.
func NewRouter(engine Engine, logger zerolog.Logger) http.Handler {
	h := &handler{engine: engine, logger: logger.With().Str("component", "httpapi").Logger()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.ping)
		r.Get("/indices", h.indices)
		r.Get("/indices/{name}", h.index)
		r.Get("/compare", h.compare)
		r.Get("/compare/stats", h.stats)
	})
	return r
}

// NewServer builds the HTTP server for the router.
func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:           cfg.Addr,
		Handler:        handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func (h *handler) ping(w http.ResponseWriter, r *http.Request) {
	writeOK(w, &Pong{Message: "pong", Ready: h.engine.Ready(), Version: version.Version})
}

func (h *handler) indices(w http.ResponseWriter, r *http.Request) {
	out, err := h.engine.Indices(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, &out)
}

func (h *handler) index(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.IndexView(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, view)
}

func (h *handler) compare(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cmp, err := h.engine.Compare(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, cmp)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	raw := r.URL.Query().Get("period")
	if raw == "" {
		h.writeError(w, r, fmt.Errorf("%w: period is required", service.ErrBadRequest))
		return
	}
	p, err := period.Parse(raw)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", service.ErrBadRequest, err))
		return
	}
	out, err := h.engine.Stats(r.Context(), req, p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, out)
}

func parseRequest(r *http.Request) (service.Request, error) {
	q := r.URL.Query()
	req := service.Request{
		Indices:   q["indices"],
		Benchmark: strings.TrimSpace(q.Get("benchmark")),
	}
	var err error
	if req.From, err = parseDateParam(q.Get("from"), "from"); err != nil {
		return req, err
	}
	if req.To, err = parseDateParam(q.Get("to"), "to"); err != nil {
		return req, err
	}
	return req, nil
}

func parseDateParam(raw, name string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	day, err := table.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s date %q", service.ErrBadRequest, name, raw)
	}
	return &day, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrBadRequest), errors.Is(err, comparison.ErrNoIndices):
		return http.StatusBadRequest
	case errors.Is(err, indexdata.ErrUnknownIndex):
		return http.StatusNotFound
	case service.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	event := h.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = h.logger.Error()
	}
	event.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	writeJSON(w, status, ServiceResponse[any]{Error: err.Error()})
}

func writeOK[T any](w http.ResponseWriter, data *T) {
	writeJSON(w, http.StatusOK, ServiceResponse[T]{Data: data})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request served")
	})
}
