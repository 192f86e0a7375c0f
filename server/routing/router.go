// Package routing assembles the middleware stack and routes of the
// explainthat server on a chi router.
package routing

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/matt-hendrie/explain-that-code/errors"
	"github.com/matt-hendrie/explain-that-code/server/handlers"
	"github.com/matt-hendrie/explain-that-code/server/metrics"
	"github.com/matt-hendrie/explain-that-code/server/middleware"
	"github.com/matt-hendrie/explain-that-code/server/processing"
	"go.uber.org/zap"
)

// Router handles HTTP routing
type Router struct {
	router chi.Router
	logger *zap.Logger
}

// NewRouter creates a router serving every endpoint. m may be nil, in
// which case neither request metrics nor /metrics are served.
func NewRouter(processor *processing.Processor, m *metrics.Metrics, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Router{
		router: chi.NewRouter(),
		logger: logger,
	}

	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.RequestTimer)
	r.router.Use(middleware.Logging(logger))
	if m != nil {
		r.router.Use(middleware.PrometheusMetrics(m))
	}
	r.router.Use(errors.ErrorHandler(logger))
	r.router.Use(middleware.CORS)

	r.router.NotFound(r.notFound)
	r.router.MethodNotAllowed(r.methodNotAllowed)

	r.router.Get("/", handlers.Root(logger))
	r.router.Get("/items/{item_id}", handlers.Item(logger))
	r.router.Method(http.MethodGet, "/generate/{language}", handlers.NewGenerateHandler(processor, logger))
	r.router.Method(http.MethodPost, "/explain-code", handlers.NewExplainHandler(processor, logger))

	r.router.Get("/health", health)
	if m != nil {
		r.router.Method(http.MethodGet, "/metrics", m.Handler())
	}

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (r *Router) notFound(w http.ResponseWriter, req *http.Request) {
	errors.WriteError(w, errors.NewNotFoundError(middleware.GetRequestID(req.Context()), req.URL.Path))
}

func (r *Router) methodNotAllowed(w http.ResponseWriter, req *http.Request) {
	errors.ErrorWithType(w, "Method not allowed", errors.MethodNotAllowedError, http.StatusMethodNotAllowed)
}

// ServeHTTP implements the http.Handler interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
