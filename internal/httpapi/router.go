package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/smartblinds/internal/metrics"
)

// Deps are the collaborators of the HTTP API. Store and Metrics are optional.
// Clock should be the one the alarm service runs on; it defaults to the real
// clock.
type Deps struct {
	Logger           *slog.Logger
	Clock            clockwork.Clock
	Service          ActionService
	Blinds           Blinds
	Store            Pinger
	Metrics          *metrics.Metrics
	ExposeMetrics    bool
	OperationTimeout time.Duration
}

// NewRouter builds the chi router with every route mounted.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	h := &handlers{deps: deps, logger: deps.Logger.With("component", "http_api")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger, deps.Metrics))
	r.Use(middleware.Recoverer)

	r.Get("/status", h.status)
	r.Post("/toggle", h.toggle)
	r.Post("/open", h.move(true))
	r.Post("/close", h.move(false))

	r.Route("/actions", func(r chi.Router) {
		r.Get("/", h.listActions)
		r.Post("/", h.createAction)
		r.Delete("/{id}", h.deleteAction)
	})

	r.Get("/healthz", h.healthz)
	if deps.Metrics != nil && deps.ExposeMetrics {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	return r
}

// requestLogger logs each request once it completes and counts it by route
// pattern, so ids in paths do not explode label cardinality.
func requestLogger(log *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			if m != nil {
				m.HTTPRequest(route, strconv.Itoa(status))
			}

			log.DebugContext(r.Context(), "Handled request",
				"method", r.Method,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
