package handlers

import (
	"log/slog"
	"net/http"

	"github.com/chris/payment-decisions/pkg/api"
	"github.com/chris/payment-decisions/pkg/metrics"
	"github.com/chris/payment-decisions/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

// RouterConfig holds what the HTTP router needs besides the handler.
type RouterConfig struct {
	APIKey  string
	Limiter middleware.Limiter
	Metrics *metrics.Recorder
	Logger  *slog.Logger
	// Tracer defaults to the global tracer provider.
	Tracer trace.TracerProvider
}

// NewRouter mounts the API on a chi router. Every request gets a request id,
// a span, a log line and metrics. The decide route is additionally guarded by
// the API key check and then the rate limiter.
func NewRouter(h api.ServerInterface, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(cfg.Tracer))
	r.Use(middleware.NewStructuredLogger(cfg.Logger, "/health"))
	r.Use(middleware.Metrics(cfg.Metrics))

	wrapper := api.ServerInterfaceWrapper{
		Handler: h,
		ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		},
	}

	r.Get("/health", wrapper.GetHealth)
	r.With(
		middleware.APIKey(cfg.APIKey),
		middleware.RateLimit(cfg.Limiter, cfg.Metrics, cfg.Logger),
	).Post("/payments/decide", wrapper.DecidePayment)

	return r
}
