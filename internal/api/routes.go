package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/newsletter/internal/pkg/logger"
)

// RouterOptions carries the handlers mounted by SetupRoutes.
type RouterOptions struct {
	Subscriptions  *SubscriptionHandler
	Health         *HealthChecker
	AllowedOrigins []string
}

// SetupRoutes configures all routes.
func SetupRoutes(opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	// RequestID must run before Logger so access lines carry the id.
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:8000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Liveness contract: 200 with an empty body.
	r.Get("/health_check", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if opts.Health != nil {
		r.Get("/health", opts.Health.HandleHealth)
		r.Get("/health/live", opts.Health.HandleLiveness)
		r.Get("/health/ready", opts.Health.HandleReadiness)
	}

	if opts.Subscriptions != nil {
		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", opts.Subscriptions.Subscribe)
			r.Get("/confirm", opts.Subscriptions.Confirm)
		})
	}

	return r
}

// requestLogger stores a logger tagged with the chi request id in the
// request context so every stage of a request logs the same request_id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := logger.Default().With("request_id", middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), l)))
	})
}
