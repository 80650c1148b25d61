// Package httpapi exposes the FocusFlow REST API, the live session stream and
// the Prometheus endpoint.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hperssn/focusflow/internal/events"
	"github.com/hperssn/focusflow/internal/session"
	"github.com/hperssn/focusflow/internal/storage"
	"github.com/hperssn/focusflow/internal/users"
)

type Deps struct {
	Users     *users.Service
	Sessions  *session.Service
	Tracker   Tracker
	Repo      storage.Repository
	Hub       *events.Hub
	Publisher events.Publisher
	Gatherer  prometheus.Gatherer
	Location  *time.Location
	Logger    *zap.Logger

	AllowedOrigins []string
	StaticDir      string
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(IdentifyCaller)
	r.Use(RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/user", loginUser(d.Users))
			r.Get("/user/{subject}", getUser(d.Users))
			r.Patch("/user/{userId}/preferences", updatePreferences(d.Users))
		})

		r.Route("/focus", func(r chi.Router) {
			r.Post("/track", trackFocus(d.Tracker))
			r.Get("/history/{userId}", focusHistory(d.Repo))
			r.Get("/analytics/{userId}", focusAnalytics(d.Repo, d.Location, time.Now))
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/create", createSession(d.Sessions))
			r.Get("/active/{userId}", activeSession(d.Sessions))
			r.Get("/history/{userId}", sessionHistory(d.Sessions))
			r.Get("/{id}", getSession(d.Sessions))
			r.Patch("/{id}", updateSession(d.Sessions, d.Publisher))
			r.Post("/{id}/end", endSession(d.Sessions, d.Publisher))
			r.Get("/{id}/events", StreamSessionEvents(d.Sessions, d.Hub))
		})
	})

	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	if d.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(d.StaticDir)))
	}

	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status":  "ok",
		"message": "FocusFlow API is running",
	}, http.StatusOK)
}
