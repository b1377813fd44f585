package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Marvin-MM/Luco-Email-sub000/internal/pkg/httputil"
)

type contextKey string

const tenantKey contextKey = "tenant_id"

// TenantID returns the tenant the request is scoped to.
func TenantID(r *http.Request) string {
	id, _ := r.Context().Value(tenantKey).(string)
	return id
}

// requireTenant scopes every request to the tenant named in X-Tenant-ID.
// Authentication itself happens upstream at the gateway; this service
// trusts the header it is handed.
func requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Tenant-ID")
		if id == "" {
			httputil.Error(w, http.StatusUnauthorized, "missing X-Tenant-ID header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey, id)))
	})
}

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(requireTenant)

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", h.CreateCampaign)
			r.Get("/", h.ListCampaigns)
			r.Get("/{id}", h.GetCampaign)
			r.Post("/{id}/send", h.SendCampaign)
			r.Post("/{id}/cancel", h.CancelCampaign)
			r.Get("/{id}/progress", h.CampaignProgress)
		})

		r.Route("/queues", func(r chi.Router) {
			r.Get("/stats", h.QueueStats)
			r.Post("/{name}/pause", h.PauseQueue)
			r.Post("/{name}/resume", h.ResumeQueue)
		})
	})

	return r
}
