package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouteMounter is implemented by every feature handler.
type RouteMounter interface {
	MountRoutes(r chi.Router)
}

// RouterConfig collects everything the HTTP router needs.
type RouterConfig struct {
	Middleware []func(http.Handler) http.Handler
	Handlers   []RouteMounter
	Jobs       RouteMounter
}

// NewRouter assembles the API router.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	for _, mw := range cfg.Middleware {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		for _, h := range cfg.Handlers {
			h.MountRoutes(r)
		}
	})

	if cfg.Jobs != nil {
		r.Route("/jobs", func(r chi.Router) {
			cfg.Jobs.MountRoutes(r)
		})
	}

	return r
}
