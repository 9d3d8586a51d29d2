package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gracebooks/gracebooks/internal/ledger"
)

// RouterDeps carries everything the HTTP router needs.
type RouterDeps struct {
	Config *Config
	Ledger *ledger.Handler
}

// NewRouter assembles the chi mux with the standard middleware stack,
// a health endpoint, and the ledger API under /api.
func NewRouter(deps RouterDeps, stack []func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	for _, mw := range stack {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		deps.Ledger.MountRoutes(api)
	})

	return r
}
