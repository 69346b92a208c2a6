package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-resale/internal/inventory"
	"github.com/odyssey-erp/odyssey-resale/internal/ledger"
	"github.com/odyssey-erp/odyssey-resale/internal/observability"
	"github.com/odyssey-erp/odyssey-resale/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-resale/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	InventoryHandler *inventory.Handler
	LedgerHandler    *ledger.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Odyssey defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.InventoryHandler != nil {
		r.With(RequireOwner).Route("/inventory", params.InventoryHandler.MountRoutes)
	}
	if params.LedgerHandler != nil {
		r.With(RequireOwner).Route("/ledger", params.LedgerHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", r.URL.Path)
	})
	return r
}
