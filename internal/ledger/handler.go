package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-resale/internal/inventory"
	"github.com/odyssey-erp/odyssey-resale/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-resale/internal/shared"
)

// Handler exposes ledger books over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleBook)
}

func (h *Handler) handleBook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	book, err := h.service.Book(r.Context(), shared.OwnerFromContext(r.Context()), q.Get("from"), q.Get("to"))
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, book)
	case errors.Is(err, inventory.ErrMalformedRequest):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
	case errors.Is(err, inventory.ErrReconciliationDrift):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err.Error()))
	default:
		h.logger.Error("build ledger", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
