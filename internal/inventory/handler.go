package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-resale/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-resale/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock", h.handleStock)
	r.Get("/available", h.handleAvailable)
	r.Get("/returnable", h.handleReturnable)
	r.Get("/purchases", h.handlePurchases)
	r.Get("/events", h.handleEvents)
	r.Get("/sales", h.handleSales)
	r.Post("/sales/{saleID}/settle", h.handleSettle)
	r.Post("/inbound", h.handleInbound)
	r.Post("/outbound", h.handleOutbound)
	r.Post("/outbound/preview", h.handlePreview)
	r.Post("/lots/{lotID}/return", h.handleReturn)
	r.Post("/lots/{lotID}/exchange", h.handleExchange)
	r.Post("/lots/{lotID}/confirm", h.handleConfirm)
}

type inboundLineRequest struct {
	ProductID     string  `json:"product_id" validate:"required"`
	Size          string  `json:"size" validate:"required"`
	Qty           int     `json:"qty" validate:"gt=0"`
	PurchasePrice float64 `json:"purchase_price" validate:"gte=0"`
	PartnerID     string  `json:"partner_id"`
	PaymentID     string  `json:"payment_id"`
}

type inboundRequest struct {
	ReceivedYmd string               `json:"received_ymd" validate:"omitempty,datetime=2006-01-02"`
	Lines       []inboundLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type outboundLineRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Size      string  `json:"size" validate:"required"`
	Qty       int     `json:"qty" validate:"gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
	PartnerID string  `json:"partner_id"`
}

type outboundRequest struct {
	Date     string                `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Deferred bool                  `json:"deferred"`
	Lines    []outboundLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type lotQtyRequest struct {
	Qty int `json:"qty" validate:"gt=0"`
}

type settleRequest struct {
	UnitPrice float64 `json:"unit_price" validate:"gt=0"`
}

type exchangeRequest struct {
	ToSize string `json:"to_size" validate:"required"`
	Qty    int    `json:"qty" validate:"gt=0"`
}

type purchasesResponse struct {
	Rows   []PurchaseRow `json:"rows"`
	Drifts []Drift       `json:"drifts,omitempty"`
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Stock(r.Context(), shared.OwnerFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (h *Handler) handleAvailable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, size := q.Get("product_id"), q.Get("size")
	if productID == "" || size == "" {
		h.respondError(w, fmt.Errorf("%w: product_id and size are required", ErrMalformedRequest))
		return
	}
	qty, err := h.service.Available(r.Context(), shared.OwnerFromContext(r.Context()), productID, size)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": productID, "size": size, "available": qty})
}

func (h *Handler) handleReturnable(w http.ResponseWriter, r *http.Request) {
	lots, err := h.service.ReturnableLots(r.Context(), shared.OwnerFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": lots})
}

func (h *Handler) handlePurchases(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.PurchaseRows(r.Context(), shared.OwnerFromContext(r.Context()))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchasesResponse{Rows: rec.Rows, Drifts: rec.Drifts})
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	var types []EventType
	if raw := r.URL.Query().Get("type"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			t := EventType(strings.TrimSpace(part))
			if !t.Valid() {
				h.respondError(w, fmt.Errorf("%w: unknown event type %q", ErrMalformedRequest, part))
				return
			}
			types = append(types, t)
		}
	}
	events, err := h.service.Events(r.Context(), shared.OwnerFromContext(r.Context()), types...)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if events == nil {
		events = []Event{}
	}
	page := shared.PaginationFromQuery(r.URL.Query(), len(events))
	start, end := page.Bounds()
	httpx.JSON(w, http.StatusOK, eventsResponse{Items: events[start:end], Pagination: page})
}

type eventsResponse struct {
	Items      []Event           `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) handleSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDay(q.Get("from"), false)
	if err != nil {
		h.respondError(w, err)
		return
	}
	to, err := parseDay(q.Get("to"), true)
	if err != nil {
		h.respondError(w, err)
		return
	}
	sales, err := h.service.Sales(r.Context(), shared.OwnerFromContext(r.Context()), from, to)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": sales})
}

func (h *Handler) handleInbound(w http.ResponseWriter, r *http.Request) {
	var req inboundRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := InboundInput{
		ReceivedYmd:    req.ReceivedYmd,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		ActorID:        shared.ActorFromContext(r.Context()),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, InboundLine(line))
	}
	lots, err := h.service.RegisterInbound(r.Context(), shared.OwnerFromContext(r.Context()), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"lots": lots})
}

func (h *Handler) handleOutbound(w http.ResponseWriter, r *http.Request) {
	var req outboundRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := OutboundInput{
		Ymd:            req.Date,
		Deferred:       req.Deferred,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		ActorID:        shared.ActorFromContext(r.Context()),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, OutboundLine(line))
	}
	sales, err := h.service.RegisterOutbound(r.Context(), shared.OwnerFromContext(r.Context()), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"sales": sales})
}

func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if !h.decode(w, r, &req) {
		return
	}
	sale, err := h.service.SettleDeferred(r.Context(), shared.OwnerFromContext(r.Context()), SettleInput{
		SaleID:         chi.URLParam(r, "saleID"),
		UnitPrice:      req.UnitPrice,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		ActorID:        shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req outboundLineRequest
	if !h.decode(w, r, &req) {
		return
	}
	preview, err := h.service.PreviewOutbound(r.Context(), shared.OwnerFromContext(r.Context()), OutboundLine(req))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, preview)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	var req lotQtyRequest
	if !h.decode(w, r, &req) {
		return
	}
	lot, err := h.service.ReturnLot(r.Context(), shared.OwnerFromContext(r.Context()), ReturnInput{
		LotID:   chi.URLParam(r, "lotID"),
		Qty:     req.Qty,
		ActorID: shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lot)
}

func (h *Handler) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if !h.decode(w, r, &req) {
		return
	}
	lot, err := h.service.ExchangeLot(r.Context(), shared.OwnerFromContext(r.Context()), ExchangeInput{
		LotID:   chi.URLParam(r, "lotID"),
		ToSize:  req.ToSize,
		Qty:     req.Qty,
		ActorID: shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lot)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req lotQtyRequest
	if !h.decode(w, r, &req) {
		return
	}
	lot, err := h.service.ConfirmLot(r.Context(), shared.OwnerFromContext(r.Context()), ConfirmInput{
		LotID:   chi.URLParam(r, "lotID"),
		Qty:     req.Qty,
		ActorID: shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lot)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", "request body must be valid JSON")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			parts := make([]string, 0, len(fieldErrs))
			for _, fieldErr := range fieldErrs {
				parts = append(parts, fmt.Sprintf("%s failed %s", fieldErr.Namespace(), fieldErr.Tag()))
			}
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", strings.Join(parts, "; "))
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrExceedsReturnable),
		errors.Is(err, ErrSaleSettled),
		errors.Is(err, ErrReconciliationDrift),
		errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err.Error()))
	case errors.Is(err, ErrLotNotFound), errors.Is(err, ErrSaleNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err.Error()))
	case errors.Is(err, ErrMalformedRequest), errors.Is(err, ErrSameSize):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err.Error()))
	case errors.Is(err, shared.ErrLockBusy):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrUnavailable, err.Error()))
	default:
		h.logger.Error("inventory request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseDay(raw string, endOfDay bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	day, err := time.ParseInLocation(ymdLayout, raw, Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrMalformedRequest, raw)
	}
	if endOfDay {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return day, nil
}
