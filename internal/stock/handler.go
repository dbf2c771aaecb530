package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/botica-pos/botica/internal/platform/httpx"
	"github.com/botica-pos/botica/internal/shared"
)

// Handler exposes batch endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/batches", h.create)
	r.Get("/batches/{id}", h.get)
	r.Post("/batches/{id}/quarantine", h.quarantine)
	r.Post("/batches/{id}/reactivate", h.reactivate)
	r.Post("/batches/{id}/restock", h.restock)
	r.Get("/products/{id}/batches", h.listByProduct)
	r.Get("/products/{id}/active-batch", h.activeBatch)
	r.Get("/stock/low", h.lowStock)
	r.Post("/stock/expiry-sweep", h.expirySweep)
}

type createBatchRequest struct {
	ProductID    int64   `json:"product_id" validate:"required,gt=0"`
	BatchNumber  string  `json:"batch_number" validate:"omitempty,max=50"`
	Quantity     int64   `json:"quantity" validate:"required,gt=0"`
	CostPrice    string  `json:"cost_price" validate:"omitempty"`
	SellingPrice string  `json:"selling_price" validate:"omitempty"`
	ExpiryDate   *string `json:"expiry_date,omitempty"`
	ReceivedAt   *string `json:"received_at,omitempty"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := CreateBatchInput{
		ProductID:   req.ProductID,
		BatchNumber: req.BatchNumber,
		Quantity:    req.Quantity,
		ActorID:     actorID(r),
	}
	var err error
	if input.CostPrice, err = parsePrice(req.CostPrice); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid cost_price")
		return
	}
	if input.SellingPrice, err = parsePrice(req.SellingPrice); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid selling_price")
		return
	}
	if req.ExpiryDate != nil {
		d, err := time.Parse("2006-01-02", *req.ExpiryDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expiry_date must be YYYY-MM-DD")
			return
		}
		input.ExpiryDate = &d
	}
	if req.ReceivedAt != nil {
		ts, err := time.Parse(time.RFC3339, *req.ReceivedAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "received_at must be RFC3339")
			return
		}
		input.ReceivedAt = ts
	}

	batch, err := h.service.CreateBatch(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, batch)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid batch id")
		return
	}
	batch, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) listByProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	batches, err := h.service.ListByProduct(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"batches": batches})
}

// activeBatch returns the governing batch, or a null body when no batch
// qualifies; out-of-stock is a display state, not an error.
func (h *Handler) activeBatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	batch, ok, err := h.service.ActiveBatch(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if !ok {
		httpx.JSON(w, http.StatusOK, map[string]any{"batch": nil})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"batch": batch})
}

func (h *Handler) quarantine(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Quarantine)
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reactivate)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, batchID, actorID int64) (Batch, error)) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid batch id")
		return
	}
	batch, err := op(r.Context(), id, actorID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

type restockRequest struct {
	Quantity int64 `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) restock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid batch id")
		return
	}
	var req restockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	batch, err := h.service.Restock(r.Context(), id, req.Quantity, actorID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.LowStock(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) expirySweep(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.ExpirySweep(r.Context(), time.Now().UTC())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"expired": n})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBatchNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
	case errors.Is(err, ErrDuplicateBatchNumber):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrDuplicate, err))
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err))
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidPrice),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrExceedsOriginalQty),
		errors.Is(err, ErrReservedExceedsStock):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	default:
		h.logger.Error("stock handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// actorID resolves the acting staff member from the X-Actor-ID header set
// by the upstream auth proxy.
func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}

func parsePrice(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return d, nil
}
