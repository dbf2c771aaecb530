package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/botica-pos/botica/internal/platform/httpx"
	"github.com/botica-pos/botica/internal/pricing"
	"github.com/botica-pos/botica/internal/units"
)

// Handler exposes catalog endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.list)
	r.Post("/products", h.create)
	r.Get("/products/{id}", h.get)
	r.Patch("/products/{id}", h.update)
	r.Post("/products/{id}/archive", h.archive)
	r.Post("/products/{id}/restore", h.restore)
	r.Get("/products/{id}/display", h.display)
	r.Get("/categories", h.listCategories)
	r.Post("/categories", h.createCategory)
	r.Post("/pricing/recalculate", h.recalculatePricing)
}

type tierPayload struct {
	Name       string `json:"name" validate:"required,max=30"`
	Multiplier int64  `json:"multiplier" validate:"required,gt=0"`
}

type createProductRequest struct {
	GenericName  string        `json:"generic_name" validate:"required,max=200"`
	BrandName    *string       `json:"brand_name,omitempty" validate:"omitempty,max=200"`
	CategoryID   *int64        `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	Packaging    []tierPayload `json:"packaging,omitempty" validate:"omitempty,dive"`
	ReorderLevel int64         `json:"reorder_level" validate:"gte=0"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.CreateProduct(r.Context(), CreateProductInput{
		GenericName:  req.GenericName,
		BrandName:    req.BrandName,
		CategoryID:   req.CategoryID,
		Packaging:    toTiers(req.Packaging),
		ReorderLevel: req.ReorderLevel,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

type updateProductRequest struct {
	GenericName  *string       `json:"generic_name,omitempty" validate:"omitempty,max=200"`
	BrandName    *string       `json:"brand_name,omitempty" validate:"omitempty,max=200"`
	CategoryID   *int64        `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	Packaging    []tierPayload `json:"packaging,omitempty" validate:"omitempty,dive"`
	ReorderLevel *int64        `json:"reorder_level,omitempty" validate:"omitempty,gte=0"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	var req updateProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.UpdateProduct(r.Context(), id, UpdateProductInput{
		GenericName:  req.GenericName,
		BrandName:    req.BrandName,
		CategoryID:   req.CategoryID,
		Packaging:    toTiers(req.Packaging),
		ReorderLevel: req.ReorderLevel,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Search:          q.Get("search"),
		IncludeArchived: q.Get("include_archived") == "true",
	}
	if v := q.Get("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid category_id")
			return
		}
		filter.CategoryID = &id
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}
	products, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products, "total": total})
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, h.service.ArchiveProduct)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, h.service.RestoreProduct)
}

func (h *Handler) setArchived(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64) error) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	if err := op(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) display(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	info, err := h.service.Display(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, info)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": categories})
}

type createCategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	category, err := h.service.CreateCategory(r.Context(), req.Name)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, category)
}

// recalculatePricing backs the product form's auto-fill: the client sends
// the current triple plus which field was edited, the server answers with
// the reconciled triple. Forms never compute margins themselves.
type recalculateRequest struct {
	Cost   string `json:"cost"`
	Sell   string `json:"sell"`
	Margin string `json:"margin"`
	Edited string `json:"edited" validate:"required,oneof=cost sell margin"`
}

func (h *Handler) recalculatePricing(w http.ResponseWriter, r *http.Request) {
	var req recalculateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	quote := pricing.Quote{}
	var err error
	if quote.Cost, err = parseAmount(req.Cost); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid cost")
		return
	}
	if quote.Sell, err = parseAmount(req.Sell); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sell")
		return
	}
	if quote.Margin, err = parseAmount(req.Margin); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid margin")
		return
	}
	driver := pricing.DriverCost
	switch req.Edited {
	case "sell":
		driver = pricing.DriverSell
	case "margin":
		driver = pricing.DriverMargin
	}
	out := pricing.Recalculate(quote, driver)
	httpx.JSON(w, http.StatusOK, map[string]string{
		"cost":   out.Cost.StringFixed(2),
		"sell":   out.Sell.StringFixed(2),
		"margin": out.Margin.StringFixed(2),
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrCategoryNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err))
	case errors.Is(err, ErrDuplicateCategory):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrDuplicate, err))
	case errors.Is(err, ErrProductArchived):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrConflict, err))
	case errors.Is(err, ErrNameRequired), errors.Is(err, units.ErrInvalidPackaging):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, err))
	default:
		h.logger.Error("catalog handler", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func toTiers(payload []tierPayload) []units.Tier {
	if payload == nil {
		return nil
	}
	tiers := make([]units.Tier, len(payload))
	for i, t := range payload {
		tiers[i] = units.Tier{Name: t.Name, Multiplier: t.Multiplier}
	}
	return tiers
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
