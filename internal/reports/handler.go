package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/botica-pos/botica/internal/platform/httpx"
)

// Handler exposes the reporting endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reports/summary", h.summary)
	r.Get("/reports/summary.csv", h.summaryCSV)
	r.Get("/reports/daily", h.daily)
	r.Get("/reports/daily.csv", h.dailyCSV)
	r.Get("/reports/top-products", h.topProducts)
	r.Get("/reports/expiring", h.expiring)
	r.Get("/reports/valuation", h.valuation)
	r.Get("/reports/valuation.csv", h.valuationCSV)
	r.Get("/reports/dashboard", h.dashboard)
}

// dateRange parses from/to query params, defaulting to the last 30 days.
// The upper bound is exclusive and rounded up a day so "to=2026-08-31"
// includes that whole day.
func dateRange(r *http.Request) (time.Time, time.Time, bool) {
	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		to = parsed.AddDate(0, 0, 1)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date range")
		return
	}
	s, err := h.service.Summary(r.Context(), from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) summaryCSV(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date range")
		return
	}
	s, err := h.service.Summary(r.Context(), from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="sales-summary.csv"`)
	if err := WriteSummaryCSV(w, s); err != nil {
		h.logger.Error("reports export", slog.Any("error", err))
	}
}

func (h *Handler) daily(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date range")
		return
	}
	points, err := h.service.Daily(r.Context(), from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"daily": points})
}

func (h *Handler) dailyCSV(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date range")
		return
	}
	points, err := h.service.Daily(r.Context(), from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="daily-sales.csv"`)
	if err := WriteDailyCSV(w, points); err != nil {
		h.logger.Error("reports export", slog.Any("error", err))
	}
}

func (h *Handler) topProducts(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date range")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	top, err := h.service.TopProducts(r.Context(), from, to, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"top_products": top})
}

func (h *Handler) expiring(w http.ResponseWriter, r *http.Request) {
	within := 30 * 24 * time.Hour
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 365 {
			within = time.Duration(n) * 24 * time.Hour
		}
	}
	expiring, err := h.service.Expiring(r.Context(), within)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"expiring": expiring})
}

func (h *Handler) valuation(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Valuation(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"valuation": rows})
}

func (h *Handler) valuationCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Valuation(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="stock-valuation.csv"`)
	if err := WriteValuationCSV(w, rows); err != nil {
		h.logger.Error("reports export", slog.Any("error", err))
	}
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid date range")
		return
	}
	dash, err := h.service.Dashboard(r.Context(), from, to)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, dash)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.logger.Error("reports handler", slog.Any("error", err))
	httpx.RespondError(w, err)
}
