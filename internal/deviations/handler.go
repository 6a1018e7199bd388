package deviations

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dockplan/dockplan/internal/platform/httpx"
)

// Handler serves the deviation reporting endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers deviation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/deviations", h.list)
	r.Get("/deviations/stats", h.stats)
}

func filterFromQuery(r *http.Request) ListFilter {
	q := r.URL.Query()
	var f ListFilter
	if v := q.Get("date_from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			f.DateFrom = &t
		}
	}
	if v := q.Get("date_to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			f.DateTo = &t
		}
	}
	if v := q.Get("type"); v != "" {
		kind := Type(v)
		f.Type = &kind
	}
	if v := q.Get("impact"); v != "" {
		impact := ImpactLevel(v)
		f.Impact = &impact
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Offset = n
		}
	}
	if f.Limit == 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return f
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context(), filterFromQuery(r))
	if err != nil {
		h.logger.Error("list deviations", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if records == nil {
		records = []Record{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": records})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)
	filter.Limit = 0
	stats, err := h.service.Stats(r.Context(), filter)
	if err != nil {
		h.logger.Error("deviation stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}
