package scheduling

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dockplan/dockplan/internal/platform/httpx"
)

// Handler serves the booking scheduling endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers booking routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", h.create)
		r.Post("/bulk", h.bulkCreate)
		r.Post("/check-duplicates", h.checkDuplicates)
		r.Get("/", h.list)
		r.Get("/pending", h.listPending)
		r.Get("/slot-check", h.slotCheck)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Patch("/", h.update)
			r.Delete("/", h.delete)
			r.Post("/place", h.place)
			r.Post("/block", h.block)
			r.Post("/unblock", h.unblock)
			r.Post("/cancel", h.cancel)
			r.Post("/real-start", h.realStart)
		})
	})
}

// actorID reads the acting user from the X-Actor-ID header, 0 when absent.
func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}

func bookingID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNotFound
	}
	return id, nil
}

// respondError maps scheduling errors onto problem responses. Conflicts carry
// the clashing booking id.
func respondError(w http.ResponseWriter, err error) {
	if ce, ok := AsConflict(err); ok {
		httpx.ConflictProblem(w, ce.Error(), ce.BookingID)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyBlocked),
		errors.Is(err, ErrNotBlocked),
		errors.Is(err, ErrBlockedFrozen):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidDuration),
		errors.Is(err, ErrInvalidWindow),
		errors.Is(err, ErrMissingResource),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidPriority),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrBlockerNotAllowed):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	bookings, split, err := h.service.Create(r.Context(), req, actorID(r))
	if err != nil {
		h.logger.Error("create booking", slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"bookings": bookings, "split": split})
}

func (h *Handler) bulkCreate(w http.ResponseWriter, r *http.Request) {
	var req BulkCreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := ValidateStruct(req); err != nil {
		respondError(w, err)
		return
	}
	results, err := h.service.BulkCreate(r.Context(), req, actorID(r))
	if err != nil {
		h.logger.Error("bulk create bookings", slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) checkDuplicates(w http.ResponseWriter, r *http.Request) {
	var req DuplicateCheckRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	dups, err := h.service.CheckDuplicates(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	if dups == nil {
		dups = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"duplicates": dups})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var req ListBookingsRequest
	if v := q.Get("date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid date")
			return
		}
		req.Date = &t
	}
	if v := q.Get("resource_id"); v != "" {
		req.ResourceID = &v
	}
	if v := q.Get("status"); v != "" {
		st := Status(v)
		req.Status = &st
	}
	if v := q.Get("client_code"); v != "" {
		req.ClientCode = &v
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			req.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			req.Offset = n
		}
	}
	if req.Limit == 0 || req.Limit > 1000 {
		req.Limit = 200
	}

	bookings, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list bookings", slog.Any("error", err))
		respondError(w, err)
		return
	}
	if bookings == nil {
		bookings = []Booking{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.service.ListPending(r.Context())
	if err != nil {
		h.logger.Error("list pending bookings", slog.Any("error", err))
		respondError(w, err)
		return
	}
	if bookings == nil {
		bookings = []Booking{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (h *Handler) slotCheck(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := time.Parse("2006-01-02", q.Get("date"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid date")
		return
	}
	hour, _ := strconv.Atoi(q.Get("start_hour"))
	minute, _ := strconv.Atoi(q.Get("start_minute"))
	duration, _ := strconv.Atoi(q.Get("duration_minutes"))
	excludeID, _ := strconv.ParseInt(q.Get("exclude_id"), 10, 64)

	window := Window{
		ResourceID:      q.Get("resource_id"),
		Date:            date,
		StartMinutes:    hour*60 + minute,
		DurationMinutes: duration,
	}
	conflictID, err := h.service.CheckSlot(r.Context(), window, excludeID)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"free":        conflictID == 0,
		"conflict_id": conflictID,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := bookingID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	b, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := bookingID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req UpdateBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	b, err := h.service.Update(r.Context(), id, req, actorID(r))
	if err != nil {
		h.logger.Error("update booking", slog.Int64("id", id), slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := bookingID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id, actorID(r)); err != nil {
		h.logger.Error("delete booking", slog.Int64("id", id), slog.Any("error", err))
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) place(w http.ResponseWriter, r *http.Request) {
	id, err := bookingID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req PlaceBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	b, err := h.service.Place(r.Context(), id, req)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) block(w http.ResponseWriter, r *http.Request) {
	id, err := bookingID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req BlockBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	b, err := h.service.Block(r.Context(), id, req, actorID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) unblock(w http.ResponseWriter, r *http.Request) {
	id, err := bookingID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req UnblockBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	b, err := h.service.Unblock(r.Context(), id, req, actorID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := bookingID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req CancelBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	b, err := h.service.Cancel(r.Context(), id, req, actorID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}

func (h *Handler) realStart(w http.ResponseWriter, r *http.Request) {
	id, err := bookingID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var req RealStartRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	b, err := h.service.RealStart(r.Context(), id, req, actorID(r))
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, b)
}
