package clients

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dockplan/dockplan/internal/platform/httpx"
)

// Handler serves the client registry endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers client routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/clients", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.upsert)
		r.Get("/{code}", h.get)
		r.Post("/{code}/block", h.block)
		r.Post("/{code}/unblock", h.unblock)
	})
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyBlocked), errors.Is(err, ErrNotBlocked):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list clients", slog.Any("error", err))
		respondError(w, err)
		return
	}
	if out == nil {
		out = []Client{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"clients": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	client, err := h.service.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var req UpsertClientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	client, err := h.service.Upsert(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *Handler) block(w http.ResponseWriter, r *http.Request) {
	var req BlockClientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	client, affected, err := h.service.Block(r.Context(), chi.URLParam(r, "code"), req)
	if err != nil {
		h.logger.Error("block client", slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"client": client, "bookings_blocked": affected})
}

func (h *Handler) unblock(w http.ResponseWriter, r *http.Request) {
	client, affected, err := h.service.Unblock(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.logger.Error("unblock client", slog.Any("error", err))
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"client": client, "bookings_unblocked": affected})
}
