package scheduling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (chi.Router, *memStore) {
	t.Helper()
	store := newMemStore()
	svc, _ := newTestService(store)
	r := chi.NewRouter()
	NewHandler(slog.Default(), svc).MountRoutes(r)
	return r, store
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHandlerCreateBooking(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/bookings", placedCreateReq("SO-1", "door-1", "2026-03-02", 8))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, false, body["split"])
	bookings := body["bookings"].([]any)
	require.Len(t, bookings, 1)
	first := bookings[0].(map[string]any)
	assert.Equal(t, "PLANNED", first["status"])
	assert.Equal(t, float64(42), first["created_by"])
}

func TestHandlerCreateValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	t.Run("missing order number", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/bookings", CreateBookingRequest{ClientName: "ACME"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader("{nope"))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandlerConflictCarriesID(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/bookings", placedCreateReq("SO-1", "door-1", "2026-03-02", 8))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/bookings", placedCreateReq("SO-2", "door-1", "2026-03-02", 8))
	require.Equal(t, http.StatusConflict, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(1), body["conflict_id"])
	assert.Equal(t, "Conflict", body["title"])
}

func TestHandlerGetBooking(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/bookings", placedCreateReq("SO-1", "door-1", "2026-03-02", 8))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/bookings/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "SO-1", body["order_number"])

	t.Run("missing booking", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/bookings/999", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("garbage id", func(t *testing.T) {
		w := doJSON(t, r, http.MethodGet, "/bookings/abc", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandlerBlockLifecycle(t *testing.T) {
	r, store := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/bookings", placedCreateReq("SO-1", "door-1", "2026-03-02", 8))
	require.Equal(t, http.StatusCreated, w.Code)

	t.Run("unauthorized blocker", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/bookings/1/block",
			BlockBookingRequest{BlockedBy: "EVE", Amount: 100, Reason: "debt"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	w = doJSON(t, r, http.MethodPost, "/bookings/1/block",
		BlockBookingRequest{BlockedBy: "JUAMPI", Amount: 100, Reason: "debt"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "BLOCKED", body["status"])
	assert.Equal(t, true, body["is_blocked"])

	t.Run("double block conflicts", func(t *testing.T) {
		w := doJSON(t, r, http.MethodPost, "/bookings/1/block",
			BlockBookingRequest{BlockedBy: "SANDRA", Amount: 50, Reason: "more debt"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	w = doJSON(t, r, http.MethodPost, "/bookings/1/unblock",
		UnblockBookingRequest{UnblockedBy: "JUAMPI"})
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, "PLANNED", body["status"])
	assert.Equal(t, false, body["is_blocked"])

	require.Len(t, store.audits, 2)
	assert.Equal(t, int64(42), store.audits[0].ActorUserID, "actor comes from the header")
}

func TestHandlerSlotCheck(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/bookings", placedCreateReq("SO-1", "door-1", "2026-03-02", 8))
	require.Equal(t, http.StatusCreated, w.Code)

	free := "/bookings/slot-check?resource_id=door-1&date=2026-03-02&start_hour=9&start_minute=0&duration_minutes=30"
	w = doJSON(t, r, http.MethodGet, free, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["free"])

	taken := "/bookings/slot-check?resource_id=door-1&date=2026-03-02&start_hour=8&start_minute=0&duration_minutes=30"
	w = doJSON(t, r, http.MethodGet, taken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["free"])
	assert.Equal(t, float64(1), body["conflict_id"])

	excluded := fmt.Sprintf("%s&exclude_id=%d", taken, 1)
	w = doJSON(t, r, http.MethodGet, excluded, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["free"])
}

func TestHandlerListPending(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/bookings", CreateBookingRequest{
		OrderNumber: "SO-1",
		ClientName:  "ACME",
		Items:       []LineItemRequest{{Code: "7777", Quantity: 10, Coefficient: 1}},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/bookings/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	bookings := decodeBody(t, w)["bookings"].([]any)
	assert.Len(t, bookings, 1)
}

func TestHandlerCheckDuplicates(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/bookings", placedCreateReq("SO-1", "door-1", "2026-03-02", 8))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/bookings/check-duplicates", DuplicateCheckRequest{
		OrderNumbers: []string{"SO-1", "SO-9"},
		Date:         "2026-03-05",
	})
	require.Equal(t, http.StatusOK, w.Code)
	dups := decodeBody(t, w)["duplicates"].([]any)
	require.Len(t, dups, 1)
	assert.Equal(t, "SO-1", dups[0])
}

func TestHandlerCancelAndDelete(t *testing.T) {
	r, store := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/bookings", placedCreateReq("SO-1", "door-1", "2026-03-02", 8))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/bookings/1/cancel", CancelBookingRequest{Reason: "called off"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CANCELLED", decodeBody(t, w)["status"])

	w = doJSON(t, r, http.MethodDelete, "/bookings/1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, store.bookings)
}
