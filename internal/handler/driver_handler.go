package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/feastly/dispatch/internal/cache"
	apperrors "github.com/feastly/dispatch/internal/errors"
	"github.com/feastly/dispatch/internal/models"
	"github.com/feastly/dispatch/internal/service"
	"github.com/feastly/dispatch/pkg/utils"
)

type DriverHandler struct {
	drivers      cache.DriverLocationStore
	offerService service.OfferService
	validate     *validator.Validate
}

func NewDriverHandler(drivers cache.DriverLocationStore, offerService service.OfferService) *DriverHandler {
	return &DriverHandler{
		drivers:      drivers,
		offerService: offerService,
		validate:     validator.New(),
	}
}

func (h *DriverHandler) RegisterRoutes(r chi.Router) {
	r.Post("/drivers/{id}/location", h.UpdateLocation)
	r.Post("/drivers/{id}/availability", h.UpdateFlags)
	r.Get("/drivers/{id}", h.GetSnapshot)
	r.Get("/drivers/{id}/offers", h.Inbox)
}

// POST /v1/drivers/{id}/location
func (h *DriverHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "driver id is required")
		return
	}

	var req models.UpdateDriverLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if err := req.Point.Validate(); err != nil {
		utils.Error(w, apperrors.Validation(err.Error()))
		return
	}

	if err := h.drivers.UpdateLocation(r.Context(), id, req.Point); err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /v1/drivers/{id}/availability
func (h *DriverHandler) UpdateFlags(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "driver id is required")
		return
	}

	var req models.UpdateDriverFlagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}
	if req.IsAvailable == nil && req.IsVerified == nil {
		utils.BadRequest(w, "nothing to update")
		return
	}

	if err := h.drivers.SetFlags(r.Context(), id, req.IsAvailable, req.IsVerified); err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /v1/drivers/{id}
func (h *DriverHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "driver id is required")
		return
	}

	snap, err := h.drivers.GetSnapshot(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	if snap == nil {
		utils.NotFound(w, "driver")
		return
	}

	utils.Success(w, http.StatusOK, snap)
}

// GET /v1/drivers/{id}/offers?state=
func (h *DriverHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "driver id is required")
		return
	}

	state := r.URL.Query().Get("state")
	switch state {
	case "", models.OfferStateSent, models.OfferStateAccepted, models.OfferStateRejected, models.OfferStateExpired:
	default:
		utils.BadRequest(w, "unknown offer state")
		return
	}

	offers, err := h.offerService.Inbox(r.Context(), id, state)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]interface{}{
		"offers": offers,
	})
}
