package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/feastly/dispatch/internal/errors"
	"github.com/feastly/dispatch/internal/models"
	"github.com/feastly/dispatch/internal/service"
	"github.com/feastly/dispatch/pkg/utils"
)

type OfferHandler struct {
	offerService service.OfferService
	validate     *validator.Validate
}

func NewOfferHandler(offerService service.OfferService) *OfferHandler {
	return &OfferHandler{
		offerService: offerService,
		validate:     validator.New(),
	}
}

func (h *OfferHandler) RegisterRoutes(r chi.Router) {
	r.Post("/offers/{id}/accept", h.Accept)
	r.Post("/offers/{id}/reject", h.Reject)
}

// POST /v1/offers/{id}/accept
func (h *OfferHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "offer id is required")
		return
	}

	var req models.OfferActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.Error(w, apperrors.Validation(err.Error()))
		return
	}

	request, err := h.offerService.Accept(r.Context(), id, req.DriverID)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]interface{}{
		"status":  "accepted",
		"request": request,
	})
}

// POST /v1/offers/{id}/reject
func (h *OfferHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "offer id is required")
		return
	}

	var req models.OfferActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.Error(w, apperrors.Validation(err.Error()))
		return
	}

	if err := h.offerService.Reject(r.Context(), id, req.DriverID); err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{
		"status": "rejected",
	})
}
