package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/feastly/dispatch/internal/errors"
	"github.com/feastly/dispatch/internal/models"
	"github.com/feastly/dispatch/internal/service"
	"github.com/feastly/dispatch/pkg/utils"
)

type RequestHandler struct {
	requestService service.RequestService
	validate       *validator.Validate
}

func NewRequestHandler(requestService service.RequestService) *RequestHandler {
	return &RequestHandler{
		requestService: requestService,
		validate:       validator.New(),
	}
}

func (h *RequestHandler) RegisterRoutes(r chi.Router) {
	r.Post("/requests", h.CreateRequest)
	r.Get("/requests/{id}", h.GetRequest)
	r.Post("/requests/{id}/cancel", h.CancelRequest)
	r.Post("/requests/{id}/status", h.AdvanceStatus)
}

// POST /v1/requests
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.Error(w, apperrors.Validation(err.Error()))
		return
	}

	request, err := h.requestService.Create(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Created(w, request)
}

// GET /v1/requests/{id}
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "request id is required")
		return
	}

	request, err := h.requestService.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, request)
}

// POST /v1/requests/{id}/cancel
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "request id is required")
		return
	}

	var req models.CancelRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.Error(w, apperrors.Validation(err.Error()))
		return
	}

	request, err := h.requestService.Cancel(r.Context(), id, req.RequestedBy)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, request)
}

// POST /v1/requests/{id}/status
func (h *RequestHandler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "request id is required")
		return
	}

	var req models.AdvanceStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.Error(w, apperrors.Validation(err.Error()))
		return
	}

	request, err := h.requestService.AdvanceStatus(r.Context(), id, req.DriverID, req.Status)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, request)
}

func handleError(w http.ResponseWriter, err error) {
	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		utils.Error(w, apiErr)
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		utils.Error(w, apperrors.NotFound("resource"))
	case errors.Is(err, apperrors.ErrForbidden):
		utils.Error(w, apperrors.Forbidden("forbidden"))
	case errors.Is(err, apperrors.ErrOfferExpired):
		utils.Error(w, apperrors.OfferExpired())
	case errors.Is(err, apperrors.ErrRequestAlreadyAssigned):
		utils.Error(w, apperrors.OfferNoLongerAvailable())
	default:
		utils.InternalError(w, "internal server error")
	}
}
