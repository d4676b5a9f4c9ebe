package service

import (
	"context"
	"log"
	"time"

	apperrors "github.com/feastly/dispatch/internal/errors"
	"github.com/feastly/dispatch/internal/metrics"
	"github.com/feastly/dispatch/internal/models"
	"github.com/feastly/dispatch/internal/repository"
)

// RequestService owns the delivery request lifecycle around the matching
// engine: creation, restaurant cancellation, and driver-initiated status
// advancement after assignment.
type RequestService interface {
	Create(ctx context.Context, req *models.CreateRequestRequest) (*models.RequestResponse, error)
	Get(ctx context.Context, id string) (*models.RequestResponse, error)
	Cancel(ctx context.Context, id, requestedBy string) (*models.RequestResponse, error)
	AdvanceStatus(ctx context.Context, id, driverID, newStatus string) (*models.RequestResponse, error)
}

type requestService struct {
	requestRepo repository.RequestRepository
	offerRepo   repository.OfferRepository
	dispatcher  MatchingService
}

func NewRequestService(
	requestRepo repository.RequestRepository,
	offerRepo repository.OfferRepository,
	dispatcher MatchingService,
) RequestService {
	return &requestService{
		requestRepo: requestRepo,
		offerRepo:   offerRepo,
		dispatcher:  dispatcher,
	}
}

func (s *requestService) Create(ctx context.Context, req *models.CreateRequestRequest) (*models.RequestResponse, error) {
	if err := req.Pickup.Point.Validate(); err != nil {
		return nil, apperrors.Validation("pickup: " + err.Error())
	}
	if err := req.Dropoff.Point.Validate(); err != nil {
		return nil, apperrors.Validation("dropoff: " + err.Error())
	}
	if req.DeliveryFee < 0 {
		return nil, apperrors.Validation("delivery fee must be non-negative")
	}

	request := &models.DeliveryRequest{
		RestaurantID:   req.RestaurantID,
		CreatedBy:      req.CreatedBy,
		PickupLat:      req.Pickup.Point.Lat,
		PickupLng:      req.Pickup.Point.Lng,
		PickupAddress:  req.Pickup.Address,
		DropoffLat:     req.Dropoff.Point.Lat,
		DropoffLng:     req.Dropoff.Point.Lng,
		DropoffAddress: req.Dropoff.Address,
		DeliveryFee:    req.DeliveryFee,
	}
	if req.Notes != "" {
		request.Notes = &req.Notes
	}

	if err := s.requestRepo.Create(ctx, request); err != nil {
		return nil, err
	}

	// Fire-and-forget: matching happens on the dispatch workers and can never
	// fail the creation that is already persisted.
	s.dispatcher.Enqueue(request.ID)

	return request.ToResponse(), nil
}

func (s *requestService) Get(ctx context.Context, id string) (*models.RequestResponse, error) {
	request, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.NotFound("request")
	}
	return request.ToResponse(), nil
}

func (s *requestService) Cancel(ctx context.Context, id, requestedBy string) (*models.RequestResponse, error) {
	request, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.NotFound("request")
	}
	if requestedBy != request.RestaurantID && requestedBy != request.CreatedBy {
		return nil, apperrors.Forbidden("only the owning restaurant may cancel this request")
	}
	if !request.Cancellable() {
		return nil, apperrors.InvalidTransition(request.Status, models.RequestStatusCancelled)
	}

	now := time.Now()
	ok, err := s.requestRepo.Cancel(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A driver accepted between our read and the guarded write.
		return nil, apperrors.InvalidTransition(request.Status, models.RequestStatusCancelled)
	}

	// A cancelled request must not be acceptable: close out any offers still
	// in flight rather than waiting for the TTL sweep.
	expired, err := s.offerRepo.ExpireAllForRequest(ctx, id, now)
	if err != nil {
		log.Printf("failed to expire offers for cancelled request %s: %v", id, err)
	} else if expired > 0 {
		metrics.OffersExpiredTotal.WithLabelValues("cancel").Add(float64(expired))
	}

	return s.Get(ctx, id)
}

func (s *requestService) AdvanceStatus(ctx context.Context, id, driverID, newStatus string) (*models.RequestResponse, error) {
	request, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.NotFound("request")
	}
	if request.DriverID == nil || *request.DriverID != driverID {
		return nil, apperrors.Forbidden("only the assigned driver may advance this request")
	}

	from, ok := models.DriverTransitions[newStatus]
	if !ok || request.Status != from {
		return nil, apperrors.InvalidTransition(request.Status, newStatus)
	}

	applied, err := s.requestRepo.AdvanceStatus(ctx, id, driverID, from, newStatus, time.Now())
	if err != nil {
		return nil, err
	}
	if !applied {
		// Status moved underneath us; report against the stale read.
		return nil, apperrors.InvalidTransition(request.Status, newStatus)
	}

	return s.Get(ctx, id)
}
