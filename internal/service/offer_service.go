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

// OfferService resolves individual offers: a driver accepting, a driver
// rejecting, and the driver's inbox of offers.
type OfferService interface {
	Accept(ctx context.Context, offerID, driverID string) (*models.RequestResponse, error)
	Reject(ctx context.Context, offerID, driverID string) error
	Inbox(ctx context.Context, driverID, state string) ([]*models.OfferResponse, error)
}

type offerService struct {
	offerRepo   repository.OfferRepository
	requestRepo repository.RequestRepository
}

func NewOfferService(offerRepo repository.OfferRepository, requestRepo repository.RequestRepository) OfferService {
	return &offerService{
		offerRepo:   offerRepo,
		requestRepo: requestRepo,
	}
}

// Accept tries to bind the calling driver to the offer's request. The winner
// is decided by a single conditional write on the request row; whichever
// concurrent accept lands first takes the assignment and every other path
// resolves to "offer no longer available".
func (s *offerService) Accept(ctx context.Context, offerID, driverID string) (*models.RequestResponse, error) {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, apperrors.NotFound("offer")
	}
	if offer.DriverID != driverID {
		return nil, apperrors.Forbidden("offer belongs to another driver")
	}

	switch offer.State {
	case models.OfferStateAccepted:
		// Duplicate accept from the winning driver; return the request again.
		return s.requestResponse(ctx, offer.RequestID)
	case models.OfferStateRejected, models.OfferStateExpired:
		metrics.OfferAcceptTotal.WithLabelValues("rejected_precondition").Inc()
		return nil, apperrors.OfferNoLongerAvailable()
	}

	now := time.Now()
	if offer.IsExpired() {
		// The sweep would catch this shortly; close it out on the way.
		if _, err := s.offerRepo.Expire(ctx, offer.ID, now); err != nil {
			log.Printf("failed to expire overdue offer %s: %v", offer.ID, err)
		}
		metrics.OfferAcceptTotal.WithLabelValues("rejected_precondition").Inc()
		return nil, apperrors.OfferExpired()
	}

	won, err := s.requestRepo.TryAssign(ctx, offer.RequestID, driverID, now)
	if err != nil {
		return nil, err
	}

	if !won {
		// Another driver took the request (or it was cancelled). Expire this
		// offer so the driver's inbox reflects reality.
		if _, err := s.offerRepo.Expire(ctx, offer.ID, now); err != nil {
			log.Printf("failed to expire losing offer %s: %v", offer.ID, err)
		}
		metrics.OfferAcceptTotal.WithLabelValues("lost").Inc()
		return nil, apperrors.OfferNoLongerAvailable()
	}

	if _, err := s.offerRepo.MarkAccepted(ctx, offer.ID, now); err != nil {
		log.Printf("failed to mark offer %s accepted: %v", offer.ID, err)
	}

	expired, err := s.offerRepo.ExpireSiblings(ctx, offer.RequestID, offer.ID, now)
	if err != nil {
		log.Printf("failed to expire sibling offers for request %s: %v", offer.RequestID, err)
	} else if expired > 0 {
		metrics.OffersExpiredTotal.WithLabelValues("cascade").Add(float64(expired))
	}

	metrics.OfferAcceptTotal.WithLabelValues("won").Inc()
	return s.requestResponse(ctx, offer.RequestID)
}

// Reject marks the offer REJECTED. Rejecting an offer that already reached a
// terminal state is a no-op success, so driver clients can retry freely.
func (s *offerService) Reject(ctx context.Context, offerID, driverID string) error {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return err
	}
	if offer == nil {
		return apperrors.NotFound("offer")
	}
	if offer.DriverID != driverID {
		return apperrors.Forbidden("offer belongs to another driver")
	}
	if offer.IsTerminal() {
		return nil
	}

	// Losing to a concurrent accept/sweep here is fine; the guard makes the
	// write a no-op either way.
	if _, err := s.offerRepo.MarkRejected(ctx, offerID, time.Now()); err != nil {
		return err
	}
	return nil
}

func (s *offerService) Inbox(ctx context.Context, driverID, state string) ([]*models.OfferResponse, error) {
	offers, err := s.offerRepo.ListByDriver(ctx, driverID, state)
	if err != nil {
		return nil, err
	}

	responses := make([]*models.OfferResponse, 0, len(offers))
	for _, offer := range offers {
		response := offer.ToResponse()

		request, err := s.requestRepo.GetByID(ctx, offer.RequestID)
		if err == nil && request != nil {
			response.Request = request.ToResponse()
		}

		responses = append(responses, response)
	}

	return responses, nil
}

func (s *offerService) requestResponse(ctx context.Context, requestID string) (*models.RequestResponse, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.NotFound("request")
	}
	return request.ToResponse(), nil
}
