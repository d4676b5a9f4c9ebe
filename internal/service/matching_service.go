package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/feastly/dispatch/internal/cache"
	apperrors "github.com/feastly/dispatch/internal/errors"
	"github.com/feastly/dispatch/internal/metrics"
	"github.com/feastly/dispatch/internal/models"
	"github.com/feastly/dispatch/internal/repository"
)

// MatchingService fans delivery requests out to nearby drivers as time-boxed
// offers. Dispatch runs on background workers: request creation enqueues and
// returns, and a dispatch failure never affects the created request.
type MatchingService interface {
	// Enqueue hands a request off to the dispatch workers. Never blocks; if
	// the queue is full the job is dropped and the request stays PENDING,
	// eligible for a later re-dispatch.
	Enqueue(requestID string)

	// Dispatch runs one radius-escalation pass for a request.
	Dispatch(ctx context.Context, requestID string) error

	Start()
	Stop()
}

type matchingService struct {
	requestRepo repository.RequestRepository
	offerRepo   repository.OfferRepository
	drivers     cache.DriverLocationStore

	radiiMeters []float64
	offerTTL    time.Duration
	workers     int
	maxRetries  int

	jobs chan string
	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

func NewMatchingService(
	requestRepo repository.RequestRepository,
	offerRepo repository.OfferRepository,
	drivers cache.DriverLocationStore,
	radiiMeters []float64,
	offerTTL time.Duration,
	workers, queueSize, maxRetries int,
) MatchingService {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &matchingService{
		requestRepo: requestRepo,
		offerRepo:   offerRepo,
		drivers:     drivers,
		radiiMeters: radiiMeters,
		offerTTL:    offerTTL,
		workers:     workers,
		maxRetries:  maxRetries,
		jobs:        make(chan string, queueSize),
		stop:        make(chan struct{}),
	}
}

func (s *matchingService) Start() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

func (s *matchingService) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *matchingService) Enqueue(requestID string) {
	select {
	case s.jobs <- requestID:
		metrics.DispatchQueueDepth.Set(float64(len(s.jobs)))
	default:
		log.Printf("dispatch queue full, dropping request %s (stays PENDING)", requestID)
	}
}

func (s *matchingService) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case requestID := <-s.jobs:
			metrics.DispatchQueueDepth.Set(float64(len(s.jobs)))
			s.dispatchWithRetry(requestID)
		}
	}
}

func (s *matchingService) dispatchWithRetry(requestID string) {
	ctx := context.Background()
	for attempt := 0; ; attempt++ {
		err := s.Dispatch(ctx, requestID)
		if err == nil {
			return
		}
		metrics.DispatchAttemptsTotal.WithLabelValues("error").Inc()
		if attempt >= s.maxRetries {
			log.Printf("dispatch for request %s failed after %d attempts: %v", requestID, attempt+1, err)
			return
		}
		log.Printf("dispatch for request %s failed (attempt %d): %v", requestID, attempt+1, err)

		select {
		case <-s.stop:
			return
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}
}

// Dispatch discovers eligible drivers by escalating the search radius and
// creates one SENT offer per driver found at the first non-empty tier.
// Finding nobody at every tier is a normal outcome: the request stays
// PENDING with zero offers.
func (s *matchingService) Dispatch(ctx context.Context, requestID string) error {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if request == nil {
		return apperrors.ErrNotFound
	}
	if request.Status != models.RequestStatusPending {
		// Cancelled or already dispatched; nothing to do.
		return nil
	}

	origin := models.Point{Lng: request.PickupLng, Lat: request.PickupLat}

	for _, radius := range s.radiiMeters {
		drivers, err := s.drivers.FindEligibleDrivers(ctx, origin, radius)
		if err != nil {
			return err
		}
		if len(drivers) == 0 {
			continue
		}

		if err := s.createOffers(ctx, request, drivers); err != nil {
			return err
		}

		// Stop escalating at the first tier with any driver.
		metrics.DispatchAttemptsTotal.WithLabelValues("proposed").Inc()
		return nil
	}

	log.Printf("no eligible drivers for request %s at any radius, leaving PENDING", requestID)
	metrics.DispatchAttemptsTotal.WithLabelValues("no_drivers").Inc()
	return nil
}

func (s *matchingService) createOffers(ctx context.Context, request *models.DeliveryRequest, drivers []cache.NearbyDriver) error {
	now := time.Now()
	covered := 0

	for _, d := range drivers {
		offer := &models.Offer{
			RequestID: request.ID,
			DriverID:  d.DriverID,
			ExpiresAt: now.Add(s.offerTTL),
		}

		err := s.offerRepo.Create(ctx, offer)
		switch {
		case err == nil:
			covered++
			metrics.OffersCreatedTotal.Inc()
			log.Printf("created offer %s for driver %s (%.0fm from pickup)",
				offer.ID, d.DriverID, d.DistanceMeters)
		case err == apperrors.ErrDuplicateOffer:
			// A retried dispatch already reached this driver; not a failure.
			covered++
		default:
			log.Printf("failed to create offer for driver %s: %v", d.DriverID, err)
		}
	}

	if covered == 0 {
		return apperrors.ErrNoDriversFound
	}

	if ok, err := s.requestRepo.MarkProposed(ctx, request.ID); err != nil {
		return err
	} else if !ok {
		log.Printf("request %s changed state during dispatch, leaving as is", request.ID)
	}
	return nil
}
