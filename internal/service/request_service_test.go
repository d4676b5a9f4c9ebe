package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feastly/dispatch/internal/cache"
	"github.com/feastly/dispatch/internal/models"
)

// stubDispatcher records enqueued request IDs without doing any work.
type stubDispatcher struct {
	mu       sync.Mutex
	enqueued []string
}

func (s *stubDispatcher) Enqueue(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueued = append(s.enqueued, requestID)
}

func (s *stubDispatcher) Dispatch(context.Context, string) error { return nil }
func (s *stubDispatcher) Start()                                 {}
func (s *stubDispatcher) Stop()                                  {}

func validCreateRequest() *models.CreateRequestRequest {
	return &models.CreateRequestRequest{
		RestaurantID: "rest-1",
		CreatedBy:    "owner-1",
		Pickup: models.Waypoint{
			Point:   models.Point{Lng: 76.8897, Lat: 43.2389},
			Address: "12 Abay Ave",
		},
		Dropoff: models.Waypoint{
			Point:   models.Point{Lng: 76.91, Lat: 43.25},
			Address: "4 Dostyk Ave",
		},
		DeliveryFee: 15.50,
	}
}

func TestCreatePersistsPendingAndEnqueues(t *testing.T) {
	requests := newFakeRequestRepo()
	offers := newFakeOfferRepo()
	dispatcher := &stubDispatcher{}
	svc := NewRequestService(requests, offers, dispatcher)

	resp, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusPending, resp.Status)
	assert.Nil(t, resp.DriverID)
	assert.Equal(t, 15.50, resp.DeliveryFee)
	assert.Equal(t, 76.8897, resp.Pickup.Point.Lng)
	assert.Equal(t, 43.2389, resp.Pickup.Point.Lat)

	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, resp.ID, dispatcher.enqueued[0])
}

func TestCreateValidation(t *testing.T) {
	svc := NewRequestService(newFakeRequestRepo(), newFakeOfferRepo(), &stubDispatcher{})

	tests := []struct {
		name   string
		mutate func(*models.CreateRequestRequest)
	}{
		{"negative fee", func(r *models.CreateRequestRequest) { r.DeliveryFee = -1 }},
		{"longitude out of range", func(r *models.CreateRequestRequest) { r.Pickup.Point.Lng = 181 }},
		{"latitude out of range", func(r *models.CreateRequestRequest) { r.Dropoff.Point.Lat = -91 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(req)
			_, err := svc.Create(context.Background(), req)
			requireAPIStatus(t, err, http.StatusBadRequest)
		})
	}
}

func TestAdvanceStatusHappyPath(t *testing.T) {
	requests := newFakeRequestRepo()
	svc := NewRequestService(requests, newFakeOfferRepo(), &stubDispatcher{})

	req := seedRequest(requests, models.RequestStatusProposed)
	_, err := requests.TryAssign(context.Background(), req.ID, "d1", time.Now())
	require.NoError(t, err)

	resp, err := svc.AdvanceStatus(context.Background(), req.ID, "d1", models.RequestStatusInDelivery)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusInDelivery, resp.Status)

	resp, err = svc.AdvanceStatus(context.Background(), req.ID, "d1", models.RequestStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusDelivered, resp.Status)
	assert.NotNil(t, resp.DeliveredAt)
}

func TestAdvanceStatusCannotSkipInDelivery(t *testing.T) {
	requests := newFakeRequestRepo()
	svc := NewRequestService(requests, newFakeOfferRepo(), &stubDispatcher{})

	req := seedRequest(requests, models.RequestStatusProposed)
	_, err := requests.TryAssign(context.Background(), req.ID, "d1", time.Now())
	require.NoError(t, err)

	_, err = svc.AdvanceStatus(context.Background(), req.ID, "d1", models.RequestStatusDelivered)
	requireAPIStatus(t, err, http.StatusBadRequest)

	unchanged, _ := requests.GetByID(context.Background(), req.ID)
	assert.Equal(t, models.RequestStatusAccepted, unchanged.Status, "failed transition leaves the request unchanged")
}

func TestAdvanceStatusOnlyAssignedDriver(t *testing.T) {
	requests := newFakeRequestRepo()
	svc := NewRequestService(requests, newFakeOfferRepo(), &stubDispatcher{})

	req := seedRequest(requests, models.RequestStatusProposed)
	_, err := requests.TryAssign(context.Background(), req.ID, "d1", time.Now())
	require.NoError(t, err)

	_, err = svc.AdvanceStatus(context.Background(), req.ID, "d2", models.RequestStatusInDelivery)
	requireAPIStatus(t, err, http.StatusForbidden)
}

func TestAdvanceStatusUnassignedForbidden(t *testing.T) {
	requests := newFakeRequestRepo()
	svc := NewRequestService(requests, newFakeOfferRepo(), &stubDispatcher{})

	req := seedRequest(requests, models.RequestStatusProposed)

	_, err := svc.AdvanceStatus(context.Background(), req.ID, "d1", models.RequestStatusInDelivery)
	requireAPIStatus(t, err, http.StatusForbidden)
}

func TestCancelExpiresOutstandingOffers(t *testing.T) {
	requests := newFakeRequestRepo()
	offers := newFakeOfferRepo()
	svc := NewRequestService(requests, offers, &stubDispatcher{})

	req := seedRequest(requests, models.RequestStatusProposed)
	o1 := seedOffer(offers, req.ID, "d1", 2*time.Minute)
	o2 := seedOffer(offers, req.ID, "d2", 2*time.Minute)

	resp, err := svc.Cancel(context.Background(), req.ID, "rest-1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, resp.Status)
	assert.NotNil(t, resp.CancelledAt)

	for _, id := range []string{o1.ID, o2.ID} {
		o, _ := offers.GetByID(context.Background(), id)
		assert.Equal(t, models.OfferStateExpired, o.State)
	}
}

func TestCancelForbiddenForStranger(t *testing.T) {
	requests := newFakeRequestRepo()
	svc := NewRequestService(requests, newFakeOfferRepo(), &stubDispatcher{})

	req := seedRequest(requests, models.RequestStatusPending)

	_, err := svc.Cancel(context.Background(), req.ID, "someone-else")
	requireAPIStatus(t, err, http.StatusForbidden)
}

func TestCancelAfterAssignmentInvalid(t *testing.T) {
	requests := newFakeRequestRepo()
	svc := NewRequestService(requests, newFakeOfferRepo(), &stubDispatcher{})

	req := seedRequest(requests, models.RequestStatusProposed)
	_, err := requests.TryAssign(context.Background(), req.ID, "d1", time.Now())
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), req.ID, "rest-1")
	requireAPIStatus(t, err, http.StatusBadRequest)
}

func TestGetNotFound(t *testing.T) {
	svc := NewRequestService(newFakeRequestRepo(), newFakeOfferRepo(), &stubDispatcher{})

	_, err := svc.Get(context.Background(), "missing")
	requireAPIStatus(t, err, http.StatusNotFound)
}

// Full-path scenario: one eligible driver gets the only offer, accepts, and a
// stranger's accept on a nonexistent offer is NotFound rather than Conflict.
func TestCreateDispatchAcceptScenario(t *testing.T) {
	requests := newFakeRequestRepo()
	offers := newFakeOfferRepo()
	drivers := newFakeDriverStore()

	drivers.byRadius[2000] = []cache.NearbyDriver{{DriverID: "D1", DistanceMeters: 1200}}

	matcher := newTestMatcher(requests, offers, drivers)
	requestSvc := NewRequestService(requests, offers, matcher)
	offerSvc := NewOfferService(offers, requests)

	created, err := requestSvc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	require.NoError(t, matcher.Dispatch(context.Background(), created.ID))

	cohort, _ := offers.ListByRequest(context.Background(), created.ID)
	require.Len(t, cohort, 1)
	assert.Equal(t, "D1", cohort[0].DriverID)

	resp, err := offerSvc.Accept(context.Background(), cohort[0].ID, "D1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, resp.Status)
	require.NotNil(t, resp.DriverID)
	assert.Equal(t, "D1", *resp.DriverID)

	_, err = offerSvc.Accept(context.Background(), "no-such-offer", "D3")
	requireAPIStatus(t, err, http.StatusNotFound)
}
