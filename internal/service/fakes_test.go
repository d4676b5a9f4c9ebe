package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feastly/dispatch/internal/cache"
	apperrors "github.com/feastly/dispatch/internal/errors"
	"github.com/feastly/dispatch/internal/models"
)

// In-memory fakes for the ledger and driver-store interfaces. TryAssign and
// the offer transitions take a mutex so the conditional-write semantics match
// what the SQL guards provide, which is what the concurrency tests exercise.

type fakeRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*models.DeliveryRequest
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{requests: make(map[string]*models.DeliveryRequest)}
}

func (f *fakeRequestRepo) Create(_ context.Context, req *models.DeliveryRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Status = models.RequestStatusPending
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	cp := *req
	f.requests[req.ID] = &cp
	return nil
}

func (f *fakeRequestRepo) GetByID(_ context.Context, id string) (*models.DeliveryRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (f *fakeRequestRepo) MarkProposed(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.Status != models.RequestStatusPending {
		return false, nil
	}
	req.Status = models.RequestStatusProposed
	return true, nil
}

func (f *fakeRequestRepo) TryAssign(_ context.Context, requestID, driverID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[requestID]
	if !ok {
		return false, nil
	}
	if req.DriverID != nil {
		return false, nil
	}
	if req.Status != models.RequestStatusPending && req.Status != models.RequestStatusProposed {
		return false, nil
	}
	d := driverID
	req.DriverID = &d
	req.Status = models.RequestStatusAccepted
	req.AssignedAt = &at
	return true, nil
}

func (f *fakeRequestRepo) AdvanceStatus(_ context.Context, id, driverID, from, to string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok || req.Status != from || req.DriverID == nil || *req.DriverID != driverID {
		return false, nil
	}
	req.Status = to
	if to == models.RequestStatusDelivered {
		req.DeliveredAt = &at
	}
	return true, nil
}

func (f *fakeRequestRepo) Cancel(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return false, nil
	}
	if req.Status != models.RequestStatusPending && req.Status != models.RequestStatusProposed {
		return false, nil
	}
	req.Status = models.RequestStatusCancelled
	req.CancelledAt = &at
	return true, nil
}

func (f *fakeRequestRepo) ListByStatus(_ context.Context, status string, limit int) ([]*models.DeliveryRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.DeliveryRequest
	for _, req := range f.requests {
		if req.Status == status && len(out) < limit {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeOfferRepo struct {
	mu     sync.Mutex
	offers map[string]*models.Offer
	byPair map[string]string // requestID+"/"+driverID -> offerID

	// expireErr makes Expire fail for specific offer IDs (failure isolation tests).
	expireErr map[string]error
}

func newFakeOfferRepo() *fakeOfferRepo {
	return &fakeOfferRepo{
		offers:    make(map[string]*models.Offer),
		byPair:    make(map[string]string),
		expireErr: make(map[string]error),
	}
}

func pairKey(requestID, driverID string) string {
	return requestID + "/" + driverID
}

func (f *fakeOfferRepo) Create(_ context.Context, offer *models.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byPair[pairKey(offer.RequestID, offer.DriverID)]; exists {
		return apperrors.ErrDuplicateOffer
	}
	if offer.ID == "" {
		offer.ID = uuid.New().String()
	}
	offer.State = models.OfferStateSent
	offer.SentAt = time.Now()
	cp := *offer
	f.offers[offer.ID] = &cp
	f.byPair[pairKey(offer.RequestID, offer.DriverID)] = offer.ID
	return nil
}

func (f *fakeOfferRepo) GetByID(_ context.Context, id string) (*models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	offer, ok := f.offers[id]
	if !ok {
		return nil, nil
	}
	cp := *offer
	return &cp, nil
}

func (f *fakeOfferRepo) GetByRequestAndDriver(_ context.Context, requestID, driverID string) (*models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byPair[pairKey(requestID, driverID)]
	if !ok {
		return nil, nil
	}
	cp := *f.offers[id]
	return &cp, nil
}

func (f *fakeOfferRepo) ListByDriver(_ context.Context, driverID, state string) ([]*models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Offer
	for _, offer := range f.offers {
		if offer.DriverID != driverID {
			continue
		}
		if state != "" && offer.State != state {
			continue
		}
		cp := *offer
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeOfferRepo) ListByRequest(_ context.Context, requestID string) ([]*models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Offer
	for _, offer := range f.offers {
		if offer.RequestID == requestID {
			cp := *offer
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeOfferRepo) MarkAccepted(_ context.Context, id string, at time.Time) (bool, error) {
	return f.transition(id, models.OfferStateAccepted, at)
}

func (f *fakeOfferRepo) MarkRejected(_ context.Context, id string, at time.Time) (bool, error) {
	return f.transition(id, models.OfferStateRejected, at)
}

func (f *fakeOfferRepo) Expire(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	if err, ok := f.expireErr[id]; ok {
		f.mu.Unlock()
		return false, err
	}
	f.mu.Unlock()
	return f.transition(id, models.OfferStateExpired, at)
}

func (f *fakeOfferRepo) transition(id, to string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	offer, ok := f.offers[id]
	if !ok || offer.State != models.OfferStateSent {
		return false, nil
	}
	offer.State = to
	offer.RespondedAt = &at
	return true, nil
}

func (f *fakeOfferRepo) ExpireSiblings(_ context.Context, requestID, acceptedOfferID string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, offer := range f.offers {
		if offer.RequestID == requestID && offer.ID != acceptedOfferID && offer.State == models.OfferStateSent {
			offer.State = models.OfferStateExpired
			offer.RespondedAt = &at
			n++
		}
	}
	return n, nil
}

func (f *fakeOfferRepo) ExpireAllForRequest(_ context.Context, requestID string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, offer := range f.offers {
		if offer.RequestID == requestID && offer.State == models.OfferStateSent {
			offer.State = models.OfferStateExpired
			offer.RespondedAt = &at
			n++
		}
	}
	return n, nil
}

func (f *fakeOfferRepo) ListOverdue(_ context.Context, now time.Time, limit int) ([]*models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Offer
	for _, offer := range f.offers {
		if offer.State == models.OfferStateSent && offer.ExpiresAt.Before(now) && len(out) < limit {
			cp := *offer
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeDriverStore returns canned discovery results per radius and records
// which radii were queried.
type fakeDriverStore struct {
	mu       sync.Mutex
	byRadius map[float64][]cache.NearbyDriver
	queried  []float64
	err      error
}

func newFakeDriverStore() *fakeDriverStore {
	return &fakeDriverStore{byRadius: make(map[float64][]cache.NearbyDriver)}
}

func (f *fakeDriverStore) UpdateLocation(_ context.Context, _ string, _ models.Point) error {
	return nil
}

func (f *fakeDriverStore) SetFlags(_ context.Context, _ string, _, _ *bool) error {
	return nil
}

func (f *fakeDriverStore) GetSnapshot(_ context.Context, _ string) (*models.DriverSnapshot, error) {
	return nil, nil
}

func (f *fakeDriverStore) RemoveDriver(_ context.Context, _ string) error {
	return nil
}

func (f *fakeDriverStore) FindEligibleDrivers(_ context.Context, _ models.Point, radiusMeters float64) ([]cache.NearbyDriver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, radiusMeters)
	if f.err != nil {
		return nil, f.err
	}
	return f.byRadius[radiusMeters], nil
}

func (f *fakeDriverStore) queriedRadii() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.queried))
	copy(out, f.queried)
	return out
}

func seedRequest(repo *fakeRequestRepo, status string) *models.DeliveryRequest {
	req := &models.DeliveryRequest{
		RestaurantID:   "rest-1",
		CreatedBy:      "owner-1",
		PickupLat:      43.2389,
		PickupLng:      76.8897,
		PickupAddress:  "12 Abay Ave",
		DropoffLat:     43.25,
		DropoffLng:     76.91,
		DropoffAddress: "4 Dostyk Ave",
		DeliveryFee:    15.50,
	}
	_ = repo.Create(context.Background(), req)
	if status != models.RequestStatusPending {
		repo.mu.Lock()
		repo.requests[req.ID].Status = status
		repo.mu.Unlock()
	}
	return req
}

func seedOffer(repo *fakeOfferRepo, requestID, driverID string, ttl time.Duration) *models.Offer {
	offer := &models.Offer{
		RequestID: requestID,
		DriverID:  driverID,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := repo.Create(context.Background(), offer); err != nil {
		panic(fmt.Sprintf("seed offer: %v", err))
	}
	return offer
}
