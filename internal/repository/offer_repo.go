package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/feastly/dispatch/internal/errors"
	"github.com/feastly/dispatch/internal/models"
)

const pqUniqueViolation = "23505"

type OfferRepository interface {
	Create(ctx context.Context, offer *models.Offer) error
	GetByID(ctx context.Context, id string) (*models.Offer, error)
	GetByRequestAndDriver(ctx context.Context, requestID, driverID string) (*models.Offer, error)
	ListByDriver(ctx context.Context, driverID, state string) ([]*models.Offer, error)
	ListByRequest(ctx context.Context, requestID string) ([]*models.Offer, error)
	MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error)
	MarkRejected(ctx context.Context, id string, at time.Time) (bool, error)
	Expire(ctx context.Context, id string, at time.Time) (bool, error)
	ExpireSiblings(ctx context.Context, requestID, acceptedOfferID string, at time.Time) (int64, error)
	ExpireAllForRequest(ctx context.Context, requestID string, at time.Time) (int64, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.Offer, error)
}

type offerRepository struct {
	db *sqlx.DB
}

func NewOfferRepository(db *sqlx.DB) OfferRepository {
	return &offerRepository{db: db}
}

// Create inserts a SENT offer. A second offer for the same (request, driver)
// pair trips the unique constraint and surfaces as ErrDuplicateOffer so the
// dispatcher can skip it without treating it as a failure.
func (r *offerRepository) Create(ctx context.Context, offer *models.Offer) error {
	if offer.ID == "" {
		offer.ID = uuid.New().String()
	}
	offer.SentAt = time.Now()
	offer.State = models.OfferStateSent

	query := `
		INSERT INTO offers (id, request_id, driver_id, state, sent_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		offer.ID, offer.RequestID, offer.DriverID, offer.State, offer.SentAt, offer.ExpiresAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return apperrors.ErrDuplicateOffer
	}
	return err
}

func (r *offerRepository) GetByID(ctx context.Context, id string) (*models.Offer, error) {
	var offer models.Offer
	query := `SELECT * FROM offers WHERE id = $1`
	err := r.db.GetContext(ctx, &offer, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &offer, err
}

func (r *offerRepository) GetByRequestAndDriver(ctx context.Context, requestID, driverID string) (*models.Offer, error) {
	var offer models.Offer
	query := `SELECT * FROM offers WHERE request_id = $1 AND driver_id = $2`
	err := r.db.GetContext(ctx, &offer, query, requestID, driverID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &offer, err
}

func (r *offerRepository) ListByDriver(ctx context.Context, driverID, state string) ([]*models.Offer, error) {
	var offers []*models.Offer
	if state == "" {
		query := `
			SELECT * FROM offers
			WHERE driver_id = $1
			ORDER BY sent_at DESC
		`
		err := r.db.SelectContext(ctx, &offers, query, driverID)
		return offers, err
	}

	query := `
		SELECT * FROM offers
		WHERE driver_id = $1 AND state = $2
		ORDER BY sent_at DESC
	`
	err := r.db.SelectContext(ctx, &offers, query, driverID, state)
	return offers, err
}

func (r *offerRepository) ListByRequest(ctx context.Context, requestID string) ([]*models.Offer, error) {
	var offers []*models.Offer
	query := `
		SELECT * FROM offers
		WHERE request_id = $1
		ORDER BY sent_at ASC
	`
	err := r.db.SelectContext(ctx, &offers, query, requestID)
	return offers, err
}

func (r *offerRepository) MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.transition(ctx, id, models.OfferStateAccepted, at)
}

func (r *offerRepository) MarkRejected(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.transition(ctx, id, models.OfferStateRejected, at)
}

func (r *offerRepository) Expire(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.transition(ctx, id, models.OfferStateExpired, at)
}

// transition moves an offer out of SENT. The state guard makes concurrent
// accept/reject/sweep attempts on the same offer resolve to exactly one
// winner; losers see zero rows and treat it as a no-op.
func (r *offerRepository) transition(ctx context.Context, id, to string, at time.Time) (bool, error) {
	query := `
		UPDATE offers
		SET state = $1, responded_at = $2
		WHERE id = $3 AND state = $4
	`
	res, err := r.db.ExecContext(ctx, query, to, at, id, models.OfferStateSent)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ExpireSiblings cascades an acceptance: every other SENT offer on the
// request is expired so no late accept can land.
func (r *offerRepository) ExpireSiblings(ctx context.Context, requestID, acceptedOfferID string, at time.Time) (int64, error) {
	query := `
		UPDATE offers
		SET state = $1, responded_at = $2
		WHERE request_id = $3 AND id <> $4 AND state = $5
	`
	res, err := r.db.ExecContext(ctx, query,
		models.OfferStateExpired, at, requestID, acceptedOfferID, models.OfferStateSent)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *offerRepository) ExpireAllForRequest(ctx context.Context, requestID string, at time.Time) (int64, error) {
	query := `
		UPDATE offers
		SET state = $1, responded_at = $2
		WHERE request_id = $3 AND state = $4
	`
	res, err := r.db.ExecContext(ctx, query,
		models.OfferStateExpired, at, requestID, models.OfferStateSent)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *offerRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.Offer, error) {
	var offers []*models.Offer
	query := `
		SELECT * FROM offers
		WHERE state = $1 AND expires_at < $2
		ORDER BY expires_at ASC
		LIMIT $3
	`
	err := r.db.SelectContext(ctx, &offers, query, models.OfferStateSent, now, limit)
	return offers, err
}
