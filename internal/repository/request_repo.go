package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/feastly/dispatch/internal/models"
)

type RequestRepository interface {
	Create(ctx context.Context, req *models.DeliveryRequest) error
	GetByID(ctx context.Context, id string) (*models.DeliveryRequest, error)
	MarkProposed(ctx context.Context, id string) (bool, error)
	TryAssign(ctx context.Context, requestID, driverID string, at time.Time) (bool, error)
	AdvanceStatus(ctx context.Context, id, driverID, from, to string, at time.Time) (bool, error)
	Cancel(ctx context.Context, id string, at time.Time) (bool, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]*models.DeliveryRequest, error)
}

type requestRepository struct {
	db *sqlx.DB
}

func NewRequestRepository(db *sqlx.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *models.DeliveryRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	req.Status = models.RequestStatusPending

	query := `
		INSERT INTO delivery_requests (id, restaurant_id, created_by, pickup_lat, pickup_lng,
			pickup_address, dropoff_lat, dropoff_lng, dropoff_address, delivery_fee, notes,
			status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.RestaurantID, req.CreatedBy, req.PickupLat, req.PickupLng,
		req.PickupAddress, req.DropoffLat, req.DropoffLng, req.DropoffAddress, req.DeliveryFee,
		req.Notes, req.Status, req.CreatedAt, req.UpdatedAt)
	return err
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*models.DeliveryRequest, error) {
	var req models.DeliveryRequest
	query := `SELECT * FROM delivery_requests WHERE id = $1`
	err := r.db.GetContext(ctx, &req, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &req, err
}

// MarkProposed moves a request to PROPOSED once offers are out. Guarded so a
// request cancelled mid-dispatch stays cancelled.
func (r *requestRepository) MarkProposed(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE delivery_requests
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query,
		models.RequestStatusProposed, time.Now(), id, models.RequestStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// TryAssign is the single compare-and-swap that binds a driver to a request.
// Exactly one concurrent caller can match the WHERE clause; everyone else
// gets zero rows back. All assignment correctness rests on this statement
// executing atomically in the database, never on in-process locking.
func (r *requestRepository) TryAssign(ctx context.Context, requestID, driverID string, at time.Time) (bool, error) {
	query := `
		UPDATE delivery_requests
		SET driver_id = $1, status = $2, assigned_at = $3, updated_at = $3
		WHERE id = $4 AND status IN ($5, $6) AND driver_id IS NULL
	`
	res, err := r.db.ExecContext(ctx, query,
		driverID, models.RequestStatusAccepted, at, requestID,
		models.RequestStatusPending, models.RequestStatusProposed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// AdvanceStatus applies a driver-initiated transition, gated on the current
// status and on the caller being the assigned driver.
func (r *requestRepository) AdvanceStatus(ctx context.Context, id, driverID, from, to string, at time.Time) (bool, error) {
	var query string
	if to == models.RequestStatusDelivered {
		query = `
			UPDATE delivery_requests
			SET status = $1, delivered_at = $2, updated_at = $2
			WHERE id = $3 AND status = $4 AND driver_id = $5
		`
	} else {
		query = `
			UPDATE delivery_requests
			SET status = $1, updated_at = $2
			WHERE id = $3 AND status = $4 AND driver_id = $5
		`
	}
	res, err := r.db.ExecContext(ctx, query, to, at, id, from, driverID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Cancel marks a request CANCELLED, only while it is still unassigned.
func (r *requestRepository) Cancel(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE delivery_requests
		SET status = $1, cancelled_at = $2, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)
	`
	res, err := r.db.ExecContext(ctx, query,
		models.RequestStatusCancelled, at, id,
		models.RequestStatusPending, models.RequestStatusProposed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *requestRepository) ListByStatus(ctx context.Context, status string, limit int) ([]*models.DeliveryRequest, error) {
	var requests []*models.DeliveryRequest
	query := `
		SELECT * FROM delivery_requests
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	err := r.db.SelectContext(ctx, &requests, query, status, limit)
	return requests, err
}
