package models

import (
	"time"
)

// Delivery request status constants
const (
	RequestStatusPending    = "PENDING"
	RequestStatusProposed   = "PROPOSED"
	RequestStatusAccepted   = "ACCEPTED"
	RequestStatusInDelivery = "IN_DELIVERY"
	RequestStatusDelivered  = "DELIVERED"
	RequestStatusCancelled  = "CANCELLED"
)

// Valid request state transitions
var ValidRequestTransitions = map[string][]string{
	RequestStatusPending:    {RequestStatusProposed, RequestStatusAccepted, RequestStatusCancelled},
	RequestStatusProposed:   {RequestStatusAccepted, RequestStatusCancelled},
	RequestStatusAccepted:   {RequestStatusInDelivery},
	RequestStatusInDelivery: {RequestStatusDelivered},
	RequestStatusDelivered:  {},
	RequestStatusCancelled:  {},
}

// DriverTransitions are the post-assignment transitions the assigned driver may request.
var DriverTransitions = map[string]string{
	RequestStatusInDelivery: RequestStatusAccepted,
	RequestStatusDelivered:  RequestStatusInDelivery,
}

type DeliveryRequest struct {
	ID             string     `db:"id" json:"id"`
	RestaurantID   string     `db:"restaurant_id" json:"restaurant_id"`
	CreatedBy      string     `db:"created_by" json:"created_by"`
	DriverID       *string    `db:"driver_id" json:"driver_id,omitempty"`
	PickupLat      float64    `db:"pickup_lat" json:"-"`
	PickupLng      float64    `db:"pickup_lng" json:"-"`
	PickupAddress  string     `db:"pickup_address" json:"pickup_address"`
	DropoffLat     float64    `db:"dropoff_lat" json:"-"`
	DropoffLng     float64    `db:"dropoff_lng" json:"-"`
	DropoffAddress string     `db:"dropoff_address" json:"dropoff_address"`
	DeliveryFee    float64    `db:"delivery_fee" json:"delivery_fee"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	Status         string     `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	AssignedAt     *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`
	CancelledAt    *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	DeliveredAt    *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
}

type Waypoint struct {
	Point   Point  `json:"point"`
	Address string `json:"address" validate:"required"`
}

type CreateRequestRequest struct {
	RestaurantID string   `json:"restaurant_id" validate:"required"`
	CreatedBy    string   `json:"created_by" validate:"required"`
	Pickup       Waypoint `json:"pickup" validate:"required"`
	Dropoff      Waypoint `json:"dropoff" validate:"required"`
	DeliveryFee  float64  `json:"delivery_fee" validate:"gte=0"`
	Notes        string   `json:"notes,omitempty"`
}

type CancelRequestRequest struct {
	RequestedBy string `json:"requested_by" validate:"required"`
}

type AdvanceStatusRequest struct {
	DriverID string `json:"driver_id" validate:"required"`
	Status   string `json:"status" validate:"required,oneof=IN_DELIVERY DELIVERED"`
}

type RequestResponse struct {
	ID             string     `json:"id"`
	RestaurantID   string     `json:"restaurant_id"`
	Status         string     `json:"status"`
	DriverID       *string    `json:"driver_id,omitempty"`
	Pickup         Waypoint   `json:"pickup"`
	Dropoff        Waypoint   `json:"dropoff"`
	DeliveryFee    float64    `json:"delivery_fee"`
	Notes          *string    `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	AssignedAt     *time.Time `json:"assigned_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

func (r *DeliveryRequest) ToResponse() *RequestResponse {
	return &RequestResponse{
		ID:           r.ID,
		RestaurantID: r.RestaurantID,
		Status:       r.Status,
		DriverID:     r.DriverID,
		Pickup: Waypoint{
			Point:   Point{Lng: r.PickupLng, Lat: r.PickupLat},
			Address: r.PickupAddress,
		},
		Dropoff: Waypoint{
			Point:   Point{Lng: r.DropoffLng, Lat: r.DropoffLat},
			Address: r.DropoffAddress,
		},
		DeliveryFee: r.DeliveryFee,
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt,
		AssignedAt:  r.AssignedAt,
		CancelledAt: r.CancelledAt,
		DeliveredAt: r.DeliveredAt,
	}
}

// CanTransitionTo checks if a request can move to a new status.
func (r *DeliveryRequest) CanTransitionTo(newStatus string) bool {
	validNextStates, exists := ValidRequestTransitions[r.Status]
	if !exists {
		return false
	}

	for _, state := range validNextStates {
		if state == newStatus {
			return true
		}
	}
	return false
}

// IsTerminal returns true once the request can no longer change.
func (r *DeliveryRequest) IsTerminal() bool {
	return r.Status == RequestStatusDelivered || r.Status == RequestStatusCancelled
}

// Cancellable reports whether the request may still be cancelled.
func (r *DeliveryRequest) Cancellable() bool {
	return r.Status == RequestStatusPending || r.Status == RequestStatusProposed
}
