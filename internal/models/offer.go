package models

import (
	"time"
)

// Offer state constants. SENT is the only non-terminal state.
const (
	OfferStateSent     = "SENT"
	OfferStateAccepted = "ACCEPTED"
	OfferStateRejected = "REJECTED"
	OfferStateExpired  = "EXPIRED"
)

type Offer struct {
	ID          string     `db:"id" json:"id"`
	RequestID   string     `db:"request_id" json:"request_id"`
	DriverID    string     `db:"driver_id" json:"driver_id"`
	State       string     `db:"state" json:"state"`
	SentAt      time.Time  `db:"sent_at" json:"sent_at"`
	RespondedAt *time.Time `db:"responded_at" json:"responded_at,omitempty"`
	ExpiresAt   time.Time  `db:"expires_at" json:"expires_at"`
}

type OfferActionRequest struct {
	DriverID string `json:"driver_id" validate:"required"`
}

type OfferResponse struct {
	ID        string           `json:"id"`
	RequestID string           `json:"request_id"`
	State     string           `json:"state"`
	SentAt    time.Time        `json:"sent_at"`
	ExpiresAt time.Time        `json:"expires_at"`
	Request   *RequestResponse `json:"request,omitempty"`
}

func (o *Offer) IsExpired() bool {
	return time.Now().After(o.ExpiresAt)
}

// IsTerminal returns true for any state other than SENT.
func (o *Offer) IsTerminal() bool {
	return o.State != OfferStateSent
}

func (o *Offer) ToResponse() *OfferResponse {
	return &OfferResponse{
		ID:        o.ID,
		RequestID: o.RequestID,
		State:     o.State,
		SentAt:    o.SentAt,
		ExpiresAt: o.ExpiresAt,
	}
}
