package models

// DriverSnapshot is the slice of driver profile state the matching engine reads.
// The driver profile subsystem owns the write side.
type DriverSnapshot struct {
	DriverID    string `json:"driver_id"`
	Location    *Point `json:"location,omitempty"`
	IsAvailable bool   `json:"is_available"`
	IsVerified  bool   `json:"is_verified"`
}

type UpdateDriverLocationRequest struct {
	Point Point `json:"point"`
}

type UpdateDriverFlagsRequest struct {
	IsAvailable *bool `json:"is_available,omitempty"`
	IsVerified  *bool `json:"is_verified,omitempty"`
}
