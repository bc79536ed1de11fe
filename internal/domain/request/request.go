package request

import (
	"errors"
	"strings"
	"time"

	"ride-market/internal/domain/money"
)

// RiderRequest is the domain entity corresponding to the `rider_requests`
// table: a rider's published ad-hoc trip looking for a driver and,
// optionally, co-passengers.
type RiderRequest struct {
	// Identity & audit
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Actors
	OwnerID string

	// Trip parameters
	Origin      string // opaque place reference, free text or geocoder id
	Destination string
	DepartureAt time.Time

	// Capacity
	SeatsRequested int // seats the owner's own party occupies
	MaxPassengers  int // total seat capacity, owner included

	// Pricing
	BasePrice *money.Amount // nil until a bid is accepted or priced externally

	// Core state
	Status      Status
	ChosenBidID *string // set exactly once, on acceptance
}

var (
	ErrRequestNotFound     = errors.New("request not found")
	ErrRequestIDRequired   = errors.New("request id is required")
	ErrOwnerRequired       = errors.New("owner id is required")
	ErrOriginRequired      = errors.New("origin is required")
	ErrDestinationRequired = errors.New("destination is required")
	ErrDepartureRequired   = errors.New("departure time is required")
)

// NewRequest creates a rider request in OPEN state. The caller must also
// create the owner's Passenger row holding SeatsRequested seats; the store
// does both in one unit.
func NewRequest(ownerID, origin, destination string, departureAt time.Time, seatsRequested, maxPassengers int) (*RiderRequest, error) {
	if ownerID = strings.TrimSpace(ownerID); ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if origin = strings.TrimSpace(origin); origin == "" {
		return nil, ErrOriginRequired
	}
	if destination = strings.TrimSpace(destination); destination == "" {
		return nil, ErrDestinationRequired
	}
	if departureAt.IsZero() {
		return nil, ErrDepartureRequired
	}
	if seatsRequested < 1 || maxPassengers < seatsRequested {
		return nil, ErrInvalidCapacity
	}

	now := time.Now().UTC()
	return &RiderRequest{
		CreatedAt:      now,
		UpdatedAt:      now,
		OwnerID:        ownerID,
		Origin:         origin,
		Destination:    destination,
		DepartureAt:    departureAt.UTC(),
		SeatsRequested: seatsRequested,
		MaxPassengers:  maxPassengers,
		Status:         StatusOpen,
	}, nil
}

// Match records the accepted bid and moves OPEN -> MATCHED. The bid price
// becomes the authoritative base price.
func (req *RiderRequest) Match(bidID string, price money.Amount) error {
	if req.ChosenBidID != nil {
		return ErrAlreadyMatched
	}
	if !req.Status.CanTransitionTo(StatusMatched) {
		return ErrInvalidTransition
	}
	req.ChosenBidID = &bidID
	req.BasePrice = &price
	req.setStatus(StatusMatched)
	return nil
}

// Complete moves MATCHED -> COMPLETED. Completing twice is a no-op.
func (req *RiderRequest) Complete() error {
	if req.Status == StatusCompleted {
		return nil
	}
	if !req.Status.CanTransitionTo(StatusCompleted) {
		return ErrInvalidTransition
	}
	req.setStatus(StatusCompleted)
	return nil
}

// Cancel moves OPEN/MATCHED -> CANCELLED. Cancelling twice is a no-op.
func (req *RiderRequest) Cancel() error {
	if req.Status == StatusCancelled {
		return nil
	}
	if !req.Status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidTransition
	}
	req.setStatus(StatusCancelled)
	return nil
}

// ----- internal helpers -----

func (req *RiderRequest) setStatus(status Status) {
	req.Status = status
	req.touch()
}

func (req *RiderRequest) touch() {
	req.UpdatedAt = time.Now().UTC()
}
