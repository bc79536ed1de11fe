package request

import (
	"errors"
	"strings"
	"time"

	"ride-market/internal/domain/money"
)

// BidStatus is a driver-bid status as stored in the `bid_status` table.
type BidStatus string

const (
	BidPending  BidStatus = "PENDING"
	BidAccepted BidStatus = "ACCEPTED"
	BidRejected BidStatus = "REJECTED"
)

var ErrInvalidBidStatus = errors.New("invalid bid status")

// ParseBidStatus normalizes (uppercases+trims) and validates a bid status string.
func ParseBidStatus(in string) (BidStatus, error) {
	status := BidStatus(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidBidStatus
}

// Valid reports whether status is one of the allowed bid status constants.
func (status BidStatus) Valid() bool {
	switch status {
	case BidPending, BidAccepted, BidRejected:
		return true
	default:
		return false
	}
}

// String returns the string representation of the BidStatus.
func (status BidStatus) String() string {
	return string(status)
}

// Terminal indicates if the bid can no longer change state.
func (status BidStatus) Terminal() bool {
	return status == BidAccepted || status == BidRejected
}

// DriverBid is a driver's offer (with a specific vehicle) to serve a
// rider request. At most one bid per request ever becomes ACCEPTED; the
// accept operation rejects every sibling PENDING bid in the same unit.
type DriverBid struct {
	ID        string
	RequestID string
	DriverID  string
	VehicleID string
	Price     money.Amount // offered trip price before tax
	Message   string
	Status    BidStatus
	CreatedAt time.Time
}

var (
	ErrDriverRequired  = errors.New("driver id is required")
	ErrVehicleRequired = errors.New("vehicle id is required")
	ErrBidPriceInvalid = errors.New("bid price must be positive")
)

// NewBid constructs a PENDING bid for a request.
func NewBid(requestID, driverID, vehicleID string, price money.Amount, message string) (*DriverBid, error) {
	if requestID = strings.TrimSpace(requestID); requestID == "" {
		return nil, ErrRequestIDRequired
	}
	if driverID = strings.TrimSpace(driverID); driverID == "" {
		return nil, ErrDriverRequired
	}
	if vehicleID = strings.TrimSpace(vehicleID); vehicleID == "" {
		return nil, ErrVehicleRequired
	}
	if price <= 0 {
		return nil, ErrBidPriceInvalid
	}

	return &DriverBid{
		RequestID: requestID,
		DriverID:  driverID,
		VehicleID: vehicleID,
		Price:     price,
		Message:   strings.TrimSpace(message),
		Status:    BidPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Accept moves PENDING -> ACCEPTED.
func (bid *DriverBid) Accept() error {
	if bid.Status != BidPending {
		return ErrInvalidTransition
	}
	bid.Status = BidAccepted
	return nil
}

// Reject moves PENDING -> REJECTED.
func (bid *DriverBid) Reject() error {
	if bid.Status != BidPending {
		return ErrInvalidTransition
	}
	bid.Status = BidRejected
	return nil
}
