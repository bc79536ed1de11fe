package ports

import (
	"context"
	"time"
)

// ----- DTOs for Marketplace Service -----

// CreateRequestInput is the validated input required to publish a rider request.
type CreateRequestInput struct {
	OwnerID        string
	Origin         string
	Destination    string
	DepartureAt    time.Time
	SeatsRequested int
	MaxPassengers  int
}

// SubmitBidInput is the validated input for a driver's bid.
type SubmitBidInput struct {
	RequestID  string
	DriverID   string
	VehicleID  string
	PriceMinor int64 // offered price in minor currency units, before tax
	Message    string
}

// PassengerView is one passenger row as returned to callers.
type PassengerView struct {
	UserID            string     `json:"user_id"`
	SeatsHeld         int        `json:"seats_held"`
	Status            string     `json:"status"`
	CurrentShareMinor int64      `json:"current_share_minor"`
	JoinedAt          time.Time  `json:"joined_at"`
	LeftAt            *time.Time `json:"left_at,omitempty"`
}

// BidView is one driver bid as returned to callers, decorated with display
// data from the directory when available.
type BidView struct {
	BidID        string    `json:"bid_id"`
	DriverID     string    `json:"driver_id"`
	DriverName   string    `json:"driver_name,omitempty"`
	DriverRating float64   `json:"driver_rating,omitempty"`
	VehicleID    string    `json:"vehicle_id"`
	VehicleLabel string    `json:"vehicle_label,omitempty"`
	PriceMinor   int64     `json:"price_minor"`
	Message      string    `json:"message,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// RequestView is the full aggregate returned by every endpoint.
type RequestView struct {
	RequestID      string          `json:"request_id"`
	OwnerID        string          `json:"owner_id"`
	Origin         string          `json:"origin"`
	Destination    string          `json:"destination"`
	DepartureAt    time.Time       `json:"departure_at"`
	SeatsRequested int             `json:"seats_requested"`
	MaxPassengers  int             `json:"max_passengers"`
	BasePriceMinor *int64          `json:"base_price_minor,omitempty"`
	TotalCostMinor *int64          `json:"total_cost_minor,omitempty"`
	Status         string          `json:"status"`
	ChosenBidID    *string         `json:"chosen_bid_id,omitempty"`
	Passengers     []PassengerView `json:"passengers"`
	Bids           []BidView       `json:"bids"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// PaymentDelta is one charge or refund owed after a recomputation. Positive
// amounts are charges, negative amounts refunds. ReferenceID is stable for
// the lifetime of the delta so gateway retries stay idempotent.
type PaymentDelta struct {
	UserID        string `json:"user_id"`
	PreviousMinor int64  `json:"previous_share_minor"`
	NewMinor      int64  `json:"new_share_minor"`
	AmountMinor   int64  `json:"amount_minor"`
	ReferenceID   string `json:"reference_id"`
}

// OperationResult is returned by every mutating marketplace operation.
type OperationResult struct {
	Request       *RequestView   `json:"request"`
	PaymentDeltas []PaymentDelta `json:"payment_deltas"`
}

// ----- Marketplace Service Interface -----

// MarketplaceService is the public API of the rider-request marketplace.
// Every mutating call is linearized per request id: the admission check,
// the store mutation and the share recomputation commit as one unit.
type MarketplaceService interface {
	CreateRequest(ctx context.Context, in CreateRequestInput) (*OperationResult, error)
	SubmitBid(ctx context.Context, in SubmitBidInput) (*OperationResult, error)
	AcceptBid(ctx context.Context, requestID, callerID, bidID string) (*OperationResult, error)
	JoinRequest(ctx context.Context, requestID, userID string, seatsWanted int) (*OperationResult, error)
	LeaveRequest(ctx context.Context, requestID, userID string) (*OperationResult, error)
	CancelRequest(ctx context.Context, requestID, callerID string, asAdmin bool) (*OperationResult, error)
	CompleteRequest(ctx context.Context, requestID string) (*OperationResult, error)

	GetRequest(ctx context.Context, requestID string) (*RequestView, error)
	ListOpenRequests(ctx context.Context, limit int) ([]*RequestView, error)
}
