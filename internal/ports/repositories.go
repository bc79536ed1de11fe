package ports

import (
	"context"
	"time"

	"ride-market/internal/domain/directory"
	"ride-market/internal/domain/money"
	"ride-market/internal/domain/request"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RequestRepository defines the methods for managing rider-request rows.
// Mutating methods must be called within a UnitOfWork; GetForUpdate takes
// the row lock that serializes all work on one request.
type RequestRepository interface {
	Create(ctx context.Context, req *request.RiderRequest) error
	GetByID(ctx context.Context, id string) (*request.RiderRequest, error)
	// GetForUpdate loads the request and locks its row until the
	// surrounding transaction ends. Operations on different requests do
	// not contend.
	GetForUpdate(ctx context.Context, id string) (*request.RiderRequest, error)
	ListByStatus(ctx context.Context, status request.Status, limit int) ([]*request.RiderRequest, error)
	// SaveMatch persists status, chosen bid and base price after a
	// successful accept.
	SaveMatch(ctx context.Context, req *request.RiderRequest) error
	UpdateStatus(ctx context.Context, id string, status request.Status, ts time.Time) error
}

// PassengerRepository defines the methods for managing passenger rows.
type PassengerRepository interface {
	Add(ctx context.Context, p *request.Passenger) error
	ListByRequest(ctx context.Context, requestID string) ([]*request.Passenger, error)
	// Save persists membership fields (status, seats, joined/left times).
	Save(ctx context.Context, p *request.Passenger) error
	UpdateShare(ctx context.Context, requestID, userID string, share money.Amount) error
}

// BidRepository defines the methods for managing driver bids.
type BidRepository interface {
	Add(ctx context.Context, b *request.DriverBid) error
	ListByRequest(ctx context.Context, requestID string) ([]*request.DriverBid, error)
	UpdateStatus(ctx context.Context, bidID string, status request.BidStatus) error
}

// EventRepository defines the methods for appending request event data.
type EventRepository interface {
	Append(ctx context.Context, e *request.Event) error
}

// DirectoryRepository resolves driver/vehicle display data for views and
// notifications. Missing records resolve to (nil, nil); nothing in the
// marketplace core depends on them.
type DirectoryRepository interface {
	Vehicle(ctx context.Context, id string) (*directory.Vehicle, error)
	Driver(ctx context.Context, id string) (*directory.DriverProfile, error)
}
