package request

import (
	"errors"
	"strings"
	"time"

	"ride-market/internal/domain/money"
)

// PassengerStatus is a passenger status as stored in the `passenger_status` table.
type PassengerStatus string

const (
	PassengerJoined PassengerStatus = "JOINED"
	PassengerLeft   PassengerStatus = "LEFT"
)

var ErrInvalidPassengerStatus = errors.New("invalid passenger status")

// ParsePassengerStatus normalizes and validates a passenger status string.
func ParsePassengerStatus(in string) (PassengerStatus, error) {
	status := PassengerStatus(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidPassengerStatus
}

// Valid reports whether status is one of the allowed passenger status constants.
func (status PassengerStatus) Valid() bool {
	switch status {
	case PassengerJoined, PassengerLeft:
		return true
	default:
		return false
	}
}

// String returns the string representation of the PassengerStatus.
func (status PassengerStatus) String() string {
	return string(status)
}

// Passenger is one user's seat holding on a rider request. The owner always
// holds exactly one Passenger row that never transitions to LEFT.
type Passenger struct {
	RequestID    string
	UserID       string
	SeatsHeld    int
	Status       PassengerStatus
	CurrentShare money.Amount // recomputed by the splitter, never set directly
	JoinedAt     time.Time
	LeftAt       *time.Time
}

var (
	ErrUserRequired = errors.New("user id is required")
	ErrInvalidSeats = errors.New("seats held must be >= 1")
)

// NewPassenger constructs a JOINED passenger row.
func NewPassenger(requestID, userID string, seats int) (*Passenger, error) {
	if requestID = strings.TrimSpace(requestID); requestID == "" {
		return nil, ErrRequestIDRequired
	}
	if userID = strings.TrimSpace(userID); userID == "" {
		return nil, ErrUserRequired
	}
	if seats < 1 {
		return nil, ErrInvalidSeats
	}

	return &Passenger{
		RequestID: requestID,
		UserID:    userID,
		SeatsHeld: seats,
		Status:    PassengerJoined,
		JoinedAt:  time.Now().UTC(),
	}, nil
}

// Active reports whether the passenger currently holds seats.
func (p *Passenger) Active() bool {
	return p.Status == PassengerJoined
}

// Leave moves JOINED -> LEFT and freezes the row.
func (p *Passenger) Leave() error {
	if p.Status != PassengerJoined {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	p.Status = PassengerLeft
	p.LeftAt = &now
	return nil
}

// Rejoin reactivates a LEFT row with a fresh join time. A rejoined
// passenger counts as the newest joiner for remainder allocation.
func (p *Passenger) Rejoin(seats int) error {
	if p.Status != PassengerLeft {
		return ErrInvalidTransition
	}
	if seats < 1 {
		return ErrInvalidSeats
	}
	p.Status = PassengerJoined
	p.SeatsHeld = seats
	p.JoinedAt = time.Now().UTC()
	p.LeftAt = nil
	return nil
}
