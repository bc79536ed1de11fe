package request

import "errors"

// Precondition failures surfaced verbatim to callers. Every mutating
// operation checks these before touching state, so a rejected call never
// leaves a partial update behind.
var (
	ErrInvalidCapacity    = errors.New("max passengers must be >= seats requested and seats requested >= 1")
	ErrRequestNotOpen     = errors.New("request is not open for bids")
	ErrDuplicateBid       = errors.New("driver already has an active bid on this request")
	ErrNotOwner           = errors.New("caller is not the request owner")
	ErrBidNotFound        = errors.New("bid not found")
	ErrAlreadyMatched     = errors.New("request already has an accepted bid")
	ErrRequestNotJoinable = errors.New("request is not joinable")
	ErrAlreadyJoined      = errors.New("user already joined this request")
	ErrCapacityExceeded   = errors.New("request seat capacity exceeded")
	ErrNotAPassenger      = errors.New("user is not a passenger on this request")
	ErrOwnerCannotLeave   = errors.New("owner cannot leave own request")
	ErrInvalidTransition  = errors.New("invalid state transition")
)

// Admission is the pure decision layer: given a request snapshot and its
// passenger/bid rows it either allows a proposed operation or returns the
// typed reason it is illegal. It holds no state besides policy knobs and
// performs no I/O, so the store can re-evaluate it inside the same
// serialized unit as the mutation.
type Admission struct {
	// AllowLateBids permits bid submission after the request is MATCHED.
	// Late bids can never be accepted; they exist so drivers can signal
	// availability in case the chosen driver withdraws.
	AllowLateBids bool
}

// CheckSubmitBid validates a new bid by driverID.
func (a Admission) CheckSubmitBid(req *RiderRequest, bids []*DriverBid, driverID string) error {
	switch req.Status {
	case StatusOpen:
		// always biddable
	case StatusMatched:
		if !a.AllowLateBids {
			return ErrRequestNotOpen
		}
	default:
		return ErrRequestNotOpen
	}
	for _, b := range bids {
		if b.DriverID == driverID && b.Status != BidRejected {
			return ErrDuplicateBid
		}
	}
	return nil
}

// CheckAcceptBid validates the owner accepting bidID.
func (a Admission) CheckAcceptBid(req *RiderRequest, bids []*DriverBid, callerID, bidID string) error {
	if callerID != req.OwnerID {
		return ErrNotOwner
	}
	if req.ChosenBidID != nil {
		return ErrAlreadyMatched
	}
	bid := FindBid(bids, bidID)
	if bid == nil {
		return ErrBidNotFound
	}
	if bid.Status != BidPending {
		return ErrInvalidTransition
	}
	if !req.Status.CanTransitionTo(StatusMatched) {
		return ErrInvalidTransition
	}
	return nil
}

// CheckJoin validates userID joining with seatsWanted seats. The capacity
// check counts every JOINED row including the owner's.
func (a Admission) CheckJoin(req *RiderRequest, passengers []*Passenger, userID string, seatsWanted int) error {
	if !req.Status.Joinable() {
		return ErrRequestNotJoinable
	}
	if seatsWanted < 1 {
		return ErrInvalidSeats
	}
	for _, p := range passengers {
		if p.UserID == userID && p.Active() {
			return ErrAlreadyJoined
		}
	}
	if ActiveSeats(passengers)+seatsWanted > req.MaxPassengers {
		return ErrCapacityExceeded
	}
	return nil
}

// CheckLeave validates userID leaving the request.
func (a Admission) CheckLeave(req *RiderRequest, passengers []*Passenger, userID string) error {
	if userID == req.OwnerID {
		return ErrOwnerCannotLeave
	}
	if !req.Status.Joinable() {
		return ErrRequestNotJoinable
	}
	for _, p := range passengers {
		if p.UserID == userID && p.Active() {
			return nil
		}
	}
	return ErrNotAPassenger
}

// CheckCancel validates a cancellation by callerID (owner only; the service
// layer may bypass for admin callers).
func (a Admission) CheckCancel(req *RiderRequest, callerID string) error {
	if callerID != req.OwnerID {
		return ErrNotOwner
	}
	if req.Status == StatusCancelled {
		return nil // idempotent
	}
	if !req.Status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidTransition
	}
	return nil
}

// CheckComplete validates the terminal completion transition.
func (a Admission) CheckComplete(req *RiderRequest) error {
	if req.Status == StatusCompleted {
		return nil // idempotent
	}
	if !req.Status.CanTransitionTo(StatusCompleted) {
		return ErrInvalidTransition
	}
	return nil
}

// ActiveSeats sums seatsHeld over JOINED passengers.
func ActiveSeats(passengers []*Passenger) int {
	total := 0
	for _, p := range passengers {
		if p.Active() {
			total += p.SeatsHeld
		}
	}
	return total
}

// ActivePassengers filters the JOINED rows, preserving order.
func ActivePassengers(passengers []*Passenger) []*Passenger {
	out := make([]*Passenger, 0, len(passengers))
	for _, p := range passengers {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out
}

// FindBid returns the bid with the given id, or nil.
func FindBid(bids []*DriverBid, bidID string) *DriverBid {
	for _, b := range bids {
		if b.ID == bidID {
			return b
		}
	}
	return nil
}

// FindPassenger returns the row for userID, active or not, or nil.
func FindPassenger(passengers []*Passenger, userID string) *Passenger {
	for _, p := range passengers {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}
