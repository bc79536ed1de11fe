package pricing

import (
	"sort"

	"ride-market/internal/domain/money"
	"ride-market/internal/domain/request"
)

// Delta is the signed difference between a passenger's previous and new
// share. Positive amounts are additional charges, negative amounts refunds.
type Delta struct {
	UserID        string
	PreviousShare money.Amount
	NewShare      money.Amount
	Amount        money.Amount // NewShare - PreviousShare
}

// Result carries the recomputed shares plus the deltas the payment
// collaborator must act on. Passengers whose share did not change produce
// no delta.
type Result struct {
	TotalCost money.Amount
	Shares    map[string]money.Amount // userID -> new share
	Deltas    []Delta
}

// Split recomputes every active passenger's share of the total trip cost.
//
// Each passenger is weighted by seats held; every weighted share is floored
// to the minor unit and the whole rounding remainder goes to the
// earliest-joined active passenger (ties broken by userID) so repeated runs
// over the same state are byte-identical. The sum of the returned shares
// always equals totalCost exactly.
//
// Passengers that left keep their last share at zero: their refund delta is
// produced the moment they leave, because Split only sees JOINED rows and
// the caller settles departed rows against zero.
func Split(totalCost money.Amount, passengers []*request.Passenger) map[string]money.Amount {
	shares := make(map[string]money.Amount, len(passengers))

	active := request.ActivePassengers(passengers)
	if len(active) == 0 || totalCost <= 0 {
		return shares
	}

	totalSeats := int64(request.ActiveSeats(passengers))

	ordered := make([]*request.Passenger, len(active))
	copy(ordered, active)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].JoinedAt.Equal(ordered[j].JoinedAt) {
			return ordered[i].JoinedAt.Before(ordered[j].JoinedAt)
		}
		return ordered[i].UserID < ordered[j].UserID
	})

	var allocated money.Amount
	for _, p := range ordered {
		share := money.WeightedFloor(totalCost, int64(p.SeatsHeld), totalSeats)
		shares[p.UserID] = share
		allocated += share
	}

	// remainder to the earliest joiner, keeping the sum exact
	if remainder := totalCost - allocated; remainder > 0 {
		shares[ordered[0].UserID] += remainder
	}

	return shares
}

// ZeroShares refunds every passenger still carrying a share. Used when a
// request is cancelled: membership stays as stored, but nobody owes anything.
func ZeroShares(passengers []*request.Passenger) Result {
	deltas := make([]Delta, 0, len(passengers))
	for _, p := range passengers {
		if p.CurrentShare == 0 {
			continue
		}
		deltas = append(deltas, Delta{
			UserID:        p.UserID,
			PreviousShare: p.CurrentShare,
			NewShare:      0,
			Amount:        -p.CurrentShare,
		})
		p.CurrentShare = 0
	}
	return Result{Shares: map[string]money.Amount{}, Deltas: deltas}
}

// Recompute applies Split to the aggregate and produces the delta list
// against the passengers' stored shares. It mutates CurrentShare on the
// passenger rows (JOINED rows get their new share, LEFT rows drop to zero)
// so the caller persists exactly what was computed.
func Recompute(req *request.RiderRequest, passengers []*request.Passenger, taxRate money.BasisPoints) Result {
	var total money.Amount
	if req.BasePrice != nil {
		total = money.ApplyRate(*req.BasePrice, taxRate)
	}

	shares := Split(total, passengers)

	deltas := make([]Delta, 0, len(passengers))
	for _, p := range passengers {
		newShare := shares[p.UserID] // zero for LEFT rows
		if newShare == p.CurrentShare {
			continue
		}
		deltas = append(deltas, Delta{
			UserID:        p.UserID,
			PreviousShare: p.CurrentShare,
			NewShare:      newShare,
			Amount:        newShare - p.CurrentShare,
		})
		p.CurrentShare = newShare
	}

	return Result{TotalCost: total, Shares: shares, Deltas: deltas}
}
