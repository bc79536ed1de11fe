package pricing

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"ride-market/internal/domain/money"
	"ride-market/internal/domain/request"
)

func passengerAt(userID string, seats int, joinedAt time.Time) *request.Passenger {
	return &request.Passenger{
		RequestID: "req-1",
		UserID:    userID,
		SeatsHeld: seats,
		Status:    request.PassengerJoined,
		JoinedAt:  joinedAt,
	}
}

func matchedRequest(basePrice money.Amount, maxPassengers int) *request.RiderRequest {
	bp := basePrice
	bid := "bid-1"
	return &request.RiderRequest{
		ID:            "req-1",
		OwnerID:       "owner",
		MaxPassengers: maxPassengers,
		BasePrice:     &bp,
		Status:        request.StatusMatched,
		ChosenBidID:   &bid,
	}
}

// A second rider joining a 100-unit trip halves the owner's share: the owner
// is refunded 50 and the joiner is charged 50.
func TestRecomputeSecondJoinerHalvesShares(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	req := matchedRequest(100, 2)

	owner := passengerAt("owner", 1, base)
	owner.CurrentShare = 100
	joiner := passengerAt("rider-2", 1, base.Add(time.Minute))

	res := Recompute(req, []*request.Passenger{owner, joiner}, 0)

	if res.TotalCost != 100 {
		t.Fatalf("total cost = %d, want 100", res.TotalCost)
	}
	if owner.CurrentShare != 50 || joiner.CurrentShare != 50 {
		t.Fatalf("shares = %d/%d, want 50/50", owner.CurrentShare, joiner.CurrentShare)
	}
	if len(res.Deltas) != 2 {
		t.Fatalf("got %d deltas, want 2", len(res.Deltas))
	}
	for _, d := range res.Deltas {
		switch d.UserID {
		case "owner":
			if d.Amount != -50 {
				t.Errorf("owner delta = %d, want -50", d.Amount)
			}
		case "rider-2":
			if d.Amount != 50 {
				t.Errorf("joiner delta = %d, want +50", d.Amount)
			}
		default:
			t.Errorf("unexpected delta for %s", d.UserID)
		}
	}
}

func TestSplitRemainderGoesToEarliestJoiner(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	passengers := []*request.Passenger{
		passengerAt("owner", 1, base),
		passengerAt("rider-2", 1, base.Add(time.Minute)),
		passengerAt("rider-3", 1, base.Add(2*time.Minute)),
	}

	shares := Split(100, passengers)

	if shares["owner"] != 34 {
		t.Errorf("earliest joiner share = %d, want 34 (33 + remainder)", shares["owner"])
	}
	if shares["rider-2"] != 33 || shares["rider-3"] != 33 {
		t.Errorf("later shares = %d/%d, want 33/33", shares["rider-2"], shares["rider-3"])
	}
}

func TestSplitRemainderTieBreaksOnUserID(t *testing.T) {
	same := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	passengers := []*request.Passenger{
		passengerAt("bbb", 1, same),
		passengerAt("aaa", 1, same),
		passengerAt("ccc", 1, same),
	}

	shares := Split(100, passengers)

	if shares["aaa"] != 34 {
		t.Errorf("lowest userID share = %d, want 34", shares["aaa"])
	}
}

func TestSplitWeightsBySeats(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	passengers := []*request.Passenger{
		passengerAt("owner", 2, base),
		passengerAt("rider-2", 1, base.Add(time.Minute)),
	}

	shares := Split(90, passengers)

	if shares["owner"] != 60 || shares["rider-2"] != 30 {
		t.Fatalf("shares = %d/%d, want 60/30", shares["owner"], shares["rider-2"])
	}
}

func TestSplitIgnoresLeftPassengers(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	left := passengerAt("gone", 1, base)
	if err := left.Leave(); err != nil {
		t.Fatal(err)
	}
	passengers := []*request.Passenger{
		passengerAt("owner", 1, base),
		left,
	}

	shares := Split(100, passengers)

	if shares["owner"] != 100 {
		t.Errorf("owner share = %d, want 100", shares["owner"])
	}
	if _, ok := shares["gone"]; ok {
		t.Error("LEFT passenger must not receive a share")
	}
}

// Sole passenger leaving: shares empty, leaver refunded via Recompute against
// stored shares.
func TestRecomputeAfterLastPassengerLeaves(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	req := matchedRequest(100, 2)

	leaver := passengerAt("rider-2", 1, base)
	leaver.CurrentShare = 100
	if err := leaver.Leave(); err != nil {
		t.Fatal(err)
	}

	res := Recompute(req, []*request.Passenger{leaver}, 0)

	if len(res.Shares) != 0 {
		t.Fatalf("shares map has %d entries, want 0", len(res.Shares))
	}
	if len(res.Deltas) != 1 || res.Deltas[0].Amount != -100 {
		t.Fatalf("deltas = %+v, want one -100 refund", res.Deltas)
	}
	if leaver.CurrentShare != 0 {
		t.Fatalf("leaver share = %d, want 0", leaver.CurrentShare)
	}
}

func TestZeroShares(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := passengerAt("owner", 1, base)
	a.CurrentShare = 60
	b := passengerAt("rider-2", 1, base.Add(time.Minute))
	b.CurrentShare = 40
	c := passengerAt("rider-3", 1, base.Add(2*time.Minute)) // never charged

	res := ZeroShares([]*request.Passenger{a, b, c})

	if len(res.Deltas) != 2 {
		t.Fatalf("got %d deltas, want 2", len(res.Deltas))
	}
	var refunded money.Amount
	for _, d := range res.Deltas {
		if d.NewShare != 0 {
			t.Errorf("delta for %s has new share %d, want 0", d.UserID, d.NewShare)
		}
		refunded += d.Amount
	}
	if refunded != -100 {
		t.Fatalf("total refunded = %d, want -100", refunded)
	}
	if a.CurrentShare != 0 || b.CurrentShare != 0 {
		t.Fatal("shares must be zeroed on the rows")
	}
}

// Shares always sum to the total cost exactly, whatever the membership.
func TestSplitConservesTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := money.Amount(rapid.Int64Range(1, 10_000_00).Draw(t, "total"))
		n := rapid.IntRange(1, 8).Draw(t, "passengers")

		base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		passengers := make([]*request.Passenger, n)
		for i := range passengers {
			userID := rapid.StringMatching(`[a-z]{4}-[0-9]{2}`).Draw(t, "user")
			seats := rapid.IntRange(1, 4).Draw(t, "seats")
			offset := rapid.IntRange(0, 3600).Draw(t, "offset")
			passengers[i] = passengerAt(userID, seats, base.Add(time.Duration(offset)*time.Second))
		}

		shares := Split(total, passengers)

		var sum money.Amount
		for _, s := range shares {
			sum += s
		}
		// duplicate userIDs collapse into one map entry; only check exact
		// conservation when all ids are distinct
		ids := map[string]bool{}
		for _, p := range passengers {
			ids[p.UserID] = true
		}
		if len(ids) == len(passengers) && sum != total {
			t.Fatalf("shares sum to %d, want %d", sum, total)
		}
	})
}

// Recompute deltas always balance against the change in total allocation.
func TestRecomputeDeltasBalance(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		req := matchedRequest(money.Amount(rapid.Int64Range(1, 100_000).Draw(t, "base")), 8)
		taxRate := money.BasisPoints(rapid.Int64Range(0, 2000).Draw(t, "tax"))

		n := rapid.IntRange(1, 6).Draw(t, "passengers")
		passengers := make([]*request.Passenger, n)
		for i := range passengers {
			p := passengerAt(string(rune('a'+i)), rapid.IntRange(1, 3).Draw(t, "seats"), base.Add(time.Duration(i)*time.Minute))
			p.CurrentShare = money.Amount(rapid.Int64Range(0, 50_000).Draw(t, "prior"))
			passengers[i] = p
		}

		var before money.Amount
		for _, p := range passengers {
			before += p.CurrentShare
		}

		res := Recompute(req, passengers, taxRate)

		var after money.Amount
		for _, p := range passengers {
			after += p.CurrentShare
		}
		if after != res.TotalCost {
			t.Fatalf("post-recompute shares sum to %d, want total %d", after, res.TotalCost)
		}

		var deltaSum money.Amount
		for _, d := range res.Deltas {
			deltaSum += d.Amount
			if d.Amount != d.NewShare-d.PreviousShare {
				t.Fatalf("delta %+v is not new-previous", d)
			}
		}
		if deltaSum != after-before {
			t.Fatalf("delta sum %d does not equal share movement %d", deltaSum, after-before)
		}
	})
}
