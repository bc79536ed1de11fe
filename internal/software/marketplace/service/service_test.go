package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ride-market/internal/domain/directory"
	"ride-market/internal/domain/money"
	"ride-market/internal/domain/request"
	"ride-market/internal/general/contracts"
	"ride-market/internal/general/logger"
	"ride-market/internal/general/memstore"
	"ride-market/internal/ports"
	"ride-market/internal/software/marketplace/service"
)

// fakeGateway records charges and refunds and can be told to fail.
type fakeGateway struct {
	mu      sync.Mutex
	charges []gatewayCall
	refunds []gatewayCall
	fail    bool
}

type gatewayCall struct {
	UserID      string
	Amount      money.Amount
	ReferenceID string
}

func (g *fakeGateway) Charge(ctx context.Context, userID string, amount money.Amount, referenceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return errors.New("gateway down")
	}
	g.charges = append(g.charges, gatewayCall{userID, amount, referenceID})
	return nil
}

func (g *fakeGateway) Refund(ctx context.Context, userID string, amount money.Amount, referenceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return errors.New("gateway down")
	}
	g.refunds = append(g.refunds, gatewayCall{userID, amount, referenceID})
	return nil
}

// fakePublisher records every message by routing key.
type fakePublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{messages: make(map[string][][]byte)}
}

func (p *fakePublisher) Publish(exchange, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[routingKey] = append(p.messages[routingKey], append([]byte(nil), body...))
	return nil
}

func (p *fakePublisher) byKey(routingKey string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.messages[routingKey]...)
}

type fixture struct {
	store   *memstore.Store
	gateway *fakeGateway
	pub     *fakePublisher
	svc     ports.MarketplaceService
}

func newFixture(t *testing.T, adm request.Admission, taxBps int64) *fixture {
	t.Helper()

	store := memstore.New()
	gw := &fakeGateway{}
	pub := newFakePublisher()

	svc := service.NewMarketplaceService(
		logger.New("marketplace-test"),
		store,
		store,
		store,
		store.Bids(),
		store,
		store,
		gw,
		service.FixedTaxRate(taxBps),
		pub,
		nil,
		nil,
		adm,
	)

	return &fixture{store: store, gateway: gw, pub: pub, svc: svc}
}

func (f *fixture) createRequest(t *testing.T, seats, maxPassengers int) string {
	t.Helper()
	res, err := f.svc.CreateRequest(context.Background(), ports.CreateRequestInput{
		OwnerID:        "owner",
		Origin:         "Old Town",
		Destination:    "Airport",
		DepartureAt:    time.Now().UTC().Add(2 * time.Hour),
		SeatsRequested: seats,
		MaxPassengers:  maxPassengers,
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return res.Request.RequestID
}

func (f *fixture) submitBid(t *testing.T, requestID, driverID string, price int64) string {
	t.Helper()
	res, err := f.svc.SubmitBid(context.Background(), ports.SubmitBidInput{
		RequestID:  requestID,
		DriverID:   driverID,
		VehicleID:  "veh-" + driverID,
		PriceMinor: price,
	})
	if err != nil {
		t.Fatalf("submit bid: %v", err)
	}
	for _, b := range res.Request.Bids {
		if b.DriverID == driverID && b.Status == "PENDING" {
			return b.BidID
		}
	}
	t.Fatal("submitted bid not present in view")
	return ""
}

func shareOf(t *testing.T, view *ports.RequestView, userID string) int64 {
	t.Helper()
	for _, p := range view.Passengers {
		if p.UserID == userID {
			return p.CurrentShareMinor
		}
	}
	t.Fatalf("passenger %s not in view", userID)
	return 0
}

func TestAcceptThenJoinResplitsShares(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, request.Admission{}, 0)

	reqID := f.createRequest(t, 1, 2)
	bidID := f.submitBid(t, reqID, "driver-1", 100)

	accepted, err := f.svc.AcceptBid(ctx, reqID, "owner", bidID)
	if err != nil {
		t.Fatalf("accept bid: %v", err)
	}
	if accepted.Request.Status != "MATCHED" {
		t.Fatalf("status = %s, want MATCHED", accepted.Request.Status)
	}
	if got := shareOf(t, accepted.Request, "owner"); got != 100 {
		t.Fatalf("owner share after accept = %d, want 100", got)
	}
	if len(accepted.PaymentDeltas) != 1 || accepted.PaymentDeltas[0].AmountMinor != 100 {
		t.Fatalf("accept deltas = %+v, want one +100 charge", accepted.PaymentDeltas)
	}

	joined, err := f.svc.JoinRequest(ctx, reqID, "rider-2", 1)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if got := shareOf(t, joined.Request, "owner"); got != 50 {
		t.Fatalf("owner share after join = %d, want 50", got)
	}
	if got := shareOf(t, joined.Request, "rider-2"); got != 50 {
		t.Fatalf("joiner share = %d, want 50", got)
	}

	var ownerDelta, joinerDelta int64
	for _, d := range joined.PaymentDeltas {
		switch d.UserID {
		case "owner":
			ownerDelta = d.AmountMinor
		case "rider-2":
			joinerDelta = d.AmountMinor
		}
	}
	if ownerDelta != -50 || joinerDelta != 50 {
		t.Fatalf("join deltas owner=%d joiner=%d, want -50/+50", ownerDelta, joinerDelta)
	}

	// gateway saw the refund and the charge
	f.gateway.mu.Lock()
	defer f.gateway.mu.Unlock()
	if len(f.gateway.refunds) != 1 || f.gateway.refunds[0].UserID != "owner" || f.gateway.refunds[0].Amount != 50 {
		t.Fatalf("gateway refunds = %+v, want one 50 refund to owner", f.gateway.refunds)
	}
}

func TestJoinBeyondCapacityFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, request.Admission{}, 0)

	// owner travels with a companion on the same row, filling both seats
	reqID := f.createRequest(t, 2, 2)

	if _, err := f.svc.JoinRequest(ctx, reqID, "rider-3", 1); !errors.Is(err, request.ErrCapacityExceeded) {
		t.Fatalf("got %v, want ErrCapacityExceeded", err)
	}
}

func TestAcceptRejectsSiblingBids(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, request.Admission{}, 0)

	reqID := f.createRequest(t, 1, 3)
	bid1 := f.submitBid(t, reqID, "driver-1", 90)
	bid2 := f.submitBid(t, reqID, "driver-2", 100)
	bid3 := f.submitBid(t, reqID, "driver-3", 110)

	res, err := f.svc.AcceptBid(ctx, reqID, "owner", bid2)
	if err != nil {
		t.Fatalf("accept bid: %v", err)
	}

	statuses := map[string]string{}
	for _, b := range res.Request.Bids {
		statuses[b.BidID] = b.Status
	}
	if statuses[bid2] != "ACCEPTED" {
		t.Errorf("winner status = %s, want ACCEPTED", statuses[bid2])
	}
	if statuses[bid1] != "REJECTED" || statuses[bid3] != "REJECTED" {
		t.Errorf("sibling statuses = %s/%s, want REJECTED/REJECTED", statuses[bid1], statuses[bid3])
	}
	if res.Request.ChosenBidID == nil || *res.Request.ChosenBidID != bid2 {
		t.Error("chosen bid id not recorded")
	}

	// late bids rejected under the default policy
	_, err = f.svc.SubmitBid(ctx, ports.SubmitBidInput{
		RequestID: reqID, DriverID: "driver-4", VehicleID: "veh-4", PriceMinor: 80,
	})
	if !errors.Is(err, request.ErrRequestNotOpen) {
		t.Fatalf("late bid: got %v, want ErrRequestNotOpen", err)
	}

	// a second acceptance can never succeed
	if _, err := f.svc.AcceptBid(ctx, reqID, "owner", bid1); !errors.Is(err, request.ErrAlreadyMatched) {
		t.Fatalf("second accept: got %v, want ErrAlreadyMatched", err)
	}
}

func TestLateBidsAllowedByPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, request.Admission{AllowLateBids: true}, 0)

	reqID := f.createRequest(t, 1, 2)
	bidID := f.submitBid(t, reqID, "driver-1", 100)
	if _, err := f.svc.AcceptBid(ctx, reqID, "owner", bidID); err != nil {
		t.Fatalf("accept bid: %v", err)
	}

	res, err := f.svc.SubmitBid(ctx, ports.SubmitBidInput{
		RequestID: reqID, DriverID: "driver-2", VehicleID: "veh-2", PriceMinor: 95,
	})
	if err != nil {
		t.Fatalf("late bid should be accepted by policy: %v", err)
	}
	// the late bid sits pending and is never acceptable
	for _, b := range res.Request.Bids {
		if b.DriverID == "driver-2" && b.Status != "PENDING" {
			t.Fatalf("late bid status = %s, want PENDING", b.Status)
		}
	}
	if _, err := f.svc.AcceptBid(ctx, reqID, "owner", res.Request.Bids[len(res.Request.Bids)-1].BidID); !errors.Is(err, request.ErrAlreadyMatched) {
		t.Fatalf("accepting a late bid: got %v, want ErrAlreadyMatched", err)
	}
}

func TestLeaveRefundsAndKeepsRequestAlive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, request.Admission{}, 0)

	reqID := f.createRequest(t, 1, 3)
	bidID := f.submitBid(t, reqID, "driver-1", 90)
	if _, err := f.svc.AcceptBid(ctx, reqID, "owner", bidID); err != nil {
		t.Fatalf("accept bid: %v", err)
	}
	if _, err := f.svc.JoinRequest(ctx, reqID, "rider-2", 1); err != nil {
		t.Fatalf("join: %v", err)
	}

	left, err := f.svc.LeaveRequest(ctx, reqID, "rider-2")
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if left.Request.Status != "MATCHED" {
		t.Fatalf("status after leave = %s, want MATCHED", left.Request.Status)
	}
	if got := shareOf(t, left.Request, "owner"); got != 90 {
		t.Fatalf("owner share after leave = %d, want 90", got)
	}
	if got := shareOf(t, left.Request, "rider-2"); got != 0 {
		t.Fatalf("leaver share = %d, want 0", got)
	}

	// the leaver can come back and the split recomputes from scratch
	rejoined, err := f.svc.JoinRequest(ctx, reqID, "rider-2", 1)
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if got := shareOf(t, rejoined.Request, "rider-2"); got != 45 {
		t.Fatalf("rejoined share = %d, want 45", got)
	}
}

func TestOwnerCannotLeave(t *testing.T) {
	f := newFixture(t, request.Admission{}, 0)
	reqID := f.createRequest(t, 1, 2)

	if _, err := f.svc.LeaveRequest(context.Background(), reqID, "owner"); !errors.Is(err, request.ErrOwnerCannotLeave) {
		t.Fatalf("got %v, want ErrOwnerCannotLeave", err)
	}
}

func TestCancelRefundsEveryShare(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, request.Admission{}, 0)

	reqID := f.createRequest(t, 1, 3)
	bidID := f.submitBid(t, reqID, "driver-1", 100)
	if _, err := f.svc.AcceptBid(ctx, reqID, "owner", bidID); err != nil {
		t.Fatalf("accept bid: %v", err)
	}
	if _, err := f.svc.JoinRequest(ctx, reqID, "rider-2", 1); err != nil {
		t.Fatalf("join: %v", err)
	}

	cancelled, err := f.svc.CancelRequest(ctx, reqID, "owner", false)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Request.Status != "CANCELLED" {
		t.Fatalf("status = %s, want CANCELLED", cancelled.Request.Status)
	}

	var refunded int64
	for _, d := range cancelled.PaymentDeltas {
		if d.AmountMinor >= 0 {
			t.Fatalf("cancel produced a charge: %+v", d)
		}
		refunded += -d.AmountMinor
	}
	if refunded != 100 {
		t.Fatalf("total refunded = %d, want 100", refunded)
	}

	// cancelling again is a no-op
	again, err := f.svc.CancelRequest(ctx, reqID, "owner", false)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if len(again.PaymentDeltas) != 0 {
		t.Fatalf("second cancel produced deltas: %+v", again.PaymentDeltas)
	}
}

func TestCompleteRequiresMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, request.Admission{}, 0)

	reqID := f.createRequest(t, 1, 2)
	if _, err := f.svc.CompleteRequest(ctx, reqID); !errors.Is(err, request.ErrInvalidTransition) {
		t.Fatalf("completing an open request: got %v, want ErrInvalidTransition", err)
	}

	bidID := f.submitBid(t, reqID, "driver-1", 100)
	if _, err := f.svc.AcceptBid(ctx, reqID, "owner", bidID); err != nil {
		t.Fatalf("accept bid: %v", err)
	}

	done, err := f.svc.CompleteRequest(ctx, reqID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Request.Status != "COMPLETED" {
		t.Fatalf("status = %s, want COMPLETED", done.Request.Status)
	}

	// completing twice is a no-op, membership is frozen afterwards
	if _, err := f.svc.CompleteRequest(ctx, reqID); err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if _, err := f.svc.JoinRequest(ctx, reqID, "rider-9", 1); !errors.Is(err, request.ErrRequestNotJoinable) {
		t.Fatalf("join after complete: got %v, want ErrRequestNotJoinable", err)
	}
}

func TestTaxAppliedToTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, request.Admission{}, 1000) // 10%

	reqID := f.createRequest(t, 1, 2)
	bidID := f.submitBid(t, reqID, "driver-1", 100)

	res, err := f.svc.AcceptBid(ctx, reqID, "owner", bidID)
	if err != nil {
		t.Fatalf("accept bid: %v", err)
	}
	if res.Request.TotalCostMinor == nil || *res.Request.TotalCostMinor != 110 {
		t.Fatalf("total cost = %v, want 110", res.Request.TotalCostMinor)
	}
	if got := shareOf(t, res.Request, "owner"); got != 110 {
		t.Fatalf("owner share = %d, want 110", got)
	}
}

func TestGatewayFailureQueuesReconcile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, request.Admission{}, 0)

	reqID := f.createRequest(t, 1, 2)
	bidID := f.submitBid(t, reqID, "driver-1", 100)

	f.gateway.mu.Lock()
	f.gateway.fail = true
	f.gateway.mu.Unlock()

	res, err := f.svc.AcceptBid(ctx, reqID, "owner", bidID)
	if err != nil {
		t.Fatalf("accept must commit despite gateway failure: %v", err)
	}
	if res.Request.Status != "MATCHED" {
		t.Fatalf("status = %s, want MATCHED", res.Request.Status)
	}

	queued := f.pub.byKey(contracts.RoutePaymentReconcile)
	if len(queued) != 1 {
		t.Fatalf("got %d reconcile instructions, want 1", len(queued))
	}
	var in contracts.PaymentInstruction
	if err := json.Unmarshal(queued[0], &in); err != nil {
		t.Fatalf("unmarshal instruction: %v", err)
	}
	if in.Kind != contracts.PaymentKindCharge || in.AmountMinor != 100 || in.UserID != "owner" {
		t.Fatalf("instruction = %+v, want a 100 charge for owner", in)
	}
	if in.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", in.Attempts)
	}
	if in.ReferenceID == "" {
		t.Fatal("reference id must be set")
	}
}

func TestConcurrentJoinsNeverOversell(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, request.Admission{}, 0)

	// one owner seat, three free seats, ten contenders
	reqID := f.createRequest(t, 1, 4)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.JoinRequest(ctx, reqID, fmt.Sprintf("rider-%02d", i), 1)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, request.ErrCapacityExceeded) {
				t.Errorf("unexpected join error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 3 {
		t.Fatalf("%d joins succeeded, want exactly 3", succeeded)
	}

	view, err := f.svc.GetRequest(ctx, reqID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	seats := 0
	for _, p := range view.Passengers {
		if p.Status == "JOINED" {
			seats += p.SeatsHeld
		}
	}
	if seats != 4 {
		t.Fatalf("active seats = %d, want 4", seats)
	}
}

func TestGetRequestDecoratesBidsFromDirectory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, request.Admission{}, 0)

	f.store.PutDriver(&directory.DriverProfile{ID: "driver-1", Name: "Dana", Rating: 4.8})
	f.store.PutVehicle(&directory.Vehicle{ID: "veh-driver-1", Brand: "Toyota", Model: "Prius", Color: "Blue", Plate: "AB123CD"})

	reqID := f.createRequest(t, 1, 2)
	f.submitBid(t, reqID, "driver-1", 100)

	view, err := f.svc.GetRequest(ctx, reqID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if len(view.Bids) != 1 {
		t.Fatalf("got %d bids, want 1", len(view.Bids))
	}
	b := view.Bids[0]
	if b.DriverName != "Dana" || b.DriverRating != 4.8 {
		t.Errorf("driver decoration = %q/%v, want Dana/4.8", b.DriverName, b.DriverRating)
	}
	if b.VehicleLabel == "" {
		t.Error("vehicle label missing")
	}
}

func TestUnknownRequestIsNotFound(t *testing.T) {
	f := newFixture(t, request.Admission{}, 0)
	if _, err := f.svc.GetRequest(context.Background(), "nope"); !errors.Is(err, request.ErrRequestNotFound) {
		t.Fatalf("got %v, want ErrRequestNotFound", err)
	}
}

func TestStatusMessagesPublished(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, request.Admission{}, 0)

	reqID := f.createRequest(t, 1, 2)
	bidID := f.submitBid(t, reqID, "driver-1", 100)
	if _, err := f.svc.AcceptBid(ctx, reqID, "owner", bidID); err != nil {
		t.Fatalf("accept bid: %v", err)
	}

	open := f.pub.byKey(contracts.RouteRequestStatusPrefix + "OPEN")
	matched := f.pub.byKey(contracts.RouteRequestStatusPrefix + "MATCHED")
	if len(open) != 1 || len(matched) != 1 {
		t.Fatalf("status messages open=%d matched=%d, want 1/1", len(open), len(matched))
	}

	var msg contracts.RequestStatusMessage
	if err := json.Unmarshal(matched[0], &msg); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if msg.RequestID != reqID || msg.ChosenBidID != bidID {
		t.Fatalf("status message = %+v", msg)
	}
}
