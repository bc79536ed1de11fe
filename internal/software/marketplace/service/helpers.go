package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"ride-market/internal/domain/money"
	"ride-market/internal/domain/pricing"
	"ride-market/internal/domain/request"
	"ride-market/internal/general/contracts"
	"ride-market/internal/general/observability"
	"ride-market/internal/ports"
)

// runLocked is the critical-section wrapper every mutating operation goes
// through: per-request lock, one transaction, row lock via GetForUpdate, and
// metrics on the way out. fn sees the locked request snapshot and performs
// all mutations inside txCtx.
func (s *marketplaceService) runLocked(ctx context.Context, op, requestID string, fn func(txCtx context.Context, req *request.RiderRequest) error) error {
	unlock := s.locks.lock(requestID)
	defer unlock()

	start := time.Now()

	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		req, err := s.requests.GetForUpdate(txCtx, requestID)
		if err != nil {
			return err
		}
		return fn(txCtx, req)
	})

	observability.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	observability.OperationsTotal.WithLabelValues(op, outcomeLabel(err)).Inc()

	return err
}

// outcomeLabel maps an operation error to a low-cardinality metric label.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, request.ErrRequestNotFound):
		return "not_found"
	case errors.Is(err, request.ErrRequestNotOpen):
		return "not_open"
	case errors.Is(err, request.ErrDuplicateBid):
		return "duplicate_bid"
	case errors.Is(err, request.ErrNotOwner):
		return "not_owner"
	case errors.Is(err, request.ErrBidNotFound):
		return "bid_not_found"
	case errors.Is(err, request.ErrAlreadyMatched):
		return "already_matched"
	case errors.Is(err, request.ErrRequestNotJoinable):
		return "not_joinable"
	case errors.Is(err, request.ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, request.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, request.ErrNotAPassenger):
		return "not_a_passenger"
	case errors.Is(err, request.ErrOwnerCannotLeave):
		return "owner_cannot_leave"
	case errors.Is(err, request.ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "error"
	}
}

// recomputeAndPersist runs the splitter over the current membership, writes
// every changed share, and returns the payment deltas with fresh reference
// ids. Must run inside the operation's transaction.
func (s *marketplaceService) recomputeAndPersist(txCtx context.Context, req *request.RiderRequest, passengers []*request.Passenger) ([]ports.PaymentDelta, error) {
	res := pricing.Recompute(req, passengers, s.pricing.TaxRate(txCtx))
	return s.persistDeltas(txCtx, req.ID, res.Deltas)
}

// persistDeltas writes recomputed shares and converts splitter deltas into
// the wire form. Each delta gets a reference id minted exactly once, here,
// so gateway retries and reconciliation stay idempotent.
func (s *marketplaceService) persistDeltas(txCtx context.Context, requestID string, deltas []pricing.Delta) ([]ports.PaymentDelta, error) {
	if len(deltas) == 0 {
		return nil, nil
	}

	out := make([]ports.PaymentDelta, 0, len(deltas))
	shares := make(map[string]any, len(deltas))

	for _, d := range deltas {
		if err := s.passengers.UpdateShare(txCtx, requestID, d.UserID, d.NewShare); err != nil {
			return nil, err
		}
		out = append(out, ports.PaymentDelta{
			UserID:        d.UserID,
			PreviousMinor: int64(d.PreviousShare),
			NewMinor:      int64(d.NewShare),
			AmountMinor:   int64(d.Amount),
			ReferenceID:   requestID + ":" + d.UserID + ":" + shortID(),
		})
		shares[d.UserID] = int64(d.NewShare)
	}

	if err := s.appendEvent(txCtx, requestID, request.EventSharesRecomputed, map[string]any{
		"shares": shares,
	}); err != nil {
		return nil, err
	}

	return out, nil
}

// appendEvent writes one audit event inside the operation's transaction.
func (s *marketplaceService) appendEvent(txCtx context.Context, requestID string, eventType request.EventType, data map[string]any) error {
	ev, err := request.NewEvent(requestID, eventType, data)
	if err != nil {
		return err
	}
	return s.events.Append(txCtx, ev)
}

// settle delivers payment deltas to the gateway after commit. A failed
// delivery is queued for reconciliation instead of failing the operation;
// the shares are already committed and the queue is the source of truth for
// the outstanding money movement.
func (s *marketplaceService) settle(ctx context.Context, requestID string, deltas []ports.PaymentDelta) {
	for _, d := range deltas {
		if d.AmountMinor == 0 {
			continue
		}

		kind := contracts.PaymentKindCharge
		amount := d.AmountMinor
		if amount < 0 {
			kind = contracts.PaymentKindRefund
			amount = -amount
		}
		observability.PaymentDeltasTotal.WithLabelValues(kind).Inc()

		var err error
		if kind == contracts.PaymentKindCharge {
			err = s.gateway.Charge(ctx, d.UserID, money.Amount(amount), d.ReferenceID)
		} else {
			err = s.gateway.Refund(ctx, d.UserID, money.Amount(amount), d.ReferenceID)
		}
		if err == nil {
			continue
		}

		s.logger.Error(ctx, "payment_delivery_failed", "Gateway call failed, queueing for reconciliation", err, map[string]any{
			"user_id":      d.UserID,
			"amount_minor": d.AmountMinor,
			"reference_id": d.ReferenceID,
		})
		s.enqueueReconcile(ctx, requestID, d)
	}
}

// enqueueReconcile publishes a payment instruction on the durable reconcile
// queue. If even the broker is down the failure is logged; the reference id
// stays in request_events for manual recovery.
func (s *marketplaceService) enqueueReconcile(ctx context.Context, requestID string, d ports.PaymentDelta) {
	kind := contracts.PaymentKindCharge
	if d.AmountMinor < 0 {
		kind = contracts.PaymentKindRefund
	}

	msg := contracts.PaymentInstruction{
		RequestID:   requestID,
		UserID:      d.UserID,
		AmountMinor: d.AmountMinor,
		Kind:        kind,
		ReferenceID: d.ReferenceID,
		Attempts:    1,
		Timestamp:   time.Now().UTC(),
		Envelope: contracts.Envelope{
			Producer: producerName,
			SentAt:   time.Now().UTC(),
		},
	}

	body, err := json.Marshal(msg)
	if err == nil {
		err = s.pub.Publish(contracts.ExchangeMarketTopic, contracts.RoutePaymentReconcile, body)
	}
	if err != nil {
		s.logger.Error(ctx, "payment_reconcile_enqueue_failed", "Failed to queue payment instruction", err, map[string]any{
			"reference_id": d.ReferenceID,
		})
		return
	}

	observability.PaymentReconcileQueued.Inc()
}

// publishStatus announces a status transition on the market topic.
func (s *marketplaceService) publishStatus(ctx context.Context, req *request.RiderRequest) {
	msg := contracts.RequestStatusMessage{
		RequestID: req.ID,
		Status:    req.Status.String(),
		OwnerID:   req.OwnerID,
		Timestamp: time.Now().UTC(),
		Envelope: contracts.Envelope{
			Producer: producerName,
			SentAt:   time.Now().UTC(),
		},
	}
	if req.ChosenBidID != nil {
		msg.ChosenBidID = *req.ChosenBidID
	}
	if req.BasePrice != nil {
		total := int64(s.totalCost(ctx, req))
		msg.TotalCostMinor = &total
	}

	body, err := json.Marshal(msg)
	if err == nil {
		err = s.pub.Publish(contracts.ExchangeMarketTopic, contracts.RouteRequestStatusPrefix+req.Status.String(), body)
	}
	if err != nil {
		s.logger.Error(ctx, "request_status_publish_failed", "Failed to publish request status", err, map[string]any{
			"status": req.Status.String(),
		})
	}
}

// publishBid announces bid activity on the market topic.
func (s *marketplaceService) publishBid(ctx context.Context, bid *request.DriverBid) {
	msg := contracts.BidMessage{
		RequestID:  bid.RequestID,
		BidID:      bid.ID,
		Status:     bid.Status.String(),
		PriceMinor: int64(bid.Price),
		Driver:     &contracts.DriverBrief{DriverID: bid.DriverID},
		Timestamp:  time.Now().UTC(),
		Envelope: contracts.Envelope{
			Producer: producerName,
			SentAt:   time.Now().UTC(),
		},
	}

	body, err := json.Marshal(msg)
	if err == nil {
		err = s.pub.Publish(contracts.ExchangeMarketTopic, contracts.RouteBidPrefix+bid.RequestID, body)
	}
	if err != nil {
		s.logger.Error(ctx, "bid_publish_failed", "Failed to publish bid activity", err, map[string]any{
			"bid_id": bid.ID,
		})
	}
}

// afterCommit invalidates the cached view and pushes the fresh one to
// WebSocket subscribers.
func (s *marketplaceService) afterCommit(ctx context.Context, view *ports.RequestView) {
	if view == nil {
		return
	}

	s.cache.Invalidate(ctx, view.RequestID)

	if s.feed == nil {
		return
	}

	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	update := contracts.WSRequestUpdate{
		Type:      "request_update",
		RequestID: view.RequestID,
		Status:    view.Status,
		View:      raw,
		Timestamp: time.Now().UTC(),
	}
	if body, err := json.Marshal(update); err == nil {
		s.feed.Broadcast(view.RequestID, body)
	}
}

// shortID generates an 8-char hex suffix for payment reference ids.
func shortID() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
