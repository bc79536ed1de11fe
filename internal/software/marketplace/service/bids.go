package service

import (
	"context"
	"fmt"

	"ride-market/internal/domain/money"
	"ride-market/internal/domain/request"
	"ride-market/internal/general/observability"
	"ride-market/internal/ports"
)

// SubmitBid records a driver's offer on an open request.
func (s *marketplaceService) SubmitBid(ctx context.Context, in ports.SubmitBidInput) (*ports.OperationResult, error) {
	ctx = s.logger.WithRiderRequestID(ctx, in.RequestID)

	var (
		view *ports.RequestView
		bid  *request.DriverBid
	)

	err := s.runLocked(ctx, "submit_bid", in.RequestID, func(txCtx context.Context, req *request.RiderRequest) error {
		bids, err := s.bids.ListByRequest(txCtx, req.ID)
		if err != nil {
			return err
		}

		if err := s.admission.CheckSubmitBid(req, bids, in.DriverID); err != nil {
			return err
		}

		bid, err = request.NewBid(req.ID, in.DriverID, in.VehicleID, money.Amount(in.PriceMinor), in.Message)
		if err != nil {
			return err
		}
		if err := s.bids.Add(txCtx, bid); err != nil {
			return err
		}

		if err := s.appendEvent(txCtx, req.ID, request.EventBidSubmitted, map[string]any{
			"bid_id":      bid.ID,
			"driver_id":   bid.DriverID,
			"vehicle_id":  bid.VehicleID,
			"price_minor": int64(bid.Price),
		}); err != nil {
			return err
		}

		view, err = s.buildViewTx(txCtx, req)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "bid_submit_failed", "Failed to submit bid", err, map[string]any{
			"driver_id": in.DriverID,
		})
		return nil, err
	}

	s.publishBid(ctx, bid)
	s.afterCommit(ctx, view)

	s.logger.Info(ctx, "bid_submitted", fmt.Sprintf("Driver %s bid on request", in.DriverID), map[string]any{
		"bid_id":      bid.ID,
		"price_minor": int64(bid.Price),
	})

	return &ports.OperationResult{Request: view, PaymentDeltas: []ports.PaymentDelta{}}, nil
}

// AcceptBid lets the owner choose the winning bid. Exactly one bid can ever
// win: the check runs under the request lock, every sibling PENDING bid is
// rejected in the same transaction, and the first cost split is persisted
// before commit.
func (s *marketplaceService) AcceptBid(ctx context.Context, requestID, callerID, bidID string) (*ports.OperationResult, error) {
	ctx = s.logger.WithRiderRequestID(ctx, requestID)

	var (
		view     *ports.RequestView
		deltas   []ports.PaymentDelta
		winner   *request.DriverBid
		rejected []*request.DriverBid
		reqOut   *request.RiderRequest
	)

	err := s.runLocked(ctx, "accept_bid", requestID, func(txCtx context.Context, req *request.RiderRequest) error {
		bids, err := s.bids.ListByRequest(txCtx, req.ID)
		if err != nil {
			return err
		}

		if err := s.admission.CheckAcceptBid(req, bids, callerID, bidID); err != nil {
			return err
		}

		winner = request.FindBid(bids, bidID)
		if err := winner.Accept(); err != nil {
			return err
		}
		if err := s.bids.UpdateStatus(txCtx, winner.ID, winner.Status); err != nil {
			return err
		}

		// every other pending bid loses
		rejected = rejected[:0]
		for _, b := range bids {
			if b.ID == winner.ID || b.Status != request.BidPending {
				continue
			}
			if err := b.Reject(); err != nil {
				return err
			}
			if err := s.bids.UpdateStatus(txCtx, b.ID, b.Status); err != nil {
				return err
			}
			rejected = append(rejected, b)
		}

		if err := req.Match(winner.ID, winner.Price); err != nil {
			return err
		}
		if err := s.requests.SaveMatch(txCtx, req); err != nil {
			return err
		}

		if err := s.appendEvent(txCtx, req.ID, request.EventBidAccepted, map[string]any{
			"bid_id":      winner.ID,
			"driver_id":   winner.DriverID,
			"price_minor": int64(winner.Price),
		}); err != nil {
			return err
		}
		for _, b := range rejected {
			if err := s.appendEvent(txCtx, req.ID, request.EventBidRejected, map[string]any{
				"bid_id":    b.ID,
				"driver_id": b.DriverID,
			}); err != nil {
				return err
			}
		}

		passengers, err := s.passengers.ListByRequest(txCtx, req.ID)
		if err != nil {
			return err
		}
		deltas, err = s.recomputeAndPersist(txCtx, req, passengers)
		if err != nil {
			return err
		}

		reqOut = req
		view, err = s.buildViewTx(txCtx, req)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "bid_accept_failed", "Failed to accept bid", err, map[string]any{
			"bid_id":    bidID,
			"caller_id": callerID,
		})
		return nil, err
	}

	observability.OpenRequests.Dec()

	s.settle(ctx, requestID, deltas)
	s.publishStatus(ctx, reqOut)
	s.publishBid(ctx, winner)
	for _, b := range rejected {
		s.publishBid(ctx, b)
	}
	s.afterCommit(ctx, view)

	s.logger.Info(ctx, "bid_accepted", fmt.Sprintf("Bid %s accepted", bidID), map[string]any{
		"driver_id":     winner.DriverID,
		"price_minor":   int64(winner.Price),
		"rejected_bids": len(rejected),
	})

	return &ports.OperationResult{Request: view, PaymentDeltas: orEmpty(deltas)}, nil
}
