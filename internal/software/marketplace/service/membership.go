package service

import (
	"context"
	"fmt"

	"ride-market/internal/domain/request"
	"ride-market/internal/ports"
)

// JoinRequest adds userID as a co-passenger holding seatsWanted seats. A
// user who left earlier rejoins on their existing row with a fresh join
// time. The capacity check and the share recomputation commit as one unit,
// so concurrent joins can never oversell seats.
func (s *marketplaceService) JoinRequest(ctx context.Context, requestID, userID string, seatsWanted int) (*ports.OperationResult, error) {
	ctx = s.logger.WithRiderRequestID(ctx, requestID)

	var (
		view   *ports.RequestView
		deltas []ports.PaymentDelta
	)

	err := s.runLocked(ctx, "join_request", requestID, func(txCtx context.Context, req *request.RiderRequest) error {
		passengers, err := s.passengers.ListByRequest(txCtx, req.ID)
		if err != nil {
			return err
		}

		if err := s.admission.CheckJoin(req, passengers, userID, seatsWanted); err != nil {
			return err
		}

		if existing := request.FindPassenger(passengers, userID); existing != nil {
			if err := existing.Rejoin(seatsWanted); err != nil {
				return err
			}
			if err := s.passengers.Save(txCtx, existing); err != nil {
				return err
			}
		} else {
			joined, err := request.NewPassenger(req.ID, userID, seatsWanted)
			if err != nil {
				return err
			}
			if err := s.passengers.Add(txCtx, joined); err != nil {
				return err
			}
			passengers = append(passengers, joined)
		}

		if err := s.appendEvent(txCtx, req.ID, request.EventPassengerJoined, map[string]any{
			"user_id":      userID,
			"seats_wanted": seatsWanted,
		}); err != nil {
			return err
		}

		deltas, err = s.recomputeAndPersist(txCtx, req, passengers)
		if err != nil {
			return err
		}

		view, err = s.buildViewTx(txCtx, req)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "passenger_join_failed", "Failed to join request", err, map[string]any{
			"user_id":      userID,
			"seats_wanted": seatsWanted,
		})
		return nil, err
	}

	s.settle(ctx, requestID, deltas)
	s.afterCommit(ctx, view)

	s.logger.Info(ctx, "passenger_joined", fmt.Sprintf("User %s joined request", userID), map[string]any{
		"user_id":        userID,
		"seats_wanted":   seatsWanted,
		"payment_deltas": len(deltas),
	})

	return &ports.OperationResult{Request: view, PaymentDeltas: orEmpty(deltas)}, nil
}

// LeaveRequest removes userID from the trip. The leaver's share settles to
// zero (refund delta) and the remaining passengers absorb the difference in
// the same recomputation. The owner can never leave; cancel is the owner's
// only exit.
func (s *marketplaceService) LeaveRequest(ctx context.Context, requestID, userID string) (*ports.OperationResult, error) {
	ctx = s.logger.WithRiderRequestID(ctx, requestID)

	var (
		view   *ports.RequestView
		deltas []ports.PaymentDelta
	)

	err := s.runLocked(ctx, "leave_request", requestID, func(txCtx context.Context, req *request.RiderRequest) error {
		passengers, err := s.passengers.ListByRequest(txCtx, req.ID)
		if err != nil {
			return err
		}

		if err := s.admission.CheckLeave(req, passengers, userID); err != nil {
			return err
		}

		leaver := request.FindPassenger(passengers, userID)
		if err := leaver.Leave(); err != nil {
			return err
		}
		if err := s.passengers.Save(txCtx, leaver); err != nil {
			return err
		}

		if err := s.appendEvent(txCtx, req.ID, request.EventPassengerLeft, map[string]any{
			"user_id": userID,
		}); err != nil {
			return err
		}

		deltas, err = s.recomputeAndPersist(txCtx, req, passengers)
		if err != nil {
			return err
		}

		view, err = s.buildViewTx(txCtx, req)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "passenger_leave_failed", "Failed to leave request", err, map[string]any{
			"user_id": userID,
		})
		return nil, err
	}

	s.settle(ctx, requestID, deltas)
	s.afterCommit(ctx, view)

	s.logger.Info(ctx, "passenger_left", fmt.Sprintf("User %s left request", userID), map[string]any{
		"user_id":        userID,
		"payment_deltas": len(deltas),
	})

	return &ports.OperationResult{Request: view, PaymentDeltas: orEmpty(deltas)}, nil
}

// orEmpty keeps the wire shape stable: no deltas serializes as [] not null.
func orEmpty(deltas []ports.PaymentDelta) []ports.PaymentDelta {
	if deltas == nil {
		return []ports.PaymentDelta{}
	}
	return deltas
}
