package service

import (
	"context"
	"time"

	"ride-market/internal/domain/pricing"
	"ride-market/internal/domain/request"
	"ride-market/internal/general/observability"
	"ride-market/internal/ports"
)

// CancelRequest cancels the trip and refunds every outstanding share.
// Cancelling an already-cancelled request is an idempotent no-op. asAdmin
// bypasses the owner check only; the transition rules still hold.
func (s *marketplaceService) CancelRequest(ctx context.Context, requestID, callerID string, asAdmin bool) (*ports.OperationResult, error) {
	ctx = s.logger.WithRiderRequestID(ctx, requestID)

	var (
		view    *ports.RequestView
		deltas  []ports.PaymentDelta
		reqOut  *request.RiderRequest
		wasOpen bool
		noop    bool
	)

	err := s.runLocked(ctx, "cancel_request", requestID, func(txCtx context.Context, req *request.RiderRequest) error {
		if asAdmin {
			if req.Status != request.StatusCancelled && !req.Status.CanTransitionTo(request.StatusCancelled) {
				return request.ErrInvalidTransition
			}
		} else if err := s.admission.CheckCancel(req, callerID); err != nil {
			return err
		}

		if req.Status == request.StatusCancelled {
			noop = true
			var err error
			view, err = s.buildViewTx(txCtx, req)
			return err
		}

		wasOpen = req.Status == request.StatusOpen

		if err := req.Cancel(); err != nil {
			return err
		}
		if err := s.requests.UpdateStatus(txCtx, req.ID, req.Status, req.UpdatedAt); err != nil {
			return err
		}

		passengers, err := s.passengers.ListByRequest(txCtx, req.ID)
		if err != nil {
			return err
		}
		res := pricing.ZeroShares(passengers)
		deltas, err = s.persistDeltas(txCtx, req.ID, res.Deltas)
		if err != nil {
			return err
		}

		if err := s.appendEvent(txCtx, req.ID, request.EventRequestCancelled, map[string]any{
			"caller_id":    callerID,
			"as_admin":     asAdmin,
			"cancelled_at": time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}

		reqOut = req
		view, err = s.buildViewTx(txCtx, req)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "request_cancel_failed", "Failed to cancel request", err, map[string]any{
			"caller_id": callerID,
		})
		return nil, err
	}

	if noop {
		return &ports.OperationResult{Request: view, PaymentDeltas: []ports.PaymentDelta{}}, nil
	}

	if wasOpen {
		observability.OpenRequests.Dec()
	}

	s.settle(ctx, requestID, deltas)
	s.publishStatus(ctx, reqOut)
	s.afterCommit(ctx, view)

	s.logger.Info(ctx, "request_cancelled", "Rider request cancelled", map[string]any{
		"caller_id":      callerID,
		"as_admin":       asAdmin,
		"refunds_issued": len(deltas),
	})

	return &ports.OperationResult{Request: view, PaymentDeltas: orEmpty(deltas)}, nil
}

// CompleteRequest closes out a matched trip. Shares are already settled, so
// completion only flips state and freezes the aggregate. Completing twice is
// an idempotent no-op.
func (s *marketplaceService) CompleteRequest(ctx context.Context, requestID string) (*ports.OperationResult, error) {
	ctx = s.logger.WithRiderRequestID(ctx, requestID)

	var (
		view   *ports.RequestView
		reqOut *request.RiderRequest
		noop   bool
	)

	err := s.runLocked(ctx, "complete_request", requestID, func(txCtx context.Context, req *request.RiderRequest) error {
		if err := s.admission.CheckComplete(req); err != nil {
			return err
		}

		if req.Status == request.StatusCompleted {
			noop = true
			var err error
			view, err = s.buildViewTx(txCtx, req)
			return err
		}

		if err := req.Complete(); err != nil {
			return err
		}
		if err := s.requests.UpdateStatus(txCtx, req.ID, req.Status, req.UpdatedAt); err != nil {
			return err
		}

		if err := s.appendEvent(txCtx, req.ID, request.EventRequestCompleted, map[string]any{
			"completed_at": time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}

		reqOut = req
		var err error
		view, err = s.buildViewTx(txCtx, req)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "request_complete_failed", "Failed to complete request", err, nil)
		return nil, err
	}

	if noop {
		return &ports.OperationResult{Request: view, PaymentDeltas: []ports.PaymentDelta{}}, nil
	}

	s.publishStatus(ctx, reqOut)
	s.afterCommit(ctx, view)

	s.logger.Info(ctx, "request_completed", "Rider request completed", nil)

	return &ports.OperationResult{Request: view, PaymentDeltas: []ports.PaymentDelta{}}, nil
}
