package service

import (
	"context"
	"fmt"
	"time"

	"ride-market/internal/domain/request"
	"ride-market/internal/general/observability"
	"ride-market/internal/ports"
)

// CreateRequest publishes a new rider request in OPEN state. The owner's own
// seat holding is created in the same unit, so capacity accounting and share
// splitting see the owner like any other passenger from the start.
func (s *marketplaceService) CreateRequest(ctx context.Context, in ports.CreateRequestInput) (*ports.OperationResult, error) {
	req, err := request.NewRequest(in.OwnerID, in.Origin, in.Destination, in.DepartureAt, in.SeatsRequested, in.MaxPassengers)
	if err != nil {
		observability.OperationsTotal.WithLabelValues("create_request", outcomeLabel(err)).Inc()
		return nil, err
	}

	var view *ports.RequestView
	start := time.Now()

	err = s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		if err := s.requests.Create(txCtx, req); err != nil {
			return err
		}

		owner, err := request.NewPassenger(req.ID, req.OwnerID, req.SeatsRequested)
		if err != nil {
			return err
		}
		if err := s.passengers.Add(txCtx, owner); err != nil {
			return err
		}

		if err := s.appendEvent(txCtx, req.ID, request.EventRequestCreated, map[string]any{
			"owner_id":        req.OwnerID,
			"origin":          req.Origin,
			"destination":     req.Destination,
			"departure_at":    req.DepartureAt.Format(time.RFC3339),
			"seats_requested": req.SeatsRequested,
			"max_passengers":  req.MaxPassengers,
		}); err != nil {
			return err
		}

		view = s.assembleView(txCtx, req, []*request.Passenger{owner}, nil)
		return nil
	})

	observability.OperationDuration.WithLabelValues("create_request").Observe(time.Since(start).Seconds())
	observability.OperationsTotal.WithLabelValues("create_request", outcomeLabel(err)).Inc()

	if err != nil {
		s.logger.Error(ctx, "request_create_failed", "Failed to create rider request", err, map[string]any{
			"owner_id": in.OwnerID,
		})
		return nil, err
	}

	observability.OpenRequests.Inc()

	ctx = s.logger.WithRiderRequestID(ctx, req.ID)
	s.publishStatus(ctx, req)

	s.logger.Info(ctx, "request_created", fmt.Sprintf("Rider request %s created", req.ID), map[string]any{
		"owner_id":       req.OwnerID,
		"max_passengers": req.MaxPassengers,
	})

	return &ports.OperationResult{Request: view, PaymentDeltas: []ports.PaymentDelta{}}, nil
}
