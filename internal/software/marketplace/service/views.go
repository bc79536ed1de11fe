package service

import (
	"context"
	"encoding/json"

	"ride-market/internal/domain/money"
	"ride-market/internal/domain/request"
	"ride-market/internal/ports"
)

// GetRequest returns the full aggregate view, served from Redis when fresh.
func (s *marketplaceService) GetRequest(ctx context.Context, requestID string) (*ports.RequestView, error) {
	if body, ok := s.cache.Get(ctx, requestID); ok {
		var view ports.RequestView
		if err := json.Unmarshal(body, &view); err == nil {
			return &view, nil
		}
		// stale or corrupt entry: fall through to the database
		s.cache.Invalidate(ctx, requestID)
	}

	var view *ports.RequestView
	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		req, err := s.requests.GetByID(txCtx, requestID)
		if err != nil {
			return err
		}
		view, err = s.buildViewTx(txCtx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	if body, err := json.Marshal(view); err == nil {
		s.cache.Set(ctx, requestID, body)
	}

	return view, nil
}

// ListOpenRequests returns views of the most recently created OPEN requests.
func (s *marketplaceService) ListOpenRequests(ctx context.Context, limit int) ([]*ports.RequestView, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var views []*ports.RequestView
	err := s.uow.WithinTx(ctx, func(txCtx context.Context) error {
		reqs, err := s.requests.ListByStatus(txCtx, request.StatusOpen, limit)
		if err != nil {
			return err
		}
		views = make([]*ports.RequestView, 0, len(reqs))
		for _, req := range reqs {
			view, err := s.buildViewTx(txCtx, req)
			if err != nil {
				return err
			}
			views = append(views, view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return views, nil
}

// buildViewTx assembles the aggregate view inside the operation's
// transaction so it reflects exactly the committed state.
func (s *marketplaceService) buildViewTx(txCtx context.Context, req *request.RiderRequest) (*ports.RequestView, error) {
	passengers, err := s.passengers.ListByRequest(txCtx, req.ID)
	if err != nil {
		return nil, err
	}
	bids, err := s.bids.ListByRequest(txCtx, req.ID)
	if err != nil {
		return nil, err
	}
	return s.assembleView(txCtx, req, passengers, bids), nil
}

// assembleView maps domain rows to the wire view, decorating bids with
// directory display data when available.
func (s *marketplaceService) assembleView(txCtx context.Context, req *request.RiderRequest, passengers []*request.Passenger, bids []*request.DriverBid) *ports.RequestView {
	view := &ports.RequestView{
		RequestID:      req.ID,
		OwnerID:        req.OwnerID,
		Origin:         req.Origin,
		Destination:    req.Destination,
		DepartureAt:    req.DepartureAt,
		SeatsRequested: req.SeatsRequested,
		MaxPassengers:  req.MaxPassengers,
		Status:         req.Status.String(),
		ChosenBidID:    req.ChosenBidID,
		Passengers:     make([]ports.PassengerView, 0, len(passengers)),
		Bids:           make([]ports.BidView, 0, len(bids)),
		CreatedAt:      req.CreatedAt,
		UpdatedAt:      req.UpdatedAt,
	}

	if req.BasePrice != nil {
		base := int64(*req.BasePrice)
		total := int64(s.totalCost(txCtx, req))
		view.BasePriceMinor = &base
		view.TotalCostMinor = &total
	}

	for _, p := range passengers {
		view.Passengers = append(view.Passengers, ports.PassengerView{
			UserID:            p.UserID,
			SeatsHeld:         p.SeatsHeld,
			Status:            p.Status.String(),
			CurrentShareMinor: int64(p.CurrentShare),
			JoinedAt:          p.JoinedAt,
			LeftAt:            p.LeftAt,
		})
	}

	for _, b := range bids {
		bv := ports.BidView{
			BidID:      b.ID,
			DriverID:   b.DriverID,
			VehicleID:  b.VehicleID,
			PriceMinor: int64(b.Price),
			Message:    b.Message,
			Status:     b.Status.String(),
			CreatedAt:  b.CreatedAt,
		}
		if drv, err := s.directory.Driver(txCtx, b.DriverID); err == nil && drv != nil {
			bv.DriverName = drv.Name
			bv.DriverRating = drv.Rating
		}
		if veh, err := s.directory.Vehicle(txCtx, b.VehicleID); err == nil && veh != nil {
			bv.VehicleLabel = veh.Label()
		}
		view.Bids = append(view.Bids, bv)
	}

	return view
}

// totalCost is the accepted bid price with the current tax rate applied, or
// zero before a bid is accepted.
func (s *marketplaceService) totalCost(ctx context.Context, req *request.RiderRequest) money.Amount {
	if req.BasePrice == nil {
		return 0
	}
	return money.ApplyRate(*req.BasePrice, s.pricing.TaxRate(ctx))
}
