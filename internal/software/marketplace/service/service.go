package service

import (
	"context"

	"ride-market/internal/domain/money"
	"ride-market/internal/domain/request"
	"ride-market/internal/general/logger"
	"ride-market/internal/general/rediscache"
	"ride-market/internal/general/websocket"
	"ride-market/internal/ports"
)

// producerName tags every outbound message envelope.
const producerName = "marketplace-service"

type marketplaceService struct {
	logger     *logger.Logger
	uow        ports.UnitOfWork
	requests   ports.RequestRepository
	passengers ports.PassengerRepository
	bids       ports.BidRepository
	events     ports.EventRepository
	directory  ports.DirectoryRepository
	gateway    ports.PaymentGateway
	pricing    ports.PricingProvider
	pub        ports.MessagePublisher
	cache      *rediscache.ViewCache // optional, nil disables caching
	feed       *websocket.Feed       // optional, nil disables the ws feed
	admission  request.Admission
	locks      *keyedLocks
}

// NewMarketplaceService creates a new instance of the MarketplaceService with
// the provided dependencies. cache and feed may be nil.
func NewMarketplaceService(
	logger *logger.Logger,
	uow ports.UnitOfWork,
	requests ports.RequestRepository,
	passengers ports.PassengerRepository,
	bids ports.BidRepository,
	events ports.EventRepository,
	directory ports.DirectoryRepository,
	gateway ports.PaymentGateway,
	pricing ports.PricingProvider,
	pub ports.MessagePublisher,
	cache *rediscache.ViewCache,
	feed *websocket.Feed,
	admission request.Admission,
) ports.MarketplaceService {
	return &marketplaceService{
		logger:     logger,
		uow:        uow,
		requests:   requests,
		passengers: passengers,
		bids:       bids,
		events:     events,
		directory:  directory,
		gateway:    gateway,
		pricing:    pricing,
		pub:        pub,
		cache:      cache,
		feed:       feed,
		admission:  admission,
		locks:      newKeyedLocks(),
	}
}

// FixedTaxRate is a config-backed pricing provider with a constant rate.
type FixedTaxRate money.BasisPoints

// TaxRate returns the configured rate.
func (r FixedTaxRate) TaxRate(ctx context.Context) money.BasisPoints {
	return money.BasisPoints(r)
}

var _ ports.PricingProvider = FixedTaxRate(0)
