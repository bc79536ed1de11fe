// Package memstore provides in-memory implementations of the repository
// ports. It backs service tests and local development without PostgreSQL.
// Rows are copied on the way in and out so callers never alias store state.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ride-market/internal/domain/directory"
	"ride-market/internal/domain/money"
	"ride-market/internal/domain/request"
	"ride-market/internal/ports"
)

var ErrNotFound = errors.New("memstore: not found")

// Store holds all marketplace state behind one mutex.
type Store struct {
	mu         sync.RWMutex
	requests   map[string]*request.RiderRequest
	passengers map[string]map[string]*request.Passenger // request id -> user id -> row
	bids       map[string][]*request.DriverBid          // request id -> bids, insertion order
	events     map[string][]*request.Event              // request id -> appended events
	vehicles   map[string]*directory.Vehicle
	drivers    map[string]*directory.DriverProfile
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		requests:   make(map[string]*request.RiderRequest),
		passengers: make(map[string]map[string]*request.Passenger),
		bids:       make(map[string][]*request.DriverBid),
		events:     make(map[string][]*request.Event),
		vehicles:   make(map[string]*directory.Vehicle),
		drivers:    make(map[string]*directory.DriverProfile),
	}
}

// ----- UnitOfWork -----

// WithinTx runs fn directly. The store has no transactions; atomicity of a
// marketplace operation comes from the service's per-request lock.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ ports.UnitOfWork = (*Store)(nil)

// ----- RequestRepository -----

func (s *Store) Create(ctx context.Context, req *request.RiderRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if _, ok := s.requests[req.ID]; ok {
		return errors.New("memstore: duplicate request id")
	}

	s.requests[req.ID] = cloneRequest(req)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*request.RiderRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, request.ErrRequestNotFound
	}
	return cloneRequest(req), nil
}

// GetForUpdate behaves like GetByID; row locking has no in-memory
// equivalent, the service's per-request lock covers it.
func (s *Store) GetForUpdate(ctx context.Context, id string) (*request.RiderRequest, error) {
	return s.GetByID(ctx, id)
}

func (s *Store) ListByStatus(ctx context.Context, status request.Status, limit int) ([]*request.RiderRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*request.RiderRequest
	for _, req := range s.requests {
		if req.Status == status {
			out = append(out, cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SaveMatch(ctx context.Context, req *request.RiderRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[req.ID]; !ok {
		return ErrNotFound
	}
	s.requests[req.ID] = cloneRequest(req)
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status request.Status, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return ErrNotFound
	}
	req.Status = status
	req.UpdatedAt = ts
	return nil
}

var _ ports.RequestRepository = (*Store)(nil)

// ----- PassengerRepository -----

func (s *Store) Add(ctx context.Context, p *request.Passenger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.passengers[p.RequestID]
	if !ok {
		rows = make(map[string]*request.Passenger)
		s.passengers[p.RequestID] = rows
	}
	if _, exists := rows[p.UserID]; exists {
		return errors.New("memstore: duplicate passenger")
	}
	rows[p.UserID] = clonePassenger(p)
	return nil
}

func (s *Store) ListByRequest(ctx context.Context, requestID string) ([]*request.Passenger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*request.Passenger
	for _, p := range s.passengers[requestID] {
		out = append(out, clonePassenger(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (s *Store) Save(ctx context.Context, p *request.Passenger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.passengers[p.RequestID]
	if rows == nil {
		return ErrNotFound
	}
	if _, ok := rows[p.UserID]; !ok {
		return ErrNotFound
	}
	rows[p.UserID] = clonePassenger(p)
	return nil
}

func (s *Store) UpdateShare(ctx context.Context, requestID, userID string, share money.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.passengers[requestID]
	if rows == nil {
		return ErrNotFound
	}
	p, ok := rows[userID]
	if !ok {
		return ErrNotFound
	}
	p.CurrentShare = share
	return nil
}

var _ ports.PassengerRepository = (*Store)(nil)

// ----- BidRepository -----

// Bids returns a bid-repository view of the store. RequestRepository and
// BidRepository both declare Add/ListByRequest, so the bid methods live on
// a separate receiver.
func (s *Store) Bids() ports.BidRepository { return &bidStore{s: s} }

type bidStore struct {
	s *Store
}

func (b *bidStore) Add(ctx context.Context, bid *request.DriverBid) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	if bid.ID == "" {
		bid.ID = uuid.NewString()
	}
	if bid.CreatedAt.IsZero() {
		bid.CreatedAt = time.Now().UTC()
	}
	b.s.bids[bid.RequestID] = append(b.s.bids[bid.RequestID], cloneBid(bid))
	return nil
}

func (b *bidStore) ListByRequest(ctx context.Context, requestID string) ([]*request.DriverBid, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()

	var out []*request.DriverBid
	for _, bid := range b.s.bids[requestID] {
		out = append(out, cloneBid(bid))
	}
	return out, nil
}

func (b *bidStore) UpdateStatus(ctx context.Context, bidID string, status request.BidStatus) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	for _, bids := range b.s.bids {
		for _, bid := range bids {
			if bid.ID == bidID {
				bid.Status = status
				return nil
			}
		}
	}
	return ErrNotFound
}

var _ ports.BidRepository = (*bidStore)(nil)

// ----- EventRepository -----

func (s *Store) Append(ctx context.Context, e *request.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.events[e.RequestID] = append(s.events[e.RequestID], e)
	return nil
}

// Events returns appended events for a request, oldest first. Test helper.
func (s *Store) Events(requestID string) []*request.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*request.Event(nil), s.events[requestID]...)
}

var _ ports.EventRepository = (*Store)(nil)

// ----- DirectoryRepository -----

func (s *Store) Vehicle(ctx context.Context, id string) (*directory.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[id]
	if !ok {
		return nil, nil
	}
	c := *v
	return &c, nil
}

func (s *Store) Driver(ctx context.Context, id string) (*directory.DriverProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drivers[id]
	if !ok {
		return nil, nil
	}
	c := *d
	return &c, nil
}

// PutVehicle seeds a vehicle record. Test and dev helper.
func (s *Store) PutVehicle(v *directory.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	c := *v
	s.vehicles[v.ID] = &c
}

// PutDriver seeds a driver profile. Test and dev helper.
func (s *Store) PutDriver(d *directory.DriverProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *d
	s.drivers[d.ID] = &c
}

var _ ports.DirectoryRepository = (*Store)(nil)

// ----- clone helpers -----

func cloneRequest(in *request.RiderRequest) *request.RiderRequest {
	out := *in
	if in.BasePrice != nil {
		price := *in.BasePrice
		out.BasePrice = &price
	}
	if in.ChosenBidID != nil {
		id := *in.ChosenBidID
		out.ChosenBidID = &id
	}
	return &out
}

func clonePassenger(in *request.Passenger) *request.Passenger {
	out := *in
	if in.LeftAt != nil {
		t := *in.LeftAt
		out.LeftAt = &t
	}
	return &out
}

func cloneBid(in *request.DriverBid) *request.DriverBid {
	out := *in
	return &out
}
