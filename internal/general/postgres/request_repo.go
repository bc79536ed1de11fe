package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-market/internal/domain/money"
	"ride-market/internal/domain/request"
	"ride-market/internal/ports"

	"github.com/jackc/pgx/v5"
)

// RequestRepo persists rider requests using pgx and plain SQL.
type RequestRepo struct{}

// NewRequestRepo constructs a new RequestRepo.
func NewRequestRepo() ports.RequestRepository {
	return &RequestRepo{}
}

const requestColumns = `
	id, created_at, updated_at, owner_id, origin, destination, departure_at,
	seats_requested, max_passengers, base_price_minor, status, chosen_bid_id`

// Create inserts a new rider_requests row in OPEN state.
func (repo *RequestRepo) Create(ctx context.Context, req *request.RiderRequest) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO rider_requests (
			owner_id, origin, destination, departure_at,
			seats_requested, max_passengers, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`,
		req.OwnerID,
		req.Origin,
		req.Destination,
		req.DepartureAt,
		req.SeatsRequested,
		req.MaxPassengers,
		req.Status.String(), // "OPEN"
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert rider request: %w", err)
	}

	return nil
}

// GetByID fetches a rider request by primary key (uuid).
func (repo *RequestRepo) GetByID(ctx context.Context, id string) (*request.RiderRequest, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	req, err := scanRequest(tx.QueryRow(ctx, `SELECT`+requestColumns+` FROM rider_requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, request.ErrRequestNotFound
	}
	return req, err
}

// GetForUpdate fetches the request and locks its row until the surrounding
// transaction ends. Every mutating marketplace operation goes through this,
// so all work on one request is serialized while unrelated requests proceed.
func (repo *RequestRepo) GetForUpdate(ctx context.Context, id string) (*request.RiderRequest, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	req, err := scanRequest(tx.QueryRow(ctx, `SELECT`+requestColumns+` FROM rider_requests WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, request.ErrRequestNotFound
	}
	return req, err
}

// ListByStatus returns the most recent requests in the given status.
func (repo *RequestRepo) ListByStatus(ctx context.Context, status request.Status, limit int) ([]*request.RiderRequest, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT`+requestColumns+`
		FROM rider_requests
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, status.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("query requests by status: %w", err)
	}
	defer rows.Close()

	var out []*request.RiderRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

// SaveMatch persists the outcome of a successful accept: status, chosen bid
// and base price in one update. The row is already locked by GetForUpdate.
func (repo *RequestRepo) SaveMatch(ctx context.Context, req *request.RiderRequest) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	if req.ChosenBidID == nil || req.BasePrice == nil {
		return errors.New("match requires chosen bid and base price")
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rider_requests
		SET status = $1,
		    chosen_bid_id = $2,
		    base_price_minor = $3,
		    updated_at = now()
		WHERE id = $4
	`, req.Status.String(), *req.ChosenBidID, int64(*req.BasePrice), req.ID)
	if err != nil {
		return fmt.Errorf("save match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

// UpdateStatus sets the request status. The row is already locked by
// GetForUpdate; transition legality is enforced in the domain layer.
func (repo *RequestRepo) UpdateStatus(ctx context.Context, id string, status request.Status, ts time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rider_requests
		SET status = $1,
		    updated_at = $2
		WHERE id = $3
	`, status.String(), ts, id)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*request.RiderRequest, error) {
	var (
		out       request.RiderRequest
		status    string
		basePrice *int64
	)

	err := row.Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt, &out.OwnerID, &out.Origin,
		&out.Destination, &out.DepartureAt, &out.SeatsRequested,
		&out.MaxPassengers, &basePrice, &status, &out.ChosenBidID,
	)
	if err != nil {
		return nil, err
	}

	out.Status = request.Status(status)
	if basePrice != nil {
		amount := money.Amount(*basePrice)
		out.BasePrice = &amount
	}

	return &out, nil
}
