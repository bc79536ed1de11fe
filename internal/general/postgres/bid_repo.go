package postgres

import (
	"context"
	"fmt"

	"ride-market/internal/domain/money"
	"ride-market/internal/domain/request"
	"ride-market/internal/ports"

	"github.com/jackc/pgx/v5"
)

// BidRepo persists driver bids using pgx and plain SQL.
type BidRepo struct{}

// NewBidRepo constructs a new BidRepo.
func NewBidRepo() ports.BidRepository {
	return &BidRepo{}
}

// Add inserts a new request_bids row.
func (repo *BidRepo) Add(ctx context.Context, b *request.DriverBid) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO request_bids (
			request_id, driver_id, vehicle_id, price_minor, message, status
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`,
		b.RequestID,
		b.DriverID,
		b.VehicleID,
		int64(b.Price),
		b.Message,
		b.Status.String(), // "PENDING"
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}

	return nil
}

// ListByRequest returns every bid of a request, oldest first.
func (repo *BidRepo) ListByRequest(ctx context.Context, requestID string) ([]*request.DriverBid, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, request_id, driver_id, vehicle_id, price_minor, message, status, created_at
		FROM request_bids
		WHERE request_id = $1
		ORDER BY created_at, id
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("query bids: %w", err)
	}
	defer rows.Close()

	var out []*request.DriverBid
	for rows.Next() {
		var (
			b      request.DriverBid
			price  int64
			status string
		)
		if err := rows.Scan(&b.ID, &b.RequestID, &b.DriverID, &b.VehicleID, &price, &b.Message, &status, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		b.Price = money.Amount(price)
		b.Status = request.BidStatus(status)
		out = append(out, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

// UpdateStatus sets a bid's status. The accept path calls this once for the
// winner and once per rejected sibling, all inside one transaction.
func (repo *BidRepo) UpdateStatus(ctx context.Context, bidID string, status request.BidStatus) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE request_bids
		SET status = $1
		WHERE id = $2
	`, status.String(), bidID)
	if err != nil {
		return fmt.Errorf("update bid status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}
