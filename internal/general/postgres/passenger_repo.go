package postgres

import (
	"context"
	"fmt"

	"ride-market/internal/domain/money"
	"ride-market/internal/domain/request"
	"ride-market/internal/ports"

	"github.com/jackc/pgx/v5"
)

// PassengerRepo persists passenger seat holdings using pgx and plain SQL.
type PassengerRepo struct{}

// NewPassengerRepo constructs a new PassengerRepo.
func NewPassengerRepo() ports.PassengerRepository {
	return &PassengerRepo{}
}

// Add inserts a passenger row. (request_id, user_id) is the primary key, so
// a rejoin after leave must go through Save, not Add.
func (repo *PassengerRepo) Add(ctx context.Context, p *request.Passenger) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO request_passengers (
			request_id, user_id, seats_held, status, current_share_minor, joined_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		p.RequestID,
		p.UserID,
		p.SeatsHeld,
		p.Status.String(),
		int64(p.CurrentShare),
		p.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("insert passenger: %w", err)
	}

	return nil
}

// ListByRequest returns every passenger row of a request, LEFT rows included,
// ordered by join time for deterministic remainder allocation.
func (repo *PassengerRepo) ListByRequest(ctx context.Context, requestID string) ([]*request.Passenger, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT request_id, user_id, seats_held, status, current_share_minor, joined_at, left_at
		FROM request_passengers
		WHERE request_id = $1
		ORDER BY joined_at, user_id
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("query passengers: %w", err)
	}
	defer rows.Close()

	var out []*request.Passenger
	for rows.Next() {
		var (
			p      request.Passenger
			status string
			share  int64
		)
		if err := rows.Scan(&p.RequestID, &p.UserID, &p.SeatsHeld, &status, &share, &p.JoinedAt, &p.LeftAt); err != nil {
			return nil, fmt.Errorf("scan passenger: %w", err)
		}
		p.Status = request.PassengerStatus(status)
		p.CurrentShare = money.Amount(share)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return out, nil
}

// Save persists membership fields after a leave or rejoin.
func (repo *PassengerRepo) Save(ctx context.Context, p *request.Passenger) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE request_passengers
		SET seats_held = $1,
		    status = $2,
		    joined_at = $3,
		    left_at = $4
		WHERE request_id = $5 AND user_id = $6
	`, p.SeatsHeld, p.Status.String(), p.JoinedAt, p.LeftAt, p.RequestID, p.UserID)
	if err != nil {
		return fmt.Errorf("save passenger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}

// UpdateShare writes one recomputed share. Called for every passenger whose
// share changed within the same transaction as the triggering mutation.
func (repo *PassengerRepo) UpdateShare(ctx context.Context, requestID, userID string, share money.Amount) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE request_passengers
		SET current_share_minor = $1
		WHERE request_id = $2 AND user_id = $3
	`, int64(share), requestID, userID)
	if err != nil {
		return fmt.Errorf("update share: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}
