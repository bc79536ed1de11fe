package postgres

import (
	"context"

	"ride-market/internal/domain/request"
	"ride-market/internal/ports"
)

// EventRepo persists request events using pgx and plain SQL.
type EventRepo struct{}

// NewEventRepo constructs a new EventRepo.
func NewEventRepo() ports.EventRepository {
	return &EventRepo{}
}

// Append inserts a new request_events row.
func (repo *EventRepo) Append(ctx context.Context, event *request.Event) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	// validate event before inserting
	if err := event.Validate(); err != nil {
		return err
	}

	// serialize event data to JSON
	data, err := event.DataJSON()
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO request_events (request_id, event_type, event_data)
		VALUES ($1, $2, $3::jsonb)
		RETURNING id, created_at
	`,
		event.RequestID,
		event.Type.String(),
		string(data),
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return err
	}

	return nil
}
