package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"ride-market/internal/domain/directory"
	"ride-market/internal/ports"

	"github.com/jackc/pgx/v5"
)

// DirectoryRepo resolves driver and vehicle display records using pgx and
// plain SQL. Lookups run outside the marketplace transaction; a missing
// record is not an error.
type DirectoryRepo struct{}

// NewDirectoryRepo constructs a new DirectoryRepo.
func NewDirectoryRepo() ports.DirectoryRepository {
	return &DirectoryRepo{}
}

// Vehicle returns one vehicle by id, or (nil, nil) when absent.
func (repo *DirectoryRepo) Vehicle(ctx context.Context, id string) (*directory.Vehicle, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var (
		out   directory.Vehicle
		attrs []byte
	)
	err = tx.QueryRow(ctx, `
		SELECT id, driver_id, brand, model, plate, color, attrs, created_at, updated_at
		FROM vehicles
		WHERE id = $1
	`, id).Scan(
		&out.ID, &out.DriverID, &out.Brand, &out.Model, &out.Plate, &out.Color,
		&attrs, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &out.Attrs); err != nil {
			return nil, err
		}
	}

	return &out, nil
}

// Driver returns one driver profile by id, or (nil, nil) when absent.
func (repo *DirectoryRepo) Driver(ctx context.Context, id string) (*directory.DriverProfile, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var out directory.DriverProfile
	err = tx.QueryRow(ctx, `
		SELECT id, name, rating
		FROM drivers
		WHERE id = $1
	`, id).Scan(&out.ID, &out.Name, &out.Rating)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &out, nil
}
