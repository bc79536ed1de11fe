package directory

import (
	"errors"
	"maps"
	"strings"
	"time"
)

// Attrs is a JSON-friendly bag for vehicle attributes (year, seats, images, etc.).
type Attrs map[string]any

// Vehicle is the display record the marketplace resolves for a bid. It is
// presentation data only; no marketplace invariant depends on it.
type Vehicle struct {
	ID        string
	DriverID  string
	Brand     string
	Model     string
	Plate     string
	Color     string
	Attrs     Attrs
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DriverProfile is the display record for a bidding driver.
type DriverProfile struct {
	ID     string
	Name   string
	Rating float64
}

var (
	ErrDriverIDRequired = errors.New("driver id is required")
	ErrPlateRequired    = errors.New("vehicle plate is required")
)

// NewVehicle creates a directory vehicle record.
func NewVehicle(driverID, brand, model, plate, color string, attrs Attrs) (*Vehicle, error) {
	if driverID = strings.TrimSpace(driverID); driverID == "" {
		return nil, ErrDriverIDRequired
	}
	if plate = strings.TrimSpace(plate); plate == "" {
		return nil, ErrPlateRequired
	}

	now := time.Now().UTC()
	return &Vehicle{
		DriverID:  driverID,
		Brand:     strings.TrimSpace(brand),
		Model:     strings.TrimSpace(model),
		Plate:     plate,
		Color:     strings.TrimSpace(color),
		Attrs:     cloneAttrs(attrs),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Label renders "Brand Model (Plate)" for notifications and views.
func (v *Vehicle) Label() string {
	parts := make([]string, 0, 2)
	if v.Brand != "" {
		parts = append(parts, v.Brand)
	}
	if v.Model != "" {
		parts = append(parts, v.Model)
	}
	label := strings.Join(parts, " ")
	if label == "" {
		return v.Plate
	}
	return label + " (" + v.Plate + ")"
}

func cloneAttrs(src Attrs) Attrs {
	if src == nil {
		return Attrs{}
	}
	dst := make(Attrs, len(src))
	maps.Copy(dst, src)
	return dst
}
