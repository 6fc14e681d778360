package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kjstillabower/vehicles-api/internal/models"
)

// ErrInvalidCar is wrapped by every car validation failure.
var ErrInvalidCar = errors.New("invalid car")

// ErrInvalidID is returned when a path or query identifier is not a positive integer.
var ErrInvalidID = errors.New("id must be a positive integer")

// Error names the offending field. errors.Is(err, ErrInvalidCar) holds for every *Error.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *Error) Unwrap() error {
	return ErrInvalidCar
}

func invalid(field, reason string) error {
	return &Error{Field: field, Reason: reason}
}

// ValidateCar checks the fields a car must carry before it is stored and returns a
// normalized copy: strings trimmed, manufacturer name filled from the registry.
// Identifier, timestamps and enrichment fields are ignored.
func ValidateCar(car models.Car) (models.Car, error) {
	d := &car.Details
	if d.Manufacturer.Code <= 0 {
		return models.Car{}, invalid("details.manufacturer.code", "is required")
	}
	name, ok := models.LookupManufacturer(d.Manufacturer.Code)
	if !ok {
		return models.Car{}, invalid("details.manufacturer.code", fmt.Sprintf("unknown manufacturer %d", d.Manufacturer.Code))
	}
	given := strings.TrimSpace(d.Manufacturer.Name)
	if given != "" && !strings.EqualFold(given, name) {
		return models.Car{}, invalid("details.manufacturer.name", fmt.Sprintf("%q does not match code %d", given, d.Manufacturer.Code))
	}
	d.Manufacturer.Name = name

	d.Model = strings.TrimSpace(d.Model)
	if d.Model == "" {
		return models.Car{}, invalid("details.model", "is required")
	}
	if d.Mileage < 0 {
		return models.Car{}, invalid("details.mileage", "must be non-negative")
	}
	if d.NumberOfDoors < 0 {
		return models.Car{}, invalid("details.numberOfDoors", "must be non-negative")
	}
	if d.ModelYear < 0 {
		return models.Car{}, invalid("details.modelYear", "must be non-negative")
	}
	if d.ProductionYear < 0 {
		return models.Car{}, invalid("details.productionYear", "must be non-negative")
	}
	d.ExternalColor = strings.TrimSpace(d.ExternalColor)
	d.Body = strings.TrimSpace(d.Body)
	d.Engine = strings.TrimSpace(d.Engine)
	d.FuelType = strings.TrimSpace(d.FuelType)

	if !car.Condition.Valid() {
		return models.Car{}, invalid("condition", "must be NEW or USED")
	}
	if car.Location.Lat < -90 || car.Location.Lat > 90 {
		return models.Car{}, invalid("location.lat", "must be within [-90, 90]")
	}
	if car.Location.Lon < -180 || car.Location.Lon > 180 {
		return models.Car{}, invalid("location.lon", "must be within [-180, 180]")
	}
	return car, nil
}

// ParseID parses a positive int64 identifier.
func ParseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidID
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
