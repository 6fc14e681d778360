package models

import "time"

// Condition is the sale condition of a car.
type Condition string

const (
	ConditionNew  Condition = "NEW"
	ConditionUsed Condition = "USED"
)

// Valid reports whether c is one of the known conditions.
func (c Condition) Valid() bool {
	return c == ConditionNew || c == ConditionUsed
}

// Manufacturer identifies a car maker by numeric code.
type Manufacturer struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

// Details is the descriptive attribute bundle of a car.
type Details struct {
	Manufacturer   Manufacturer `json:"manufacturer"`
	Model          string       `json:"model"`
	Mileage        int          `json:"mileage"`
	ExternalColor  string       `json:"externalColor"`
	Body           string       `json:"body"`
	Engine         string       `json:"engine"`
	FuelType       string       `json:"fuelType"`
	ModelYear      int          `json:"modelYear"`
	ProductionYear int          `json:"productionYear"`
	NumberOfDoors  int          `json:"numberOfDoors"`
}

// Location holds the stored coordinates plus the address fields filled in at read time.
type Location struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Address string  `json:"address,omitempty"`
	City    string  `json:"city,omitempty"`
	State   string  `json:"state,omitempty"`
	Zip     string  `json:"zip,omitempty"`
}

// WithAddress returns a copy of l with the address fields set from a.
func (l Location) WithAddress(a Address) Location {
	l.Address = a.Address
	l.City = a.City
	l.State = a.State
	l.Zip = a.Zip
	return l
}

// Coordinates returns l without the enrichment fields.
func (l Location) Coordinates() Location {
	return Location{Lat: l.Lat, Lon: l.Lon}
}

// Car is the vehicle record. Price and the address part of Location are never persisted.
type Car struct {
	ID         int64     `json:"id"`
	Details    Details   `json:"details"`
	Condition  Condition `json:"condition"`
	Location   Location  `json:"location"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Price      string    `json:"price,omitempty"`
}

// Stored returns the persistable part of c (no read-time enrichment).
func (c Car) Stored() Car {
	c.Price = ""
	c.Location = c.Location.Coordinates()
	return c
}

// CarList is the response envelope for collections of cars.
type CarList struct {
	Items []Car `json:"items"`
}
