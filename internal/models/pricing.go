package models

import (
	"fmt"
	"time"
)

// Price is the pricing-service view of a vehicle's current price.
type Price struct {
	Currency  string  `json:"currency"`
	Price     float64 `json:"price"`
	VehicleID int64   `json:"vehicleId"`
}

// String renders the price the way it is shown on a car, e.g. "USD 23456.78".
func (p Price) String() string {
	return fmt.Sprintf("%s %.2f", p.Currency, p.Price)
}

// Address is a street address resolved from coordinates by the maps service.
type Address struct {
	Address    string    `json:"address"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	Zip        string    `json:"zip"`
	ResolvedAt time.Time `json:"resolvedAt,omitempty"`
}
