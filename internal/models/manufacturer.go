package models

// Manufacturers is the fixed set of makers a car may reference, keyed by code.
var Manufacturers = map[int]string{
	100: "Audi",
	101: "Chevrolet",
	102: "Ford",
	103: "BMW",
	104: "Dodge",
}

// LookupManufacturer returns the registered name for code.
func LookupManufacturer(code int) (string, bool) {
	name, ok := Manufacturers[code]
	return name, ok
}
