package enums

import "fmt"

// OfferUnit is the billing unit of an offer line.
type OfferUnit string

const (
	OfferUnitPiece   OfferUnit = "piece"
	OfferUnitHour    OfferUnit = "hour"
	OfferUnitDay     OfferUnit = "day"
	OfferUnitFlat    OfferUnit = "flat"
	OfferUnitPerson  OfferUnit = "person"
	OfferUnitPackage OfferUnit = "package"
)

var validOfferUnits = []OfferUnit{
	OfferUnitPiece,
	OfferUnitHour,
	OfferUnitDay,
	OfferUnitFlat,
	OfferUnitPerson,
	OfferUnitPackage,
}

func (u OfferUnit) String() string {
	return string(u)
}

// IsValid reports whether the value is a known OfferUnit.
func (u OfferUnit) IsValid() bool {
	for _, candidate := range validOfferUnits {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseOfferUnit converts raw input into an OfferUnit.
func ParseOfferUnit(value string) (OfferUnit, error) {
	for _, candidate := range validOfferUnits {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offer unit %q", value)
}
