package enums

import "fmt"

// EquipmentRefType says whether a requirement points at a single item or a kit.
type EquipmentRefType string

const (
	EquipmentRefItem EquipmentRefType = "item"
	EquipmentRefKit  EquipmentRefType = "kit"
)

var validEquipmentRefTypes = []EquipmentRefType{
	EquipmentRefItem,
	EquipmentRefKit,
}

// String implements fmt.Stringer.
func (e EquipmentRefType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EquipmentRefType.
func (e EquipmentRefType) IsValid() bool {
	for _, candidate := range validEquipmentRefTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEquipmentRefType converts raw input into an EquipmentRefType.
func ParseEquipmentRefType(value string) (EquipmentRefType, error) {
	for _, candidate := range validEquipmentRefTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid equipment ref type %q", value)
}
