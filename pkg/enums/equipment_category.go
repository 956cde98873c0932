package enums

import "fmt"

// EquipmentCategory groups owned equipment; substitution alternatives are
// proposed within the shortfall item's category.
type EquipmentCategory string

const (
	EquipmentCategoryLighting  EquipmentCategory = "lighting"
	EquipmentCategorySound     EquipmentCategory = "sound"
	EquipmentCategoryVideo     EquipmentCategory = "video"
	EquipmentCategoryStage     EquipmentCategory = "stage"
	EquipmentCategoryPower     EquipmentCategory = "power"
	EquipmentCategoryTransport EquipmentCategory = "transport"
)

var validEquipmentCategories = []EquipmentCategory{
	EquipmentCategoryLighting,
	EquipmentCategorySound,
	EquipmentCategoryVideo,
	EquipmentCategoryStage,
	EquipmentCategoryPower,
	EquipmentCategoryTransport,
}

func (c EquipmentCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known EquipmentCategory.
func (c EquipmentCategory) IsValid() bool {
	for _, candidate := range validEquipmentCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseEquipmentCategory converts raw input into an EquipmentCategory.
func ParseEquipmentCategory(value string) (EquipmentCategory, error) {
	for _, candidate := range validEquipmentCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid equipment category %q", value)
}
