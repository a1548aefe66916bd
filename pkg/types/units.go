package types

// Weight units accepted for input and display. Storage is always kilograms.
const (
	UnitKg = "kg"
	UnitLb = "lb"
)

const kgPerLb = 0.45359237

// ToKg converts a value in unit to kilograms.
func ToKg(value float64, unit string) (float64, error) {
	switch unit {
	case UnitKg, "":
		return value, nil
	case UnitLb:
		return value * kgPerLb, nil
	default:
		return 0, ErrInvalidUnit
	}
}

// FromKg converts kilograms to unit.
func FromKg(kg float64, unit string) (float64, error) {
	switch unit {
	case UnitKg, "":
		return kg, nil
	case UnitLb:
		return kg / kgPerLb, nil
	default:
		return 0, ErrInvalidUnit
	}
}
