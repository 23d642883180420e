package enums

import "fmt"

// PassType identifies a purchasable access pass.
type PassType string

const (
	PassTypeIndividual30 PassType = "individual_30_days"
	PassTypeIndividual90 PassType = "individual_90_days"
	PassTypeFamily90     PassType = "family_90_days"
)

var validPassTypes = []PassType{
	PassTypeIndividual30,
	PassTypeIndividual90,
	PassTypeFamily90,
}

// String implements fmt.Stringer.
func (p PassType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PassType.
func (p PassType) IsValid() bool {
	for _, candidate := range validPassTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePassType converts raw input into a PassType.
func ParsePassType(value string) (PassType, error) {
	for _, candidate := range validPassTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pass type %q", value)
}
