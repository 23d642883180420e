package enums

import "fmt"

// FavoriteKind is the catalog a favorite belongs to.
type FavoriteKind string

const (
	FavoriteKindSigns     FavoriteKind = "signs"
	FavoriteKindQuestions FavoriteKind = "questions"
)

var validFavoriteKinds = []FavoriteKind{
	FavoriteKindSigns,
	FavoriteKindQuestions,
}

// String implements fmt.Stringer.
func (f FavoriteKind) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FavoriteKind.
func (f FavoriteKind) IsValid() bool {
	for _, candidate := range validFavoriteKinds {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFavoriteKind converts raw input into a FavoriteKind.
func ParseFavoriteKind(value string) (FavoriteKind, error) {
	for _, candidate := range validFavoriteKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid favorite kind %q", value)
}
