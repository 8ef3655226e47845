package kp

// Category is the display severity derived from a Kp value.
// The ordinal (0..5) is what the widget card persists.
type Category int

const (
	CategoryQuiet Category = iota
	CategoryMinor
	CategoryModerate
	CategoryStrong
	CategorySevere
	CategoryExtreme
)

var categoryKeys = [...]string{"quiet", "minor", "moderate", "strong", "severe", "extreme"}

// CategoryOf maps a Kp value onto the NOAA-aligned display bands.
func CategoryOf(kp float64) Category {
	switch {
	case kp >= 9:
		return CategoryExtreme
	case kp >= 7:
		return CategorySevere
	case kp >= 6:
		return CategoryStrong
	case kp >= 5:
		return CategoryModerate
	case kp >= 4:
		return CategoryMinor
	default:
		return CategoryQuiet
	}
}

// ClampCategory bounds an ordinal read from storage.
func ClampCategory(ordinal int) Category {
	if ordinal < int(CategoryQuiet) {
		return CategoryQuiet
	}
	if ordinal > int(CategoryExtreme) {
		return CategoryExtreme
	}
	return Category(ordinal)
}

func (c Category) String() string {
	return categoryKeys[ClampCategory(int(c))]
}
