package constants

// Category is a material category the takeoff recognizes.
type Category string

const (
	Pipe      Category = "Pipe"
	Fitting   Category = "Fitting"
	Valve     Category = "Valve"
	Equipment Category = "Equipment"
	Specialty Category = "Specialty"
)

// UnknownCategory is what the parser records when the model gives no usable category.
// It is not a member of the known set; exports file it with the other categories.
const UnknownCategory = "Unknown"

// allCategories is the canonical grouping order used by every export encoding.
var allCategories = []Category{
	Pipe,
	Fitting,
	Valve,
	Equipment,
	Specialty,
}

// Categories returns the known categories in grouping order.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// IsKnown reports whether s is exactly one of the known categories.
// Matching is case-sensitive: "pipe" is not Pipe.
func IsKnown(s string) bool {
	for _, cat := range allCategories {
		if s == string(cat) {
			return true
		}
	}
	return false
}
