package types

import "strings"

// Preference category constants. Categories are coarse labels the extractor
// assigns; anything outside this list is folded into CategoryUncategorized
// rather than rejected.
const (
	CategoryTravel        = "travel"
	CategoryFood          = "food"
	CategorySchedule      = "schedule"
	CategoryEntertainment = "entertainment"
	CategoryWork          = "work"
	CategoryHealth        = "health"
	CategorySocial        = "social"
	CategoryHobby         = "hobby"
	CategoryUncategorized = "uncategorized"
)

// ValidCategories contains all recognized category values.
var ValidCategories = []string{
	CategoryTravel,
	CategoryFood,
	CategorySchedule,
	CategoryEntertainment,
	CategoryWork,
	CategoryHealth,
	CategorySocial,
	CategoryHobby,
	CategoryUncategorized,
}

// IsValidCategory checks whether the given category is recognized.
func IsValidCategory(category string) bool {
	for _, c := range ValidCategories {
		if category == c {
			return true
		}
	}
	return false
}

// NormalizeCategory lowercases and trims a category label, mapping anything
// outside the allow-list to CategoryUncategorized.
func NormalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" || !IsValidCategory(category) {
		return CategoryUncategorized
	}
	return category
}
