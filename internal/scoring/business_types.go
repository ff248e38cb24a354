package scoring

import "strings"

const (
	tierSetAside  = 15
	tierPreferred = 10
	tierSmall     = 5
)

// Set-aside designations that grant preferential contract eligibility.
var setAsideKeywords = []string{
	"8(a)",
	"hubzone",
	"service disabled veteran",
	"service-disabled veteran",
	"sdvosb",
	"women owned",
	"woman owned",
	"women-owned",
	"woman-owned",
	"wosb",
	"edwosb",
}

var preferredKeywords = []string{
	"veteran owned",
	"veteran-owned",
	"vosb",
	"minority owned",
	"minority-owned",
	"disadvantaged",
	"native american",
	"tribally owned",
}

var smallKeywords = []string{
	"small business",
	"small disadvantaged",
	"self-certified small",
}

// businessTypeTier returns the highest tier among the entity's designations.
func businessTypeTier(types []string) int {
	best := 0
	for _, raw := range types {
		desc := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case containsAny(desc, setAsideKeywords):
			return tierSetAside
		case containsAny(desc, preferredKeywords):
			best = max(best, tierPreferred)
		case containsAny(desc, smallKeywords):
			best = max(best, tierSmall)
		}
	}
	return best
}

// containsAny checks if s contains any of the keywords.
func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
