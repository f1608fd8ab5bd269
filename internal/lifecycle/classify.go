package lifecycle

import (
	"strings"

	"gta-grind-tracker/internal/model"
)

// IsSafe reports whether a passive activity is collected like a safe
// rather than sold. Detection matches "safe" in any tag or in the name.
func IsSafe(a model.Activity) bool {
	for _, tag := range a.Tags {
		if strings.Contains(strings.ToLower(tag), "safe") {
			return true
		}
	}
	return strings.Contains(strings.ToLower(a.Name), "safe")
}
