package match

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeName case-folds and trims a component name so tallies and lookups
// treat "Victory Token" and "victory token" as the same piece.
func NormalizeName(name string) string {
	// cases.Caser carries state; build one per call.
	return cases.Fold().String(strings.TrimSpace(name))
}
