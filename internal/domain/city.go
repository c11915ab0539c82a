package domain

import "strings"

// MaxCityLength is the longest city, in characters, a rating can store.
const MaxCityLength = 100

// ExtractCity returns the second comma-separated segment of address, trimmed.
// It reports false when the address has fewer than two segments or the
// segment is blank. Addresses are expected as "<street>, <city>, ...".
func ExtractCity(address string) (string, bool) {
	parts := strings.Split(address, ",")
	if len(parts) < 2 {
		return "", false
	}
	city := strings.TrimSpace(parts[1])
	if city == "" {
		return "", false
	}
	return city, true
}
