// Package model holds the canonical weather data types shared by every
// backend and by the archive/registry/loader/migrate packages: Location,
// History, DateRange, and the summary/config value types. These are plain
// value types with no backend-specific behavior: plain data types, no
// methods beyond small formatting helpers.
package model

import "strings"

// Location is a single weather station catalogue entry. It is immutable
// once loaded by the registry and is shared by reference into every query
// result that names it.
type Location struct {
	Name      string `json:"name"`
	Alias     string `json:"alias"`
	Longitude string `json:"longitude"`
	Latitude  string `json:"latitude"`
	TZ        string `json:"tz"`
}

// NormalizedAlias returns the alias in its canonical lowercase form, with
// surrounding whitespace trimmed. The registry applies it to every alias on
// load and on AddLocation, and callers use it on user-supplied text.
func NormalizedAlias(alias string) string {
	return strings.ToLower(strings.TrimSpace(alias))
}

// ValidAlias reports whether alias is usable as a ZIP entry prefix and
// filesystem file stem: non-empty, already lowercase, and free of path
// separators.
func ValidAlias(alias string) bool {
	if alias == "" || alias != NormalizedAlias(alias) {
		return false
	}
	return !strings.ContainsAny(alias, "/\\")
}

// Catalogue is the on-disk shape of locations.json: a single top-level
// array under the "locations" key.
type Catalogue struct {
	Locations []Location `json:"locations"`
}
