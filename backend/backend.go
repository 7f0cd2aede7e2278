// Package backend defines the capability interface every weather storage
// strategy implements: archive-only, hybrid, document, and normalized.
// Callers depend only on this interface — dynamic dispatch expressed as a
// Go interface composing multiple storage-specific capabilities behind one
// consuming surface, rather than any inheritance hierarchy.
package backend

import (
	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/registry"
)

// DBBackend is implemented by the three database-backed strategies
// (hybrid, document, normalized) in addition to Backend: administrative
// operations the archive-only strategy has no database to perform. The admin
// CLI type-asserts a Backend to DBBackend before exposing these commands.
type DBBackend interface {
	Backend

	// Stat returns the persisted DbConfig plus location/history/file-size
	// accounting.
	Stat() (model.DbInfo, error)

	// Drop removes every database-managed table without touching the
	// archives. The tables are recreated the next time a backend is opened
	// on the same data directory, so a Reload runs against a fresh backend.
	Drop() error

	// Reload rebuilds the database tables from the archives using the
	// threaded loader with the given worker count, returning the number of
	// records newly mirrored.
	Reload(workers int) (int, error)
}

// Backend is the single polymorphic interface the public API and the CLI
// front ends consume. All four implementations share identical
// semantics; only the storage strategy and byte-size accounting differ.
type Backend interface {
	// DailyHistories returns the location and its histories within the
	// inclusive range, ordered by date ascending. Fails with ErrNotFound
	// if the location is unknown.
	DailyHistories(alias string, dates model.DateRange) (model.DailyHistories, error)

	// HistoryDates returns, for each matched location, the date set
	// collapsed into DateRanges.
	HistoryDates(criteria registry.Criteria) ([]model.HistoryDates, error)

	// HistorySummaries returns per-location counts and byte totals.
	HistorySummaries(criteria registry.Criteria) ([]model.HistorySummary, error)

	// Locations returns every location matching criteria.
	Locations(criteria registry.Criteria) ([]model.Location, error)

	// Search is an alias for Locations, used by client callers
	// that need to disambiguate a location before calling DailyHistories;
	// it has identical semantics to Locations.
	Search(criteria registry.Criteria) ([]model.Location, error)

	// AddHistories stores dh.Histories for dh.Location, returning the
	// count of newly added records (idempotent: re-adding returns 0).
	AddHistories(dh model.DailyHistories) (int, error)

	// AddLocation registers a new location with the backend.
	AddLocation(loc model.Location) error
}
