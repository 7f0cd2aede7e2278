package model

import "time"

// HistorySummary reports per-location storage accounting. Backends
// populate it differently: archive/hybrid derive OverallSize from the ZIP
// file size, document reports the whole database file size, and normalized
// splits the database file size across locations by history row count.
type HistorySummary struct {
	Alias       string
	Count       int
	RawSize     int64
	StoreSize   int64
	OverallSize int64
}

// HistoryDates is the per-location folded date coverage returned by
// history_dates.
type HistoryDates struct {
	Alias  string
	Ranges []DateRange
}

// DailyHistories is the result of daily_histories: a location plus its
// histories in the requested range, ordered by date ascending with no
// duplicate dates.
type DailyHistories struct {
	Location   Location
	Histories  []History
}

// ArchiveMetadata describes one stored history as seen while iterating an
// archive. It is ephemeral: produced by iteration, never persisted
// as-is outside the metadata table.
type ArchiveMetadata struct {
	Date             Date
	CompressedSize   int64
	UncompressedSize int64
	ModTime          time.Time
}

// DbVariant names which of the three database storage strategies a DbConfig
// selects.
type DbVariant string

const (
	DbVariantHybrid     DbVariant = "hybrid"
	DbVariantDocument   DbVariant = "document"
	DbVariantNormalized DbVariant = "normalize"
)

// DbConfig is the tagged variant persisted once into the config table at
// init and never mutated afterward.
type DbConfig struct {
	Variant  DbVariant
	Compress bool // only meaningful when Variant == DbVariantDocument
}

// DbInfo is the administrative stat() report: the persisted DbConfig plus
// file-level accounting.
type DbInfo struct {
	Config        DbConfig
	FileSize      int64
	LocationCount int
	HistoryCount  int
}
