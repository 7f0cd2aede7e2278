// Package dbstore is the shared GORM/sqlite connection and schema layer
// underneath the three database-backed strategies. It owns the config, locations, and metadata tables
// every variant agrees on; each strategy package adds its own table(s) on
// top (documents, or history) via its own AutoMigrate call against the
// same *gorm.DB.
//
// Uses the usual gorm.Open + AutoMigrate + pooled *sql.DB connection style,
// with gorm.io/driver/sqlite so the whole database lives in a single local
// file instead of a server connection string.
package dbstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rerupp/weatherhist/datadir"
	"github.com/rerupp/weatherhist/internal/logging"
	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/registry"
	"github.com/rerupp/weatherhist/werrors"
)

// ConfigRow is the single persisted row of the config table. The
// Variant is written once at init and never changed afterward.
type ConfigRow struct {
	ID       uint   `gorm:"primaryKey"`
	Variant  string `gorm:"not null"`
	Compress bool   `gorm:"not null"`
}

// TableName pins the GORM table name so it matches the documented table name regardless of
// pluralization conventions.
func (ConfigRow) TableName() string { return "config" }

// LocationRow is the locations table row.
type LocationRow struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Alias     string `gorm:"uniqueIndex;not null"`
	Longitude string
	Latitude  string
	TZ        string
}

func (LocationRow) TableName() string { return "locations" }

// Location converts a stored row back to the canonical value type.
func (r LocationRow) Location() model.Location {
	return model.Location{Name: r.Name, Alias: r.Alias, Longitude: r.Longitude, Latitude: r.Latitude, TZ: r.TZ}
}

// MetadataRow is the metadata table row: one row per stored history,
// unique on (lid, date).
type MetadataRow struct {
	ID        uint `gorm:"primaryKey"`
	LID       uint `gorm:"not null;uniqueIndex:idx_metadata_lid_date"`
	Date      string `gorm:"not null;uniqueIndex:idx_metadata_lid_date"` // ISO "YYYY-MM-DD"
	StoreSize int64
	Size      int64
	MTime     int64 // unix seconds
}

func (MetadataRow) TableName() string { return "metadata" }

// Store wraps the shared schema and connection. Strategy packages embed it
// and add their own AutoMigrate targets.
type Store struct {
	DB  *gorm.DB
	log *logrus.Entry
}

// gormLogWriter adapts logrus to GORM's io.Writer-based logger interface so
// SQL errors and slow-query warnings flow through the same structured
// stream as everything else.
type gormLogWriter struct {
	log *logrus.Entry
}

func (w gormLogWriter) Printf(format string, args ...interface{}) {
	w.log.Debugf(format, args...)
}

// Open establishes the sqlite connection against the single database file
// under dir and ensures the shared config/locations/metadata tables exist.
// Open is idempotent since AutoMigrate only adds what's missing.
func Open(dir *datadir.Directory) (*Store, error) {
	file := dir.DatabaseFile()
	log := logging.With("dbstore")

	gcfg := &gorm.Config{
		Logger: gormlogger.New(gormLogWriter{log: log}, gormlogger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      gormlogger.Warn,
		}),
	}

	db, err := gorm.Open(sqlite.Open(file.Path()), gcfg)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrIOError, "dbstore.Open", file.Path(), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrIOError, "dbstore.Open", file.Path(), err)
	}
	// A single on-disk sqlite file serializes writers regardless of pool
	// size; one connection avoids SQLITE_BUSY under the loader's producer
	// goroutines writing through the single consumer.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&ConfigRow{}, &LocationRow{}, &MetadataRow{}); err != nil {
		return nil, werrors.Wrap(werrors.ErrSchemaError, "dbstore.Open", file.Path(), err)
	}

	return &Store{DB: db, log: log}, nil
}

// InitConfig writes the single config row. It fails with ErrAlreadyExists
// if a config row is already present, since the variant is immutable once
// chosen.
func (s *Store) InitConfig(cfg model.DbConfig) error {
	var count int64
	if err := s.DB.Model(&ConfigRow{}).Count(&count).Error; err != nil {
		return werrors.Wrap(werrors.ErrSchemaError, "dbstore.InitConfig", "", err)
	}
	if count > 0 {
		return werrors.New(werrors.ErrAlreadyExists, "dbstore.InitConfig", "config row")
	}
	row := ConfigRow{Variant: string(cfg.Variant), Compress: cfg.Compress}
	if err := s.DB.Create(&row).Error; err != nil {
		return werrors.Wrap(werrors.ErrSchemaError, "dbstore.InitConfig", "", err)
	}
	return nil
}

// Config reads the persisted DbConfig.
func (s *Store) Config() (model.DbConfig, error) {
	var row ConfigRow
	if err := s.DB.First(&row).Error; err != nil {
		return model.DbConfig{}, werrors.Wrap(werrors.ErrNotFound, "dbstore.Config", "config row", err)
	}
	return model.DbConfig{Variant: model.DbVariant(row.Variant), Compress: row.Compress}, nil
}

// Drop removes every managed table, reclaiming space via VACUUM. It does
// not delete the underlying file; callers that want a full file delete
// handle that themselves against datadir.Directory.
func (s *Store) Drop(extra ...interface{}) error {
	targets := append([]interface{}{&MetadataRow{}, &LocationRow{}, &ConfigRow{}}, extra...)
	if err := s.DB.Migrator().DropTable(targets...); err != nil {
		return werrors.Wrap(werrors.ErrSchemaError, "dbstore.Drop", "", err)
	}
	if err := s.DB.Exec("VACUUM").Error; err != nil {
		return werrors.Wrap(werrors.ErrIOError, "dbstore.Drop", "vacuum", err)
	}
	return nil
}

// UpsertLocation inserts loc into the locations table if its alias is not
// already present, returning the row id either way.
func (s *Store) UpsertLocation(loc model.Location) (uint, error) {
	var row LocationRow
	err := s.DB.Where("alias = ?", loc.Alias).First(&row).Error
	if err == nil {
		return row.ID, nil
	}
	row = LocationRow{Name: loc.Name, Alias: loc.Alias, Longitude: loc.Longitude, Latitude: loc.Latitude, TZ: loc.TZ}
	if err := s.DB.Create(&row).Error; err != nil {
		return 0, werrors.Wrap(werrors.ErrSchemaError, "dbstore.UpsertLocation", loc.Alias, err)
	}
	return row.ID, nil
}

// LocationByAlias looks up the stored location row id, ErrNotFound if
// unregistered in the database.
func (s *Store) LocationByAlias(alias string) (LocationRow, error) {
	var row LocationRow
	if err := s.DB.Where("alias = ?", alias).First(&row).Error; err != nil {
		return LocationRow{}, werrors.New(werrors.ErrNotFound, "dbstore.LocationByAlias", alias)
	}
	return row, nil
}

// SearchLocations queries the locations table directly via SQL, the
// database-backed counterpart to registry.Registry.Search. Case-insensitive
// criteria translate "*" to registry.SQLPattern's "%" and match with LIKE,
// which sqlite treats as case-insensitive for ASCII; case-sensitive criteria
// use sqlite's native GLOB syntax, which already speaks "*" unchanged.
func (s *Store) SearchLocations(c registry.Criteria) ([]LocationRow, error) {
	q := s.DB.Model(&LocationRow{})
	if !c.MatchesAll() {
		op := "GLOB"
		if c.CaseInsensitive {
			op = "LIKE"
		}
		var clauses []string
		var args []interface{}
		for _, pat := range c.Filters {
			sqlPat := pat
			if c.CaseInsensitive {
				sqlPat = registry.SQLPattern(pat)
			}
			clauses = append(clauses, fmt.Sprintf("(name %s ? OR alias %s ?)", op, op))
			args = append(args, sqlPat, sqlPat)
		}
		q = q.Where(strings.Join(clauses, " OR "), args...)
	}
	if c.SortByName {
		q = q.Order("name")
	}
	var rows []LocationRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, werrors.Wrap(werrors.ErrSchemaError, "dbstore.SearchLocations", "", err)
	}
	return rows, nil
}

// ExistingDates returns the set of ISO date strings already recorded for
// lid, used by every backend's idempotent add_histories path.
func (s *Store) ExistingDates(lid uint) (map[string]bool, error) {
	var dates []string
	if err := s.DB.Model(&MetadataRow{}).Where("lid = ?", lid).Pluck("date", &dates).Error; err != nil {
		return nil, werrors.Wrap(werrors.ErrSchemaError, "dbstore.ExistingDates", "", err)
	}
	seen := make(map[string]bool, len(dates))
	for _, d := range dates {
		seen[d] = true
	}
	return seen, nil
}

// InsertMetadata inserts one metadata row and returns its id.
func (s *Store) InsertMetadata(lid uint, date string, storeSize, size int64, mtime time.Time) (uint, error) {
	row := MetadataRow{LID: lid, Date: date, StoreSize: storeSize, Size: size, MTime: mtime.Unix()}
	if err := s.DB.Create(&row).Error; err != nil {
		return 0, werrors.Wrap(werrors.ErrSchemaError, "dbstore.InsertMetadata", date, err)
	}
	return row.ID, nil
}

// MetadataTotals sums raw and store byte accounting for lid, for
// history_summaries.
func (s *Store) MetadataTotals(lid uint) (count int, rawSize, storeSize int64, err error) {
	var rows []MetadataRow
	if dbErr := s.DB.Where("lid = ?", lid).Find(&rows).Error; dbErr != nil {
		return 0, 0, 0, werrors.Wrap(werrors.ErrSchemaError, "dbstore.MetadataTotals", "", dbErr)
	}
	for _, r := range rows {
		rawSize += r.Size
		storeSize += r.StoreSize
	}
	return len(rows), rawSize, storeSize, nil
}

// FileSize returns the on-disk size of the database file, for stat().
func (s *Store) FileSize(dir *datadir.Directory) int64 {
	return dir.DatabaseFile().Size()
}

// Close releases the underlying *sql.DB connection.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
