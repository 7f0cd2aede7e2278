// Package normalizedbackend implements the normalized storage strategy:
// one column per History field in a history table, typed REAL for floats,
// INTEGER for ints and epoch-second timestamps, TEXT for strings. As with
// hybrid (and unlike document), the archive remains the primary durability
// store — AddHistories writes to the archive first and then mirrors
// into the database, logging (not failing) on any discrepancy between the
// two counts.
package normalizedbackend

import (
	"time"

	"gorm.io/gorm"

	"github.com/rerupp/weatherhist/archive"
	"github.com/rerupp/weatherhist/backend/dbstore"
	"github.com/rerupp/weatherhist/datadir"
	"github.com/rerupp/weatherhist/internal/logging"
	"github.com/rerupp/weatherhist/loader"
	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/registry"
	"github.com/rerupp/weatherhist/werrors"
)

func timeFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// historyRow is the history table: mid references metadata.id, and
// every History field gets its own nullable column.
type historyRow struct {
	MID uint `gorm:"primaryKey"`

	TemperatureHigh     *float64 `gorm:"type:real"`
	TemperatureLow      *float64 `gorm:"type:real"`
	TemperatureMean     *float64 `gorm:"type:real"`
	DewPoint            *float64 `gorm:"type:real"`
	Humidity            *float64 `gorm:"type:real"`
	PrecipitationChance *float64 `gorm:"type:real"`
	PrecipitationType   *string  `gorm:"type:text"`
	PrecipitationAmount *float64 `gorm:"type:real"`
	WindSpeed           *float64 `gorm:"type:real"`
	WindGust            *float64 `gorm:"type:real"`
	WindDirection       *int     `gorm:"type:integer"`
	CloudCover          *float64 `gorm:"type:real"`
	Pressure            *float64 `gorm:"type:real"`
	UVIndex             *float64 `gorm:"type:real"`
	SunriseT            *int64   `gorm:"column:sunrise_t;type:integer"`
	SunsetT             *int64   `gorm:"column:sunset_t;type:integer"`
	MoonPhase           *float64 `gorm:"type:real"`
	Visibility          *float64 `gorm:"type:real"`
	Description         *string  `gorm:"type:text"`
}

func (historyRow) TableName() string { return "history" }

// toRow converts a canonical History into its column-per-field row.
func toRow(mid uint, h model.History) historyRow {
	row := historyRow{
		MID:                 mid,
		TemperatureHigh:     h.TemperatureHigh,
		TemperatureLow:      h.TemperatureLow,
		TemperatureMean:     h.TemperatureMean,
		DewPoint:            h.DewPoint,
		Humidity:            h.Humidity,
		PrecipitationChance: h.PrecipitationChance,
		PrecipitationType:   h.PrecipitationType,
		PrecipitationAmount: h.PrecipitationAmount,
		WindSpeed:           h.WindSpeed,
		WindGust:            h.WindGust,
		WindDirection:       h.WindDirection,
		CloudCover:          h.CloudCover,
		Pressure:            h.Pressure,
		UVIndex:             h.UVIndex,
		MoonPhase:           h.MoonPhase,
		Visibility:          h.Visibility,
		Description:         h.Description,
	}
	if h.Sunrise != nil {
		t := h.Sunrise.Unix()
		row.SunriseT = &t
	}
	if h.Sunset != nil {
		t := h.Sunset.Unix()
		row.SunsetT = &t
	}
	return row
}

// fromRow reconstructs a History from a stored row (date and alias are
// supplied by the caller from the joined metadata row).
func fromRow(alias string, date model.Date, row historyRow) model.History {
	h := model.History{
		Alias:               alias,
		Date:                date,
		TemperatureHigh:     row.TemperatureHigh,
		TemperatureLow:      row.TemperatureLow,
		TemperatureMean:     row.TemperatureMean,
		DewPoint:            row.DewPoint,
		Humidity:            row.Humidity,
		PrecipitationChance: row.PrecipitationChance,
		PrecipitationType:   row.PrecipitationType,
		PrecipitationAmount: row.PrecipitationAmount,
		WindSpeed:           row.WindSpeed,
		WindGust:            row.WindGust,
		WindDirection:       row.WindDirection,
		CloudCover:          row.CloudCover,
		Pressure:            row.Pressure,
		UVIndex:             row.UVIndex,
		MoonPhase:           row.MoonPhase,
		Visibility:          row.Visibility,
		Description:         row.Description,
	}
	if row.SunriseT != nil {
		t := model.Time(timeFromUnix(*row.SunriseT))
		h.Sunrise = t
	}
	if row.SunsetT != nil {
		t := model.Time(timeFromUnix(*row.SunsetT))
		h.Sunset = t
	}
	return h
}

// estimateSize implements the history-size estimation formula: 8 bytes
// per REAL column, 4 bytes per non-timestamp INTEGER column, 8 bytes per
// timestamp ("_t") column, 0 bytes of fixed width for TEXT columns plus the
// actual byte length of description and precipitation_type.
func estimateSize(h model.History) int64 {
	const (
		realWidth      = 8
		intWidth       = 4
		timestampWidth = 8
	)
	// 14 REAL columns, 1 non-timestamp INTEGER column (wind_direction), 2
	// timestamp columns (sunrise_t, sunset_t).
	size := int64(14*realWidth + 1*intWidth + 2*timestampWidth)
	if h.Description != nil {
		size += int64(len(*h.Description))
	}
	if h.PrecipitationType != nil {
		size += int64(len(*h.PrecipitationType))
	}
	return size
}

// Backend is the normalized implementation of backend.Backend.
type Backend struct {
	dir   *datadir.Directory
	reg   *registry.Registry
	store *dbstore.Store
}

// New loads the catalogue, opens the shared schema plus the history table.
func New(dir *datadir.Directory) (*Backend, error) {
	reg, err := registry.Load(dir.LocationsFile())
	if err != nil {
		return nil, err
	}
	store, err := dbstore.Open(dir)
	if err != nil {
		return nil, err
	}
	if err := store.DB.AutoMigrate(&historyRow{}); err != nil {
		return nil, werrors.Wrap(werrors.ErrSchemaError, "normalizedbackend.New", "", err)
	}
	if _, err := store.Config(); err != nil {
		if err := store.InitConfig(model.DbConfig{Variant: model.DbVariantNormalized}); err != nil {
			return nil, err
		}
	}
	return &Backend{dir: dir, reg: reg, store: store}, nil
}

// Stat implements backend.DBBackend's administrative report: the persisted variant plus location,
// history, and file-size accounting.
func (b *Backend) Stat() (model.DbInfo, error) {
	cfg, err := b.store.Config()
	if err != nil {
		return model.DbInfo{}, err
	}
	locs := b.reg.All()
	var historyCount int
	for _, loc := range locs {
		row, err := b.store.LocationByAlias(loc.Alias)
		if err != nil {
			continue
		}
		count, _, _, err := b.store.MetadataTotals(row.ID)
		if err != nil {
			return model.DbInfo{}, err
		}
		historyCount += count
	}
	return model.DbInfo{
		Config:        cfg,
		FileSize:      b.store.FileSize(b.dir),
		LocationCount: len(locs),
		HistoryCount:  historyCount,
	}, nil
}

// Drop implements backend.DBBackend: removes every managed table including
// the normalized history table (the archives themselves are untouched).
func (b *Backend) Drop() error {
	return b.store.Drop(&historyRow{})
}

// DailyHistories implements backend.Backend by joining metadata to history
// rows for alias within the date range.
func (b *Backend) DailyHistories(alias string, dates model.DateRange) (model.DailyHistories, error) {
	loc, err := b.reg.Get(alias)
	if err != nil {
		return model.DailyHistories{}, err
	}
	lrow, err := b.store.LocationByAlias(loc.Alias)
	if err != nil {
		return model.DailyHistories{Location: loc}, nil
	}

	var metas []dbstore.MetadataRow
	if err := b.store.DB.Where("lid = ? AND date >= ? AND date <= ?", lrow.ID, dates.From.String(), dates.To.String()).
		Order("date asc").Find(&metas).Error; err != nil {
		return model.DailyHistories{}, werrors.Wrap(werrors.ErrSchemaError, "normalizedbackend.DailyHistories", alias, err)
	}

	histories := make([]model.History, 0, len(metas))
	for _, m := range metas {
		var row historyRow
		if err := b.store.DB.Where("mid = ?", m.ID).First(&row).Error; err != nil {
			return model.DailyHistories{}, werrors.Wrap(werrors.ErrCorruptData, "normalizedbackend.DailyHistories", m.Date, err)
		}
		date, err := model.ParseDate(m.Date)
		if err != nil {
			return model.DailyHistories{}, werrors.Wrap(werrors.ErrCorruptData, "normalizedbackend.DailyHistories", m.Date, err)
		}
		histories = append(histories, fromRow(loc.Alias, date, row))
	}
	return model.DailyHistories{Location: loc, Histories: histories}, nil
}

// HistoryDates implements backend.Backend.
func (b *Backend) HistoryDates(criteria registry.Criteria) ([]model.HistoryDates, error) {
	locs := b.reg.Search(criteria)
	out := make([]model.HistoryDates, 0, len(locs))
	for _, loc := range locs {
		row, err := b.store.LocationByAlias(loc.Alias)
		if err != nil {
			out = append(out, model.HistoryDates{Alias: loc.Alias})
			continue
		}
		dateSet, err := b.store.ExistingDates(row.ID)
		if err != nil {
			return nil, err
		}
		dates := make([]model.Date, 0, len(dateSet))
		for iso := range dateSet {
			d, err := model.ParseDate(iso)
			if err != nil {
				return nil, werrors.Wrap(werrors.ErrCorruptData, "normalizedbackend.HistoryDates", iso, err)
			}
			dates = append(dates, d)
		}
		out = append(out, model.HistoryDates{Alias: loc.Alias, Ranges: model.FromDates(dates)})
	}
	return out, nil
}

// HistorySummaries implements backend.Backend. raw_size uses the
// estimation formula summed per location; overall_size is the size of the
// whole database file split proportionally by each location's history row
// count, an acknowledged approximation. The history table's own pages are
// not measured separately, so the other tables' pages are included.
func (b *Backend) HistorySummaries(criteria registry.Criteria) ([]model.HistorySummary, error) {
	locs := b.reg.Search(criteria)

	var totalRows int64
	if err := b.store.DB.Model(&historyRow{}).Count(&totalRows).Error; err != nil {
		return nil, werrors.Wrap(werrors.ErrSchemaError, "normalizedbackend.HistorySummaries", "", err)
	}
	tablePages := b.store.FileSize(b.dir)

	out := make([]model.HistorySummary, 0, len(locs))
	for _, loc := range locs {
		row, err := b.store.LocationByAlias(loc.Alias)
		if err != nil {
			out = append(out, model.HistorySummary{Alias: loc.Alias})
			continue
		}
		count, raw, _, err := b.store.MetadataTotals(row.ID)
		if err != nil {
			return nil, err
		}
		var overall int64
		if totalRows > 0 {
			overall = tablePages * int64(count) / totalRows
		}
		out = append(out, model.HistorySummary{Alias: loc.Alias, Count: count, RawSize: raw, StoreSize: raw, OverallSize: overall})
	}
	return out, nil
}

// Locations implements backend.Backend by querying the locations table
// directly rather than the in-memory catalogue, since a database is
// available here.
func (b *Backend) Locations(criteria registry.Criteria) ([]model.Location, error) {
	rows, err := b.store.SearchLocations(criteria)
	if err != nil {
		return nil, err
	}
	out := make([]model.Location, len(rows))
	for i, row := range rows {
		out[i] = row.Location()
	}
	return out, nil
}

// Search implements backend.Backend; identical to Locations.
func (b *Backend) Search(criteria registry.Criteria) ([]model.Location, error) {
	return b.Locations(criteria)
}

// AddHistories implements backend.Backend's two-durability-store write: the
// archive first (it remains primary), then the database mirror. If the two
// disagree on how many records were newly added, the larger count is
// returned and the discrepancy logged.
func (b *Backend) AddHistories(dh model.DailyHistories) (int, error) {
	alias := model.NormalizedAlias(dh.Location.Alias)
	loc, err := b.reg.Get(alias)
	if err != nil {
		return 0, err
	}

	file := b.dir.Archive(alias)
	var a *archive.Archive
	if file.Exists() {
		a, err = archive.Open(alias, file)
	} else {
		a, err = archive.Create(alias, file)
	}
	if err != nil {
		return 0, err
	}
	archiveAdded, err := a.Add(dh.Histories)
	if err != nil {
		return 0, err
	}

	lid, err := b.store.UpsertLocation(loc)
	if err != nil {
		return 0, err
	}
	existing, err := b.store.ExistingDates(lid)
	if err != nil {
		return 0, err
	}

	dbAdded := 0
	for _, h := range dh.Histories {
		if existing[h.Date.String()] {
			continue
		}
		size := estimateSize(h)
		mid, err := b.store.InsertMetadata(lid, h.Date.String(), size, size, h.Date.Time)
		if err != nil {
			logging.With("normalizedbackend").WithError(err).Warn("failed to insert metadata row")
			continue
		}
		row := toRow(mid, h)
		if err := b.store.DB.Create(&row).Error; err != nil {
			logging.With("normalizedbackend").WithError(err).Warn("failed to insert history row")
			continue
		}
		dbAdded++
	}

	if archiveAdded != dbAdded {
		logging.With("normalizedbackend").WithField("alias", alias).
			WithField("archive_added", archiveAdded).WithField("db_added", dbAdded).
			Warn("archive and database add counts diverged")
	}
	if dbAdded > archiveAdded {
		return dbAdded, nil
	}
	return archiveAdded, nil
}

// Reload rebuilds the history table from every registered location's
// archive using the threaded loader, skipping dates already
// present so it is safe to run repeatedly.
func (b *Backend) Reload(workers int) (int, error) {
	locs := b.reg.All()
	jobs := make([]loader.ArchiveJob, 0, len(locs))
	for _, loc := range locs {
		lid, err := b.store.UpsertLocation(loc)
		if err != nil {
			return 0, err
		}
		jobs = append(jobs, loader.ArchiveJob{LID: lid, Alias: loc.Alias, File: b.dir.Archive(loc.Alias)})
	}
	q := loader.NewArchiveQueue(jobs)

	total := 0
	err := b.store.DB.Transaction(func(tx *gorm.DB) error {
		consumer := loader.ConsumerFunc[loader.LoadMessage](func(msg loader.LoadMessage) error {
			var existing dbstore.MetadataRow
			err := tx.Where("lid = ? AND date = ?", msg.LID, msg.History.Date.String()).First(&existing).Error
			if err == nil {
				return nil
			}
			size := estimateSize(msg.History)
			meta := dbstore.MetadataRow{LID: msg.LID, Date: msg.History.Date.String(), StoreSize: size, Size: size, MTime: msg.History.Date.Time.Unix()}
			if err := tx.Create(&meta).Error; err != nil {
				return err
			}
			row := toRow(meta.ID, msg.History)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			total++
			return nil
		})
		return loader.Run[loader.LoadMessage](q, workers, loader.ArchiveProducer{}, consumer)
	})
	if err != nil {
		return 0, werrors.Wrap(werrors.ErrConcurrency, "normalizedbackend.Reload", "", err)
	}
	return total, nil
}

// AddLocation implements backend.Backend.
func (b *Backend) AddLocation(loc model.Location) error {
	if err := b.reg.AddLocation(loc); err != nil {
		return err
	}
	if err := b.reg.Save(b.dir.LocationsFile()); err != nil {
		return err
	}
	if _, err := b.store.UpsertLocation(loc); err != nil {
		return err
	}
	return nil
}
