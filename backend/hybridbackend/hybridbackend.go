// Package hybridbackend implements the hybrid storage strategy:
// history bodies stay in the archive files exactly as archivebackend
// stores them, while a sqlite metadata table mirrors every archive entry
// so history_dates/history_summaries can be answered from the database
// instead of re-scanning ZIP central directories. daily_histories still
// delegates decoding to the archive engine.
package hybridbackend

import (
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

// Backend is the hybrid implementation of backend.Backend.
type Backend struct {
	dir   *datadir.Directory
	reg   *registry.Registry
	store *dbstore.Store
}

// New loads the catalogue and opens (creating if needed) the shared sqlite
// schema.
func New(dir *datadir.Directory) (*Backend, error) {
	reg, err := registry.Load(dir.LocationsFile())
	if err != nil {
		return nil, err
	}
	store, err := dbstore.Open(dir)
	if err != nil {
		return nil, err
	}
	if _, err := store.Config(); err != nil {
		if err := store.InitConfig(model.DbConfig{Variant: model.DbVariantHybrid}); err != nil {
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

// Drop implements backend.DBBackend: removes every managed table (the
// archives themselves are untouched); a backend opened afterwards recreates
// them empty, so a Reload through it starts clean.
func (b *Backend) Drop() error {
	return b.store.Drop()
}

// DailyHistories implements backend.Backend by reading the archive
// directly; the metadata table is not consulted for bodies.
func (b *Backend) DailyHistories(alias string, dates model.DateRange) (model.DailyHistories, error) {
	loc, err := b.reg.Get(alias)
	if err != nil {
		return model.DailyHistories{}, err
	}

	file := b.dir.Archive(loc.Alias)
	if !file.Exists() {
		return model.DailyHistories{Location: loc}, nil
	}
	a, err := archive.Open(loc.Alias, file)
	if err != nil {
		return model.DailyHistories{}, err
	}
	histories, err := archive.IterDateRange(a, &dates, true, archive.DecodeHistory)
	if err != nil {
		return model.DailyHistories{}, err
	}
	return model.DailyHistories{Location: loc, Histories: histories}, nil
}

// HistoryDates implements backend.Backend from the metadata table.
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
				return nil, werrors.Wrap(werrors.ErrCorruptData, "hybridbackend.HistoryDates", iso, err)
			}
			dates = append(dates, d)
		}
		out = append(out, model.HistoryDates{Alias: loc.Alias, Ranges: model.FromDates(dates)})
	}
	return out, nil
}

// HistorySummaries implements backend.Backend: overall_size is the archive
// file size; raw/store size are summed from the metadata table.
func (b *Backend) HistorySummaries(criteria registry.Criteria) ([]model.HistorySummary, error) {
	locs := b.reg.Search(criteria)
	out := make([]model.HistorySummary, 0, len(locs))
	for _, loc := range locs {
		file := b.dir.Archive(loc.Alias)
		row, err := b.store.LocationByAlias(loc.Alias)
		if err != nil {
			out = append(out, model.HistorySummary{Alias: loc.Alias, OverallSize: file.Size()})
			continue
		}
		count, raw, store, err := b.store.MetadataTotals(row.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.HistorySummary{
			Alias:       loc.Alias,
			Count:       count,
			RawSize:     raw,
			StoreSize:   store,
			OverallSize: file.Size(),
		})
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

// AddHistories implements backend.Backend: append to the archive (the
// crash-safe protocol in C3), then mirror each newly written entry into the
// metadata table.
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

	n, err := a.Add(dh.Histories)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	lid, err := b.store.UpsertLocation(loc)
	if err != nil {
		return 0, err
	}
	existing, err := b.store.ExistingDates(lid)
	if err != nil {
		return 0, err
	}

	metas, err := archive.IterDateRange(a, nil, false, func(_ string, e archive.Entry) (archive.Entry, error) {
		return e, nil
	})
	if err != nil {
		return 0, err
	}
	for _, e := range metas {
		if existing[e.Date.String()] {
			continue
		}
		if _, err := b.store.InsertMetadata(lid, e.Date.String(), e.CompressedSize(), e.UncompressedSize(), e.ModTime()); err != nil {
			logging.With("hybridbackend").WithError(err).Warn("failed to mirror archive entry into metadata table")
		}
	}
	return n, nil
}

// Reload rebuilds the metadata table from every registered location's
// archive, using the threaded loader with workers producer
// goroutines. It is the administrative counterpart to AddHistories's
// incremental mirroring, used by the reload command.
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
			var meta dbstore.MetadataRow
			err := tx.Where("lid = ? AND date = ?", msg.LID, msg.History.Date.String()).First(&meta).Error
			if err == nil {
				return nil
			}
			row := dbstore.MetadataRow{LID: msg.LID, Date: msg.History.Date.String()}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			total++
			return nil
		})
		return loader.Run[loader.LoadMessage](q, workers, loader.ArchiveProducer{}, consumer)
	})
	if err != nil {
		return 0, werrors.Wrap(werrors.ErrConcurrency, "hybridbackend.Reload", "", err)
	}
	return total, nil
}

// AddLocation implements backend.Backend: registers in the catalogue and
// mirrors the row into the locations table.
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
