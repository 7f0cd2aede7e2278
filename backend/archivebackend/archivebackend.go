// Package archivebackend implements the Backend contract using only
// the archive engine and the location catalogue: no database file is
// ever created or read.
package archivebackend

import (
	"github.com/rerupp/weatherhist/archive"
	"github.com/rerupp/weatherhist/datadir"
	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/registry"
)

// Backend is the archive-only implementation of backend.Backend.
type Backend struct {
	dir *datadir.Directory
	reg *registry.Registry
}

// New loads the catalogue from dir and returns an archive-only Backend.
func New(dir *datadir.Directory) (*Backend, error) {
	reg, err := registry.Load(dir.LocationsFile())
	if err != nil {
		return nil, err
	}
	return &Backend{dir: dir, reg: reg}, nil
}

// DailyHistories implements backend.Backend.
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

// HistoryDates implements backend.Backend.
func (b *Backend) HistoryDates(criteria registry.Criteria) ([]model.HistoryDates, error) {
	locs := b.reg.Search(criteria)
	out := make([]model.HistoryDates, 0, len(locs))
	for _, loc := range locs {
		file := b.dir.Archive(loc.Alias)
		if !file.Exists() {
			out = append(out, model.HistoryDates{Alias: loc.Alias})
			continue
		}
		a, err := archive.Open(loc.Alias, file)
		if err != nil {
			return nil, err
		}
		dates, err := archive.IterDateRange(a, nil, false, func(alias string, e archive.Entry) (model.Date, error) {
			return e.Date, nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, model.HistoryDates{Alias: loc.Alias, Ranges: model.FromDates(dates)})
	}
	return out, nil
}

// HistorySummaries implements backend.Backend.
func (b *Backend) HistorySummaries(criteria registry.Criteria) ([]model.HistorySummary, error) {
	locs := b.reg.Search(criteria)
	out := make([]model.HistorySummary, 0, len(locs))
	for _, loc := range locs {
		file := b.dir.Archive(loc.Alias)
		if !file.Exists() {
			out = append(out, model.HistorySummary{Alias: loc.Alias})
			continue
		}
		a, err := archive.Open(loc.Alias, file)
		if err != nil {
			return nil, err
		}
		metas, err := archive.IterDateRange(a, nil, false, func(alias string, e archive.Entry) (model.ArchiveMetadata, error) {
			return model.ArchiveMetadata{
				Date:             e.Date,
				CompressedSize:   e.CompressedSize(),
				UncompressedSize: e.UncompressedSize(),
				ModTime:          e.ModTime(),
			}, nil
		})
		if err != nil {
			return nil, err
		}

		summary := model.HistorySummary{Alias: loc.Alias, Count: len(metas), OverallSize: file.Size()}
		for _, m := range metas {
			summary.RawSize += m.UncompressedSize
			summary.StoreSize += m.CompressedSize
		}
		out = append(out, summary)
	}
	return out, nil
}

// Locations implements backend.Backend.
func (b *Backend) Locations(criteria registry.Criteria) ([]model.Location, error) {
	locs := b.reg.Search(criteria)
	return locs, nil
}

// Search implements backend.Backend; identical to Locations for this
// backend.
func (b *Backend) Search(criteria registry.Criteria) ([]model.Location, error) {
	return b.Locations(criteria)
}

// AddHistories implements backend.Backend, delegating to the archive
// engine's crash-safe add protocol.
func (b *Backend) AddHistories(dh model.DailyHistories) (int, error) {
	alias := model.NormalizedAlias(dh.Location.Alias)
	if _, err := b.reg.Get(alias); err != nil {
		return 0, err
	}

	file := b.dir.Archive(alias)
	var a *archive.Archive
	var err error
	if file.Exists() {
		a, err = archive.Open(alias, file)
	} else {
		a, err = archive.Create(alias, file)
	}
	if err != nil {
		return 0, err
	}
	return a.Add(dh.Histories)
}

// AddLocation implements backend.Backend.
func (b *Backend) AddLocation(loc model.Location) error {
	if err := b.reg.AddLocation(loc); err != nil {
		return err
	}
	if err := b.reg.Save(b.dir.LocationsFile()); err != nil {
		return err
	}
	return nil
}
