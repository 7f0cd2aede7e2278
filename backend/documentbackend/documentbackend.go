// Package documentbackend implements the document storage strategy:
// history bodies live in a documents table as either a plain JSON blob or
// a Snappy-framed compressed blob, selected once by the DbConfig's
// Compress flag and never mixed within one database.
package documentbackend

import (
	"bytes"
	"io"

	"github.com/golang/snappy"
	"gorm.io/gorm"

	"github.com/rerupp/weatherhist/backend/dbstore"
	"github.com/rerupp/weatherhist/datadir"
	"github.com/rerupp/weatherhist/loader"
	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/registry"
	"github.com/rerupp/weatherhist/werrors"
)

// documentRow is the documents table: exactly one of Plain/Zipped is
// non-null per row, determined by the database's persisted compress flag.
type documentRow struct {
	ID     uint `gorm:"primaryKey"`
	MID    uint `gorm:"not null;uniqueIndex"`
	Plain  []byte `gorm:"type:text"`
	Zipped []byte `gorm:"type:blob"`
	Size   int64
}

func (documentRow) TableName() string { return "documents" }

// Backend is the document implementation of backend.Backend.
type Backend struct {
	dir      *datadir.Directory
	reg      *registry.Registry
	store    *dbstore.Store
	compress bool
}

// New loads the catalogue, opens the shared schema plus the documents
// table, and establishes (or reads back) the database's compress setting.
func New(dir *datadir.Directory, compress bool) (*Backend, error) {
	reg, err := registry.Load(dir.LocationsFile())
	if err != nil {
		return nil, err
	}
	store, err := dbstore.Open(dir)
	if err != nil {
		return nil, err
	}
	if err := store.DB.AutoMigrate(&documentRow{}); err != nil {
		return nil, werrors.Wrap(werrors.ErrSchemaError, "documentbackend.New", "", err)
	}

	cfg, err := store.Config()
	if err != nil {
		cfg = model.DbConfig{Variant: model.DbVariantDocument, Compress: compress}
		if err := store.InitConfig(cfg); err != nil {
			return nil, err
		}
	}
	return &Backend{dir: dir, reg: reg, store: store, compress: cfg.Compress}, nil
}

// Stat implements backend.DBBackend's administrative report: the persisted variant/compress flag plus
// location, history, and file-size accounting.
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
// the documents table (the archives themselves are untouched).
func (b *Backend) Drop() error {
	return b.store.Drop(&documentRow{})
}

// encode renders h's canonical JSON body as the appropriate documentRow
// payload given the database's compress setting.
func (b *Backend) encode(h model.History) (documentRow, error) {
	body, err := model.ToBytes(h)
	if err != nil {
		return documentRow{}, werrors.Wrap(werrors.ErrCorruptData, "documentbackend.encode", h.Date.String(), err)
	}
	if !b.compress {
		return documentRow{Plain: body, Size: int64(len(body))}, nil
	}
	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	if _, err := w.Write(body); err != nil {
		return documentRow{}, werrors.Wrap(werrors.ErrIOError, "documentbackend.encode", h.Date.String(), err)
	}
	if err := w.Close(); err != nil {
		return documentRow{}, werrors.Wrap(werrors.ErrIOError, "documentbackend.encode", h.Date.String(), err)
	}
	return documentRow{Zipped: buf.Bytes(), Size: int64(buf.Len())}, nil
}

// decode reverses encode, reading plain directly or inflating the Snappy
// framed stream.
func decode(alias string, row documentRow) (model.History, error) {
	if row.Plain != nil {
		return model.FromBytes(alias, row.Plain)
	}
	r := snappy.NewReader(bytes.NewReader(row.Zipped))
	body, err := io.ReadAll(r)
	if err != nil {
		return model.History{}, werrors.Wrap(werrors.ErrCorruptData, "documentbackend.decode", alias, err)
	}
	return model.FromBytes(alias, body)
}

// DailyHistories implements backend.Backend by joining metadata to
// documents for the given location and date range.
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
		return model.DailyHistories{}, werrors.Wrap(werrors.ErrSchemaError, "documentbackend.DailyHistories", alias, err)
	}

	histories := make([]model.History, 0, len(metas))
	for _, m := range metas {
		var doc documentRow
		if err := b.store.DB.Where("mid = ?", m.ID).First(&doc).Error; err != nil {
			return model.DailyHistories{}, werrors.Wrap(werrors.ErrCorruptData, "documentbackend.DailyHistories", m.Date, err)
		}
		h, err := decode(loc.Alias, doc)
		if err != nil {
			return model.DailyHistories{}, err
		}
		histories = append(histories, h)
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
				return nil, werrors.Wrap(werrors.ErrCorruptData, "documentbackend.HistoryDates", iso, err)
			}
			dates = append(dates, d)
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
		row, err := b.store.LocationByAlias(loc.Alias)
		if err != nil {
			out = append(out, model.HistorySummary{Alias: loc.Alias})
			continue
		}
		count, raw, store, err := b.store.MetadataTotals(row.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.HistorySummary{Alias: loc.Alias, Count: count, RawSize: raw, StoreSize: store, OverallSize: b.store.FileSize(b.dir)})
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

// AddHistories implements backend.Backend's two-table insert: a metadata
// row followed by its paired documents row, skipping dates already present
//.
func (b *Backend) AddHistories(dh model.DailyHistories) (int, error) {
	alias := model.NormalizedAlias(dh.Location.Alias)
	loc, err := b.reg.Get(alias)
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

	added := 0
	for _, h := range dh.Histories {
		if existing[h.Date.String()] {
			continue
		}
		row, err := b.encode(h)
		if err != nil {
			return added, err
		}
		err = b.store.DB.Transaction(func(tx *gorm.DB) error {
			meta := dbstore.MetadataRow{LID: lid, Date: h.Date.String(), StoreSize: row.Size, Size: row.Size, MTime: h.Date.Time.Unix()}
			if err := tx.Create(&meta).Error; err != nil {
				return err
			}
			row.MID = meta.ID
			return tx.Create(&row).Error
		})
		if err != nil {
			return added, werrors.Wrap(werrors.ErrSchemaError, "documentbackend.AddHistories", h.Date.String(), err)
		}
		added++
	}
	return added, nil
}

// Reload rebuilds the documents table from every registered location's
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
			row, err := b.encode(msg.History)
			if err != nil {
				return err
			}
			meta := dbstore.MetadataRow{LID: msg.LID, Date: msg.History.Date.String(), StoreSize: row.Size, Size: row.Size, MTime: msg.History.Date.Time.Unix()}
			if err := tx.Create(&meta).Error; err != nil {
				return err
			}
			row.MID = meta.ID
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			total++
			return nil
		})
		return loader.Run[loader.LoadMessage](q, workers, loader.ArchiveProducer{}, consumer)
	})
	if err != nil {
		return 0, werrors.Wrap(werrors.ErrConcurrency, "documentbackend.Reload", "", err)
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
