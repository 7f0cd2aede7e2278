// Package archive implements the weather archive engine: a ZIP
// container holding one JSON document per stored day, opened/created
// through the data directory, iterated without leaking ZIP-reader borrows
// across thread boundaries, and updated through a crash-safe copy-on-write
// swap.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rerupp/weatherhist/datadir"
	"github.com/rerupp/weatherhist/internal/logging"
	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/werrors"
)

// Archive is a read-only handle on one location's ZIP container. Updates go
// through Add, which performs the full crash-safe copy-on-write protocol and
// does not keep this handle open while writing.
type Archive struct {
	alias string
	path  string
	log   *logrus.Entry
}

// Open opens an existing archive. It fails if the file is missing or is not
// a valid ZIP.
func Open(alias string, file *datadir.WeatherFile) (*Archive, error) {
	if !file.Exists() {
		return nil, werrors.New(werrors.ErrNotFound, "archive.Open", file.Path())
	}
	r, err := zip.OpenReader(file.Path())
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCorruptData, "archive.Open", file.Path(), err)
	}
	r.Close()
	return &Archive{alias: alias, path: file.Path(), log: logging.With("archive").WithField("alias", alias)}, nil
}

// Create writes a new, empty archive. It fails if the file already exists.
func Create(alias string, file *datadir.WeatherFile) (*Archive, error) {
	if file.Exists() {
		return nil, werrors.New(werrors.ErrAlreadyExists, "archive.Create", file.Path())
	}
	out, err := os.OpenFile(file.Path(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrIOError, "archive.Create", file.Path(), err)
	}
	w := zip.NewWriter(out)
	if err := w.Close(); err != nil {
		out.Close()
		return nil, werrors.Wrap(werrors.ErrIOError, "archive.Create", file.Path(), err)
	}
	if err := out.Close(); err != nil {
		return nil, werrors.Wrap(werrors.ErrIOError, "archive.Create", file.Path(), err)
	}
	file.Refresh()
	return &Archive{alias: alias, path: file.Path(), log: logging.With("archive").WithField("alias", alias)}, nil
}

// Alias returns the location alias this archive stores histories for.
func (a *Archive) Alias() string {
	return a.alias
}

// Path returns the underlying ZIP file path.
func (a *Archive) Path() string {
	return a.path
}

// Entry describes one retained ZIP record during iteration: enough for a
// builder to decode metadata only, the history body, or both, without
// re-opening the archive.
type Entry struct {
	Date model.Date
	file *zip.File
}

// CompressedSize is the as-stored size of the entry.
func (e Entry) CompressedSize() int64 { return int64(e.file.CompressedSize64) }

// UncompressedSize is the decompressed size of the entry.
func (e Entry) UncompressedSize() int64 { return int64(e.file.UncompressedSize64) }

// ModTime is the entry's stored modification time.
func (e Entry) ModTime() time.Time { return e.file.Modified }

// Open returns a reader over the entry body. The caller must Close it.
func (e Entry) Open() (io.ReadCloser, error) {
	return e.file.Open()
}

// DecodeHistory reads and JSON-decodes the entry body into a canonical
// History, re-stamping alias. Shared by every backend that decodes
// history bodies straight out of an archive (archive-only and hybrid).
func DecodeHistory(alias string, e Entry) (model.History, error) {
	rc, err := e.Open()
	if err != nil {
		return model.History{}, err
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return model.History{}, err
	}
	return model.FromBytes(alias, body)
}

// IterDateRange scans the archive's central directory, decodes each entry
// name into a date (skipping malformed names with a logged warning rather
// than failing the whole scan), filters by the optional DateRange
// (inclusive), optionally sorts ascending, and invokes builder for every
// retained entry.
func IterDateRange[T any](a *Archive, filter *model.DateRange, sortAsc bool, builder func(alias string, e Entry) (T, error)) ([]T, error) {
	r, err := zip.OpenReader(a.path)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCorruptData, "archive.IterDateRange", a.path, err)
	}
	defer r.Close()

	type dated struct {
		date model.Date
		file *zip.File
	}
	var entries []dated
	for _, f := range r.File {
		date, err := dateFromEntryName(a.alias, f.Name)
		if err != nil {
			a.log.WithField("entry", f.Name).Warn("skipping malformed archive entry name")
			continue
		}
		if filter != nil && !filter.Contains(date) {
			continue
		}
		entries = append(entries, dated{date: date, file: f})
	}

	if sortAsc {
		sort.Slice(entries, func(i, j int) bool { return entries[i].date.Before(entries[j].date.Time) })
	}

	results := make([]T, 0, len(entries))
	for _, e := range entries {
		v, err := builder(a.alias, Entry{Date: e.date, file: e.file})
		if err != nil {
			return nil, werrors.Wrap(werrors.ErrCorruptData, "archive.IterDateRange", fmt.Sprintf("%s %s", a.alias, e.date), err)
		}
		results = append(results, v)
	}
	return results, nil
}

// existingDates returns the set of dates already stored, keyed by their
// canonical ISO string, used by Add's first pass.
func (a *Archive) existingDates() (map[string]bool, error) {
	r, err := zip.OpenReader(a.path)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCorruptData, "archive.existingDates", a.path, err)
	}
	defer r.Close()

	seen := make(map[string]bool, len(r.File))
	for _, f := range r.File {
		date, err := dateFromEntryName(a.alias, f.Name)
		if err != nil {
			a.log.WithField("entry", f.Name).Warn("skipping malformed archive entry name")
			continue
		}
		seen[date.String()] = true
	}
	return seen, nil
}

// Add appends histories to the archive, skipping any (alias implied, date)
// already present. Idempotence is part of the contract: re-adding an
// existing date is logged as a warning, not an error. It returns
// the count of newly written records.
func (a *Archive) Add(histories []model.History) (int, error) {
	existing, err := a.existingDates()
	if err != nil {
		return 0, err
	}

	novel := make([]model.History, 0, len(histories))
	for _, h := range histories {
		if existing[h.Date.String()] {
			a.log.WithField("date", h.Date.String()).Warn("history already present, skipping")
			continue
		}
		novel = append(novel, h)
	}
	if len(novel) == 0 {
		return 0, nil
	}

	if err := a.update(novel); err != nil {
		return 0, err
	}
	return len(novel), nil
}

// writableEntry is a rendered ZIP entry awaiting write during an update.
type writableEntry struct {
	name string
	body []byte
}

// serializeEntries renders novel histories as ZIP-entry (name, body) pairs.
func (a *Archive) serializeEntries(histories []model.History) ([]writableEntry, error) {
	out := make([]writableEntry, 0, len(histories))
	for _, h := range histories {
		body, err := model.ToBytes(h)
		if err != nil {
			return nil, werrors.Wrap(werrors.ErrCorruptData, "archive.serializeEntries", h.Date.String(), err)
		}
		out = append(out, writableEntry{name: entryName(a.alias, h.Date), body: body})
	}
	return out, nil
}
