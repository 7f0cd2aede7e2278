package migrate

import (
	"io"
	"os"

	"github.com/rerupp/weatherhist/archive"
	"github.com/rerupp/weatherhist/datadir"
	"github.com/rerupp/weatherhist/internal/logging"
	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/werrors"
)

// decodeDarkSkyEntry is the archive.IterDateRange builder that turns one
// legacy archive entry straight into its derived canonical History.
func decodeDarkSkyEntry(alias string, e archive.Entry) (model.History, error) {
	rc, err := e.Open()
	if err != nil {
		return model.History{}, err
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return model.History{}, werrors.Wrap(werrors.ErrIOError, "migrate.decodeDarkSkyEntry", alias, err)
	}

	doc, err := parseDarkSky(body)
	if err != nil {
		return model.History{}, werrors.Wrap(werrors.ErrCorruptData, "migrate.decodeDarkSkyEntry", alias, err)
	}
	return derive(alias, e.Date, doc), nil
}

// prepareTarget implements the target-archive preparation rule: if
// the target does not exist, create it; else if retain is set, append in
// place; else rename the existing archive to "<archive>.old" and create a
// fresh one.
func prepareTarget(alias string, file *datadir.WeatherFile, retain bool) (*archive.Archive, error) {
	if !file.Exists() {
		return archive.Create(alias, file)
	}
	if retain {
		return archive.Open(alias, file)
	}
	oldPath := file.Path() + ".old"
	if err := os.Rename(file.Path(), oldPath); err != nil {
		return nil, werrors.Wrap(werrors.ErrIOError, "migrate.prepareTarget", file.Path(), err)
	}
	file.Refresh()
	return archive.Create(alias, file)
}

// Migrate converts one location's DarkSky-schema archive under srcDir into
// canonical History entries appended to the target archive under dstDir
//. srcDir and dstDir must resolve to different roots.
func Migrate(srcDir, dstDir *datadir.Directory, alias string, retain bool) (int, error) {
	if srcDir.Root() == dstDir.Root() {
		return 0, werrors.New(werrors.ErrIOError, "migrate.Migrate", "source and target directories must differ")
	}

	srcFile := srcDir.Archive(alias)
	if !srcFile.Exists() {
		return 0, werrors.New(werrors.ErrNotFound, "migrate.Migrate", srcFile.Path())
	}
	src, err := archive.Open(alias, srcFile)
	if err != nil {
		return 0, err
	}

	histories, err := archive.IterDateRange(src, nil, false, decodeDarkSkyEntry)
	if err != nil {
		return 0, err
	}

	target, err := prepareTarget(alias, dstDir.Archive(alias), retain)
	if err != nil {
		return 0, err
	}

	n, err := target.Add(histories)
	if err != nil {
		return 0, err
	}
	logging.With("migrate").WithField("alias", alias).WithField("added", n).Info("migrated darksky archive to canonical form")
	return n, nil
}
