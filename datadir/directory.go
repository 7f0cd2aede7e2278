// Package datadir namespaces the weather data root and resolves alias and
// database file paths within it. It is the weather analogue of the
// teacher's storage.DatabaseConfig resolution helpers, adapted for a local
// filesystem root instead of a remote connection URL.
package datadir

import (
	"os"
	"path/filepath"

	"github.com/rerupp/weatherhist/werrors"
)

const (
	envDataDir          = "WEATHER_DATA"
	defaultDataDirName  = "weather_data"
	locationsCatalogue  = "locations.json"
	databaseFileName    = "weather_data.db"
)

// Directory resolves archive and database file paths under one data root.
type Directory struct {
	root string
}

// New resolves the weather data root: preferred (if non-empty), else the
// WEATHER_DATA environment variable, else "weather_data" in the current
// directory. It rejects a root that exists but is not a directory.
func New(preferred string) (*Directory, error) {
	root := preferred
	if root == "" {
		if env := os.Getenv(envDataDir); env != "" {
			root = env
		} else {
			root = defaultDataDirName
		}
	}

	if info, err := os.Stat(root); err == nil {
		if !info.IsDir() {
			return nil, werrors.New(werrors.ErrIOError, "datadir.New", root+" exists and is not a directory")
		}
	}

	return &Directory{root: root}, nil
}

// Root returns the resolved data directory path.
func (d *Directory) Root() string {
	return d.root
}

// LocationsFile returns the WeatherFile for the location catalogue.
func (d *Directory) LocationsFile() *WeatherFile {
	return newWeatherFile(filepath.Join(d.root, locationsCatalogue))
}

// Archive returns the WeatherFile for a location's archive, named
// "<alias>.zip" under the data root.
func (d *Directory) Archive(alias string) *WeatherFile {
	return newWeatherFile(filepath.Join(d.root, alias+".zip"))
}

// DatabaseFile returns the WeatherFile for the single database file.
func (d *Directory) DatabaseFile() *WeatherFile {
	return newWeatherFile(filepath.Join(d.root, databaseFileName))
}

// EnsureRoot creates the data root directory if it does not already exist.
func (d *Directory) EnsureRoot() error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return werrors.Wrap(werrors.ErrIOError, "datadir.EnsureRoot", d.root, err)
	}
	return nil
}
