package datadir

import (
	"io"
	"os"

	"github.com/rerupp/weatherhist/werrors"
)

// WeatherFile exposes the small set of filesystem operations the rest of the
// weather core needs on a single path: existence/size checks and
// streaming readers/writers, without leaking os.File elsewhere.
type WeatherFile struct {
	path   string
	info   os.FileInfo
	stated bool
}

func newWeatherFile(path string) *WeatherFile {
	return &WeatherFile{path: path}
}

// Path returns the absolute-or-relative path this WeatherFile wraps.
func (f *WeatherFile) Path() string {
	return f.path
}

func (f *WeatherFile) stat() os.FileInfo {
	if !f.stated {
		f.info, _ = os.Stat(f.path)
		f.stated = true
	}
	return f.info
}

// Exists reports whether the path currently exists. Results are cached
// until Refresh is called.
func (f *WeatherFile) Exists() bool {
	return f.stat() != nil
}

// Size returns the cached file size, or 0 if the path does not exist.
func (f *WeatherFile) Size() int64 {
	if info := f.stat(); info != nil {
		return info.Size()
	}
	return 0
}

// Refresh re-stats the path, discarding any cached Exists/Size result.
func (f *WeatherFile) Refresh() {
	f.stated = false
	f.info = nil
}

// Reader opens the file for reading.
func (f *WeatherFile) Reader() (io.ReadCloser, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrIOError, "WeatherFile.Reader", f.path, err)
	}
	return file, nil
}

// Writer opens the file for writing, truncating it if it already exists.
func (f *WeatherFile) Writer() (io.WriteCloser, error) {
	file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrIOError, "WeatherFile.Writer", f.path, err)
	}
	return file, nil
}
