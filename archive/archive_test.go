package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerupp/weatherhist/datadir"
	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/werrors"
)

func newTestArchive(t *testing.T, alias string) (*Archive, *datadir.WeatherFile, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, alias+".zip")
	dd, err := datadir.New(dir)
	require.NoError(t, err)
	file := dd.Archive(alias)
	a, err := Create(alias, file)
	require.NoError(t, err)
	return a, file, path
}

func TestCreateFailsIfExists(t *testing.T) {
	a, file, _ := newTestArchive(t, "test")
	_ = a
	_, err := Create("test", file)
	assert.Error(t, err)
}

func TestOpenFailsIfMissing(t *testing.T) {
	dd, err := datadir.New(t.TempDir())
	require.NoError(t, err)
	_, err = Open("nope", dd.Archive("nope"))
	assert.Error(t, err)
}

func TestAddAndIterate(t *testing.T) {
	a, _, _ := newTestArchive(t, "test")

	h1 := model.History{Date: model.NewDate(2023, 6, 15), TemperatureHigh: model.Float64(85)}
	h2 := model.History{Date: model.NewDate(2023, 6, 16), TemperatureHigh: model.Float64(80)}

	n, err := a.Add([]model.History{h1, h2})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dates, err := IterDateRange(a, nil, true, func(alias string, e Entry) (model.Date, error) {
		return e.Date, nil
	})
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, "2023-06-15", dates[0].String())
	assert.Equal(t, "2023-06-16", dates[1].String())
}

func TestAddIsIdempotent(t *testing.T) {
	a, _, _ := newTestArchive(t, "test")
	h := model.History{Date: model.NewDate(2023, 6, 15)}

	n, err := a.Add([]model.History{h})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = a.Add([]model.History{h})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAddLeavesNoSidecarFiles(t *testing.T) {
	a, _, path := newTestArchive(t, "test")
	h := model.History{Date: model.NewDate(2023, 6, 15)}
	_, err := a.Add([]model.History{h})
	require.NoError(t, err)

	_, errUpd := os.Stat(path + updateSuffix)
	_, errBu := os.Stat(path + backupSuffix)
	assert.True(t, os.IsNotExist(errUpd))
	assert.True(t, os.IsNotExist(errBu))
}

func TestIterDateRangeFilters(t *testing.T) {
	a, _, _ := newTestArchive(t, "test")
	dates := []model.Date{
		model.NewDate(2022, 12, 30),
		model.NewDate(2022, 12, 31),
		model.NewDate(2023, 1, 1),
		model.NewDate(2023, 1, 2),
	}
	histories := make([]model.History, len(dates))
	for i, d := range dates {
		histories[i] = model.History{Date: d}
	}
	_, err := a.Add(histories)
	require.NoError(t, err)

	r := model.NewDateRange(model.NewDate(2022, 12, 31), model.NewDate(2023, 1, 1))
	got, err := IterDateRange(a, &r, true, func(alias string, e Entry) (string, error) {
		return e.Date.String(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2022-12-31", "2023-01-01"}, got)
}

func TestAddTwiceAppendsToExistingArchive(t *testing.T) {
	a, _, _ := newTestArchive(t, "test")
	h1 := model.History{Date: model.NewDate(2023, 6, 15)}
	h2 := model.History{Date: model.NewDate(2023, 6, 16)}

	n, err := a.Add([]model.History{h1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The second Add call rewrites an archive that already has one entry,
	// exercising the path where appendEntries copies existing entries while
	// the source archive is still open for reading.
	n, err = a.Add([]model.History{h2})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := IterDateRange(a, nil, true, func(alias string, e Entry) (string, error) {
		return e.Date.String(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-06-15", "2023-06-16"}, got)
}

func TestDateFromEntryNameRejectsShortStampWithoutPanic(t *testing.T) {
	_, err := dateFromEntryName("test", "test/test-1.json")
	assert.ErrorIs(t, err, werrors.ErrCorruptData)
}

func TestIterDateRangeSkipsMalformedEntries(t *testing.T) {
	a, _, path := newTestArchive(t, "test")
	h := model.History{Date: model.NewDate(2023, 6, 15)}
	_, err := a.Add([]model.History{h})
	require.NoError(t, err)

	// Inject a malformed entry directly via appendEntries, the writer helper
	// update uses, bypassing Add so the existing-dates scan can't filter it
	// out first.
	err = appendEntries(path, []writableEntry{{name: "test/garbage.txt", body: []byte("x")}})
	require.NoError(t, err)

	got, err := IterDateRange(a, nil, true, func(alias string, e Entry) (string, error) {
		return e.Date.String(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-06-15"}, got)
}
