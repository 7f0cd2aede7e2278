package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerupp/weatherhist/datadir"
	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/werrors"
)

func writeCatalogue(t *testing.T, dir string, locs []model.Location) *datadir.WeatherFile {
	t.Helper()
	dd, err := datadir.New(dir)
	require.NoError(t, err)
	file := dd.LocationsFile()
	r := &Registry{byAlias: map[string]model.Location{}}
	for _, l := range locs {
		require.NoError(t, r.AddLocation(l))
	}
	require.NoError(t, r.Save(file))
	file.Refresh()
	return file
}

func TestLoadEmptyCatalogue(t *testing.T) {
	dd, err := datadir.New(t.TempDir())
	require.NoError(t, err)
	r, err := Load(dd.LocationsFile())
	require.NoError(t, err)
	assert.Empty(t, r.All())
}

func TestSearchExactAndWildcard(t *testing.T) {
	dir := t.TempDir()
	file := writeCatalogue(t, dir, []model.Location{
		{Name: "Test Town", Alias: "test"},
		{Name: "Other City", Alias: "other"},
	})
	r, err := Load(file)
	require.NoError(t, err)

	one := r.Search(Criteria{Filters: []string{"test"}})
	require.Len(t, one, 1)
	assert.Equal(t, "test", one[0].Alias)

	insensitive := r.Search(Criteria{Filters: []string{"TEST"}, CaseInsensitive: true})
	require.Len(t, insensitive, 1)

	none := r.Search(Criteria{Filters: []string{"TEST"}})
	assert.Empty(t, none)

	all := r.Search(Criteria{Filters: []string{"*"}})
	assert.Len(t, all, 2)
}

func TestGetExactlyOneAmbiguous(t *testing.T) {
	dir := t.TempDir()
	file := writeCatalogue(t, dir, []model.Location{
		{Name: "Alpha Town", Alias: "alpha"},
		{Name: "Alpha City", Alias: "alphacity"},
	})
	r, err := Load(file)
	require.NoError(t, err)

	_, err = r.GetExactlyOne(Criteria{Filters: []string{"Alpha*"}})
	assert.ErrorIs(t, err, werrors.ErrAmbiguous)
}

func TestAddLocationRejectsInvalidAlias(t *testing.T) {
	r := &Registry{byAlias: map[string]model.Location{}}
	err := r.AddLocation(model.Location{Name: "Bad", Alias: "Has/Slash"})
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	file := writeCatalogue(t, dir, []model.Location{{Name: "Test", Alias: "test"}})
	assert.True(t, file.Exists())
	assert.FileExists(t, filepath.Join(dir, "locations.json"))
}
