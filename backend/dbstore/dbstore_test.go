package dbstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerupp/weatherhist/datadir"
	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/registry"
	"github.com/rerupp/weatherhist/werrors"
)

func newTestStore(t *testing.T) (*Store, *datadir.Directory) {
	t.Helper()
	dir, err := datadir.New(t.TempDir())
	require.NoError(t, err)
	s, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func TestInitConfigRejectsSecondWrite(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.InitConfig(model.DbConfig{Variant: model.DbVariantHybrid}))

	cfg, err := s.Config()
	require.NoError(t, err)
	assert.Equal(t, model.DbVariantHybrid, cfg.Variant)

	err = s.InitConfig(model.DbConfig{Variant: model.DbVariantDocument})
	assert.ErrorIs(t, err, werrors.ErrAlreadyExists)
}

func TestUpsertLocationIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	loc := model.Location{Name: "Test Town", Alias: "test", Longitude: "-104.9", Latitude: "39.7", TZ: "America/Denver"}

	id1, err := s.UpsertLocation(loc)
	require.NoError(t, err)
	id2, err := s.UpsertLocation(loc)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	row, err := s.LocationByAlias("test")
	require.NoError(t, err)
	assert.Equal(t, "Test Town", row.Name)
}

func TestMetadataTotalsAndExistingDates(t *testing.T) {
	s, _ := newTestStore(t)
	id, err := s.UpsertLocation(model.Location{Name: "Test", Alias: "test"})
	require.NoError(t, err)

	_, err = s.InsertMetadata(id, "2023-06-15", 10, 20, time.Unix(0, 0))
	require.NoError(t, err)
	_, err = s.InsertMetadata(id, "2023-06-16", 5, 7, time.Unix(0, 0))
	require.NoError(t, err)

	dates, err := s.ExistingDates(id)
	require.NoError(t, err)
	assert.True(t, dates["2023-06-15"])
	assert.True(t, dates["2023-06-16"])
	assert.False(t, dates["2023-06-17"])

	count, raw, store, err := s.MetadataTotals(id)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, int64(27), raw)
	assert.Equal(t, int64(15), store)
}

func TestLocationByAliasNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.LocationByAlias("nope")
	assert.ErrorIs(t, err, werrors.ErrNotFound)
}

func TestSearchLocationsMatchesAllAndWildcards(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.UpsertLocation(model.Location{Name: "Denver", Alias: "denver"})
	require.NoError(t, err)
	_, err = s.UpsertLocation(model.Location{Name: "Boulder", Alias: "boulder"})
	require.NoError(t, err)

	all, err := s.SearchLocations(registry.Criteria{SortByName: true})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Boulder", all[0].Name)

	matches, err := s.SearchLocations(registry.Criteria{Filters: []string{"den*"}, CaseInsensitive: true})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "denver", matches[0].Alias)

	none, err := s.SearchLocations(registry.Criteria{Filters: []string{"DEN*"}})
	require.NoError(t, err)
	assert.Empty(t, none)
}
