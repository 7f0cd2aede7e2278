package hybridbackend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerupp/weatherhist/datadir"
	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/registry"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	dir, err := datadir.New(t.TempDir())
	require.NoError(t, err)
	b, err := New(dir)
	require.NoError(t, err)
	return b
}

func TestAddMirrorsMetadataAndReadsBodyFromArchive(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.AddLocation(model.Location{Name: "Test", Alias: "test"}))

	h := model.History{Date: model.NewDate(2023, 6, 15), TemperatureHigh: model.Float64(70)}
	n, err := b.AddHistories(model.DailyHistories{Location: model.Location{Alias: "test"}, Histories: []model.History{h}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	summaries, err := b.HistorySummaries(registry.Criteria{Filters: []string{"test"}})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Count)
	assert.Positive(t, summaries[0].OverallSize)

	dates, err := b.HistoryDates(registry.Criteria{Filters: []string{"test"}})
	require.NoError(t, err)
	require.Len(t, dates, 1)
	require.Len(t, dates[0].Ranges, 1)

	dh, err := b.DailyHistories("test", model.NewDateRange(model.NewDate(2023, 6, 15), model.NewDate(2023, 6, 15)))
	require.NoError(t, err)
	require.Len(t, dh.Histories, 1)
	assert.Equal(t, 70.0, *dh.Histories[0].TemperatureHigh)
}

func TestStatAndDrop(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.AddLocation(model.Location{Name: "Test", Alias: "test"}))
	h := model.History{Date: model.NewDate(2023, 6, 15)}
	_, err := b.AddHistories(model.DailyHistories{Location: model.Location{Alias: "test"}, Histories: []model.History{h}})
	require.NoError(t, err)

	info, err := b.Stat()
	require.NoError(t, err)
	assert.Equal(t, model.DbVariantHybrid, info.Config.Variant)
	assert.Equal(t, 1, info.LocationCount)
	assert.Equal(t, 1, info.HistoryCount)

	require.NoError(t, b.Drop())
	_, err = b.store.Config()
	assert.Error(t, err)
}

func TestLocationsQueriesDatabaseTable(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.AddLocation(model.Location{Name: "Denver", Alias: "denver"}))
	require.NoError(t, b.AddLocation(model.Location{Name: "Boulder", Alias: "boulder"}))

	locs, err := b.Locations(registry.Criteria{Filters: []string{"den*"}, CaseInsensitive: true})
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "denver", locs[0].Alias)
}

func TestAddHistoriesIsIdempotent(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.AddLocation(model.Location{Name: "Test", Alias: "test"}))
	h := model.History{Date: model.NewDate(2023, 6, 15)}
	dh := model.DailyHistories{Location: model.Location{Alias: "test"}, Histories: []model.History{h}}

	n, err := b.AddHistories(dh)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = b.AddHistories(dh)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
