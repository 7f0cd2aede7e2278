package documentbackend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerupp/weatherhist/datadir"
	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/registry"
)

func newTestBackend(t *testing.T, compress bool) *Backend {
	t.Helper()
	dir, err := datadir.New(t.TempDir())
	require.NoError(t, err)
	b, err := New(dir, compress)
	require.NoError(t, err)
	return b
}

func testAddAndRead(t *testing.T, compress bool) {
	b := newTestBackend(t, compress)
	require.NoError(t, b.AddLocation(model.Location{Name: "Test", Alias: "test"}))

	h := model.History{Date: model.NewDate(2023, 6, 15), TemperatureHigh: model.Float64(91.5), Description: model.String("sunny")}
	n, err := b.AddHistories(model.DailyHistories{Location: model.Location{Alias: "test"}, Histories: []model.History{h}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	dh, err := b.DailyHistories("test", model.NewDateRange(model.NewDate(2023, 6, 15), model.NewDate(2023, 6, 15)))
	require.NoError(t, err)
	require.Len(t, dh.Histories, 1)
	assert.Equal(t, 91.5, *dh.Histories[0].TemperatureHigh)
	assert.Equal(t, "sunny", *dh.Histories[0].Description)

	n, err = b.AddHistories(model.DailyHistories{Location: model.Location{Alias: "test"}, Histories: []model.History{h}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	summaries, err := b.HistorySummaries(registry.Criteria{Filters: []string{"test"}})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Count)
}

func TestAddAndReadUncompressed(t *testing.T) {
	testAddAndRead(t, false)
}

func TestAddAndReadCompressed(t *testing.T) {
	testAddAndRead(t, true)
}

func TestLocationsQueriesDatabaseTable(t *testing.T) {
	b := newTestBackend(t, false)
	require.NoError(t, b.AddLocation(model.Location{Name: "Denver", Alias: "denver"}))
	require.NoError(t, b.AddLocation(model.Location{Name: "Boulder", Alias: "boulder"}))

	locs, err := b.Locations(registry.Criteria{Filters: []string{"den*"}, CaseInsensitive: true})
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "denver", locs[0].Alias)
}

func TestStatReportsCompressFlagAndDrop(t *testing.T) {
	b := newTestBackend(t, true)
	require.NoError(t, b.AddLocation(model.Location{Name: "Test", Alias: "test"}))
	h := model.History{Date: model.NewDate(2023, 6, 15)}
	_, err := b.AddHistories(model.DailyHistories{Location: model.Location{Alias: "test"}, Histories: []model.History{h}})
	require.NoError(t, err)

	info, err := b.Stat()
	require.NoError(t, err)
	assert.Equal(t, model.DbVariantDocument, info.Config.Variant)
	assert.True(t, info.Config.Compress)
	assert.Equal(t, 1, info.HistoryCount)

	require.NoError(t, b.Drop())
	_, err = b.store.Config()
	assert.Error(t, err)
}
