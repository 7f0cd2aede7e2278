package archivebackend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rerupp/weatherhist/datadir"
	"github.com/rerupp/weatherhist/model"
	"github.com/rerupp/weatherhist/registry"
)

func newTestBackend(t *testing.T) (*Backend, *datadir.Directory) {
	t.Helper()
	dir, err := datadir.New(t.TempDir())
	require.NoError(t, err)
	b, err := New(dir)
	require.NoError(t, err)
	return b, dir
}

func TestEmptyLocationHasNoHistories(t *testing.T) {
	b, _ := newTestBackend(t)
	require.NoError(t, b.AddLocation(model.Location{Name: "Test", Alias: "test"}))

	dates, err := b.HistoryDates(registry.Criteria{Filters: []string{"test"}})
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Empty(t, dates[0].Ranges)

	dh, err := b.DailyHistories("test", model.NewDateRange(model.NewDate(2020, 1, 1), model.NewDate(2020, 1, 31)))
	require.NoError(t, err)
	assert.Empty(t, dh.Histories)
}

func TestAddAndReadBack(t *testing.T) {
	b, _ := newTestBackend(t)
	require.NoError(t, b.AddLocation(model.Location{Name: "Test", Alias: "test"}))

	h := model.History{
		Date:            model.NewDate(2023, 6, 15),
		TemperatureHigh: model.Float64(85.0),
		TemperatureLow:  model.Float64(62.0),
	}
	n, err := b.AddHistories(model.DailyHistories{Location: model.Location{Alias: "test"}, Histories: []model.History{h}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	dh, err := b.DailyHistories("test", model.NewDateRange(model.NewDate(2023, 6, 15), model.NewDate(2023, 6, 15)))
	require.NoError(t, err)
	require.Len(t, dh.Histories, 1)
	assert.Equal(t, 85.0, *dh.Histories[0].TemperatureHigh)

	// idempotent re-add
	n, err = b.AddHistories(model.DailyHistories{Location: model.Location{Alias: "test"}, Histories: []model.History{h}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDailyHistoriesUnknownLocation(t *testing.T) {
	b, _ := newTestBackend(t)
	_, err := b.DailyHistories("nope", model.NewDateRange(model.NewDate(2020, 1, 1), model.NewDate(2020, 1, 1)))
	assert.Error(t, err)
}
