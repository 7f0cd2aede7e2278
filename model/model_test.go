package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryRoundTrip(t *testing.T) {
	h := History{
		Alias:           "test",
		Date:            NewDate(2023, 6, 15),
		TemperatureHigh: Float64(85.0),
		TemperatureLow:  Float64(62.0),
	}

	data, err := ToBytes(h)
	assert.NoError(t, err)

	back, err := FromBytes("test", data)
	assert.NoError(t, err)
	assert.Equal(t, h.Alias, back.Alias)
	assert.Equal(t, h.Date.String(), back.Date.String())
	assert.Equal(t, *h.TemperatureHigh, *back.TemperatureHigh)
	assert.Nil(t, back.Humidity)
}

func TestHistoryFromBytesIgnoresUnknownKeys(t *testing.T) {
	back, err := FromBytes("test", []byte(`{"date":"2023-06-15","temperature_high":85.0,"unexpected_field":true}`))
	assert.NoError(t, err)
	assert.Equal(t, "2023-06-15", back.Date.String())
}

func TestHistoryFromBytesMissingKeysAreNil(t *testing.T) {
	back, err := FromBytes("test", []byte(`{"date":"2023-06-15"}`))
	assert.NoError(t, err)
	assert.Nil(t, back.TemperatureHigh)
	assert.Nil(t, back.Description)
}

func TestDateRangeContains(t *testing.T) {
	r := NewDateRange(NewDate(2022, 12, 31), NewDate(2023, 1, 1))
	assert.True(t, r.Contains(NewDate(2022, 12, 31)))
	assert.True(t, r.Contains(NewDate(2023, 1, 1)))
	assert.False(t, r.Contains(NewDate(2022, 12, 30)))
	assert.False(t, r.Contains(NewDate(2023, 1, 2)))
}

func TestFromDatesFolding(t *testing.T) {
	dates := []Date{
		NewDate(2023, 3, 5),
		NewDate(2023, 3, 1),
		NewDate(2023, 3, 2),
		NewDate(2023, 3, 3),
		NewDate(2023, 3, 7),
	}
	ranges := FromDates(dates)

	want := []DateRange{
		{From: NewDate(2023, 3, 1), To: NewDate(2023, 3, 3)},
		{From: NewDate(2023, 3, 5), To: NewDate(2023, 3, 5)},
		{From: NewDate(2023, 3, 7), To: NewDate(2023, 3, 7)},
	}
	assert.Len(t, ranges, len(want))
	for i := range want {
		assert.Equal(t, want[i].From.String(), ranges[i].From.String())
		assert.Equal(t, want[i].To.String(), ranges[i].To.String())
	}
}

func TestFromDatesDeduplicates(t *testing.T) {
	dates := []Date{NewDate(2023, 1, 1), NewDate(2023, 1, 1), NewDate(2023, 1, 2)}
	ranges := FromDates(dates)
	assert.Len(t, ranges, 1)
	assert.Equal(t, "2023-01-01", ranges[0].From.String())
	assert.Equal(t, "2023-01-02", ranges[0].To.String())
}

func TestFromDatesEmpty(t *testing.T) {
	assert.Nil(t, FromDates(nil))
}

func TestValidAlias(t *testing.T) {
	assert.True(t, ValidAlias("test"))
	assert.False(t, ValidAlias("Test"))
	assert.False(t, ValidAlias(""))
	assert.False(t, ValidAlias("a/b"))
}
