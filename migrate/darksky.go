// Package migrate converts DarkSky-schema archives to canonical History
// archives: each legacy entry's daily/hourly arrays are folded
// through a per-field derivation priority chain, and the result is written
// into a target archive via the same crash-safe add protocol every other
// writer uses.
package migrate

import (
	"encoding/json"
	"math"
	"time"

	"github.com/rerupp/weatherhist/model"
)

// darkSkyDaily is the subset of a DarkSky "daily.data[i]" record the
// derivation chain consults.
type darkSkyDaily struct {
	TemperatureHigh         *float64 `json:"temperatureHigh"`
	TemperatureMax          *float64 `json:"temperatureMax"`
	ApparentTemperatureHigh *float64 `json:"apparentTemperatureHigh"`
	ApparentTemperatureMax  *float64 `json:"apparentTemperatureMax"`
	TemperatureLow          *float64 `json:"temperatureLow"`
	TemperatureMin          *float64 `json:"temperatureMin"`
	ApparentTemperatureLow  *float64 `json:"apparentTemperatureLow"`
	ApparentTemperatureMin  *float64 `json:"apparentTemperatureMin"`
	DewPoint                *float64 `json:"dewPoint"`
	Humidity                *float64 `json:"humidity"`
	WindGust                *float64 `json:"windGust"`
	PrecipProbability       *float64 `json:"precipProbability"`
	WindSpeed               *float64 `json:"windSpeed"`
	CloudCover              *float64 `json:"cloudCover"`
	Pressure                *float64 `json:"pressure"`
	Visibility              *float64 `json:"visibility"`
	UvIndex                 *float64 `json:"uvIndex"`
	PrecipIntensity         *float64 `json:"precipIntensity"`
	WindBearing             *float64 `json:"windBearing"`
	SunriseTime             *int64   `json:"sunriseTime"`
	SunsetTime              *int64   `json:"sunsetTime"`
	PrecipType              *string  `json:"precipType"`
	Summary                 *string  `json:"summary"`
	MoonPhase               *float64 `json:"moonPhase"`
}

// darkSkyHourly is the subset of a DarkSky "hourly.data[i]" record the
// derivation chain falls back to.
type darkSkyHourly struct {
	Temperature       *float64 `json:"temperature"`
	DewPoint          *float64 `json:"dewPoint"`
	Humidity          *float64 `json:"humidity"`
	WindGust          *float64 `json:"windGust"`
	PrecipProbability *float64 `json:"precipProbability"`
	WindSpeed         *float64 `json:"windSpeed"`
	CloudCover        *float64 `json:"cloudCover"`
	Pressure          *float64 `json:"pressure"`
	Visibility        *float64 `json:"visibility"`
	UvIndex           *float64 `json:"uvIndex"`
	PrecipIntensity   *float64 `json:"precipIntensity"`
	WindBearing       *float64 `json:"windBearing"`
}

// darkSkyDocument is one archive entry's full legacy body.
type darkSkyDocument struct {
	Daily struct {
		Data []darkSkyDaily `json:"data"`
	} `json:"daily"`
	Hourly struct {
		Data []darkSkyHourly `json:"data"`
	} `json:"hourly"`
}

// parseDarkSky unmarshals a raw archive entry body into a darkSkyDocument.
func parseDarkSky(body []byte) (darkSkyDocument, error) {
	var doc darkSkyDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return darkSkyDocument{}, err
	}
	return doc, nil
}

// firstOf returns the first non-nil pointer among candidates, or nil.
func firstOf(candidates ...*float64) *float64 {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}

// hourlyValues extracts a non-nil projection of an hourly field across the
// whole day.
func hourlyValues(hourly []darkSkyHourly, pick func(darkSkyHourly) *float64) []float64 {
	var out []float64
	for _, h := range hourly {
		if v := pick(h); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func round(v float64, precision float64) float64 {
	return math.Round(v*precision) / precision
}

func maxOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return &m
}

func minOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return &m
}

func meanOf(values []float64, precision float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := round(sum/float64(len(values)), precision)
	return &mean
}

func sumOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}

// derive folds one DarkSky document into the canonical History for date,
// applying the derivation priority chain field by field.
func derive(alias string, date model.Date, doc darkSkyDocument) model.History {
	var daily darkSkyDaily
	if len(doc.Daily.Data) > 0 {
		daily = doc.Daily.Data[0]
	}
	hourly := doc.Hourly.Data

	h := model.History{Alias: alias, Date: date}

	h.TemperatureHigh = firstOf(daily.TemperatureHigh, daily.TemperatureMax, daily.ApparentTemperatureHigh, daily.ApparentTemperatureMax)
	if h.TemperatureHigh == nil {
		h.TemperatureHigh = maxOf(hourlyValues(hourly, func(x darkSkyHourly) *float64 { return x.Temperature }))
	}

	h.TemperatureLow = firstOf(daily.TemperatureLow, daily.TemperatureMin, daily.ApparentTemperatureLow, daily.ApparentTemperatureMin)
	if h.TemperatureLow == nil {
		h.TemperatureLow = minOf(hourlyValues(hourly, func(x darkSkyHourly) *float64 { return x.Temperature }))
	}

	h.TemperatureMean = meanOf(hourlyValues(hourly, func(x darkSkyHourly) *float64 { return x.Temperature }), 100)

	h.DewPoint = firstOf(daily.DewPoint)
	if h.DewPoint == nil {
		h.DewPoint = maxOf(hourlyValues(hourly, func(x darkSkyHourly) *float64 { return x.DewPoint }))
	}

	h.Humidity = firstOf(daily.Humidity)
	if h.Humidity == nil {
		h.Humidity = maxOf(hourlyValues(hourly, func(x darkSkyHourly) *float64 { return x.Humidity }))
	}

	h.WindGust = firstOf(daily.WindGust)
	if h.WindGust == nil {
		h.WindGust = maxOf(hourlyValues(hourly, func(x darkSkyHourly) *float64 { return x.WindGust }))
	}

	h.PrecipitationChance = firstOf(daily.PrecipProbability)
	if h.PrecipitationChance == nil {
		h.PrecipitationChance = meanOf(hourlyValues(hourly, func(x darkSkyHourly) *float64 { return x.PrecipProbability }), 100)
	}

	h.WindSpeed = firstOf(daily.WindSpeed)
	if h.WindSpeed == nil {
		h.WindSpeed = meanOf(hourlyValues(hourly, func(x darkSkyHourly) *float64 { return x.WindSpeed }), 100)
	}

	h.CloudCover = firstOf(daily.CloudCover)
	if h.CloudCover == nil {
		h.CloudCover = meanOf(hourlyValues(hourly, func(x darkSkyHourly) *float64 { return x.CloudCover }), 100)
	}

	h.Pressure = firstOf(daily.Pressure)
	if h.Pressure == nil {
		h.Pressure = meanOf(hourlyValues(hourly, func(x darkSkyHourly) *float64 { return x.Pressure }), 10000)
	}

	h.Visibility = firstOf(daily.Visibility)
	if h.Visibility == nil {
		h.Visibility = meanOf(hourlyValues(hourly, func(x darkSkyHourly) *float64 { return x.Visibility }), 100)
	}

	h.UVIndex = firstOf(daily.UvIndex)
	if h.UVIndex == nil {
		h.UVIndex = meanOf(hourlyValues(hourly, func(x darkSkyHourly) *float64 { return x.UvIndex }), 100)
	}

	if daily.PrecipIntensity != nil {
		amount := *daily.PrecipIntensity * 24
		h.PrecipitationAmount = &amount
	} else if values := hourlyValues(hourly, func(x darkSkyHourly) *float64 { return x.PrecipIntensity }); len(values) > 0 {
		sum := sumOf(values)
		h.PrecipitationAmount = &sum
	}

	if daily.WindBearing != nil {
		h.WindDirection = model.Int(int(math.Round(*daily.WindBearing)))
	} else if mean := meanOf(hourlyValues(hourly, func(x darkSkyHourly) *float64 { return x.WindBearing }), 1); mean != nil {
		h.WindDirection = model.Int(int(math.Round(*mean)))
	}

	if daily.SunriseTime != nil {
		t := time.Unix(*daily.SunriseTime, 0).UTC()
		h.Sunrise = &t
	}
	if daily.SunsetTime != nil {
		t := time.Unix(*daily.SunsetTime, 0).UTC()
		h.Sunset = &t
	}

	h.PrecipitationType = daily.PrecipType
	h.Description = daily.Summary
	h.MoonPhase = daily.MoonPhase

	return h
}
