package model

import (
	"encoding/json"
	"time"
)

// Date is a calendar day with no time component, serialized as the ISO
// "YYYY-MM-DD" form used throughout the archive and document-mode blobs.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate builds the calendar day year-month-day at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses the internal canonical ISO form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// Before/After/Equal are exposed via the embedded time.Time. AddDays returns
// the date offset by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{d.AddDate(0, 0, n)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// History is the canonical daily weather record. Every weather field
// is optional (a pointer) to preserve the source's sparsity; derivation
// chains must stop at the first non-nil value rather than collapsing
// an absent reading to zero.
type History struct {
	Alias  string `json:"alias"`
	Date   Date   `json:"date"`

	TemperatureHigh    *float64   `json:"temperature_high,omitempty"`
	TemperatureLow     *float64   `json:"temperature_low,omitempty"`
	TemperatureMean    *float64   `json:"temperature_mean,omitempty"`
	DewPoint           *float64   `json:"dew_point,omitempty"`
	Humidity           *float64   `json:"humidity,omitempty"`
	PrecipitationChance *float64  `json:"precipitation_chance,omitempty"`
	PrecipitationType  *string    `json:"precipitation_type,omitempty"`
	PrecipitationAmount *float64  `json:"precipitation_amount,omitempty"`
	WindSpeed          *float64   `json:"wind_speed,omitempty"`
	WindGust           *float64   `json:"wind_gust,omitempty"`
	WindDirection      *int       `json:"wind_direction,omitempty"`
	CloudCover         *float64   `json:"cloud_cover,omitempty"`
	Pressure           *float64   `json:"pressure,omitempty"`
	UVIndex            *float64   `json:"uv_index,omitempty"`
	Sunrise            *time.Time `json:"sunrise,omitempty"`
	Sunset             *time.Time `json:"sunset,omitempty"`
	MoonPhase          *float64   `json:"moon_phase,omitempty"`
	Visibility         *float64   `json:"visibility,omitempty"`
	Description        *string    `json:"description,omitempty"`
}

// ToBytes serializes a History to UTF-8 JSON with no pretty-printing, the
// wire format archives and document-mode blobs store on disk.
func ToBytes(h History) ([]byte, error) {
	return json.Marshal(h)
}

// FromBytes decodes a History from JSON, re-stamping the alias since archive
// entries don't repeat it in the document body in every source variant.
// Unknown keys are ignored by encoding/json by default, matching the "MUST
// NOT fail deserialization" contract.
func FromBytes(alias string, data []byte) (History, error) {
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return History{}, err
	}
	h.Alias = alias
	return h, nil
}

// Float64 returns a pointer to v, a convenience for building History
// literals and for the migration engine's derivation chain.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// Time returns a pointer to v.
func Time(v time.Time) *time.Time { return &v }
