package client

import (
	"encoding/json"
	"fmt"

	"github.com/kjstillabower/weather-cache-api/internal/models"
)

type openMeteoResponse struct {
	Current        json.RawMessage `json:"current"`
	CurrentWeather json.RawMessage `json:"current_weather"`
	Hourly         hourlySeries    `json:"hourly"`
}

type hourlySeries struct {
	Time                []string   `json:"time"`
	Temperature2M       []*float64 `json:"temperature_2m"`
	RelativeHumidity2M  []*float64 `json:"relative_humidity_2m"`
	ApparentTemperature []*float64 `json:"apparent_temperature"`
	Precipitation       []*float64 `json:"precipitation"`
	WindSpeed10M        []*float64 `json:"wind_speed_10m"`
	WindDirection10M    []*float64 `json:"wind_direction_10m"`
}

// normalizePayload maps a raw provider response body to the canonical
// payload. The requested coordinates label the payload, not whatever
// rounded values the provider echoes back.
func normalizePayload(body []byte, lat, lon float64) (models.WeatherPayload, error) {
	var resp openMeteoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.WeatherPayload{}, fmt.Errorf("parse response: %w", err)
	}

	return models.WeatherPayload{
		Latitude:  lat,
		Longitude: lon,
		Current:   normalizeCurrent(resp),
	}, nil
}

// normalizeCurrent picks the provider's current-conditions object verbatim
// when it carries a temperature, and otherwise synthesizes a snapshot from
// the latest hourly sample. The result is never a partial merge of both.
func normalizeCurrent(resp openMeteoResponse) json.RawMessage {
	candidate := resp.Current
	if !isJSONObject(candidate) {
		candidate = resp.CurrentWeather
	}
	if isJSONObject(candidate) && hasField(candidate, "temperature_2m") {
		return candidate
	}
	return synthesizeFromHourly(resp.Hourly)
}

// synthesizeFromHourly builds a current snapshot from the last index of the
// hourly parallel arrays, labeled with the matching timestamp. An empty
// time array yields an empty object: degraded but non-fatal.
func synthesizeFromHourly(h hourlySeries) json.RawMessage {
	if len(h.Time) == 0 {
		return json.RawMessage("{}")
	}

	idx := len(h.Time) - 1
	snapshot := models.CurrentConditions{
		Time:                h.Time[idx],
		Temperature2M:       sampleAt(h.Temperature2M, idx),
		RelativeHumidity2M:  sampleAt(h.RelativeHumidity2M, idx),
		ApparentTemperature: sampleAt(h.ApparentTemperature, idx),
		Precipitation:       sampleAt(h.Precipitation, idx),
		WindSpeed10M:        sampleAt(h.WindSpeed10M, idx),
		WindDirection10M:    sampleAt(h.WindDirection10M, idx),
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}

// sampleAt reads the series at idx, nil when the series is missing or
// shorter than the time array.
func sampleAt(series []*float64, idx int) *float64 {
	if idx < 0 || idx >= len(series) {
		return nil
	}
	return series[idx]
}

func isJSONObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

func hasField(raw json.RawMessage, field string) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false
	}
	_, ok := obj[field]
	return ok
}
