package models

import "encoding/json"

// WeatherPayload is the canonical current-weather shape served to clients
// and stored in the cache. Current holds the provider's "current conditions"
// object verbatim when the provider supplied one, or a snapshot synthesized
// from the hourly series otherwise.
type WeatherPayload struct {
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Current   json.RawMessage `json:"current"`
}

// CurrentConditions is the synthesized current-weather snapshot. Pointer
// fields marshal as explicit nulls when the provider omitted the series.
type CurrentConditions struct {
	Time                string   `json:"time"`
	Temperature2M       *float64 `json:"temperature_2m"`
	RelativeHumidity2M  *float64 `json:"relative_humidity_2m"`
	ApparentTemperature *float64 `json:"apparent_temperature"`
	Precipitation       *float64 `json:"precipitation"`
	WindSpeed10M        *float64 `json:"wind_speed_10m"`
	WindDirection10M    *float64 `json:"wind_direction_10m"`
}
