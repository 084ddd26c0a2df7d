package cities

import "strings"

// Coordinate is a latitude/longitude pair for a supported city.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// table is the fixed set of cities this demo serves. Keys are lowercase;
// lookups are case-insensitive.
var table = map[string]Coordinate{
	"jaipur":    {Latitude: 26.9124, Longitude: 75.7873},
	"mumbai":    {Latitude: 19.0760, Longitude: 72.8777},
	"delhi":     {Latitude: 28.6139, Longitude: 77.2090},
	"ahmedabad": {Latitude: 23.0225, Longitude: 72.5714},
}

// Coordinates returns the coordinates for a city name, case-insensitively.
func Coordinates(name string) (Coordinate, bool) {
	c, ok := table[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Names returns the supported city names in lowercase. The slice is a copy.
func Names() []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	return names
}
