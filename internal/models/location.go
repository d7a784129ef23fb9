package models

import "math"

// Default map centre used before the citizen picks a location (Navi Mumbai).
const (
	DefaultLatitude  = 19.0330
	DefaultLongitude = 73.0297
)

// ValidLatitude reports whether lat is a finite value within [-90, 90].
func ValidLatitude(lat float64) bool {
	return !math.IsNaN(lat) && lat >= -90 && lat <= 90
}

// ValidLongitude reports whether lon is a finite value within [-180, 180].
func ValidLongitude(lon float64) bool {
	return !math.IsNaN(lon) && lon >= -180 && lon <= 180
}

// Location is a confirmed coordinate with its human-readable address.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

// LocationSource records which resolution mode produced a result.
type LocationSource string

const (
	LocationSourceMapClick LocationSource = "MAP_CLICK"
	LocationSourceSearch   LocationSource = "SEARCH"
	LocationSourceDevice   LocationSource = "DEVICE"
)

// LocationResult is the outcome of a resolution. Degraded means the address could not be looked up.
type LocationResult struct {
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Address   string         `json:"address"`
	Degraded  bool           `json:"degraded"`
	Source    LocationSource `json:"source"`
}

// Location projects the result onto a Location.
func (r LocationResult) Location() Location {
	return Location{Latitude: r.Latitude, Longitude: r.Longitude, Address: r.Address}
}

// LocationSuggestion is one forward-geocoding candidate.
type LocationSuggestion struct {
	DisplayName string  `json:"displayName"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	PlaceID     string  `json:"placeId,omitempty"`
}

// DeviceFix is a single positioning reading reported by the citizen's device.
type DeviceFix struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// LocationSnapshot describes a resolver session for API consumers.
type LocationSnapshot struct {
	Current     *LocationResult      `json:"current,omitempty"`
	Suggestions []LocationSuggestion `json:"suggestions"`
	Resolving   bool                 `json:"resolving"`
}
