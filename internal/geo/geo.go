package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distance.
const EarthRadiusKm = 6371.0

// Coordinates represents a geographic point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates are finite and within the
// -90..90 latitude and -180..180 longitude ranges.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// DistanceKm returns the great-circle distance between two coordinates in
// kilometers, computed with the haversine formula. The result is commutative
// and zero for identical points.
//
// This is the single authoritative distance formula: both the radius filter
// and alert proximity checks go through it.
func DistanceKm(a, b Coordinates) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

func toRadians(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}

// FormatDistance renders a distance in kilometers for display.
// A nil distance (location unknown) renders as "Unknown"; distances under
// one kilometer render as rounded meters.
func FormatDistance(km *float64) string {
	if km == nil {
		return "Unknown"
	}

	if *km < 1 {
		return fmt.Sprintf("%dm", int(math.Round(*km*1000)))
	}

	return fmt.Sprintf("%.1fkm", *km)
}
