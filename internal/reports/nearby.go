package reports

import (
	"sort"

	"github.com/disasterwatch/disasterwatch/internal/geo"
)

// NearbyReport is a report annotated with its distance from the user.
type NearbyReport struct {
	Report
	Distance float64 `json:"distance"`
}

// Nearby derives the subset of reports within radiusKm of the given location,
// annotated with distance and sorted ascending. Ties keep the input order.
// A nil location yields an empty result; reports with invalid coordinates are
// excluded rather than allowed to poison the distance computation.
//
// This is a pure derivation over its inputs and holds no state.
func Nearby(loc *geo.Coordinates, rs []Report, radiusKm float64) []NearbyReport {
	if loc == nil {
		return nil
	}

	var nearby []NearbyReport
	for _, r := range rs {
		if !r.Location.Valid() {
			continue
		}

		d := geo.DistanceKm(*loc, r.Location)
		if d <= radiusKm {
			nearby = append(nearby, NearbyReport{Report: r, Distance: d})
		}
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		return nearby[i].Distance < nearby[j].Distance
	})

	return nearby
}

// WithDistances annotates every report with its distance from the given
// location, or nil when the location is unknown or the report's coordinates
// are unusable. Used for the full report list, where out-of-radius reports
// still display a distance.
func WithDistances(loc *geo.Coordinates, rs []Report) []*float64 {
	distances := make([]*float64, len(rs))
	if loc == nil {
		return distances
	}

	for i, r := range rs {
		if !r.Location.Valid() {
			continue
		}
		d := geo.DistanceKm(*loc, r.Location)
		distances[i] = &d
	}

	return distances
}
