package assignment

import (
	"fmt"
	"math"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

// DistanceCalculator returns the distance in miles between two points.
type DistanceCalculator interface {
	Miles(from, to model.Location) float64
}

const earthRadiusMiles = 3958.8

// HaversineCalculator computes great-circle distance.
type HaversineCalculator struct{}

func (HaversineCalculator) Miles(from, to model.Location) float64 {
	lat1 := degToRad(from.Latitude)
	lat2 := degToRad(to.Latitude)
	dLat := degToRad(to.Latitude - from.Latitude)
	dLon := degToRad(to.Longitude - from.Longitude)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }

// PlanarCalculator is the flat-earth approximation used by the first dispatch
// console: degree delta scaled by 69 miles, clamped to [1, 200]. It is only
// kept to reproduce historical rankings.
type PlanarCalculator struct{}

func (PlanarCalculator) Miles(from, to model.Location) float64 {
	dLat := to.Latitude - from.Latitude
	dLon := to.Longitude - from.Longitude
	d := math.Sqrt(dLat*dLat+dLon*dLon) * 69
	return math.Max(1, math.Min(200, d))
}

func calculatorFor(method string) DistanceCalculator {
	if method == "planar" {
		return PlanarCalculator{}
	}
	return HaversineCalculator{}
}

type distanceResult struct {
	componentResult
	miles float64
}

func (e *Engine) scoreDistance(u model.Unit, inc model.Incident) distanceResult {
	cfg := e.cfg.Distance
	if u.Location == nil {
		return distanceResult{componentResult: componentResult{
			score:     50,
			reasoning: "Distance: unit location unknown (neutral score 50)",
			warnings:  []string{"no GPS location for unit, GPS tracking recommended"},
		}}
	}
	if inc.PickupLocation == nil {
		return distanceResult{componentResult: componentResult{
			score:     50,
			reasoning: "Distance: pickup location unknown (neutral score 50)",
			warnings:  []string{"incident pickup location unknown, distance not scored"},
		}}
	}

	miles := e.distance.Miles(*u.Location, *inc.PickupLocation)
	score := distanceScore(miles, cfg.OptimalMiles, cfg.MaxMiles)
	res := distanceResult{
		componentResult: componentResult{
			score:     score,
			reasoning: fmt.Sprintf("Distance: %.1f miles (score %.0f)", miles, score),
		},
		miles: miles,
	}
	if miles > cfg.FarWarningMiles {
		res.warnings = []string{fmt.Sprintf("unit is far from incident location (%.1f miles)", miles)}
	}
	return res
}

// distanceScore is 100 inside the optimal radius, 0 at or past max, and
// decays linearly in between.
func distanceScore(miles, optimal, max float64) float64 {
	switch {
	case miles <= optimal:
		return 100
	case miles >= max:
		return 0
	default:
		return 100 * (1 - (miles-optimal)/(max-optimal))
	}
}
