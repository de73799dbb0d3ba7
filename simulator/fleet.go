package simulator

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

// FleetConfig holds parameters for bulk fleet generation.
type FleetConfig struct {
	Size           int
	OrganizationID string
	Center         model.Location
	// RadiusMiles bounds the distance of generated units from Center.
	RadiusMiles float64
	// ALSRatio is the share of units that are ALS capable with a paramedic.
	ALSRatio float64
	// CCTRatio is the share of units that are CCT trucks.
	CCTRatio float64
	Seed     int64
}

// GenerateFleet creates Size available units with IDs unit001..unitNNN spread
// uniformly over the configured disc.
func GenerateFleet(cfg FleetConfig) []model.Unit {
	if cfg.Size <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	units := make([]model.Unit, cfg.Size)
	for i := range units {
		u := model.Unit{
			ID:               fmt.Sprintf("unit%03d", i+1),
			OrganizationID:   cfg.OrganizationID,
			Status:           model.StatusAvailable,
			Type:             model.UnitAmbulance,
			Location:         scatter(rng, cfg.Center, cfg.RadiusMiles),
			FatigueRisk:      model.FatigueLow,
			HoursWorkedToday: model.Float(math.Round(rng.Float64()*100) / 10),
		}
		switch p := rng.Float64(); {
		case p < cfg.CCTRatio:
			u.Type = model.UnitCCT
			u.CCTCapable, u.ALSCapable, u.HasVentilator, u.HasCCTCertified, u.HasParamedic = true, true, true, true, true
		case p < cfg.CCTRatio+cfg.ALSRatio:
			u.ALSCapable, u.HasParamedic = true, true
		}
		u.OnTimePercentage = model.Float(math.Round(800+rng.Float64()*200) / 10)
		u.ComplianceScore = model.Float(math.Round(750+rng.Float64()*250) / 10)
		u.AvgResponseMinutes = model.Float(math.Round(50+rng.Float64()*150) / 10)
		u.TotalTransports = model.Int(rng.Intn(3000))
		units[i] = u
	}
	return units
}

// scatter returns a point within radius miles of c.
func scatter(rng *rand.Rand, c model.Location, radius float64) *model.Location {
	r := radius * math.Sqrt(rng.Float64())
	theta := rng.Float64() * 2 * math.Pi
	const milesPerDegree = 69.09
	lat := c.Latitude + r*math.Cos(theta)/milesPerDegree
	lon := c.Longitude + r*math.Sin(theta)/(milesPerDegree*math.Cos(c.Latitude*math.Pi/180))
	return &model.Location{Latitude: lat, Longitude: lon}
}
