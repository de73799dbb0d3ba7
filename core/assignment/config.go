package assignment

import (
	"fmt"
	"math"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

// Weights are the relative contributions of the four component scores to the
// total. They must be non-negative and sum to 1.
type Weights struct {
	Distance      float64 `json:"distance"`
	Qualification float64 `json:"qualification"`
	Performance   float64 `json:"performance"`
	Fatigue       float64 `json:"fatigue"`
}

func (w Weights) validate() error {
	for i, v := range w.vector() {
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative", weightNames[i])
		}
	}
	if sum := w.Distance + w.Qualification + w.Performance + w.Fatigue; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("weights must sum to 1, got %.4f", sum)
	}
	return nil
}

// weightNames follows the order of vector.
var weightNames = [...]string{"distance", "qualification", "performance", "fatigue"}

func (w Weights) vector() []float64 {
	return []float64{w.Distance, w.Qualification, w.Performance, w.Fatigue}
}

// DistanceConfig controls the distance decay curve.
type DistanceConfig struct {
	// Method selects the calculator: "haversine" (default) or "planar".
	Method          string  `json:"method"`
	OptimalMiles    float64 `json:"optimal_miles"`
	MaxMiles        float64 `json:"max_miles"`
	FarWarningMiles float64 `json:"far_warning_miles"`
}

// QualificationPenalties holds the deduction applied for each unmet requirement.
type QualificationPenalties struct {
	CCTTransport       float64 `json:"cct_transport"`
	HEMSTransport      float64 `json:"hems_transport"`
	BariatricTransport float64 `json:"bariatric_transport"`
	ALSTransport       float64 `json:"als_transport"`
	Paramedic          float64 `json:"paramedic"`
	CCTCertification   float64 `json:"cct_certification"`
	Ventilator         float64 `json:"ventilator"`
	BariatricEquipment float64 `json:"bariatric_equipment"`
	WeightCapacity     float64 `json:"weight_capacity"`
}

// PerformanceConfig tunes the historical performance adjustments.
type PerformanceConfig struct {
	Baseline              float64 `json:"baseline"`
	FastResponseMinutes   float64 `json:"fast_response_minutes"`
	SlowResponseMinutes   float64 `json:"slow_response_minutes"`
	ResponseAdjust        float64 `json:"response_adjust"`
	ExperiencedTransports int     `json:"experienced_transports"`
	ExperiencedBonus      float64 `json:"experienced_bonus"`
	NoviceTransports      int     `json:"novice_transports"`
	NovicePenalty         float64 `json:"novice_penalty"`
}

// FatigueConfig tunes the fatigue deductions. Each "over threshold" deduction
// is (value - threshold) / window * penalty.
type FatigueConfig struct {
	HoursThreshold          float64 `json:"hours_threshold"`
	HoursWindow             float64 `json:"hours_window"`
	HoursPenalty            float64 `json:"hours_penalty"`
	TransportHoursThreshold float64 `json:"transport_hours_threshold"`
	TransportHoursWindow    float64 `json:"transport_hours_window"`
	TransportHoursPenalty   float64 `json:"transport_hours_penalty"`
	IncidentThreshold       int     `json:"incident_threshold"`
	IncidentWindow          float64 `json:"incident_window"`
	IncidentPenalty         float64 `json:"incident_penalty"`
	ModeratePenalty         float64 `json:"moderate_penalty"`
	HighPenalty             float64 `json:"high_penalty"`
	CriticalPenalty         float64 `json:"critical_penalty"`
	BreakIntervalHours      float64 `json:"break_interval_hours"`
	BreakPenalty            float64 `json:"break_penalty"`
}

// GateConfig defines when a recommendation is too poor to assign.
type GateConfig struct {
	MinTotalScore         float64 `json:"min_total_score"`
	MinQualificationScore float64 `json:"min_qualification_score"`
	MaxDistanceMiles      float64 `json:"max_distance_miles"`
	RejectCriticalFatigue bool    `json:"reject_critical_fatigue"`
}

// Config is the complete, immutable engine configuration.
type Config struct {
	Weights Weights `json:"weights"`
	// TransportWeights replaces Weights for incidents of the given type.
	TransportWeights       map[model.TransportType]Weights `json:"transport_weights"`
	Distance               DistanceConfig                  `json:"distance"`
	Qualification          QualificationPenalties          `json:"qualification"`
	Performance            PerformanceConfig               `json:"performance"`
	Fatigue                FatigueConfig                   `json:"fatigue"`
	Gate                   GateConfig                      `json:"gate"`
	DefaultRecommendations int                             `json:"default_recommendations"`
}

// DefaultConfig returns the production scoring policy.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{Distance: 0.35, Qualification: 0.30, Performance: 0.20, Fatigue: 0.15},
		Distance: DistanceConfig{
			Method:          "haversine",
			OptimalMiles:    10,
			MaxMiles:        100,
			FarWarningMiles: 50,
		},
		Qualification: QualificationPenalties{
			CCTTransport:       40,
			HEMSTransport:      50,
			BariatricTransport: 40,
			ALSTransport:       30,
			Paramedic:          25,
			CCTCertification:   30,
			Ventilator:         20,
			BariatricEquipment: 25,
			WeightCapacity:     40,
		},
		Performance: PerformanceConfig{
			Baseline:              50,
			FastResponseMinutes:   10,
			SlowResponseMinutes:   20,
			ResponseAdjust:        10,
			ExperiencedTransports: 1000,
			ExperiencedBonus:      10,
			NoviceTransports:      50,
			NovicePenalty:         5,
		},
		Fatigue: FatigueConfig{
			HoursThreshold:          12,
			HoursWindow:             24,
			HoursPenalty:            50,
			TransportHoursThreshold: 6,
			TransportHoursWindow:    12,
			TransportHoursPenalty:   30,
			IncidentThreshold:       8,
			IncidentWindow:          12,
			IncidentPenalty:         20,
			ModeratePenalty:         15,
			HighPenalty:             35,
			CriticalPenalty:         60,
			BreakIntervalHours:      6,
			BreakPenalty:            10,
		},
		Gate: GateConfig{
			MinTotalScore:         40,
			MinQualificationScore: 60,
			MaxDistanceMiles:      100,
			RejectCriticalFatigue: true,
		},
		DefaultRecommendations: 3,
	}
}

// Validate checks the configuration for values the scorers cannot work with.
func (c Config) Validate() error {
	if err := c.Weights.validate(); err != nil {
		return err
	}
	for tt, w := range c.TransportWeights {
		if !tt.Valid() {
			return fmt.Errorf("transport_weights: unknown transport type %q", tt)
		}
		if err := w.validate(); err != nil {
			return fmt.Errorf("transport_weights[%s]: %w", tt, err)
		}
	}
	if c.Distance.OptimalMiles < 0 || c.Distance.OptimalMiles >= c.Distance.MaxMiles {
		return fmt.Errorf("distance: optimal_miles must be in [0, max_miles)")
	}
	switch c.Distance.Method {
	case "", "haversine", "planar":
	default:
		return fmt.Errorf("distance: unknown method %q", c.Distance.Method)
	}
	if c.Fatigue.HoursWindow <= 0 || c.Fatigue.TransportHoursWindow <= 0 || c.Fatigue.IncidentWindow <= 0 {
		return fmt.Errorf("fatigue: windows must be positive")
	}
	if c.DefaultRecommendations <= 0 {
		return fmt.Errorf("default_recommendations must be positive")
	}
	return nil
}

func (c Config) weightsFor(t model.TransportType) Weights {
	if w, ok := c.TransportWeights[t]; ok {
		return w
	}
	return c.Weights
}
