package assignment

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

// ComponentScores holds the four 0-100 sub-scores of a recommendation.
type ComponentScores struct {
	Distance      float64 `json:"distance"`
	Qualification float64 `json:"qualification"`
	Performance   float64 `json:"performance"`
	Fatigue       float64 `json:"fatigue"`
}

func (s ComponentScores) vector() []float64 {
	return []float64{s.Distance, s.Qualification, s.Performance, s.Fatigue}
}

// Recommendation is a scored candidate unit.
type Recommendation struct {
	Unit          model.Unit      `json:"unit"`
	TotalScore    float64         `json:"total_score"`
	Scores        ComponentScores `json:"scores"`
	DistanceMiles float64         `json:"distance_miles"`
	Reasoning     []string        `json:"reasoning"`
	Warnings      []string        `json:"warnings"`
}

// RecommendationSet is the ranked output for one incident.
type RecommendationSet struct {
	IncidentID      string           `json:"incident_id"`
	GeneratedAt     time.Time        `json:"generated_at"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Top returns the best recommendation, if any.
func (s RecommendationSet) Top() (Recommendation, bool) {
	if len(s.Recommendations) == 0 {
		return Recommendation{}, false
	}
	return s.Recommendations[0], true
}

type componentResult struct {
	score     float64
	reasoning string
	warnings  []string
}

// Engine ranks candidate units for an incident. It holds no mutable state and
// is safe for concurrent use.
type Engine struct {
	cfg          Config
	distance     DistanceCalculator
	now          func() time.Time
	qualRules    []qualificationRule
	fatigueRules []fatigueRule
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for break tracking and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDistanceCalculator overrides the calculator selected by the config.
func WithDistanceCalculator(c DistanceCalculator) Option {
	return func(e *Engine) { e.distance = c }
}

// NewEngine validates cfg and returns an engine using it.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("assignment config: %w", err)
	}
	e := &Engine{
		cfg:          cfg,
		distance:     calculatorFor(cfg.Distance.Method),
		now:          time.Now,
		qualRules:    qualificationRules(cfg.Qualification),
		fatigueRules: fatigueRules(cfg.Fatigue),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// FindBestUnits scores every available unit of the incident's organization
// and returns up to max recommendations ordered by total score. Units with
// equal scores keep their candidate order. A max of zero or less selects the
// configured default.
func (e *Engine) FindBestUnits(inc model.Incident, units []model.Unit, max int) (RecommendationSet, error) {
	if err := inc.Validate(); err != nil {
		return RecommendationSet{}, err
	}
	if max <= 0 {
		max = e.cfg.DefaultRecommendations
	}

	now := e.now()
	recs := make([]Recommendation, 0, len(units))
	for _, u := range units {
		if !u.IsAvailable() || u.OrganizationID != inc.OrganizationID {
			continue
		}
		recs = append(recs, e.score(inc, u, now))
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].TotalScore > recs[j].TotalScore })
	if len(recs) > max {
		recs = recs[:max]
	}
	return RecommendationSet{IncidentID: inc.ID, GeneratedAt: now, Recommendations: recs}, nil
}

// Score evaluates a single unit without the availability and organization
// filters.
func (e *Engine) Score(inc model.Incident, u model.Unit) Recommendation {
	return e.score(inc, u, e.now())
}

func (e *Engine) score(inc model.Incident, u model.Unit, now time.Time) Recommendation {
	dist := e.scoreDistance(u, inc)
	qual := scoreQualification(e.qualRules, inc, u)
	perf := e.scorePerformance(u)
	fat := scoreFatigue(e.fatigueRules, u, now)

	scores := ComponentScores{
		Distance:      dist.score,
		Qualification: qual.score,
		Performance:   perf.score,
		Fatigue:       fat.score,
	}
	total := floats.Dot(e.cfg.weightsFor(inc.TransportType).vector(), scores.vector())

	warnings := make([]string, 0, len(qual.warnings)+len(dist.warnings)+len(fat.warnings))
	warnings = append(warnings, qual.warnings...)
	warnings = append(warnings, dist.warnings...)
	warnings = append(warnings, fat.warnings...)

	return Recommendation{
		Unit:          u,
		TotalScore:    round2(total),
		Scores:        scores,
		DistanceMiles: dist.miles,
		Reasoning:     []string{dist.reasoning, qual.reasoning, perf.reasoning, fat.reasoning},
		Warnings:      warnings,
	}
}

// IsAcceptable reports whether rec passes the assignment gate.
func (e *Engine) IsAcceptable(rec Recommendation) bool {
	return len(e.Rejections(rec)) == 0
}

// Rejections lists every gate rule rec violates.
func (e *Engine) Rejections(rec Recommendation) []string {
	g := e.cfg.Gate
	var out []string
	if rec.TotalScore < g.MinTotalScore {
		out = append(out, fmt.Sprintf("total score %.2f below minimum %.0f", rec.TotalScore, g.MinTotalScore))
	}
	if rec.Scores.Qualification < g.MinQualificationScore {
		out = append(out, fmt.Sprintf("qualification score %.0f below minimum %.0f", rec.Scores.Qualification, g.MinQualificationScore))
	}
	if rec.DistanceMiles > g.MaxDistanceMiles {
		out = append(out, fmt.Sprintf("distance %.1f miles exceeds maximum %.0f", rec.DistanceMiles, g.MaxDistanceMiles))
	}
	if g.RejectCriticalFatigue && rec.Unit.FatigueRisk == model.FatigueCritical {
		out = append(out, "unit fatigue risk is CRITICAL")
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }
