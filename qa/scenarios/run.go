package scenarios

import (
	"fmt"
	"slices"

	"github.com/ridgeline-ems/ift-dispatch/core/assignment"
)

// Result is the outcome of running one scenario.
type Result struct {
	Scenario string
	Set      assignment.RecommendationSet
	Failures []string
}

func (r Result) Passed() bool { return len(r.Failures) == 0 }

// Run ranks the scenario units and compares the ranking with the
// expectations. The error is only set when the engine rejects the incident.
func Run(e *assignment.Engine, sc *Scenario) (Result, error) {
	res := Result{Scenario: sc.Name}
	set, err := e.FindBestUnits(sc.Incident, sc.Units, sc.Max)
	if err != nil {
		return res, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	res.Set = set

	exp := sc.Expected
	fail := func(format string, args ...any) {
		res.Failures = append(res.Failures, fmt.Sprintf(format, args...))
	}
	if exp.TopUnit != "" {
		top, ok := set.Top()
		switch {
		case !ok:
			fail("top unit: want %s, got none", exp.TopUnit)
		case top.Unit.ID != exp.TopUnit:
			fail("top unit: want %s, got %s (%.2f)", exp.TopUnit, top.Unit.ID, top.TotalScore)
		}
	}
	if exp.Count != nil && len(set.Recommendations) != *exp.Count {
		fail("count: want %d, got %d", *exp.Count, len(set.Recommendations))
	}

	var acceptable []string
	rejected := map[string][]string{}
	for _, rec := range set.Recommendations {
		if reasons := e.Rejections(rec); len(reasons) > 0 {
			rejected[rec.Unit.ID] = reasons
			continue
		}
		acceptable = append(acceptable, rec.Unit.ID)
	}
	if exp.Acceptable != nil && !slices.Equal(acceptable, exp.Acceptable) {
		fail("acceptable: want %v, got %v", exp.Acceptable, acceptable)
	}
	for _, id := range exp.Rejected {
		if _, ok := rejected[id]; !ok {
			fail("unit %s: expected a gate rejection", id)
		}
	}
	return res, nil
}
