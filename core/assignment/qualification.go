package assignment

import (
	"fmt"
	"math"
	"strings"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

// qualificationRule is one capability check. A rule only runs when applies
// returns true; an unmet rule deducts penalty and reports missing plus a
// warning, a met rule reports matched (when non-empty).
type qualificationRule struct {
	applies   func(model.Incident, model.Unit) bool
	satisfied func(model.Incident, model.Unit) bool
	penalty   float64
	matched   string
	missing   string
	warning   func(model.Incident, model.Unit) string
}

func fixedWarning(msg string) func(model.Incident, model.Unit) string {
	return func(model.Incident, model.Unit) string { return msg }
}

func transportIs(t model.TransportType) func(model.Incident, model.Unit) bool {
	return func(inc model.Incident, _ model.Unit) bool { return inc.TransportType == t }
}

// qualificationRules builds the rule table. Transport type rules are mutually
// exclusive because an incident has exactly one transport type; the crew and
// equipment rules are independent.
func qualificationRules(p QualificationPenalties) []qualificationRule {
	return []qualificationRule{
		{
			applies:   transportIs(model.TransportCCT),
			satisfied: func(_ model.Incident, u model.Unit) bool { return u.Type == model.UnitCCT || u.CCTCapable },
			penalty:   p.CCTTransport,
			matched:   "CCT capable",
			missing:   "CCT capability",
			warning:   fixedWarning("unit lacks critical care transport capability"),
		},
		{
			applies:   transportIs(model.TransportHEMS),
			satisfied: func(_ model.Incident, u model.Unit) bool { return u.Type == model.UnitHEMS },
			penalty:   p.HEMSTransport,
			matched:   "HEMS unit",
			missing:   "HEMS aircraft",
			warning:   fixedWarning("incident requires HEMS but unit is not a helicopter"),
		},
		{
			applies:   transportIs(model.TransportBariatric),
			satisfied: func(_ model.Incident, u model.Unit) bool { return u.BariatricCapable },
			penalty:   p.BariatricTransport,
			matched:   "bariatric capable",
			missing:   "bariatric capability",
			warning:   fixedWarning("unit lacks bariatric capability"),
		},
		{
			applies:   transportIs(model.TransportALS),
			satisfied: func(_ model.Incident, u model.Unit) bool { return u.ALSCapable },
			penalty:   p.ALSTransport,
			matched:   "ALS capable",
			missing:   "ALS capability",
			warning:   fixedWarning("unit lacks ALS capability"),
		},
		{
			applies:   func(inc model.Incident, _ model.Unit) bool { return inc.RequiresParamedic },
			satisfied: func(_ model.Incident, u model.Unit) bool { return u.HasParamedic },
			penalty:   p.Paramedic,
			matched:   "paramedic on crew",
			missing:   "paramedic",
			warning:   fixedWarning("incident requires a paramedic but none is on the crew"),
		},
		{
			applies:   func(inc model.Incident, _ model.Unit) bool { return inc.RequiresCCTCertification },
			satisfied: func(_ model.Incident, u model.Unit) bool { return u.HasCCTCertified },
			penalty:   p.CCTCertification,
			matched:   "CCT certified crew",
			missing:   "CCT certification",
			warning:   fixedWarning("incident requires CCT certified crew"),
		},
		{
			applies:   func(inc model.Incident, _ model.Unit) bool { return inc.RequiresVentilator },
			satisfied: func(_ model.Incident, u model.Unit) bool { return u.HasVentilator },
			penalty:   p.Ventilator,
			matched:   "ventilator",
			missing:   "ventilator",
			warning:   fixedWarning("incident requires a ventilator but unit has none"),
		},
		{
			applies:   func(inc model.Incident, _ model.Unit) bool { return inc.RequiresBariatricEquipment },
			satisfied: func(_ model.Incident, u model.Unit) bool { return u.BariatricCapable },
			penalty:   p.BariatricEquipment,
			matched:   "bariatric equipment",
			missing:   "bariatric equipment",
			warning:   fixedWarning("incident requires bariatric equipment"),
		},
		{
			applies: func(inc model.Incident, u model.Unit) bool {
				return inc.PatientWeightLbs != nil && u.MaxWeightCapacityLbs != nil
			},
			satisfied: func(inc model.Incident, u model.Unit) bool {
				return *inc.PatientWeightLbs <= *u.MaxWeightCapacityLbs
			},
			penalty: p.WeightCapacity,
			missing: "weight capacity",
			warning: func(inc model.Incident, u model.Unit) string {
				return fmt.Sprintf("patient weight %.0f lbs exceeds unit capacity of %.0f lbs",
					*inc.PatientWeightLbs, *u.MaxWeightCapacityLbs)
			},
		},
	}
}

func scoreQualification(rules []qualificationRule, inc model.Incident, u model.Unit) componentResult {
	score := 100.0
	var matched, missing, warnings []string
	for _, r := range rules {
		if !r.applies(inc, u) {
			continue
		}
		if r.satisfied(inc, u) {
			if r.matched != "" {
				matched = append(matched, r.matched)
			}
			continue
		}
		score -= r.penalty
		missing = append(missing, r.missing)
		warnings = append(warnings, r.warning(inc, u))
	}

	var reasoning string
	switch {
	case len(missing) > 0:
		reasoning = "Qualifications: missing " + strings.Join(missing, ", ")
	case len(matched) > 0:
		reasoning = "Qualifications: " + strings.Join(matched, ", ")
	default:
		reasoning = "Qualifications: meets basic requirements"
	}
	return componentResult{score: math.Max(0, score), reasoning: reasoning, warnings: warnings}
}
