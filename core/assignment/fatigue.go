package assignment

import (
	"fmt"
	"math"
	"time"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

// fatigueAdjustment is the outcome of a single fatigue rule.
type fatigueAdjustment struct {
	deduction float64
	warning   string
	// override replaces a warning set by an earlier rule.
	override bool
}

type fatigueRule func(u model.Unit, now time.Time) fatigueAdjustment

func overThreshold(value, threshold, window, penalty float64) float64 {
	if value <= threshold {
		return 0
	}
	return (value - threshold) / window * penalty
}

func fatigueRules(cfg FatigueConfig) []fatigueRule {
	return []fatigueRule{
		func(u model.Unit, _ time.Time) fatigueAdjustment {
			if u.HoursWorkedToday == nil {
				return fatigueAdjustment{}
			}
			return fatigueAdjustment{deduction: overThreshold(*u.HoursWorkedToday, cfg.HoursThreshold, cfg.HoursWindow, cfg.HoursPenalty)}
		},
		func(u model.Unit, _ time.Time) fatigueAdjustment {
			if u.TransportHoursToday == nil {
				return fatigueAdjustment{}
			}
			return fatigueAdjustment{deduction: overThreshold(*u.TransportHoursToday, cfg.TransportHoursThreshold, cfg.TransportHoursWindow, cfg.TransportHoursPenalty)}
		},
		func(u model.Unit, _ time.Time) fatigueAdjustment {
			if u.IncidentsToday == nil {
				return fatigueAdjustment{}
			}
			return fatigueAdjustment{deduction: overThreshold(float64(*u.IncidentsToday), float64(cfg.IncidentThreshold), cfg.IncidentWindow, cfg.IncidentPenalty)}
		},
		func(u model.Unit, _ time.Time) fatigueAdjustment {
			switch u.FatigueRisk {
			case model.FatigueModerate:
				return fatigueAdjustment{deduction: cfg.ModeratePenalty}
			case model.FatigueHigh:
				return fatigueAdjustment{deduction: cfg.HighPenalty, warning: "unit has high fatigue risk level", override: true}
			case model.FatigueCritical:
				return fatigueAdjustment{deduction: cfg.CriticalPenalty, warning: "unit has CRITICAL fatigue risk, recommend rest period", override: true}
			}
			return fatigueAdjustment{}
		},
		func(u model.Unit, now time.Time) fatigueAdjustment {
			if u.LastBreakAt == nil {
				return fatigueAdjustment{}
			}
			if now.Sub(*u.LastBreakAt).Hours() <= cfg.BreakIntervalHours {
				return fatigueAdjustment{}
			}
			return fatigueAdjustment{
				deduction: cfg.BreakPenalty,
				warning:   fmt.Sprintf("no break in over %.0f hours", cfg.BreakIntervalHours),
			}
		},
	}
}

func scoreFatigue(rules []fatigueRule, u model.Unit, now time.Time) componentResult {
	score := 100.0
	var warning string
	for _, rule := range rules {
		adj := rule(u, now)
		score -= adj.deduction
		if adj.warning != "" && (adj.override || warning == "") {
			warning = adj.warning
		}
	}
	score = math.Max(0, score)

	hours := 0.0
	if u.HoursWorkedToday != nil {
		hours = *u.HoursWorkedToday
	}
	incidents := 0
	if u.IncidentsToday != nil {
		incidents = *u.IncidentsToday
	}
	res := componentResult{
		score:     score,
		reasoning: fmt.Sprintf("Fatigue: %.1fh worked today, %d incidents today (score %.0f)", hours, incidents, score),
	}
	if warning != "" {
		res.warnings = []string{warning}
	}
	return res
}
