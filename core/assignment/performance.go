package assignment

import (
	"fmt"
	"strings"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

func (e *Engine) scorePerformance(u model.Unit) componentResult {
	cfg := e.cfg.Performance
	score := cfg.Baseline
	var factors []string

	if u.OnTimePercentage != nil {
		score += (*u.OnTimePercentage - 50) / 2
		factors = append(factors, fmt.Sprintf("%.0f%% on-time", *u.OnTimePercentage))
	}
	if u.ComplianceScore != nil {
		score += (*u.ComplianceScore - 50) / 2
		factors = append(factors, fmt.Sprintf("%.0f compliance", *u.ComplianceScore))
	}
	if u.AvgResponseMinutes != nil {
		switch m := *u.AvgResponseMinutes; {
		case m < cfg.FastResponseMinutes:
			score += cfg.ResponseAdjust
			factors = append(factors, "fast response")
		case m > cfg.SlowResponseMinutes:
			score -= cfg.ResponseAdjust
			factors = append(factors, "slow response")
		}
	}
	if u.TotalTransports != nil {
		switch n := *u.TotalTransports; {
		case n > cfg.ExperiencedTransports:
			score += cfg.ExperiencedBonus
			factors = append(factors, "highly experienced")
		case n < cfg.NoviceTransports:
			score -= cfg.NovicePenalty
			factors = append(factors, "limited experience")
		}
	}

	reasoning := "Performance: no history available (neutral)"
	if len(factors) > 0 {
		reasoning = "Performance: " + strings.Join(factors, ", ")
	}
	return componentResult{score: clamp(score, 0, 100), reasoning: reasoning}
}
