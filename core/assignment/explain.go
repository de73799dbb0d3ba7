package assignment

import (
	"fmt"
	"strings"
)

// Explain renders rec as a multi-line report for dispatchers.
func (e *Engine) Explain(rec Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Unit %s: total score %.1f/100\n", rec.Unit.DisplayName(), rec.TotalScore)
	b.WriteString("Breakdown:\n")
	for _, r := range rec.Reasoning {
		b.WriteString("  • ")
		b.WriteString(r)
		b.WriteByte('\n')
	}
	if len(rec.Warnings) > 0 {
		b.WriteString("Warnings:\n")
		for _, w := range rec.Warnings {
			b.WriteString("  ⚠ ")
			b.WriteString(w)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
