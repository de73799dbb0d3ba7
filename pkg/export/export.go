// Package export writes recommendation sets for reporting tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/ridgeline-ems/ift-dispatch/core/assignment"
)

// Gate decides whether a recommendation may be assigned. *assignment.Engine
// implements it.
type Gate interface {
	IsAcceptable(rec assignment.Recommendation) bool
}

// CSVHeader is the column order written by WriteCSV.
var CSVHeader = []string{
	"incident_id", "rank", "unit_id", "total",
	"distance", "qualification", "performance", "fatigue",
	"distance_miles", "acceptable",
}

// WriteJSON writes the recommendation sets as an indented JSON array.
func WriteJSON(w io.Writer, sets ...assignment.RecommendationSet) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if sets == nil {
		sets = []assignment.RecommendationSet{}
	}
	return enc.Encode(sets)
}

// WriteCSV writes one row per recommendation. Rank starts at 1.
func WriteCSV(w io.Writer, g Gate, sets ...assignment.RecommendationSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, set := range sets {
		for i, rec := range set.Recommendations {
			row := []string{
				set.IncidentID,
				strconv.Itoa(i + 1),
				rec.Unit.ID,
				formatFloat(rec.TotalScore),
				formatFloat(rec.Scores.Distance),
				formatFloat(rec.Scores.Qualification),
				formatFloat(rec.Scores.Performance),
				formatFloat(rec.Scores.Fatigue),
				formatFloat(rec.DistanceMiles),
				strconv.FormatBool(g.IsAcceptable(rec)),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
