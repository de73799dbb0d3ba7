package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-ems/ift-dispatch/core/assignment"
	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

type gateFunc func(assignment.Recommendation) bool

func (f gateFunc) IsAcceptable(r assignment.Recommendation) bool { return f(r) }

func sampleSet() assignment.RecommendationSet {
	return assignment.RecommendationSet{
		IncidentID: "inc-1",
		Recommendations: []assignment.Recommendation{
			{
				Unit:          model.Unit{ID: "u1"},
				TotalScore:    88.25,
				Scores:        assignment.ComponentScores{Distance: 100, Qualification: 100, Performance: 60, Fatigue: 65},
				DistanceMiles: 3.5,
			},
			{
				Unit:          model.Unit{ID: "u2"},
				TotalScore:    31,
				Scores:        assignment.ComponentScores{Distance: 10, Qualification: 40, Performance: 50, Fatigue: 35},
				DistanceMiles: 95.25,
			},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	gate := gateFunc(func(r assignment.Recommendation) bool { return r.TotalScore >= 40 })
	require.NoError(t, WriteCSV(&buf, gate, sampleSet()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "incident_id,rank,unit_id,total,distance,qualification,performance,fatigue,distance_miles,acceptable", lines[0])
	assert.Equal(t, "inc-1,1,u1,88.25,100,100,60,65,3.5,true", lines[1])
	assert.Equal(t, "inc-1,2,u2,31,10,40,50,35,95.25,false", lines[2])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleSet()))

	var out []assignment.RecommendationSet
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "u2", out[0].Recommendations[1].Unit.ID)

	buf.Reset()
	require.NoError(t, WriteJSON(&buf))
	assert.Equal(t, "[]\n", buf.String())
}
