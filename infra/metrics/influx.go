package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/ridgeline-ems/ift-dispatch/core/metrics"
	"github.com/ridgeline-ems/ift-dispatch/infra/logger"
)

// InfluxSink writes assignment events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordRecommendations writes one point per ranked unit.
func (s *InfluxSink) RecordRecommendations(recs []coremetrics.RecommendationMetric) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("recommendation").
			AddTag("incident_id", r.IncidentID).
			AddTag("organization_id", r.OrganizationID).
			AddTag("transport_type", r.TransportType.String()).
			AddTag("unit_id", r.UnitID).
			AddTag("acceptable", strconv.FormatBool(r.Acceptable)).
			AddField("rank", r.Rank).
			AddField("total_score", round3(r.TotalScore)).
			AddField("distance_score", round3(r.Distance)).
			AddField("qualification_score", round3(r.Qualification)).
			AddField("performance_score", round3(r.Performance)).
			AddField("fatigue_score", round3(r.Fatigue)).
			AddField("distance_miles", round3(r.DistanceMiles)).
			SetTime(r.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordAck records a unit answer.
func (s *InfluxSink) RecordAck(ev coremetrics.AckEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("unit_ack").
		AddTag("unit_id", ev.UnitID).
		AddTag("incident_id", ev.IncidentID).
		AddTag("command_id", ev.CommandID).
		AddTag("transport_type", ev.TransportType.String()).
		AddField("ack", ev.Acknowledged).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000))
	if ev.Error != "" {
		p = p.AddField("error", ev.Error)
	}
	p = p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAssignment records the final outcome of an incident.
func (s *InfluxSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("assignment").
		AddTag("incident_id", ev.IncidentID).
		AddTag("transport_type", ev.TransportType.String()).
		AddTag("outcome", ev.Outcome)
	if ev.UnitID != "" {
		p = p.AddTag("unit_id", ev.UnitID)
	}
	p = p.AddField("attempts", ev.Attempts).
		AddField("fallback", ev.Fallback).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordFallback records a candidate being abandoned.
func (s *InfluxSink) RecordFallback(ev coremetrics.FallbackEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("fallback_applied").
		AddTag("incident_id", ev.IncidentID).
		AddTag("component", "assignment_manager")
	if ev.FromUnitID != "" {
		p = p.AddTag("unit_id", ev.FromUnitID)
	}
	p = p.AddField("fallback_reason", ev.Reason).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordUnitState writes a snapshot of a unit. Unknown optional values are
// left out of the point.
func (s *InfluxSink) RecordUnitState(ev coremetrics.UnitStateEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	u := ev.Unit
	p := write.NewPointWithMeasurement("unit_state").
		AddTag("unit_id", u.ID).
		AddTag("organization_id", u.OrganizationID)
	if ev.Component != "" {
		p = p.AddTag("component", ev.Component)
	}
	p = p.AddField("status", string(u.Status))
	if u.FatigueRisk != "" {
		p = p.AddField("fatigue_risk", string(u.FatigueRisk))
	}
	if u.HoursWorkedToday != nil {
		p = p.AddField("hours_worked_today", round3(*u.HoursWorkedToday))
	}
	if u.IncidentsToday != nil {
		p = p.AddField("incidents_today", *u.IncidentsToday)
	}
	if u.Location != nil {
		p = p.AddField("lat", u.Location.Latitude).AddField("lon", u.Location.Longitude)
	}
	p = p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
