package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ridgeline-ems/ift-dispatch/config"
	"github.com/ridgeline-ems/ift-dispatch/core/events"
	"github.com/ridgeline-ems/ift-dispatch/core/model"
	"github.com/ridgeline-ems/ift-dispatch/core/unitstatus"
	"github.com/ridgeline-ems/ift-dispatch/infra/logger"
	infmqtt "github.com/ridgeline-ems/ift-dispatch/infra/mqtt"
	"github.com/ridgeline-ems/ift-dispatch/internal/eventbus"
)

// Manager collects unit telemetry either via push or polling and merges it
// into the unit registry.
type Manager struct {
	cfg   config.TelemetryConfig
	cli   paho.Client
	units unitstatus.Store
	bus   eventbus.EventBus
	log   logger.Logger

	respCh     chan telemetryMessage
	subscribe  sync.Once
	pullActive bool

	messages     *prometheus.CounterVec
	decodeErrors prometheus.Counter
	pollReq      prometheus.Counter
	pollResp     prometheus.Counter
	pollTimeout  prometheus.Counter
	lastCollect  prometheus.Gauge
	latency      prometheus.Histogram
}

type telemetryMessage struct {
	UnitID  string
	Payload []byte
	Arrived time.Time
}

// statePayload is the JSON published by units. Absent fields keep the value
// already held in the registry.
type statePayload struct {
	UnitID              string   `json:"unit_id"`
	OrganizationID      string   `json:"organization_id"`
	Name                string   `json:"name"`
	Type                string   `json:"type"`
	Status              string   `json:"status"`
	Capabilities        *caps    `json:"capabilities"`
	Lat                 *float64 `json:"lat"`
	Lon                 *float64 `json:"lon"`
	OnTimePercentage    *float64 `json:"on_time_percentage"`
	ComplianceScore     *float64 `json:"compliance_score"`
	AvgResponseMinutes  *float64 `json:"avg_response_minutes"`
	TotalTransports     *int     `json:"total_transports"`
	HoursWorkedToday    *float64 `json:"hours_worked_today"`
	TransportHoursToday *float64 `json:"transport_hours_today"`
	IncidentsToday      *int     `json:"incidents_today"`
	FatigueRisk         *string  `json:"fatigue_risk"`
	LastBreakAt         *string  `json:"last_break_at"`
	TS                  *int64   `json:"ts"`
}

// caps is reported by a unit when it signs on and whenever its crew or
// equipment changes. It replaces every capability flag at once.
type caps struct {
	ALS          bool     `json:"als"`
	CCT          bool     `json:"cct"`
	Bariatric    bool     `json:"bariatric"`
	Ventilator   bool     `json:"ventilator"`
	Paramedic    bool     `json:"paramedic"`
	CCTCertified bool     `json:"cct_certified"`
	MaxWeightLbs *float64 `json:"max_weight_lbs"`
}

// NewManager connects to MQTT and prepares telemetry collection. Collectors
// are registered on reg, or the default registerer when nil.
func NewManager(mqttCfg infmqtt.Config, cfg config.TelemetryConfig, units unitstatus.Store, bus eventbus.EventBus, reg prometheus.Registerer) (*Manager, error) {
	if units == nil {
		return nil, errors.New("telemetry: unit store is required")
	}
	opts, err := infmqtt.NewClientOptions(mqttCfg)
	if err != nil {
		return nil, err
	}
	id := mqttCfg.ClientID
	if id != "" {
		id += "-telemetry"
	} else {
		id = "telemetry-" + uuid.NewString()
	}
	opts.SetClientID(id)
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	m := newManager(cfg, cli, units, bus)
	if err := m.register(reg); err != nil {
		cli.Disconnect(250)
		return nil, err
	}
	return m, nil
}

func newManager(cfg config.TelemetryConfig, cli paho.Client, units unitstatus.Store, bus eventbus.EventBus) *Manager {
	return &Manager{
		cfg:          cfg,
		cli:          cli,
		units:        units,
		bus:          bus,
		log:          logger.New("telemetry"),
		respCh:       make(chan telemetryMessage, 100),
		messages:     prometheus.NewCounterVec(prometheus.CounterOpts{Name: "telemetry_messages_total", Help: "Telemetry messages merged into the unit registry"}, []string{"context"}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_decode_errors_total", Help: "Telemetry messages that could not be decoded"}),
		pollReq:      prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_requests_total", Help: "Number of telemetry poll requests"}),
		pollResp:     prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_responses_total", Help: "Number of telemetry poll responses"}),
		pollTimeout:  prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_timeout_total", Help: "Number of units that did not answer a poll"}),
		lastCollect:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "telemetry_last_collect_timestamp_seconds", Help: "Unix timestamp of last telemetry collection"}),
		latency:      prometheus.NewHistogram(prometheus.HistogramOpts{Name: "telemetry_collect_latency_seconds", Help: "Latency of telemetry collection", Buckets: prometheus.DefBuckets}),
	}
}

func (m *Manager) register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{m.messages, m.decodeErrors, m.pollReq, m.pollResp, m.pollTimeout, m.lastCollect, m.latency} {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register telemetry metrics: %w", err)
		}
	}
	return nil
}

// Subscribe registers the state and poll response subscriptions. It is
// called by Start and may be called earlier so that no sign-on is missed.
func (m *Manager) Subscribe() error {
	var err error
	m.subscribe.Do(func() {
		mode := strings.ToLower(m.cfg.Mode)
		if mode == "" {
			mode = "push"
		}
		if mode == "push" || mode == "hybrid" {
			topic := strings.TrimSuffix(m.cfg.StateTopicPrefix(), "/") + "/+"
			if token := m.cli.Subscribe(topic, 0, m.onPush); token.Wait() && token.Error() != nil {
				err = fmt.Errorf("subscribe state: %w", token.Error())
				return
			}
		}
		if mode == "pull" || mode == "hybrid" {
			topic := strings.TrimSuffix(m.cfg.ResponsePrefix, "/") + "/+"
			if token := m.cli.Subscribe(topic, 0, m.onResponse); token.Wait() && token.Error() != nil {
				err = fmt.Errorf("subscribe response: %w", token.Error())
				return
			}
			m.pullActive = true
		}
	})
	return err
}

// Start runs telemetry collection until context is done.
func (m *Manager) Start(ctx context.Context) {
	if err := m.Subscribe(); err != nil {
		m.log.Errorf("%v", err)
	}
	if m.pullActive {
		go m.pollLoop(ctx)
	}
	<-ctx.Done()
	if m.cli.IsConnected() {
		m.cli.Disconnect(250)
	}
}

func (m *Manager) onPush(_ paho.Client, msg paho.Message) {
	if err := m.process(msg.Payload(), msg.Topic(), "push"); err != nil {
		m.log.Errorf("push decode: %v", err)
	}
}

func (m *Manager) onResponse(_ paho.Client, msg paho.Message) {
	m.respCh <- telemetryMessage{UnitID: extractID(msg.Topic()), Payload: msg.Payload(), Arrived: time.Now()}
}

func extractID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return ""
}

func (m *Manager) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(m.cfg.Interval()) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.doPoll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// doPoll publishes a poll request and waits for every known unit to answer
// until the timeout.
func (m *Manager) doPoll(ctx context.Context) {
	start := time.Now()
	expected := map[string]struct{}{}
	for _, st := range m.units.List(unitstatus.Filter{}) {
		if st.Unit.Status != model.StatusOffDuty {
			expected[st.Unit.ID] = struct{}{}
		}
	}
	m.pollReq.Inc()
	token := m.cli.Publish(m.cfg.RequestTopic, 0, false, []byte("poll"))
	token.Wait()
	timeout := time.NewTimer(time.Duration(m.cfg.Timeout()) * time.Second)
	defer timeout.Stop()
	for {
		select {
		case resp := <-m.respCh:
			if err := m.process(resp.Payload, "", "poll"); err != nil {
				m.log.Errorf("poll decode: %v", err)
				continue
			}
			m.pollResp.Inc()
			m.latency.Observe(time.Since(start).Seconds())
			m.lastCollect.SetToCurrentTime()
			delete(expected, resp.UnitID)
		case <-timeout.C:
			for range expected {
				m.pollTimeout.Inc()
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

// process decodes a telemetry payload and merges it into the registry.
func (m *Manager) process(payload []byte, topic, source string) error {
	var msg statePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		m.countDecodeError()
		return err
	}
	if msg.UnitID == "" {
		msg.UnitID = extractID(topic)
	}
	if msg.UnitID == "" {
		m.countDecodeError()
		return errors.New("telemetry without unit id")
	}
	apply, err := msg.merger()
	if err != nil {
		m.countDecodeError()
		return fmt.Errorf("unit %s: %w", msg.UnitID, err)
	}
	m.units.Update(msg.UnitID, apply)
	if m.messages != nil {
		m.messages.WithLabelValues(source).Inc()
	}
	if m.bus != nil {
		if st, ok := m.units.Get(msg.UnitID); ok {
			m.bus.Publish(events.UnitEvent{Unit: st.Unit, Component: "telemetry"})
		}
	}
	return nil
}

func (m *Manager) countDecodeError() {
	if m.decodeErrors != nil {
		m.decodeErrors.Inc()
	}
}

// merger validates the payload and returns the function applying it.
func (p statePayload) merger() (func(*model.Unit), error) {
	var status model.UnitStatus
	if p.Status != "" {
		s, err := model.ParseUnitStatus(p.Status)
		if err != nil {
			return nil, err
		}
		status = s
	}
	var unitType model.UnitType
	if p.Type != "" {
		t, err := model.ParseUnitType(p.Type)
		if err != nil {
			return nil, err
		}
		unitType = t
	}
	var risk *model.FatigueRisk
	if p.FatigueRisk != nil {
		r, err := model.ParseFatigueRisk(*p.FatigueRisk)
		if err != nil {
			return nil, err
		}
		risk = &r
	}
	var lastBreak *time.Time
	if p.LastBreakAt != nil {
		t, err := time.Parse(time.RFC3339, *p.LastBreakAt)
		if err != nil {
			return nil, fmt.Errorf("last_break_at: %w", err)
		}
		lastBreak = &t
	}
	if (p.Lat == nil) != (p.Lon == nil) {
		return nil, errors.New("lat and lon must be reported together")
	}

	return func(u *model.Unit) {
		if p.OrganizationID != "" {
			u.OrganizationID = p.OrganizationID
		}
		if p.Name != "" {
			u.Name = p.Name
		}
		if unitType != "" {
			u.Type = unitType
		}
		if status != "" {
			u.Status = status
		}
		if c := p.Capabilities; c != nil {
			u.ALSCapable, u.CCTCapable, u.BariatricCapable, u.HasVentilator = c.ALS, c.CCT, c.Bariatric, c.Ventilator
			u.HasParamedic, u.HasCCTCertified = c.Paramedic, c.CCTCertified
			u.MaxWeightCapacityLbs = c.MaxWeightLbs
		}
		if p.Lat != nil {
			u.Location = &model.Location{Latitude: *p.Lat, Longitude: *p.Lon}
		}
		if p.OnTimePercentage != nil {
			u.OnTimePercentage = p.OnTimePercentage
		}
		if p.ComplianceScore != nil {
			u.ComplianceScore = p.ComplianceScore
		}
		if p.AvgResponseMinutes != nil {
			u.AvgResponseMinutes = p.AvgResponseMinutes
		}
		if p.TotalTransports != nil {
			u.TotalTransports = p.TotalTransports
		}
		if p.HoursWorkedToday != nil {
			u.HoursWorkedToday = p.HoursWorkedToday
		}
		if p.TransportHoursToday != nil {
			u.TransportHoursToday = p.TransportHoursToday
		}
		if p.IncidentsToday != nil {
			u.IncidentsToday = p.IncidentsToday
		}
		if risk != nil {
			u.FatigueRisk = *risk
		}
		if lastBreak != nil {
			u.LastBreakAt = lastBreak
		}
	}, nil
}
