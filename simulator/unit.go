// Package simulator runs a fleet of transport units over MQTT. Each unit
// publishes its state and answers assignment notifications.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
	"github.com/ridgeline-ems/ift-dispatch/infra/logger"
	"github.com/ridgeline-ems/ift-dispatch/infra/mqtt"
)

// publisher is the subset of paho.Client used to answer and report.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(broker, clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.AutoReconnect = true
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}

// SimulatedUnit connects to MQTT, reports its state and answers
// assignments.
type SimulatedUnit struct {
	Broker      string
	StatePrefix string
	Interval    time.Duration
	Strategy    AckStrategy

	mu       sync.Mutex
	unit     model.Unit
	pub      publisher
	received []mqtt.AssignmentMessage
	log      logger.Logger
}

// NewSimulatedUnit creates a unit. StatePrefix defaults to "unit/state" and
// Interval to 30s.
func NewSimulatedUnit(u model.Unit, broker string, strat AckStrategy) *SimulatedUnit {
	if strat == nil {
		strat = AutoAck{}
	}
	return &SimulatedUnit{
		Broker:      broker,
		StatePrefix: "unit/state",
		Interval:    30 * time.Second,
		Strategy:    strat,
		unit:        u,
		log:         logger.New("simulator").With("unit_id", u.ID),
	}
}

// Unit returns the current simulated state.
func (s *SimulatedUnit) Unit() model.Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unit
}

// Received returns the assignments delivered so far.
func (s *SimulatedUnit) Received() []mqtt.AssignmentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mqtt.AssignmentMessage(nil), s.received...)
}

// Run connects, subscribes to the unit's assignment topic and reports state
// until ctx is done. ready, when non-nil, is closed once the subscription is
// active and the first state report was sent.
func (s *SimulatedUnit) Run(ctx context.Context, ready chan<- struct{}) error {
	id := s.Unit().ID
	cli, err := newMQTTClient(s.Broker, "sim-"+id)
	if err != nil {
		return err
	}
	defer cli.Disconnect(250)
	s.mu.Lock()
	s.pub = cli
	s.mu.Unlock()

	handler := func(_ paho.Client, msg paho.Message) { s.onAssignment(ctx, msg.Payload()) }
	if token := cli.Subscribe(mqtt.AssignmentTopic(id), 1, handler); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	if err := s.publishState(true); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.publishState(false); err != nil {
				s.log.Warnf("state report: %v", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *SimulatedUnit) onAssignment(ctx context.Context, payload []byte) {
	var msg mqtt.AssignmentMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.log.Warnf("decode assignment: %v", err)
		return
	}
	s.mu.Lock()
	s.received = append(s.received, msg)
	s.mu.Unlock()

	d := s.Strategy.Decide(s.Unit().ID, msg)
	if !d.Answer {
		s.log.Infof("ignoring assignment %s", msg.CommandID)
		return
	}
	if d.Delay > 0 {
		go func() {
			select {
			case <-time.After(d.Delay):
				s.answer(msg, d.Accept)
			case <-ctx.Done():
			}
		}()
		return
	}
	s.answer(msg, d.Accept)
}

func (s *SimulatedUnit) answer(msg mqtt.AssignmentMessage, accept bool) {
	if err := s.publishAck(msg.CommandID, accept); err != nil {
		s.log.Errorf("publish ack: %v", err)
		return
	}
	if !accept {
		return
	}
	s.mu.Lock()
	s.unit.Status = model.StatusEnRoute
	n := 1
	if s.unit.IncidentsToday != nil {
		n = *s.unit.IncidentsToday + 1
	}
	s.unit.IncidentsToday = &n
	s.mu.Unlock()
	if err := s.publishState(false); err != nil {
		s.log.Warnf("state report: %v", err)
	}
}

func (s *SimulatedUnit) publishAck(commandID string, accept bool) error {
	payload, err := json.Marshal(mqtt.AckMessage{CommandID: commandID, Accepted: &accept})
	if err != nil {
		return err
	}
	return s.publish(mqtt.AckTopic(s.Unit().ID), payload)
}

// stateMessage mirrors the payload decoded by the telemetry manager.
type stateMessage struct {
	UnitID           string           `json:"unit_id"`
	OrganizationID   string           `json:"organization_id,omitempty"`
	Name             string           `json:"name,omitempty"`
	Type             model.UnitType   `json:"type,omitempty"`
	Status           model.UnitStatus `json:"status"`
	Capabilities     *capabilities    `json:"capabilities,omitempty"`
	Lat              *float64         `json:"lat,omitempty"`
	Lon              *float64         `json:"lon,omitempty"`
	HoursWorkedToday *float64         `json:"hours_worked_today,omitempty"`
	IncidentsToday   *int             `json:"incidents_today,omitempty"`
	FatigueRisk      string           `json:"fatigue_risk,omitempty"`
	TS               int64            `json:"ts"`

	OnTimePercentage   *float64 `json:"on_time_percentage,omitempty"`
	ComplianceScore    *float64 `json:"compliance_score,omitempty"`
	AvgResponseMinutes *float64 `json:"avg_response_minutes,omitempty"`
	TotalTransports    *int     `json:"total_transports,omitempty"`
}

type capabilities struct {
	ALS          bool     `json:"als"`
	CCT          bool     `json:"cct"`
	Bariatric    bool     `json:"bariatric"`
	Ventilator   bool     `json:"ventilator"`
	Paramedic    bool     `json:"paramedic"`
	CCTCertified bool     `json:"cct_certified"`
	MaxWeightLbs *float64 `json:"max_weight_lbs,omitempty"`
}

// stateFor builds the report for u. The sign-on report carries identity,
// capabilities and performance history; periodic reports only carry what
// changes during a shift.
func stateFor(u model.Unit, signOn bool, now time.Time) stateMessage {
	m := stateMessage{
		UnitID:           u.ID,
		Status:           u.Status,
		HoursWorkedToday: u.HoursWorkedToday,
		IncidentsToday:   u.IncidentsToday,
		FatigueRisk:      string(u.FatigueRisk),
		TS:               now.Unix(),
	}
	if u.Location != nil {
		lat, lon := u.Location.Latitude, u.Location.Longitude
		m.Lat, m.Lon = &lat, &lon
	}
	if signOn {
		m.OrganizationID = u.OrganizationID
		m.Name = u.Name
		m.Type = u.Type
		m.Capabilities = &capabilities{
			ALS:          u.ALSCapable,
			CCT:          u.CCTCapable,
			Bariatric:    u.BariatricCapable,
			Ventilator:   u.HasVentilator,
			Paramedic:    u.HasParamedic,
			CCTCertified: u.HasCCTCertified,
			MaxWeightLbs: u.MaxWeightCapacityLbs,
		}
		m.OnTimePercentage = u.OnTimePercentage
		m.ComplianceScore = u.ComplianceScore
		m.AvgResponseMinutes = u.AvgResponseMinutes
		m.TotalTransports = u.TotalTransports
	}
	return m
}

func (s *SimulatedUnit) publishState(signOn bool) error {
	u := s.Unit()
	payload, err := json.Marshal(stateFor(u, signOn, time.Now()))
	if err != nil {
		return err
	}
	return s.publish(fmt.Sprintf("%s/%s", s.StatePrefix, u.ID), payload)
}

func (s *SimulatedUnit) publish(topic string, payload []byte) error {
	s.mu.Lock()
	pub := s.pub
	s.mu.Unlock()
	if pub == nil {
		return fmt.Errorf("unit %s is not connected", s.Unit().ID)
	}
	token := pub.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}
