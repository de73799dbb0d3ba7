package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
	"github.com/ridgeline-ems/ift-dispatch/core/monitoring"
	coremqtt "github.com/ridgeline-ems/ift-dispatch/core/mqtt"
	"github.com/ridgeline-ems/ift-dispatch/infra/logger"
)

// DefaultAckTopic is subscribed when Config.AckTopic is empty.
const DefaultAckTopic = "unit/+/ack"

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string          `json:"broker"`
	ClientID   string          `json:"client_id"`
	Username   string          `json:"username"`
	Password   string          `json:"password"`
	AckTopic   string          `json:"ack_topic"`
	UseTLS     bool            `json:"use_tls"`
	ClientCert string          `json:"client_cert"`
	ClientKey  string          `json:"client_key"`
	CABundle   string          `json:"ca_bundle"`
	AuthMethod string          `json:"auth_method"`
	QoS        map[string]byte `json:"qos"`
	LWTTopic   string          `json:"lwt_topic"`
	LWTPayload string          `json:"lwt_payload"`
	LWTQoS     byte            `json:"lwt_qos"`
	LWTRetain  bool            `json:"lwt_retain"`
	MaxRetries int             `json:"max_retries"`
	BackoffMS  int             `json:"backoff_ms"`
	TLSConfig  *tls.Config     `json:"-"`
}

// Validate checks the fields needed to connect.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt: broker is required")
	}
	switch c.AuthMethod {
	case "", "username_password", "certificate", "both":
	default:
		return fmt.Errorf("mqtt: unknown auth_method %q", c.AuthMethod)
	}
	return nil
}

// AssignmentTopic is the topic a unit listens on for assignments.
func AssignmentTopic(unitID string) string {
	return fmt.Sprintf("unit/%s/assignment", unitID)
}

// AckTopic is the topic a unit answers on.
func AckTopic(unitID string) string {
	return fmt.Sprintf("unit/%s/ack", unitID)
}

// AssignmentMessage is the payload published to a unit.
type AssignmentMessage struct {
	CommandID     string              `json:"command_id"`
	IncidentID    string              `json:"incident_id"`
	UnitID        string              `json:"unit_id"`
	TransportType model.TransportType `json:"transport_type"`
	Pickup        *model.Location     `json:"pickup,omitempty"`
	Score         float64             `json:"score"`
	Timestamp     int64               `json:"timestamp"`
}

// AckMessage is the answer sent back by a unit. Accepted defaults to true
// when omitted.
type AckMessage struct {
	CommandID string `json:"command_id"`
	Accepted  *bool  `json:"accepted,omitempty"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient implements the core mqtt.Client interface using Eclipse Paho.
type PahoClient struct {
	cli      pahoClient
	ackTopic string
	qos      map[string]byte

	mu         sync.Mutex
	ackChans   map[string]pendingAck
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

// pendingAck is an assignment waiting for the answer of the unit it was
// sent to.
type pendingAck struct {
	unitID string
	ch     chan bool
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker and subscribes to the ack topic.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		ackTopic:   cfg.AckTopic,
		ackChans:   make(map[string]pendingAck),
		logger:     log,
		qos:        cfg.QoS,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}
	if pc.ackTopic == "" {
		pc.ackTopic = DefaultAckTopic
	}
	if pc.maxRetries <= 0 {
		pc.maxRetries = 3
	}
	if pc.backoff <= 0 {
		pc.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(pc.ackTopic, pc.qosFor("ack"), pc.onAck); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("ca bundle %s contains no certificates", c.CABundle)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

// ackUnit returns the unit segment of an ack topic. checked is false when
// the ack topic has no single-level wildcard to identify the sender.
func (p *PahoClient) ackUnit(topic string) (unitID string, checked bool) {
	pattern := strings.Split(p.ackTopic, "/")
	parts := strings.Split(topic, "/")
	for i, seg := range pattern {
		if seg != "+" {
			continue
		}
		if len(parts) != len(pattern) {
			return "", true
		}
		return parts[i], true
	}
	return "", false
}

func (p *PahoClient) onAck(_ paho.Client, msg paho.Message) {
	var m AckMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	accepted := m.Accepted == nil || *m.Accepted
	p.mu.Lock()
	defer p.mu.Unlock()
	pending, ok := p.ackChans[m.CommandID]
	if !ok {
		return
	}
	if sender, checked := p.ackUnit(msg.Topic()); checked && sender != pending.unitID {
		p.logger.Warnf("ignoring ack %s on %s: command was sent to %s", m.CommandID, msg.Topic(), pending.unitID)
		return
	}
	select {
	case pending.ch <- accepted:
	default:
	}
	p.logger.Infof("received ack %s (accepted=%t)", m.CommandID, accepted)
}

// SendAssignment publishes the assignment to the unit topic and returns the
// command identifier used for acknowledgment tracking. Publishing is retried
// with exponential backoff.
func (p *PahoClient) SendAssignment(unitID string, n coremqtt.Notification) (string, error) {
	cmdID := uuid.NewString()
	payload, err := json.Marshal(AssignmentMessage{
		CommandID:     cmdID,
		IncidentID:    n.IncidentID,
		UnitID:        unitID,
		TransportType: n.TransportType,
		Pickup:        n.Pickup,
		Score:         n.Score,
		Timestamp:     time.Now().UnixMilli(),
	})
	if err != nil {
		return "", err
	}

	// registered before publishing so a fast answer is not lost
	p.mu.Lock()
	p.ackChans[cmdID] = pendingAck{unitID: unitID, ch: make(chan bool, 1)}
	p.mu.Unlock()

	topic := AssignmentTopic(unitID)
	qos := p.qosFor("assignment")
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Infof("sent assignment %s to %s", cmdID, topic)
			break
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	if publishErr != nil {
		p.forget(cmdID)
		monitoring.CaptureException(publishErr, map[string]string{
			"module":      "mqtt",
			"unit_id":     unitID,
			"incident_id": n.IncidentID,
		})
		return "", publishErr
	}
	return cmdID, nil
}

// WaitForAck blocks until the unit answers the command or timeout elapses.
// A refusal returns ErrDeclined.
func (p *PahoClient) WaitForAck(commandID string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	pending, ok := p.ackChans[commandID]
	p.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("unknown command %s", commandID)
	}
	defer p.forget(commandID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case accepted := <-pending.ch:
		if !accepted {
			return false, coremqtt.ErrDeclined
		}
		return true, nil
	case <-timer.C:
		return false, fmt.Errorf("command %s: %w", commandID, coremqtt.ErrAckTimeout)
	}
}

func (p *PahoClient) forget(commandID string) {
	p.mu.Lock()
	delete(p.ackChans, commandID)
	p.mu.Unlock()
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
