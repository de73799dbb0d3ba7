package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
	"github.com/ridgeline-ems/ift-dispatch/infra/logger"
)

// DefaultIncidentTopic carries new transport requests from the CAD.
const DefaultIncidentTopic = "incident/new"

// IncidentIntake subscribes to the incident topic and forwards every valid
// incident to a channel.
type IncidentIntake struct {
	cli   pahoClient
	topic string
	qos   byte
	out   chan model.Incident
	log   logger.Logger
}

// NewIncidentIntake connects a dedicated client for incident intake. An
// empty topic selects DefaultIncidentTopic.
func NewIncidentIntake(cfg Config, topic string) (*IncidentIntake, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID + "-intake")
	}
	if topic == "" {
		topic = DefaultIncidentTopic
	}
	in := &IncidentIntake{
		topic: topic,
		qos:   cfg.QoS["incident"],
		out:   make(chan model.Incident, 16),
		log:   logger.New("incident_intake"),
	}
	opts.OnConnect = func(c paho.Client) {
		if token := c.Subscribe(in.topic, in.qos, in.onMessage); token.Wait() && token.Error() != nil {
			in.log.Errorf("subscribe %s: %v", in.topic, token.Error())
		}
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	in.cli = c
	return in, nil
}

// Incidents returns the channel of decoded incidents.
func (in *IncidentIntake) Incidents() <-chan model.Incident { return in.out }

// Close disconnects once ctx is done.
func (in *IncidentIntake) Close(ctx context.Context) {
	<-ctx.Done()
	in.cli.Disconnect(250)
}

func (in *IncidentIntake) onMessage(_ paho.Client, msg paho.Message) {
	inc, err := decodeIncident(msg.Payload())
	if err != nil {
		in.log.Warnf("drop incident on %s: %v", msg.Topic(), err)
		return
	}
	select {
	case in.out <- inc:
	default:
		in.log.Errorf("incident queue full, dropping %s", inc.ID)
	}
}

func decodeIncident(payload []byte) (model.Incident, error) {
	var inc model.Incident
	if err := json.Unmarshal(payload, &inc); err != nil {
		return inc, fmt.Errorf("decode incident: %w", err)
	}
	if err := inc.Validate(); err != nil {
		return inc, err
	}
	return inc, nil
}
