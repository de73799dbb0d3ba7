package mqtt

import (
	"fmt"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremon "github.com/ridgeline-ems/ift-dispatch/core/monitoring"
	coremqtt "github.com/ridgeline-ems/ift-dispatch/core/mqtt"
)

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestSendAssignmentErrorCaptured(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail, fail}}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	restoreClientFactory(t)
	mon := &recordMonitor{}
	coremon.Init(mon)
	t.Cleanup(func() { coremon.Init(coremon.NopMonitor{}) })

	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", AckTopic: "a", BackoffMS: 1}
	cli, err := NewPahoClient(cfg)
	require.NoError(t, err)
	_, err = cli.SendAssignment("medic-3", coremqtt.Notification{IncidentID: "inc-9"})
	require.Error(t, err)

	require.NotNil(t, mon.err)
	assert.Equal(t, "medic-3", mon.tags["unit_id"])
	assert.Equal(t, "inc-9", mon.tags["incident_id"])
	assert.Equal(t, "mqtt", mon.tags["module"])
	assert.Len(t, mc.published, 4)
}
