// Package util holds helpers shared by the container backed integration
// tests: a disposable Mosquitto broker and HTTP and metrics readiness polls.
package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	HTTPReadyTimeout      = 10 * time.Second
	MosquittoReadyTimeout = 5 * time.Second
	MetricTimeout         = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

const mosquittoConf = `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
connection_messages true
`

// poll calls probe until it reports done or ctx ends. The last probe error
// is wrapped in the timeout error.
func poll(ctx context.Context, what string, probe func(context.Context) (bool, error)) error {
	var last error
	for {
		done, err := probe(ctx)
		if done {
			return nil
		}
		if err != nil {
			last = err
		}
		select {
		case <-ctx.Done():
			if last != nil {
				return fmt.Errorf("%s: %w (last error: %v)", what, ctx.Err(), last)
			}
			return fmt.Errorf("%s: %w", what, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func get(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, body, err
}

// WaitForHTTP polls url until it answers 200.
func WaitForHTTP(ctx context.Context, url string) error {
	return poll(ctx, url+" not ready", func(ctx context.Context) (bool, error) {
		code, _, err := get(ctx, url)
		return err == nil && code == http.StatusOK, err
	})
}

// WaitForMetric polls a Prometheus endpoint until its output contains substr.
func WaitForMetric(ctx context.Context, metricsURL, substr string) error {
	return poll(ctx, fmt.Sprintf("metric %q not found", substr), func(ctx context.Context) (bool, error) {
		_, body, err := get(ctx, metricsURL)
		return err == nil && strings.Contains(string(body), substr), err
	})
}

// StartMosquitto runs an anonymous Mosquitto 2 broker and returns its URL
// once a client can connect. cleanup terminates the container.
func StartMosquitto(ctx context.Context) (broker string, cleanup func(), err error) {
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			Reader:            strings.NewReader(mosquittoConf),
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0o644,
		}},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		return "", nil, err
	}
	cleanup = func() { _ = cont.Terminate(context.Background()) }

	endpoint, err := cont.PortEndpoint(ctx, "1883/tcp", "tcp")
	if err != nil {
		cleanup()
		return "", nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	if err := poll(waitCtx, "mosquitto not ready", func(context.Context) (bool, error) {
		cli := paho.NewClient(paho.NewClientOptions().AddBroker(endpoint).SetClientID("readiness-probe"))
		tok := cli.Connect()
		tok.Wait()
		if tok.Error() != nil {
			return false, tok.Error()
		}
		cli.Disconnect(100)
		return true, nil
	}); err != nil {
		cleanup()
		return "", nil, err
	}
	return endpoint, cleanup, nil
}
