package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ridgeline-ems/ift-dispatch/app/plugins"
	"github.com/ridgeline-ems/ift-dispatch/config"
	"github.com/ridgeline-ems/ift-dispatch/core/assignment"
	"github.com/ridgeline-ems/ift-dispatch/core/dispatch"
	"github.com/ridgeline-ems/ift-dispatch/core/dispatch/logging"
	coremetrics "github.com/ridgeline-ems/ift-dispatch/core/metrics"
	coremon "github.com/ridgeline-ems/ift-dispatch/core/monitoring"
	coremqtt "github.com/ridgeline-ems/ift-dispatch/core/mqtt"
	"github.com/ridgeline-ems/ift-dispatch/core/unitstatus"
	"github.com/ridgeline-ems/ift-dispatch/infra/logger"
	"github.com/ridgeline-ems/ift-dispatch/infra/metrics"
	"github.com/ridgeline-ems/ift-dispatch/infra/monitoring"
	"github.com/ridgeline-ems/ift-dispatch/infra/mqtt"
	"github.com/ridgeline-ems/ift-dispatch/infra/telemetry"
	"github.com/ridgeline-ems/ift-dispatch/internal/eventbus"
)

// Service wires the assignment manager to MQTT, telemetry, metrics and the
// HTTP API.
type Service struct {
	Manager   *dispatch.AssignmentManager
	Units     *unitstatus.MemoryStore
	cfg       *config.Config
	bus       eventbus.EventBus
	sink      coremetrics.MetricsSink
	logs      logging.LogStore
	notifier  *mqtt.PahoClient
	intake    *mqtt.IncidentIntake
	telemetry *telemetry.Manager
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	return NewWithNotifier(cfg, nil)
}

// NewWithNotifier creates a Service that notifies units through n. A nil n
// connects a Paho client to cfg.MQTT; without a broker the service runs
// recommendation-only and every assignment times out.
func NewWithNotifier(cfg *config.Config, n coremqtt.Client) (*Service, error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, err
	}
	log := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	engine, err := assignment.NewEngine(cfg.Assignment)
	if err != nil {
		return nil, fmt.Errorf("assignment engine: %w", err)
	}

	s := &Service{cfg: cfg, Units: unitstatus.NewMemoryStore(), bus: eventbus.New(), log: log}

	if n == nil {
		if cfg.MQTT.Broker != "" {
			s.notifier, err = mqtt.NewPahoClient(cfg.MQTT)
			if err != nil {
				return nil, fmt.Errorf("mqtt client: %w", err)
			}
			n = s.notifier
			s.intake, err = mqtt.NewIncidentIntake(cfg.MQTT, "")
			if err != nil {
				return nil, fmt.Errorf("incident intake: %w", err)
			}
		} else {
			log.Warnf("no mqtt broker configured, units cannot be notified")
			n = offlineNotifier{}
		}
	}

	s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}

	s.Manager, err = dispatch.NewAssignmentManager(engine, s.Units, n, cfg.Dispatch.AckTimeout(), s.sink, s.bus, logger.New("assignment_manager"))
	if err != nil {
		return nil, fmt.Errorf("assignment manager: %w", err)
	}
	s.Manager.SetStatusStore(s.Units)
	s.Manager.SetMaxAttempts(cfg.Dispatch.MaxAttempts)
	s.Manager.SetMaxRecommendations(cfg.Dispatch.MaxRecommendations)

	s.logs, err = plugins.NewLogStore(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("log store: %w", err)
	}
	s.Manager.SetLogStore(s.logs)

	if cfg.Telemetry.Enabled {
		s.telemetry, err = telemetry.NewManager(cfg.MQTT, cfg.Telemetry, s.Units, s.bus, nil)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
	}
	return s, nil
}

// Handler returns the HTTP API of the service.
func (s *Service) Handler() http.Handler {
	return NewRouter(s.Manager, s.logs, s.Units, s.cfg.HTTP.Token, logger.New("http"))
}

// Run starts the service and blocks until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.telemetry != nil {
		if err := s.telemetry.Subscribe(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		go s.telemetry.Start(ctx)
	}
	if s.intake != nil {
		go s.Manager.Run(ctx, s.intake.Incidents())
		go s.intake.Close(ctx)
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("http api listening on %s", s.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdown)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.notifier != nil {
		s.notifier.Disconnect()
	}
	if d, ok := s.bus.(interface{ Dropped() uint64 }); ok && d.Dropped() > 0 {
		s.log.Warnf("event bus dropped %d deliveries to slow subscribers", d.Dropped())
	}
	coremon.Flush(2 * time.Second)
	return s.Manager.Close()
}

// offlineNotifier is used when no broker is configured.
type offlineNotifier struct{}

var errOffline = errors.New("mqtt: no broker configured")

func (offlineNotifier) SendAssignment(string, coremqtt.Notification) (string, error) {
	return "", errOffline
}

func (offlineNotifier) WaitForAck(string, time.Duration) (bool, error) {
	return false, errOffline
}
