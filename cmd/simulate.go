package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ridgeline-ems/ift-dispatch/core/model"
	"github.com/ridgeline-ems/ift-dispatch/infra/logger"
	"github.com/ridgeline-ems/ift-dispatch/simulator"
)

var simOpts struct {
	broker      string
	org         string
	size        int
	lat, lon    float64
	radius      float64
	alsRatio    float64
	cctRatio    float64
	interval    time.Duration
	ackLatency  time.Duration
	dropRate    float64
	declineRate float64
	seed        int64
	statePrefix string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a simulated unit fleet against an MQTT broker",
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simOpts.broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	f.StringVar(&simOpts.org, "org", "org-1", "organization of the generated units")
	f.IntVar(&simOpts.size, "size", 10, "number of units")
	f.Float64Var(&simOpts.lat, "lat", 39.95, "fleet center latitude")
	f.Float64Var(&simOpts.lon, "lon", -75.16, "fleet center longitude")
	f.Float64Var(&simOpts.radius, "radius", 25, "fleet radius in miles")
	f.Float64Var(&simOpts.alsRatio, "als-ratio", 0.5, "share of ALS units")
	f.Float64Var(&simOpts.cctRatio, "cct-ratio", 0.1, "share of CCT units")
	f.DurationVar(&simOpts.interval, "interval", 30*time.Second, "state report interval")
	f.DurationVar(&simOpts.ackLatency, "ack-latency", 0, "delay before answering an assignment")
	f.Float64Var(&simOpts.dropRate, "drop-rate", 0, "probability of never answering")
	f.Float64Var(&simOpts.declineRate, "decline-rate", 0, "probability of declining")
	f.Int64Var(&simOpts.seed, "seed", time.Now().UnixNano(), "random seed")
	f.StringVar(&simOpts.statePrefix, "state-prefix", "unit/state", "state topic prefix")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New("simulate")
	units := simulator.GenerateFleet(simulator.FleetConfig{
		Size:           simOpts.size,
		OrganizationID: simOpts.org,
		Center:         model.Location{Latitude: simOpts.lat, Longitude: simOpts.lon},
		RadiusMiles:    simOpts.radius,
		ALSRatio:       simOpts.alsRatio,
		CCTRatio:       simOpts.cctRatio,
		Seed:           simOpts.seed,
	})
	if len(units) == 0 {
		return fmt.Errorf("simulate: --size must be positive")
	}
	strat := simulator.NewRandomAck(simOpts.seed, simOpts.ackLatency, simOpts.dropRate, simOpts.declineRate)
	fleet := simulator.NewFleet(units, simOpts.broker, simOpts.statePrefix, simOpts.interval, strat)
	if err := fleet.Start(ctx, 30*time.Second); err != nil {
		return err
	}
	log.Infof("%d units signed on to %s", len(units), simOpts.broker)
	<-ctx.Done()
	return fleet.Wait()
}
