package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ridgeline-ems/ift-dispatch/config"
	"github.com/ridgeline-ems/ift-dispatch/core/assignment"
	"github.com/ridgeline-ems/ift-dispatch/pkg/export"
	"github.com/ridgeline-ems/ift-dispatch/qa/scenarios"
)

var (
	scenarioPath string
	recMax       int
	recFormat    string
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank the units of a scenario file without notifying anyone",
	RunE:  runRecommend,
}

func init() {
	recommendCmd.Flags().StringVarP(&scenarioPath, "file", "f", "", "scenario YAML file")
	recommendCmd.Flags().IntVar(&recMax, "max", 0, "maximum recommendations (0 uses the configured default)")
	recommendCmd.Flags().StringVar(&recFormat, "format", "text", "output format: text, json or csv")
	_ = recommendCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	sc, err := scenarios.Load(scenarioPath)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	if recMax > 0 {
		sc.Max = recMax
	}
	// The scoring policy comes from the config file when one is present.
	acfg := assignment.DefaultConfig()
	if cmd.Flags().Changed("config") {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		acfg = cfg.Assignment
	}
	eng, err := sc.Engine(acfg)
	if err != nil {
		return err
	}
	res, err := scenarios.Run(eng, sc)
	if err != nil {
		return err
	}
	return writeRecommendations(cmd.OutOrStdout(), eng, res, recFormat)
}

func writeRecommendations(w io.Writer, eng *assignment.Engine, res scenarios.Result, format string) error {
	switch format {
	case "json":
		return export.WriteJSON(w, res.Set)
	case "csv":
		return export.WriteCSV(w, eng, res.Set)
	case "text":
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	fmt.Fprintf(w, "Scenario %s, incident %s: %d recommendation(s)\n\n", res.Scenario, res.Set.IncidentID, len(res.Set.Recommendations))
	for i, rec := range res.Set.Recommendations {
		status := "ACCEPTABLE"
		if reasons := eng.Rejections(rec); len(reasons) > 0 {
			status = "REJECTED: " + fmt.Sprint(reasons)
		}
		fmt.Fprintf(w, "#%d %s\n%s\n", i+1, status, eng.Explain(rec))
	}
	for _, f := range res.Failures {
		fmt.Fprintf(w, "expectation not met: %s\n", f)
	}
	return nil
}
