package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/backtest-engine/internal/artifact"
	"github.com/sawpanic/backtest-engine/internal/artifact/verify"
	"github.com/sawpanic/backtest-engine/internal/play"
	"github.com/sawpanic/backtest-engine/internal/preflight"
	"github.com/sawpanic/backtest-engine/internal/riskprofile"
	"github.com/sawpanic/backtest-engine/internal/synthetic"
	"github.com/sawpanic/backtest-engine/internal/xlog"
)

var (
	runStartMs     int64
	runEndMs       int64
	runAllowGap    bool
	runRoot        string
	runRiskProfile string
	runProfileName string
)

var runCmd = &cobra.Command{
	Use:   "run <play.yaml>",
	Short: "Run a Play end to end and write its artifacts",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunCmd,
}

func init() {
	runCmd.Flags().Int64Var(&runStartMs, "start", 0, "query window start, ms since epoch")
	runCmd.Flags().Int64Var(&runEndMs, "end", 1<<62-1, "query window end, ms since epoch (ignored by a synthetic Play)")
	runCmd.Flags().BoolVar(&runAllowGap, "allow-gaps", false, "tolerate coverage gaps in the fetched bar range")
	runCmd.Flags().StringVar(&runRoot, "runs-root", "runs", "directory artifacts are written under")
	runCmd.Flags().StringVar(&runRiskProfile, "risk-profile", "", "path to a risk-profile YAML file overriding the play's risk block")
	runCmd.Flags().StringVar(&runProfileName, "profile", "", "named profile within --risk-profile to apply (defaults to the file's active_profile)")
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	playPath := args[0]

	steps := xlog.NewStepLogger([]string{"preflight", "process", "compute", "write"})

	log.Info().Str("play", playPath).Int64("start_ms", runStartMs).Int64("end_ms", runEndMs).Msg("loading play")

	compiled, err := play.Load(playPath)
	if err != nil {
		return fmt.Errorf("loading play %s: %w", playPath, err)
	}

	provider, err := resolveProvider(compiled)
	if err != nil {
		return err
	}

	if runRiskProfile != "" {
		if err := applyRiskProfile(compiled, runRiskProfile, runProfileName); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	steps.StartStep("preflight")
	run, err := verify.Execute(ctx, provider, compiled, runStartMs, runEndMs, runAllowGap, time.Now().UTC())
	steps.CompleteStep()
	if err != nil {
		steps.Fail(err)
		return fmt.Errorf("running play: %w", err)
	}

	steps.StartStep("write")
	w := artifact.NewWriter(runRoot)
	for _, ev := range run.Result.Events {
		if err := w.AppendEvent(ev); err != nil {
			steps.Fail(err)
			return fmt.Errorf("buffering event: %w", err)
		}
	}
	dir, err := w.Flush(run.Manifest, run.Report, run.Result)
	steps.CompleteStep()
	if err != nil {
		steps.Fail(err)
		return fmt.Errorf("flushing artifacts: %w", err)
	}
	steps.Finish()

	fmt.Printf("Run complete: %s\n", dir)
	fmt.Printf("  run_id:            %s\n", run.Manifest.RunID)
	fmt.Printf("  trades:            %d\n", run.Report.TotalTrades)
	fmt.Printf("  total_return_pct:  %.2f\n", run.Report.TotalReturnPct)
	fmt.Printf("  max_drawdown_pct:  %.2f\n", run.Report.MaxDrawdownPct)

	log.Info().
		Str("run_id", run.Manifest.RunID).
		Str("artifact_dir", dir).
		Int("trades", run.Report.TotalTrades).
		Float64("total_return_pct", run.Report.TotalReturnPct).
		Msg("run completed")

	return nil
}

// applyRiskProfile overlays a named profile from a risk-profile file onto
// the compiled Play's own risk block, in place, before the Play is run.
// An explicit profileName overrides the file's own active_profile.
func applyRiskProfile(compiled *play.Compiled, path, profileName string) error {
	cfg, err := riskprofile.Load(path)
	if err != nil {
		return fmt.Errorf("loading risk profile: %w", err)
	}
	if profileName != "" {
		cfg.Active = profileName
	}
	p, err := cfg.ActiveProfile()
	if err != nil {
		return fmt.Errorf("resolving risk profile: %w", err)
	}
	log.Info().Str("profile", cfg.Active).Msg("applying risk profile override")
	compiled.Raw.Risk = riskprofile.Apply(compiled.Raw.Risk, *p)
	return nil
}

// resolveProvider picks the data collaborator a Play should run against:
// a synthetic block means the Play declares its own deterministic data,
// the common case for this CLI since no real historical-data connector is
// wired into this tree — fetching real OHLCV/funding history is an
// external collaborator's job, not something this repo implements.
func resolveProvider(compiled *play.Compiled) (preflight.Provider, error) {
	if compiled.Raw.Synthetic == nil {
		return nil, fmt.Errorf("play %q declares no synthetic block; no historical data provider is configured for this CLI", compiled.Raw.Name)
	}
	gen := synthetic.New(*compiled.Raw.Synthetic)
	return preflight.NewGuardedProvider(gen, 5, 50), nil
}
