package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/backtest-engine/internal/artifact/verify"
	"github.com/sawpanic/backtest-engine/internal/play"
)

var (
	verifyStartMs  int64
	verifyEndMs    int64
	verifyAllowGap bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <play.yaml>",
	Short: "Run a Play twice and confirm byte-identical output",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerifyCmd,
}

func init() {
	verifyCmd.Flags().Int64Var(&verifyStartMs, "start", 0, "query window start, ms since epoch")
	verifyCmd.Flags().Int64Var(&verifyEndMs, "end", 1<<62-1, "query window end, ms since epoch")
	verifyCmd.Flags().BoolVar(&verifyAllowGap, "allow-gaps", false, "tolerate coverage gaps in the fetched bar range")
}

func runVerifyCmd(cmd *cobra.Command, args []string) error {
	playPath := args[0]

	compiled, err := play.Load(playPath)
	if err != nil {
		return fmt.Errorf("loading play %s: %w", playPath, err)
	}
	provider, err := resolveProvider(compiled)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Minute)
	defer cancel()

	log.Info().Str("play", playPath).Msg("running determinism check")

	report, err := verify.Verify(ctx, provider, compiled, verifyStartMs, verifyEndMs, verifyAllowGap)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	if report.Deterministic() {
		fmt.Println("deterministic: two runs produced byte-identical artifacts")
		log.Info().Msg("determinism check passed")
		return nil
	}

	fmt.Println("NOT deterministic: mismatches found")
	for _, m := range report.Mismatches {
		fmt.Printf("  %-28s first=%s second=%s\n", m.Artifact, m.First, m.Second)
	}
	log.Error().Int("mismatches", len(report.Mismatches)).Msg("determinism check failed")
	return fmt.Errorf("determinism check failed: %d mismatch(es)", len(report.Mismatches))
}
