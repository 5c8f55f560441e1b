package artifact

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sawpanic/backtest-engine/internal/artifact/parquet"
	"github.com/sawpanic/backtest-engine/internal/engine"
	"github.com/sawpanic/backtest-engine/internal/perf"
)

// eventRecord is the events.jsonl line shape: one chronological funding,
// liquidation, or SL/TP/signal-exit record.
type eventRecord struct {
	TsMs int64  `json:"ts_ms"`
	Kind string `json:"kind"`
	Detail any  `json:"detail"`
}

// Writer buffers the run's events in memory and writes every artifact file
// together at the end of a run: AppendEvent buffers events.jsonl lines, and
// Flush builds all five files in one staging directory before renaming it
// into place.
type Writer struct {
	runsRoot string
	events   bytes.Buffer
}

// NewWriter roots every run's output under runsRoot/<play_id>/<symbol>/<run_id>.
func NewWriter(runsRoot string) *Writer {
	return &Writer{runsRoot: runsRoot}
}

// AppendEvent buffers one events.jsonl line. Events must be appended in
// chronological order; the writer does not sort them.
func (w *Writer) AppendEvent(ev engine.Event) error {
	line, err := canonicalBytes(eventRecord{TsMs: ev.TsMs, Kind: ev.Kind, Detail: ev.Detail})
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	w.events.Write(line)
	w.events.WriteByte('\n')
	return nil
}

// Flush writes manifest.json, metrics.json, trades.parquet, equity.parquet,
// and events.jsonl into a freshly created run directory, and returns the
// directory's path. Every file is built in a staging directory first and
// the directory is renamed into place only once every write has
// succeeded, so a run directory under runsRoot is either absent or
// complete — never partially written.
func (w *Writer) Flush(m Manifest, report perf.Report, result *engine.Result) (string, error) {
	finalDir := filepath.Join(w.runsRoot, playDirName(m.PlayName), m.Symbol, m.RunID)
	stagingDir := finalDir + ".staging"

	if err := os.RemoveAll(stagingDir); err != nil {
		return "", fmt.Errorf("clearing staging dir: %w", err)
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("creating staging dir: %w", err)
	}

	if err := writeJSONFile(filepath.Join(stagingDir, "manifest.json"), m); err != nil {
		return "", err
	}
	if err := writeJSONFile(filepath.Join(stagingDir, "metrics.json"), report); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(stagingDir, "events.jsonl"), w.events.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing events.jsonl: %w", err)
	}
	if err := parquet.WriteTrades(filepath.Join(stagingDir, "trades.parquet"), result.Trades); err != nil {
		return "", err
	}
	if err := parquet.WriteEquity(filepath.Join(stagingDir, "equity.parquet"), result.Equity); err != nil {
		return "", err
	}

	if err := os.RemoveAll(finalDir); err != nil {
		return "", fmt.Errorf("clearing existing run dir: %w", err)
	}
	if err := os.Rename(stagingDir, finalDir); err != nil {
		return "", fmt.Errorf("finalizing run dir: %w", err)
	}
	return finalDir, nil
}

func writeJSONFile(path string, v any) error {
	b, err := canonicalBytes(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// playDirName sanitizes a Play's display name into a filesystem-safe path
// segment for the <runs_root>/<play_id>/ directory.
func playDirName(name string) string {
	if name == "" {
		return "play"
	}
	b := make([]byte, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b = append(b, byte(r))
		default:
			b = append(b, '_')
		}
	}
	return string(b)
}
