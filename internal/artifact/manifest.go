// Package artifact owns a run's output directory: a single writer
// producing manifest.json, trades.parquet, equity.parquet, events.jsonl,
// and metrics.json under a content-addressed directory named by a hash of
// the manifest itself.
package artifact

import (
	"time"

	"github.com/sawpanic/backtest-engine/internal/play"
)

// PipelineVersion is bumped whenever a change to the bar processor,
// exchange, or risk policy could alter output for an already-shipped Play
// without the Play file itself changing.
const PipelineVersion = "1.0.0"

// InputHashes fingerprints every collaborator whose content could change a
// run's output without the Play file itself changing: bar range, feature
// set, structure set, and risk config.
type InputHashes struct {
	BarRangeHash     string `json:"bar_range_hash"`
	FeatureSetHash   string `json:"feature_set_hash"`
	StructureSetHash string `json:"structure_set_hash"`
	RiskConfigHash   string `json:"risk_config_hash"`
}

// Manifest is the manifest.json record: play hash, pipeline version,
// input hashes, seed, and timestamps.
type Manifest struct {
	PipelineVersion string      `json:"pipeline_version"`
	PlayHash        string      `json:"play_hash"`
	PlayName        string      `json:"play_name"`
	Symbol          string      `json:"symbol"`
	Inputs          InputHashes `json:"inputs"`
	Seed            int64       `json:"seed"`
	StartMs         int64       `json:"start_ms"`
	EndMs           int64       `json:"end_ms"`
	RunID           string      `json:"run_id"`
	GeneratedAt     time.Time   `json:"generated_at"`
}

// contentStable strips the fields that legitimately vary between two runs
// of the same Play over the same data (the run id being derived and the
// wall-clock timestamp) so RunID hashing and determinism comparisons only
// see the part of the manifest that must be byte-identical across runs.
func (m Manifest) contentStable() Manifest {
	m.RunID = ""
	m.GeneratedAt = time.Time{}
	return m
}

// ComputeRunID computes `run_id = short_hash(manifest_canonical_bytes)`,
// hashing only the content-stable view of the manifest so two runs of the
// same Play over the same window map to the same content-addressed
// directory regardless of when each was generated.
func ComputeRunID(m Manifest) (string, error) {
	b, err := canonicalBytes(m.contentStable())
	if err != nil {
		return "", err
	}
	return shortHash(b), nil
}

// BuildManifest derives every input hash from a compiled Play and the
// resolved query window, then computes the content-addressed RunID.
func BuildManifest(compiled *play.Compiled, startMs, endMs int64, generatedAt time.Time) (Manifest, error) {
	playHash, err := hashValue(compiled.Raw)
	if err != nil {
		return Manifest{}, err
	}
	featureHash, err := hashValue(compiled.Raw.Features)
	if err != nil {
		return Manifest{}, err
	}
	structureHash, err := hashValue(compiled.Raw.Structures)
	if err != nil {
		return Manifest{}, err
	}
	riskHash, err := hashValue(compiled.Raw.Risk)
	if err != nil {
		return Manifest{}, err
	}
	barRangeHash, err := hashValue([2]int64{startMs, endMs})
	if err != nil {
		return Manifest{}, err
	}

	m := Manifest{
		PipelineVersion: PipelineVersion,
		PlayHash:        playHash,
		PlayName:        compiled.Raw.Name,
		Symbol:          compiled.Raw.Symbol,
		Inputs: InputHashes{
			BarRangeHash:     barRangeHash,
			FeatureSetHash:   featureHash,
			StructureSetHash: structureHash,
			RiskConfigHash:   riskHash,
		},
		Seed:        seedOf(compiled.Raw.Synthetic),
		StartMs:     startMs,
		EndMs:       endMs,
		GeneratedAt: generatedAt,
	}

	runID, err := ComputeRunID(m)
	if err != nil {
		return Manifest{}, err
	}
	m.RunID = runID
	return m, nil
}

func seedOf(s *play.RawSynthetic) int64 {
	if s == nil {
		return 0
	}
	return s.Seed
}
