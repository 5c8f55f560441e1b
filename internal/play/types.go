// Package play parses and validates Play YAML documents into a compiled
// in-memory form ready for the bar processor.
package play

// RawFeature is the YAML shape of a Feature declaration.
type RawFeature struct {
	IndicatorType string         `yaml:"indicator_type"`
	Params        map[string]any `yaml:"params"`
	InputSource   string         `yaml:"input_source"`
	TF            string         `yaml:"tf"`
}

// RawStructure is the YAML shape of a Structure declaration.
type RawStructure struct {
	Type   string         `yaml:"type"`
	TF     string         `yaml:"tf"`
	Params map[string]any `yaml:"params"`
	Uses   []string       `yaml:"uses"`
}

// RawAccount is the YAML shape of the account block.
type RawAccount struct {
	StartingEquity float64 `yaml:"starting_equity"`
	MaxLeverage    float64 `yaml:"max_leverage"`
	MarginMode     string  `yaml:"margin_mode"`
	TakerFeeBps    float64 `yaml:"taker_fee_bps"`
	MakerFeeBps    float64 `yaml:"maker_fee_bps"`
	SlippageBps    float64 `yaml:"slippage_bps"`
	MaintenanceMarginRate float64 `yaml:"maintenance_margin_rate"`
}

// RawSizing is the YAML shape of a position-sizing rule.
type RawSizing struct {
	Model       string  `yaml:"model"` // percent_equity | risk_based | fixed_usdt
	PercentPct  float64 `yaml:"percent_pct"`
	RiskPct     float64 `yaml:"risk_pct"`
	FixedUSDT   float64 `yaml:"fixed_usdt"`
}

// RawStopLoss is the YAML shape of a stop-loss rule.
type RawStopLoss struct {
	Type        string  `yaml:"type"` // percent | atr_multiple | structure | fixed_points | trailing_atr | trailing_pct
	Value       float64 `yaml:"value"`
	StructureRef string `yaml:"structure_ref"`
}

// RawTakeProfit is the YAML shape of a take-profit rule.
type RawTakeProfit struct {
	Type  string  `yaml:"type"` // percent | rr_ratio | atr_multiple | fixed_points
	Value float64 `yaml:"value"`
}

// RawBreakeven is the YAML shape of an optional break-even rule.
type RawBreakeven struct {
	Enabled    bool    `yaml:"enabled"`
	TriggerPct float64 `yaml:"trigger_pct"`
	OffsetPct  float64 `yaml:"offset_pct"`
}

// RawRisk is the YAML shape of the risk block.
type RawRisk struct {
	StopLoss        RawStopLoss   `yaml:"stop_loss"`
	TakeProfit      RawTakeProfit `yaml:"take_profit"`
	Sizing          RawSizing     `yaml:"sizing"`
	Breakeven       RawBreakeven  `yaml:"breakeven"`
	MaxDrawdownPct  float64       `yaml:"max_drawdown_pct"`
	LeverageCap     float64       `yaml:"leverage_cap"`
}

// RawEntry is the YAML shape of entry order config.
type RawEntry struct {
	OrderType       string `yaml:"order_type"` // market | limit
	LimitOffsetBps  float64 `yaml:"limit_offset_bps"`
	TIF             string `yaml:"tif"`
	ExpireAfterBars int    `yaml:"expire_after_bars"`
}

// RawSynthetic declares a deterministic synthetic data generator in place
// of a historical provider.
type RawSynthetic struct {
	Pattern string  `yaml:"pattern"` // trend_up_clean | range_tight | breakout_false | ...
	Seed    int64   `yaml:"seed"`
	Bars    int     `yaml:"bars"`
	TF      string  `yaml:"tf"`
	StartPrice float64 `yaml:"start_price"`
}

// RawPlay is the top-level YAML document shape.
type RawPlay struct {
	Version        int                        `yaml:"version"`
	Name           string                     `yaml:"name"`
	Symbol         string                     `yaml:"symbol"`
	Variables      map[string]any             `yaml:"variables"`
	Timeframes     map[string]string          `yaml:"timeframes"` // low_tf/med_tf/high_tf/exec
	Account        RawAccount                 `yaml:"account"`
	Features       map[string]RawFeature      `yaml:"features"`
	Structures     map[string][]NamedStructure `yaml:"structures"` // role -> ordered list
	Setups         map[string]any             `yaml:"setups"`
	Actions        map[string]any             `yaml:"actions"`
	Risk           RawRisk                    `yaml:"risk"`
	PositionPolicy string                     `yaml:"position_policy"` // long_only | short_only | both
	ExitMode       string                     `yaml:"exit_mode"`       // sl_tp_only | signal | first_hit
	Entry          RawEntry                   `yaml:"entry"`
	Synthetic      *RawSynthetic              `yaml:"synthetic"`

	// Deprecated keys, rejected at load time.
	Blocks       any `yaml:"blocks"`
	SignalRules  any `yaml:"signal_rules"`
}

// NamedStructure pairs a Structure id with its declaration, preserving
// declaration order within a role for DAG-dependency resolution.
type NamedStructure struct {
	ID string `yaml:"id"`
	RawStructure `yaml:",inline"`
}
