package indicator

import (
	"fmt"

	"github.com/sawpanic/backtest-engine/internal/bar"
)

// Spec describes one supported indicator type: its output keys and a factory
// that builds a fresh Kernel from a decoded parameter map. This is the single
// source of truth referenced by the Play loader and DSL compiler — adding a
// new indicator means adding one entry here.
type Spec struct {
	Type    string
	Outputs []string
	New     func(params map[string]any) (Kernel, error)
}

var registry map[string]Spec

func init() {
	registry = map[string]Spec{
		// Moving averages (10)
		"sma":   {Type: "sma", Outputs: []string{"value"}, New: wrap1(NewSMA)},
		"ema":   {Type: "ema", Outputs: []string{"value"}, New: wrap1(NewEMA)},
		"wma":   {Type: "wma", Outputs: []string{"value"}, New: wrap1(NewWMA)},
		"dema":  {Type: "dema", Outputs: []string{"value"}, New: wrap1(NewDEMA)},
		"tema":  {Type: "tema", Outputs: []string{"value"}, New: wrap1(NewTEMA)},
		"hull":  {Type: "hull", Outputs: []string{"value"}, New: wrap1(NewHull)},
		"vwma":  {Type: "vwma", Outputs: []string{"value"}, New: wrap1(NewVWMA)},
		"trima": {Type: "trima", Outputs: []string{"value"}, New: wrap1(NewTRIMA)},
		"kama": {Type: "kama", Outputs: []string{"value"}, New: func(p map[string]any) (Kernel, error) {
			length, err := intParam(p, "length")
			if err != nil {
				return nil, err
			}
			fast := intParamOr(p, "fast_period", 2)
			slow := intParamOr(p, "slow_period", 30)
			src, err := srcParam(p)
			if err != nil {
				return nil, err
			}
			return NewKAMA(length, fast, slow, src), nil
		}},
		"t3": {Type: "t3", Outputs: []string{"value"}, New: func(p map[string]any) (Kernel, error) {
			length, err := intParam(p, "length")
			if err != nil {
				return nil, err
			}
			vf := floatParamOr(p, "volume_factor", 0.7)
			src, err := srcParam(p)
			if err != nil {
				return nil, err
			}
			return NewT3(length, vf, src), nil
		}},

		// Oscillators (10)
		"rsi": {Type: "rsi", Outputs: []string{"value"}, New: wrap1(NewRSI)},
		"stoch": {Type: "stoch", Outputs: []string{"k", "d"}, New: func(p map[string]any) (Kernel, error) {
			kPeriod, err := intParam(p, "k_period")
			if err != nil {
				return nil, err
			}
			smoothK := intParamOr(p, "smooth_k", 3)
			dPeriod := intParamOr(p, "d_period", 3)
			return NewStoch(kPeriod, smoothK, dPeriod), nil
		}},
		"stochrsi": {Type: "stochrsi", Outputs: []string{"value"}, New: func(p map[string]any) (Kernel, error) {
			rsiLen, err := intParam(p, "rsi_length")
			if err != nil {
				return nil, err
			}
			stochLen := intParamOr(p, "stoch_length", rsiLen)
			smoothK := intParamOr(p, "smooth_k", 3)
			return NewStochRSI(rsiLen, stochLen, smoothK), nil
		}},
		"cci": {Type: "cci", Outputs: []string{"value"}, New: func(p map[string]any) (Kernel, error) {
			length, err := intParam(p, "length")
			if err != nil {
				return nil, err
			}
			return NewCCI(length), nil
		}},
		"williams_r": {Type: "williams_r", Outputs: []string{"value"}, New: func(p map[string]any) (Kernel, error) {
			length, err := intParam(p, "length")
			if err != nil {
				return nil, err
			}
			return NewWilliamsR(length), nil
		}},
		"roc":  {Type: "roc", Outputs: []string{"value"}, New: wrap1(NewROC)},
		"mfi": {Type: "mfi", Outputs: []string{"value"}, New: func(p map[string]any) (Kernel, error) {
			length, err := intParam(p, "length")
			if err != nil {
				return nil, err
			}
			return NewMFI(length), nil
		}},
		"cmo": {Type: "cmo", Outputs: []string{"value"}, New: wrap1(NewCMO)},
		"tsi": {Type: "tsi", Outputs: []string{"value"}, New: func(p map[string]any) (Kernel, error) {
			long := intParamOr(p, "long", 25)
			short := intParamOr(p, "short", 13)
			return NewTSI(long, short), nil
		}},
		"ultimate_osc": {Type: "ultimate_osc", Outputs: []string{"value"}, New: func(p map[string]any) (Kernel, error) {
			p1 := intParamOr(p, "period1", 7)
			p2 := intParamOr(p, "period2", 14)
			p3 := intParamOr(p, "period3", 28)
			return NewUltimateOsc(p1, p2, p3), nil
		}},

		// Trend (7)
		"macd": {Type: "macd", Outputs: []string{"macd", "signal", "histogram"}, New: func(p map[string]any) (Kernel, error) {
			fast := intParamOr(p, "fast", 12)
			slow := intParamOr(p, "slow", 26)
			signal := intParamOr(p, "signal", 9)
			src, err := srcParam(p)
			if err != nil {
				return nil, err
			}
			return NewMACD(fast, slow, signal, src), nil
		}},
		"adx": {Type: "adx", Outputs: []string{"adx", "plus_di", "minus_di"}, New: func(p map[string]any) (Kernel, error) {
			length, err := intParam(p, "length")
			if err != nil {
				return nil, err
			}
			return NewADX(length), nil
		}},
		"aroon": {Type: "aroon", Outputs: []string{"up", "down", "oscillator"}, New: func(p map[string]any) (Kernel, error) {
			length, err := intParam(p, "length")
			if err != nil {
				return nil, err
			}
			return NewAroon(length), nil
		}},
		"psar": {Type: "psar", Outputs: []string{"value"}, New: func(p map[string]any) (Kernel, error) {
			step := floatParamOr(p, "step", 0.02)
			maxStep := floatParamOr(p, "max_step", 0.2)
			return NewPSAR(step, maxStep), nil
		}},
		"supertrend": {Type: "supertrend", Outputs: []string{"value", "direction"}, New: func(p map[string]any) (Kernel, error) {
			length, err := intParam(p, "length")
			if err != nil {
				return nil, err
			}
			mult := floatParamOr(p, "multiplier", 3.0)
			return NewSupertrend(length, mult), nil
		}},
		"ichimoku": {Type: "ichimoku", Outputs: []string{"tenkan", "kijun", "senkou_a", "senkou_b"}, New: func(p map[string]any) (Kernel, error) {
			tenkan := intParamOr(p, "tenkan_length", 9)
			kijun := intParamOr(p, "kijun_length", 26)
			senkouB := intParamOr(p, "senkou_b_length", 52)
			return NewIchimoku(tenkan, kijun, senkouB), nil
		}},
		"vortex": {Type: "vortex", Outputs: []string{"plus", "minus"}, New: func(p map[string]any) (Kernel, error) {
			length, err := intParam(p, "length")
			if err != nil {
				return nil, err
			}
			return NewVortex(length), nil
		}},

		// Volatility (6)
		"atr": {Type: "atr", Outputs: []string{"value"}, New: func(p map[string]any) (Kernel, error) {
			length, err := intParam(p, "length")
			if err != nil {
				return nil, err
			}
			return NewATR(length), nil
		}},
		"bbands": {Type: "bbands", Outputs: []string{"middle", "upper", "lower"}, New: func(p map[string]any) (Kernel, error) {
			length, err := intParam(p, "length")
			if err != nil {
				return nil, err
			}
			mult := floatParamOr(p, "mult", 2.0)
			src, err := srcParam(p)
			if err != nil {
				return nil, err
			}
			return NewBBands(length, mult, src), nil
		}},
		"keltner": {Type: "keltner", Outputs: []string{"middle", "upper", "lower"}, New: func(p map[string]any) (Kernel, error) {
			length, err := intParam(p, "length")
			if err != nil {
				return nil, err
			}
			mult := floatParamOr(p, "mult", 2.0)
			return NewKeltner(length, mult), nil
		}},
		"donchian": {Type: "donchian", Outputs: []string{"upper", "lower", "middle"}, New: func(p map[string]any) (Kernel, error) {
			length, err := intParam(p, "length")
			if err != nil {
				return nil, err
			}
			return NewDonchian(length), nil
		}},
		"stddev": {Type: "stddev", Outputs: []string{"value"}, New: wrap1(NewStdDev)},
		"historical_vol": {Type: "historical_vol", Outputs: []string{"value"}, New: func(p map[string]any) (Kernel, error) {
			length, err := intParam(p, "length")
			if err != nil {
				return nil, err
			}
			annualFactor := floatParamOr(p, "annual_factor", 1.0)
			return NewHistoricalVol(length, annualFactor), nil
		}},

		// Volume (4)
		"obv": {Type: "obv", Outputs: []string{"value"}, New: func(map[string]any) (Kernel, error) { return NewOBV(), nil }},
		"vwap": {Type: "vwap", Outputs: []string{"value"}, New: func(p map[string]any) (Kernel, error) {
			length := intParamOr(p, "length", 0)
			return NewVWAP(length), nil
		}},
		"ad": {Type: "ad", Outputs: []string{"value"}, New: func(map[string]any) (Kernel, error) { return NewAD(), nil }},
		"cmf": {Type: "cmf", Outputs: []string{"value"}, New: func(p map[string]any) (Kernel, error) {
			length, err := intParam(p, "length")
			if err != nil {
				return nil, err
			}
			return NewCMF(length), nil
		}},

		// Misc (6)
		"momentum":       {Type: "momentum", Outputs: []string{"value"}, New: wrap1(NewMomentum)},
		"zscore":         {Type: "zscore", Outputs: []string{"value"}, New: wrap1(NewZScore)},
		"linreg":         {Type: "linreg", Outputs: []string{"value", "slope"}, New: wrap1(NewLinReg)},
		"pivot_points":   {Type: "pivot_points", Outputs: []string{"pivot", "r1", "r2", "s1", "s2"}, New: func(map[string]any) (Kernel, error) { return NewPivotPoints(), nil }},
		"true_range":     {Type: "true_range", Outputs: []string{"value"}, New: func(map[string]any) (Kernel, error) { return NewTrueRange(), nil }},
		"typical_price":  {Type: "typical_price", Outputs: []string{"value"}, New: func(map[string]any) (Kernel, error) { return NewTypicalPrice(), nil }},
	}
}

// Lookup returns the Spec for a type name, or an error wrapping
// errs.SchemaError-shaped messaging handled by the caller.
func Lookup(typ string) (Spec, bool) {
	s, ok := registry[typ]
	return s, ok
}

// New builds a Kernel by type name and raw parameter map.
func New(typ string, params map[string]any) (Kernel, error) {
	s, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("unknown indicator type %q", typ)
	}
	return s.New(params)
}

// wrap1 adapts a constructor taking (length int, src bar.Source) into the
// registry's New signature, the common shape for single-series kernels.
func wrap1[K Kernel](ctor func(length int, src bar.Source) K) func(map[string]any) (Kernel, error) {
	return func(p map[string]any) (Kernel, error) {
		length, err := intParam(p, "length")
		if err != nil {
			return nil, err
		}
		src, err := srcParam(p)
		if err != nil {
			return nil, err
		}
		return ctor(length, src), nil
	}
}

func intParam(p map[string]any, key string) (int, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("missing required param %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("param %q must be an integer, got %T", key, v)
	}
}

func intParamOr(p map[string]any, key string, def int) int {
	n, err := intParam(p, key)
	if err != nil {
		return def
	}
	return n
}

func floatParamOr(p map[string]any, key string, def float64) float64 {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

func srcParam(p map[string]any) (bar.Source, error) {
	v, ok := p["source"]
	if !ok {
		return bar.SourceClose, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param \"source\" must be a string")
	}
	switch bar.Source(s) {
	case bar.SourceOpen, bar.SourceHigh, bar.SourceLow, bar.SourceClose, bar.SourceVol, bar.SourceHL2, bar.SourceHLC3, bar.SourceOHLC4:
		return bar.Source(s), nil
	default:
		return "", fmt.Errorf("unsupported source %q", s)
	}
}
