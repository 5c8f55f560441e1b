package play

import "github.com/sawpanic/backtest-engine/internal/errs"

var validPositionPolicies = map[string]bool{"long_only": true, "short_only": true, "both": true}
var validExitModes = map[string]bool{"sl_tp_only": true, "signal": true, "first_hit": true}
var validEntryOrderTypes = map[string]bool{"market": true, "limit": true}
var validSizingModels = map[string]bool{"percent_equity": true, "risk_based": true, "fixed_usdt": true}
var validStopLossTypes = map[string]bool{"percent": true, "atr_multiple": true, "structure": true, "fixed_points": true, "trailing_atr": true, "trailing_pct": true}
var validTakeProfitTypes = map[string]bool{"percent": true, "rr_ratio": true, "atr_multiple": true, "fixed_points": true}

// validateEnums checks the closed-vocabulary fields of a Play that the YAML
// schema alone cannot enforce (Go's yaml decoder accepts any string).
func validateEnums(raw RawPlay) error {
	if raw.PositionPolicy != "" && !validPositionPolicies[raw.PositionPolicy] {
		return errs.New(errs.SchemaError, "unknown position_policy %q", raw.PositionPolicy)
	}
	if raw.ExitMode != "" && !validExitModes[raw.ExitMode] {
		return errs.New(errs.SchemaError, "unknown exit_mode %q", raw.ExitMode)
	}
	if raw.Entry.OrderType != "" && !validEntryOrderTypes[raw.Entry.OrderType] {
		return errs.New(errs.SchemaError, "unknown entry.order_type %q", raw.Entry.OrderType)
	}
	if raw.Risk.Sizing.Model != "" && !validSizingModels[raw.Risk.Sizing.Model] {
		return errs.New(errs.SchemaError, "unknown risk.sizing.model %q", raw.Risk.Sizing.Model)
	}
	if raw.Risk.StopLoss.Type != "" && !validStopLossTypes[raw.Risk.StopLoss.Type] {
		return errs.New(errs.SchemaError, "unknown risk.stop_loss.type %q", raw.Risk.StopLoss.Type)
	}
	if raw.Risk.TakeProfit.Type != "" && !validTakeProfitTypes[raw.Risk.TakeProfit.Type] {
		return errs.New(errs.SchemaError, "unknown risk.take_profit.type %q", raw.Risk.TakeProfit.Type)
	}
	if raw.Account.StartingEquity <= 0 {
		return errs.New(errs.SchemaError, "account.starting_equity must be positive")
	}
	if raw.Account.MaxLeverage < 1 {
		return errs.New(errs.SchemaError, "account.max_leverage must be >= 1")
	}
	return nil
}
