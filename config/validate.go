package config

import "fmt"

// MinReconcilerPollSeconds is the floor below which the reconciler
// would poll the chain unreasonably often.
var MinReconcilerPollSeconds = int64(30)

// ValidateConfig checks the runtime-tunable policy knobs in g before
// they are applied, mirroring the teacher's pre-apply validation gate
// for governance/slashing/mempool config.
func ValidateConfig(g Global) error {
	for name, p := range map[string]RatePreset{
		"register":         g.RateLimits.Register,
		"message":          g.RateLimits.Message,
		"prediction_offer": g.RateLimits.PredictionOffer,
		"general":          g.RateLimits.General,
	} {
		if p.Limit <= 0 {
			return fmt.Errorf("rate_limits: %s.limit must be positive", name)
		}
		if p.WindowSecs <= 0 {
			return fmt.Errorf("rate_limits: %s.window_secs must be positive", name)
		}
	}
	if g.SpecLoop.ChangeOrderDeltaRate <= 0 || g.SpecLoop.ChangeOrderDeltaRate >= 1 {
		return fmt.Errorf("spec_loop: change_order_delta_rate must be in (0, 1)")
	}
	if g.SpecLoop.RiskLowMax <= 0 || g.SpecLoop.RiskMediumMax <= g.SpecLoop.RiskLowMax {
		return fmt.Errorf("spec_loop: risk_low_max < risk_medium_max and both positive required")
	}
	if g.Reconciler.PollIntervalSecs < MinReconcilerPollSeconds {
		return fmt.Errorf("reconciler: poll_interval_secs too small")
	}
	if g.Reconciler.AutoReleaseSecs <= 0 {
		return fmt.Errorf("reconciler: auto_release_secs must be positive")
	}
	return nil
}
