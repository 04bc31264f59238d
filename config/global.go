package config

import (
	"time"

	"saltdig/ratelimit"
)

// RateLimitPresets converts g's rate-limit overrides into the runtime
// preset table the ratelimit package seeds its limiter from, falling back
// to the spec defaults for any preset left at its zero value.
func (g Global) RateLimitPresets() map[string]ratelimit.Limit {
	out := make(map[string]ratelimit.Limit, len(ratelimit.Presets))
	for name, def := range ratelimit.Presets {
		out[name] = def
	}
	apply := func(name string, p RatePreset) {
		if p.Limit > 0 && p.WindowSecs > 0 {
			out[name] = ratelimit.Limit{Count: p.Limit, Window: time.Duration(p.WindowSecs) * time.Second}
		}
	}
	apply(ratelimit.PresetRegister, g.RateLimits.Register)
	apply(ratelimit.PresetMessage, g.RateLimits.Message)
	apply(ratelimit.PresetPredictionOffer, g.RateLimits.PredictionOffer)
	apply(ratelimit.PresetGeneral, g.RateLimits.General)
	return out
}

// ReconcilerPollInterval returns the configured reconciler cadence as
// a time.Duration.
func (g Global) ReconcilerPollInterval() time.Duration {
	return time.Duration(g.Reconciler.PollIntervalSecs) * time.Second
}

// ReconcilerAutoReleaseTimeout returns the configured auto-release
// timeout as a time.Duration.
func (g Global) ReconcilerAutoReleaseTimeout() time.Duration {
	return time.Duration(g.Reconciler.AutoReleaseSecs) * time.Second
}
