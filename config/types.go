package config

// RatePreset overrides one named rate-limiter preset (spec §4.I).
type RatePreset struct {
	Limit      int
	WindowSecs int64
}

// RateLimits collects the four named presets the ratelimit package seeds
// its default table from.
type RateLimits struct {
	Register        RatePreset
	Message         RatePreset
	PredictionOffer RatePreset
	General         RatePreset
}

// SpecLoop captures the change-order pricing knobs (spec §4.E).
type SpecLoop struct {
	ChangeOrderDeltaRate float64
	RiskLowMax           int
	RiskMediumMax        int
}

// Reconciler captures the auto-release reconciler's cadence and
// timeout bounds (spec §4.G).
type Reconciler struct {
	PollIntervalSecs int64
	AutoReleaseSecs  int64
}

// Global bundles the runtime-tunable policy values validated by
// ValidateConfig before they are applied, the same shape the teacher
// uses for its governance/slashing/mempool knobs.
type Global struct {
	RateLimits RateLimits
	SpecLoop   SpecLoop
	Reconciler Reconciler
}
