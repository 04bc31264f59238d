package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saltdig.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SignerKey == "" {
		t.Fatal("expected a generated signer key")
	}
	if cfg.DatabaseDSN == "" {
		t.Fatal("expected a default database dsn")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be written: %v", err)
	}
}

func TestLoadParsesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saltdig.toml")
	contents := `ListenAddress = ":9090"
DatabaseDSN = "postgres://localhost/saltdig"
SignerKey = "deadbeef"
BaseRPCURL = "https://base-sepolia.example.com"
EscrowAddress = "0x0000000000000000000000000000000000dEaD"
USDCAddress = "0x0000000000000000000000000000000000bEEF"
ChainID = 84532
Confirmations = 3
CallTimeoutSeconds = 30
PollIntervalSeconds = 2
CronSecret = "shh"
ReconcilePollIntervalSeconds = 300
AutoReleaseSeconds = 259200
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddress != ":9090" {
		t.Fatalf("ListenAddress = %q", cfg.ListenAddress)
	}
	if cfg.ChainID != 84532 {
		t.Fatalf("ChainID = %d", cfg.ChainID)
	}
	if cfg.SignerKey != "deadbeef" {
		t.Fatalf("expected existing signer key to survive reload, got %q", cfg.SignerKey)
	}
}

func TestValidateConfigRejectsBadRateLimits(t *testing.T) {
	g := defaultGlobal()
	g.RateLimits.General.Limit = 0
	if err := ValidateConfig(g); err == nil {
		t.Fatal("expected error for non-positive rate limit")
	}
}

func TestValidateConfigRejectsBadSpecLoopRate(t *testing.T) {
	g := defaultGlobal()
	g.SpecLoop.ChangeOrderDeltaRate = 1.5
	if err := ValidateConfig(g); err == nil {
		t.Fatal("expected error for out-of-range change order delta rate")
	}
}

func TestValidateConfigRejectsShortReconcilerPoll(t *testing.T) {
	g := defaultGlobal()
	g.Reconciler.PollIntervalSecs = 1
	if err := ValidateConfig(g); err == nil {
		t.Fatal("expected error for too-short reconciler poll interval")
	}
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	if err := ValidateConfig(defaultGlobal()); err != nil {
		t.Fatalf("expected defaults to validate cleanly: %v", err)
	}
}

func defaultGlobal() Global {
	preset := RatePreset{Limit: 10, WindowSecs: 60}
	return Global{
		RateLimits: RateLimits{
			Register:        preset,
			Message:         preset,
			PredictionOffer: preset,
			General:         preset,
		},
		SpecLoop: SpecLoop{
			ChangeOrderDeltaRate: 0.2,
			RiskLowMax:           2,
			RiskMediumMax:        5,
		},
		Reconciler: Reconciler{
			PollIntervalSecs: 300,
			AutoReleaseSecs:  259200,
		},
	}
}
