package config

import (
	"encoding/hex"
	"os"

	"saltdig/crypto"

	"github.com/BurntSushi/toml"
)

// Config captures the runtime configuration for a saltdig service
// process (API server, reconciler, or any other cmd/ entrypoint).
// SignerKey is a hex-encoded secp256k1 key generated on first run the
// same way the teacher auto-generates a validator key; cmd/reconciler
// does not read it and loads the platform signer from
// PLATFORM_WALLET_KEY instead. Per-agent signer material is never
// stored here.
type Config struct {
	ListenAddress     string `toml:"ListenAddress"`
	DatabaseDSN       string `toml:"DatabaseDSN"`
	SignerKey         string `toml:"SignerKey"`
	BaseRPCURL        string `toml:"BaseRPCURL"`
	EscrowAddress     string `toml:"EscrowAddress"`
	USDCAddress       string `toml:"USDCAddress"`
	ChainID           int64  `toml:"ChainID"`
	Confirmations     uint64 `toml:"Confirmations"`
	CallTimeoutSecs   int64  `toml:"CallTimeoutSeconds"`
	PollIntervalSecs  int64  `toml:"PollIntervalSeconds"`
	CronSecret        string `toml:"CronSecret"`
	ReconcilePollSecs int64  `toml:"ReconcilePollIntervalSeconds"`
	AutoReleaseSecs   int64  `toml:"AutoReleaseSeconds"`
}

// Load reads the configuration at path, creating a default one (with a
// freshly generated platform signer key) if it does not yet exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if cfg.SignerKey == "" {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.SignerKey = hex.EncodeToString(key.Bytes())

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, os.ModePerm)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddress:     ":8080",
		DatabaseDSN:       "./saltdig.db",
		SignerKey:         hex.EncodeToString(key.Bytes()),
		Confirmations:     1,
		CallTimeoutSecs:   30,
		PollIntervalSecs:  2,
		ReconcilePollSecs: 300,
		AutoReleaseSecs:   72 * 60 * 60,
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
