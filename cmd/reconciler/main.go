// Command reconciler runs one auto-release reconciliation pass
// (Component G) and exits, suited to being driven by an external
// scheduler rather than looping in-process. Shape follows the
// teacher's cmd/nhb/main.go (flag parsing, config.Load, logging.Setup)
// crossed with services/payoutd/main.go's telemetry wiring.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"saltdig/config"
	"saltdig/eventbus"
	"saltdig/native/bounty"
	"saltdig/native/escrowchain"
	"saltdig/native/ledger"
	"saltdig/observability/logging"
	telemetry "saltdig/observability/otel"
	"saltdig/reconciler"
	"saltdig/store"
	"saltdig/store/memstore"
	"saltdig/store/pgstore"

	"github.com/ethereum/go-ethereum/common"
)

func main() {
	if err := run(); err != nil {
		slog.Error("reconciler run failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var cfgPath string
	var useMemstore bool
	var providedSecret string
	flag.StringVar(&cfgPath, "config", "saltdig.toml", "path to saltdig configuration")
	flag.BoolVar(&useMemstore, "memory", false, "use an in-memory store instead of Postgres (dev only)")
	flag.StringVar(&providedSecret, "cron-secret", "", "secret the invoking scheduler supplies, checked against CRON_SECRET")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("NHB_ENV"))
	logging.Setup("reconciler", env)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "reconciler",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(os.Getenv("BASE_RPC_URL")); v != "" {
		cfg.BaseRPCURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ESCROW_CONTRACT_ADDRESS")); v != "" {
		cfg.EscrowAddress = v
	}

	cronSecret := strings.TrimSpace(os.Getenv("CRON_SECRET"))
	if cronSecret == "" {
		cronSecret = cfg.CronSecret
	}
	if !reconciler.AuthorizeCronSecret(providedSecret, cronSecret) {
		return fmt.Errorf("unauthorized: -cron-secret does not match the configured CRON_SECRET")
	}

	st, err := openStore(useMemstore, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	client, err := escrowchain.DialEVMClient(cfg.BaseRPCURL)
	if err != nil {
		return fmt.Errorf("dial base rpc: %w", err)
	}

	escrowAddr := common.HexToAddress(cfg.EscrowAddress)
	usdcAddr := common.HexToAddress(cfg.USDCAddress)
	chain := escrowchain.New(client, escrowAddr, usdcAddr, big.NewInt(cfg.ChainID),
		escrowchain.WithConfirmations(cfg.Confirmations),
		escrowchain.WithCallTimeout(time.Duration(cfg.CallTimeoutSecs)*time.Second),
		escrowchain.WithPollInterval(time.Duration(cfg.PollIntervalSecs)*time.Second),
	)

	signer, err := escrowchain.PlatformSignerFromEnv()
	if err != nil {
		return fmt.Errorf("load platform signer: %w", err)
	}

	now := func() time.Time { return time.Now().UTC() }
	bus := eventbus.New(256)
	lg := ledger.New(st, now)
	engine := bounty.New(st, lg, chain, bus, now)

	job := reconciler.New(st, engine, chain, signer,
		reconciler.WithReleaseAfter(time.Duration(cfg.AutoReleaseSecs)*time.Second),
	)

	failures := job.Poll(context.Background())
	for _, f := range failures {
		slog.Warn("bounty reconciliation failed", "record_id", f.RecordID, "error", f.Err)
	}
	slog.Info("reconciliation pass complete", "failures", len(failures))
	return nil
}

// openStore returns the configured persistence backend: the in-memory
// reference store for -memory runs (dev only), Postgres otherwise.
func openStore(useMemstore bool, cfg *config.Config) (store.Store, error) {
	if useMemstore {
		return memstore.New(), nil
	}
	return pgstore.New(cfg.DatabaseDSN)
}
