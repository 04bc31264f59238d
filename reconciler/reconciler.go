// Package reconciler implements Component G: the periodic job that
// reconciles persisted USDC transaction records against the on-chain
// escrow contract, correcting drift and auto-releasing bounties past
// their timeout. The poll loop is grounded on the teacher's
// services/escrow-gateway/watcher.go (time.Ticker, cancellable select
// on ctx.Done(), one poll step per tick); persisted record status
// already carries idempotence so no in-memory processed-set is kept,
// unlike services/payoutd/processor.go's bookkeeping map.
package reconciler

import (
	"context"
	"crypto/subtle"
	"time"

	"saltdig/core/types"
	"saltdig/native/bounty"
	"saltdig/native/escrowchain"
	"saltdig/observability/metrics"
	"saltdig/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultAutoReleaseTimeout is spec §4.G's default 72h bounty timeout.
const DefaultAutoReleaseTimeout = 72 * time.Hour

// DefaultPollInterval is the recommended ≤5min cadence.
const DefaultPollInterval = 5 * time.Minute

// Failure records one bounty's reconciliation failure, isolated from
// the rest of the batch.
type Failure struct {
	RecordID string
	Err      error
}

// Job reconciles submitted USDC records against on-chain state.
type Job struct {
	store         store.Store
	engine        *bounty.Engine
	chain         *escrowchain.Gateway
	signer        *escrowchain.SignerKey
	pollInterval  time.Duration
	releaseAfter  time.Duration
	now           func() time.Time
	tracer        trace.Tracer
}

// Option customises a Job.
type Option func(*Job)

// WithPollInterval overrides the ticker cadence.
func WithPollInterval(d time.Duration) Option {
	return func(j *Job) { j.pollInterval = d }
}

// WithReleaseAfter overrides the auto-release timeout.
func WithReleaseAfter(d time.Duration) Option {
	return func(j *Job) { j.releaseAfter = d }
}

// WithClock overrides the job's notion of now (tests only).
func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

// New builds a reconciler Job. signer must be the platform wallet key
// since autoRelease is a platform-authorized contract call.
func New(st store.Store, engine *bounty.Engine, chain *escrowchain.Gateway, signer *escrowchain.SignerKey, opts ...Option) *Job {
	j := &Job{
		store:        st,
		engine:       engine,
		chain:        chain,
		signer:       signer,
		pollInterval: DefaultPollInterval,
		releaseAfter: DefaultAutoReleaseTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		tracer:       otel.Tracer("saltdig/reconciler"),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run ticks the reconciler until ctx is cancelled. Cancellation is
// only observed between bounties, never mid-call, per spec §5.
func (j *Job) Run(ctx context.Context) {
	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Poll(ctx)
		}
	}
}

// Poll runs one reconciliation pass over every submitted USDC record,
// returning the isolated per-bounty failures. A single failing bounty
// never aborts the batch.
func (j *Job) Poll(ctx context.Context) []Failure {
	start := time.Now()
	ctx, span := j.tracer.Start(ctx, "reconciler.Poll")
	defer span.End()

	records, err := j.store.SubmittedUSDCRecords(ctx, j.now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ReconcilerPassDuration.Observe(time.Since(start).Seconds())
		return []Failure{{Err: err}}
	}

	var failures []Failure
	for _, record := range records {
		select {
		case <-ctx.Done():
			span.SetStatus(codes.Error, ctx.Err().Error())
			metrics.ReconcilerPassDuration.Observe(time.Since(start).Seconds())
			return failures
		default:
		}
		if err := j.reconcileOne(ctx, &record); err != nil {
			failures = append(failures, Failure{RecordID: record.ID, Err: err})
		}
	}

	metrics.ReconcilerRecordsTotal.WithLabelValues("processed").Add(float64(len(records)))
	if len(failures) > 0 {
		metrics.ReconcilerRecordsTotal.WithLabelValues("failed").Add(float64(len(failures)))
		span.SetStatus(codes.Error, "one or more bounties failed to reconcile")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	metrics.ReconcilerPassDuration.Observe(time.Since(start).Seconds())
	return failures
}

// reconcileOne reads one bounty's on-chain state, corrects drift, and
// auto-releases it past its timeout.
func (j *Job) reconcileOne(ctx context.Context, record *types.USDCTransactionRecord) error {
	onChain, err := j.chain.GetBounty(ctx, record.BountyHash)
	if err != nil {
		return err
	}

	if onChain.Status != types.OnChainSubmitted {
		return j.engine.ApplyObservedStatus(ctx, record.ID, onChain.Status, record.LastTxHash)
	}

	deadline := time.Unix(record.SubmittedAt, 0).Add(j.releaseAfter)
	if j.now().Before(deadline) {
		return nil
	}
	return j.engine.AutoRelease(ctx, record.ID, j.signer)
}

// AuthorizeCronSecret compares provided against expected in constant
// time, the authorization gate spec §4.G and §9 require for invoking
// the reconciler externally (e.g. from an HTTP-triggered cron).
func AuthorizeCronSecret(provided, expected string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
