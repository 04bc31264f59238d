// Package escrowchain is Component B: a typed, stateless wrapper over
// the fixed on-chain escrow ABI (spec §6). It owns no business state —
// every method either reads the chain or submits one write and waits
// for confirmation. Grounded on the teacher's oracle-attesterd EVM
// reader (services/oracle-attesterd/evm_confirm.go) for the client
// interface and confirmation-polling shape, and on payoutd's processor
// (services/payoutd/processor.go) for OTel span + metrics + functional
// option wiring.
package escrowchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"saltdig/observability/metrics"

	cerrors "saltdig/core/errors"
	"saltdig/core/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// usdcDecimals is the fixed USDC precision named in spec §6.
const usdcDecimals = 6

var usdcScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(usdcDecimals), nil)

// EVMClient is the subset of the Ethereum RPC the gateway depends on.
// Narrowed to an interface so tests substitute a fake, the same
// pattern as the teacher's oracle-attesterd EVMClient.
type EVMClient interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
}

// DialEVMClient opens an RPC connection to the configured L2 endpoint.
func DialEVMClient(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("escrowchain: BASE_RPC_URL required")
	}
	return ethclient.Dial(trimmed)
}

// Gateway is the typed escrow ABI wrapper.
type Gateway struct {
	client        EVMClient
	escrowAddr    common.Address
	usdcAddr      common.Address
	chainID       *big.Int
	confirmations uint64
	callTimeout   time.Duration
	pollInterval  time.Duration
	now           func() time.Time
	tracer        trace.Tracer
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithConfirmations sets how many confirmations a write must reach.
func WithConfirmations(n uint64) Option {
	return func(g *Gateway) { g.confirmations = n }
}

// WithCallTimeout bounds each RPC call; the spec recommends 30s.
func WithCallTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.callTimeout = d }
}

// WithPollInterval sets the confirmation-polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gateway) { g.pollInterval = d }
}

// WithClock overrides the gateway's notion of now (tests only).
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New builds a Gateway against the supplied RPC client, escrow
// contract address, ERC-20 (USDC) token address and chain id.
func New(client EVMClient, escrowAddr, usdcAddr common.Address, chainID *big.Int, opts ...Option) *Gateway {
	g := &Gateway{
		client:        client,
		escrowAddr:    escrowAddr,
		usdcAddr:      usdcAddr,
		chainID:       chainID,
		confirmations: 1,
		callTimeout:   30 * time.Second,
		pollInterval:  2 * time.Second,
		now:           func() time.Time { return time.Now().UTC() },
		tracer:        otel.Tracer("saltdig/escrowchain"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ComputeBountyHash returns keccak256 over the UTF-8 bytes of
// listingID, matching the on-chain computeHash(string) exactly since
// Solidity's abi.encodePacked of a single string argument is just its
// raw bytes.
func (g *Gateway) ComputeBountyHash(listingID string) [32]byte {
	return gethcrypto.Keccak256Hash([]byte(listingID))
}

// GetBounty reads one bounty by its hash.
func (g *Gateway) GetBounty(ctx context.Context, hash [32]byte) (*types.OnChainBounty, error) {
	const op = "escrowchain.GetBounty"
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	ctx, span := g.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("bounty.hash", common.Hash(hash).Hex()),
	))
	defer span.End()

	calldata, err := escrowABI.Pack("bounties", hash)
	if err != nil {
		return nil, g.fail(span, op, "calls", fmt.Errorf("pack bounties call: %w", err))
	}
	out, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &g.escrowAddr, Data: calldata}, nil)
	if err != nil {
		return nil, g.fail(span, op, "calls", cerrors.EscrowRPCFailure(op, err))
	}

	var decoded struct {
		Poster      common.Address
		Worker      common.Address
		Amount      *big.Int
		WorkerStake *big.Int
		Deadline    *big.Int
		SubmittedAt *big.Int
		Status      uint8
		BountyID    string
	}
	if err := escrowABI.UnpackIntoInterface(&decoded, "bounties", out); err != nil {
		return nil, g.fail(span, op, "calls", fmt.Errorf("unpack bounties result: %w", err))
	}

	bounty := &types.OnChainBounty{
		BountyID:    decoded.BountyID,
		Poster:      decoded.Poster.Hex(),
		Worker:      decoded.Worker.Hex(),
		Amount:      formatUSDC(decoded.Amount),
		WorkerStake: formatUSDC(decoded.WorkerStake),
		Deadline:    decoded.Deadline.Int64(),
		SubmittedAt: decoded.SubmittedAt.Int64(),
		Status:      types.OnChainStatus(decoded.Status),
		StatusLabel: types.OnChainStatus(decoded.Status).String(),
	}
	g.succeed(span, "calls")
	return bounty, nil
}

func (g *Gateway) fail(span trace.Span, op, method string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metrics.EscrowChainCallsTotal.WithLabelValues(method, "error").Inc()
	if cerrors.KindOf(err) == cerrors.KindUnknown {
		return cerrors.Wrap(cerrors.KindUnknown, op, err)
	}
	return err
}

func (g *Gateway) succeed(span trace.Span, method string) {
	span.SetStatus(codes.Ok, "")
	metrics.EscrowChainCallsTotal.WithLabelValues(method, "success").Inc()
}

// formatUSDC renders a raw six-decimal on-chain integer as a
// human-readable decimal string.
func formatUSDC(raw *big.Int) string {
	if raw == nil {
		return "0.000000"
	}
	whole := new(big.Int)
	frac := new(big.Int)
	whole.DivMod(raw, usdcScale, frac)
	return fmt.Sprintf("%s.%06s", whole.String(), frac.String())
}

// parseUSDC converts a human-readable six-decimal USDC amount string
// into its raw on-chain integer representation.
func parseUSDC(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("escrowchain: amount required")
	}
	parts := strings.SplitN(amount, ".", 2)
	whole, ok := new(big.Int).SetString(parts[0], 10)
	if !ok {
		return nil, fmt.Errorf("escrowchain: invalid amount %q", amount)
	}
	raw := new(big.Int).Mul(whole, usdcScale)
	if len(parts) == 2 {
		frac := parts[1]
		if len(frac) > usdcDecimals {
			frac = frac[:usdcDecimals]
		}
		for len(frac) < usdcDecimals {
			frac += "0"
		}
		fracVal, ok := new(big.Int).SetString(frac, 10)
		if !ok {
			return nil, fmt.Errorf("escrowchain: invalid amount %q", amount)
		}
		raw.Add(raw, fracVal)
	}
	return raw, nil
}
