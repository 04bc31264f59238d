package escrowchain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	cerrors "saltdig/core/errors"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const gasLimitHeadroomPct = 20

// CreateBounty opens a new on-chain bounty for listingID, funded by
// the poster's signer. If the existing ERC-20 allowance is below
// amount, the gateway first approves the maximum uint256 allowance.
func (g *Gateway) CreateBounty(ctx context.Context, signer *SignerKey, listingID, amount string, deadline int64) (txHash string, err error) {
	const op = "escrowchain.CreateBounty"
	raw, perr := parseUSDC(amount)
	if perr != nil {
		return "", cerrors.InvalidArgument(op, "%s", perr)
	}
	if err := g.ensureAllowance(ctx, signer, raw); err != nil {
		return "", err
	}
	return g.send(ctx, op, "createBounty", signer, "createBounty", listingID, raw, big.NewInt(deadline))
}

// ClaimBounty claims an open bounty, posting the worker's stake. If
// the worker's allowance is below the stake, the gateway first
// approves the maximum uint256 allowance. The stake is supplied by the
// caller; native/bounty passes the record's locally computed 10%
// WorkerStake, not a value read back from the chain.
func (g *Gateway) ClaimBounty(ctx context.Context, signer *SignerKey, hash [32]byte, stake string) (string, error) {
	const op = "escrowchain.ClaimBounty"
	raw, perr := parseUSDC(stake)
	if perr != nil {
		return "", cerrors.InvalidArgument(op, "%s", perr)
	}
	if err := g.ensureAllowance(ctx, signer, raw); err != nil {
		return "", err
	}
	return g.send(ctx, op, "claimBounty", signer, "claimBounty", hash)
}

// SubmitBounty marks a claimed bounty as submitted.
func (g *Gateway) SubmitBounty(ctx context.Context, signer *SignerKey, hash [32]byte) (string, error) {
	return g.send(ctx, "escrowchain.SubmitBounty", "submitBounty", signer, "submitBounty", hash)
}

// ApproveBounty releases a submitted bounty's funds to the worker.
func (g *Gateway) ApproveBounty(ctx context.Context, signer *SignerKey, hash [32]byte) (string, error) {
	return g.send(ctx, "escrowchain.ApproveBounty", "approveBounty", signer, "approveBounty", hash)
}

// DisputeBounty flags a submitted bounty for operator resolution.
func (g *Gateway) DisputeBounty(ctx context.Context, signer *SignerKey, hash [32]byte) (string, error) {
	return g.send(ctx, "escrowchain.DisputeBounty", "disputeBounty", signer, "disputeBounty", hash)
}

// CancelBounty cancels an open bounty with no committed worker.
func (g *Gateway) CancelBounty(ctx context.Context, signer *SignerKey, hash [32]byte) (string, error) {
	return g.send(ctx, "escrowchain.CancelBounty", "cancelBounty", signer, "cancelBounty", hash)
}

// AutoRelease force-releases a submitted bounty past its timeout.
// signer MUST be the platform wallet key (PlatformSignerFromEnv); the
// contract itself enforces the timeout.
func (g *Gateway) AutoRelease(ctx context.Context, signer *SignerKey, hash [32]byte) (string, error) {
	return g.send(ctx, "escrowchain.AutoRelease", "autoRelease", signer, "autoRelease", hash)
}

// ensureAllowance raises the signer's ERC-20 allowance to the escrow
// contract to at least want, approving the full uint256 max when a
// top-up is needed so repeated calls rarely re-approve.
func (g *Gateway) ensureAllowance(ctx context.Context, signer *SignerKey, want *big.Int) error {
	const op = "escrowchain.ensureAllowance"
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	owner := signer.Address()
	calldata, err := erc20ABI.Pack("allowance", owner, g.escrowAddr)
	if err != nil {
		return cerrors.Wrap(cerrors.KindUnknown, op, fmt.Errorf("pack allowance call: %w", err))
	}
	out, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &g.usdcAddr, Data: calldata}, nil)
	if err != nil {
		return cerrors.EscrowRPCFailure(op, err)
	}
	var current *big.Int
	if err := erc20ABI.UnpackIntoInterface(&current, "allowance", out); err != nil {
		return cerrors.Wrap(cerrors.KindUnknown, op, fmt.Errorf("unpack allowance result: %w", err))
	}
	if current.Cmp(want) >= 0 {
		return nil
	}

	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if _, err := g.sendRaw(ctx, "approve", signer, g.usdcAddr, erc20ABI, "approve", g.escrowAddr, maxUint256); err != nil {
		return cerrors.EscrowRPCFailure(op, err)
	}
	return nil
}

// send packs and submits a call against the escrow contract, awaiting
// confirmation, tracing and recording metrics under method.
func (g *Gateway) send(ctx context.Context, op, method string, signer *SignerKey, fnName string, args ...interface{}) (string, error) {
	ctx, span := g.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("escrow.method", method)))
	defer span.End()

	hash, err := g.sendRaw(ctx, method, signer, g.escrowAddr, escrowABI, fnName, args...)
	if err != nil {
		return "", g.fail(span, op, method, cerrors.EscrowRPCFailure(op, err))
	}
	g.succeed(span, method)
	return hash, nil
}

// sendRaw packs calldata for fnName against the given contract ABI,
// signs, submits, and waits for the configured confirmation depth.
func (g *Gateway) sendRaw(ctx context.Context, method string, signer *SignerKey, to common.Address, contractABI interface {
	Pack(name string, args ...interface{}) ([]byte, error)
}, fnName string, args ...interface{}) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	calldata, err := contractABI.Pack(fnName, args...)
	if err != nil {
		return "", fmt.Errorf("pack %s call: %w", fnName, err)
	}

	from := signer.Address()
	nonce, err := g.client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}
	gasLimit, err := g.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: calldata})
	if err != nil {
		return "", fmt.Errorf("estimate gas: %w", err)
	}
	gasLimit = gasLimit * (100 + gasLimitHeadroomPct) / 100

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     calldata,
	})
	signedTx, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(g.chainID), signer.priv)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	if err := g.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	if err := g.awaitConfirmation(ctx, signedTx.Hash()); err != nil {
		return "", err
	}
	return signedTx.Hash().Hex(), nil
}

// awaitConfirmation polls until the transaction reaches the
// configured confirmation depth, modeled directly on the teacher's
// oracle-attesterd confirmation logic (HeaderByNumber/TransactionReceipt).
func (g *Gateway) awaitConfirmation(ctx context.Context, txHash common.Hash) error {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("await confirmation: %w", ctx.Err())
		case <-ticker.C:
		}

		receipt, err := g.client.TransactionReceipt(ctx, txHash)
		if err != nil {
			if err == ethereum.NotFound {
				continue
			}
			return fmt.Errorf("fetch receipt: %w", err)
		}
		if receipt.Status != gethtypes.ReceiptStatusSuccessful {
			return fmt.Errorf("transaction %s reverted", txHash.Hex())
		}
		if g.confirmations <= 1 {
			return nil
		}
		header, err := g.client.HeaderByNumber(ctx, nil)
		if err != nil {
			return fmt.Errorf("fetch head: %w", err)
		}
		if header.Number == nil || receipt.BlockNumber == nil {
			continue
		}
		confirmed := new(big.Int).Sub(header.Number, receipt.BlockNumber)
		confirmed.Add(confirmed, big.NewInt(1))
		if confirmed.Cmp(new(big.Int).SetUint64(g.confirmations)) >= 0 {
			return nil
		}
	}
}
