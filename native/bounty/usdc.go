package bounty

import (
	"context"
	"fmt"
	"math/big"

	cerrors "saltdig/core/errors"
	"saltdig/core/types"
	"saltdig/eventbus"
	"saltdig/native/escrowchain"
	"saltdig/store"

	"github.com/google/uuid"
)

// workerStakeBps is the 10% worker stake named in spec §4.C and §3.
const workerStakeBps = 1000

// CreateUSDCRecord opens an on-chain bounty for a USDC listing and
// creates its database shadow record, poster only. The chain call
// happens before any database write: on failure no record is created
// at all, per spec §4.C's "if the chain call fails, the record is
// left at its previous status" (here, nonexistent).
func (e *Engine) CreateUSDCRecord(ctx context.Context, listingID, posterID, amount string, deadline int64, signer *escrowchain.SignerKey) (*types.USDCTransactionRecord, error) {
	const op = "bounty.CreateUSDCRecord"
	if e.chain == nil {
		return nil, cerrors.InvalidState(op, "no escrow chain gateway configured")
	}
	listing, err := e.store.GetListing(ctx, listingID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, cerrors.NotFound(op, "listing %q not found", listingID)
		}
		return nil, err
	}
	if !listing.IsOwner(posterID) {
		return nil, cerrors.Forbidden(op, "only the poster may open a USDC bounty on listing %q", listingID)
	}
	if listing.Currency != types.CurrencyUSDC {
		return nil, cerrors.InvalidArgument(op, "listing %q is not priced in USDC", listingID)
	}
	if existing, err := e.store.GetUSDCRecordByListing(ctx, listingID); err == nil && existing != nil {
		return nil, cerrors.Conflict(op, "listing %q already has a USDC record", listingID)
	}

	hash := e.chain.ComputeBountyHash(listingID)
	txHash, err := e.chain.CreateBounty(ctx, signer, listingID, amount, deadline)
	if err != nil {
		return nil, err
	}

	now := e.now().Unix()
	record := &types.USDCTransactionRecord{
		ID:          uuid.NewString(),
		ListingID:   listingID,
		BountyHash:  hash,
		PosterID:    posterID,
		Amount:      amount,
		WorkerStake: stakeOf(amount),
		Status:      types.USDCCreated,
		LastTxHash:  txHash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		listing.Status = types.ListingActive
		if err := tx.PutListing(ctx, listing); err != nil {
			return err
		}
		return tx.PutUSDCRecord(ctx, record)
	}); err != nil {
		return nil, cerrors.Wrap(cerrors.KindUnknown, op, err)
	}
	e.emit(eventbus.TopicUSDCRecordStatusChanged, record.Clone())
	return record, nil
}

// ClaimUSDCRecord claims an open bounty, non-poster only.
func (e *Engine) ClaimUSDCRecord(ctx context.Context, recordID, workerID string, signer *escrowchain.SignerKey) error {
	const op = "bounty.ClaimUSDCRecord"
	record, err := e.getUSDCRecord(ctx, op, recordID)
	if err != nil {
		return err
	}
	if record.PosterID == workerID {
		return cerrors.Forbidden(op, "the poster may not claim their own bounty")
	}
	worker, err := e.store.GetAgent(ctx, workerID)
	if err != nil {
		if err == store.ErrNotFound {
			return cerrors.NotFound(op, "agent %q not found", workerID)
		}
		return err
	}
	if !worker.HasWallet() {
		return cerrors.Forbidden(op, "agent %q has no wallet configured", workerID)
	}
	if record.Status != types.USDCCreated {
		return cerrors.InvalidState(op, "record %q is not created", recordID)
	}
	txHash, err := e.chain.ClaimBounty(ctx, signer, record.BountyHash, record.WorkerStake)
	if err != nil {
		return err
	}
	return e.persistUSDCTransition(ctx, recordID, types.USDCClaimed, txHash, func(r *types.USDCTransactionRecord) {
		r.WorkerID = workerID
	})
}

// SubmitUSDCRecord marks a claimed bounty submitted, worker only.
func (e *Engine) SubmitUSDCRecord(ctx context.Context, recordID, workerID string, signer *escrowchain.SignerKey) error {
	const op = "bounty.SubmitUSDCRecord"
	record, err := e.getUSDCRecord(ctx, op, recordID)
	if err != nil {
		return err
	}
	if record.WorkerID != workerID {
		return cerrors.Forbidden(op, "only the claiming worker may submit record %q", recordID)
	}
	if record.Status != types.USDCClaimed {
		return cerrors.InvalidState(op, "record %q is not claimed", recordID)
	}
	txHash, err := e.chain.SubmitBounty(ctx, signer, record.BountyHash)
	if err != nil {
		return err
	}
	submittedAt := e.now().Unix()
	return e.persistUSDCTransition(ctx, recordID, types.USDCSubmitted, txHash, func(r *types.USDCTransactionRecord) {
		r.SubmittedAt = submittedAt
	})
}

// ApproveUSDCRecord releases a submitted bounty, poster only.
func (e *Engine) ApproveUSDCRecord(ctx context.Context, recordID, posterID string, signer *escrowchain.SignerKey) error {
	const op = "bounty.ApproveUSDCRecord"
	record, err := e.getUSDCRecord(ctx, op, recordID)
	if err != nil {
		return err
	}
	if record.PosterID != posterID {
		return cerrors.Forbidden(op, "only the poster may approve record %q", recordID)
	}
	if record.Status != types.USDCSubmitted {
		return cerrors.InvalidState(op, "record %q is not submitted", recordID)
	}
	txHash, err := e.chain.ApproveBounty(ctx, signer, record.BountyHash)
	if err != nil {
		return err
	}
	return e.persistUSDCTransitionAndComplete(ctx, recordID, types.USDCApproved, txHash)
}

// DisputeUSDCRecord flags a submitted bounty, poster or worker.
func (e *Engine) DisputeUSDCRecord(ctx context.Context, recordID, requesterID string, signer *escrowchain.SignerKey) error {
	const op = "bounty.DisputeUSDCRecord"
	record, err := e.getUSDCRecord(ctx, op, recordID)
	if err != nil {
		return err
	}
	if record.PosterID != requesterID && record.WorkerID != requesterID {
		return cerrors.Forbidden(op, "%q is not a participant in record %q", requesterID, recordID)
	}
	if record.Status != types.USDCSubmitted {
		return cerrors.InvalidState(op, "record %q is not submitted", recordID)
	}
	txHash, err := e.chain.DisputeBounty(ctx, signer, record.BountyHash)
	if err != nil {
		return err
	}
	return e.persistUSDCTransition(ctx, recordID, types.USDCDisputed, txHash, nil)
}

// CancelUSDCRecord cancels an open (not yet claimed) bounty, poster only.
func (e *Engine) CancelUSDCRecord(ctx context.Context, recordID, posterID string, signer *escrowchain.SignerKey) error {
	const op = "bounty.CancelUSDCRecord"
	record, err := e.getUSDCRecord(ctx, op, recordID)
	if err != nil {
		return err
	}
	if record.PosterID != posterID {
		return cerrors.Forbidden(op, "only the poster may cancel record %q", recordID)
	}
	if record.Status != types.USDCCreated {
		return cerrors.InvalidState(op, "record %q is not open", recordID)
	}
	txHash, err := e.chain.CancelBounty(ctx, signer, record.BountyHash)
	if err != nil {
		return err
	}
	return e.persistUSDCTransition(ctx, recordID, types.USDCCancelled, txHash, nil)
}

// AutoRelease force-releases a submitted bounty past its timeout.
// Anyone may call it; it is idempotent — a record already
// auto_released (or otherwise no longer submitted) is left untouched.
func (e *Engine) AutoRelease(ctx context.Context, recordID string, signer *escrowchain.SignerKey) error {
	const op = "bounty.AutoRelease"
	record, err := e.getUSDCRecord(ctx, op, recordID)
	if err != nil {
		return err
	}
	if record.Status != types.USDCSubmitted {
		return nil
	}
	txHash, err := e.chain.AutoRelease(ctx, signer, record.BountyHash)
	if err != nil {
		return err
	}
	return e.persistUSDCTransitionAndComplete(ctx, recordID, types.USDCAutoReleased, txHash)
}

// ApplyObservedStatus persists a drift-corrected status read directly
// from the chain by the reconciler, with no chain write of its own.
func (e *Engine) ApplyObservedStatus(ctx context.Context, recordID string, onChain types.OnChainStatus, txHash string) error {
	status, ok := onChainToRecordStatus(onChain)
	if !ok {
		return cerrors.InvalidArgument("bounty.ApplyObservedStatus", "unrecognised on-chain status %d", onChain)
	}
	return e.persistUSDCTransition(ctx, recordID, status, txHash, nil)
}

func (e *Engine) getUSDCRecord(ctx context.Context, op, id string) (*types.USDCTransactionRecord, error) {
	if e.chain == nil {
		return nil, cerrors.InvalidState(op, "no escrow chain gateway configured")
	}
	record, err := e.store.GetUSDCRecord(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, cerrors.NotFound(op, "usdc record %q not found", id)
		}
		return nil, err
	}
	return record, nil
}

func (e *Engine) persistUSDCTransition(ctx context.Context, recordID string, status types.USDCStatus, txHash string, mutate func(*types.USDCTransactionRecord)) error {
	var record *types.USDCTransactionRecord
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		r, err := tx.GetUSDCRecord(ctx, recordID)
		if err != nil {
			return err
		}
		r.Status = status
		r.LastTxHash = txHash
		r.LastObservedAt = e.now().Unix()
		r.UpdatedAt = r.LastObservedAt
		if mutate != nil {
			mutate(r)
		}
		record = r
		return tx.PutUSDCRecord(ctx, r)
	})
	if err != nil {
		return cerrors.Wrap(cerrors.KindUnknown, "bounty.persistUSDCTransition", err)
	}
	e.emit(eventbus.TopicUSDCRecordStatusChanged, record.Clone())
	return nil
}

// persistUSDCTransitionAndComplete additionally completes the parent
// listing in the same transaction, for the two terminal-payout
// statuses (approved, auto_released).
func (e *Engine) persistUSDCTransitionAndComplete(ctx context.Context, recordID string, status types.USDCStatus, txHash string) error {
	var record *types.USDCTransactionRecord
	var listing *types.Listing
	err := e.store.WithinTx(ctx, func(ctx context.Context, tx store.Store) error {
		r, err := tx.GetUSDCRecord(ctx, recordID)
		if err != nil {
			return err
		}
		r.Status = status
		r.LastTxHash = txHash
		now := e.now().Unix()
		r.LastObservedAt = now
		r.UpdatedAt = now
		r.CompletedAt = now
		if err := tx.PutUSDCRecord(ctx, r); err != nil {
			return err
		}
		record = r

		l, err := tx.GetListing(ctx, r.ListingID)
		if err != nil {
			return err
		}
		completeListingLocked(now, l)
		if err := tx.PutListing(ctx, l); err != nil {
			return err
		}
		listing = l
		return nil
	})
	if err != nil {
		return cerrors.Wrap(cerrors.KindUnknown, "bounty.persistUSDCTransitionAndComplete", err)
	}
	e.emit(eventbus.TopicUSDCRecordStatusChanged, record.Clone())
	e.emit(eventbus.TopicListingStatusChanged, listing.Clone())
	return nil
}

func onChainToRecordStatus(s types.OnChainStatus) (types.USDCStatus, bool) {
	switch s {
	case types.OnChainOpen:
		return types.USDCCreated, true
	case types.OnChainClaimed:
		return types.USDCClaimed, true
	case types.OnChainSubmitted:
		return types.USDCSubmitted, true
	case types.OnChainApproved:
		return types.USDCApproved, true
	case types.OnChainDisputed:
		return types.USDCDisputed, true
	case types.OnChainCancelled:
		return types.USDCCancelled, true
	case types.OnChainAutoReleased:
		return types.USDCAutoReleased, true
	default:
		return "", false
	}
}

// stakeOf computes the 10% worker stake for a six-decimal USDC amount
// string, returning the same string format.
func stakeOf(amount string) string {
	raw, ok := parseDecimalMicros(amount)
	if !ok {
		return "0.000000"
	}
	stake := new(big.Int).Mul(raw, big.NewInt(workerStakeBps))
	stake.Div(stake, big.NewInt(10_000))
	whole := new(big.Int)
	frac := new(big.Int)
	scale := big.NewInt(1_000_000)
	whole.DivMod(stake, scale, frac)
	return fmt.Sprintf("%s.%06s", whole.String(), frac.String())
}

// parseDecimalMicros parses a six-decimal amount string into its raw
// micro-unit integer value.
func parseDecimalMicros(amount string) (*big.Int, bool) {
	f, ok := new(big.Float).SetString(amount)
	if !ok {
		return nil, false
	}
	scaled := new(big.Float).Mul(f, big.NewFloat(1_000_000))
	raw, _ := scaled.Int(nil)
	return raw, true
}
