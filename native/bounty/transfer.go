package bounty

import (
	"context"
	"strconv"
	"strings"

	cerrors "saltdig/core/errors"
	"saltdig/core/types"
	"saltdig/store"

	"github.com/google/uuid"
)

// transferLocked performs a Salt transfer directly against tx, the
// Store bound to the enclosing transaction. It duplicates
// native/ledger.Transfer's positive-amount and self-transfer checks
// (not its MaxTransferAmount cap, which is not applied here) rather
// than calling it, because
// AcceptOrder/AcceptOffer/etc. must run the transfer in the same
// store transaction as their own listing/order mutation (spec §5);
// calling back into the Ledger would open a second, nested
// transaction the store interface does not support.
func (e *Engine) transferLocked(ctx context.Context, tx store.Store, from, to string, amount int64, kind, description string) (*types.LedgerEntry, error) {
	const op = "bounty.transfer"
	if amount <= 0 {
		return nil, cerrors.InvalidArgument(op, "amount must be positive")
	}
	if from != "" && from == to {
		return nil, cerrors.InvalidArgument(op, "self-transfers are not allowed")
	}
	if from != "" {
		newBal, err := tx.AdjustBalance(ctx, from, -amount)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, cerrors.NotFound(op, "agent %q not found", from)
			}
			if err == store.ErrConflict {
				return nil, cerrors.InsufficientFunds(op, "agent %q has insufficient balance for transfer of %d", from, amount)
			}
			return nil, err
		}
		if newBal < 0 {
			return nil, cerrors.InsufficientFunds(op, "agent %q has insufficient balance for transfer of %d", from, amount)
		}
	}
	if to != "" {
		if _, err := tx.AdjustBalance(ctx, to, amount); err != nil {
			if err == store.ErrNotFound {
				return nil, cerrors.NotFound(op, "agent %q not found", to)
			}
			return nil, err
		}
	}
	entry := &types.LedgerEntry{
		ID:          uuid.NewString(),
		FromAgentID: from,
		ToAgentID:   to,
		Amount:      amount,
		Kind:        kind,
		Description: description,
		CreatedAt:   e.now().Unix(),
	}
	if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// parseSaltAmount parses a listing/order/offer price string into an
// integer Salt amount. Salt prices are whole integers (spec §3).
func parseSaltAmount(price string) (int64, error) {
	trimmed := strings.TrimSpace(price)
	amount, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, cerrors.InvalidArgument("bounty.parseSaltAmount", "invalid Salt amount %q", price)
	}
	return amount, nil
}
