package milestone

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
// than calling it — the
// same tradeoff native/bounty/transfer.go makes — because Approve
// must run the release in the same store transaction as the
// milestone's own status mutation.
func transferLocked(ctx context.Context, tx store.Store, from, to string, amount int64, kind, description string, createdAt int64) (*types.LedgerEntry, error) {
	const op = "milestone.transfer"
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
		CreatedAt:   createdAt,
	}
	if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// parseSaltPrice parses a listing price string into a float64 Salt
// amount so a percentage release can be computed; the stored ledger
// entry amount is always rounded to the nearest whole Salt (spec §3).
func parseSaltPrice(price string) (float64, error) {
	trimmed := strings.TrimSpace(price)
	amount, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, cerrors.InvalidArgument("milestone.parseSaltPrice", "invalid Salt amount %q", price)
	}
	return amount, nil
}
