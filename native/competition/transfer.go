package competition

import (
	"context"

	cerrors "saltdig/core/errors"
	"saltdig/core/types"
	"saltdig/store"

	"github.com/google/uuid"
)

// transferLocked performs a Salt prize payout directly against tx,
// the same duplicated-validation tradeoff the other native/*
// transfer.go files make: Finalize must pay every winning entry
// inside the same store transaction as its own status mutations.
func transferLocked(ctx context.Context, tx store.Store, from, to string, amount int64, kind, description string, createdAt int64) (*types.LedgerEntry, error) {
	const op = "competition.transfer"
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
