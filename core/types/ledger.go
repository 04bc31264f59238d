package types

import "fmt"

// LedgerEntry is one row of the Salt double-entry journal.
// FromAgentID and ToAgentID are empty to mean "system" per spec §3:
// an entry with one side empty reflects issuance or burn.
type LedgerEntry struct {
	ID          string
	FromAgentID string
	ToAgentID   string
	Amount      int64
	Kind        string
	Description string
	CreatedAt   int64
}

// Clone deep copies the entry.
func (e *LedgerEntry) Clone() *LedgerEntry {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// Validate checks the entry's static shape. It does not check balance
// sufficiency; that is the Ledger's job at transfer time.
func (e *LedgerEntry) Validate() error {
	if e == nil {
		return fmt.Errorf("ledger entry: nil")
	}
	if e.Amount <= 0 {
		return fmt.Errorf("ledger entry: amount must be positive")
	}
	if e.FromAgentID != "" && e.FromAgentID == e.ToAgentID {
		return fmt.Errorf("ledger entry: self-transfers are not allowed")
	}
	return nil
}

// IsIssuance reports whether this entry mints Salt from the system.
func (e *LedgerEntry) IsIssuance() bool {
	return e != nil && e.FromAgentID == "" && e.ToAgentID != ""
}

// IsBurn reports whether this entry removes Salt into the system.
func (e *LedgerEntry) IsBurn() bool {
	return e != nil && e.FromAgentID != "" && e.ToAgentID == ""
}

// Ledger transaction kinds used across the core components. Kept as a
// closed set of string constants rather than an open string field, per
// the Design Notes' guidance against implicit/ad-hoc tagging.
const (
	KindOrderEscrow        = "order_escrow"
	KindOrderPayout        = "order_payout"
	KindOfferAccept        = "offer_accept"
	KindMilestonePayment   = "milestone_payment"
	KindSpecDeposit        = "spec_deposit"
	KindSpecReviewPayment  = "spec_review_payment"
	KindSpecFreezeCredit   = "spec_freeze_credit"
	KindCompetitionPrize   = "competition_prize"
)
