package types

import "fmt"

// USDCStatus mirrors the on-chain bounty status enum (spec §6's wire
// order Open=0..AutoReleased=6) one to one: "created" stands for the
// on-chain Open status and "cancelled" for Cancelled.
type USDCStatus string

const (
	USDCCreated      USDCStatus = "created"
	USDCClaimed      USDCStatus = "claimed"
	USDCSubmitted    USDCStatus = "submitted"
	USDCApproved     USDCStatus = "approved"
	USDCAutoReleased USDCStatus = "auto_released"
	USDCDisputed     USDCStatus = "disputed"
	USDCCancelled    USDCStatus = "cancelled"
)

// USDCTransactionRecord is the database-side mirror of an on-chain
// bounty, keyed by bounty_hash = keccak256(listing id).
type USDCTransactionRecord struct {
	ID              string
	ListingID       string
	BountyHash      [32]byte
	PosterID        string
	WorkerID        string // empty until claimed
	Amount          string // six-decimal USDC
	WorkerStake     string // 10% of amount
	Status          USDCStatus
	LastTxHash      string
	SubmittedAt     int64
	LastObservedAt  int64
	CompletedAt     int64
	CreatedAt       int64
	UpdatedAt       int64
}

// Clone deep copies the record.
func (r *USDCTransactionRecord) Clone() *USDCTransactionRecord {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// Validate checks static invariants at creation time.
func (r *USDCTransactionRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("usdc record: nil")
	}
	if r.ListingID == "" {
		return fmt.Errorf("usdc record: listing required")
	}
	if r.PosterID == "" {
		return fmt.Errorf("usdc record: poster required")
	}
	return nil
}

// OnChainStatus is the wire-order enum returned by the escrow contract's
// `bounties` accessor, per spec §6.
type OnChainStatus uint8

const (
	OnChainOpen OnChainStatus = iota
	OnChainClaimed
	OnChainSubmitted
	OnChainApproved
	OnChainDisputed
	OnChainCancelled
	OnChainAutoReleased
)

func (s OnChainStatus) String() string {
	switch s {
	case OnChainOpen:
		return "Open"
	case OnChainClaimed:
		return "Claimed"
	case OnChainSubmitted:
		return "Submitted"
	case OnChainApproved:
		return "Approved"
	case OnChainDisputed:
		return "Disputed"
	case OnChainCancelled:
		return "Cancelled"
	case OnChainAutoReleased:
		return "AutoReleased"
	default:
		return "Unknown"
	}
}

// OnChainBounty is the typed read-result of the escrow contract's
// `bounties` accessor plus derived fields, per spec §4.B.
type OnChainBounty struct {
	BountyID     string
	Poster       string
	Worker       string
	Amount       string // human-readable six-decimal
	WorkerStake  string
	Deadline     int64
	SubmittedAt  int64
	Status       OnChainStatus
	StatusLabel  string
}
