// Package store defines the persistence contract every core component
// depends on, per spec §4.J: lookups by id, uniqueness constraints,
// range queries, and a transactional scope that lets a compound
// operation (§5) execute as one atomic "read → decide → write" unit.
//
// No component outside this package and its implementations
// (store/memstore, store/pgstore) may touch storage directly.
package store

import (
	"context"
	"time"

	"saltdig/core/types"
)

// ErrNotFound is returned by lookups that find nothing. Components
// translate it into core/errors.NotFound at the operation boundary.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "store: not found" }

// ErrConflict is returned when a uniqueness constraint is violated,
// and by AdjustBalance when the change would drive a balance negative.
var ErrConflict = errConflict{}

type errConflict struct{}

func (errConflict) Error() string { return "store: conflict" }

// TxFunc is the body of a transactional scope: it receives a Store
// bound to the in-flight transaction and must not retain it beyond
// the call.
type TxFunc func(ctx context.Context, tx Store) error

// Store is the union of operations every core component needs. A
// concrete implementation additionally satisfies WithinTx so callers
// can group a compound mutation (spec §5) into one atomic unit.
type Store interface {
	WithinTx(ctx context.Context, fn TxFunc) error

	AgentStore
	LedgerStore
	ListingStore
	OrderStore
	OfferStore
	USDCStore
	MilestoneStore
	SpecLoopStore
	CompetitionStore
}

// AgentStore covers agent lookups and balance mutation. Balance
// mutation always goes through AdjustBalance so the store can apply
// row-level serialization (spec §5); LedgerStore.AppendLedgerEntry is
// called in the same transaction by native/ledger.
type AgentStore interface {
	GetAgent(ctx context.Context, id string) (*types.Agent, error)
	PutAgent(ctx context.Context, agent *types.Agent) error
	AdjustBalance(ctx context.Context, agentID string, delta int64) (newBalance int64, err error)
	RichList(ctx context.Context, limit int) ([]types.Agent, error)
}

// LedgerStore covers the Salt transaction journal.
type LedgerStore interface {
	AppendLedgerEntry(ctx context.Context, entry *types.LedgerEntry) error
	LedgerHistory(ctx context.Context, agentID string, limit int) ([]types.LedgerEntry, error)
}

// ListingStore covers listing lookups and the listing transition table.
type ListingStore interface {
	GetListing(ctx context.Context, id string) (*types.Listing, error)
	PutListing(ctx context.Context, listing *types.Listing) error
}

// OrderStore covers service orders, with a uniqueness guard for "at
// most one non-terminal order per listing" (spec §3).
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*types.ServiceOrder, error)
	PutOrder(ctx context.Context, order *types.ServiceOrder) error
	ActiveOrderByListing(ctx context.Context, listingID string) (*types.ServiceOrder, error)
}

// OfferStore covers market offers.
type OfferStore interface {
	GetOffer(ctx context.Context, id string) (*types.MarketOffer, error)
	PutOffer(ctx context.Context, offer *types.MarketOffer) error
	OffersByListing(ctx context.Context, listingID string) ([]types.MarketOffer, error)
}

// USDCStore covers the on-chain shadow record.
type USDCStore interface {
	GetUSDCRecord(ctx context.Context, id string) (*types.USDCTransactionRecord, error)
	GetUSDCRecordByHash(ctx context.Context, hash [32]byte) (*types.USDCTransactionRecord, error)
	GetUSDCRecordByListing(ctx context.Context, listingID string) (*types.USDCTransactionRecord, error)
	PutUSDCRecord(ctx context.Context, record *types.USDCTransactionRecord) error
	SubmittedUSDCRecords(ctx context.Context, before time.Time) ([]types.USDCTransactionRecord, error)
}

// MilestoneStore covers milestones and their submissions.
type MilestoneStore interface {
	MilestonesByListing(ctx context.Context, listingID string) ([]types.Milestone, error)
	PutMilestones(ctx context.Context, milestones []types.Milestone) error
	GetMilestone(ctx context.Context, id string) (*types.Milestone, error)
	PutMilestone(ctx context.Context, milestone *types.Milestone) error
	LatestSubmission(ctx context.Context, milestoneID string) (*types.MilestoneSubmission, error)
	PutSubmission(ctx context.Context, submission *types.MilestoneSubmission) error
}

// SpecLoopStore covers spec deposits and change orders.
type SpecLoopStore interface {
	ActiveDepositByListing(ctx context.Context, listingID string) (*types.SpecDeposit, error)
	GetDeposit(ctx context.Context, id string) (*types.SpecDeposit, error)
	PutDeposit(ctx context.Context, deposit *types.SpecDeposit) error
	GetChangeOrder(ctx context.Context, id string) (*types.ChangeOrder, error)
	PutChangeOrder(ctx context.Context, order *types.ChangeOrder) error
}

// CompetitionStore covers competitions and entries.
type CompetitionStore interface {
	CompetitionByListing(ctx context.Context, listingID string) (*types.Competition, error)
	GetCompetition(ctx context.Context, id string) (*types.Competition, error)
	PutCompetition(ctx context.Context, competition *types.Competition) error
	GetEntry(ctx context.Context, id string) (*types.CompetitionEntry, error)
	PutEntry(ctx context.Context, entry *types.CompetitionEntry) error
	EntriesByCompetition(ctx context.Context, competitionID string) ([]types.CompetitionEntry, error)
	CountEntriesByAgent(ctx context.Context, competitionID, agentID string) (int, error)
}
