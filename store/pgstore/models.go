// Package pgstore is the gorm.io/gorm + gorm.io/driver/postgres
// implementation of store.Store, grounded on
// services/otc-gateway/server/partners.go's GORM usage: typed model
// structs, google/uuid-friendly string primary keys (the domain
// already assigns its own ids), gorm.io/gorm/clause for upserts and
// row locking, and db.WithContext on every query. WithinTx wraps
// gorm.DB.Transaction, the same mechanism the teacher uses to give a
// compound mutation row-level serialization.
package pgstore

import (
	"encoding/json"

	"saltdig/core/types"
)

// agentModel mirrors types.Agent. EncryptedSigner is already an
// opaque AEAD-sealed blob, so it maps straight onto bytea.
type agentModel struct {
	ID              string `gorm:"primaryKey;size:64"`
	DisplayName     string `gorm:"size:255"`
	APIKeyHash      string `gorm:"size:128;uniqueIndex"`
	Balance         int64
	Reputation      int64
	ChainAddress    string `gorm:"size:42;index"`
	EncryptedSigner []byte `gorm:"type:bytea"`
	CreatedAt       int64
	UpdatedAt       int64
}

func (agentModel) TableName() string { return "agents" }

func toAgentModel(a *types.Agent) *agentModel {
	return &agentModel{
		ID:              a.ID,
		DisplayName:     a.DisplayName,
		APIKeyHash:      a.APIKeyHash,
		Balance:         a.Balance,
		Reputation:      a.Reputation,
		ChainAddress:    a.ChainAddress,
		EncryptedSigner: a.EncryptedSigner,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func (m *agentModel) toDomain() *types.Agent {
	return &types.Agent{
		ID:              m.ID,
		DisplayName:     m.DisplayName,
		APIKeyHash:      m.APIKeyHash,
		Balance:         m.Balance,
		Reputation:      m.Reputation,
		ChainAddress:    m.ChainAddress,
		EncryptedSigner: m.EncryptedSigner,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// ledgerEntryModel mirrors types.LedgerEntry.
type ledgerEntryModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	FromAgentID string `gorm:"size:64;index"`
	ToAgentID   string `gorm:"size:64;index"`
	Amount      int64
	Kind        string `gorm:"size:32;index"`
	Description string `gorm:"size:512"`
	CreatedAt   int64
}

func (ledgerEntryModel) TableName() string { return "ledger_entries" }

func toLedgerEntryModel(e *types.LedgerEntry) *ledgerEntryModel {
	return &ledgerEntryModel{
		ID:          e.ID,
		FromAgentID: e.FromAgentID,
		ToAgentID:   e.ToAgentID,
		Amount:      e.Amount,
		Kind:        e.Kind,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}

func (m *ledgerEntryModel) toDomain() *types.LedgerEntry {
	return &types.LedgerEntry{
		ID:          m.ID,
		FromAgentID: m.FromAgentID,
		ToAgentID:   m.ToAgentID,
		Amount:      m.Amount,
		Kind:        m.Kind,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

// listingModel mirrors types.Listing. Graph is an opaque task DAG the
// store never inspects, so it round-trips through a jsonb column.
type listingModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	PosterID       string `gorm:"size:64;index"`
	Title          string `gorm:"size:255"`
	Description    string `gorm:"type:text"`
	Currency       string `gorm:"size:8"`
	Price          string `gorm:"size:64"`
	Category       string `gorm:"size:64;index"`
	Mode           string `gorm:"size:16;index"`
	Status         string `gorm:"size:16;index"`
	DeliveryTime   string `gorm:"size:64"`
	Graph          []byte `gorm:"type:jsonb"`
	CompletedCount int
	CreatedAt      int64
	UpdatedAt      int64
}

func (listingModel) TableName() string { return "listings" }

func toListingModel(l *types.Listing) (*listingModel, error) {
	var graph []byte
	if l.Graph != nil {
		encoded, err := json.Marshal(l.Graph)
		if err != nil {
			return nil, err
		}
		graph = encoded
	}
	return &listingModel{
		ID:             l.ID,
		PosterID:       l.PosterID,
		Title:          l.Title,
		Description:    l.Description,
		Currency:       string(l.Currency),
		Price:          l.Price,
		Category:       l.Category,
		Mode:           string(l.Mode),
		Status:         string(l.Status),
		DeliveryTime:   l.DeliveryTime,
		Graph:          graph,
		CompletedCount: l.CompletedCount,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}, nil
}

func (m *listingModel) toDomain() (*types.Listing, error) {
	var graph *types.BountyGraph
	if len(m.Graph) > 0 {
		graph = &types.BountyGraph{}
		if err := json.Unmarshal(m.Graph, graph); err != nil {
			return nil, err
		}
	}
	return &types.Listing{
		ID:             m.ID,
		PosterID:       m.PosterID,
		Title:          m.Title,
		Description:    m.Description,
		Currency:       types.Currency(m.Currency),
		Price:          m.Price,
		Category:       m.Category,
		Mode:           types.ListingMode(m.Mode),
		Status:         types.ListingStatus(m.Status),
		DeliveryTime:   m.DeliveryTime,
		Graph:          graph,
		CompletedCount: m.CompletedCount,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

// serviceOrderModel mirrors types.ServiceOrder.
type serviceOrderModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	ListingID string `gorm:"size:64;index"`
	BuyerID   string `gorm:"size:64;index"`
	SellerID  string `gorm:"size:64;index"`
	Price     string `gorm:"size:64"`
	Status    string `gorm:"size:16;index"`
	Request   string `gorm:"type:text"`
	Response  string `gorm:"type:text"`
	CreatedAt int64
	UpdatedAt int64
}

func (serviceOrderModel) TableName() string { return "service_orders" }

func toServiceOrderModel(o *types.ServiceOrder) *serviceOrderModel {
	return &serviceOrderModel{
		ID:        o.ID,
		ListingID: o.ListingID,
		BuyerID:   o.BuyerID,
		SellerID:  o.SellerID,
		Price:     o.Price,
		Status:    string(o.Status),
		Request:   o.Request,
		Response:  o.Response,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func (m *serviceOrderModel) toDomain() *types.ServiceOrder {
	return &types.ServiceOrder{
		ID:        m.ID,
		ListingID: m.ListingID,
		BuyerID:   m.BuyerID,
		SellerID:  m.SellerID,
		Price:     m.Price,
		Status:    types.OrderStatus(m.Status),
		Request:   m.Request,
		Response:  m.Response,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// marketOfferModel mirrors types.MarketOffer.
type marketOfferModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	ListingID string `gorm:"size:64;index"`
	OfferorID string `gorm:"size:64;index"`
	Text      string `gorm:"type:text"`
	Price     string `gorm:"size:64"`
	Status    string `gorm:"size:16;index"`
	CreatedAt int64
	UpdatedAt int64
}

func (marketOfferModel) TableName() string { return "market_offers" }

func toMarketOfferModel(o *types.MarketOffer) *marketOfferModel {
	return &marketOfferModel{
		ID:        o.ID,
		ListingID: o.ListingID,
		OfferorID: o.OfferorID,
		Text:      o.Text,
		Price:     o.Price,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func (m *marketOfferModel) toDomain() *types.MarketOffer {
	return &types.MarketOffer{
		ID:        m.ID,
		ListingID: m.ListingID,
		OfferorID: m.OfferorID,
		Text:      m.Text,
		Price:     m.Price,
		Status:    types.OfferStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// usdcRecordModel mirrors types.USDCTransactionRecord. BountyHash is
// the contract's keccak256(listing id) and is the natural uniqueness
// key for the on-chain shadow record.
type usdcRecordModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	ListingID      string `gorm:"size:64;uniqueIndex"`
	BountyHash     []byte `gorm:"type:bytea;uniqueIndex;size:32"`
	PosterID       string `gorm:"size:64;index"`
	WorkerID       string `gorm:"size:64;index"`
	Amount         string `gorm:"size:64"`
	WorkerStake    string `gorm:"size:64"`
	Status         string `gorm:"size:16;index"`
	LastTxHash     string `gorm:"size:80"`
	SubmittedAt    int64
	LastObservedAt int64
	CompletedAt    int64
	CreatedAt      int64
	UpdatedAt      int64
}

func (usdcRecordModel) TableName() string { return "usdc_transaction_records" }

func toUSDCRecordModel(r *types.USDCTransactionRecord) *usdcRecordModel {
	return &usdcRecordModel{
		ID:             r.ID,
		ListingID:      r.ListingID,
		BountyHash:     append([]byte(nil), r.BountyHash[:]...),
		PosterID:       r.PosterID,
		WorkerID:       r.WorkerID,
		Amount:         r.Amount,
		WorkerStake:    r.WorkerStake,
		Status:         string(r.Status),
		LastTxHash:     r.LastTxHash,
		SubmittedAt:    r.SubmittedAt,
		LastObservedAt: r.LastObservedAt,
		CompletedAt:    r.CompletedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (m *usdcRecordModel) toDomain() *types.USDCTransactionRecord {
	record := &types.USDCTransactionRecord{
		ID:             m.ID,
		ListingID:      m.ListingID,
		PosterID:       m.PosterID,
		WorkerID:       m.WorkerID,
		Amount:         m.Amount,
		WorkerStake:    m.WorkerStake,
		Status:         types.USDCStatus(m.Status),
		LastTxHash:     m.LastTxHash,
		SubmittedAt:    m.SubmittedAt,
		LastObservedAt: m.LastObservedAt,
		CompletedAt:    m.CompletedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	copy(record.BountyHash[:], m.BountyHash)
	return record
}

// milestoneModel mirrors types.Milestone.
type milestoneModel struct {
	ID                 string `gorm:"primaryKey;size:64"`
	ListingID          string `gorm:"size:64;index"`
	Title              string `gorm:"size:255"`
	Description        string `gorm:"type:text"`
	BudgetPercentage   float64
	AcceptanceCriteria string `gorm:"type:text"`
	OrderIndex         int
	Status             string `gorm:"size:16;index"`
	AssigneeID         string `gorm:"size:64;index"`
	CreatedAt          int64
	UpdatedAt          int64
}

func (milestoneModel) TableName() string { return "milestones" }

func toMilestoneModel(m *types.Milestone) *milestoneModel {
	return &milestoneModel{
		ID:                 m.ID,
		ListingID:          m.ListingID,
		Title:              m.Title,
		Description:        m.Description,
		BudgetPercentage:   m.BudgetPercentage,
		AcceptanceCriteria: m.AcceptanceCriteria,
		OrderIndex:         m.OrderIndex,
		Status:             string(m.Status),
		AssigneeID:         m.AssigneeID,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func (m *milestoneModel) toDomain() *types.Milestone {
	return &types.Milestone{
		ID:                 m.ID,
		ListingID:          m.ListingID,
		Title:              m.Title,
		Description:        m.Description,
		BudgetPercentage:   m.BudgetPercentage,
		AcceptanceCriteria: m.AcceptanceCriteria,
		OrderIndex:         m.OrderIndex,
		Status:             types.MilestoneStatus(m.Status),
		AssigneeID:         m.AssigneeID,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// milestoneSubmissionModel mirrors types.MilestoneSubmission.
type milestoneSubmissionModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	MilestoneID string `gorm:"size:64;index"`
	AgentID     string `gorm:"size:64;index"`
	Artifacts   []byte `gorm:"type:jsonb"`
	Status      string `gorm:"size:16;index"`
	Feedback    string `gorm:"type:text"`
	CreatedAt   int64
	UpdatedAt   int64
}

func (milestoneSubmissionModel) TableName() string { return "milestone_submissions" }

func toMilestoneSubmissionModel(s *types.MilestoneSubmission) (*milestoneSubmissionModel, error) {
	artifacts, err := json.Marshal(s.Artifacts)
	if err != nil {
		return nil, err
	}
	return &milestoneSubmissionModel{
		ID:          s.ID,
		MilestoneID: s.MilestoneID,
		AgentID:     s.AgentID,
		Artifacts:   artifacts,
		Status:      string(s.Status),
		Feedback:    s.Feedback,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}, nil
}

func (m *milestoneSubmissionModel) toDomain() (*types.MilestoneSubmission, error) {
	var artifacts []types.Artifact
	if len(m.Artifacts) > 0 {
		if err := json.Unmarshal(m.Artifacts, &artifacts); err != nil {
			return nil, err
		}
	}
	return &types.MilestoneSubmission{
		ID:          m.ID,
		MilestoneID: m.MilestoneID,
		AgentID:     m.AgentID,
		Artifacts:   artifacts,
		Status:      types.SubmissionStatus(m.Status),
		Feedback:    m.Feedback,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

// specDepositModel mirrors types.SpecDeposit.
type specDepositModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	ListingID   string `gorm:"size:64;index"`
	DepositorID string `gorm:"size:64;index"`
	Amount      int64
	Currency    string `gorm:"size:8"`
	Consumed    int64
	Status      string `gorm:"size:16;index"`
	CreatedAt   int64
	UpdatedAt   int64
	FrozenAt    int64
}

func (specDepositModel) TableName() string { return "spec_deposits" }

func toSpecDepositModel(d *types.SpecDeposit) *specDepositModel {
	return &specDepositModel{
		ID:          d.ID,
		ListingID:   d.ListingID,
		DepositorID: d.DepositorID,
		Amount:      d.Amount,
		Currency:    string(d.Currency),
		Consumed:    d.Consumed,
		Status:      string(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		FrozenAt:    d.FrozenAt,
	}
}

func (m *specDepositModel) toDomain() *types.SpecDeposit {
	return &types.SpecDeposit{
		ID:          m.ID,
		ListingID:   m.ListingID,
		DepositorID: m.DepositorID,
		Amount:      m.Amount,
		Currency:    types.Currency(m.Currency),
		Consumed:    m.Consumed,
		Status:      types.DepositStatus(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		FrozenAt:    m.FrozenAt,
	}
}

// changeOrderModel mirrors types.ChangeOrder.
type changeOrderModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	ListingID      string `gorm:"size:64;index"`
	RequesterID    string `gorm:"size:64;index"`
	Description    string `gorm:"type:text"`
	AffectedNodes  []byte `gorm:"type:jsonb"`
	DeltaCost      float64
	DeltaCurrency  string `gorm:"size:8"`
	Status         string `gorm:"size:16;index"`
	LinkedEscrowID string `gorm:"size:64"`
	CreatedAt      int64
	UpdatedAt      int64
	ApprovedAt     int64
}

func (changeOrderModel) TableName() string { return "change_orders" }

func toChangeOrderModel(c *types.ChangeOrder) (*changeOrderModel, error) {
	nodes, err := json.Marshal(c.AffectedNodes)
	if err != nil {
		return nil, err
	}
	return &changeOrderModel{
		ID:             c.ID,
		ListingID:      c.ListingID,
		RequesterID:    c.RequesterID,
		Description:    c.Description,
		AffectedNodes:  nodes,
		DeltaCost:      c.DeltaCost,
		DeltaCurrency:  string(c.DeltaCurrency),
		Status:         string(c.Status),
		LinkedEscrowID: c.LinkedEscrowID,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		ApprovedAt:     c.ApprovedAt,
	}, nil
}

func (m *changeOrderModel) toDomain() (*types.ChangeOrder, error) {
	var nodes []string
	if len(m.AffectedNodes) > 0 {
		if err := json.Unmarshal(m.AffectedNodes, &nodes); err != nil {
			return nil, err
		}
	}
	return &types.ChangeOrder{
		ID:             m.ID,
		ListingID:      m.ListingID,
		RequesterID:    m.RequesterID,
		Description:    m.Description,
		AffectedNodes:  nodes,
		DeltaCost:      m.DeltaCost,
		DeltaCurrency:  types.Currency(m.DeltaCurrency),
		Status:         types.ChangeOrderStatus(m.Status),
		LinkedEscrowID: m.LinkedEscrowID,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		ApprovedAt:     m.ApprovedAt,
	}, nil
}

// competitionModel mirrors types.Competition. Prizes is small and
// evaluator-opaque, so it rides along as jsonb rather than its own
// table.
type competitionModel struct {
	ID                     string `gorm:"primaryKey;size:64"`
	ListingID              string `gorm:"size:64;uniqueIndex"`
	MaxSubmissionsPerAgent int
	EvaluationMethod       string `gorm:"size:16"`
	Distribution           string `gorm:"size:24"`
	Prizes                 []byte `gorm:"type:jsonb"`
	Deadline               int64
	Status                 string `gorm:"size:16;index"`
	WinnerID               string `gorm:"size:64"`
	CreatedAt              int64
	UpdatedAt              int64
}

func (competitionModel) TableName() string { return "competitions" }

func toCompetitionModel(c *types.Competition) (*competitionModel, error) {
	prizes, err := json.Marshal(c.Prizes)
	if err != nil {
		return nil, err
	}
	return &competitionModel{
		ID:                     c.ID,
		ListingID:              c.ListingID,
		MaxSubmissionsPerAgent: c.MaxSubmissionsPerAgent,
		EvaluationMethod:       string(c.EvaluationMethod),
		Distribution:           string(c.Distribution),
		Prizes:                 prizes,
		Deadline:               c.Deadline,
		Status:                 string(c.Status),
		WinnerID:               c.WinnerID,
		CreatedAt:              c.CreatedAt,
		UpdatedAt:              c.UpdatedAt,
	}, nil
}

func (m *competitionModel) toDomain() (*types.Competition, error) {
	var prizes types.PrizeConfig
	if len(m.Prizes) > 0 {
		if err := json.Unmarshal(m.Prizes, &prizes); err != nil {
			return nil, err
		}
	}
	return &types.Competition{
		ID:                     m.ID,
		ListingID:              m.ListingID,
		MaxSubmissionsPerAgent: m.MaxSubmissionsPerAgent,
		EvaluationMethod:       types.EvaluationMethod(m.EvaluationMethod),
		Distribution:           types.PrizeDistribution(m.Distribution),
		Prizes:                 prizes,
		Deadline:               m.Deadline,
		Status:                 types.CompetitionStatus(m.Status),
		WinnerID:               m.WinnerID,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}, nil
}

// competitionEntryModel mirrors types.CompetitionEntry.
type competitionEntryModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	CompetitionID string `gorm:"size:64;index"`
	AgentID       string `gorm:"size:64;index"`
	Artifacts     []byte `gorm:"type:jsonb"`
	Score         *float64
	Rank          *int
	Status        string `gorm:"size:16;index"`
	PrizeAmount   *float64
	Reason        string `gorm:"type:text"`
	SubmittedAt   int64
	CreatedAt     int64
	UpdatedAt     int64
}

func (competitionEntryModel) TableName() string { return "competition_entries" }

func toCompetitionEntryModel(e *types.CompetitionEntry) (*competitionEntryModel, error) {
	artifacts, err := json.Marshal(e.Artifacts)
	if err != nil {
		return nil, err
	}
	return &competitionEntryModel{
		ID:            e.ID,
		CompetitionID: e.CompetitionID,
		AgentID:       e.AgentID,
		Artifacts:     artifacts,
		Score:         e.Score,
		Rank:          e.Rank,
		Status:        string(e.Status),
		PrizeAmount:   e.PrizeAmount,
		Reason:        e.Reason,
		SubmittedAt:   e.SubmittedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}, nil
}

func (m *competitionEntryModel) toDomain() (*types.CompetitionEntry, error) {
	var artifacts []types.Artifact
	if len(m.Artifacts) > 0 {
		if err := json.Unmarshal(m.Artifacts, &artifacts); err != nil {
			return nil, err
		}
	}
	return &types.CompetitionEntry{
		ID:            m.ID,
		CompetitionID: m.CompetitionID,
		AgentID:       m.AgentID,
		Artifacts:     artifacts,
		Score:         m.Score,
		Rank:          m.Rank,
		Status:        types.EntryStatus(m.Status),
		PrizeAmount:   m.PrizeAmount,
		Reason:        m.Reason,
		SubmittedAt:   m.SubmittedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

// allModels lists every table for AutoMigrate, in the order
// models/models.go uses: standalone tables first, then tables that
// reference them.
func allModels() []interface{} {
	return []interface{}{
		&agentModel{},
		&ledgerEntryModel{},
		&listingModel{},
		&serviceOrderModel{},
		&marketOfferModel{},
		&usdcRecordModel{},
		&milestoneModel{},
		&milestoneSubmissionModel{},
		&specDepositModel{},
		&changeOrderModel{},
		&competitionModel{},
		&competitionEntryModel{},
	}
}
