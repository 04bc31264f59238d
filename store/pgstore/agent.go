package pgstore

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"saltdig/core/types"
	"saltdig/store"
)

// GetAgent looks up an agent by id.
func (s *Store) GetAgent(ctx context.Context, id string) (*types.Agent, error) {
	var m agentModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

// PutAgent upserts an agent record.
func (s *Store) PutAgent(ctx context.Context, agent *types.Agent) error {
	m := toAgentModel(agent)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(m).Error
	return translate(err)
}

// AdjustBalance applies delta to the agent's balance under a row lock
// so concurrent transfers serialize per spec §5, rejecting the change
// with store.ErrConflict if it would drive the balance negative.
func (s *Store) AdjustBalance(ctx context.Context, agentID string, delta int64) (int64, error) {
	var newBalance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m agentModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ?", agentID).Error; err != nil {
			return translate(err)
		}
		if m.Balance+delta < 0 {
			return store.ErrConflict
		}
		m.Balance += delta
		newBalance = m.Balance
		return tx.Save(&m).Error
	})
	return newBalance, err
}

// RichList returns the limit highest-balance agents.
func (s *Store) RichList(ctx context.Context, limit int) ([]types.Agent, error) {
	var rows []agentModel
	if err := s.db.WithContext(ctx).Order("balance DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]types.Agent, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}
