package pgstore

import (
	"context"

	"saltdig/core/types"
)

// AppendLedgerEntry inserts one journal row. Entries are append-only,
// so no conflict clause is needed.
func (s *Store) AppendLedgerEntry(ctx context.Context, entry *types.LedgerEntry) error {
	m := toLedgerEntryModel(entry)
	return translate(s.db.WithContext(ctx).Create(m).Error)
}

// LedgerHistory returns the most recent entries touching agentID,
// newest first.
func (s *Store) LedgerHistory(ctx context.Context, agentID string, limit int) ([]types.LedgerEntry, error) {
	var rows []ledgerEntryModel
	err := s.db.WithContext(ctx).
		Where("from_agent_id = ? OR to_agent_id = ?", agentID, agentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]types.LedgerEntry, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}
