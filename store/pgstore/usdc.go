package pgstore

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"saltdig/core/types"
)

// GetUSDCRecord looks up a USDC shadow record by id.
func (s *Store) GetUSDCRecord(ctx context.Context, id string) (*types.USDCTransactionRecord, error) {
	var m usdcRecordModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

// GetUSDCRecordByHash looks up a record by its bounty hash.
func (s *Store) GetUSDCRecordByHash(ctx context.Context, hash [32]byte) (*types.USDCTransactionRecord, error) {
	var m usdcRecordModel
	if err := s.db.WithContext(ctx).First(&m, "bounty_hash = ?", hash[:]).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

// GetUSDCRecordByListing looks up a record by listing id.
func (s *Store) GetUSDCRecordByListing(ctx context.Context, listingID string) (*types.USDCTransactionRecord, error) {
	var m usdcRecordModel
	if err := s.db.WithContext(ctx).First(&m, "listing_id = ?", listingID).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

// PutUSDCRecord upserts a USDC shadow record.
func (s *Store) PutUSDCRecord(ctx context.Context, record *types.USDCTransactionRecord) error {
	m := toUSDCRecordModel(record)
	return translate(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(m).Error)
}

// SubmittedUSDCRecords returns every record sitting in the submitted
// state since before the given time, the reconciler's candidate set
// for auto-release (spec §4.G).
func (s *Store) SubmittedUSDCRecords(ctx context.Context, before time.Time) ([]types.USDCTransactionRecord, error) {
	var rows []usdcRecordModel
	err := s.db.WithContext(ctx).
		Where("status = ? AND submitted_at < ?", string(types.USDCSubmitted), before.Unix()).
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]types.USDCTransactionRecord, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}
