package pgstore

import (
	"context"

	"gorm.io/gorm/clause"

	"saltdig/core/types"
)

// MilestonesByListing returns a listing's milestone plan in order.
func (s *Store) MilestonesByListing(ctx context.Context, listingID string) ([]types.Milestone, error) {
	var rows []milestoneModel
	err := s.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("order_index ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	out := make([]types.Milestone, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

// PutMilestones upserts an entire milestone plan in one statement.
func (s *Store) PutMilestones(ctx context.Context, milestones []types.Milestone) error {
	if len(milestones) == 0 {
		return nil
	}
	rows := make([]*milestoneModel, 0, len(milestones))
	for i := range milestones {
		rows = append(rows, toMilestoneModel(&milestones[i]))
	}
	return translate(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rows).Error)
}

// GetMilestone looks up a milestone by id.
func (s *Store) GetMilestone(ctx context.Context, id string) (*types.Milestone, error) {
	var m milestoneModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return m.toDomain(), nil
}

// PutMilestone upserts a single milestone.
func (s *Store) PutMilestone(ctx context.Context, milestone *types.Milestone) error {
	m := toMilestoneModel(milestone)
	return translate(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(m).Error)
}

// LatestSubmission returns the most recent submission against a
// milestone, the one PutSubmission overwrites next (spec §3: at most
// one submission in a non-terminal state).
func (s *Store) LatestSubmission(ctx context.Context, milestoneID string) (*types.MilestoneSubmission, error) {
	var m milestoneSubmissionModel
	err := s.db.WithContext(ctx).
		Where("milestone_id = ?", milestoneID).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return m.toDomain()
}

// PutSubmission upserts a milestone submission.
func (s *Store) PutSubmission(ctx context.Context, submission *types.MilestoneSubmission) error {
	m, err := toMilestoneSubmissionModel(submission)
	if err != nil {
		return err
	}
	return translate(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(m).Error)
}
