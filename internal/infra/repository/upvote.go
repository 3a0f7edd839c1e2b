package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/givestation/youbuidl-sync/internal/infra/database/models"
)

type UpvoteRepository struct {
	db *gorm.DB
}

func NewUpvoteRepository(db *gorm.DB) *UpvoteRepository {
	return &UpvoteRepository{db: db}
}

// Upvote inserts the membership row. The second return reports whether the
// row is new; an existing row makes the call an idempotent no-op.
func (r *UpvoteRepository) Upvote(ctx context.Context, entityID string, userAddress string) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&models.DomainUpvote{
		EntityID:    entityID,
		UserAddress: userAddress,
		CDate:       time.Now().UTC(),
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *UpvoteRepository) Remove(ctx context.Context, entityID string, userAddress string) (bool, error) {
	result := r.db.WithContext(ctx).
		Delete(&models.DomainUpvote{}, "entity_id = ? AND user_address = ?", entityID, userAddress)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *UpvoteRepository) Count(ctx context.Context, entityID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DomainUpvote{}).
		Where("entity_id = ?", entityID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *UpvoteRepository) Has(ctx context.Context, entityID string, userAddress string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DomainUpvote{}).
		Where("entity_id = ? AND user_address = ?", entityID, userAddress).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
