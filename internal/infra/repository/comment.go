package repository

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/givestation/youbuidl-sync/internal/domain"
	"github.com/givestation/youbuidl-sync/internal/infra/database/models"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) List(ctx context.Context, entityID string) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("c_date asc").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *CommentRepository) Get(ctx context.Context, id string) (models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).Take(&comment, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return models.Comment{}, domain.NotFoundError{Resource: "comment"}
		}
		return models.Comment{}, err
	}
	return comment, nil
}

func (r *CommentRepository) Create(ctx context.Context, comment models.Comment) (models.Comment, error) {
	comment.ID = strings.ToLower(ulid.Make().String())
	comment.CDate = time.Now().UTC()

	err := r.db.WithContext(ctx).Create(&comment).Error
	if err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.Comment{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "comment"}
	}
	return nil
}

// Like records one like per user per comment and keeps the denormalized
// counter in step. Re-liking an already liked comment leaves the counter
// untouched and just reports the current value.
func (r *CommentRepository) Like(ctx context.Context, commentID string, userAddress string) (models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&comment, "id = ?", commentID).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.NotFoundError{Resource: "comment"}
			}
			return err
		}

		result := tx.Clauses(clause.OnConflict{
			DoNothing: true,
		}).Create(&models.CommentLike{
			CommentID:   commentID,
			UserAddress: userAddress,
			CDate:       time.Now().UTC(),
		})
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected > 0 {
			err = tx.Model(&models.Comment{}).
				Where("id = ?", commentID).
				Update("likes_count", gorm.Expr("likes_count + 1")).Error
			if err != nil {
				return err
			}
			comment.LikesCount++
		}
		return nil
	})
	if err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (r *CommentRepository) Unlike(ctx context.Context, commentID string, userAddress string) (models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&comment, "id = ?", commentID).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return domain.NotFoundError{Resource: "comment"}
			}
			return err
		}

		result := tx.Delete(&models.CommentLike{}, "comment_id = ? AND user_address = ?", commentID, userAddress)
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected > 0 && comment.LikesCount > 0 {
			err = tx.Model(&models.Comment{}).
				Where("id = ?", commentID).
				Update("likes_count", gorm.Expr("likes_count - 1")).Error
			if err != nil {
				return err
			}
			comment.LikesCount--
		}
		return nil
	})
	if err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (r *CommentRepository) LikedIDs(ctx context.Context, entityID string, userAddress string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.CommentLike{}).
		Joins("JOIN comments ON comments.id = comment_likes.comment_id").
		Where("comments.entity_id = ? AND comment_likes.user_address = ?", entityID, userAddress).
		Pluck("comment_likes.comment_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
