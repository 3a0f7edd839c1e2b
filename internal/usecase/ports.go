package usecase

import (
	"context"

	"github.com/givestation/youbuidl-sync/internal/infra/database/models"

	youbuidl "github.com/givestation/youbuidl-sync"
)

// CommentRepository defines storage operations for comments and likes.
type CommentRepository interface {
	List(ctx context.Context, entityID string) ([]models.Comment, error)
	Get(ctx context.Context, id string) (models.Comment, error)
	Create(ctx context.Context, comment models.Comment) (models.Comment, error)
	Delete(ctx context.Context, id string) error
	Like(ctx context.Context, commentID string, userAddress string) (models.Comment, error)
	Unlike(ctx context.Context, commentID string, userAddress string) (models.Comment, error)
	LikedIDs(ctx context.Context, entityID string, userAddress string) ([]string, error)
}

// UpvoteRepository defines storage operations for entity upvotes.
type UpvoteRepository interface {
	Upvote(ctx context.Context, entityID string, userAddress string) (bool, error)
	Remove(ctx context.Context, entityID string, userAddress string) (bool, error)
	Count(ctx context.Context, entityID string) (int64, error)
	Has(ctx context.Context, entityID string, userAddress string) (bool, error)
}

// Publisher broadcasts a change event to whoever is watching the entity.
type Publisher interface {
	Publish(ctx context.Context, event youbuidl.Event) error
}
