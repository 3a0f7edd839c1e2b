package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/givestation/youbuidl-sync/internal/domain"
	"github.com/givestation/youbuidl-sync/internal/infra/database/models"

	youbuidl "github.com/givestation/youbuidl-sync"
)

const maxCommentLength = 4000

type CommentUsecase struct {
	repo      CommentRepository
	publisher Publisher
	sanitizer *bluemonday.Policy
}

func NewCommentUsecase(repo CommentRepository, publisher Publisher) *CommentUsecase {
	return &CommentUsecase{
		repo:      repo,
		publisher: publisher,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func toComment(m models.Comment) youbuidl.Comment {
	parentID := ""
	if m.ParentID != nil {
		parentID = *m.ParentID
	}
	return youbuidl.Comment{
		ID:        m.ID,
		EntityID:  m.EntityID,
		ParentID:  parentID,
		Author:    youbuidl.Author{Address: m.AuthorAddress},
		Content:   m.Content,
		Timestamp: m.CDate.UnixMilli(),
		LikeCount: m.LikesCount,
	}
}

// List assembles the one-level comment tree for an entity. Top-level comments
// come newest first, replies under each parent oldest first. Replies whose
// parent row is missing are dropped.
func (uc *CommentUsecase) List(ctx context.Context, entityID string) ([]youbuidl.Comment, error) {
	rows, err := uc.repo.List(ctx, entityID)
	if err != nil {
		return nil, err
	}

	replies := make(map[string][]youbuidl.Comment)
	var tops []youbuidl.Comment
	for _, row := range rows {
		if row.ParentID == nil {
			tops = append(tops, toComment(row))
			continue
		}
		replies[*row.ParentID] = append(replies[*row.ParentID], toComment(row))
	}

	sort.SliceStable(tops, func(i, j int) bool {
		return tops[i].Timestamp > tops[j].Timestamp
	})
	for i := range tops {
		tops[i].Replies = replies[tops[i].ID]
	}

	return tops, nil
}

func (uc *CommentUsecase) Create(ctx context.Context, viewer, entityID, parentID, content string) (youbuidl.Comment, error) {
	content = strings.TrimSpace(uc.sanitizer.Sanitize(content))
	if content == "" {
		return youbuidl.Comment{}, fmt.Errorf("comment content must not be empty")
	}
	if len(content) > maxCommentLength {
		return youbuidl.Comment{}, fmt.Errorf("comment content too long")
	}

	row := models.Comment{
		EntityID:      entityID,
		AuthorAddress: viewer,
		Content:       content,
	}

	if parentID != "" {
		parent, err := uc.repo.Get(ctx, parentID)
		if err != nil {
			return youbuidl.Comment{}, err
		}
		if parent.ParentID != nil {
			return youbuidl.Comment{}, fmt.Errorf("replies nest one level only")
		}
		if parent.EntityID != entityID {
			return youbuidl.Comment{}, fmt.Errorf("parent comment belongs to another entity")
		}
		row.ParentID = &parentID
	}

	created, err := uc.repo.Create(ctx, row)
	if err != nil {
		return youbuidl.Comment{}, err
	}

	result := toComment(created)
	uc.publish(ctx, youbuidl.Event{
		Kind:     youbuidl.EventInsert,
		Table:    youbuidl.TableComments,
		EntityID: entityID,
		Comment:  &result,
	})
	return result, nil
}

func (uc *CommentUsecase) Delete(ctx context.Context, viewer, commentID string) error {
	comment, err := uc.repo.Get(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.AuthorAddress != viewer {
		return domain.PermissionError{Reason: "only the author can delete a comment"}
	}

	err = uc.repo.Delete(ctx, commentID)
	if err != nil {
		return err
	}

	removed := toComment(comment)
	uc.publish(ctx, youbuidl.Event{
		Kind:     youbuidl.EventDelete,
		Table:    youbuidl.TableComments,
		EntityID: comment.EntityID,
		Comment:  &removed,
	})
	return nil
}

func (uc *CommentUsecase) Like(ctx context.Context, viewer, commentID string) (int, error) {
	updated, err := uc.repo.Like(ctx, commentID, viewer)
	if err != nil {
		return 0, err
	}

	patched := toComment(updated)
	uc.publish(ctx, youbuidl.Event{
		Kind:     youbuidl.EventUpdate,
		Table:    youbuidl.TableComments,
		EntityID: updated.EntityID,
		Comment:  &patched,
	})
	return updated.LikesCount, nil
}

func (uc *CommentUsecase) Unlike(ctx context.Context, viewer, commentID string) (int, error) {
	updated, err := uc.repo.Unlike(ctx, commentID, viewer)
	if err != nil {
		return 0, err
	}

	patched := toComment(updated)
	uc.publish(ctx, youbuidl.Event{
		Kind:     youbuidl.EventUpdate,
		Table:    youbuidl.TableComments,
		EntityID: updated.EntityID,
		Comment:  &patched,
	})
	return updated.LikesCount, nil
}

func (uc *CommentUsecase) LikedIDs(ctx context.Context, viewer, entityID string) ([]string, error) {
	if viewer == "" {
		return []string{}, nil
	}
	ids, err := uc.repo.LikedIDs(ctx, entityID, viewer)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// publish is best-effort. A lost event only delays convergence until the next
// full load, so failures are logged and swallowed.
func (uc *CommentUsecase) publish(ctx context.Context, event youbuidl.Event) {
	if err := uc.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "failed to publish change event",
			slog.String("error", err.Error()),
			slog.String("table", event.Table),
			slog.String("module", "usecase"),
		)
	}
}
