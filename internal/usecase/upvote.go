package usecase

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/bradfitz/gomemcache/memcache"

	youbuidl "github.com/givestation/youbuidl-sync"
)

const upvoteCountTTL = 30 // seconds

type UpvoteUsecase struct {
	repo      UpvoteRepository
	publisher Publisher
	mc        *memcache.Client
}

// NewUpvoteUsecase wires the upvote store. mc may be nil, which disables
// count caching.
func NewUpvoteUsecase(repo UpvoteRepository, publisher Publisher, mc *memcache.Client) *UpvoteUsecase {
	return &UpvoteUsecase{
		repo:      repo,
		publisher: publisher,
		mc:        mc,
	}
}

func countCacheKey(entityID string) string {
	return "upvoteCount:" + entityID
}

func (uc *UpvoteUsecase) count(ctx context.Context, entityID string) (int64, error) {
	if uc.mc != nil {
		item, err := uc.mc.Get(countCacheKey(entityID))
		if err == nil {
			count, err := strconv.ParseInt(string(item.Value), 10, 64)
			if err == nil {
				return count, nil
			}
		}
	}

	count, err := uc.repo.Count(ctx, entityID)
	if err != nil {
		return 0, err
	}

	if uc.mc != nil {
		err := uc.mc.Set(&memcache.Item{
			Key:        countCacheKey(entityID),
			Value:      []byte(strconv.FormatInt(count, 10)),
			Expiration: upvoteCountTTL,
		})
		if err != nil {
			slog.DebugContext(ctx, "failed to cache upvote count",
				slog.String("error", err.Error()),
				slog.String("module", "usecase"),
			)
		}
	}
	return count, nil
}

func (uc *UpvoteUsecase) invalidate(entityID string) {
	if uc.mc != nil {
		uc.mc.Delete(countCacheKey(entityID))
	}
}

// State returns the aggregate view for one entity. viewer may be empty, in
// which case ViewerHasUpvoted is always false.
func (uc *UpvoteUsecase) State(ctx context.Context, viewer, entityID string) (youbuidl.UpvoteState, error) {
	count, err := uc.count(ctx, entityID)
	if err != nil {
		return youbuidl.UpvoteState{}, err
	}

	state := youbuidl.UpvoteState{Count: int(count)}
	if viewer != "" {
		has, err := uc.repo.Has(ctx, entityID, viewer)
		if err != nil {
			return youbuidl.UpvoteState{}, err
		}
		state.ViewerHasUpvoted = has
	}
	return state, nil
}

// Upvote is idempotent. Only a genuinely new row invalidates the cached count
// and produces a change event.
func (uc *UpvoteUsecase) Upvote(ctx context.Context, viewer, entityID string) (youbuidl.UpvoteState, error) {
	inserted, err := uc.repo.Upvote(ctx, entityID, viewer)
	if err != nil {
		return youbuidl.UpvoteState{}, err
	}

	if inserted {
		uc.invalidate(entityID)
		uc.publish(ctx, youbuidl.Event{
			Kind:     youbuidl.EventInsert,
			Table:    youbuidl.TableDomainUpvotes,
			EntityID: entityID,
			Upvote:   &youbuidl.UpvoteRow{EntityID: entityID, UserAddress: viewer},
		})
	}
	return uc.State(ctx, viewer, entityID)
}

func (uc *UpvoteUsecase) Remove(ctx context.Context, viewer, entityID string) (youbuidl.UpvoteState, error) {
	deleted, err := uc.repo.Remove(ctx, entityID, viewer)
	if err != nil {
		return youbuidl.UpvoteState{}, err
	}

	if deleted {
		uc.invalidate(entityID)
		uc.publish(ctx, youbuidl.Event{
			Kind:     youbuidl.EventDelete,
			Table:    youbuidl.TableDomainUpvotes,
			EntityID: entityID,
			Upvote:   &youbuidl.UpvoteRow{EntityID: entityID, UserAddress: viewer},
		})
	}
	return uc.State(ctx, viewer, entityID)
}

func (uc *UpvoteUsecase) publish(ctx context.Context, event youbuidl.Event) {
	if err := uc.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "failed to publish change event",
			slog.String("error", err.Error()),
			slog.String("table", event.Table),
			slog.String("module", "usecase"),
		)
	}
}
