package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	youbuidl "github.com/givestation/youbuidl-sync"
)

type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, event youbuidl.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, youbuidl.EntityChannel(event.EntityID), jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Realtime pumps change events for dynamically selected entities into output.
// Each value received on input replaces the previous entity selection. The
// pump exits only through ctx cancellation; neither channel is ever closed.
func (s *SignalService) Realtime(ctx context.Context, input chan []string, output chan youbuidl.Event) {

	pubsub := s.rdb.Subscribe(ctx)
	defer pubsub.Close()

	var subscribed []string

	for {
		select {
		case <-ctx.Done():
			return
		case entities := <-input:

			if len(subscribed) > 0 {
				if err := pubsub.Unsubscribe(ctx, subscribed...); err != nil {
					slog.ErrorContext(ctx, "failed to unsubscribe",
						slog.String("error", err.Error()),
						slog.String("module", "signal"),
					)
				}
			}

			subscribed = subscribed[:0]
			for _, entityID := range entities {
				subscribed = append(subscribed, youbuidl.EntityChannel(entityID))
			}

			if len(subscribed) > 0 {
				if err := pubsub.Subscribe(ctx, subscribed...); err != nil {
					slog.ErrorContext(ctx, "failed to subscribe",
						slog.String("error", err.Error()),
						slog.String("module", "signal"),
					)
				}
			}
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}

			var event youbuidl.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.ErrorContext(ctx, "failed to decode change event",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
				continue
			}

			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
