package client

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	youbuidl "github.com/givestation/youbuidl-sync"
	"github.com/givestation/youbuidl-sync/interactions"
)

const heartbeatInterval = 30 * time.Second

// FeedClient subscribes to a youbuidld node's realtime websocket. Each
// Subscribe call opens its own socket scoped to one entity; the interactions
// store already reference-counts observers per entity, so at most one socket
// per observed entity exists.
type FeedClient struct {
	endpoint string
	dialer   *websocket.Dialer
	log      *slog.Logger
}

func NewFeedClient(base string, log *slog.Logger) *FeedClient {
	if log == nil {
		log = slog.Default()
	}
	return &FeedClient{
		endpoint: wsEndpoint(base),
		dialer:   websocket.DefaultDialer,
		log:      log,
	}
}

func wsEndpoint(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "/realtime"
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/realtime"
	return u.String()
}

type listenRequest struct {
	Type     string   `json:"type"`
	Entities []string `json:"entities,omitempty"`
}

func (f *FeedClient) Subscribe(ctx context.Context, entityID string, handler func(youbuidl.Event)) (func(), error) {
	conn, _, err := f.dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(listenRequest{Type: "listen", Entities: []string{entityID}}); err != nil {
		conn.Close()
		return nil, err
	}

	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteJSON(listenRequest{Type: "h"}); err != nil {
					return
				}
			}
		}
	}()

	go func() {
		for {
			var ev youbuidl.Event
			if err := conn.ReadJSON(&ev); err != nil {
				select {
				case <-done:
					// released; nothing to report
				default:
					f.log.Warn("feed read failed",
						slog.String("entity", entityID),
						slog.String("error", err.Error()),
						slog.String("module", "feed"),
					)
				}
				return
			}
			if ev.EntityID == entityID {
				handler(ev)
			}
		}
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(done)
			conn.Close()
		})
	}
	return release, nil
}

var _ interactions.Feed = (*FeedClient)(nil)
