package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/givestation/youbuidl-sync/internal/domain"
	"github.com/givestation/youbuidl-sync/internal/present/rest/presenter"
	"github.com/givestation/youbuidl-sync/internal/service"
	"github.com/givestation/youbuidl-sync/internal/usecase"

	youbuidl "github.com/givestation/youbuidl-sync"
)

// SignalStream pumps change events for dynamically selected entities into
// output until ctx is cancelled. service.SignalService is the production
// implementation.
type SignalStream interface {
	Realtime(ctx context.Context, input chan []string, output chan youbuidl.Event)
}

var _ SignalStream = (*service.SignalService)(nil)

type Handler struct {
	comment *usecase.CommentUsecase
	upvote  *usecase.UpvoteUsecase
	signal  SignalStream
}

func NewHandler(
	comment *usecase.CommentUsecase,
	upvote *usecase.UpvoteUsecase,
	signal SignalStream,
) *Handler {
	return &Handler{
		comment: comment,
		upvote:  upvote,
		signal:  signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/comments", h.handleListComments)
	e.POST("/api/v1/comments", h.handleCreateComment)
	e.DELETE("/api/v1/comments/:id", h.handleDeleteComment)
	e.POST("/api/v1/comments/:id/like", h.handleLikeComment)
	e.DELETE("/api/v1/comments/:id/like", h.handleUnlikeComment)
	e.GET("/api/v1/comments/liked", h.handleLikedComments)
	e.GET("/api/v1/upvotes/:entity", h.handleUpvoteState)
	e.POST("/api/v1/upvotes/:entity", h.handleUpvote)
	e.DELETE("/api/v1/upvotes/:entity", h.handleRemoveUpvote)
	e.GET("/realtime", h.handleRealtime)
}

func viewer(c echo.Context) string {
	addr, _ := c.Request().Context().Value(domain.ViewerAddressCtxKey).(string)
	return addr
}

func (h *Handler) handleListComments(c echo.Context) error {
	ctx := c.Request().Context()

	entityID := c.QueryParam("entity")
	if entityID == "" {
		return presenter.BadRequestMessage(c, "entity parameter is required")
	}

	comments, err := h.comment.List(ctx, entityID)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	if comments == nil {
		comments = []youbuidl.Comment{}
	}
	return presenter.OK(c, comments)
}

type createCommentRequest struct {
	EntityID string `json:"entityId"`
	ParentID string `json:"parentId"`
	Content  string `json:"content"`
}

func (h *Handler) handleCreateComment(c echo.Context) error {
	ctx := c.Request().Context()

	addr := viewer(c)
	if addr == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	var req createCommentRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.EntityID == "" {
		return presenter.BadRequestMessage(c, "entityId is required")
	}

	created, err := h.comment.Create(ctx, addr, req.EntityID, req.ParentID, req.Content)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return presenter.NotFound(c, "parent comment not found")
		}
		return presenter.BadRequest(c, err)
	}
	return presenter.Created(c, created)
}

func (h *Handler) handleDeleteComment(c echo.Context) error {
	ctx := c.Request().Context()

	addr := viewer(c)
	if addr == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	err := h.comment.Delete(ctx, addr, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return presenter.NotFound(c, "comment not found")
		}
		if errors.Is(err, domain.ErrPermissionDenied) {
			return presenter.Forbidden(c, err.Error())
		}
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, echo.Map{"status": "ok"})
}

type likeCountResponse struct {
	LikeCount int `json:"likeCount"`
}

func (h *Handler) handleLikeComment(c echo.Context) error {
	ctx := c.Request().Context()

	addr := viewer(c)
	if addr == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	count, err := h.comment.Like(ctx, addr, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return presenter.NotFound(c, "comment not found")
		}
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, likeCountResponse{LikeCount: count})
}

func (h *Handler) handleUnlikeComment(c echo.Context) error {
	ctx := c.Request().Context()

	addr := viewer(c)
	if addr == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	count, err := h.comment.Unlike(ctx, addr, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return presenter.NotFound(c, "comment not found")
		}
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, likeCountResponse{LikeCount: count})
}

type likedIDsResponse struct {
	IDs []string `json:"ids"`
}

func (h *Handler) handleLikedComments(c echo.Context) error {
	ctx := c.Request().Context()

	entityID := c.QueryParam("entity")
	if entityID == "" {
		return presenter.BadRequestMessage(c, "entity parameter is required")
	}

	ids, err := h.comment.LikedIDs(ctx, viewer(c), entityID)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, likedIDsResponse{IDs: ids})
}

func (h *Handler) handleUpvoteState(c echo.Context) error {
	ctx := c.Request().Context()

	state, err := h.upvote.State(ctx, viewer(c), c.Param("entity"))
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, state)
}

func (h *Handler) handleUpvote(c echo.Context) error {
	ctx := c.Request().Context()

	addr := viewer(c)
	if addr == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	state, err := h.upvote.Upvote(ctx, addr, c.Param("entity"))
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, state)
}

func (h *Handler) handleRemoveUpvote(c echo.Context) error {
	ctx := c.Request().Context()

	addr := viewer(c)
	if addr == "" {
		return presenter.Unauthorized(c, "authentication required")
	}

	state, err := h.upvote.Remove(ctx, addr, c.Param("entity"))
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, state)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type     string   `json:"type"`
	Entities []string `json:"entities"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	// The channels are never closed; the pump exits through ctx alone, so a
	// send that is in flight when the socket drops cannot hit a closed
	// channel.
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string)
	output := make(chan youbuidl.Event)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {

				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}

				return
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Entities:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Entities),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event := <-output:
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
