package interactions

import (
	"context"

	youbuidl "github.com/givestation/youbuidl-sync"
)

// RemoteStore defines the request/response operations the store needs from
// the backing service. The client package provides the HTTP implementation.
type RemoteStore interface {
	ListComments(ctx context.Context, entityID string) ([]youbuidl.Comment, error)
	CreateComment(ctx context.Context, entityID, parentID, content string) (youbuidl.Comment, error)
	LikeComment(ctx context.Context, commentID string) (int, error)
	UnlikeComment(ctx context.Context, commentID string) (int, error)
	LikedCommentIDs(ctx context.Context, entityID string) ([]string, error)
	UpvoteState(ctx context.Context, entityID string) (youbuidl.UpvoteState, error)
	Upvote(ctx context.Context, entityID string) error
	RemoveUpvote(ctx context.Context, entityID string) error
}

// Feed delivers row-level change events for one entity. Subscribe returns a
// release function that closes the underlying subscription; the handler must
// not be called after release returns.
type Feed interface {
	Subscribe(ctx context.Context, entityID string, handler func(youbuidl.Event)) (func(), error)
}

// Identity exposes the current viewer's account address. An empty string
// means unauthenticated.
type Identity interface {
	Address() string
}

// IdentityFunc adapts a plain function to the Identity interface.
type IdentityFunc func() string

func (f IdentityFunc) Address() string { return f() }

// NotifyKind classifies a user-facing notification.
type NotifyKind string

const (
	NotifySuccess       NotifyKind = "success"
	NotifyError         NotifyKind = "error"
	NotifyConnectWallet NotifyKind = "connect-wallet"
)

// Notifier receives fire-and-forget user-facing notifications. Failures of
// the store never propagate to callers; they surface here.
type Notifier interface {
	Notify(kind NotifyKind, message string)
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(kind NotifyKind, message string)

func (f NotifierFunc) Notify(kind NotifyKind, message string) { f(kind, message) }
