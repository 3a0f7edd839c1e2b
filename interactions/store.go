// Package interactions implements the client-side synchronization layer for
// per-entity social state: comment trees, like counts and upvote membership,
// kept consistent with the backing store through optimistic mutations and a
// row-level change feed.
//
// The Store is constructed explicitly and passed by reference; there is no
// package-level instance. All mutations go through either the optimistic
// engine (engine.go) or the change-feed reconciler (reconciler.go); cache
// state is replaced whole-value so snapshots handed to readers never change
// under them.
package interactions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	youbuidl "github.com/givestation/youbuidl-sync"
)

const (
	// DefaultRemoteTimeout bounds every remote call. A call that exceeds it
	// is treated exactly like a remote failure: rollback, notify, release
	// the pending key.
	DefaultRemoteTimeout = 10 * time.Second

	// DefaultCacheBound caps how many entities without an active observer
	// keep cached state. Observed entities are never evicted.
	DefaultCacheBound = 256
)

// entityState is the cached view of one entity. Guarded by Store.mu.
type entityState struct {
	comments       []youbuidl.Comment
	commentsLoaded bool
	upvotes        youbuidl.UpvoteState
	upvotesLoaded  bool
	observers      int
	unsubscribe    func()
}

// Options tune a Store. Zero values select the defaults.
type Options struct {
	RemoteTimeout time.Duration
	CacheBound    int
	Logger        *slog.Logger
}

// Store holds per-entity social state and keeps it consistent with the
// backing store.
type Store struct {
	remote   RemoteStore
	feed     Feed
	identity Identity
	notify   Notifier
	timeout  time.Duration
	log      *slog.Logger

	mu       sync.Mutex
	entities map[string]*entityState
	// idle orders zero-observer entities for eviction. Entities with at
	// least one observer are removed from idle and therefore never evicted.
	idle    *lru.Cache[string, struct{}]
	pending *Guard
	// fingerprints counts in-flight optimistic comment inserts so the
	// reconciler can suppress the feed echo of the viewer's own insert.
	fingerprints map[uint64]int
}

// New constructs a Store around the given collaborators.
func New(remote RemoteStore, feed Feed, identity Identity, notify Notifier, opts Options) *Store {
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = DefaultRemoteTimeout
	}
	if opts.CacheBound <= 0 {
		opts.CacheBound = DefaultCacheBound
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Store{
		remote:       remote,
		feed:         feed,
		identity:     identity,
		notify:       notify,
		timeout:      opts.RemoteTimeout,
		log:          opts.Logger,
		entities:     make(map[string]*entityState),
		pending:      NewGuard(),
		fingerprints: make(map[uint64]int),
	}
	// The eviction callback runs inside Add/Remove calls, which only happen
	// while s.mu is held, so it may touch s.entities directly.
	idle, _ := lru.NewWithEvict(opts.CacheBound, func(entityID string, _ struct{}) {
		delete(s.entities, entityID)
	})
	s.idle = idle
	return s
}

// entity returns the state for entityID, creating it lazily. Caller holds mu.
func (s *Store) entity(entityID string) *entityState {
	st, ok := s.entities[entityID]
	if !ok {
		st = &entityState{}
		s.entities[entityID] = st
		s.idle.Add(entityID, struct{}{})
	} else if st.observers == 0 {
		s.idle.Get(entityID) // refresh recency
	}
	return st
}

// Comments returns the current comment snapshot for entityID. It never fails;
// an unknown entity yields nil.
func (s *Store) Comments(entityID string) []youbuidl.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entities[entityID]
	if !ok {
		return nil
	}
	return st.comments
}

// UpvoteStateOf returns the cached upvote view for entityID.
func (s *Store) UpvoteStateOf(entityID string) youbuidl.UpvoteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entities[entityID]
	if !ok {
		return youbuidl.UpvoteState{}
	}
	return st.upvotes
}

// Pending reports whether the given action key is in flight. Exposed so views
// can disable controls while an action settles.
func (s *Store) Pending(key string) bool {
	return s.pending.Pending(key)
}

// LoadComments fetches the full comment tree for entityID and replaces the
// cached list. On failure the previous cache state is kept and the failure is
// surfaced through the notifier.
func (s *Store) LoadComments(ctx context.Context, entityID string) {
	key := "loadComments:" + entityID
	if !s.pending.Begin(key) {
		return
	}
	defer s.pending.End(key)

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	comments, err := s.remote.ListComments(rctx, entityID)
	if err != nil {
		s.log.Error("comment load failed",
			slog.String("entity", entityID),
			slog.String("error", err.Error()),
			slog.String("module", "interactions"),
		)
		s.notify.Notify(NotifyError, "failed to load comments")
		return
	}

	liked := make(map[string]struct{})
	if s.identity.Address() != "" {
		ids, err := s.remote.LikedCommentIDs(rctx, entityID)
		if err != nil {
			// Like membership is decoration; the tree is still usable.
			s.log.Warn("liked-comment lookup failed",
				slog.String("entity", entityID),
				slog.String("error", err.Error()),
				slog.String("module", "interactions"),
			)
		}
		for _, id := range ids {
			liked[id] = struct{}{}
		}
	}
	for i := range comments {
		if _, ok := liked[comments[i].ID]; ok {
			comments[i].ViewerHasLiked = true
		}
		for j := range comments[i].Replies {
			if _, ok := liked[comments[i].Replies[j].ID]; ok {
				comments[i].Replies[j].ViewerHasLiked = true
			}
		}
	}

	s.mu.Lock()
	st := s.entity(entityID)
	st.comments = comments
	st.commentsLoaded = true
	s.mu.Unlock()
}

// LoadUpvotes fetches the authoritative upvote state for entityID.
func (s *Store) LoadUpvotes(ctx context.Context, entityID string) {
	key := "loadUpvotes:" + entityID
	if !s.pending.Begin(key) {
		return
	}
	defer s.pending.End(key)

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	state, err := s.remote.UpvoteState(rctx, entityID)
	if err != nil {
		s.log.Error("upvote load failed",
			slog.String("entity", entityID),
			slog.String("error", err.Error()),
			slog.String("module", "interactions"),
		)
		s.notify.Notify(NotifyError, "failed to load upvotes")
		return
	}

	s.mu.Lock()
	st := s.entity(entityID)
	st.upvotes = state
	st.upvotesLoaded = true
	s.mu.Unlock()
}

// Observe registers a view on entityID and returns a release function. The
// first observer opens the change-feed subscription; the last release closes
// it and makes the entity's cache entry evictable again. Release is
// idempotent.
func (s *Store) Observe(ctx context.Context, entityID string) (func(), error) {
	s.mu.Lock()
	st := s.entity(entityID)
	st.observers++
	first := st.observers == 1
	if first {
		s.idle.Remove(entityID)
	}
	s.mu.Unlock()

	if first {
		unsubscribe, err := s.feed.Subscribe(ctx, entityID, s.apply)
		if err != nil {
			s.mu.Lock()
			st.observers--
			if st.observers == 0 {
				s.idle.Add(entityID, struct{}{})
			}
			s.mu.Unlock()
			return nil, err
		}
		s.mu.Lock()
		st.unsubscribe = unsubscribe
		s.mu.Unlock()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.mu.Lock()
			st.observers--
			var unsubscribe func()
			if st.observers == 0 {
				unsubscribe = st.unsubscribe
				st.unsubscribe = nil
				s.idle.Add(entityID, struct{}{})
			}
			s.mu.Unlock()
			if unsubscribe != nil {
				unsubscribe()
			}
		})
	}
	return release, nil
}
