package interactions

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/zeebo/xxh3"

	youbuidl "github.com/givestation/youbuidl-sync"
)

// Every mutating action follows the same three-phase protocol: speculate the
// post-mutation state into the cache, commit the remote mutation, then
// reconcile. On success the speculative entry is patched with authoritative
// fields; on failure the exact speculative transform is inverted and the
// failure is surfaced through the notifier. Nothing is returned to the
// caller: views read the resulting cache state reactively.

// fingerprint identifies a logical comment insert so the reconciler can match
// a feed echo against an in-flight optimistic entry whose temp id the server
// does not know.
func fingerprint(entityID, authorAddress, content string) uint64 {
	return xxh3.HashString(entityID + "\x00" + strings.ToLower(authorAddress) + "\x00" + content)
}

// viewer returns the authenticated author, or notifies and reports false.
// An absent identity aborts the action before any speculation.
func (s *Store) viewer() (youbuidl.Author, bool) {
	addr := s.identity.Address()
	if addr == "" {
		s.notify.Notify(NotifyConnectWallet, "please connect wallet")
		return youbuidl.Author{}, false
	}
	return youbuidl.Author{Address: strings.ToLower(addr)}, true
}

// AddComment speculates a new top-level comment at the head of entityID's
// list, commits it remotely, and splices in the authoritative id and
// timestamp at the same position. Blank content is rejected before any state
// is touched.
func (s *Store) AddComment(ctx context.Context, entityID, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	author, ok := s.viewer()
	if !ok {
		return
	}

	key := "comment:" + entityID
	if !s.pending.Begin(key) {
		return
	}
	defer s.pending.End(key)

	temp := youbuidl.Comment{
		ID:        youbuidl.TempIDPrefix + ulid.Make().String(),
		EntityID:  entityID,
		Author:    author,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
	fp := fingerprint(entityID, author.Address, content)

	s.mu.Lock()
	st := s.entity(entityID)
	st.comments = prependTop(st.comments, temp)
	s.fingerprints[fp]++
	s.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	created, err := s.remote.CreateComment(rctx, entityID, "", content)

	s.mu.Lock()
	s.releaseFingerprint(fp)
	if err != nil {
		if p, found := findComment(st.comments, temp.ID); found {
			st.comments = removeAt(st.comments, p)
		}
		s.mu.Unlock()
		s.log.Error("comment insert failed",
			slog.String("entity", entityID),
			slog.String("error", err.Error()),
			slog.String("module", "interactions"),
		)
		s.notify.Notify(NotifyError, "failed to add comment")
		return
	}
	if p, found := findComment(st.comments, temp.ID); found {
		st.comments = mutateAt(st.comments, p, func(c *youbuidl.Comment) {
			c.ID = created.ID
			c.Timestamp = created.Timestamp
			if created.Author.Address != "" {
				c.Author = created.Author
			}
		})
	}
	s.mu.Unlock()
	s.notify.Notify(NotifySuccess, "comment added")
}

// AddReply speculates a reply at the end of the parent's reply list. When the
// parent is not present locally the speculation is skipped but the remote
// insert is still attempted: the optimistic path degrades gracefully when
// local state is stale.
func (s *Store) AddReply(ctx context.Context, entityID, parentID, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	author, ok := s.viewer()
	if !ok {
		return
	}

	key := "reply:" + parentID
	if !s.pending.Begin(key) {
		return
	}
	defer s.pending.End(key)

	temp := youbuidl.Comment{
		ID:        youbuidl.TempIDPrefix + ulid.Make().String(),
		EntityID:  entityID,
		ParentID:  parentID,
		Author:    author,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
	fp := fingerprint(entityID, author.Address, content)

	speculated := false
	s.mu.Lock()
	st := s.entity(entityID)
	if p, found := findComment(st.comments, parentID); found && p.topLevel() {
		st.comments = appendReply(st.comments, p, temp)
		s.fingerprints[fp]++
		speculated = true
	}
	s.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	created, err := s.remote.CreateComment(rctx, entityID, parentID, content)

	s.mu.Lock()
	if speculated {
		s.releaseFingerprint(fp)
	}
	if err != nil {
		if speculated {
			if p, found := findComment(st.comments, temp.ID); found {
				st.comments = removeAt(st.comments, p)
			}
		}
		s.mu.Unlock()
		s.log.Error("reply insert failed",
			slog.String("entity", entityID),
			slog.String("parent", parentID),
			slog.String("error", err.Error()),
			slog.String("module", "interactions"),
		)
		s.notify.Notify(NotifyError, "failed to add reply")
		return
	}
	if p, found := findComment(st.comments, temp.ID); found {
		st.comments = mutateAt(st.comments, p, func(c *youbuidl.Comment) {
			c.ID = created.ID
			c.Timestamp = created.Timestamp
			if created.Author.Address != "" {
				c.Author = created.Author
			}
		})
	}
	s.mu.Unlock()
	s.notify.Notify(NotifySuccess, "reply added")
}

// LikeComment toggles the viewer's like on a comment, searching both nesting
// levels for the target. The toggle and the count adjustment happen in one
// atomic cache update; on remote failure the exact toggle is inverted. A
// comment that is not in the cache is a silent no-op.
func (s *Store) LikeComment(ctx context.Context, entityID, commentID string) {
	if _, ok := s.viewer(); !ok {
		return
	}

	key := "like:" + commentID
	if !s.pending.Begin(key) {
		return
	}
	defer s.pending.End(key)

	var nowLiked, found bool
	s.mu.Lock()
	st, known := s.entities[entityID]
	if known {
		if p, ok := findComment(st.comments, commentID); ok {
			found = true
			st.comments = mutateAt(st.comments, p, func(c *youbuidl.Comment) {
				if c.ViewerHasLiked {
					c.ViewerHasLiked = false
					c.LikeCount--
				} else {
					c.ViewerHasLiked = true
					c.LikeCount++
				}
				nowLiked = c.ViewerHasLiked
			})
		}
	}
	s.mu.Unlock()
	if !found {
		return
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var count int
	var err error
	if nowLiked {
		count, err = s.remote.LikeComment(rctx, commentID)
	} else {
		count, err = s.remote.UnlikeComment(rctx, commentID)
	}

	s.mu.Lock()
	if p, ok := findComment(st.comments, commentID); ok {
		if err != nil {
			st.comments = mutateAt(st.comments, p, func(c *youbuidl.Comment) {
				if nowLiked {
					c.ViewerHasLiked = false
					c.LikeCount--
				} else {
					c.ViewerHasLiked = true
					c.LikeCount++
				}
			})
		} else {
			// Fold the authoritative count so concurrent likes by other
			// viewers converge without waiting for a feed event.
			st.comments = mutateAt(st.comments, p, func(c *youbuidl.Comment) {
				c.LikeCount = count
			})
		}
	}
	s.mu.Unlock()
	if err != nil {
		s.log.Error("like toggle failed",
			slog.String("comment", commentID),
			slog.String("error", err.Error()),
			slog.String("module", "interactions"),
		)
		s.notify.Notify(NotifyError, "failed to update like")
	}
}

// Upvote toggles the viewer's upvote on entityID, adjusting membership and
// total count together. On remote failure both are inverted.
func (s *Store) Upvote(ctx context.Context, entityID string) {
	if _, ok := s.viewer(); !ok {
		return
	}

	key := "upvote:" + entityID
	if !s.pending.Begin(key) {
		return
	}
	defer s.pending.End(key)

	s.mu.Lock()
	st := s.entity(entityID)
	wasUpvoted := st.upvotes.ViewerHasUpvoted
	var applied int
	if wasUpvoted {
		st.upvotes.ViewerHasUpvoted = false
		if st.upvotes.Count > 0 {
			st.upvotes.Count--
			applied = -1
		}
	} else {
		st.upvotes.ViewerHasUpvoted = true
		st.upvotes.Count++
		applied = 1
	}
	s.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var err error
	if wasUpvoted {
		err = s.remote.RemoveUpvote(rctx, entityID)
	} else {
		err = s.remote.Upvote(rctx, entityID)
	}

	if err != nil {
		s.mu.Lock()
		st.upvotes.ViewerHasUpvoted = wasUpvoted
		st.upvotes.Count -= applied
		s.mu.Unlock()
		s.log.Error("upvote toggle failed",
			slog.String("entity", entityID),
			slog.String("error", err.Error()),
			slog.String("module", "interactions"),
		)
		s.notify.Notify(NotifyError, "failed to update upvote")
		return
	}
	if wasUpvoted {
		s.notify.Notify(NotifySuccess, "upvote removed")
	} else {
		s.notify.Notify(NotifySuccess, "upvote added")
	}
}

// releaseFingerprint drops one in-flight registration. Caller holds mu.
func (s *Store) releaseFingerprint(fp uint64) {
	if n := s.fingerprints[fp]; n <= 1 {
		delete(s.fingerprints, fp)
	} else {
		s.fingerprints[fp] = n - 1
	}
}
