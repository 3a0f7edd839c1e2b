package interactions

import (
	"context"
	"log/slog"
	"strings"

	youbuidl "github.com/givestation/youbuidl-sync"
)

// apply folds one change-feed event into the cache. It runs on the feed's
// delivery goroutine, interleaving arbitrarily with the optimistic engine;
// the mutex and the lookup-miss tolerance absorb the races.
func (s *Store) apply(ev youbuidl.Event) {
	switch ev.Table {
	case youbuidl.TableComments:
		s.applyComment(ev)
	case youbuidl.TableDomainUpvotes:
		s.applyUpvote(ev)
	}
}

func (s *Store) applyComment(ev youbuidl.Event) {
	if ev.Comment == nil {
		return
	}
	row := *ev.Comment

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entities[ev.EntityID]
	if !ok {
		return
	}

	switch ev.Kind {
	case youbuidl.EventInsert:
		// De-duplicate against rows already present (our own settled insert
		// echoed back) and against in-flight optimistic inserts whose temp
		// id the server does not know yet.
		if _, dup := findComment(st.comments, row.ID); dup {
			return
		}
		if s.fingerprints[fingerprint(ev.EntityID, row.Author.Address, row.Content)] > 0 {
			return
		}
		row.Replies = nil
		if row.ParentID == "" {
			st.comments = appendTop(st.comments, row)
			return
		}
		if p, found := findComment(st.comments, row.ParentID); found && p.topLevel() {
			st.comments = appendReply(st.comments, p, row)
		}
		// Unknown or nested parent: drop, same tolerance as a lookup miss.

	case youbuidl.EventDelete:
		if p, found := findComment(st.comments, row.ID); found {
			st.comments = removeAt(st.comments, p)
		}

	case youbuidl.EventUpdate:
		// Only the denormalized like count travels on this path.
		if p, found := findComment(st.comments, row.ID); found {
			st.comments = mutateAt(st.comments, p, func(c *youbuidl.Comment) {
				c.LikeCount = row.LikeCount
			})
		}
	}
}

func (s *Store) applyUpvote(ev youbuidl.Event) {
	if ev.Upvote == nil {
		return
	}

	viewer := strings.ToLower(s.identity.Address())

	s.mu.Lock()
	st, ok := s.entities[ev.EntityID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if viewer != "" && strings.ToLower(ev.Upvote.UserAddress) == viewer {
		switch ev.Kind {
		case youbuidl.EventInsert:
			st.upvotes.ViewerHasUpvoted = true
		case youbuidl.EventDelete:
			st.upvotes.ViewerHasUpvoted = false
		}
	}
	s.mu.Unlock()

	// The recount takes a remote round trip, so it runs off the feed delivery
	// goroutine; later events on the same handler are not held up behind it.
	// Re-querying the full count instead of applying deltas means completions
	// landing out of order still converge on the authoritative value.
	go s.recountUpvotes(ev.EntityID)
}

func (s *Store) recountUpvotes(entityID string) {
	rctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	state, err := s.remote.UpvoteState(rctx, entityID)
	if err != nil {
		s.log.Warn("upvote recount failed",
			slog.String("entity", entityID),
			slog.String("error", err.Error()),
			slog.String("module", "interactions"),
		)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.entities[entityID]
	if !ok {
		return
	}
	st.upvotes.Count = state.Count
	st.upvotesLoaded = true
}
