package interactions

import (
	"context"
	"sync"
	"testing"

	youbuidl "github.com/givestation/youbuidl-sync"
)

func loadOne(t *testing.T, store *Store, remote *mockRemote, entityID string, comments ...youbuidl.Comment) {
	t.Helper()
	remote.mu.Lock()
	remote.listResult = comments
	remote.mu.Unlock()
	store.LoadComments(context.Background(), entityID)
}

func TestFeedInsertAppendsTopLevel(t *testing.T) {
	remote := &mockRemote{}
	store, _, _ := newTestStore(remote, &mockFeed{}, viewerAddr, Options{})
	loadOne(t, store, remote, "proj-1", youbuidl.Comment{ID: "c-1", EntityID: "proj-1"})

	store.apply(youbuidl.Event{
		Kind:     youbuidl.EventInsert,
		Table:    youbuidl.TableComments,
		EntityID: "proj-1",
		Comment: &youbuidl.Comment{
			ID:       "c-2",
			EntityID: "proj-1",
			Author:   youbuidl.Author{Address: "0x0000000000000000000000000000000000000bee"},
			Content:  "from another viewer",
		},
	})

	comments := store.Comments("proj-1")
	if len(comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(comments))
	}
	if comments[1].ID != "c-2" {
		t.Fatalf("feed insert must append, got order %s,%s", comments[0].ID, comments[1].ID)
	}
}

func TestFeedInsertDeduplicatesByID(t *testing.T) {
	remote := &mockRemote{}
	store, _, _ := newTestStore(remote, &mockFeed{}, viewerAddr, Options{})
	loadOne(t, store, remote, "proj-1", youbuidl.Comment{ID: "c-1", EntityID: "proj-1"})

	store.apply(youbuidl.Event{
		Kind:     youbuidl.EventInsert,
		Table:    youbuidl.TableComments,
		EntityID: "proj-1",
		Comment:  &youbuidl.Comment{ID: "c-1", EntityID: "proj-1"},
	})

	if got := store.Comments("proj-1"); len(got) != 1 {
		t.Fatalf("duplicate insert folded, got %d comments", len(got))
	}
}

func TestFeedInsertSuppressedWhileOptimisticInsertInFlight(t *testing.T) {
	gate := make(chan struct{})
	remote := &mockRemote{gate: gate, createdID: "c-9"}
	store, _, _ := newTestStore(remote, &mockFeed{}, viewerAddr, Options{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		store.AddComment(context.Background(), "proj-1", "gm")
	}()
	waitFor(t, func() bool {
		remote.mu.Lock()
		defer remote.mu.Unlock()
		return remote.createCalls == 1
	})

	// The server commits before our HTTP response returns, so the feed echo
	// can arrive first, carrying the authoritative id while we still hold a
	// temp entry. The fingerprint suppresses the duplicate.
	store.apply(youbuidl.Event{
		Kind:     youbuidl.EventInsert,
		Table:    youbuidl.TableComments,
		EntityID: "proj-1",
		Comment: &youbuidl.Comment{
			ID:       "c-9",
			EntityID: "proj-1",
			Author:   youbuidl.Author{Address: viewerAddr},
			Content:  "gm",
		},
	})

	if got := store.Comments("proj-1"); len(got) != 1 {
		t.Fatalf("feed echo produced a duplicate: %d comments", len(got))
	}

	close(gate)
	wg.Wait()

	comments := store.Comments("proj-1")
	if len(comments) != 1 || comments[0].ID != "c-9" {
		t.Fatalf("expected single settled comment c-9, got %+v", comments)
	}
}

func TestFeedInsertPlacesReplyUnderParent(t *testing.T) {
	remote := &mockRemote{}
	store, _, _ := newTestStore(remote, &mockFeed{}, viewerAddr, Options{})
	loadOne(t, store, remote, "proj-1", youbuidl.Comment{ID: "c-1", EntityID: "proj-1"})

	store.apply(youbuidl.Event{
		Kind:     youbuidl.EventInsert,
		Table:    youbuidl.TableComments,
		EntityID: "proj-1",
		Comment:  &youbuidl.Comment{ID: "r-1", EntityID: "proj-1", ParentID: "c-1", Content: "re"},
	})

	comments := store.Comments("proj-1")
	if len(comments) != 1 || len(comments[0].Replies) != 1 || comments[0].Replies[0].ID != "r-1" {
		t.Fatalf("reply not placed under parent: %+v", comments)
	}
}

func TestFeedInsertUnknownParentDropped(t *testing.T) {
	remote := &mockRemote{}
	store, _, _ := newTestStore(remote, &mockFeed{}, viewerAddr, Options{})
	loadOne(t, store, remote, "proj-1", youbuidl.Comment{ID: "c-1", EntityID: "proj-1"})

	store.apply(youbuidl.Event{
		Kind:     youbuidl.EventInsert,
		Table:    youbuidl.TableComments,
		EntityID: "proj-1",
		Comment:  &youbuidl.Comment{ID: "r-1", EntityID: "proj-1", ParentID: "gone"},
	})

	comments := store.Comments("proj-1")
	if len(comments) != 1 || len(comments[0].Replies) != 0 {
		t.Fatalf("orphan reply must be dropped: %+v", comments)
	}
}

func TestFeedDeleteRemoves(t *testing.T) {
	remote := &mockRemote{}
	store, _, _ := newTestStore(remote, &mockFeed{}, viewerAddr, Options{})
	loadOne(t, store, remote, "proj-1",
		youbuidl.Comment{ID: "c-1", EntityID: "proj-1"},
		youbuidl.Comment{ID: "c-2", EntityID: "proj-1"},
	)

	store.apply(youbuidl.Event{
		Kind:     youbuidl.EventDelete,
		Table:    youbuidl.TableComments,
		EntityID: "proj-1",
		Comment:  &youbuidl.Comment{ID: "c-1"},
	})

	comments := store.Comments("proj-1")
	if len(comments) != 1 || comments[0].ID != "c-2" {
		t.Fatalf("delete not folded: %+v", comments)
	}
}

func TestFeedUpdatePatchesLikeCountOnly(t *testing.T) {
	remote := &mockRemote{}
	store, _, _ := newTestStore(remote, &mockFeed{}, viewerAddr, Options{})
	loadOne(t, store, remote, "proj-1",
		youbuidl.Comment{ID: "c-1", EntityID: "proj-1", Content: "original", LikeCount: 1},
	)

	store.apply(youbuidl.Event{
		Kind:     youbuidl.EventUpdate,
		Table:    youbuidl.TableComments,
		EntityID: "proj-1",
		Comment:  &youbuidl.Comment{ID: "c-1", Content: "tampered", LikeCount: 8},
	})

	c := store.Comments("proj-1")[0]
	if c.LikeCount != 8 {
		t.Fatalf("like count not patched: %d", c.LikeCount)
	}
	if c.Content != "original" {
		t.Fatalf("update must not touch content, got %q", c.Content)
	}
}

func TestFeedEventForUnknownEntityIgnored(t *testing.T) {
	remote := &mockRemote{}
	store, _, _ := newTestStore(remote, &mockFeed{}, viewerAddr, Options{})

	store.apply(youbuidl.Event{
		Kind:     youbuidl.EventInsert,
		Table:    youbuidl.TableComments,
		EntityID: "never-loaded",
		Comment:  &youbuidl.Comment{ID: "c-1", EntityID: "never-loaded"},
	})

	if got := store.Comments("never-loaded"); got != nil {
		t.Fatalf("event for unknown entity must not create state")
	}
}

func TestUpvoteFeedRecountsAndTracksMembership(t *testing.T) {
	remote := &mockRemote{upvoteCount: 7}
	store, _, _ := newTestStore(remote, &mockFeed{}, viewerAddr, Options{})
	store.LoadUpvotes(context.Background(), "proj-1")

	// Another viewer's upvote: count refreshed, membership untouched.
	remote.mu.Lock()
	remote.upvoteCount = 8
	remote.mu.Unlock()
	store.apply(youbuidl.Event{
		Kind:     youbuidl.EventInsert,
		Table:    youbuidl.TableDomainUpvotes,
		EntityID: "proj-1",
		Upvote:   &youbuidl.UpvoteRow{EntityID: "proj-1", UserAddress: "0x0000000000000000000000000000000000000bee"},
	})
	waitFor(t, func() bool {
		state := store.UpvoteStateOf("proj-1")
		return state.Count == 8 && !state.ViewerHasUpvoted
	})

	// The viewer's own row flips membership immediately.
	remote.mu.Lock()
	remote.upvoteCount = 9
	remote.mu.Unlock()
	store.apply(youbuidl.Event{
		Kind:     youbuidl.EventInsert,
		Table:    youbuidl.TableDomainUpvotes,
		EntityID: "proj-1",
		Upvote:   &youbuidl.UpvoteRow{EntityID: "proj-1", UserAddress: viewerAddr},
	})
	if !store.UpvoteStateOf("proj-1").ViewerHasUpvoted {
		t.Fatalf("membership flip must not wait for the recount")
	}
	waitFor(t, func() bool {
		state := store.UpvoteStateOf("proj-1")
		return state.Count == 9 && state.ViewerHasUpvoted
	})

	remote.mu.Lock()
	remote.upvoteCount = 8
	remote.mu.Unlock()
	store.apply(youbuidl.Event{
		Kind:     youbuidl.EventDelete,
		Table:    youbuidl.TableDomainUpvotes,
		EntityID: "proj-1",
		Upvote:   &youbuidl.UpvoteRow{EntityID: "proj-1", UserAddress: viewerAddr},
	})
	waitFor(t, func() bool {
		state := store.UpvoteStateOf("proj-1")
		return state.Count == 8 && !state.ViewerHasUpvoted
	})
}

func TestUpvoteRecountDoesNotStallFeedDelivery(t *testing.T) {
	gate := make(chan struct{})
	remote := &mockRemote{upvoteCount: 3}
	store, _, _ := newTestStore(remote, &mockFeed{}, viewerAddr, Options{})
	store.LoadUpvotes(context.Background(), "proj-1")
	loadOne(t, store, remote, "proj-1", youbuidl.Comment{ID: "c-1", EntityID: "proj-1"})

	remote.mu.Lock()
	remote.gate = gate
	remote.upvoteCount = 4
	remote.mu.Unlock()

	// With the recount held at the gate, later events on the same delivery
	// goroutine must still be folded in.
	store.apply(youbuidl.Event{
		Kind:     youbuidl.EventInsert,
		Table:    youbuidl.TableDomainUpvotes,
		EntityID: "proj-1",
		Upvote:   &youbuidl.UpvoteRow{EntityID: "proj-1", UserAddress: "0x0000000000000000000000000000000000000bee"},
	})
	store.apply(youbuidl.Event{
		Kind:     youbuidl.EventInsert,
		Table:    youbuidl.TableComments,
		EntityID: "proj-1",
		Comment:  &youbuidl.Comment{ID: "c-2", EntityID: "proj-1"},
	})

	if got := store.Comments("proj-1"); len(got) != 2 {
		t.Fatalf("comment event stalled behind recount: %d comments", len(got))
	}
	if store.UpvoteStateOf("proj-1").Count != 3 {
		t.Fatalf("count must stay at the last authoritative value while the recount is in flight")
	}

	close(gate)
	waitFor(t, func() bool {
		return store.UpvoteStateOf("proj-1").Count == 4
	})
}
