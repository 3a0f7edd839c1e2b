package interactions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	youbuidl "github.com/givestation/youbuidl-sync"
)

type mockRemote struct {
	mu sync.Mutex

	// gate, when set, makes mutating calls wait for close or ctx expiry.
	gate chan struct{}

	failCreate bool
	failLike   bool
	failUpvote bool
	failList   bool

	createdID    string
	likeResult   int
	unlikeResult int
	listResult   []youbuidl.Comment
	likedIDs     []string
	upvoteCount  int
	upvoted      bool

	createCalls int
	likeCalls   int
	unlikeCalls int
	upvoteCalls int
	removeCalls int
	listCalls   int
	stateCalls  int
}

func (m *mockRemote) wait(ctx context.Context) error {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mockRemote) ListComments(ctx context.Context, entityID string) ([]youbuidl.Comment, error) {
	m.mu.Lock()
	m.listCalls++
	res := m.listResult
	fail := m.failList
	m.mu.Unlock()
	if fail {
		return nil, errors.New("list failed")
	}
	return res, nil
}

func (m *mockRemote) CreateComment(ctx context.Context, entityID, parentID, content string) (youbuidl.Comment, error) {
	m.mu.Lock()
	m.createCalls++
	n := m.createCalls
	id := m.createdID
	fail := m.failCreate
	m.mu.Unlock()
	if err := m.wait(ctx); err != nil {
		return youbuidl.Comment{}, err
	}
	if fail {
		return youbuidl.Comment{}, errors.New("insert rejected")
	}
	if id == "" {
		id = fmt.Sprintf("c-%d", n)
	}
	return youbuidl.Comment{
		ID:        id,
		EntityID:  entityID,
		ParentID:  parentID,
		Content:   content,
		Timestamp: 1700000000000,
	}, nil
}

func (m *mockRemote) LikeComment(ctx context.Context, commentID string) (int, error) {
	m.mu.Lock()
	m.likeCalls++
	res := m.likeResult
	fail := m.failLike
	m.mu.Unlock()
	if err := m.wait(ctx); err != nil {
		return 0, err
	}
	if fail {
		return 0, errors.New("like rejected")
	}
	return res, nil
}

func (m *mockRemote) UnlikeComment(ctx context.Context, commentID string) (int, error) {
	m.mu.Lock()
	m.unlikeCalls++
	res := m.unlikeResult
	fail := m.failLike
	m.mu.Unlock()
	if err := m.wait(ctx); err != nil {
		return 0, err
	}
	if fail {
		return 0, errors.New("unlike rejected")
	}
	return res, nil
}

func (m *mockRemote) LikedCommentIDs(ctx context.Context, entityID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.likedIDs, nil
}

func (m *mockRemote) UpvoteState(ctx context.Context, entityID string) (youbuidl.UpvoteState, error) {
	m.mu.Lock()
	m.stateCalls++
	m.mu.Unlock()
	if err := m.wait(ctx); err != nil {
		return youbuidl.UpvoteState{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return youbuidl.UpvoteState{Count: m.upvoteCount, ViewerHasUpvoted: m.upvoted}, nil
}

func (m *mockRemote) Upvote(ctx context.Context, entityID string) error {
	m.mu.Lock()
	m.upvoteCalls++
	fail := m.failUpvote
	m.mu.Unlock()
	if err := m.wait(ctx); err != nil {
		return err
	}
	if fail {
		return errors.New("upvote rejected")
	}
	m.mu.Lock()
	m.upvoteCount++
	m.upvoted = true
	m.mu.Unlock()
	return nil
}

func (m *mockRemote) RemoveUpvote(ctx context.Context, entityID string) error {
	m.mu.Lock()
	m.removeCalls++
	fail := m.failUpvote
	m.mu.Unlock()
	if err := m.wait(ctx); err != nil {
		return err
	}
	if fail {
		return errors.New("remove rejected")
	}
	m.mu.Lock()
	m.upvoteCount--
	m.upvoted = false
	m.mu.Unlock()
	return nil
}

type mockFeed struct {
	mu            sync.Mutex
	handlers      map[string]func(youbuidl.Event)
	subscribes    int
	unsubscribes  int
	failSubscribe bool
}

func (f *mockFeed) Subscribe(ctx context.Context, entityID string, handler func(youbuidl.Event)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSubscribe {
		return nil, errors.New("subscribe failed")
	}
	if f.handlers == nil {
		f.handlers = make(map[string]func(youbuidl.Event))
	}
	f.subscribes++
	f.handlers[entityID] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubscribes++
		delete(f.handlers, entityID)
	}, nil
}

type recordNotifier struct {
	mu    sync.Mutex
	kinds []NotifyKind
	msgs  []string
}

func (n *recordNotifier) Notify(kind NotifyKind, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	n.msgs = append(n.msgs, message)
}

func (n *recordNotifier) count(kind NotifyKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, k := range n.kinds {
		if k == kind {
			c++
		}
	}
	return c
}

type fixedIdentity struct {
	mu   sync.Mutex
	addr string
}

func (i *fixedIdentity) Address() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.addr
}

func newTestStore(remote *mockRemote, feed *mockFeed, addr string, opts Options) (*Store, *recordNotifier, *fixedIdentity) {
	notifier := &recordNotifier{}
	identity := &fixedIdentity{addr: addr}
	return New(remote, feed, identity, notifier, opts), notifier, identity
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached in time")
}
