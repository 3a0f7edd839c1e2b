package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/givestation/youbuidl-sync/internal/domain"
	"github.com/givestation/youbuidl-sync/internal/infra/database/models"

	youbuidl "github.com/givestation/youbuidl-sync"
)

type mockCommentRepo struct {
	rows    []models.Comment
	created models.Comment
	deleted string
	liked   map[string]bool
}

func (m *mockCommentRepo) List(ctx context.Context, entityID string) ([]models.Comment, error) {
	var out []models.Comment
	for _, row := range m.rows {
		if row.EntityID == entityID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *mockCommentRepo) Get(ctx context.Context, id string) (models.Comment, error) {
	for _, row := range m.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return models.Comment{}, domain.NotFoundError{Resource: "comment"}
}

func (m *mockCommentRepo) Create(ctx context.Context, comment models.Comment) (models.Comment, error) {
	comment.ID = "created-1"
	comment.CDate = time.Now()
	m.created = comment
	m.rows = append(m.rows, comment)
	return comment, nil
}

func (m *mockCommentRepo) Delete(ctx context.Context, id string) error {
	m.deleted = id
	return nil
}

func (m *mockCommentRepo) Like(ctx context.Context, commentID string, userAddress string) (models.Comment, error) {
	row, err := m.Get(ctx, commentID)
	if err != nil {
		return models.Comment{}, err
	}
	if m.liked == nil {
		m.liked = make(map[string]bool)
	}
	if !m.liked[commentID+userAddress] {
		m.liked[commentID+userAddress] = true
		row.LikesCount++
	}
	return row, nil
}

func (m *mockCommentRepo) Unlike(ctx context.Context, commentID string, userAddress string) (models.Comment, error) {
	row, err := m.Get(ctx, commentID)
	if err != nil {
		return models.Comment{}, err
	}
	if m.liked[commentID+userAddress] {
		delete(m.liked, commentID+userAddress)
		if row.LikesCount > 0 {
			row.LikesCount--
		}
	}
	return row, nil
}

func (m *mockCommentRepo) LikedIDs(ctx context.Context, entityID string, userAddress string) ([]string, error) {
	return []string{"c-1"}, nil
}

type mockPublisher struct {
	events []youbuidl.Event
}

func (m *mockPublisher) Publish(ctx context.Context, event youbuidl.Event) error {
	m.events = append(m.events, event)
	return nil
}

func ptr(s string) *string { return &s }

func TestCommentListBuildsTree(t *testing.T) {
	base := time.Unix(1700000000, 0)
	repo := &mockCommentRepo{rows: []models.Comment{
		{ID: "c-1", EntityID: "e-1", CDate: base},
		{ID: "r-1", EntityID: "e-1", ParentID: ptr("c-1"), CDate: base.Add(time.Minute)},
		{ID: "r-2", EntityID: "e-1", ParentID: ptr("c-1"), CDate: base.Add(2 * time.Minute)},
		{ID: "c-2", EntityID: "e-1", CDate: base.Add(3 * time.Minute)},
		{ID: "orphan", EntityID: "e-1", ParentID: ptr("gone"), CDate: base},
	}}
	uc := NewCommentUsecase(repo, &mockPublisher{})

	tree, err := uc.List(context.Background(), "e-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(tree) != 2 {
		t.Fatalf("expected 2 top-level comments, got %d", len(tree))
	}
	if tree[0].ID != "c-2" || tree[1].ID != "c-1" {
		t.Fatalf("top-level comments not newest first: %s, %s", tree[0].ID, tree[1].ID)
	}
	replies := tree[1].Replies
	if len(replies) != 2 || replies[0].ID != "r-1" || replies[1].ID != "r-2" {
		t.Fatalf("replies not oldest first: %+v", replies)
	}
}

func TestCommentCreatePublishesInsert(t *testing.T) {
	repo := &mockCommentRepo{}
	pub := &mockPublisher{}
	uc := NewCommentUsecase(repo, pub)

	created, err := uc.Create(context.Background(), "0xabc", "e-1", "", "hello")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID != "created-1" || created.Author.Address != "0xabc" {
		t.Fatalf("unexpected created comment: %+v", created)
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Kind != youbuidl.EventInsert || ev.Table != youbuidl.TableComments || ev.Comment.ID != "created-1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestCommentCreateSanitizesContent(t *testing.T) {
	repo := &mockCommentRepo{}
	uc := NewCommentUsecase(repo, &mockPublisher{})

	created, err := uc.Create(context.Background(), "0xabc", "e-1", "", `hi <script>alert(1)</script>there`)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Content == "" || created.Content != repo.created.Content {
		t.Fatalf("content mismatch: %q", created.Content)
	}
	for _, banned := range []string{"<script>", "</script>"} {
		if strings.Contains(created.Content, banned) {
			t.Fatalf("markup survived sanitization: %q", created.Content)
		}
	}
}

func TestCommentCreateRejectsBlank(t *testing.T) {
	uc := NewCommentUsecase(&mockCommentRepo{}, &mockPublisher{})

	if _, err := uc.Create(context.Background(), "0xabc", "e-1", "", "   "); err == nil {
		t.Fatalf("expected error for blank content")
	}
}

func TestCommentCreateRejectsDeepNesting(t *testing.T) {
	repo := &mockCommentRepo{rows: []models.Comment{
		{ID: "c-1", EntityID: "e-1"},
		{ID: "r-1", EntityID: "e-1", ParentID: ptr("c-1")},
	}}
	uc := NewCommentUsecase(repo, &mockPublisher{})

	if _, err := uc.Create(context.Background(), "0xabc", "e-1", "r-1", "too deep"); err == nil {
		t.Fatalf("expected error when replying to a reply")
	}
}

func TestCommentCreateRejectsCrossEntityParent(t *testing.T) {
	repo := &mockCommentRepo{rows: []models.Comment{
		{ID: "c-1", EntityID: "e-other"},
	}}
	uc := NewCommentUsecase(repo, &mockPublisher{})

	if _, err := uc.Create(context.Background(), "0xabc", "e-1", "c-1", "hi"); err == nil {
		t.Fatalf("expected error for cross-entity parent")
	}
}

func TestCommentDeleteRequiresAuthor(t *testing.T) {
	repo := &mockCommentRepo{rows: []models.Comment{
		{ID: "c-1", EntityID: "e-1", AuthorAddress: "0xowner"},
	}}
	pub := &mockPublisher{}
	uc := NewCommentUsecase(repo, pub)

	err := uc.Delete(context.Background(), "0xsomeoneelse", "c-1")
	if err == nil {
		t.Fatalf("expected permission error")
	}

	if err := uc.Delete(context.Background(), "0xowner", "c-1"); err != nil {
		t.Fatalf("author delete failed: %v", err)
	}
	if repo.deleted != "c-1" {
		t.Fatalf("repo delete not called")
	}
	if len(pub.events) != 1 || pub.events[0].Kind != youbuidl.EventDelete {
		t.Fatalf("expected delete event, got %+v", pub.events)
	}
}

func TestCommentLikePublishesUpdate(t *testing.T) {
	repo := &mockCommentRepo{rows: []models.Comment{
		{ID: "c-1", EntityID: "e-1", LikesCount: 3},
	}}
	pub := &mockPublisher{}
	uc := NewCommentUsecase(repo, pub)

	count, err := uc.Like(context.Background(), "0xabc", "c-1")
	if err != nil {
		t.Fatalf("like failed: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected count 4, got %d", count)
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Kind != youbuidl.EventUpdate || ev.Comment.LikeCount != 4 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestCommentLikedIDsEmptyForAnonymous(t *testing.T) {
	uc := NewCommentUsecase(&mockCommentRepo{}, &mockPublisher{})

	ids, err := uc.LikedIDs(context.Background(), "", "e-1")
	if err != nil {
		t.Fatalf("likedIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty slice for anonymous viewer, got %v", ids)
	}
}
