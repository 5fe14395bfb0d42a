package reviewer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"batchbot/internal/model"
	"batchbot/internal/platform"
	"batchbot/internal/rules"
	"batchbot/internal/storage"
)

type mockActor struct {
	posts     map[string]*model.Post
	comments  map[string]bool
	responses map[string][]model.Comment
	deleted   []string
}

func newMockActor() *mockActor {
	return &mockActor{
		posts:     make(map[string]*model.Post),
		comments:  make(map[string]bool),
		responses: make(map[string][]model.Comment),
	}
}

func (m *mockActor) Reply(_ context.Context, _, _ string) (string, error) { return "", nil }

func (m *mockActor) EditReply(_ context.Context, _, _ string) error { return nil }

func (m *mockActor) Delete(_ context.Context, replyID string) error {
	m.deleted = append(m.deleted, replyID)
	delete(m.comments, replyID)
	return nil
}

func (m *mockActor) Fetch(_ context.Context, targetID string) (*model.Post, error) {
	if p, ok := m.posts[targetID]; ok {
		return p, nil
	}
	return nil, &platform.NotFoundError{ID: targetID}
}

func (m *mockActor) FetchComment(_ context.Context, commentID string) (*model.Comment, error) {
	if m.comments[commentID] {
		return &model.Comment{ID: commentID, Author: "BatchBot"}, nil
	}
	return nil, &platform.NotFoundError{ID: commentID}
}

func (m *mockActor) HasReplyFrom(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func (m *mockActor) RepliesTo(_ context.Context, commentID string) ([]model.Comment, error) {
	return m.responses[commentID], nil
}

// countingStore wraps a Store and counts mutating calls.
type countingStore struct {
	storage.Store
	writes int
}

func (c *countingStore) UpsertReply(ctx context.Context, r *model.Reply) error {
	c.writes++
	return c.Store.UpsertReply(ctx, r)
}

func (c *countingStore) UpdateFlags(ctx context.Context, targetID string, flags model.Verdict) error {
	c.writes++
	return c.Store.UpdateFlags(ctx, targetID, flags)
}

func (c *countingStore) MarkObstructed(ctx context.Context, targetID string) error {
	c.writes++
	return c.Store.MarkObstructed(ctx, targetID)
}

func (c *countingStore) ClearReply(ctx context.Context, targetID string) error {
	c.writes++
	return c.Store.ClearReply(ctx, targetID)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedReply(t *testing.T, s storage.Store, targetID, replyID string, flags model.Verdict) {
	t.Helper()
	err := s.UpsertReply(context.Background(), &model.Reply{
		TargetID:         targetID,
		ReplyID:          replyID,
		TargetCreatedUTC: 1000,
		ContentFlags:     flags,
		IsSet:            true,
	})
	if err != nil {
		t.Fatalf("seed reply: %v", err)
	}
}

func newTestReviewer(store storage.Store, actor *mockActor) *Reviewer {
	r := New(store, actor, rules.Default(), discardLogger())
	r.now = func() time.Time { return time.Unix(2000, 0) }
	r.retention = time.Hour
	return r
}

func TestTargetGoneClearsRow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	actor := newMockActor()
	seedReply(t, store, "t1", "r1", rules.MissingCodeBlock)

	r := newTestReviewer(store, actor)
	if err := r.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	row, _ := store.GetReply(ctx, "t1")
	if row.IsSet {
		t.Error("row still set after target vanished")
	}
	if len(actor.deleted) != 0 {
		t.Errorf("deleted = %v, want none", actor.deleted)
	}
}

func TestFixedPostDeletesReply(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	actor := newMockActor()
	seedReply(t, store, "t1", "r1", rules.MissingCodeBlock)
	actor.posts["t1"] = &model.Post{ID: "t1", Body: "all fixed now", IsSelf: true}
	actor.comments["r1"] = true

	r := newTestReviewer(store, actor)
	if err := r.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if len(actor.deleted) != 1 || actor.deleted[0] != "r1" {
		t.Fatalf("deleted = %v, want [r1]", actor.deleted)
	}
	row, _ := store.GetReply(ctx, "t1")
	if row.IsSet {
		t.Error("row still set after reversal")
	}
}

func TestRepliesObstructReversal(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	actor := newMockActor()
	seedReply(t, store, "t1", "r1", rules.MissingCodeBlock)
	actor.posts["t1"] = &model.Post{ID: "t1", Body: "all fixed now", IsSelf: true}
	actor.comments["r1"] = true
	actor.responses["r1"] = []model.Comment{{ID: "c9", Author: "bystander", Body: "thanks bot"}}

	r := newTestReviewer(store, actor)
	if err := r.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if len(actor.deleted) != 0 {
		t.Errorf("deleted = %v, want none", actor.deleted)
	}
	row, _ := store.GetReply(ctx, "t1")
	if !row.IsSet || !row.IsObstructed {
		t.Errorf("row = %+v, want set and obstructed", row)
	}
}

func TestReplyVanishedClearsRow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	actor := newMockActor()
	seedReply(t, store, "t1", "r1", rules.MissingCodeBlock)
	actor.posts["t1"] = &model.Post{ID: "t1", Body: "all fixed now", IsSelf: true}
	// The comment r1 is gone (deleted by hand).

	r := newTestReviewer(store, actor)
	if err := r.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	row, _ := store.GetReply(ctx, "t1")
	if row.IsSet {
		t.Error("row still set after reply vanished")
	}
}

func TestChangedVerdictUpdatesFlagsOnly(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	actor := newMockActor()
	seedReply(t, store, "t1", "r1", rules.MissingCodeBlock)
	// Still broken, but now in the inline-code style.
	actor.posts["t1"] = &model.Post{ID: "t1", Body: "`@echo off`\n`echo a`\n`echo b`", IsSelf: true}

	r := newTestReviewer(store, actor)
	if err := r.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if len(actor.deleted) != 0 {
		t.Errorf("deleted = %v, want none", actor.deleted)
	}
	row, _ := store.GetReply(ctx, "t1")
	if row.ContentFlags != rules.InlineCodeMisuse {
		t.Errorf("flags = %d, want %d", row.ContentFlags, rules.InlineCodeMisuse)
	}
	if !row.IsSet {
		t.Error("row cleared, want still set")
	}
}

// Two ticks over unchanged upstream state: the second performs no store
// writes at all.
func TestTickIdempotent(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: newTestStore(t)}
	actor := newMockActor()
	seedReply(t, store, "t1", "r1", rules.MissingCodeBlock)
	store.writes = 0
	// Post unchanged: still matches the recorded flags.
	actor.posts["t1"] = &model.Post{ID: "t1", Body: "@echo off\npause", IsSelf: true}

	r := newTestReviewer(store, actor)
	if err := r.Tick(ctx); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	after := store.writes

	if err := r.Tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if store.writes != after {
		t.Errorf("second tick performed %d writes, want 0", store.writes-after)
	}
	if after != 0 {
		t.Errorf("first tick performed %d writes on unchanged state, want 0", after)
	}
}
