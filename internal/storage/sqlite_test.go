package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"batchbot/internal/model"
)

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertAndPending(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	reply := model.Reply{
		TargetID:         "abc123",
		ReplyID:          "r1",
		TargetCreatedUTC: 1_700_000_000,
		ContentFlags:     1,
		IsSet:            true,
	}
	if err := s.UpsertReply(ctx, &reply); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	now := time.Unix(reply.TargetCreatedUTC, 0)
	pending, err := s.PendingForRecheck(ctx, now, 365*24*time.Hour)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if diff := cmp.Diff([]model.Reply{reply}, pending); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}

	if err := s.ClearReply(ctx, reply.TargetID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	pending, err = s.PendingForRecheck(ctx, now, 365*24*time.Hour)
	if err != nil {
		t.Fatalf("pending after clear: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after clear = %v, want empty", pending)
	}
}

func TestUpsertOverwritesExistingRow(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	first := model.Reply{TargetID: "dup", ReplyID: "r1", TargetCreatedUTC: 100, ContentFlags: 1, IsSet: true}
	if err := s.UpsertReply(ctx, &first); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// A second upsert for the same target signals a dedup failure
	// upstream; the row is replaced, never duplicated.
	second := model.Reply{TargetID: "dup", ReplyID: "r2", TargetCreatedUTC: 200, ContentFlags: 3, IsSet: true}
	if err := s.UpsertReply(ctx, &second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	pending, err := s.PendingForRecheck(ctx, time.Unix(200, 0), time.Hour)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if diff := cmp.Diff([]model.Reply{second}, pending); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateFlags(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	reply := model.Reply{TargetID: "t1", ReplyID: "r1", TargetCreatedUTC: 100, ContentFlags: 1, IsSet: true}
	if err := s.UpsertReply(ctx, &reply); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := s.UpdateFlags(ctx, "t1", 2); err != nil {
		t.Fatalf("update flags: %v", err)
	}
	got, err := s.GetReply(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ContentFlags != 2 {
		t.Errorf("flags = %d, want 2", got.ContentFlags)
	}

	// Writing the same value again is a no-op.
	if err := s.UpdateFlags(ctx, "t1", 2); err != nil {
		t.Fatalf("update flags (same): %v", err)
	}
}

func TestMarkObstructedExcludesFromRecheck(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	reply := model.Reply{TargetID: "t1", ReplyID: "r1", TargetCreatedUTC: 100, ContentFlags: 1, IsSet: true}
	if err := s.UpsertReply(ctx, &reply); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.MarkObstructed(ctx, "t1"); err != nil {
		t.Fatalf("mark obstructed: %v", err)
	}

	pending, err := s.PendingForRecheck(ctx, time.Unix(100, 0), time.Hour)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %v, want empty", pending)
	}

	// The row itself survives, still marked live.
	got, err := s.GetReply(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsSet || !got.IsObstructed {
		t.Errorf("row = %+v, want is_set and is_obstructed", got)
	}
}

func TestRetentionWindow(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	old := model.Reply{TargetID: "old", ReplyID: "r1", TargetCreatedUTC: 1000, ContentFlags: 1, IsSet: true}
	fresh := model.Reply{TargetID: "fresh", ReplyID: "r2", TargetCreatedUTC: 9000, ContentFlags: 1, IsSet: true}
	for _, r := range []model.Reply{old, fresh} {
		r := r
		if err := s.UpsertReply(ctx, &r); err != nil {
			t.Fatalf("upsert %s: %v", r.TargetID, err)
		}
	}

	pending, err := s.PendingForRecheck(ctx, time.Unix(10000, 0), 2000*time.Second)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if diff := cmp.Diff([]model.Reply{fresh}, pending); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}

	// Old rows are excluded, not purged.
	got, err := s.GetReply(ctx, "old")
	if err != nil {
		t.Fatalf("get old: %v", err)
	}
	if got == nil {
		t.Error("old row purged, want kept")
	}
}

func TestGetReplyMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	got, err := s.GetReply(ctx, "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}
