// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"batchbot/internal/model"
)

// Store is the interface for the reply tracking table.
type Store interface {
	// UpsertReply records an action taken on a target. If a row already
	// exists for the target (a dedup failure upstream), the row is
	// updated in place so that at most one row per target remains.
	UpsertReply(ctx context.Context, r *model.Reply) error

	// GetReply returns the row for targetID, or nil when absent.
	GetReply(ctx context.Context, targetID string) (*model.Reply, error)

	// UpdateFlags stores a fresh verdict for the target. The write is
	// skipped when flags already match the stored value.
	UpdateFlags(ctx context.Context, targetID string, flags model.Verdict) error

	// MarkObstructed excludes the row from re-check scans without
	// forgetting the action.
	MarkObstructed(ctx context.Context, targetID string) error

	// ClearReply marks the action no longer live, on reversal or on
	// give-up paths.
	ClearReply(ctx context.Context, targetID string) error

	// PendingForRecheck returns the rows still eligible for re-check:
	// live, unobstructed, and whose target is younger than retention.
	// Each call re-queries; no cursor survives across calls.
	PendingForRecheck(ctx context.Context, now time.Time, retention time.Duration) ([]model.Reply, error)

	Close() error
}
