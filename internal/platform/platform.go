// Package platform defines the interfaces the bot uses to talk to the
// discussion platform, the error taxonomy those calls produce, and an
// HTTP client implementing them.
package platform

import (
	"context"

	"batchbot/internal/model"
)

// Feed is a polled source of new submissions. PollNext returns (nil, nil)
// when no item is ready yet; callers are expected to poll again.
type Feed interface {
	// PollNext returns the next unseen submission, or nil when the feed
	// has nothing new.
	PollNext(ctx context.Context) (*model.Post, error)

	// Probe performs a minimal request to test whether the platform is
	// reachable again after a transport failure.
	Probe(ctx context.Context) error
}

// Actor performs and reverses actions on the platform.
type Actor interface {
	// Reply posts a comment under the target and returns the comment id.
	Reply(ctx context.Context, targetID, body string) (string, error)

	// EditReply replaces the body of an existing comment.
	EditReply(ctx context.Context, replyID, body string) error

	// Delete removes a previously posted comment.
	Delete(ctx context.Context, replyID string) error

	// Fetch returns the current state of a post. Returns *NotFoundError
	// if the post no longer exists.
	Fetch(ctx context.Context, targetID string) (*model.Post, error)

	// FetchComment returns a single comment. Returns *NotFoundError if
	// the comment no longer exists.
	FetchComment(ctx context.Context, commentID string) (*model.Comment, error)

	// HasReplyFrom reports whether user has already commented on target.
	HasReplyFrom(ctx context.Context, targetID, user string) (bool, error)

	// RepliesTo lists the comments made in response to the given comment.
	RepliesTo(ctx context.Context, commentID string) ([]model.Comment, error)
}

// Inbox is a polled source of private messages. PollNextMessage returns
// (nil, nil) when no message is ready.
type Inbox interface {
	PollNextMessage(ctx context.Context) (*model.Message, error)
}
