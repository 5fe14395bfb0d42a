// Package inbox implements the deletion-request handler: redditors can
// ask the bot to delete one of its own comments by sending a private
// message whose subject is "!delete <comment id>".
package inbox

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"batchbot/internal/classify"
	"batchbot/internal/model"
	"batchbot/internal/platform"
)

var deleteSubject = regexp.MustCompile(`(?i)^ *! *delete *(\w+)`)

const defaultIdleDelay = time.Second

// Handler polls the bot's inbox and honors deletion requests. Only
// comments authored by the bot itself are ever deleted.
type Handler struct {
	inbox      platform.Inbox
	actor      platform.Actor
	classifier *classify.Classifier
	selfName   string
	log        *slog.Logger

	checkpoint int64
	idleDelay  time.Duration
	now        func() time.Time
}

// New creates a Handler deleting comments authored by selfName.
func New(inbox platform.Inbox, actor platform.Actor, selfName string, log *slog.Logger) *Handler {
	return &Handler{
		inbox:      inbox,
		actor:      actor,
		classifier: classify.ForReviewer(),
		selfName:   selfName,
		log:        log,
		idleDelay:  defaultIdleDelay,
		now:        time.Now,
	}
}

// Run drives the inbox loop until ctx is cancelled. Messages older than
// the loop's start (or the last failure) are presumed handled.
func (h *Handler) Run(ctx context.Context) error {
	h.checkpoint = h.now().Unix()

	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := h.inbox.PollNextMessage(ctx)
		if err != nil {
			if err := h.recover(ctx, err); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			continue
		}

		if msg == nil {
			if err := sleepCtx(ctx, h.idleDelay); err != nil {
				return nil
			}
			continue
		}

		if err := h.processMessage(ctx, msg); err != nil {
			if err := h.recover(ctx, err); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	}
}

func (h *Handler) processMessage(ctx context.Context, m *model.Message) error {
	if m.WasComment {
		return nil
	}

	match := deleteSubject.FindStringSubmatch(m.Subject)

	if m.CreatedUTC < h.checkpoint {
		h.log.Info("skip: earlier message", "message", m.ID)
		return nil
	}
	if match == nil {
		h.log.Info("skip: no delete request", "message", m.ID)
		return nil
	}

	commentID := match[1]
	h.log.Info("delete request", "from", m.Author, "comment", commentID)

	comment, err := h.actor.FetchComment(ctx, commentID)
	if err != nil {
		var notFound *platform.NotFoundError
		if errors.As(err, &notFound) {
			h.log.Info("skip: comment not found", "comment", commentID)
			return nil
		}
		return err
	}

	if comment.Author != h.selfName {
		h.log.Info("skip: comment not owned", "comment", commentID)
		return nil
	}

	if err := h.actor.Delete(ctx, commentID); err != nil {
		return err
	}
	h.log.Info("deleted comment", "comment", commentID)
	return nil
}

func (h *Handler) recover(ctx context.Context, cause error) error {
	var wait time.Duration
	switch d := h.classifier.Classify(cause).(type) {
	case classify.Wait:
		wait = d.For
	case classify.RetryProbe:
		wait = d.Wait
	case classify.Fatal:
		return d.Err
	}

	h.log.Warn("inbox paused", "wait", wait, "error", cause)
	if err := sleepCtx(ctx, wait); err != nil {
		return err
	}
	h.checkpoint = h.now().Unix()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
