// Package reviewer implements the re-check loop: it periodically
// revisits recorded replies and reverses them once the target post has
// been fixed, or marks them obstructed when others have replied.
package reviewer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"batchbot/internal/classify"
	"batchbot/internal/model"
	"batchbot/internal/platform"
	"batchbot/internal/rules"
	"batchbot/internal/storage"
)

const (
	defaultInterval  = 30 * time.Second
	defaultRetention = 10 * 24 * time.Hour
)

// Reviewer re-evaluates pending replies on a fixed interval. It runs
// independently of the stream consumer; the store is the only shared
// resource.
type Reviewer struct {
	store      storage.Store
	actor      platform.Actor
	engine     *rules.Engine
	classifier *classify.Classifier
	log        *slog.Logger

	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

// New creates a Reviewer with the default 30s interval and 10 day
// retention window.
func New(store storage.Store, actor platform.Actor, engine *rules.Engine, log *slog.Logger) *Reviewer {
	return &Reviewer{
		store:      store,
		actor:      actor,
		engine:     engine,
		classifier: classify.ForReviewer(),
		log:        log,
		interval:   defaultInterval,
		retention:  defaultRetention,
		now:        time.Now,
	}
}

// SetInterval overrides the default poll interval.
func (r *Reviewer) SetInterval(d time.Duration) { r.interval = d }

// SetRetention overrides the default retention window.
func (r *Reviewer) SetRetention(d time.Duration) { r.retention = d }

// Run drives re-check ticks until ctx is cancelled. Unclassified errors
// terminate the loop; transient platform errors pause it.
func (r *Reviewer) Run(ctx context.Context) error {
	for {
		if err := r.Tick(ctx); err != nil {
			switch d := r.classifier.Classify(err).(type) {
			case classify.Wait:
				r.log.Warn("recheck paused", "wait", d.For, "error", err)
				if serr := sleepCtx(ctx, d.For); serr != nil {
					return nil
				}
				continue
			case classify.RetryProbe:
				r.log.Warn("recheck paused", "wait", d.Wait, "error", err)
				if serr := sleepCtx(ctx, d.Wait); serr != nil {
					return nil
				}
				continue
			case classify.Fatal:
				return d.Err
			}
		}

		if err := sleepCtx(ctx, r.interval); err != nil {
			return nil
		}
	}
}

// Tick performs one full re-check pass. Running a tick twice on
// unchanged upstream state produces no additional writes.
func (r *Reviewer) Tick(ctx context.Context) error {
	pending, err := r.store.PendingForRecheck(ctx, r.now(), r.retention)
	if err != nil {
		return err
	}

	for _, row := range pending {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.review(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reviewer) review(ctx context.Context, row model.Reply) error {
	post, err := r.actor.Fetch(ctx, row.TargetID)
	if err != nil {
		var notFound *platform.NotFoundError
		if errors.As(err, &notFound) {
			// The target vanished; nothing left to reverse.
			r.log.Warn("skip: recorded target not found", "target", row.TargetID)
			return r.store.ClearReply(ctx, row.TargetID)
		}
		return err
	}

	verdict := r.engine.Evaluate(post.Body)
	if verdict == 0 {
		return r.reverse(ctx, row)
	}

	if verdict != row.ContentFlags {
		return r.store.UpdateFlags(ctx, row.TargetID, verdict)
	}
	return nil
}

// reverse removes the bot's reply now that the author has fixed their
// post, unless others have replied to it in the meantime.
func (r *Reviewer) reverse(ctx context.Context, row model.Reply) error {
	if _, err := r.actor.FetchComment(ctx, row.ReplyID); err != nil {
		var notFound *platform.NotFoundError
		if errors.As(err, &notFound) {
			// The reply already disappeared, possibly deleted by hand.
			return r.store.ClearReply(ctx, row.TargetID)
		}
		return err
	}

	responses, err := r.actor.RepliesTo(ctx, row.ReplyID)
	if err != nil {
		return err
	}
	if len(responses) > 0 {
		// Deleting would erase context others are replying to.
		r.log.Info("skip: replies found on comment", "reply", row.ReplyID)
		return r.store.MarkObstructed(ctx, row.TargetID)
	}

	if err := r.actor.Delete(ctx, row.ReplyID); err != nil {
		return err
	}
	if err := r.store.ClearReply(ctx, row.TargetID); err != nil {
		return err
	}
	r.log.Info("deleted comment", "reply", row.ReplyID, "target", row.TargetID)
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
