// Package consumer implements the submission stream loop: it polls the
// platform feed, deduplicates and checkpoints events, evaluates the
// matching rules, and posts replies under the rate breaker's watch.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"batchbot/internal/classify"
	"batchbot/internal/message"
	"batchbot/internal/model"
	"batchbot/internal/platform"
	"batchbot/internal/rules"
	"batchbot/internal/shear"
	"batchbot/internal/storage"
)

// ErrTripped is returned by Run when the reply shear trips. It is
// terminal: sustained excess means the matching logic has gone wrong and
// an operator must investigate before a restart.
var ErrTripped = errors.New("reply shear tripped: made too many responses over time")

// State is the consumer's lifecycle state, exposed for observability.
type State int

// Consumer states. Tripped and Fatal are terminal.
const (
	StateRunning State = iota
	StatePaused
	StateTripped
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateTripped:
		return "tripped"
	case StateFatal:
		return "fatal"
	}
	return "unknown"
}

const (
	defaultWindowSize = 100
	defaultIdleDelay  = time.Second

	// Events less than this many seconds ahead of the checkpoint do not
	// advance it, to tolerate the feed's small reordering window.
	dampingSlack = 10
)

// Consumer is the stream processing loop. Not safe for concurrent use;
// exactly one instance per process is assumed.
type Consumer struct {
	feed       platform.Feed
	actor      platform.Actor
	store      storage.Store
	engine     *rules.Engine
	shear      *shear.Shear
	renderer   *message.Renderer
	classifier *classify.Classifier
	selfName   string
	log        *slog.Logger

	checkpoint float64
	window     *dedupWindow
	state      State

	idleDelay time.Duration
	now       func() time.Time
}

// New creates a Consumer replying as selfName.
func New(feed platform.Feed, actor platform.Actor, store storage.Store,
	engine *rules.Engine, sh *shear.Shear, renderer *message.Renderer,
	selfName string, log *slog.Logger) *Consumer {
	return &Consumer{
		feed:       feed,
		actor:      actor,
		store:      store,
		engine:     engine,
		shear:      sh,
		renderer:   renderer,
		classifier: classify.ForConsumer(),
		selfName:   selfName,
		log:        log,
		window:     newDedupWindow(defaultWindowSize),
		idleDelay:  defaultIdleDelay,
		now:        time.Now,
	}
}

// State returns the current lifecycle state.
func (c *Consumer) State() State { return c.state }

// Run drives the loop until ctx is cancelled or a terminal condition is
// reached. A nil return means ctx was cancelled; any error return means
// the process should exit non-zero.
func (c *Consumer) Run(ctx context.Context) error {
	c.checkpoint = float64(c.now().Unix())
	c.state = StateRunning
	c.log.Info("stream consumer started", "checkpoint", int64(c.checkpoint))

	for {
		if ctx.Err() != nil {
			return nil
		}

		post, err := c.feed.PollNext(ctx)
		if err != nil {
			if err := c.recover(ctx, err); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				c.state = StateFatal
				return err
			}
			continue
		}

		if post == nil {
			if err := sleepCtx(ctx, c.idleDelay); err != nil {
				return nil
			}
			continue
		}

		if err := c.processPost(ctx, post); err != nil {
			if errors.Is(err, ErrTripped) {
				c.state = StateTripped
				return ErrTripped
			}
			if err := c.recover(ctx, err); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				c.state = StateFatal
				return err
			}
		}
	}
}

// processPost runs one submission through the dedup, filter, verdict and
// action pipeline. Returned errors carry the upstream taxonomy and are
// routed through the failure classifier by Run.
func (c *Consumer) processPost(ctx context.Context, p *model.Post) error {
	if c.window.Contains(p.ID) {
		c.log.Debug("skip: duplicate", "post", p.ID)
		return nil
	}

	if float64(p.CreatedUTC) < c.checkpoint {
		c.log.Info("skip: earlier item", "post", p.ID)
		return nil
	}

	c.advanceCheckpoint(float64(p.CreatedUTC))
	c.window.Insert(p.ID)

	if !p.IsSelf {
		c.log.Info("skip: link submission", "post", p.ID)
		return nil
	}

	replied, err := c.actor.HasReplyFrom(ctx, p.ID, c.selfName)
	if err != nil {
		if isTargetGone(err) {
			// Deleted between the listing fetch and the probe.
			c.log.Warn("skip: target vanished", "post", p.ID)
			return nil
		}
		return err
	}
	if replied {
		c.log.Info("skip: already replied", "post", p.ID)
		return nil
	}

	verdict := c.engine.Evaluate(p.Body)
	if verdict == 0 {
		c.log.Info("skip: no match", "post", p.ID)
		return nil
	}

	if !c.shear.TryAdmit(c.now()) {
		return ErrTripped
	}

	body := c.renderer.Render(verdict, message.Context{Author: p.Author})
	if body == "" {
		c.log.Warn("skip: no message for verdict", "post", p.ID, "verdict", int64(verdict))
		return nil
	}

	c.log.Info("match", "post", p.ID, "author", p.Author, "verdict", int64(verdict))

	replyID, err := c.actor.Reply(ctx, p.ID, body)
	if err != nil {
		if isTargetGone(err) {
			c.log.Warn("skip: target vanished before reply", "post", p.ID)
			return nil
		}
		return err
	}

	if err := c.store.UpsertReply(ctx, &model.Reply{
		TargetID:         p.ID,
		ReplyID:          replyID,
		TargetCreatedUTC: p.CreatedUTC,
		ContentFlags:     verdict,
		IsSet:            true,
	}); err != nil {
		return err
	}
	c.shear.RecordAction(c.now())

	// Second pass appends the deletion hint, which needs the reply id.
	edited := c.renderer.Render(verdict, message.Context{Author: p.Author, ReplyID: replyID})
	if err := c.actor.EditReply(ctx, replyID, edited); err != nil {
		c.log.Warn("edit reply", "reply", replyID, "error", err)
	}

	c.log.Info("respond", "post", p.ID, "reply", replyID)
	return nil
}

// isTargetGone reports whether err means the post no longer exists.
// A vanished target is a data anomaly handled in place, never a reason
// to stop the stream.
func isTargetGone(err error) bool {
	var notFound *platform.NotFoundError
	return errors.As(err, &notFound)
}

// advanceCheckpoint moves the resume watermark toward t with damping:
// only events more than dampingSlack seconds ahead advance it, and then
// only by half the gap, so small out-of-order arrivals are not skipped.
func (c *Consumer) advanceCheckpoint(t float64) {
	if gap := t - c.checkpoint - dampingSlack; gap > 0 {
		c.checkpoint += 0.5 * gap
	}
}

// recover applies the classifier's decision for an upstream error. A nil
// return means the stream may resume (with the checkpoint re-anchored to
// now); an error return is fatal to the loop.
func (c *Consumer) recover(ctx context.Context, cause error) error {
	switch d := c.classifier.Classify(cause).(type) {
	case classify.Wait:
		c.state = StatePaused
		c.log.Warn("pausing stream", "wait", d.For, "error", cause)
		if err := sleepCtx(ctx, d.For); err != nil {
			return err
		}

	case classify.RetryProbe:
		c.state = StatePaused
		c.log.Warn("probing after transport failure", "attempts", d.Attempts, "wait", d.Wait, "error", cause)
		if err := sleepCtx(ctx, d.Wait); err != nil {
			return err
		}
		backoff := retry.WithMaxRetries(uint64(d.Attempts-1), retry.NewConstant(d.Wait))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := c.feed.Probe(ctx); err != nil {
				var req *platform.RequestError
				if errors.As(err, &req) {
					c.log.Debug("probe failed, retrying", "error", err)
					return retry.RetryableError(err)
				}
				return err
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("probe exhausted: %w", err)
		}

	case classify.Fatal:
		return d.Err
	}

	// Resume from now; events produced during the pause are skipped
	// rather than replayed.
	c.checkpoint = float64(c.now().Unix())
	c.state = StateRunning
	c.log.Info("resuming stream", "checkpoint", int64(c.checkpoint))
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
