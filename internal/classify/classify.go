// Package classify maps upstream platform errors to explicit recovery
// decisions consumed by the loop state machines.
package classify

import (
	"errors"
	"time"

	"batchbot/internal/platform"
)

// Decision is the tagged result of classifying an upstream error.
// Exactly one of Wait, RetryProbe or Fatal is returned by Classify.
type Decision interface {
	isDecision()
}

// Wait pauses the loop for a fixed duration and resumes the stream from
// "now": the caller re-anchors its checkpoint before resuming, accepting
// that events produced during the wait are skipped.
type Wait struct {
	For time.Duration
}

// RetryProbe waits, then attempts a minimal probe request; on probe
// success the stream resumes. Exhausting Attempts is fatal.
type RetryProbe struct {
	Attempts int
	Wait     time.Duration
}

// Fatal terminates the loop. The process exits and external supervision
// decides whether to restart.
type Fatal struct {
	Err error
}

func (Wait) isDecision()       {}
func (RetryProbe) isDecision() {}
func (Fatal) isDecision()      {}

// Classifier holds the wait durations for a loop. The stream consumer
// and the reviewer use different pauses for the same error classes.
type Classifier struct {
	RateLimitWait time.Duration
	ResponseWait  time.Duration
	ProbeWait     time.Duration
	ProbeAttempts int
}

// ForConsumer returns the classifier used by the submission stream.
func ForConsumer() *Classifier {
	return &Classifier{
		RateLimitWait: 12 * time.Minute,
		ResponseWait:  5 * time.Minute,
		ProbeWait:     5 * time.Minute,
		ProbeAttempts: 3,
	}
}

// ForReviewer returns the classifier used by the re-check and inbox
// loops, which recover with much shorter pauses.
func ForReviewer() *Classifier {
	return &Classifier{
		RateLimitWait: 11 * time.Minute,
		ResponseWait:  5 * time.Second,
		ProbeWait:     5 * time.Second,
		ProbeAttempts: 3,
	}
}

// Classify maps err to a recovery decision. Anything outside the known
// transient taxonomy is Fatal.
func (c *Classifier) Classify(err error) Decision {
	var rateLimit *platform.RateLimitError
	if errors.As(err, &rateLimit) {
		return Wait{For: c.RateLimitWait}
	}

	var response *platform.ResponseError
	if errors.As(err, &response) {
		return Wait{For: c.ResponseWait}
	}

	var request *platform.RequestError
	if errors.As(err, &request) {
		return RetryProbe{Attempts: c.ProbeAttempts, Wait: c.ProbeWait}
	}

	return Fatal{Err: err}
}
