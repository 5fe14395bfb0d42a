// Package shear implements the reply rate breaker: a fail-safe that
// halts the bot if it starts producing responses too quickly, which
// would indicate the matching logic has gone wrong.
package shear

import "time"

// Shear is a decaying-counter circuit breaker. It behaves as a leaky
// bucket whose leak rate is one unit per distance interval and whose
// capacity is threshold: short bursts pass, sustained excess trips.
//
// Not safe for concurrent use; the consumer loop is its only caller.
type Shear struct {
	pitch     int
	focus     time.Time
	threshold int
	distance  time.Duration
}

// New creates a Shear. A trip occurs once more than threshold actions
// remain counted after decay.
func New(threshold int, distance time.Duration) *Shear {
	return &Shear{threshold: threshold, distance: distance}
}

// TryAdmit decays the counter by elapsed time and reports whether
// another action may proceed. A false return means the breaker has
// tripped; callers must treat this as fatal, not as throttling.
func (s *Shear) TryAdmit(now time.Time) bool {
	for s.pitch > 0 && now.Sub(s.focus) > s.distance {
		s.pitch--
		s.focus = s.focus.Add(s.distance)
	}
	return s.pitch <= s.threshold
}

// RecordAction counts a completed action. The first action after the
// counter drains starts a fresh decay window.
func (s *Shear) RecordAction(now time.Time) {
	if s.pitch == 0 {
		s.focus = now
	}
	s.pitch++
}

// Pitch returns the current count of recent actions.
func (s *Shear) Pitch() int { return s.pitch }
