// Package model defines the domain types used across the application.
package model

// Verdict is a bitmask of matched rules. Bit i set means rule with flag
// 1<<i matched; zero means no rule matched. Flags are stable: once a flag
// is assigned to a rule it is never reused for different semantics,
// because stored ContentFlags are reconciled bit-by-bit later.
type Verdict int64

// Post is a single submission pulled from the platform feed.
type Post struct {
	ID         string
	Author     string
	CreatedUTC int64
	Body       string
	IsSelf     bool // text post, as opposed to a link submission
	Permalink  string
}

// Comment is a reply on a post, either the bot's own or someone else's.
type Comment struct {
	ID     string
	Author string
	Body   string
}

// Message is a private message from the bot's inbox.
type Message struct {
	ID         string
	Author     string
	Subject    string
	CreatedUTC int64
	WasComment bool // comment replies land in the inbox too; those are ignored
}

// Reply is the persisted record of an action taken on a target post.
// At most one row exists per TargetID.
type Reply struct {
	TargetID         string
	ReplyID          string
	TargetCreatedUTC int64
	ContentFlags     Verdict
	IsSet            bool // action is live and eligible for reversal
	IsObstructed     bool // reversal blocked by responses from others
}
