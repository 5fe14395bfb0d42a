package message

import (
	"strings"
	"testing"

	"batchbot/internal/rules"
)

func TestRender(t *testing.T) {
	r := New("BatchBot", "owner", "https://www.reddit.com")

	t.Run("zero verdict renders nothing", func(t *testing.T) {
		if got := r.Render(0, Context{Author: "someone"}); got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})

	t.Run("missing code block message", func(t *testing.T) {
		got := r.Render(rules.MissingCodeBlock, Context{Author: "someone"})
		if !strings.Contains(got, "Hi someone") {
			t.Errorf("missing greeting: %q", got)
		}
		if !strings.Contains(got, "code block") {
			t.Errorf("missing guidance: %q", got)
		}
	})

	t.Run("inline misuse takes priority", func(t *testing.T) {
		got := r.Render(rules.MissingCodeBlock|rules.InlineCodeMisuse, Context{Author: "someone"})
		if !strings.Contains(got, "inline code") {
			t.Errorf("want inline code message, got: %q", got)
		}
	})

	t.Run("deletion hint only with reply id", func(t *testing.T) {
		without := r.Render(rules.MissingCodeBlock, Context{Author: "a"})
		if strings.Contains(without, "!delete") {
			t.Errorf("unexpected deletion hint: %q", without)
		}

		with := r.Render(rules.MissingCodeBlock, Context{Author: "a", ReplyID: "c42"})
		if !strings.Contains(with, "!delete%20c42") {
			t.Errorf("missing deletion hint: %q", with)
		}
	})
}
