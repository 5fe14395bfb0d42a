// Package rules implements the content matching engine. Each rule is a
// pure predicate over a post body with an assigned bit flag; evaluating
// a body yields a bitmask of every rule that matched.
package rules

import (
	"regexp"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"batchbot/internal/model"
)

// Assigned rule flags. Flags are stable identifiers: stored verdicts in
// the reply table are diffed bit-by-bit against fresh evaluations, so a
// flag is never reused for different semantics once assigned.
const (
	MissingCodeBlock model.Verdict = 1 << iota
	InlineCodeMisuse
)

// Rule is a named, side-effect-free predicate with its assigned flag.
type Rule struct {
	Name string
	Flag model.Verdict
	Test func(text string) bool
}

// Engine evaluates an ordered set of rules against post bodies.
type Engine struct {
	rules []Rule
}

// NewEngine builds an engine from an explicit rule list.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Default returns the engine with the standard Batch file rules.
func Default() *Engine {
	return NewEngine([]Rule{
		{Name: "missing_code_block", Flag: MissingCodeBlock, Test: missingCodeBlockRule},
		{Name: "inline_code_misuse", Flag: InlineCodeMisuse, Test: inlineCodeMisuseRule},
	})
}

// Evaluate runs every rule over text and ORs the flags of those that
// matched. All rules run every time; flags are independent, not
// mutually exclusive.
func (e *Engine) Evaluate(body string) model.Verdict {
	var v model.Verdict
	for _, r := range e.rules {
		if r.Test(body) {
			v |= r.Flag
		}
	}
	return v
}

// Flags returns the OR of every assigned flag.
func (e *Engine) Flags() model.Verdict {
	var v model.Verdict
	for _, r := range e.rules {
		v |= r.Flag
	}
	return v
}

var (
	missingCodeBlock = regexp.MustCompile(`(?im)^(` +
		`@echo off *` +
		`|if (not )?errorlevel \d+ \(.*` +
		`|if (not )?defined \w+ \(.*` +
		`|if (/i )?(not )?["'.\w%!-]+( *== *|( +(equ|neq|lss|leq|gtr|geq) +))?["'.\w%!-]+ ?\(.*` +
		`|goto :?\w+` +
		`|set *(/a|/p)? *["\w]+=["\w ]+` +
		`)$`)

	inlineCodeLine = regexp.MustCompile("(?m)^ {0,3}`(.*)`[\t ]*$")

	consecutiveInlineCodeLines = regexp.MustCompile(
		"(?m)^ {0,3}`(.*)`[\t ]*\n\n?`.*\n\n?`")
)

// missingCodeBlockRule fires when a line of Batch syntax appears outside
// any recognized markdown code block. Indented code blocks exclude
// themselves through the line anchoring (the leading spaces break the
// match); fenced blocks are excluded by position.
func missingCodeBlockRule(body string) bool {
	src := []byte(body)
	locs := missingCodeBlock.FindAllIndex(src, -1)
	if len(locs) == 0 {
		return false
	}
	spans := codeBlockSpans(src)
	for _, loc := range locs {
		if !withinSpans(loc[0], spans) {
			return true
		}
	}
	return false
}

// inlineCodeMisuseRule detects code blocks faked out of consecutive
// single-backtick lines. Two or fewer wrapped lines never fire, to avoid
// flagging legitimate inline code. Otherwise the backtick wrappers are
// stripped and the primary rule is re-run: a match on the stripped text
// that is absent from the raw text means the backticks were hiding
// actual code.
func inlineCodeMisuseRule(body string) bool {
	if !consecutiveInlineCodeLines.MatchString(body) {
		return false
	}

	matches := inlineCodeLine.FindAllString(body, -1)
	if len(matches) <= 2 {
		return false
	}

	stripped := inlineCodeLine.ReplaceAllString(body, "$1")
	return missingCodeBlockRule(stripped) && !missingCodeBlockRule(body)
}

var markdown = goldmark.New()

type span struct {
	start, stop int
}

// codeBlockSpans returns the byte ranges of every fenced or indented
// code block line in src, per the markdown parser.
func codeBlockSpans(src []byte) []span {
	doc := markdown.Parser().Parse(text.NewReader(src), parser.WithContext(parser.NewContext()))

	var spans []span
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Kind() != ast.KindFencedCodeBlock && n.Kind() != ast.KindCodeBlock {
			return ast.WalkContinue, nil
		}
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			spans = append(spans, span{start: seg.Start, stop: seg.Stop})
		}
		return ast.WalkSkipChildren, nil
	})
	return spans
}

func withinSpans(pos int, spans []span) bool {
	for _, s := range spans {
		if pos >= s.start && pos < s.stop {
			return true
		}
	}
	return false
}
