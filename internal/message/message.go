// Package message renders the human-readable reply text for a verdict.
// The core engine only cares whether a render is non-empty; everything
// in here is presentation.
package message

import (
	"strings"
	"text/template"

	"batchbot/internal/model"
	"batchbot/internal/rules"
)

// Context carries the per-reply substitutions.
type Context struct {
	Author  string
	ReplyID string // set on the edit pass to include the deletion hint
}

type templateData struct {
	Context
	BotName     string
	Owner       string
	PlatformURL string
}

// Renderer produces reply bodies. The zero value is not usable; use New.
type Renderer struct {
	botName     string
	owner       string
	platformURL string

	codeBlock  *template.Template
	inlineCode *template.Template
}

// New creates a Renderer signing messages as botName on behalf of owner.
func New(botName, owner, platformURL string) *Renderer {
	return &Renderer{
		botName:     botName,
		owner:       owner,
		platformURL: strings.TrimRight(platformURL, "/"),
		codeBlock:   template.Must(template.New("code_block").Parse(codeBlockBody + signature)),
		inlineCode:  template.Must(template.New("inline_code").Parse(inlineCodeBody + signature)),
	}
}

// Render returns the reply body for the given verdict, or "" when the
// verdict warrants no reply. Inline-code misuse takes priority over the
// plain missing-code-block message.
func (r *Renderer) Render(flags model.Verdict, ctx Context) string {
	var tmpl *template.Template
	switch {
	case flags&rules.InlineCodeMisuse != 0:
		tmpl = r.inlineCode
	case flags&rules.MissingCodeBlock != 0:
		tmpl = r.codeBlock
	default:
		return ""
	}

	var b strings.Builder
	err := tmpl.Execute(&b, templateData{
		Context:     ctx,
		BotName:     r.botName,
		Owner:       r.owner,
		PlatformURL: r.platformURL,
	})
	if err != nil {
		// Templates are static and parsed at startup; an execute
		// failure is a programming error.
		panic(err)
	}
	return b.String()
}

const codeBlockBody = `Hi {{.Author}},

It looks like your Batch file code isn’t wrapped in a code block. To format code correctly on **new.reddit.com**, highlight your code and select *Code Block* in the editing toolbar.

If you’re on **old.reddit.com**, separate the code from your text with a blank line and precede each line of code with **4 spaces** or a **tab**. E.g.,

    This is normal text.

        @echo off
        echo This is code!

> This is normal text.
>
>     @echo off
>     echo This is code!

---

`

const inlineCodeBody = `Hi {{.Author}},

It looks like you used *inline code* formatting where a **code block** should have been used.

The inline code text styling is for short fragments inside a paragraph. For larger sequences of code, wrap the whole block: select your code and click the *Code Block* button.

---

`

const signature = `^(*Beep-boop. I am a bot! If I have done something silly please contact*) [*^(the owner)*]({{.PlatformURL}}/message/compose?to={{.Owner}}&subject=/u/{{.BotName}}%20feedback)^.{{if .ReplyID}} ^| [*^(Delete)*]({{.PlatformURL}}/message/compose?to={{.BotName}}&subject=!delete%20{{.ReplyID}}&message=None){{end}}
`
