// Package markup converts raw assistant text to display markup.
//
// Every Renderer is a pure function of its input: rendering the same text
// twice yields identical output, which is what lets the turn machine
// re-render the cumulative answer buffer on every frame.
package markup

import (
	"bytes"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Renderer converts text to safe markup.
type Renderer interface {
	Render(text string) string
}

// Func adapts a function to the Renderer interface.
type Func func(text string) string

// Render implements Renderer.
func (f Func) Render(text string) string {
	return f(text)
}

// Plain returns text unchanged.
var Plain Renderer = Func(func(text string) string { return text })

// HTMLRenderer renders Markdown to sanitized HTML.
type HTMLRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// HTML creates a GitHub-flavoured Markdown renderer whose output is
// sanitized with the user-generated-content policy. Math delimiters are
// left in the text for a client-side typesetter.
func HTML() *HTMLRenderer {
	return &HTMLRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// Render implements Renderer.
func (r *HTMLRenderer) Render(text string) string {
	if text == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "<p>" + html.EscapeString(text) + "</p>"
	}
	return r.policy.Sanitize(buf.String())
}
