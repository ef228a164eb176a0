package server

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/papercomputeco/groqchat/pkg/llm"
)

// markdown renders assistant replies. Raw HTML in replies is dropped.
type markdown struct {
	md goldmark.Markdown
}

func newMarkdown() *markdown {
	return &markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// renderTurn renders assistant turns as markdown and user turns as escaped
// text.
func (m *markdown) renderTurn(turn llm.Turn) template.HTML {
	if turn.Role != llm.RoleAssistant {
		return template.HTML("<p>" + template.HTMLEscapeString(turn.Content) + "</p>")
	}

	var buf bytes.Buffer
	if err := m.md.Convert([]byte(turn.Content), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(turn.Content) + "</pre>")
	}
	return template.HTML(buf.String())
}
