package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// markdown renders committed assistant turns. The renderer is rebuilt only
// when the width changes.
type markdown struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
}

// newMarkdown uses style, or the dark/light style matching the terminal
// background when style is empty.
func newMarkdown(style string) *markdown {
	if style == "" {
		style = "light"
		if termenv.HasDarkBackground() {
			style = "dark"
		}
	}
	return &markdown{style: style}
}

// render returns content rendered for width, or content unchanged when it
// cannot be rendered.
func (m *markdown) render(content string, width int) string {
	if content == "" {
		return ""
	}

	if m.renderer == nil || m.width != width {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return content
		}
		m.renderer = renderer
		m.width = width
	}

	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(rendered, "\n")
}
