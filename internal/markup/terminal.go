package markup

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// rendererCache provides width-keyed caching of glamour renderers.
var rendererCache sync.Map // map[int]*glamour.TermRenderer

func termRenderer(width int) (*glamour.TermRenderer, error) {
	if cached, ok := rendererCache.Load(width); ok {
		return cached.(*glamour.TermRenderer), nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}

	rendererCache.Store(width, renderer)
	return renderer, nil
}

// Terminal renders Markdown to ANSI-styled text wrapped at width columns.
// On error the original text is returned unchanged.
func Terminal(width int) Renderer {
	if width <= 0 {
		width = 80
	}
	return Func(func(text string) string {
		if text == "" {
			return ""
		}
		r, err := termRenderer(width)
		if err != nil {
			return text
		}
		out, err := r.Render(text)
		if err != nil {
			return text
		}
		return strings.Trim(out, "\n")
	})
}
