// Package content implements content rendering for the Dread Remote Console
// history pane. Submitted Lua snippets are syntax-highlighted with Chroma
// before they are appended to the window.
package content

import (
	"fmt"
	"strings"
	"sync"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
)

// Renderer implements the ContentRenderer interface. Highlighting failures
// fall back to the plain snippet; rendering must never block the input loop.
type Renderer struct {
	mu        sync.RWMutex
	formatter chroma.Formatter
	style     *chroma.Style
	lexer     chroma.Lexer
}

// NewRenderer creates a renderer with the given chroma style name, falling
// back to the GitHub style when the name is unknown.
func NewRenderer(themeName string) (*Renderer, error) {
	formatter := formatters.Get("terminal16m")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	style, ok := styles.Registry[themeName]
	if !ok {
		style = styles.GitHub
	}

	lexer := lexers.Get("lua")
	if lexer == nil {
		lexer = lexers.Fallback
	}

	return &Renderer{
		formatter: formatter,
		style:     style,
		lexer:     chroma.Coalesce(lexer),
	}, nil
}

// HighlightLua applies syntax highlighting to a Lua snippet. On any
// tokenization or formatting error the snippet is returned unchanged.
func (r *Renderer) HighlightLua(code string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	iterator, err := r.lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var highlighted strings.Builder
	if err := r.formatter.Format(&highlighted, r.style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(highlighted.String(), "\n")
}

// SetTheme switches the highlighting style by name.
func (r *Renderer) SetTheme(name string) error {
	style, ok := styles.Registry[name]
	if !ok {
		return fmt.Errorf("theme '%s' not found", name)
	}
	r.mu.Lock()
	r.style = style
	r.mu.Unlock()
	return nil
}
