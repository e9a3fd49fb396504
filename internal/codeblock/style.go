package codeblock

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultStyle is the chroma style used for generated stylesheets.
const DefaultStyle = "monokai"

// StyleSheet returns the CSS for the token classes emitted by SetText.
func StyleSheet(name string) (string, error) {
	style := styles.Get(name)
	if style == nil {
		style = styles.Fallback
	}

	var b strings.Builder
	f := html.New(html.WithClasses(true))
	if err := f.WriteCSS(&b, style); err != nil {
		return "", fmt.Errorf("write css: %w", err)
	}
	return b.String(), nil
}
