package markup

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type spanKind int

const (
	spanText spanKind = iota
	spanCode
	spanStrong
	spanEm
	spanStrike
	spanLink
)

// span is a tagged region of an inline line. Container kinds carry
// children, leaf kinds carry text.
type span struct {
	kind     spanKind
	text     string
	href     string
	children []span
}

// matcher tries to recognise a span starting at s[i]. It returns the span
// and the index just past it.
type matcher func(s string, i int) (span, int, bool)

// Matchers run in order at every trigger byte; the first hit wins. Code
// comes first so its contents are never reinterpreted. Link and emphasis
// matchers parse their contents recursively, so the slice is assigned in
// init.
var matchers []matcher

func init() {
	matchers = []matcher{
		matchCode,
		matchLink,
		matchStrong,
		matchStrike,
		matchEm,
	}
}

func isTrigger(c byte) bool {
	switch c {
	case '`', '[', '*', '_', '~':
		return true
	}
	return false
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func parseSpans(s string) []span {
	var out []span
	var plain strings.Builder
	flush := func() {
		if plain.Len() > 0 {
			out = append(out, span{kind: spanText, text: plain.String()})
			plain.Reset()
		}
	}

	for i := 0; i < len(s); {
		if isTrigger(s[i]) {
			if sp, end, ok := matchAt(s, i); ok {
				flush()
				out = append(out, sp)
				i = end
				continue
			}
		}
		plain.WriteByte(s[i])
		i++
	}
	flush()
	return out
}

func matchAt(s string, i int) (span, int, bool) {
	for _, m := range matchers {
		if sp, end, ok := m(s, i); ok {
			return sp, end, true
		}
	}
	return span{}, 0, false
}

func matchCode(s string, i int) (span, int, bool) {
	if s[i] != '`' {
		return span{}, 0, false
	}
	j := strings.IndexByte(s[i+1:], '`')
	if j <= 0 {
		return span{}, 0, false
	}
	return span{kind: spanCode, text: s[i+1 : i+1+j]}, i + 2 + j, true
}

func matchLink(s string, i int) (span, int, bool) {
	if s[i] != '[' {
		return span{}, 0, false
	}
	k := strings.IndexByte(s[i+1:], ']')
	if k <= 0 {
		return span{}, 0, false
	}
	open := i + 1 + k + 1
	if open >= len(s) || s[open] != '(' {
		return span{}, 0, false
	}
	m := strings.IndexByte(s[open+1:], ')')
	if m <= 0 {
		return span{}, 0, false
	}
	label := s[i+1 : i+1+k]
	href := s[open+1 : open+1+m]
	return span{kind: spanLink, href: href, children: parseSpans(label)}, open + 2 + m, true
}

// matchDelimited recognises delim inner delim where inner is non-empty and
// does not start or end with a space.
func matchDelimited(s string, i int, delim string, kind spanKind) (span, int, bool) {
	if !strings.HasPrefix(s[i:], delim) {
		return span{}, 0, false
	}
	start := i + len(delim)
	j := strings.Index(s[start:], delim)
	if j <= 0 {
		return span{}, 0, false
	}
	inner := s[start : start+j]
	if inner[0] == ' ' || inner[len(inner)-1] == ' ' {
		return span{}, 0, false
	}
	return span{kind: kind, children: parseSpans(inner)}, start + j + len(delim), true
}

func matchStrong(s string, i int) (span, int, bool) {
	if sp, end, ok := matchDelimited(s, i, "**", spanStrong); ok {
		return sp, end, true
	}
	if i > 0 && isWordByte(s[i-1]) {
		return span{}, 0, false
	}
	sp, end, ok := matchDelimited(s, i, "__", spanStrong)
	if !ok || end < len(s) && isWordByte(s[end]) {
		return span{}, 0, false
	}
	return sp, end, true
}

func matchStrike(s string, i int) (span, int, bool) {
	return matchDelimited(s, i, "~~", spanStrike)
}

func matchEm(s string, i int) (span, int, bool) {
	c := s[i]
	if c != '*' && c != '_' {
		return span{}, 0, false
	}
	if i+1 < len(s) && s[i+1] == c {
		return span{}, 0, false
	}
	if c == '_' && i > 0 && isWordByte(s[i-1]) {
		return span{}, 0, false
	}
	start := i + 1
	j := strings.IndexByte(s[start:], c)
	if j <= 0 {
		return span{}, 0, false
	}
	inner := s[start : start+j]
	if inner[0] == ' ' || inner[len(inner)-1] == ' ' {
		return span{}, 0, false
	}
	end := start + j + 1
	if c == '_' && end < len(s) && isWordByte(s[end]) {
		return span{}, 0, false
	}
	return span{kind: spanEm, children: parseSpans(inner)}, end, true
}

func composeSpans(spans []span) []*html.Node {
	nodes := make([]*html.Node, 0, len(spans))
	for _, sp := range spans {
		nodes = append(nodes, composeSpan(sp))
	}
	return nodes
}

func composeSpan(sp span) *html.Node {
	switch sp.kind {
	case spanCode:
		return Element(atom.Code, "bg-base-300 px-1 py-0.5 rounded text-sm font-mono", Text(sp.text))
	case spanStrong:
		return Element(atom.Strong, "font-bold", composeSpans(sp.children)...)
	case spanEm:
		return Element(atom.Em, "italic", composeSpans(sp.children)...)
	case spanStrike:
		return Element(atom.Del, "line-through", composeSpans(sp.children)...)
	case spanLink:
		a := Element(atom.A, "text-primary hover:underline", composeSpans(sp.children)...)
		SetAttr(a, "href", sp.href)
		SetAttr(a, "target", "_blank")
		SetAttr(a, "rel", "noopener noreferrer")
		return a
	default:
		return Text(sp.text)
	}
}

// Inline converts one line of restricted Markdown (inline code, links,
// strong, emphasis, strikethrough) into nodes. It keeps no state.
func Inline(line string) []*html.Node {
	return composeSpans(parseSpans(line))
}

// InlineHTML is Inline serialized to an HTML fragment.
func InlineHTML(line string) string {
	var b strings.Builder
	for _, n := range Inline(line) {
		if err := html.Render(&b, n); err != nil {
			return ""
		}
	}
	return b.String()
}
