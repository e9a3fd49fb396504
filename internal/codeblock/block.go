// Package codeblock builds code block fragments: a header with the
// language label and a copy control, and a syntax highlighted body.
package codeblock

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/capitalize-ai/chatstream/internal/markup"
)

// ActionCopyBlock is the data-action of a code block copy button.
const ActionCopyBlock = "copy-code-block"

const (
	classContainer = "flex flex-col w-full code-block-container overflow-hidden my-2"
	classHeader    = "flex justify-between items-center bg-base-300 px-4 py-1 rounded-t"
	classLanguage  = "language-info text-xs font-mono"
	classPre       = "bg-base-200 p-4 overflow-x-auto text-sm"
)

// Block is one rendered code block.
type Block struct {
	Root     *html.Node
	Language string

	label  *html.Node
	button *html.Node
	pre    *html.Node
	code   *html.Node

	text  string
	lexer chroma.Lexer
}

// Create builds an empty code block for language, which may be "".
func Create(language string) *Block {
	language = strings.TrimSpace(language)
	b := &Block{Language: language}

	b.label = markup.Element(atom.Span, classLanguage)
	b.button = CopyButton(ActionCopyBlock, "Copy code")
	header := markup.Element(atom.Div, classHeader, b.label, b.button)

	b.code = markup.Element(atom.Code, "chroma")
	b.pre = markup.Element(atom.Pre, classPre, b.code)

	b.Root = markup.Element(atom.Div, classContainer, header, b.pre)

	if language != "" {
		markup.SetText(b.label, language)
		markup.SetAttr(b.Root, "data-language", language)
		markup.AddClass(b.code, "language-"+language)
		markup.AddClass(b.pre, "rounded-b")
		if l := lexers.Get(language); l != nil {
			b.lexer = chroma.Coalesce(l)
		}
	} else {
		markup.AddClass(b.pre, "rounded")
	}
	return b
}

// Text returns the raw body text.
func (b *Block) Text() string {
	return b.text
}

// Button returns the copy control node.
func (b *Block) Button() *html.Node {
	return b.button
}

// SetText replaces the body. Re-setting the same text is a no-op.
func (b *Block) SetText(s string) {
	if s == b.text && b.code.FirstChild != nil {
		return
	}
	b.text = s
	markup.Clear(b.code)
	if s == "" {
		return
	}
	markup.Append(b.code, highlight(b.lexer, s)...)
}

// highlight tokenises s and returns one span per classified token. Unknown
// languages and tokeniser failures fall back to a single text node.
func highlight(lexer chroma.Lexer, s string) []*html.Node {
	if lexer == nil {
		return []*html.Node{markup.Text(s)}
	}
	it, err := lexer.Tokenise(nil, s)
	if err != nil {
		return []*html.Node{markup.Text(s)}
	}

	var out []*html.Node
	for _, tok := range it.Tokens() {
		if tok.Value == "" {
			continue
		}
		class := chroma.StandardTypes[tok.Type]
		if class == "" {
			out = append(out, markup.Text(tok.Value))
			continue
		}
		out = append(out, markup.Element(atom.Span, class, markup.Text(tok.Value)))
	}
	return out
}

// Blocks returns every code block root below n in document order.
func Blocks(n *html.Node) []*html.Node {
	return markup.FindAll(n, markup.ByClass("code-block-container"))
}

// BlockText returns the body text of a rendered code block root.
func BlockText(root *html.Node) string {
	if pre := markup.Find(root, markup.ByTag(atom.Pre)); pre != nil {
		return markup.TextContent(pre)
	}
	return ""
}
