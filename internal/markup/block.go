package markup

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	rulePattern      = regexp.MustCompile(`^[-*_]{3,}$`)
	headingPattern   = regexp.MustCompile(`^(#{1,3})\s+(.*)$`)
	listPattern      = regexp.MustCompile(`^([ \t]*)([-*+]|\d+[.)])\s+(.*)$`)
	taskPattern      = regexp.MustCompile(`^\[([ xX])\]\s+(.*)$`)
	quotePattern     = regexp.MustCompile(`^\s*((?:>\s?)+)(.*)$`)
	separatorPattern = regexp.MustCompile(`^:?-+:?$`)
)

const (
	classRule      = "my-4 border-base-content/20"
	classParagraph = "mb-2"
	classSpacer    = "h-2"
	classQuote     = "border-l-4 border-base-content/20 pl-4 py-2 my-2 italic text-base-content/70"
	classTable     = "table table-zebra table-sm my-2"
	classUL        = "list-disc pl-6 my-2"
	classOL        = "list-decimal pl-6 my-2"
	classItem      = "my-1"
	classTaskItem  = "task-item flex items-center gap-2 list-none"
)

var headingClasses = [...]string{
	1: "text-2xl font-bold my-3",
	2: "text-xl font-bold my-2",
	3: "text-lg font-semibold my-2",
}

type listLevel struct {
	el      *html.Node
	indent  int
	ordered bool
}

// blockBuilder holds the accumulation state of one Render call.
type blockBuilder struct {
	container *html.Node

	lists []listLevel

	table *html.Node
	tbody *html.Node

	quotes []*html.Node
}

// Markdown rebuilds the children of container from a complete segment of
// plain text. The whole segment is consumed each call; nothing is carried
// over between calls, so rendering the same text twice yields the same
// tree.
//
// Per line the precedence is: horizontal rule, table row, heading, list
// item (task items included), blockquote, blank line, paragraph.
func Markdown(container *html.Node, text string) {
	Clear(container)

	text = strings.Trim(text, "\r\n")
	if strings.TrimSpace(text) == "" {
		return
	}

	b := &blockBuilder{container: container}
	for _, line := range strings.Split(text, "\n") {
		b.line(strings.TrimRight(line, "\r"))
	}
	b.closeAll()
}

func (b *blockBuilder) line(raw string) {
	trimmed := strings.TrimSpace(raw)

	switch {
	case rulePattern.MatchString(trimmed):
		b.closeAll()
		Append(b.container, Element(atom.Hr, classRule))

	case isTableRow(trimmed):
		b.closeList()
		b.closeQuote()
		b.tableRow(trimmed)

	case headingPattern.MatchString(trimmed):
		b.closeAll()
		m := headingPattern.FindStringSubmatch(trimmed)
		level := len(m[1])
		h := Element(headingAtom(level), headingClasses[level], Inline(m[2])...)
		Append(b.container, h)

	case listPattern.MatchString(raw):
		b.closeTable()
		b.closeQuote()
		m := listPattern.FindStringSubmatch(raw)
		b.listItem(indentWidth(m[1]), m[2], m[3])

	case quotePattern.MatchString(raw):
		b.closeList()
		b.closeTable()
		m := quotePattern.FindStringSubmatch(raw)
		b.quoteLine(strings.Count(m[1], ">"), m[2])

	case trimmed == "":
		b.closeAll()
		Append(b.container, Element(atom.Div, classSpacer))

	default:
		b.closeAll()
		Append(b.container, Element(atom.P, classParagraph, Inline(trimmed)...))
	}
}

func headingAtom(level int) atom.Atom {
	switch level {
	case 1:
		return atom.H1
	case 2:
		return atom.H2
	default:
		return atom.H3
	}
}

func indentWidth(ws string) int {
	n := 0
	for _, r := range ws {
		if r == '\t' {
			n += 4
		} else {
			n++
		}
	}
	return n
}

func (b *blockBuilder) closeAll() {
	b.closeList()
	b.closeTable()
	b.closeQuote()
}

func (b *blockBuilder) closeList()  { b.lists = nil }
func (b *blockBuilder) closeQuote() { b.quotes = nil }

func (b *blockBuilder) closeTable() {
	b.table = nil
	b.tbody = nil
}

// Tables

func isTableRow(trimmed string) bool {
	return len(trimmed) >= 2 && trimmed[0] == '|' && trimmed[len(trimmed)-1] == '|'
}

func splitRow(trimmed string) []string {
	inner := trimmed[1 : len(trimmed)-1]
	cells := strings.Split(inner, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if !separatorPattern.MatchString(c) {
			return false
		}
	}
	return len(cells) > 0
}

func (b *blockBuilder) tableRow(trimmed string) {
	cells := splitRow(trimmed)

	if b.table == nil {
		b.table = Element(atom.Table, classTable)
		thead := Element(atom.Thead, "")
		thead.AppendChild(tableRowNode(atom.Th, cells))
		b.table.AppendChild(thead)
		Append(b.container, Element(atom.Div, "overflow-x-auto", b.table))
		return
	}

	if isSeparatorRow(cells) {
		return
	}

	if b.tbody == nil {
		b.tbody = Element(atom.Tbody, "")
		b.table.AppendChild(b.tbody)
	}
	b.tbody.AppendChild(tableRowNode(atom.Td, cells))
}

func tableRowNode(cell atom.Atom, cells []string) *html.Node {
	tr := Element(atom.Tr, "")
	for _, c := range cells {
		tr.AppendChild(Element(cell, "", Inline(c)...))
	}
	return tr
}

// Lists

func (b *blockBuilder) listItem(indent int, marker, content string) {
	ordered := marker[0] >= '0' && marker[0] <= '9'

	if len(b.lists) == 0 {
		l := newList(ordered, marker)
		Append(b.container, l)
		b.lists = append(b.lists, listLevel{el: l, indent: indent, ordered: ordered})
	} else {
		for len(b.lists) > 1 && indent < b.lists[len(b.lists)-1].indent {
			b.lists = b.lists[:len(b.lists)-1]
		}
		top := b.lists[len(b.lists)-1]

		switch {
		case indent > top.indent:
			l := newList(ordered, marker)
			parent := top.el.LastChild
			if parent == nil {
				parent = top.el
			}
			parent.AppendChild(l)
			b.lists = append(b.lists, listLevel{el: l, indent: indent, ordered: ordered})

		case ordered != top.ordered:
			l := newList(ordered, marker)
			if len(b.lists) == 1 {
				Append(b.container, l)
			} else if li := b.lists[len(b.lists)-2].el.LastChild; li != nil {
				li.AppendChild(l)
			}
			b.lists[len(b.lists)-1] = listLevel{el: l, indent: indent, ordered: ordered}
		}
	}

	b.lists[len(b.lists)-1].el.AppendChild(listItemNode(content))
}

func newList(ordered bool, marker string) *html.Node {
	if !ordered {
		return Element(atom.Ul, classUL)
	}
	l := Element(atom.Ol, classOL)
	if n, err := strconv.Atoi(strings.TrimRight(marker, ".)")); err == nil && n != 1 {
		SetAttr(l, "start", strconv.Itoa(n))
	}
	return l
}

func listItemNode(content string) *html.Node {
	m := taskPattern.FindStringSubmatch(content)
	if m == nil {
		return Element(atom.Li, classItem, Inline(content)...)
	}

	box := Element(atom.Input, "checkbox checkbox-xs")
	SetAttr(box, "type", "checkbox")
	SetAttr(box, "disabled", "")
	if m[1] != " " {
		SetAttr(box, "checked", "")
	}
	return Element(atom.Li, classTaskItem, box, Element(atom.Span, "", Inline(m[2])...))
}

// Blockquotes

func (b *blockBuilder) quoteLine(depth int, content string) {
	for len(b.quotes) > depth {
		b.quotes = b.quotes[:len(b.quotes)-1]
	}
	for len(b.quotes) < depth {
		q := Element(atom.Blockquote, classQuote)
		if len(b.quotes) == 0 {
			Append(b.container, q)
		} else {
			b.quotes[len(b.quotes)-1].AppendChild(q)
		}
		b.quotes = append(b.quotes, q)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	b.quotes[len(b.quotes)-1].AppendChild(Element(atom.P, "", Inline(content)...))
}
