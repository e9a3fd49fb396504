package stream

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/capitalize-ai/chatstream/internal/codeblock"
	"github.com/capitalize-ai/chatstream/internal/markup"
)

// ActionCopyMessage is the data-action of a message copy button.
const ActionCopyMessage = "copy-message"

// AttrCompleteMessage holds the full text of a finished assistant message.
const AttrCompleteMessage = "data-complete-message"

// View is the assistant message bubble a stream renders into.
type View struct {
	Root    *html.Node
	Content *html.Node

	actions     *html.Node
	copyButton  *html.Node
	placeholder *html.Node
	blocks      []*codeblock.Block
}

// NewView builds an assistant bubble showing a loading indicator.
func NewView() *View {
	v := &View{}
	v.Content = markup.Element(atom.Div, "content prose max-w-none")
	v.placeholder = markup.Element(atom.Span, "loading loading-dots loading-xs")
	v.Content.AppendChild(v.placeholder)

	v.copyButton = codeblock.CopyButton(ActionCopyMessage, "Copy message")
	v.actions = markup.Element(atom.Div, "flex justify-start mt-1 hidden", v.copyButton)

	body := markup.Element(atom.Div, "flex flex-col w-full min-w-0", v.Content, v.actions)
	v.Root = markup.Element(atom.Div, "flex space-x-4 mb-6 bot-message", body)
	markup.SetAttr(v.Root, "data-role", "assistant")
	return v
}

// Append adds n to the message content, dropping the loading indicator.
func (v *View) Append(n *html.Node) {
	v.dropPlaceholder()
	v.Content.AppendChild(n)
}

// SetText replaces the content with plain text.
func (v *View) SetText(s string) {
	v.placeholder = nil
	markup.SetText(v.Content, s)
}

// Loading reports whether the loading indicator is still shown.
func (v *View) Loading() bool {
	return v.placeholder != nil
}

// Blocks returns the code blocks opened in this view.
func (v *View) Blocks() []*codeblock.Block {
	return v.blocks
}

// CopyButton returns the message copy control.
func (v *View) CopyButton() *html.Node {
	return v.copyButton
}

// CompleteMessage returns the stored text of a finished message.
func (v *View) CompleteMessage() (string, bool) {
	if !markup.HasAttr(v.Root, AttrCompleteMessage) {
		return "", false
	}
	return markup.Attr(v.Root, AttrCompleteMessage), true
}

// Complete stores the final text and reveals the copy control.
func (v *View) Complete(content string) {
	v.dropPlaceholder()
	markup.SetAttr(v.Root, AttrCompleteMessage, content)
	markup.RemoveClass(v.actions, "hidden")
}

// Fail replaces everything rendered so far with msg.
func (v *View) Fail(msg string) {
	v.SetText(msg)
	markup.AddClass(v.Content, "text-error")
}

func (v *View) dropPlaceholder() {
	if v.placeholder == nil {
		return
	}
	if v.placeholder.Parent != nil {
		v.placeholder.Parent.RemoveChild(v.placeholder)
	}
	v.placeholder = nil
}

func (v *View) addBlock(b *codeblock.Block) {
	v.blocks = append(v.blocks, b)
	v.Append(b.Root)
}
