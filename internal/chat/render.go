package chat

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/capitalize-ai/chatstream/internal/markup"
	"github.com/capitalize-ai/chatstream/internal/model"
	"github.com/capitalize-ai/chatstream/internal/stream"
)

func newMessageList() *html.Node {
	n := markup.Element(atom.Div, "flex flex-col w-full")
	markup.SetAttr(n, "id", "chat_messages")
	return n
}

// userBubble renders a user message. String content is shown verbatim;
// content parts render text as markup and images as thumbnails.
func userBubble(c model.Content) *html.Node {
	content := markup.Element(atom.Div, "content")
	appendContent(content, c)

	body := markup.Element(atom.Div, "flex flex-col items-end w-full min-w-0", content)
	n := markup.Element(atom.Div, "flex space-x-4 mb-6 justify-end user-message", body)
	markup.SetAttr(n, "data-role", "user")
	return n
}

func appendContent(container *html.Node, c model.Content) {
	if !c.IsParts() {
		markup.SetText(container, c.Text)
		return
	}
	for _, p := range c.Parts {
		switch p.Type {
		case model.PartText:
			text := markup.Element(atom.Div, "w-full")
			markup.Markdown(text, p.Text)
			container.AppendChild(text)
		case model.PartImageURL:
			if p.ImageURL == nil {
				continue
			}
			img := markup.Element(atom.Img, "w-16 h-auto rounded-lg")
			markup.SetAttr(img, "src", p.ImageURL.URL)
			container.AppendChild(img)
		}
	}
}

// assistantBubble replays a stored assistant message.
func assistantBubble(c model.Content) *stream.View {
	v := stream.NewView()
	if c.IsParts() {
		markup.Clear(v.Content)
		appendContent(v.Content, c)
		v.Complete(c.String())
		return v
	}
	stream.Replay(v, c.Text)
	return v
}

func welcomeBubble(text string) *stream.View {
	v := stream.NewView()
	v.SetText(text)
	markup.SetAttr(v.Root, "data-welcome", "true")
	return v
}

// fileBanner renders the download banner of an attachment.
func fileBanner(name, id, downloadPath string) *html.Node {
	filename := markup.Element(atom.Span, "filename font-medium truncate", markup.Text(name))
	link := markup.Element(atom.A, "download-link btn btn-ghost btn-xs", markup.Text("Download"))
	markup.SetAttr(link, "href", downloadPath+id)

	alert := markup.Element(atom.Div, "alert flex items-center justify-between gap-2", filename, link)
	n := markup.Element(atom.Div, "mb-6 file-banner", alert)
	markup.SetAttr(n, "data-file-id", id)
	return n
}
