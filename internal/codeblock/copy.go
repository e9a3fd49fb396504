package codeblock

import (
	"fmt"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/capitalize-ai/chatstream/internal/markup"
)

// DefaultRevert is how long a copy control shows its confirmation.
const DefaultRevert = 2 * time.Second

var copiedClasses = []string{"text-success", "bg-success/10"}

// Clipboard receives copied text.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes to the operating system clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// CopyButton builds a copy control carrying the icon/text pair for the idle
// and copied states.
func CopyButton(action, title string) *html.Node {
	copyIcon := markup.Element(atom.Span, "copy-icon", markup.Text("⧉"))
	checkIcon := markup.Element(atom.Span, "check-icon hidden", markup.Text("✓"))
	copyText := markup.Element(atom.Span, "copy-text", markup.Text("Copy"))
	checkText := markup.Element(atom.Span, "check-text hidden", markup.Text("Copied!"))

	btn := markup.Element(atom.Button, "copy-btn btn btn-ghost btn-xs gap-1", copyIcon, checkIcon, copyText, checkText)
	markup.SetAttr(btn, "type", "button")
	markup.SetAttr(btn, "data-action", action)
	markup.SetAttr(btn, "title", title)
	return btn
}

// Copied reports whether button is showing its confirmation state.
func Copied(button *html.Node) bool {
	check := markup.Find(button, markup.ByClass("check-icon"))
	return check != nil && !markup.HasClass(check, "hidden")
}

func setCopied(button *html.Node, copied bool) {
	show, hide := "check", "copy"
	if !copied {
		show, hide = hide, show
	}
	for _, part := range []string{"-icon", "-text"} {
		if n := markup.Find(button, markup.ByClass(show+part)); n != nil {
			markup.RemoveClass(n, "hidden")
		}
		if n := markup.Find(button, markup.ByClass(hide+part)); n != nil {
			markup.AddClass(n, "hidden")
		}
	}
	if copied {
		markup.AddClass(button, copiedClasses...)
	} else {
		markup.RemoveClass(button, copiedClasses...)
	}
}

// CopyControl copies text to a clipboard and flips the pressed button to
// its confirmation state, reverting after a fixed delay. Button nodes are
// mutated while holding the locker passed to NewCopyControl.
type CopyControl struct {
	clip   Clipboard
	revert time.Duration
	dom    sync.Locker

	mu     sync.Mutex
	timers map[*html.Node]*time.Timer
}

// NewCopyControl returns a control writing to clip. A zero revert uses
// DefaultRevert; a nil dom locker uses a private mutex.
func NewCopyControl(clip Clipboard, revert time.Duration, dom sync.Locker) *CopyControl {
	if revert <= 0 {
		revert = DefaultRevert
	}
	if dom == nil {
		dom = &sync.Mutex{}
	}
	return &CopyControl{
		clip:   clip,
		revert: revert,
		dom:    dom,
		timers: make(map[*html.Node]*time.Timer),
	}
}

// Copy writes the block body to the clipboard.
func (c *CopyControl) Copy(b *Block) error {
	return c.CopyText(b.button, b.Text())
}

// CopyText writes text to the clipboard and shows the confirmation on
// button. The caller must not hold the dom locker.
func (c *CopyControl) CopyText(button *html.Node, text string) error {
	if err := c.clip.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}

	c.dom.Lock()
	setCopied(button, true)
	c.dom.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.timers[button]; ok {
		prev.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(c.revert, func() {
		c.mu.Lock()
		current := c.timers[button] == t
		if current {
			delete(c.timers, button)
		}
		c.mu.Unlock()
		if !current {
			return
		}

		c.dom.Lock()
		setCopied(button, false)
		c.dom.Unlock()
	})
	c.timers[button] = t
	return nil
}

// Stop cancels pending reverts.
func (c *CopyControl) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for b, t := range c.timers {
		t.Stop()
		delete(c.timers, b)
	}
}
