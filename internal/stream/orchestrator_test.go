package stream

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/capitalize-ai/chatstream/internal/codeblock"
	"github.com/capitalize-ai/chatstream/internal/markup"
	"github.com/capitalize-ai/chatstream/pkg/logger"
)

// chunkReader returns one chunk per Read, then err (io.EOF by default).
type chunkReader struct {
	chunks []string
	err    error
	onRead func(i int)
	i      int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.i >= len(c.chunks) {
		if c.err != nil {
			return 0, c.err
		}
		return 0, io.EOF
	}
	n := copy(p, c.chunks[c.i])
	if n < len(c.chunks[c.i]) {
		c.chunks[c.i] = c.chunks[c.i][n:]
		return n, nil
	}
	if c.onRead != nil {
		c.onRead(c.i)
	}
	c.i++
	return n, nil
}

type region struct {
	kind string
	lang string
	body string
}

func regions(v *View) []region {
	var out []region
	for _, c := range markup.Children(v.Content) {
		switch {
		case markup.HasClass(c, "code-block-container"):
			out = append(out, region{kind: "code", lang: markup.Attr(c, "data-language"), body: codeblock.BlockText(c)})
		case c.Type == html.ElementNode:
			out = append(out, region{kind: "text", body: markup.RenderChildren(c)})
		}
	}
	return out
}

type rendered struct {
	out  Outcome
	view *View
}

func (r rendered) html() string {
	return markup.Render(r.view.Root)
}

func renderChunks(t *testing.T, chunks ...string) rendered {
	t.Helper()
	v := NewView()
	out := Run(context.Background(), &chunkReader{chunks: chunks}, v, nil, Options{})
	return rendered{out: out, view: v}
}

func renderFull(t *testing.T, text string) rendered {
	return renderChunks(t, text)
}

func renderSplitAt(t *testing.T, text string, i int) rendered {
	return renderChunks(t, text[:i], text[i:])
}

func renderByteByByte(t *testing.T, text string) rendered {
	chunks := make([]string, len(text))
	for i := 0; i < len(text); i++ {
		chunks[i] = text[i : i+1]
	}
	return renderChunks(t, chunks...)
}

func renderRandomChunks(t *testing.T, text string, rng *rand.Rand) rendered {
	var chunks []string
	for rest := text; rest != ""; {
		n := 1 + rng.Intn(12)
		if n > len(rest) {
			n = len(rest)
		}
		chunks = append(chunks, rest[:n])
		rest = rest[n:]
	}
	return renderChunks(t, chunks...)
}

const document = "# Title\nIntro with `inline` and **bold**.\n\n```go\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n```\n\n" +
	"| a | b |\n|---|---|\n| 1 | 2 |\n\n- one\n  - two\n> quote\n```\nplain block\n```\nTail ``x`` done `"

func TestSegmentationInvariance(t *testing.T) {
	inputs := []string{
		document,
		"```python\nprint(1)\n```",
		"before ``` js\nlet a = 1\n```after",
		"no fences at all, just `ticks` and ``pairs``",
		"hello ###STOP### world",
		"x ```rust\nfn f() {}\n``",
		"héllo wörld ✓ ```\nçode\n```",
	}
	rng := rand.New(rand.NewSource(7))

	for _, text := range inputs {
		full := renderFull(t, text)
		want := full.html()

		for i := 0; i <= len(text); i++ {
			got := renderSplitAt(t, text, i)
			require.Equal(t, want, got.html(), "input %q split at %d", text, i)
			require.Equal(t, full.out.Content, got.out.Content)
		}

		got := renderByteByByte(t, text)
		require.Equal(t, want, got.html(), "input %q byte by byte", text)
		require.Equal(t, regions(full.view), regions(got.view))

		for k := 0; k < 20; k++ {
			got := renderRandomChunks(t, text, rng)
			require.Equal(t, want, got.html(), "input %q random chunks", text)
		}
	}
}

func TestPythonBlock(t *testing.T) {
	r := renderFull(t, "```python\nprint(1)\n```")

	require.Equal(t, Completed, r.out.State)
	require.Equal(t, []region{{kind: "code", lang: "python", body: "print(1)"}}, regions(r.view))
	require.Len(t, r.view.Blocks(), 1)
	require.Equal(t, "print(1)", r.view.Blocks()[0].Text())
}

func TestInlineBacktickIsText(t *testing.T) {
	r := renderFull(t, "use `x` here")

	require.Empty(t, r.view.Blocks())
	regs := regions(r.view)
	require.Len(t, regs, 1)
	require.Equal(t, "text", regs[0].kind)
	require.Contains(t, regs[0].body, ">x</code>")
}

func TestDocumentRegions(t *testing.T) {
	r := renderFull(t, document)

	regs := regions(r.view)
	require.Len(t, regs, 5)
	require.Equal(t, "text", regs[0].kind)
	require.Equal(t, region{kind: "code", lang: "go", body: "func main() {\n\tfmt.Println(\"hi\")\n}"}, regs[1])
	require.Equal(t, "text", regs[2].kind)
	require.Contains(t, regs[2].body, "<table")
	require.Contains(t, regs[2].body, "<blockquote")
	require.Equal(t, region{kind: "code", lang: "", body: "plain block"}, regs[3])
	require.Contains(t, regs[4].body, "Tail")
	require.Equal(t, document, r.out.Content)
}

func TestSentinelTruncates(t *testing.T) {
	r := renderChunks(t, "hello ###ST", "OP### world")

	require.Equal(t, Completed, r.out.State)
	require.Equal(t, "hello ", r.out.Content)
	require.Nil(t, r.out.Usage)
	require.NotContains(t, r.html(), "world")
	msg, ok := r.view.CompleteMessage()
	require.True(t, ok)
	require.Equal(t, "hello ", msg)
}

func TestSentinelUsageTrailer(t *testing.T) {
	reader := &chunkReader{chunks: []string{
		"answer###STOP###{\"prompt_tokens\":3,",
		"\"completion_tokens\":5,\"total_tokens\":8}",
	}, err: errors.New("connection reset")}
	v := NewView()
	out := Run(context.Background(), reader, v, nil, Options{Model: "test-model"})

	require.Equal(t, Completed, out.State)
	require.Equal(t, "answer", out.Content)
	require.NotNil(t, out.Usage)
	require.Equal(t, 3, out.Usage.PromptTokens)
	require.Equal(t, 5, out.Usage.CompletionTokens)
	require.Equal(t, 8, out.Usage.TotalTokens)
	require.Equal(t, 2, out.Chunks)
}

// stallReader returns first and then blocks until release is closed.
type stallReader struct {
	first   string
	sent    bool
	release chan struct{}
}

func (s *stallReader) Read(p []byte) (int, error) {
	if !s.sent {
		s.sent = true
		return copy(p, s.first), nil
	}
	<-s.release
	return 0, io.EOF
}

func TestSentinelEndsStalledStream(t *testing.T) {
	tests := []struct {
		name  string
		first string
		want  string
	}{
		{"bare sentinel", "answer###STOP###", "answer"},
		{"text after sentinel", "answer###STOP### trailing", "answer"},
		{"complete usage", "answer###STOP###{\"total_tokens\":2}", "answer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &stallReader{first: tt.first, release: make(chan struct{})}
			defer close(reader.release)

			done := make(chan Outcome, 1)
			go func() {
				done <- Run(context.Background(), reader, NewView(), nil, Options{})
			}()

			select {
			case out := <-done:
				require.Equal(t, Completed, out.State)
				require.Equal(t, tt.want, out.Content)
				require.Equal(t, 1, out.Chunks)
			case <-time.After(2 * time.Second):
				t.Fatal("stream kept reading after the sentinel")
			}
		})
	}
}

func TestSentinelNullTrailer(t *testing.T) {
	r := renderChunks(t, "text###STOP###null")
	require.Equal(t, "text", r.out.Content)
	require.Nil(t, r.out.Usage)
}

func TestCancelStripsIncompleteFence(t *testing.T) {
	tests := []struct {
		name    string
		chunks  []string
		content string
		regions []region
	}{
		{
			name:    "double backtick in code",
			chunks:  []string{"intro\n```go\nx := 1\n", "``", "`\nnever"},
			content: "intro\n```go\nx := 1\n",
			regions: []region{{kind: "text", body: `<p class="mb-2">intro</p>`}, {kind: "code", lang: "go", body: "x := 1"}},
		},
		{
			name:    "bare opening fence",
			chunks:  []string{"text ", "```", "py\n"},
			content: "text ",
			regions: []region{{kind: "text", body: `<p class="mb-2">text</p>`}},
		},
		{
			name:    "language without newline",
			chunks:  []string{"```pyth", "on", "\nx"},
			content: "```python",
			regions: []region{{kind: "code", lang: "python", body: ""}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cancel := &Cancel{}
			last := len(tt.chunks) - 2
			reader := &chunkReader{chunks: tt.chunks, onRead: func(i int) {
				if i == last {
					cancel.Cancel()
				}
			}}
			v := NewView()
			out := Run(context.Background(), reader, v, cancel, Options{})

			require.Equal(t, Cancelled, out.State)
			require.Equal(t, tt.content, out.Content)
			require.Equal(t, tt.regions, regions(v))
			require.False(t, v.Loading())
		})
	}
}

func TestCancelBeforeFirstRead(t *testing.T) {
	cancel := &Cancel{}
	cancel.Cancel()
	v := NewView()
	out := Run(context.Background(), &chunkReader{chunks: []string{"unused"}}, v, cancel, Options{})

	require.Equal(t, Cancelled, out.State)
	require.Equal(t, "", out.Content)
	require.Zero(t, out.Chunks)
	require.False(t, v.Loading())
}

func TestContextCancelled(t *testing.T) {
	ctx, stop := context.WithCancel(context.Background())
	reader := &chunkReader{chunks: []string{"partial", "more"}, onRead: func(int) { stop() }}
	v := NewView()
	out := Run(ctx, reader, v, nil, Options{})

	require.Equal(t, Cancelled, out.State)
	require.Equal(t, "partial", out.Content)
}

func TestReadErrorRendersMessage(t *testing.T) {
	boom := errors.New("boom")
	v := NewView()
	out := Run(context.Background(), &chunkReader{chunks: []string{"half an ans"}, err: boom}, v, nil, Options{})

	require.Equal(t, Errored, out.State)
	require.ErrorIs(t, out.Err, boom)
	require.Equal(t, "Error occurred: read stream: boom", out.Content)
	require.Equal(t, out.Content, markup.TextContent(v.Content))
	require.Empty(t, regions(v))
	require.False(t, v.Loading())
	_, ok := v.CompleteMessage()
	require.False(t, ok)
}

func TestNilBody(t *testing.T) {
	v := NewView()
	out := Run(context.Background(), nil, v, nil, Options{})

	require.Equal(t, Errored, out.State)
	require.ErrorIs(t, out.Err, ErrNoBody)
	require.Equal(t, ErrorPrefix+ErrNoBody.Error(), markup.TextContent(v.Content))
}

func TestPlaceholderUntilFirstContent(t *testing.T) {
	v := NewView()
	require.True(t, v.Loading())
	require.NotNil(t, markup.Find(v.Content, markup.ByClass("loading")))

	var seen []bool
	var mu sync.Mutex
	reader := &chunkReader{chunks: []string{"\n", "``", "`go\n", "x"}}
	Run(context.Background(), reader, v, nil, Options{
		Lock: &mu,
		OnUpdate: func(Update) {
			seen = append(seen, v.Loading())
		},
	})

	require.Equal(t, []bool{true, true, false, false, false}, seen)
	require.Nil(t, markup.Find(v.Content, markup.ByClass("loading")))
}

func TestUpdates(t *testing.T) {
	var updates []Update
	v := NewView()
	reader := &chunkReader{chunks: []string{"**bo", "ld**"}}
	out := Run(context.Background(), reader, v, nil, Options{OnUpdate: func(u Update) { updates = append(updates, u) }})

	require.Len(t, updates, 3)
	require.Equal(t, Streaming, updates[0].State)
	require.Equal(t, 1, updates[0].Chunks)
	require.Equal(t, out.State, updates[2].State)
	require.True(t, updates[2].State.Terminal())
	require.Contains(t, updates[2].HTML, `<strong class="font-bold">bold</strong>`)
	require.Contains(t, updates[2].HTML, AttrCompleteMessage)
}

func TestCompleteRevealsCopyControl(t *testing.T) {
	v := NewView()
	actions := v.CopyButton().Parent
	require.True(t, markup.HasClass(actions, "hidden"))

	Run(context.Background(), strings.NewReader("done"), v, nil, Options{})
	require.False(t, markup.HasClass(actions, "hidden"))
	require.Equal(t, ActionCopyMessage, markup.Attr(v.CopyButton(), "data-action"))
}

func TestReplayMatchesStream(t *testing.T) {
	v := NewView()
	content := Replay(v, document)

	require.Equal(t, document, content)
	require.Equal(t, renderByteByByte(t, document).html(), markup.Render(v.Root))
}

func TestReRenderIsIdempotent(t *testing.T) {
	text := "para\n- a\n- b\n|x|\n|y|"
	v := NewView()
	r := &renderer{view: v, log: logger.NewNop()}
	r.feed([]byte(text))
	once := markup.Render(v.Content)

	for i := 0; i < 5; i++ {
		r.advance(len(r.st.Buffer))
	}
	require.Equal(t, once, markup.Render(v.Content))
	require.Len(t, markup.FindAll(v.Content, markup.ByTag(atom.Table)), 1)
	require.Len(t, markup.FindAll(v.Content, markup.ByTag(atom.Li)), 2)
}
