package markup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInlineHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "just text", "just text"},
		{"escaped", "a < b & c", "a &lt; b &amp; c"},
		{"code", "use `x := 1` here", `use <code class="bg-base-300 px-1 py-0.5 rounded text-sm font-mono">x := 1</code> here`},
		{"code keeps markers", "`**not bold**`", `<code class="bg-base-300 px-1 py-0.5 rounded text-sm font-mono">**not bold**</code>`},
		{"strong", "**bold**", `<strong class="font-bold">bold</strong>`},
		{"strong underscores", "__bold__", `<strong class="font-bold">bold</strong>`},
		{"em star", "an *it* word", `an <em class="italic">it</em> word`},
		{"em underscore", "an _it_ word", `an <em class="italic">it</em> word`},
		{"snake case stays", "call snake_case_name now", "call snake_case_name now"},
		{"strike", "~~gone~~", `<del class="line-through">gone</del>`},
		{"link", "[docs](https://go.dev)", `<a class="text-primary hover:underline" href="https://go.dev" target="_blank" rel="noopener noreferrer">docs</a>`},
		{"bold inside link", "[**go**](u)", `<a class="text-primary hover:underline" href="u" target="_blank" rel="noopener noreferrer"><strong class="font-bold">go</strong></a>`},
		{"code inside link inside strike", "~~[`x`](u)~~", `<del class="line-through"><a class="text-primary hover:underline" href="u" target="_blank" rel="noopener noreferrer"><code class="bg-base-300 px-1 py-0.5 rounded text-sm font-mono">x</code></a></del>`},
		{"em inside strong", "**a *b* c**", `<strong class="font-bold">a <em class="italic">b</em> c</strong>`},
		{"mixed order", "*i* and **b**", `<em class="italic">i</em> and <strong class="font-bold">b</strong>`},
		{"lone star", "2 * 3 * 4", "2 * 3 * 4"},
		{"unclosed code", "a ` b", "a ` b"},
		{"all strikes", "~~a~~ and ~~b~~", `<del class="line-through">a</del> and <del class="line-through">b</del>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, InlineHTML(tt.in))
		})
	}
}

func TestInlineIsPure(t *testing.T) {
	in := "**a** `b` [c](d)"
	require.Equal(t, InlineHTML(in), InlineHTML(in))
}
