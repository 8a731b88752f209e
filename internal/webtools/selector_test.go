package webtools

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const fixturePage = `<!doctype html>
<html><head><title>Shop</title><meta name="description" content="Everything for the kitchen."></head>
<body>
  <header><nav><a href="/">Home</a> <a href="/about" class="nav-link active">About</a></nav></header>
  <main id="content">
    <h1>  Welcome   to the shop </h1>
    <p>First paragraph.</p>
    <a class="btn cta" href="/signup">Sign up</a>
    <button type="submit">Buy</button>
    <div hidden><button id="ghost">Ghost</button></div>
    <p style="display: none" id="secret">Secret</p>
    <input type="hidden" name="token" value="x">
    <ul class="items"><li>One</li><li>Two</li><li>Three</li></ul>
    <script>var hidden = "not text";</script>
  </main>
</body></html>`

func parseFixture(t *testing.T) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(fixturePage))
	require.NoError(t, err)
	return doc
}

func TestSelector_Matching(t *testing.T) {
	doc := parseFixture(t)

	tests := []struct {
		selector string
		count    int
	}{
		{"a", 3},
		{"nav a", 2},
		{"header nav a.nav-link.active", 1},
		{"#content h1", 1},
		{"main#content li", 3},
		{".items li", 3},
		{"a[href]", 3},
		{"a[href=/about]", 1},
		{`a[href="/signup"]`, 1},
		{"input[type=hidden]", 1},
		{"button", 2},
		{"* li", 3},
		{"footer a", 0},
	}
	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			sel, err := parseSelector(tt.selector)
			require.NoError(t, err)
			assert.Len(t, queryAll(doc, sel), tt.count)
		})
	}
}

func TestSelector_Invalid(t *testing.T) {
	for _, s := range []string{"", "   ", "a[href", "div.x[role"} {
		_, err := parseSelector(s)
		assert.Error(t, err, s)
	}
}

func TestTextOfAndHidden(t *testing.T) {
	doc := parseFixture(t)

	h1, _ := parseSelector("h1")
	assert.Equal(t, "Welcome to the shop", textOf(queryAll(doc, h1)[0]))

	main, _ := parseSelector("main")
	assert.NotContains(t, textOf(queryAll(doc, main)[0]), "not text")

	for _, s := range []string{"#ghost", "#secret", "input[type=hidden]", "title"} {
		sel, _ := parseSelector(s)
		nodes := queryAll(doc, sel)
		require.NotEmpty(t, nodes, s)
		assert.True(t, hidden(nodes[0]), s)
	}
	sel, _ := parseSelector("h1")
	assert.False(t, hidden(queryAll(doc, sel)[0]))
}
