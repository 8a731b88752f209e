package webtools

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// selector is a parsed CSS selector: compound selectors joined by the
// descendant combinator. Supported compounds are tag, #id, .class,
// [attr] and [attr=value] in any combination, e.g. "nav a.cta[href]".
type selector []compound

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrMatch
}

type attrMatch struct {
	name  string
	value string
	exact bool
}

func parseSelector(s string) (selector, error) {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty selector")
	}
	sel := make(selector, 0, len(parts))
	for _, part := range parts {
		c, err := parseCompound(part)
		if err != nil {
			return nil, fmt.Errorf("selector %q: %w", s, err)
		}
		sel = append(sel, c)
	}
	return sel, nil
}

func parseCompound(s string) (compound, error) {
	var c compound
	i := 0
	readName := func() string {
		start := i
		for i < len(s) && !strings.ContainsRune("#.[", rune(s[i])) {
			i++
		}
		return s[start:i]
	}

	c.tag = strings.ToLower(readName())
	if c.tag == "*" {
		c.tag = ""
	}
	for i < len(s) {
		switch s[i] {
		case '#':
			i++
			c.id = readName()
		case '.':
			i++
			c.classes = append(c.classes, readName())
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return compound{}, fmt.Errorf("unterminated attribute in %q", s)
			}
			body := s[i+1 : i+end]
			i += end + 1
			name, value, exact := strings.Cut(body, "=")
			c.attrs = append(c.attrs, attrMatch{
				name:  strings.ToLower(strings.TrimSpace(name)),
				value: strings.Trim(strings.TrimSpace(value), `"'`),
				exact: exact,
			})
		default:
			return compound{}, fmt.Errorf("unexpected %q in %q", s[i], s)
		}
	}
	return c, nil
}

func (c compound) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if c.tag != "" && n.Data != c.tag {
		return false
	}
	if c.id != "" && attr(n, "id") != c.id {
		return false
	}
	if len(c.classes) > 0 {
		have := strings.Fields(attr(n, "class"))
		for _, want := range c.classes {
			if !slices.Contains(have, want) {
				return false
			}
		}
	}
	for _, a := range c.attrs {
		v, ok := lookupAttr(n, a.name)
		if !ok || (a.exact && v != a.value) {
			return false
		}
	}
	return true
}

// matches reports whether n matches the last compound and some chain of
// ancestors matches the earlier ones in order.
func (s selector) matches(n *html.Node) bool {
	last := len(s) - 1
	if !s[last].matches(n) {
		return false
	}
	want := last - 1
	for p := n.Parent; p != nil && want >= 0; p = p.Parent {
		if s[want].matches(p) {
			want--
		}
	}
	return want < 0
}

// queryAll returns every element under root matching sel in document order.
func queryAll(root *html.Node, sel selector) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if sel.matches(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func lookupAttr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func attr(n *html.Node, name string) string {
	v, _ := lookupAttr(n, name)
	return v
}

// textOf returns the whitespace-collapsed text of n, skipping script and
// style content.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style"):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// hidden reports whether n or an ancestor is hidden by markup alone:
// the hidden attribute, aria-hidden="true", an inline display:none or
// visibility:hidden style, or a hidden input.
func hidden(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if _, ok := lookupAttr(p, "hidden"); ok {
			return true
		}
		if attr(p, "aria-hidden") == "true" {
			return true
		}
		if p.Data == "input" && strings.EqualFold(attr(p, "type"), "hidden") {
			return true
		}
		style := strings.ReplaceAll(strings.ToLower(attr(p, "style")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return true
		}
		if p.Data == "head" || p.Data == "template" {
			return true
		}
	}
	return false
}
