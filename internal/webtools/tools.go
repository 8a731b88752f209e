package webtools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/roach88/bugzapp/internal/bugreport"
	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/runner"
)

// Provider exposes a Session as runner tools. "act" is deliberately not
// provided: HTTP pages cannot be interacted with, so act steps block.
type Provider struct {
	session *Session
}

// NewProvider creates a Provider over session.
func NewProvider(session *Session) *Provider {
	return &Provider{session: session}
}

// Register adds navigate, observe and extract to tools.
func (p *Provider) Register(tools *runner.Toolbox) {
	tools.Register(qa.ToolNavigate, runner.ToolFunc(p.Navigate))
	tools.Register(qa.ToolObserve, runner.ToolFunc(p.Observe))
	tools.Register(qa.ToolExtract, runner.ToolFunc(p.Extract))
}

// Target implements bugreport.TargetProvider.
func (p *Provider) Target(ctx context.Context) (bugreport.Target, error) {
	return p.session, nil
}

// Link is an anchor or call to action found on a page.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
}

// Navigate loads input["url"]. Success is false for HTTP error statuses.
func (p *Provider) Navigate(ctx context.Context, input map[string]any) (any, error) {
	target, _ := input["url"].(string)
	if target == "" {
		return nil, fmt.Errorf("navigate: url is required")
	}
	if err := p.session.Goto(ctx, target); err != nil {
		return nil, err
	}
	doc, current, err := p.session.document()
	if err != nil {
		return nil, err
	}
	status := p.session.Status()
	return map[string]any{
		"success": status < 400,
		"url":     current,
		"status":  status,
		"title":   firstText(doc, "title"),
	}, nil
}

// Observe lists the page's navigation links and calls to action.
func (p *Provider) Observe(ctx context.Context, input map[string]any) (any, error) {
	doc, current, err := p.page(ctx, input)
	if err != nil {
		return nil, err
	}
	instruction, _ := input["instruction"].(string)
	base, _ := url.Parse(current)

	nav := collectLinks(doc, base, "nav a", "header a", "[role=navigation] a")
	ctas := collectLinks(doc, base, "button", "a.cta", "a.btn", "a.button", "input[type=submit]", "[role=button]")
	return map[string]any{
		"success":       len(nav)+len(ctas) > 0,
		"url":           current,
		"instruction":   instruction,
		"navigation":    nav,
		"callsToAction": ctas,
	}, nil
}

// Extract returns the page's main heading and a short summary, taken from
// the meta description or the first paragraph. Success requires a heading.
func (p *Provider) Extract(ctx context.Context, input map[string]any) (any, error) {
	doc, current, err := p.page(ctx, input)
	if err != nil {
		return nil, err
	}
	instruction, _ := input["instruction"].(string)

	heading := firstText(doc, "h1")
	if heading == "" {
		heading = firstText(doc, "title")
	}
	summary := metaDescription(doc)
	if summary == "" {
		summary = firstText(doc, "main p")
	}
	if summary == "" {
		summary = firstText(doc, "p")
	}
	return map[string]any{
		"success":     heading != "",
		"url":         current,
		"instruction": instruction,
		"heading":     heading,
		"summary":     summary,
	}, nil
}

// page returns the current document, navigating first when input names a
// different URL or nothing is loaded yet.
func (p *Provider) page(ctx context.Context, input map[string]any) (*html.Node, string, error) {
	target, _ := input["url"].(string)
	doc, current, err := p.session.document()
	if target != "" && (err != nil || !sameURL(target, current)) {
		if err := p.session.Goto(ctx, target); err != nil {
			return nil, "", err
		}
		return p.session.document()
	}
	return doc, current, err
}

func sameURL(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}

func collectLinks(doc *html.Node, base *url.URL, selectors ...string) []Link {
	seen := make(map[*html.Node]bool)
	links := []Link{}
	for _, s := range selectors {
		sel, err := parseSelector(s)
		if err != nil {
			continue
		}
		for _, n := range queryAll(doc, sel) {
			if seen[n] || hidden(n) {
				continue
			}
			seen[n] = true
			text := textOf(n)
			if text == "" {
				text = attr(n, "value")
			}
			if text == "" {
				text = attr(n, "aria-label")
			}
			href := attr(n, "href")
			if href != "" && base != nil {
				if ref, err := url.Parse(href); err == nil {
					href = base.ResolveReference(ref).String()
				}
			}
			links = append(links, Link{Text: text, Href: href})
		}
	}
	return links
}

func firstText(doc *html.Node, selector string) string {
	sel, err := parseSelector(selector)
	if err != nil {
		return ""
	}
	for _, n := range queryAll(doc, sel) {
		if t := textOf(n); t != "" {
			return t
		}
	}
	return ""
}

func metaDescription(doc *html.Node) string {
	sel, _ := parseSelector("meta[name=description]")
	for _, n := range queryAll(doc, sel) {
		if c := strings.TrimSpace(attr(n, "content")); c != "" {
			return c
		}
	}
	return ""
}
