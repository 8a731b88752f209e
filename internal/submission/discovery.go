package submission

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/roach88/bugzapp/internal/qa"
)

const (
	// DefaultMaxPages caps the number of discovered targets.
	DefaultMaxPages = 10

	// DefaultMaxDepth bounds how many links away from the seed a crawl goes.
	DefaultMaxDepth = 2

	// DefaultUserAgent identifies discovery requests.
	DefaultUserAgent = "BugZappCrawler/1.0"

	maxBodyBytes = 5 << 20
)

// Discovery is the outcome of a discovery pass.
type Discovery struct {
	Targets []string
	Info    qa.DiscoveryInfo
}

// DiscoveryOptions configures a Discoverer. Zero values take defaults,
// except MaxDepth where zero crawls only the seed.
type DiscoveryOptions struct {
	Client   *http.Client
	MaxPages int

	// MaxDepth bounds how many links away from the seed the crawl goes.
	// Negative takes DefaultMaxDepth.
	MaxDepth  int
	UserAgent string

	// RequestsPerSecond limits crawl fetches. Zero means unlimited.
	RequestsPerSecond float64

	Logger *slog.Logger
}

// Discoverer finds the pages of a site worth smoke testing: sitemap
// entries first, a bounded same-origin crawl otherwise.
type Discoverer struct {
	client    *http.Client
	maxPages  int
	maxDepth  int
	userAgent string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewDiscoverer creates a Discoverer.
func NewDiscoverer(opts DiscoveryOptions) *Discoverer {
	d := &Discoverer{
		client:    opts.Client,
		maxPages:  opts.MaxPages,
		maxDepth:  opts.MaxDepth,
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
		limiter:   rate.NewLimiter(rate.Inf, 1),
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: 15 * time.Second}
	}
	if d.maxPages <= 0 {
		d.maxPages = DefaultMaxPages
	}
	if d.maxDepth < 0 {
		d.maxDepth = DefaultMaxDepth
	}
	if d.userAgent == "" {
		d.userAgent = DefaultUserAgent
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if opts.RequestsPerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return d
}

// Discover returns the targets for seed. It never returns an empty target
// list: when nothing is found the seed itself is the only target. Sitemap
// failures are logged and fall through to the crawl.
func (d *Discoverer) Discover(ctx context.Context, seed string) (Discovery, error) {
	base, err := parseHTTPURL(seed)
	if err != nil {
		return Discovery{}, err
	}

	targets, err := d.fromSitemap(ctx, base)
	if err != nil {
		d.logger.Info("sitemap unavailable, crawling", "seed", seed, "error", err)
	}
	if len(targets) > 0 {
		return Discovery{
			Targets: targets,
			Info:    qa.DiscoveryInfo{Source: qa.DiscoverySitemap, SeedURL: seed},
		}, nil
	}

	targets, err = d.crawl(ctx, base)
	if err != nil {
		return Discovery{}, err
	}
	if len(targets) == 0 {
		targets = []string{normalizeURL(base)}
	}
	return Discovery{
		Targets: targets,
		Info:    qa.DiscoveryInfo{Source: qa.DiscoveryCrawl, SeedURL: seed},
	}, nil
}

// fromSitemap reads <origin>/sitemap.xml and returns its same-origin <loc>
// entries, deduplicated and capped at maxPages.
func (d *Discoverer) fromSitemap(ctx context.Context, base *url.URL) ([]string, error) {
	sitemap := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/sitemap.xml"}
	body, _, err := d.fetch(ctx, sitemap.String())
	if err != nil {
		return nil, qa.WrapError(qa.ErrCodeDiscovery, err, "fetch %s", sitemap)
	}
	locs, err := parseSitemap(body)
	if err != nil {
		return nil, qa.WrapError(qa.ErrCodeDiscovery, err, "parse %s", sitemap)
	}

	seen := make(map[string]bool)
	var targets []string
	for _, loc := range locs {
		u, err := url.Parse(loc)
		if err != nil || !sameOrigin(base, u) {
			continue
		}
		n := normalizeURL(u)
		if seen[n] {
			continue
		}
		seen[n] = true
		targets = append(targets, n)
		if len(targets) >= d.maxPages {
			break
		}
	}
	return targets, nil
}

// parseSitemap collects the text of every <loc> element, which covers both
// urlset and sitemapindex documents.
func parseSitemap(body []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		locs  []string
		inLoc bool
		text  strings.Builder
		root  bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			root = true
			if t.Name.Local == "loc" {
				inLoc = true
				text.Reset()
			}
		case xml.CharData:
			if inLoc {
				text.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "loc" && inLoc {
				inLoc = false
				if loc := strings.TrimSpace(text.String()); loc != "" {
					locs = append(locs, loc)
				}
			}
		}
	}
	if !root {
		return nil, errors.New("no xml elements")
	}
	return locs, nil
}

type crawlItem struct {
	url   *url.URL
	depth int
}

// crawl walks same-origin links breadth first from base. Every visited
// page is a target, reachable or not; pages closer than maxDepth to the
// seed are fetched and their links followed. At most maxPages are visited.
func (d *Discoverer) crawl(ctx context.Context, base *url.URL) ([]string, error) {
	queue := []crawlItem{{url: base, depth: 0}}
	visited := map[string]bool{normalizeURL(base): true}
	var found []string

	for len(queue) > 0 && len(found) < d.maxPages {
		item := queue[0]
		queue = queue[1:]

		page := normalizeURL(item.url)
		found = append(found, page)
		if item.depth >= d.maxDepth {
			continue
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("crawl: %w", err)
		}
		body, contentType, err := d.fetch(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("crawl: %w", ctx.Err())
			}
			d.logger.Debug("crawl fetch failed", "url", page, "error", err)
			continue
		}
		if !isHTML(contentType) {
			continue
		}
		for _, link := range extractLinks(item.url, body) {
			if !sameOrigin(base, link) {
				continue
			}
			n := normalizeURL(link)
			if visited[n] {
				continue
			}
			visited[n] = true
			queue = append(queue, crawlItem{url: link, depth: item.depth + 1})
		}
	}
	return found, nil
}

func (d *Discoverer) fetch(ctx context.Context, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// extractLinks returns the absolute http(s) targets of every <a href> in
// body, resolved against page.
func extractLinks(page *url.URL, body []byte) []*url.URL {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var links []*url.URL
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if link, ok := resolveLink(page, attr.Val); ok {
					links = append(links, link)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}

func resolveLink(page *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	lower := strings.ToLower(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "javascript:") {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	abs := page.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return nil, false
	}
	return abs, true
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, qa.WrapError(qa.ErrCodeValidation, err, "invalid url %q", raw)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, qa.NewError(qa.ErrCodeValidation, "url must be absolute http(s): %q", raw)
	}
	return u, nil
}

func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

// normalizeURL drops the fragment and any trailing slash except the root's.
func normalizeURL(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	if c.Path == "" {
		c.Path = "/"
	}
	if len(c.Path) > 1 {
		c.Path = strings.TrimRight(c.Path, "/")
		if c.Path == "" {
			c.Path = "/"
		}
	}
	c.RawPath = ""
	return c.String()
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
