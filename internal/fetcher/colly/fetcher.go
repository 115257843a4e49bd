// Package collyfetcher implements crawler.PageFetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/webgraph/internal/crawler"
	"github.com/JakeFAU/webgraph/internal/edge"
	"github.com/JakeFAU/webgraph/internal/webgraph"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Fetcher implements crawler.PageFetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnHTML(string, colly.HTMLCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// extraction accumulates the links of one page while colly walks it.
type extraction struct {
	source     *webgraph.URL
	statusCode int
	modified   time.Time
	links      map[string]edge.LinkAttributes
	alts       map[string]string
	inbound    []*webgraph.URL
	outbound   []*webgraph.URL
	seen       map[string]struct{}
	err        error
}

func newExtraction(source *webgraph.URL) *extraction {
	return &extraction{
		source: source,
		links:  make(map[string]edge.LinkAttributes),
		alts:   make(map[string]string),
		seen:   make(map[string]struct{}),
	}
}

// add records target once and keeps the first anchor seen for it.
func (x *extraction) add(target *webgraph.URL, attrs edge.LinkAttributes) {
	key := target.Normalform()
	if _, ok := x.links[key]; !ok {
		x.links[key] = attrs
	}
	if _, ok := x.seen[key]; ok {
		return
	}
	x.seen[key] = struct{}{}
	if target.SameHost(x.source) {
		x.inbound = append(x.inbound, target)
	} else {
		x.outbound = append(x.outbound, target)
	}
}

func (x *extraction) result() crawler.FetchResult {
	page := edge.Page{
		Source:    x.source,
		Links:     x.links,
		ImageAlts: x.alts,
		Inbound:   x.inbound,
		Outbound:  x.outbound,
	}
	if !x.modified.IsZero() {
		page.Response = &edge.ResponseMeta{LastModified: x.modified}
	}
	return crawler.FetchResult{StatusCode: x.statusCode, Page: page}
}

// Fetch executes a single HTTP GET and extracts anchors and images.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResult, error) {
	source, err := webgraph.ParseURL(rawURL)
	if err != nil {
		return crawler.FetchResult{}, fmt.Errorf("parse source: %w", err)
	}
	x := newExtraction(source)
	collector := f.buildCollector()
	f.configureCollectorHooks(collector, x)

	if err := f.runCollector(ctx, collector, source.String(), x); err != nil {
		return crawler.FetchResult{}, err
	}
	return x.result(), nil
}

func (f *Fetcher) buildCollector() *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, x *extraction) {
	hooks.OnResponse(func(r *colly.Response) {
		x.statusCode = r.StatusCode
		if r.Headers == nil {
			return
		}
		if lm := r.Headers.Get("Last-Modified"); lm != "" {
			if t, err := http.ParseTime(lm); err == nil {
				x.modified = t.UTC()
			}
		}
	})

	hooks.OnHTML("a[href]", func(e *colly.HTMLElement) {
		target, ok := resolve(e, e.Attr("href"))
		if !ok {
			return
		}
		x.add(target, edge.LinkAttributes{
			Name: strings.TrimSpace(e.Attr("name")),
			Text: collapseSpace(e.Text),
			Rel:  strings.TrimSpace(e.Attr("rel")),
		})
	})

	hooks.OnHTML("img[src]", func(e *colly.HTMLElement) {
		target, ok := resolve(e, e.Attr("src"))
		if !ok {
			return
		}
		key := target.Normalform()
		if alt := collapseSpace(e.Attr("alt")); alt != "" {
			if _, ok := x.alts[key]; !ok {
				x.alts[key] = alt
			}
		}
		x.add(target, edge.LinkAttributes{})
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			x.statusCode = r.StatusCode
		}
		x.err = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, x *extraction) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if x.err != nil {
			return fmt.Errorf("colly response failed: %w", x.err)
		}
		return nil
	}
}

// resolve turns an attribute value into an absolute http(s) endpoint.
func resolve(e *colly.HTMLElement, raw string) (*webgraph.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil, false
	}
	abs := e.Request.AbsoluteURL(raw)
	if abs == "" {
		return nil, false
	}
	u, err := webgraph.ParseURL(abs)
	if err != nil {
		return nil, false
	}
	if p := u.Protocol(); p != "http" && p != "https" {
		return nil, false
	}
	return u, true
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
