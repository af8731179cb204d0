// Package sitemap resolves a sitemap or sitemap-index URL into a flat,
// deduplicated list of page URLs (spec.md §4.8 step 1, source: sitemap).
// Sitemap-index recursion is capped at maxIndexDepth (spec.md §9 Open
// Question 1).
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagemd/internal/job"
)

// maxIndexDepth bounds sitemap-index recursion (DESIGN.md Open Question 1).
const maxIndexDepth = 5

// maxConcurrentSubFetches bounds fan-out across a single index level,
// matching the "5 concurrent sub-fetches" figure from spec.md §4.8.
const maxConcurrentSubFetches = 5

// urlSet mirrors the <urlset> sitemap schema.
type urlSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// sitemapIndex mirrors the <sitemapindex> schema.
type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Enumerator implements job.Enumerator by fetching and recursively
// expanding a sitemap URL.
type Enumerator struct {
	collector *colly.Collector
	log       *zap.Logger
}

// Config controls the underlying HTTP collector.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// New builds an Enumerator. Grounded on the teacher's
// internal/fetcher/colly/fetcher.go base-collector construction.
func New(cfg Config, log *zap.Logger) *Enumerator {
	if log == nil {
		log = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c.SetRequestTimeout(timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	return &Enumerator{collector: c, log: log}
}

// Enumerate implements job.Enumerator (spec.md §4.8 step 1).
func (e *Enumerator) Enumerate(ctx context.Context, sitemapURL string) ([]string, error) {
	urls, err := e.expand(ctx, sitemapURL, 0)
	if err != nil {
		return nil, err
	}
	return dedupe(urls), nil
}

func (e *Enumerator) expand(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	if depth > maxIndexDepth {
		e.log.Warn("sitemap: max index depth exceeded, truncating", zap.String("url", sitemapURL), zap.Int("depth", depth))
		return nil, nil
	}

	body, err := e.fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	if idx, ok := parseIndex(body); ok {
		children := make([]string, 0, len(idx.Sitemaps))
		for _, s := range idx.Sitemaps {
			if isValidURL(s.Loc) {
				children = append(children, s.Loc)
			} else if strings.TrimSpace(s.Loc) != "" {
				e.log.Warn("sitemap: skipping malformed sub-sitemap loc", zap.String("loc", s.Loc))
			}
		}
		outcomes := job.RunBounded(children, maxConcurrentSubFetches, func(child string) ([]string, error) {
			return e.expand(ctx, child, depth+1)
		})
		var urls []string
		for _, o := range outcomes {
			if o.Err != nil {
				e.log.Warn("sitemap: sub-fetch failed", zap.String("url", o.Item), zap.Error(o.Err))
				continue
			}
			urls = append(urls, o.Value...)
		}
		return urls, nil
	}

	set, ok := parseURLSet(body)
	if !ok {
		return nil, fmt.Errorf("sitemap: unrecognized XML schema at %s", sitemapURL)
	}
	urls := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		if isValidURL(u.Loc) {
			urls = append(urls, u.Loc)
		} else if strings.TrimSpace(u.Loc) != "" {
			e.log.Warn("sitemap: excluding syntactically invalid loc", zap.String("loc", u.Loc))
		}
	}
	return urls, nil
}

// isValidURL implements spec.md §4.8 step 1's "filter to syntactically
// valid URLs": a <loc> entry must parse as an absolute http(s) URL to be
// scheduled, rather than flowing into urlState as a guaranteed failure.
func isValidURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (e *Enumerator) fetch(ctx context.Context, target string) ([]byte, error) {
	var body []byte
	var fetchErr error

	collector := e.collector.Clone()
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() { done <- collector.Visit(target) }()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("sitemap fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("fetch sitemap %s: %w", target, err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("fetch sitemap %s: %w", target, fetchErr)
		}
		return body, nil
	}
}

func parseIndex(body []byte) (sitemapIndex, bool) {
	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err != nil || idx.XMLName.Local != "sitemapindex" {
		return sitemapIndex{}, false
	}
	return idx, true
}

func parseURLSet(body []byte) (urlSet, bool) {
	var set urlSet
	if err := xml.Unmarshal(body, &set); err != nil || set.XMLName.Local != "urlset" {
		return urlSet{}, false
	}
	return set, true
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
