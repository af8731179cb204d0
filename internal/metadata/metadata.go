// Package metadata extracts page metadata (title, description, Open Graph
// tags, language, canonical link, publication tags) and formats it into the
// human-readable header block used in every conversion artifact (spec.md
// §4.4).
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/JakeFAU/pagemd/internal/browser"
)

// extractScript reads the fields spec.md §4.4 names and returns them as a
// single JSON-serializable object so Evaluate can hand back one JS value.
const extractScript = `(() => {
	const meta = (selector, attr) => {
		const el = document.querySelector(selector);
		return el ? (el.getAttribute(attr) || "").trim() : "";
	};
	const og = {};
	document.querySelectorAll('meta[property^="og:"]').forEach((el) => {
		const key = el.getAttribute("property");
		const val = el.getAttribute("content");
		if (key && val) { og[key] = val; }
	});
	return {
		title: document.title || "",
		description: meta('meta[name="description"]', "content"),
		lang: document.documentElement ? (document.documentElement.getAttribute("lang") || "") : "",
		canonical: meta('link[rel="canonical"]', "href"),
		publishedTime: meta('meta[property="article:published_time"]', "content"),
		modifiedTime: meta('meta[property="article:modified_time"]', "content"),
		author: meta('meta[name="author"]', "content"),
		og: og,
	};
})()`

// Record is the raw metadata harvested from a page.
type Record struct {
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	Lang          string            `json:"lang"`
	Canonical     string            `json:"canonical"`
	PublishedTime string            `json:"publishedTime"`
	ModifiedTime  string            `json:"modifiedTime"`
	Author        string            `json:"author"`
	OpenGraph     map[string]string `json:"og"`
}

// Extract runs extractScript in page and decodes the result into a Record.
func Extract(ctx context.Context, b browser.Browser, page browser.Page) (Record, error) {
	raw, err := b.Evaluate(ctx, page, extractScript)
	if err != nil {
		return Record{}, fmt.Errorf("extract metadata: %w", err)
	}
	return decode(raw)
}

func decode(raw any) (Record, error) {
	// chromedp.Evaluate hands back the JS value already unmarshaled into
	// map[string]any; round-trip through encoding/json to land it on Record
	// without hand-rolling per-field type assertions.
	blob, err := json.Marshal(raw)
	if err != nil {
		return Record{}, fmt.Errorf("marshal raw metadata: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(blob, &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal metadata record: %w", err)
	}
	if rec.OpenGraph == nil {
		rec.OpenGraph = map[string]string{}
	}
	return rec, nil
}

// Format renders rec into the stable, human-readable header block used
// verbatim at the top of every conversion artifact.
func Format(rec Record) string {
	var b strings.Builder
	writeLine(&b, "Title", rec.Title)
	writeLine(&b, "Description", rec.Description)
	writeLine(&b, "Language", rec.Lang)
	writeLine(&b, "Canonical", rec.Canonical)
	writeLine(&b, "Author", rec.Author)
	writeLine(&b, "Published", rec.PublishedTime)
	writeLine(&b, "Modified", rec.ModifiedTime)

	if len(rec.OpenGraph) > 0 {
		keys := make([]string, 0, len(rec.OpenGraph))
		for k := range rec.OpenGraph {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			writeLine(&b, k, rec.OpenGraph[k])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeLine(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}
