// Package cleaner strips headers, footers, ads and consent banners out of a
// rendered page's DOM before it is handed to the Markdown converter
// (spec.md §4.5).
package cleaner

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/JakeFAU/pagemd/internal/pageopts"
	"github.com/JakeFAU/pagemd/internal/rules"
)

const maxEmptySweepPasses = 20

// Clean runs the cleaning pipeline over rawHTML and returns the sanitized
// HTML string. It never returns an error for a partial failure inside a
// single step; every step is individually defensive per spec.md §4.5.
func Clean(rawHTML string, opts pageopts.ConversionOptions, store *rules.Store, log *zap.Logger) (string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		body = doc.Selection
	}

	if !opts.AggressiveCleaning {
		out, err := body.Html()
		if err != nil {
			return rawHTML, nil
		}
		return out, nil
	}

	isolateContent(body, opts.TargetSelectors, log)

	removeByTag(body, store.HeaderFooterTags, !opts.RemoveImages, log)
	removeByClassList(body, store.HeaderFooterClasses, !opts.RemoveImages, log)
	removeByIDList(body, store.HeaderFooterIds, !opts.RemoveImages, log)
	removeByContainsSubstring(body, store.ContainsInClassOrId, !opts.RemoveImages, log)
	removeBySelectors(body, store.CookiesConsent, !opts.RemoveImages, log)
	removeBySelectors(body, opts.RemoveSelectors, !opts.RemoveImages, log)

	if opts.RemoveImages {
		safeEach(body.Find("img"), func(s *goquery.Selection) { s.Remove() }, log)
	}

	sweepEmptyElements(body, log)
	normalizeText(body, store.FormatPatterns, log)

	out, err := body.Html()
	if err != nil {
		return rawHTML, nil
	}
	return out, nil
}

// isolateContent implements step 1: if any target selector matches, body's
// contents become the concatenation of the outerHTML of every match, in
// selector order. A selector that matches nothing anywhere is skipped
// rather than treated as an error.
func isolateContent(body *goquery.Selection, targetSelectors []string, log *zap.Logger) {
	if len(targetSelectors) == 0 {
		return
	}
	var pieces []string
	for _, sel := range targetSelectors {
		if _, err := cascadia.Compile(sel); err != nil {
			log.Warn("cleaner: skipping invalid target selector", zap.String("selector", sel), zap.Error(err))
			continue
		}
		body.Find(sel).Each(func(_ int, s *goquery.Selection) {
			html, err := goquery.OuterHtml(s)
			if err != nil {
				log.Warn("cleaner: failed to serialize target selector match", zap.Error(err))
				return
			}
			pieces = append(pieces, html)
		})
	}
	if len(pieces) == 0 {
		return
	}
	body.SetHtml(strings.Join(pieces, ""))
}

func removeByTag(body *goquery.Selection, tags []string, preserveImages bool, log *zap.Logger) {
	if len(tags) == 0 {
		return
	}
	sel := body.Find(strings.Join(tags, ","))
	removeSelection(sel, preserveImages, log)
}

func removeByClassList(body *goquery.Selection, classes []string, preserveImages bool, log *zap.Logger) {
	matchByPredicate(body, preserveImages, log, func(s *goquery.Selection) bool {
		for _, class := range classes {
			if s.HasClass(class) {
				return true
			}
		}
		return false
	})
}

func removeByIDList(body *goquery.Selection, ids []string, preserveImages bool, log *zap.Logger) {
	matchByPredicate(body, preserveImages, log, func(s *goquery.Selection) bool {
		id, ok := s.Attr("id")
		if !ok {
			return false
		}
		for _, want := range ids {
			if id == want {
				return true
			}
		}
		return false
	})
}

func removeByContainsSubstring(body *goquery.Selection, substrings []string, preserveImages bool, log *zap.Logger) {
	lowered := make([]string, len(substrings))
	for i, s := range substrings {
		lowered[i] = strings.ToLower(s)
	}
	matchByPredicate(body, preserveImages, log, func(s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		haystack := strings.ToLower(class + " " + id)
		for _, needle := range lowered {
			if needle != "" && strings.Contains(haystack, needle) {
				return true
			}
		}
		return false
	})
}

func removeBySelectors(body *goquery.Selection, selectors []string, preserveImages bool, log *zap.Logger) {
	for _, sel := range selectors {
		if sel == "" {
			continue
		}
		if _, err := cascadia.Compile(sel); err != nil {
			log.Warn("cleaner: skipping invalid removal selector", zap.String("selector", sel), zap.Error(err))
			continue
		}
		removeSelection(body.Find(sel), preserveImages, log)
	}
}

func matchByPredicate(body *goquery.Selection, preserveImages bool, log *zap.Logger, match func(*goquery.Selection) bool) {
	var toRemove []*goquery.Selection
	body.Find("*").Each(func(_ int, s *goquery.Selection) {
		if match(s) {
			toRemove = append(toRemove, s)
		}
	})
	for _, s := range toRemove {
		removeSelection(s, preserveImages, log)
	}
}

// removeSelection removes every node in sel, defensively: any single panic
// or serialization error is logged and does not abort the remaining
// elements. When preserveImages is set, descendant images are cloned into
// the parent, in document order, before the container disappears.
func removeSelection(sel *goquery.Selection, preserveImages bool, log *zap.Logger) {
	safeEach(sel, func(s *goquery.Selection) {
		if preserveImages {
			preserveDescendantImages(s)
		}
		s.Remove()
	}, log)
}

func preserveDescendantImages(container *goquery.Selection) {
	parent := container.Parent()
	if parent.Length() == 0 {
		return
	}
	container.Find("img").Each(func(_ int, img *goquery.Selection) {
		if node := img.Nodes; len(node) > 0 {
			parent.AppendNodes(cloneNode(node[0]))
		}
	})
}

func cloneNode(n *html.Node) *html.Node {
	clone := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		clone.AppendChild(cloneNode(c))
	}
	return clone
}

// sweepEmptyElements removes elements with no element children and no
// non-whitespace text, bottom-up, never touching an <img> or an ancestor
// currently holding one. Bounded to maxEmptySweepPasses full passes so a
// pathological document cannot loop forever.
func sweepEmptyElements(body *goquery.Selection, log *zap.Logger) {
	for pass := 0; pass < maxEmptySweepPasses; pass++ {
		removedAny := false
		var candidates []*goquery.Selection
		body.Find("*").Each(func(_ int, s *goquery.Selection) {
			if isEmptyElement(s) {
				candidates = append(candidates, s)
			}
		})
		for _, s := range candidates {
			if s.Find("img").Length() > 0 {
				continue
			}
			if isElementNode(s, "img") {
				continue
			}
			s.Remove()
			removedAny = true
		}
		if !removedAny {
			return
		}
	}
	log.Debug("cleaner: empty-element sweep hit pass cap", zap.Int("passes", maxEmptySweepPasses))
}

func isEmptyElement(s *goquery.Selection) bool {
	if s.Children().Length() > 0 {
		return false
	}
	return strings.TrimSpace(s.Text()) == ""
}

func isElementNode(s *goquery.Selection, tag string) bool {
	if len(s.Nodes) == 0 {
		return false
	}
	return strings.EqualFold(s.Nodes[0].Data, tag)
}

// normalizeText applies patterns to every text node whose content contains
// '|', '\\' or '_' (spec.md §4.5 step 5).
func normalizeText(body *goquery.Selection, patterns map[string]*regexp.Regexp, log *zap.Logger) {
	if len(patterns) == 0 || len(body.Nodes) == 0 {
		return
	}
	walkTextNodes(body.Nodes[0], patterns)
}

func walkTextNodes(n *html.Node, patterns map[string]*regexp.Regexp) {
	if n.Type == html.TextNode {
		if strings.ContainsAny(n.Data, "|\\_") {
			n.Data = applyPatterns(n.Data, patterns)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkTextNodes(c, patterns)
	}
}

func applyPatterns(text string, patterns map[string]*regexp.Regexp) string {
	if p, ok := patterns["anyTableLine"]; ok {
		text = p.ReplaceAllString(text, "")
	}
	if p, ok := patterns["functionCallsWithPipes"]; ok {
		text = p.ReplaceAllString(text, "")
	}
	if p, ok := patterns["pipeWithDashes"]; ok {
		text = p.ReplaceAllString(text, "")
	}
	if p, ok := patterns["escapeChars"]; ok {
		text = p.ReplaceAllStringFunc(text, func(m string) string {
			if len(m) >= 2 {
				return m[1:]
			}
			return m
		})
	}
	if p, ok := patterns["trailingBackslashes"]; ok {
		text = p.ReplaceAllString(text, "")
	}
	if p, ok := patterns["excessiveNewlines"]; ok {
		text = p.ReplaceAllString(text, "\n\n")
	}
	return text
}

func safeEach(sel *goquery.Selection, fn func(*goquery.Selection), log *zap.Logger) {
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		defer func() {
			if r := recover(); r != nil {
				log.Warn("cleaner: recovered from step panic", zap.Any("recover", r))
			}
		}()
		fn(s)
		return true
	})
}
