package cleaner

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
)

// Richness is the two-signal content-density probe from spec.md §4.7 step 4.
type Richness struct {
	TextLength   int
	ElementCount int
}

// Probe computes textLength and elementCount for rawHTML. textLength
// prefers go-readability's density-scored extraction over a raw body-text
// count, since the latter is easily inflated by boilerplate navigation
// text on sparse pages; when readability fails to parse a coherent
// article it falls back to the raw DOM's visible text length.
func Probe(rawHTML, pageURL string, log *zap.Logger) Richness {
	if log == nil {
		log = zap.NewNop()
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Richness{}
	}
	elementCount := doc.Find("body *").Length()

	textLength := len(strings.TrimSpace(doc.Find("body").Text()))
	if parsed, err := url.Parse(pageURL); err == nil {
		if article, rerr := readability.FromReader(strings.NewReader(rawHTML), parsed); rerr == nil {
			if len(article.TextContent) > 0 {
				textLength = len(strings.TrimSpace(article.TextContent))
			}
		} else {
			log.Debug("cleaner: readability probe failed, using raw text length", zap.Error(rerr))
		}
	}

	return Richness{TextLength: textLength, ElementCount: elementCount}
}
