// Package markdown converts sanitized page HTML into GitHub-Flavored
// Markdown (spec.md §4.6).
package markdown

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagemd/internal/pageopts"
)

const maxTableRows = 20

var (
	pipeLineRe          = regexp.MustCompile(`(?m)^.*\|.*\r?\n?`)
	unescapeCharsRe     = regexp.MustCompile("\\\\[_\\\\`']")
	excessiveNewlinesRe = regexp.MustCompile(`\n{3,}`)
	escapedLinkRe       = regexp.MustCompile(`\\\[([^]]*)\\]\\\(([^)]*)\\\)`)
	whitespaceRe        = regexp.MustCompile(`\s+`)
	droppedTags         = []string{"script", "style", "iframe", "noscript", "canvas", "svg"}
	placeholderImgRe    = regexp.MustCompile(`(?i)(blank\.gif|placeholder|spacer|1x1\.gif|pixel|transparent)`)
)

// Convert transforms rawHTML into Markdown. It never returns an error: on
// catastrophic transform failure it falls back to normalized plain text.
func Convert(rawHTML string, opts pageopts.ConversionOptions, log *zap.Logger) string {
	if log == nil {
		log = zap.NewNop()
	}
	sanitized, err := sanitizeForConversion(rawHTML, opts)
	if err != nil {
		log.Warn("markdown: sanitize pass failed, converting raw HTML", zap.Error(err))
		sanitized = rawHTML
	}

	pre := prePass(sanitized)

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	out, err := conv.ConvertString(pre)
	if err != nil {
		log.Warn("markdown: conversion failed, falling back to plain text", zap.Error(err))
		return postPass(plainTextFallback(rawHTML))
	}
	return postPass(out)
}

// sanitizeForConversion applies the structural rules that spec.md §4.6
// expresses in terms of what the converter must not emit: dropped tags,
// filtered images, empty anchors and oversized tables. Doing this with
// goquery ahead of the library call keeps the conversion itself a pure
// GFM transform.
func sanitizeForConversion(rawHTML string, opts pageopts.ConversionOptions) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	doc.Find(strings.Join(droppedTags, ",")).Remove()

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" || text == "#" {
			s.ReplaceWithHtml(s.Text())
		}
	})

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if opts.RemoveImages {
			s.Remove()
			return
		}
		src, _ := s.Attr("src")
		if src == "" || placeholderImgRe.MatchString(src) {
			s.Remove()
		}
	})

	doc.Find("table").Each(func(_ int, s *goquery.Selection) {
		rows := s.Find("tr").Length()
		if rows > maxTableRows {
			s.ReplaceWithHtml("\n")
		}
	})

	body := doc.Find("body")
	if body.Length() == 0 {
		return doc.Html()
	}
	return body.Html()
}

func prePass(rawHTML string) string {
	stripped := pipeLineRe.ReplaceAllString(rawHTML, "")
	return unescapeCharsRe.ReplaceAllStringFunc(stripped, func(m string) string {
		if len(m) >= 2 {
			return m[1:]
		}
		return m
	})
}

func postPass(out string) string {
	out = excessiveNewlinesRe.ReplaceAllString(out, "\n\n")
	out = pipeLineRe.ReplaceAllString(out, "")
	out = escapedLinkRe.ReplaceAllString(out, "[$1]($2)")
	return strings.TrimSpace(out)
}

// plainTextFallback extracts whitespace-normalized plain text from rawHTML
// for use when the Markdown transform itself fails outright.
func plainTextFallback(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return whitespaceRe.ReplaceAllString(rawHTML, " ")
	}
	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}
