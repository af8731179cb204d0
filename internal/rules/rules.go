// Package rules holds the process-wide, lazily-loaded, immutable set of
// DOM selectors and regex patterns used by the Cleaner (spec.md §4.2).
package rules

import (
	"fmt"
	"os"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store is the immutable set of cleaning rules. It is safe for concurrent
// read access by every conversion in flight.
type Store struct {
	HeaderFooterTags    []string
	HeaderFooterClasses []string
	HeaderFooterIds     []string
	ContainsInClassOrId []string
	CookiesConsent      []string
	FormatPatterns      map[string]*regexp.Regexp
}

// fileFormat mirrors the on-disk YAML shape for an optional override file.
type fileFormat struct {
	HeaderFooterTags    []string          `yaml:"header_footer_tags"`
	HeaderFooterClasses []string          `yaml:"header_footer_classes"`
	HeaderFooterIds     []string          `yaml:"header_footer_ids"`
	ContainsInClassOrId []string          `yaml:"contains_in_class_or_id"`
	CookiesConsent      []string          `yaml:"cookies_consent"`
	FormatPatterns      map[string]string `yaml:"format_patterns"`
}

var (
	once     sync.Once
	loaded   *Store
	loadErr  error
	loadPath string
)

// SetPath configures the optional override file consulted by Load. It must
// be called, if at all, before the first call to Load.
func SetPath(path string) {
	loadPath = path
}

// Load returns the process-wide Store, loading it from the configured path
// (or built-in defaults, on any error or empty path) exactly once.
func Load() (*Store, error) {
	once.Do(func() {
		loaded, loadErr = load(loadPath)
	})
	return loaded, loadErr
}

// reset clears the sync.Once guard; it exists only for tests that need to
// exercise Load with different paths in the same process.
func reset() {
	once = sync.Once{}
	loaded, loadErr = nil, nil
}

func load(path string) (*Store, error) {
	store := Defaults()
	if path == "" {
		return store, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-provided config path
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return store, fmt.Errorf("read rules file: %w", err)
	}
	var parsed fileFormat
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return store, fmt.Errorf("parse rules file: %w", err)
	}
	overlay(store, parsed)
	return store, nil
}

func overlay(store *Store, parsed fileFormat) {
	if len(parsed.HeaderFooterTags) > 0 {
		store.HeaderFooterTags = parsed.HeaderFooterTags
	}
	if len(parsed.HeaderFooterClasses) > 0 {
		store.HeaderFooterClasses = parsed.HeaderFooterClasses
	}
	if len(parsed.HeaderFooterIds) > 0 {
		store.HeaderFooterIds = parsed.HeaderFooterIds
	}
	if len(parsed.ContainsInClassOrId) > 0 {
		store.ContainsInClassOrId = parsed.ContainsInClassOrId
	}
	if len(parsed.CookiesConsent) > 0 {
		store.CookiesConsent = parsed.CookiesConsent
	}
	for name, pattern := range parsed.FormatPatterns {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		store.FormatPatterns[name] = compiled
	}
}

// Defaults returns the built-in rule set (spec.md §4.2, §6).
func Defaults() *Store {
	return &Store{
		HeaderFooterTags: []string{
			"header", "footer", "nav", "aside",
		},
		HeaderFooterClasses: []string{
			"header", "footer", "navbar", "nav", "sidebar", "site-header", "site-footer",
		},
		HeaderFooterIds: []string{
			"header", "footer", "nav", "sidebar",
		},
		ContainsInClassOrId: []string{
			"cookie", "consent", "advert", "advertisement", "banner", "popup", "modal", "subscribe",
		},
		CookiesConsent: []string{
			"#cookie-consent", ".cookie-consent", ".cookie-banner", "#gdpr-banner", ".consent-banner",
		},
		FormatPatterns: defaultFormatPatterns(),
	}
}

func defaultFormatPatterns() map[string]*regexp.Regexp {
	patterns := map[string]string{
		"excessiveNewlines":      `\n{3,}`,
		"anyTableLine":           `(?m)^.*\|.*\|.*$`,
		"functionCallsWithPipes": `(?m).*_[a-zA-Z0-9_]+.*\|.*$`,
		"escapeChars":            `\\[_\\` + "`" + `']`,
		"trailingBackslashes":    `(?m)\\$`,
		"pipeWithDashes":         `(?m).*\|\s*-{5,}\s*$`,
	}
	out := make(map[string]*regexp.Regexp, len(patterns))
	for name, expr := range patterns {
		out[name] = regexp.MustCompile(expr)
	}
	return out
}
