package cleaner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagemd/internal/pageopts"
	"github.com/JakeFAU/pagemd/internal/rules"
)

func TestClean_FastPathReturnsBodyUnchanged(t *testing.T) {
	src := `<html><body><header>Nav</header><p>Hello world</p></body></html>`
	out, err := Clean(src, pageopts.ConversionOptions{AggressiveCleaning: false}, rules.Defaults(), zap.NewNop())
	require.NoError(t, err)
	assert.Contains(t, out, "<header>Nav</header>")
	assert.Contains(t, out, "Hello world")
}

func TestClean_RemovesHeaderFooterTags(t *testing.T) {
	src := `<html><body><header>Nav</header><footer>Bye</footer><p>Body text long enough</p></body></html>`
	out, err := Clean(src, pageopts.ConversionOptions{AggressiveCleaning: true}, rules.Defaults(), zap.NewNop())
	require.NoError(t, err)
	assert.NotContains(t, out, "Nav")
	assert.NotContains(t, out, "Bye")
	assert.Contains(t, out, "Body text long enough")
}

func TestClean_RemovesCookieConsentBanner(t *testing.T) {
	src := `<html><body><div id="cookie-consent">Accept cookies</div><p>Content</p></body></html>`
	out, err := Clean(src, pageopts.ConversionOptions{AggressiveCleaning: true}, rules.Defaults(), zap.NewNop())
	require.NoError(t, err)
	assert.NotContains(t, out, "Accept cookies")
	assert.Contains(t, out, "Content")
}

func TestClean_ContentIsolationSkippedWhenNoMatch(t *testing.T) {
	src := `<html><body><p>Only content</p></body></html>`
	opts := pageopts.ConversionOptions{AggressiveCleaning: true, TargetSelectors: []string{".does-not-exist"}}
	out, err := Clean(src, opts, rules.Defaults(), zap.NewNop())
	require.NoError(t, err)
	assert.Contains(t, out, "Only content")
}

func TestClean_ContentIsolationReplacesBody(t *testing.T) {
	src := `<html><body><nav>skip</nav><main><p>Keep me</p></main></body></html>`
	opts := pageopts.ConversionOptions{AggressiveCleaning: true, TargetSelectors: []string{"main"}}
	out, err := Clean(src, opts, rules.Defaults(), zap.NewNop())
	require.NoError(t, err)
	assert.NotContains(t, out, "skip")
	assert.Contains(t, out, "Keep me")
}

func TestClean_PreservesImagesWhenNotRemoving(t *testing.T) {
	src := `<html><body><header><img src="logo.png"/></header><p>Text</p></body></html>`
	opts := pageopts.ConversionOptions{AggressiveCleaning: true, RemoveImages: false}
	out, err := Clean(src, opts, rules.Defaults(), zap.NewNop())
	require.NoError(t, err)
	assert.Contains(t, out, "logo.png")
}

func TestClean_RemovesImagesWhenRequested(t *testing.T) {
	src := `<html><body><p>Text</p><img src="logo.png"/></body></html>`
	opts := pageopts.ConversionOptions{AggressiveCleaning: true, RemoveImages: true}
	out, err := Clean(src, opts, rules.Defaults(), zap.NewNop())
	require.NoError(t, err)
	assert.NotContains(t, out, "logo.png")
}

func TestClean_SweepsEmptyElements(t *testing.T) {
	src := `<html><body><div></div><span>   </span><p>Kept text here</p></body></html>`
	out, err := Clean(src, pageopts.ConversionOptions{AggressiveCleaning: true}, rules.Defaults(), zap.NewNop())
	require.NoError(t, err)
	assert.NotContains(t, out, "<div>")
	assert.NotContains(t, out, "<span>")
	assert.Contains(t, out, "Kept text here")
}

func TestClean_NormalizesExcessiveNewlines(t *testing.T) {
	src := "<html><body><p>line_one\n\n\n\nline_two</p></body></html>"
	out, err := Clean(src, pageopts.ConversionOptions{AggressiveCleaning: true}, rules.Defaults(), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, strings.Contains(out, "\n\n\n\n"))
}

func TestClean_InvalidSelectorsAreSkippedNotFatal(t *testing.T) {
	src := `<html><body><p>Content</p></body></html>`
	opts := pageopts.ConversionOptions{AggressiveCleaning: true, RemoveSelectors: []string{":::not-a-selector"}}
	out, err := Clean(src, opts, rules.Defaults(), zap.NewNop())
	require.NoError(t, err)
	assert.Contains(t, out, "Content")
}
