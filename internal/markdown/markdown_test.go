package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagemd/internal/pageopts"
)

func TestPrePass_StripsPipeLines(t *testing.T) {
	in := "keep this\n| a | b |\nkeep that too"
	out := prePass(in)
	assert.NotContains(t, out, "| a | b |")
	assert.Contains(t, out, "keep this")
	assert.Contains(t, out, "keep that too")
}

func TestPrePass_UnescapesLiteralChars(t *testing.T) {
	in := `hello\_world \\ \` + "`" + `code\` + "`" + ` it\'s`
	out := prePass(in)
	assert.NotContains(t, out, `\_`)
	assert.Contains(t, out, "hello_world")
}

func TestPostPass_CollapsesExcessiveNewlines(t *testing.T) {
	out := postPass("a\n\n\n\nb")
	assert.Equal(t, "a\n\nb", out)
}

func TestPostPass_FixesEscapedLinkSyntax(t *testing.T) {
	out := postPass(`\[Example\]\(https://example.com\)`)
	assert.Equal(t, "[Example](https://example.com)", out)
}

func TestSanitizeForConversion_DropsScriptAndStyle(t *testing.T) {
	src := `<html><body><script>evil()</script><style>.x{}</style><p>Keep me</p></body></html>`
	out, err := sanitizeForConversion(src, pageopts.ConversionOptions{})
	require.NoError(t, err)
	assert.NotContains(t, out, "evil()")
	assert.NotContains(t, out, ".x{}")
	assert.Contains(t, out, "Keep me")
}

func TestSanitizeForConversion_DropsPlaceholderImages(t *testing.T) {
	src := `<html><body><img src="tracking/pixel.gif"/><img src="real.jpg"/></body></html>`
	out, err := sanitizeForConversion(src, pageopts.ConversionOptions{})
	require.NoError(t, err)
	assert.NotContains(t, out, "pixel.gif")
	assert.Contains(t, out, "real.jpg")
}

func TestSanitizeForConversion_RemovesAllImagesWhenRequested(t *testing.T) {
	src := `<html><body><img src="real.jpg"/><p>Text</p></body></html>`
	out, err := sanitizeForConversion(src, pageopts.ConversionOptions{RemoveImages: true})
	require.NoError(t, err)
	assert.NotContains(t, out, "real.jpg")
}

func TestSanitizeForConversion_DropsOversizedTables(t *testing.T) {
	var rows strings.Builder
	for i := 0; i < 25; i++ {
		rows.WriteString("<tr><td>x</td></tr>")
	}
	src := "<html><body><table>" + rows.String() + "</table><p>After</p></body></html>"
	out, err := sanitizeForConversion(src, pageopts.ConversionOptions{})
	require.NoError(t, err)
	assert.NotContains(t, out, "<table>")
	assert.Contains(t, out, "After")
}

func TestSanitizeForConversion_DropsEmptyAnchorText(t *testing.T) {
	src := `<html><body><a href="/x">#</a><a href="/y">Real link</a></body></html>`
	out, err := sanitizeForConversion(src, pageopts.ConversionOptions{})
	require.NoError(t, err)
	assert.NotContains(t, out, `href="/x"`)
	assert.Contains(t, out, "Real link")
}

func TestPlainTextFallback_NormalizesWhitespace(t *testing.T) {
	got := plainTextFallback("<html><body><p>Hello   \n\n world</p></body></html>")
	assert.Equal(t, "Hello world", got)
}

func TestConvert_ProducesNonEmptyOutputForSimplePage(t *testing.T) {
	src := `<html><body><h1>Title</h1><p>Some paragraph text.</p></body></html>`
	out := Convert(src, pageopts.ConversionOptions{}, zap.NewNop())
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "Some paragraph text.")
}
