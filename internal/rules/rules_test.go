package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_HasFormatPatterns(t *testing.T) {
	store := Defaults()
	for _, name := range []string{
		"excessiveNewlines", "anyTableLine", "functionCallsWithPipes",
		"escapeChars", "trailingBackslashes", "pipeWithDashes",
	} {
		_, ok := store.FormatPatterns[name]
		assert.Truef(t, ok, "expected pattern %q", name)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	t.Cleanup(reset)
	SetPath(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	store, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().HeaderFooterTags, store.HeaderFooterTags)
}

func TestLoad_OverlaysFromFile(t *testing.T) {
	t.Cleanup(reset)
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := "header_footer_tags:\n  - custom-header\ncookies_consent:\n  - .my-consent\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	SetPath(path)
	store, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"custom-header"}, store.HeaderFooterTags)
	assert.Equal(t, []string{".my-consent"}, store.CookiesConsent)
	assert.NotEmpty(t, store.FormatPatterns)
}

func TestLoad_IsMemoizedAcrossCalls(t *testing.T) {
	t.Cleanup(reset)
	SetPath("")
	first, err := Load()
	require.NoError(t, err)
	second, err := Load()
	require.NoError(t, err)
	assert.Same(t, first, second)
}
