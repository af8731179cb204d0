package sitemap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEnumerate_ParsesFlatURLSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/a</loc></url>
  <url><loc>https://example.com/b</loc></url>
</urlset>`))
	}))
	defer srv.Close()

	e := New(Config{Timeout: 2 * time.Second}, zap.NewNop())
	urls, err := e.Enumerate(context.Background(), srv.URL)
	require.NoError(t, err)
	sort.Strings(urls)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, urls)
}

func TestEnumerate_RecursesThroughSitemapIndex(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/child1.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<urlset><url><loc>https://example.com/1</loc></url></urlset>`))
	})
	mux.HandleFunc("/child2.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<urlset><url><loc>https://example.com/2</loc></url></urlset>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/index.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>` + srv.URL + `/child1.xml</loc></sitemap>
  <sitemap><loc>` + srv.URL + `/child2.xml</loc></sitemap>
</sitemapindex>`))
	})

	e := New(Config{Timeout: 2 * time.Second}, zap.NewNop())
	urls, err := e.Enumerate(context.Background(), srv.URL+"/index.xml")
	require.NoError(t, err)
	sort.Strings(urls)
	assert.Equal(t, []string{"https://example.com/1", "https://example.com/2"}, urls)
}

func TestEnumerate_TruncatesBeyondMaxDepth(t *testing.T) {
	e := &Enumerator{log: zap.NewNop()}
	urls, err := e.expand(context.Background(), "https://example.com/unreachable.xml", maxIndexDepth+1)
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestParseIndex_RejectsURLSet(t *testing.T) {
	_, ok := parseIndex([]byte(`<urlset><url><loc>x</loc></url></urlset>`))
	assert.False(t, ok)
}

func TestParseURLSet_RejectsIndex(t *testing.T) {
	_, ok := parseURLSet([]byte(`<sitemapindex></sitemapindex>`))
	assert.False(t, ok)
}

func TestDedupe_RemovesDuplicates(t *testing.T) {
	got := dedupe([]string{"a", "b", "a"})
	assert.Equal(t, []string{"a", "b"}, got)
}
