package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>ICE raid in Terrebonne Parish</title>
<script>var tracking = "should not appear";</script>
<style>.x{color:red}</style></head>
<body>
<nav>Home | News | Sports</nav>
<article>
<h1>Federal agents detain dozens in Houma</h1>
<p>Immigration and Customs Enforcement officers arrested 34 people at a shipyard in Houma, Louisiana on Friday, officials said.</p>
<p>The operation in Terrebonne Parish was one of the largest enforcement actions in the state this year, according to the agency.</p>
<p>Advocates gathered outside the federal building in New Orleans on Saturday to protest the detentions and call for the release of those held.</p>
</article>
<footer>Copyright 2017</footer>
</body></html>`

func TestHTTPExtractor_ExtractsArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TestAgent/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	text, err := NewHTTPExtractor(time.Second, "TestAgent/1.0").Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, text, "Houma, Louisiana")
	assert.Contains(t, text, "Terrebonne Parish")
	assert.NotContains(t, text, "should not appear")
	assert.NotContains(t, text, "\n")
}

func TestHTTPExtractor_Non200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html><body>not found</body></html>"))
	}))
	defer srv.Close()

	_, err := NewHTTPExtractor(time.Second, "").Extract(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPExtractor_Paywall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body><p>Subscribe to continue reading.</p></body></html>"))
	}))
	defer srv.Close()

	_, err := NewHTTPExtractor(time.Second, "").Extract(context.Background(), srv.URL)
	var we *WallError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, WallPaywall, we.Wall)
}

func TestHTTPExtractor_DecodesLatin1(t *testing.T) {
	page := "<html><body><p>" + strings.Repeat("Redada de inmigración en el condado. ", 10) + "</p></body></html>"
	encoded, err := charmap.ISO8859_1.NewEncoder().String(page)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		_, _ = w.Write([]byte(encoded))
	}))
	defer srv.Close()

	text, err := NewHTTPExtractor(time.Second, "").Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, text, "inmigración")
}

func TestExtractText_FallbackSeparatesBlocks(t *testing.T) {
	html := []byte(`<html><body><div>Arrests</div><div>in</div><div>Harris County, TX</div><script>x()</script></body></html>`)

	text, err := ExtractText(html, nil)
	require.NoError(t, err)
	assert.Equal(t, "Arrests in Harris County, TX", text)
}

func TestDecodeCharset_MetaTag(t *testing.T) {
	body, err := charmap.Windows1252.NewEncoder().String(`<html><head><meta charset="windows-1252"></head><body>caf` + "é" + `</body></html>`)
	require.NoError(t, err)

	out := decodeCharset("text/html", []byte(body))
	assert.Contains(t, string(out), "café")
}

func TestDecodeCharset_UnknownPassesThrough(t *testing.T) {
	in := []byte("plain")
	assert.Equal(t, in, decodeCharset("text/html; charset=made-up", in))
}

func TestChain_FallsThrough(t *testing.T) {
	first := staticExtractor("", &WallError{Wall: WallCaptcha})
	second := staticExtractor("recovered text", nil)
	c := NewChain(first, second)

	text, err := c.Extract(context.Background(), "u")
	require.NoError(t, err)
	assert.Equal(t, "recovered text", text)
	assert.Equal(t, "static+static", c.Name())
}

func TestChain_AllFail(t *testing.T) {
	c := NewChain(staticExtractor("", errors.New("one")), staticExtractor("   ", nil))

	_, err := c.Extract(context.Background(), "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all extractors failed")
}

func TestStubExtractor_EchoesURL(t *testing.T) {
	text, err := StubExtractor{Text: "copy of {url}"}.Extract(context.Background(), "https://news.example/a")
	require.NoError(t, err)
	assert.Equal(t, "copy of https://news.example/a", text)
}
