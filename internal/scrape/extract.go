package scrape

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

const maxBodyBytes = 4 << 20

// minReadableChars is the shortest readability output trusted over the
// whole-page fallback.
const minReadableChars = 200

// WallError is returned when the site served a challenge or paywall.
type WallError struct {
	Wall Wall
}

func (e *WallError) Error() string {
	return "scrape: blocked by " + string(e.Wall)
}

// HTTPExtractor downloads a page directly and extracts the article text.
type HTTPExtractor struct {
	client    *http.Client
	userAgent string
}

// NewHTTPExtractor creates an extractor whose requests give up after
// timeout.
func NewHTTPExtractor(timeout time.Duration, userAgent string) *HTTPExtractor {
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	return &HTTPExtractor{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
				TLSHandshakeTimeout: timeout,
			},
		},
		userAgent: userAgent,
	}
}

// Name implements Extractor.
func (e *HTTPExtractor) Name() string { return "http" }

// Extract implements Extractor. Any status other than 200 is an error.
func (e *HTTPExtractor) Extract(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", eris.Wrap(err, "scrape: create request")
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "scrape: fetch")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "scrape: read body")
	}

	if wall := DetectWall(resp.StatusCode, resp.Header, body); wall != WallNone {
		return "", &WallError{Wall: wall}
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("scrape: status %d", resp.StatusCode)
	}

	page, _ := url.Parse(target)
	return ExtractText(decodeCharset(resp.Header.Get("Content-Type"), body), page)
}

// ExtractText turns an HTML document into space-separated plain text. The
// readability article body is preferred; short or failed extractions fall
// back to the whole page minus boilerplate elements.
func ExtractText(html []byte, page *url.URL) (string, error) {
	if article, err := readability.FromReader(bytes.NewReader(html), page); err == nil {
		text := collapseSpace(article.TextContent)
		if len([]rune(text)) >= minReadableChars {
			return text, nil
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", eris.Wrap(err, "scrape: parse html")
	}
	doc.Find("script, style, noscript, nav, header, footer, aside, form, iframe, svg").Remove()
	doc.Find("p, div, br, li, td, th, h1, h2, h3, h4, h5, h6, span, a, section, article").
		Each(func(_ int, s *goquery.Selection) {
			s.AppendHtml(" ")
		})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return collapseSpace(root.Text()), nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?([a-z0-9_\-:]+)`)

// decodeCharset converts body to UTF-8 using the Content-Type charset or a
// <meta charset> declaration. Unknown or UTF-8 charsets pass through.
func decodeCharset(contentType string, body []byte) []byte {
	name := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		name = params["charset"]
	}
	if name == "" {
		head := body
		if len(head) > 2048 {
			head = head[:2048]
		}
		if m := metaCharsetRe.FindSubmatch(head); m != nil {
			name = string(m[1])
		}
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "utf-8" || name == "utf8" {
		return body
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return body
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}
