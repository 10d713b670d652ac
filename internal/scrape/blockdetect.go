package scrape

import (
	"bytes"
	"net/http"
)

// Wall names the kind of anti-bot or paywall page a site served instead of
// the article.
type Wall string

const (
	WallNone       Wall = ""
	WallCloudflare Wall = "cloudflare"
	WallCaptcha    Wall = "captcha"
	WallJSShell    Wall = "js_shell"
	WallPaywall    Wall = "paywall"
)

var (
	challengeMarkers = [][]byte{
		[]byte("checking your browser"),
		[]byte("cf-browser-verification"),
		[]byte("just a moment..."),
	}
	captchaMarkers = [][]byte{
		[]byte("captcha"),
		[]byte("are you a robot"),
	}
	paywallMarkers = [][]byte{
		[]byte("subscribe to continue reading"),
		[]byte("this content is for subscribers"),
		[]byte("already a subscriber? log in"),
		[]byte("you have reached your free article limit"),
	}
)

// DetectWall inspects a response for signs that the article body is hidden.
// Paywall markers only count on short pages so that a footer link on a full
// article does not trip the check.
func DetectWall(status int, header http.Header, body []byte) Wall {
	if status == http.StatusForbidden || status == http.StatusServiceUnavailable {
		if header.Get("cf-ray") != "" || header.Get("server") == "cloudflare" {
			return WallCloudflare
		}
	}

	lower := bytes.ToLower(body)

	for _, m := range challengeMarkers {
		if bytes.Contains(lower, m) {
			return WallCloudflare
		}
	}
	for _, m := range captchaMarkers {
		if bytes.Contains(lower, m) {
			return WallCaptcha
		}
	}

	if len(body) < 2000 {
		if bytes.Contains(lower, []byte("<noscript")) && bytes.Contains(lower, []byte("javascript")) {
			return WallJSShell
		}
		if bytes.Contains(lower, []byte(`http-equiv="refresh"`)) {
			return WallJSShell
		}
	}

	if len(body) < 20000 {
		for _, m := range paywallMarkers {
			if bytes.Contains(lower, m) {
				return WallPaywall
			}
		}
	}

	return WallNone
}
