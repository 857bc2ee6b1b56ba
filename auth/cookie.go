package auth

import (
	"bytes"
	"net/http"

	"github.com/google/uuid"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/141.0.0.0 Safari/537.36"

// CookieSession authenticates against consumer web apps: a fixed cookie
// blob, a CSRF header, stable browser fingerprint headers, and a fresh
// request id per call.
type CookieSession struct {
	cookie    string
	csrfToken string
	statsigID string
	userAgent string
	origin    string
}

// NewCookieSession builds the strategy from consumer-site credentials.
func NewCookieSession(creds Credentials) *CookieSession {
	ua := creds.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &CookieSession{
		cookie:    creds.Cookie,
		csrfToken: creds.CSRFToken,
		statsigID: creds.StatsigID,
		userAgent: ua,
		origin:    creds.Origin,
	}
}

func (c *CookieSession) Name() string { return "cookie_session" }

func (c *CookieSession) Apply(req *http.Request) error {
	req.Header.Set("Cookie", c.cookie)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-site")
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
		req.Header.Set("Referer", c.origin+"/")
	}
	if c.csrfToken != "" {
		req.Header.Set("X-Csrf-Token", c.csrfToken)
	}
	if c.statsigID != "" {
		req.Header.Set("X-Statsig-Id", c.statsigID)
	}
	// A fresh id per request; some sites reject replays.
	req.Header.Set("X-Request-Id", uuid.NewString())
	return nil
}

// challengeMarkers are substrings of cloud anti-bot interstitial pages.
var challengeMarkers = [][]byte{
	[]byte("Just a moment"),
	[]byte("/cdn-cgi/challenge-platform"),
	[]byte("cf-chl"),
	[]byte("challenge-form"),
}

// DetectChallenge reports whether a response body is an anti-bot
// challenge page rather than a provider payload. Such responses mean
// the stored cookie is stale or the TLS fingerprint was rejected.
func DetectChallenge(body []byte) bool {
	for _, marker := range challengeMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}
