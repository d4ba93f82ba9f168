// Package sources maintains durable records of imported origin URLs:
// registration with duplicate awareness, lifecycle transitions, usage
// tracking, similarity-based duplicate detection, and health checks.
// Records persist in SQLite; the registry owns all shared indexes behind
// a single mutex.
package sources

import (
	"net/url"
	"strings"
)

// trackingParams are stripped during canonicalization so that analytics
// decorations do not create distinct identities.
var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"utm_id", "utm", "gclid", "fbclid",
}

// CanonicalURL normalizes a URL for identity purposes: lowercases the
// host, drops the fragment, and removes common tracking parameters.
// Unparseable input is returned trimmed but otherwise untouched.
func CanonicalURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	u.Scheme = strings.ToLower(u.Scheme)
	q := u.Query()
	for _, p := range trackingParams {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	if u.Path == "/" {
		u.Path = ""
	}
	return u.String()
}

// DomainOf returns the lowercased hostname, or "" when unparseable.
func DomainOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
