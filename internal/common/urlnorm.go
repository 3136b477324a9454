// Proof URL canonicalization, so the duplicate
// check cannot be dodged by trivial rewrites (x.com vs twitter.com, http vs
// https, trailing slashes, tracking query strings).
package common

import (
	"net/url"
	"regexp"
	"strings"
)

// tweetStatusPattern extracts the canonical "/user/status/<id>" part of a
// tweet URL, dropping photo suffixes and query parameters.
var tweetStatusPattern = regexp.MustCompile(`(?i)(https://(?:www\.)?twitter\.com/[^/]+/status/\d+)`)

// NormalizeTweetURL canonicalizes a tweet link for idempotency comparison.
// Returns "" when the input is not a tweet status URL at all.
func NormalizeTweetURL(raw string) string {
	n := NormalizeProofURL(raw)
	if n != "" && tweetStatusPattern.MatchString(n) {
		return n
	}
	return ""
}

// NormalizeProofURL canonicalizes a proof URL for idempotency comparison.
// Returns "" for unparseable input so callers can treat it as missing.
func NormalizeProofURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	// x.com and twitter.com are the same site; pick one spelling.
	raw = strings.Replace(raw, "https://x.com/", "https://twitter.com/", 1)
	raw = strings.Replace(raw, "http://", "https://", 1)

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ""
	}

	host := strings.ToLower(parsed.Host)
	if strings.Contains(host, "twitter.com") {
		if m := tweetStatusPattern.FindString(raw); m != "" {
			return strings.ToLower(m)
		}
	}

	normalized := url.URL{
		Scheme: parsed.Scheme,
		Host:   host,
		Path:   strings.TrimRight(parsed.Path, "/"),
	}
	return strings.ToLower(normalized.String())
}
