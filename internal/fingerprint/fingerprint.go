package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/tomakado/containers/set"
)

// Length is the size of a fingerprint in hex characters.
const Length = md5.Size * 2

var trackingParams = set.New(
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_term",
	"utm_content",
	"gclid",
	"fbclid",
	"ref",
)

// CanonicalURL reduces a raw URL to the form used for duplicate detection.
// It never fails: input that does not parse as an absolute URL goes through a
// plain string fallback.
func CanonicalURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fallbackCanonical(trimmed)
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.RawQuery = stripTrackingParams(parsed.RawQuery)
	if parsed.RawQuery == "" {
		parsed.ForceQuery = false
	}

	out := parsed.String()
	out = strings.TrimSuffix(out, "?")
	out = strings.TrimSuffix(out, "/")
	return strings.ToLower(out)
}

// FromCanonical returns the lower-case hex MD5 digest of a canonical URL.
func FromCanonical(canonical string) string {
	sum := md5.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// FromURL canonicalizes raw and returns both the canonical form and its fingerprint.
func FromURL(raw string) (canonical string, fp string) {
	canonical = CanonicalURL(raw)
	return canonical, FromCanonical(canonical)
}

// Valid reports whether value has the shape of a fingerprint.
func Valid(value string) bool {
	if len(value) != Length {
		return false
	}
	for _, r := range value {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

func fallbackCanonical(raw string) string {
	out := strings.ToLower(strings.TrimSpace(raw))
	if idx := strings.IndexAny(out, "?#"); idx >= 0 {
		out = out[:idx]
	}
	return strings.TrimSuffix(out, "/")
}

// stripTrackingParams removes denylisted keys while keeping the order and
// encoding of the remaining pairs.
func stripTrackingParams(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	pairs := strings.Split(rawQuery, "&")
	kept := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if trackingParams.Contains(strings.ToLower(key)) {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}
