package vault

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeOrigin parses a raw URL into its origin (scheme://host[:port]).
// A missing scheme defaults to https; path, query, and fragment are dropped.
func NormalizeOrigin(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty origin")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing origin: %w", err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return "", fmt.Errorf("origin %q has no scheme or host", raw)
	}
	return u.Scheme + "://" + strings.ToLower(u.Host), nil
}

// SignonRealm computes the authentication scope for an origin: scheme +
// eTLD+1, so subdomains of the same registrable domain share a realm.
// Hosts without a registrable domain (IPs, localhost, intranet names) use
// the host itself.
func SignonRealm(origin string) (string, error) {
	origin, err := NormalizeOrigin(origin)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(origin)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + registrableDomain(u.Hostname()), nil
}

// SameSite reports whether two origins or realms share an eTLD+1.
func SameSite(a, b string) bool {
	ha := hostOf(a)
	hb := hostOf(b)
	if ha == "" || hb == "" {
		return false
	}
	return registrableDomain(ha) == registrableDomain(hb)
}

// SiteName returns the display name for an origin or realm: its registrable
// domain, falling back to the bare host.
func SiteName(origin string) string {
	h := hostOf(origin)
	if h == "" {
		return origin
	}
	return registrableDomain(h)
}

// IsSecureOrigin reports whether the origin's scheme is safe for credential
// capture. Loopback http is allowed, matching browser "secure context" rules.
func IsSecureOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "https", "wss":
		return true
	case "http":
		h := u.Hostname()
		return h == "localhost" || h == "127.0.0.1" || h == "::1"
	default:
		return false
	}
}

func hostOf(s string) string {
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func registrableDomain(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Single-label hosts and unlisted suffixes match on the host itself.
		return host
	}
	return etld1
}
