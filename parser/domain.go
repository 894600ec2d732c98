// Package parser normalizes and validates user input and scraped records.
package parser

import (
	"net/url"
	"regexp"
	"strings"
)

var hostnamePattern = regexp.MustCompile(`^(?:[a-zA-Z0-9_-]+\.)+[a-zA-Z]{2,}$`)

// NormalizeDomain reduces a store identifier such as
// "https://www.shop.example.com:443/collections/all" to its bare hostname
// "shop.example.com". Input that cannot be parsed is returned unchanged.
func NormalizeDomain(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return input
	}

	raw := s
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return input
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return input
	}
	return strings.TrimPrefix(host, "www.")
}

// ValidDomain reports whether domain looks like a bare hostname with a
// top-level segment of at least two letters.
func ValidDomain(domain string) bool {
	if domain == "" || len(domain) > 253 {
		return false
	}
	return hostnamePattern.MatchString(domain)
}
