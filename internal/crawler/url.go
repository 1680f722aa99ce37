package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// defaultPorts are dropped from page keys so ":80" and "" compare equal.
var defaultPorts = map[string]string{"http": "80", "https": "443"}

// NormalizeURL returns the key under which a listing page counts as visited.
// Scheme and host are lowercased, default ports and fragments are dropped,
// and query parameters are sorted, so a Next link that only reorders the
// query of an earlier page is recognized as a loop.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if port := u.Port(); port != "" && defaultPorts[u.Scheme] == port {
		u.Host = u.Hostname()
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = u.Query().Encode()
	return u.String(), nil
}

// withParams appends params to the start URL's existing query.
func withParams(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse start url: %w", err)
	}
	if len(params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, values := range params {
		for _, v := range values {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
