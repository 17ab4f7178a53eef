package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var errEmptyDomain = errors.New("domain cannot be empty")

// SanitizeTrustedDomain reduces a trusted origin to its lowercase host with
// an optional port. A leading http:// or https:// and one trailing slash are
// dropped. Anything beyond a bare host is rejected.
func SanitizeTrustedDomain(raw string) (string, error) {
	host := strings.ToLower(strings.TrimSpace(raw))
	if host == "" {
		return "", errEmptyDomain
	}
	for _, scheme := range []string{"http://", "https://"} {
		host = strings.TrimPrefix(host, scheme)
	}
	host = strings.TrimSuffix(host, "/")

	switch {
	case strings.ContainsAny(host, " \t\r\n"):
		return "", fmt.Errorf("domain %q contains whitespace", raw)
	case strings.Contains(host, "*"):
		return "", fmt.Errorf("domain %q: wildcards are not allowed", raw)
	}

	u, err := url.Parse("http://" + host)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("domain %q is not a valid host", raw)
	}
	if u.User != nil || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("domain %q must be a bare host", raw)
	}
	return u.Host, nil
}
