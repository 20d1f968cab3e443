// Package urlinfo splits an HTTP/1.x request target into its optional
// components, standing in for the original design's dependency on
// http_parser_parse_url. It supports the four request-target forms defined
// by RFC 7230 §5.3: origin-form ("/path?query"), absolute-form
// ("http://host:port/path?query", used by proxies), authority-form
// ("host:port", CONNECT only), and asterisk-form ("*").
package urlinfo

import (
	"fmt"
	"strings"

	"github.com/badu/dispatch/wire"
)

// ParseRequestTarget splits raw according to isConnect (true only for the
// CONNECT method, which uses authority-form). It returns an error if raw is
// empty or structurally invalid, mirroring http_parser_parse_url's non-zero
// return used by the source to raise invalid_url.
func ParseRequestTarget(raw string, isConnect bool) (wire.QueryParts, error) {
	var qp wire.QueryParts
	if raw == "" {
		return qp, fmt.Errorf("urlinfo: empty request target")
	}

	if isConnect {
		host, port, err := splitHostPort(raw)
		if err != nil {
			return qp, fmt.Errorf("urlinfo: invalid authority-form target %q: %w", raw, err)
		}
		qp.Host, qp.HasHost = host, true
		if port != "" {
			qp.Port, qp.HasPort = port, true
		}
		return qp, nil
	}

	if raw == "*" {
		qp.Path, qp.HasPath = "*", true
		return qp, nil
	}

	rest := raw

	if fragIdx := strings.IndexByte(rest, '#'); fragIdx >= 0 {
		qp.Fragment, qp.HasFragment = rest[fragIdx+1:], true
		rest = rest[:fragIdx]
	}

	if rest == "" {
		return qp, fmt.Errorf("urlinfo: empty request target after removing fragment")
	}

	if rest[0] != '/' && rest != "*" {
		// absolute-form or authority present: scheme://[userinfo@]host[:port][/path][?query]
		schemeEnd := strings.Index(rest, "://")
		if schemeEnd < 0 {
			return qp, fmt.Errorf("urlinfo: relative target %q must begin with '/'", raw)
		}
		scheme := rest[:schemeEnd]
		if !validScheme(scheme) {
			return qp, fmt.Errorf("urlinfo: invalid scheme %q", scheme)
		}
		qp.Scheme, qp.HasScheme = strings.ToLower(scheme), true
		rest = rest[schemeEnd+3:]

		pathIdx := strings.IndexByte(rest, '/')
		var authority string
		if pathIdx < 0 {
			authority = rest
			rest = ""
		} else {
			authority = rest[:pathIdx]
			rest = rest[pathIdx:]
		}

		if at := strings.LastIndexByte(authority, '@'); at >= 0 {
			qp.UserInfo, qp.HasUserInfo = authority[:at], true
			authority = authority[at+1:]
		}
		if authority != "" {
			host, port, err := splitHostPort(authority)
			if err != nil {
				return qp, fmt.Errorf("urlinfo: invalid authority %q: %w", authority, err)
			}
			qp.Host, qp.HasHost = host, true
			if port != "" {
				qp.Port, qp.HasPort = port, true
			}
		}
	}

	if rest == "" {
		return qp, nil
	}

	if qIdx := strings.IndexByte(rest, '?'); qIdx >= 0 {
		qp.Query, qp.HasQuery = rest[qIdx+1:], true
		rest = rest[:qIdx]
	}
	if rest != "" {
		qp.Path, qp.HasPath = rest, true
	}
	return qp, nil
}

// splitHostPort splits "host:port", "[ipv6]:port", or a bare host/IPv6
// literal. port is "" when absent.
func splitHostPort(authority string) (host, port string, err error) {
	if strings.HasPrefix(authority, "[") {
		end := strings.IndexByte(authority, ']')
		if end < 0 {
			return "", "", fmt.Errorf("missing ']' in IPv6 literal")
		}
		host = authority[:end+1]
		rest := authority[end+1:]
		if rest == "" {
			return host, "", nil
		}
		if !strings.HasPrefix(rest, ":") {
			return "", "", fmt.Errorf("unexpected characters after IPv6 literal")
		}
		return host, rest[1:], validatePort(rest[1:])
	}

	if idx := strings.LastIndexByte(authority, ':'); idx >= 0 {
		return authority[:idx], authority[idx+1:], validatePort(authority[idx+1:])
	}
	return authority, "", nil
}

func validatePort(port string) error {
	if port == "" {
		return nil
	}
	for i := 0; i < len(port); i++ {
		if port[i] < '0' || port[i] > '9' {
			return fmt.Errorf("invalid port %q", port)
		}
	}
	return nil
}

func validScheme(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		isAlpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		if i == 0 {
			if !isAlpha {
				return false
			}
			continue
		}
		if !isAlpha && !isDigit && c != '+' && c != '-' && c != '.' {
			return false
		}
	}
	return true
}
