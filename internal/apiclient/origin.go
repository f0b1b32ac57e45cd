package apiclient

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// ErrCrossOrigin marks a request refused by the same-origin guard.
var ErrCrossOrigin = errors.New("cross-origin blocked: refusing to send API key off-site")

// CrossOriginError carries both origins of a refused request.
type CrossOriginError struct {
	Origin string
	Target string
}

func (e *CrossOriginError) Error() string {
	return fmt.Sprintf("%s (origin %s, target %s)", ErrCrossOrigin.Error(), e.Origin, e.Target)
}

func (e *CrossOriginError) Is(target error) bool {
	return target == ErrCrossOrigin
}

// Origin is the scheme, host and effective port of a URL.
type Origin struct {
	Scheme string
	Host   string
	Port   string
}

func (o Origin) String() string {
	if o.Port == defaultPort(o.Scheme) {
		return o.Scheme + "://" + bracketIPv6(o.Host)
	}
	return o.Scheme + "://" + net.JoinHostPort(o.Host, o.Port)
}

// URL returns the origin as a path-less absolute URL usable as a resolution base.
func (o Origin) URL() *url.URL {
	host := bracketIPv6(o.Host)
	if o.Port != defaultPort(o.Scheme) {
		host = net.JoinHostPort(o.Host, o.Port)
	}
	return &url.URL{Scheme: o.Scheme, Host: host, Path: "/"}
}

// OriginOf extracts the origin of an absolute URL. Hosts are lower-cased and
// converted to their IDNA ASCII form so that equivalent spellings compare equal.
func OriginOf(u *url.URL) (Origin, error) {
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" || u.Host == "" {
		return Origin{}, fmt.Errorf("url %q is not absolute", u.String())
	}

	host := strings.ToLower(u.Hostname())
	if puny, err := idna.Lookup.ToASCII(host); err == nil {
		host = puny
	}
	host = strings.TrimSuffix(host, ".")

	port := u.Port()
	if port == "" {
		port = defaultPort(scheme)
	}
	return Origin{Scheme: scheme, Host: host, Port: port}, nil
}

// ParseOrigin parses a base URL and keeps only its origin. Only http and
// https are accepted.
func ParseOrigin(raw string) (Origin, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Origin{}, fmt.Errorf("parse origin %q: %w", raw, err)
	}
	o, err := OriginOf(u)
	if err != nil {
		return Origin{}, err
	}
	if o.Scheme != "http" && o.Scheme != "https" {
		return Origin{}, fmt.Errorf("origin %q: unsupported scheme %q", raw, o.Scheme)
	}
	return o, nil
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}

func bracketIPv6(host string) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}
