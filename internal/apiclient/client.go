// Package apiclient is the authenticated request helper every call to the
// policy backend goes through. It adds the stored API key to outgoing
// requests and refuses to send anything to an origin other than the
// configured one, so the key cannot leak off-site.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/google/uuid"

	"github.com/raysh454/policyctl/internal/credential"
	"github.com/raysh454/policyctl/internal/logging"
	"github.com/raysh454/policyctl/internal/metrics"
	"github.com/raysh454/policyctl/internal/webclient"
)

const (
	HeaderAPIKey        = "X-API-Key"
	HeaderAuthorization = "Authorization"
	AuthScheme          = "ApiKey"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the origin requests are resolved against and confined to.
	// Any path component is ignored.
	BaseURL string

	// DualHeader also sends "Authorization: ApiKey <key>" next to X-API-Key.
	DualHeader bool
}

// Options are the per-call parts of a request.
type Options struct {
	Method  string
	Headers http.Header
	Body    []byte
}

// Param is one query parameter. A nil Value is skipped.
type Param struct {
	Key   string
	Value any
}

// Params is an ordered parameter list; a nil Params means "no parameters".
type Params []Param

// Client issues same-origin requests with the stored API key attached.
type Client struct {
	origin    Origin
	dual      bool
	provider  credential.Provider
	transport webclient.WebClient
	metrics   metrics.ClientMetrics
	logger    logging.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMetrics records cross-origin refusals.
func WithMetrics(m metrics.ClientMetrics) ClientOption {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// New creates a Client. It fails if cfg.BaseURL is not an absolute http(s) URL.
func New(cfg Config, provider credential.Provider, transport webclient.WebClient, logger logging.Logger, opts ...ClientOption) (*Client, error) {
	if provider == nil {
		return nil, errors.New("apiclient: nil credential provider")
	}
	if transport == nil {
		return nil, errors.New("apiclient: nil transport")
	}
	origin, err := ParseOrigin(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("apiclient: %w", err)
	}
	if logger == nil {
		logger = logging.Nop{}
	}

	c := &Client{
		origin:    origin,
		dual:      cfg.DualHeader,
		provider:  provider,
		transport: transport,
		metrics:   metrics.Noop{},
		logger:    logger.With(logging.Field{Key: "component", Value: "apiclient"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Origin returns the origin the client is confined to.
func (c *Client) Origin() Origin {
	return c.origin
}

// AuthHeaders returns the authentication headers for the stored key, or an
// empty header map when no key is stored.
func (c *Client) AuthHeaders(ctx context.Context) (http.Header, error) {
	h := http.Header{}
	key, ok, err := c.provider.Credential(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return h, nil
	}
	h.Set(HeaderAPIKey, key)
	if c.dual {
		h.Set(HeaderAuthorization, AuthScheme+" "+key)
	}
	return h, nil
}

// BuildURLWithParams returns rawURL with every non-nil param set as a query
// parameter, in order, replacing any existing value for the same name. A nil
// params returns rawURL unchanged. Relative URLs are resolved against the
// client's origin.
func (c *Client) BuildURLWithParams(rawURL string, params Params) (string, error) {
	if params == nil {
		return rawURL, nil
	}
	u, err := c.resolve(rawURL)
	if err != nil {
		return "", err
	}
	u.RawQuery = encodeOrdered(u.RawQuery, params)
	return u.String(), nil
}

// Request resolves rawURL against the origin and dispatches it exactly once
// with the merged headers. A target on another origin fails with
// ErrCrossOrigin before the credential or the network is touched. Responses
// are returned whatever their status; only transport failures are errors.
func (c *Client) Request(ctx context.Context, rawURL string, opts *Options) (*webclient.Response, error) {
	if opts == nil {
		opts = &Options{}
	}

	u, err := c.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	if target, ok := httpOrigin(u); !ok || target != c.origin {
		name := "null"
		if ok {
			name = target.String()
		}
		c.metrics.IncCrossOriginBlocked()
		c.logger.Warn("cross-origin request blocked",
			logging.Field{Key: "origin", Value: c.origin.String()},
			logging.Field{Key: "target", Value: name})
		return nil, &CrossOriginError{Origin: c.origin.String(), Target: name}
	}

	auth, err := c.AuthHeaders(ctx)
	if err != nil {
		return nil, err
	}
	headers := mergeHeaders(http.Header{"Accept": {"application/json"}}, opts.Headers, auth)

	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	reqID := uuid.NewString()
	c.logger.Debug("dispatching request",
		logging.Field{Key: "request_id", Value: reqID},
		logging.Field{Key: "method", Value: method},
		logging.Field{Key: "path", Value: u.Path},
		logging.Field{Key: "authenticated", Value: len(auth) > 0})

	resp, err := c.transport.Do(ctx, &webclient.Request{
		Method:  method,
		URL:     u.String(),
		Headers: headers,
		Body:    opts.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, u.Path, err)
	}

	c.logger.Debug("request completed",
		logging.Field{Key: "request_id", Value: reqID},
		logging.Field{Key: "status", Value: resp.StatusCode})
	return resp, nil
}

func (c *Client) resolve(rawURL string) (*url.URL, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	return c.origin.URL().ResolveReference(ref), nil
}

// mergeHeaders layers each set over the previous one; a key present in a
// later set replaces all earlier values for that key.
func mergeHeaders(layers ...http.Header) http.Header {
	out := http.Header{}
	for _, layer := range layers {
		for k, vs := range layer {
			ck := http.CanonicalHeaderKey(k)
			out[ck] = append([]string(nil), vs...)
		}
	}
	return out
}

// httpOrigin returns the origin of an http(s) URL with a host. Anything else
// (mailto:, data:, file:, javascript:) has an opaque origin that never
// matches the client's.
func httpOrigin(u *url.URL) (Origin, bool) {
	o, err := OriginOf(u)
	if err != nil || (o.Scheme != "http" && o.Scheme != "https") {
		return Origin{}, false
	}
	return o, true
}

// isNil reports whether v is nil or a typed nil such as (*int)(nil).
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

type queryPair struct{ key, value string }

// encodeOrdered applies params to the query string the way
// URLSearchParams.set does: the first pair with the same key takes the new
// value in place and later duplicates are dropped, new keys are appended in
// param order, and untouched pairs keep their positions. url.Values.Encode
// would sort keys alphabetically.
func encodeOrdered(original string, params Params) string {
	var pairs []queryPair
	for _, raw := range strings.Split(original, "&") {
		if raw == "" {
			continue
		}
		k, v, _ := strings.Cut(raw, "=")
		uk, kerr := url.QueryUnescape(k)
		uv, verr := url.QueryUnescape(v)
		if kerr != nil || verr != nil {
			continue
		}
		pairs = append(pairs, queryPair{uk, uv})
	}

	for _, p := range params {
		if isNil(p.Value) {
			continue
		}
		set := queryPair{p.Key, fmt.Sprint(p.Value)}
		next := make([]queryPair, 0, len(pairs)+1)
		placed := false
		for _, pair := range pairs {
			if pair.key != p.Key {
				next = append(next, pair)
				continue
			}
			if !placed {
				next = append(next, set)
				placed = true
			}
		}
		if !placed {
			next = append(next, set)
		}
		pairs = next
	}

	var b strings.Builder
	for _, pair := range pairs {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(pair.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(pair.value))
	}
	return b.String()
}
