package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/raysh454/policyctl/internal/apiclient"
	"github.com/raysh454/policyctl/internal/credential"
	"github.com/raysh454/policyctl/internal/testutil"
	"github.com/raysh454/policyctl/internal/webclient"
)

const pageOrigin = "https://app.example"

func newClient(t *testing.T, key string, dual bool) (*apiclient.Client, *testutil.DummyWebClient) {
	t.Helper()
	transport := &testutil.DummyWebClient{}
	c, err := apiclient.New(apiclient.Config{BaseURL: pageOrigin, DualHeader: dual},
		credential.StaticProvider(key), transport, &testutil.DummyLogger{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, transport
}

// ─── Construction ──────────────────────────────────────────────────────

func TestNew_RejectsBadBaseURL(t *testing.T) {
	t.Parallel()
	for _, base := range []string{"", "/relative", "ftp://files.example", "::bad"} {
		_, err := apiclient.New(apiclient.Config{BaseURL: base}, credential.StaticProvider(""), &testutil.DummyWebClient{}, nil)
		if err == nil {
			t.Errorf("expected error for base %q", base)
		}
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()
	if _, err := apiclient.New(apiclient.Config{BaseURL: pageOrigin}, nil, &testutil.DummyWebClient{}, nil); err == nil {
		t.Error("expected error for nil provider")
	}
	if _, err := apiclient.New(apiclient.Config{BaseURL: pageOrigin}, credential.StaticProvider(""), nil, nil); err == nil {
		t.Error("expected error for nil transport")
	}
}

func TestNew_IgnoresBasePath(t *testing.T) {
	t.Parallel()
	c, err := apiclient.New(apiclient.Config{BaseURL: "https://app.example/ui/index.html"},
		credential.StaticProvider(""), &testutil.DummyWebClient{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Origin().String(); got != "https://app.example" {
		t.Errorf("expected bare origin, got %q", got)
	}
}

// ─── AuthHeaders ───────────────────────────────────────────────────────

func TestAuthHeaders_AbsentIsEmpty(t *testing.T) {
	t.Parallel()
	c, _ := newClient(t, "", true)
	h, err := c.AuthHeaders(context.Background())
	if err != nil {
		t.Fatalf("AuthHeaders: %v", err)
	}
	if len(h) != 0 {
		t.Errorf("expected empty headers, got %v", h)
	}
}

func TestAuthHeaders_Present(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		dual     bool
		wantAuth string
	}{
		{"dual", true, "ApiKey abc123"},
		{"single", false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, _ := newClient(t, "abc123", tc.dual)
			h, err := c.AuthHeaders(context.Background())
			if err != nil {
				t.Fatalf("AuthHeaders: %v", err)
			}
			if got := h.Get("X-API-Key"); got != "abc123" {
				t.Errorf("X-API-Key = %q", got)
			}
			if got := h.Get("Authorization"); got != tc.wantAuth {
				t.Errorf("Authorization = %q, want %q", got, tc.wantAuth)
			}
		})
	}
}

func TestAuthHeaders_ProviderError(t *testing.T) {
	t.Parallel()
	boom := errors.New("storage unavailable")
	c, err := apiclient.New(apiclient.Config{BaseURL: pageOrigin}, &testutil.CountingProvider{Err: boom}, &testutil.DummyWebClient{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.AuthHeaders(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestAuthHeaders_ReadsStoreEveryCall(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := credential.NewMemoryStore()
	c, err := apiclient.New(apiclient.Config{BaseURL: pageOrigin}, credential.NewStoreProvider(store), &testutil.DummyWebClient{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := credential.Save(ctx, store, "first"); err != nil {
		t.Fatal(err)
	}
	h, _ := c.AuthHeaders(ctx)
	if h.Get("X-API-Key") != "first" {
		t.Fatalf("expected first, got %q", h.Get("X-API-Key"))
	}

	if err := credential.Clear(ctx, store); err != nil {
		t.Fatal(err)
	}
	h, _ = c.AuthHeaders(ctx)
	if len(h) != 0 {
		t.Fatalf("expected no headers after clear, got %v", h)
	}
}

// ─── BuildURLWithParams ────────────────────────────────────────────────

func TestBuildURLWithParams_NilIsIdentity(t *testing.T) {
	t.Parallel()
	c, _ := newClient(t, "", false)
	for _, u := range []string{"/policies", "policies?q=x", "https://elsewhere.example/x", ""} {
		got, err := c.BuildURLWithParams(u, nil)
		if err != nil {
			t.Fatalf("BuildURLWithParams(%q): %v", u, err)
		}
		if got != u {
			t.Errorf("expected identity for %q, got %q", u, got)
		}
	}
}

func TestBuildURLWithParams(t *testing.T) {
	t.Parallel()
	c, _ := newClient(t, "", false)

	cases := []struct {
		name   string
		url    string
		params apiclient.Params
		want   string
	}{
		{
			name:   "empty params resolves only",
			url:    "/policies",
			params: apiclient.Params{},
			want:   "https://app.example/policies",
		},
		{
			name:   "order follows params",
			url:    "/policies",
			params: apiclient.Params{{"sort", "holder"}, {"dir", "asc"}, {"limit", 1}},
			want:   "https://app.example/policies?sort=holder&dir=asc&limit=1",
		},
		{
			name:   "nil values omitted",
			url:    "/policies",
			params: apiclient.Params{{"q", nil}, {"limit", 10}},
			want:   "https://app.example/policies?limit=10",
		},
		{
			name:   "overwrites existing value in place",
			url:    "/policies?dir=desc&q=old",
			params: apiclient.Params{{"q", "new"}, {"page", 2}},
			want:   "https://app.example/policies?dir=desc&q=new&page=2",
		},
		{
			name:   "values are string-coerced and escaped",
			url:    "/policies.csv",
			params: apiclient.Params{{"q", "Anna Berg&Co"}, {"premium", 12.5}, {"active", true}},
			want:   "https://app.example/policies.csv?q=Anna+Berg%26Co&premium=12.5&active=true",
		},
		{
			name:   "empty string is kept",
			url:    "/policies",
			params: apiclient.Params{{"q", ""}},
			want:   "https://app.example/policies?q=",
		},
		{
			name:   "typed nil pointer omitted",
			url:    "/policies",
			params: apiclient.Params{{"limit", (*int)(nil)}, {"q", "x"}},
			want:   "https://app.example/policies?q=x",
		},
		{
			name:   "nil slice and map omitted",
			url:    "/policies",
			params: apiclient.Params{{"ids", []string(nil)}, {"f", map[string]int(nil)}, {"page", 1}},
			want:   "https://app.example/policies?page=1",
		},
		{
			name:   "repeated keys keep their positions",
			url:    "/policies?a=1&b=2&a=3",
			params: apiclient.Params{{"q", "x"}},
			want:   "https://app.example/policies?a=1&b=2&a=3&q=x",
		},
		{
			name:   "set collapses repeated key at first position",
			url:    "/policies?a=1&b=2&a=3",
			params: apiclient.Params{{"a", "9"}},
			want:   "https://app.example/policies?a=9&b=2",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := c.BuildURLWithParams(tc.url, tc.params)
			if err != nil {
				t.Fatalf("BuildURLWithParams: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

// ─── Request ───────────────────────────────────────────────────────────

func TestRequest_MergesHeaders(t *testing.T) {
	t.Parallel()
	c, transport := newClient(t, "abc123", false)

	hdrs := http.Header{}
	hdrs.Set("Content-Type", "application/json")
	_, err := c.Request(context.Background(), "/policies", &apiclient.Options{
		Method:  "POST",
		Headers: hdrs,
		Body:    []byte(`{"number":"P-1"}`),
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	req := transport.Last()
	if req.URL != "https://app.example/policies" {
		t.Errorf("URL = %q", req.URL)
	}
	if req.Method != "POST" {
		t.Errorf("Method = %q", req.Method)
	}
	if string(req.Body) != `{"number":"P-1"}` {
		t.Errorf("Body = %q", req.Body)
	}
	want := http.Header{
		"Accept":       {"application/json"},
		"Content-Type": {"application/json"},
		"X-Api-Key":    {"abc123"},
	}
	if len(req.Headers) != len(want) {
		t.Fatalf("headers = %v, want %v", req.Headers, want)
	}
	for k, v := range want {
		if got := req.Headers.Values(k); len(got) != 1 || got[0] != v[0] {
			t.Errorf("%s = %v, want %v", k, got, v)
		}
	}
}

func TestRequest_CallerOverridesAccept(t *testing.T) {
	t.Parallel()
	c, transport := newClient(t, "", false)

	_, err := c.Request(context.Background(), "/policies.csv", &apiclient.Options{
		Headers: http.Header{"accept": {"text/csv"}},
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got := transport.Last().Headers.Values("Accept"); len(got) != 1 || got[0] != "text/csv" {
		t.Errorf("Accept = %v, want [text/csv]", got)
	}
}

func TestRequest_AuthWinsOnCollision(t *testing.T) {
	t.Parallel()
	c, transport := newClient(t, "abc123", true)

	_, err := c.Request(context.Background(), "/policies", &apiclient.Options{
		Headers: http.Header{
			"X-Api-Key":     {"forged"},
			"Authorization": {"Bearer other"},
		},
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	h := transport.Last().Headers
	if got := h.Values("X-API-Key"); len(got) != 1 || got[0] != "abc123" {
		t.Errorf("X-API-Key = %v", got)
	}
	if got := h.Values("Authorization"); len(got) != 1 || got[0] != "ApiKey abc123" {
		t.Errorf("Authorization = %v", got)
	}
}

func TestRequest_NoKeyKeepsCallerAuthorization(t *testing.T) {
	t.Parallel()
	c, transport := newClient(t, "", true)

	_, err := c.Request(context.Background(), "/policies", &apiclient.Options{
		Headers: http.Header{"Authorization": {"Bearer other"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := transport.Last().Headers.Get("Authorization"); got != "Bearer other" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestRequest_DefaultsToGET(t *testing.T) {
	t.Parallel()
	c, transport := newClient(t, "", false)
	if _, err := c.Request(context.Background(), "/health", nil); err != nil {
		t.Fatal(err)
	}
	if transport.Last().Method != http.MethodGet {
		t.Errorf("Method = %q", transport.Last().Method)
	}
}

func TestRequest_CallerHeadersNotMutated(t *testing.T) {
	t.Parallel()
	c, _ := newClient(t, "abc123", true)
	hdrs := http.Header{"Content-Type": {"application/json"}}

	if _, err := c.Request(context.Background(), "/policies", &apiclient.Options{Headers: hdrs}); err != nil {
		t.Fatal(err)
	}
	if len(hdrs) != 1 || hdrs.Get("X-API-Key") != "" {
		t.Errorf("caller headers mutated: %v", hdrs)
	}
}

func TestRequest_SameOriginVariants(t *testing.T) {
	t.Parallel()
	c, transport := newClient(t, "abc123", false)
	for _, u := range []string{
		"/policies",
		"policies/3",
		"https://app.example/policies",
		"https://APP.example:443/policies",
		"https://app.example./policies",
		"//app.example/policies",
	} {
		if _, err := c.Request(context.Background(), u, nil); err != nil {
			t.Errorf("Request(%q): unexpected error %v", u, err)
		}
	}
	if transport.Calls() != 6 {
		t.Errorf("expected 6 dispatched requests, got %d", transport.Calls())
	}
}

func TestRequest_CrossOriginBlocked(t *testing.T) {
	t.Parallel()
	targets := []string{
		"https://evil.example/steal",
		"http://app.example/policies",
		"https://app.example:8443/policies",
		"//evil.example/policies",
		"https://app.example.evil.example/",
		"mailto:a@b.example",
		"data:text/plain,hi",
		"file:///etc/passwd",
		"javascript:alert(1)",
	}
	methods := []string{"GET", "POST", "DELETE", "PUT"}

	for _, target := range targets {
		for _, method := range methods {
			transport := &testutil.DummyWebClient{}
			provider := &testutil.CountingProvider{Value: "abc123"}
			logger := &testutil.DummyLogger{}
			c, err := apiclient.New(apiclient.Config{BaseURL: pageOrigin, DualHeader: true}, provider, transport, logger)
			if err != nil {
				t.Fatal(err)
			}

			resp, err := c.Request(context.Background(), target, &apiclient.Options{
				Method: method,
				Body:   []byte(`{"x":1}`),
			})
			if !errors.Is(err, apiclient.ErrCrossOrigin) {
				t.Fatalf("%s %s: expected ErrCrossOrigin, got %v", method, target, err)
			}
			var coErr *apiclient.CrossOriginError
			if !errors.As(err, &coErr) || coErr.Origin != pageOrigin {
				t.Errorf("%s %s: expected CrossOriginError with origin, got %#v", method, target, err)
			}
			if resp != nil {
				t.Errorf("%s %s: expected nil response", method, target)
			}
			if transport.Calls() != 0 {
				t.Errorf("%s %s: expected zero network calls, got %d", method, target, transport.Calls())
			}
			if provider.Reads() != 0 {
				t.Errorf("%s %s: credential must not be read, got %d reads", method, target, provider.Reads())
			}
			if logger.WarnCount() != 1 {
				t.Errorf("%s %s: expected one warning, got %d", method, target, logger.WarnCount())
			}
		}
	}
}

func TestRequest_OpaqueTargetReportsNullOrigin(t *testing.T) {
	t.Parallel()
	for _, target := range []string{"mailto:a@b.example", "data:text/plain,hi", "file:///etc/passwd", "javascript:alert(1)"} {
		c, transport := newClient(t, "abc123", false)
		_, err := c.Request(context.Background(), target, nil)
		var coErr *apiclient.CrossOriginError
		if !errors.As(err, &coErr) {
			t.Fatalf("%s: expected CrossOriginError, got %v", target, err)
		}
		if coErr.Target != "null" {
			t.Errorf("%s: expected null target, got %q", target, coErr.Target)
		}
		if transport.Calls() != 0 {
			t.Errorf("%s: expected zero network calls, got %d", target, transport.Calls())
		}
	}
}

func TestRequest_CrossOriginCountsMetric(t *testing.T) {
	t.Parallel()
	m := &blockedCounter{}
	c, err := apiclient.New(apiclient.Config{BaseURL: pageOrigin}, credential.StaticProvider("k"),
		&testutil.DummyWebClient{}, nil, apiclient.WithMetrics(m))
	if err != nil {
		t.Fatal(err)
	}
	_, _ = c.Request(context.Background(), "https://evil.example/steal", nil)
	if m.blocked != 1 {
		t.Errorf("expected 1 blocked, got %d", m.blocked)
	}
}

type blockedCounter struct{ blocked int }

func (b *blockedCounter) ObserveRequest(string, int, float64) {}
func (b *blockedCounter) IncTransportError(string)            {}
func (b *blockedCounter) IncCrossOriginBlocked()              { b.blocked++ }

func TestRequest_TransportErrorPassesThrough(t *testing.T) {
	t.Parallel()
	netErr := errors.New("connection reset")
	transport := &testutil.DummyWebClient{Err: netErr}
	c, err := apiclient.New(apiclient.Config{BaseURL: pageOrigin}, credential.StaticProvider("k"), transport, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Request(context.Background(), "/policies", nil)
	if !errors.Is(err, netErr) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if errors.Is(err, apiclient.ErrCrossOrigin) {
		t.Fatal("transport error must not look like a guard failure")
	}
	if transport.Calls() != 1 {
		t.Errorf("expected exactly one attempt, got %d", transport.Calls())
	}
}

func TestRequest_NonSuccessStatusIsNotAnError(t *testing.T) {
	t.Parallel()
	for _, status := range []int{401, 409, 422, 500} {
		transport := &testutil.DummyWebClient{Status: status, Body: []byte(`{"detail":"nope"}`)}
		c, err := apiclient.New(apiclient.Config{BaseURL: pageOrigin}, credential.StaticProvider(""), transport, nil)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := c.Request(context.Background(), "/policies", &apiclient.Options{Method: "POST"})
		if err != nil {
			t.Fatalf("status %d: unexpected error %v", status, err)
		}
		if resp.StatusCode != status || string(resp.Body) != `{"detail":"nope"}` {
			t.Errorf("status %d: response altered: %d %q", status, resp.StatusCode, resp.Body)
		}
	}
}

// TestRequest_EndToEnd sends through the real net/http transport to check the
// headers that actually arrive at a server.
func TestRequest_EndToEnd(t *testing.T) {
	t.Parallel()
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	transport, err := webclient.NewNetHTTPClient(webclient.Config{}, nil, ts.Client())
	if err != nil {
		t.Fatal(err)
	}
	c, err := apiclient.New(apiclient.Config{BaseURL: ts.URL, DualHeader: true}, credential.StaticProvider("abc123"), transport, nil)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := c.Request(context.Background(), "/policies", &apiclient.Options{
		Method:  "POST",
		Headers: http.Header{"Content-Type": {"application/json"}},
		Body:    []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got.Get("Accept") != "application/json" || got.Get("Content-Type") != "application/json" {
		t.Errorf("unexpected headers: %v", got)
	}
	if got.Get("X-API-Key") != "abc123" || got.Get("Authorization") != "ApiKey abc123" {
		t.Errorf("missing auth headers: %v", got)
	}
}
