package apiclient

import (
	"net/url"
	"testing"
)

func TestParseOrigin(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://app.example", "https://app.example", false},
		{"https://app.example:443/some/path?x=1", "https://app.example", false},
		{"http://localhost:8000", "http://localhost:8000", false},
		{"HTTP://LOCALHOST:80/", "http://localhost", false},
		{"https://bücher.example", "https://xn--bcher-kva.example", false},
		{"http://[::1]:8080", "http://[::1]:8080", false},
		{"http://[::1]", "http://[::1]", false},
		{"/relative", "", true},
		{"mailto:someone@example.com", "", true},
		{"ws://app.example", "", true},
	}
	for _, tc := range cases {
		o, err := ParseOrigin(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseOrigin(%q): expected error, got %v", tc.in, o)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseOrigin(%q): %v", tc.in, err)
			continue
		}
		if got := o.String(); got != tc.want {
			t.Errorf("ParseOrigin(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOriginOf_IDNEquivalence(t *testing.T) {
	a, _ := url.Parse("https://BÜCHER.example/x")
	b, _ := url.Parse("https://xn--bcher-kva.example:443/y")
	oa, err := OriginOf(a)
	if err != nil {
		t.Fatal(err)
	}
	ob, err := OriginOf(b)
	if err != nil {
		t.Fatal(err)
	}
	if oa != ob {
		t.Errorf("expected equal origins, got %v and %v", oa, ob)
	}
}

func TestCrossOriginErrorMessage(t *testing.T) {
	err := &CrossOriginError{Origin: "https://app.example", Target: "https://evil.example"}
	want := "cross-origin blocked: refusing to send API key off-site (origin https://app.example, target https://evil.example)"
	if err.Error() != want {
		t.Errorf("got %q", err.Error())
	}
}
