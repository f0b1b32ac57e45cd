// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/raysh454/policyctl/internal/logging"
	"github.com/raysh454/policyctl/internal/webclient"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
	Fields []logging.Field
}

func (l *DummyLogger) record(dst *[]string, msg string, fields []logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*dst = append(*dst, msg)
	l.Fields = append(l.Fields, fields...)
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) { l.record(&l.Debugs, msg, fields) }
func (l *DummyLogger) Info(msg string, fields ...logging.Field)  { l.record(&l.Infos, msg, fields) }
func (l *DummyLogger) Warn(msg string, fields ...logging.Field)  { l.record(&l.Warns, msg, fields) }
func (l *DummyLogger) Error(msg string, fields ...logging.Field) { l.record(&l.Errors, msg, fields) }

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// WarnCount returns the number of warnings recorded so far.
func (l *DummyLogger) WarnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Warns)
}

// ─── WebClient ─────────────────────────────────────────────────────────

// DummyWebClient implements webclient.WebClient and records every request.
// By default it returns body "ok:<url>" with status 200.
// Set Status/Body to script the response, Err to fail every call, or
// FailURLs[url] = true to force an error for a specific URL.
type DummyWebClient struct {
	ResponseDelay time.Duration
	FailURLs      map[string]bool
	Status        int
	Body          []byte
	RespHeaders   http.Header
	Err           error

	mu       sync.Mutex
	Requests []*webclient.Request
	closed   bool
}

func (d *DummyWebClient) Do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()

	if d.Err != nil {
		return nil, d.Err
	}
	if d.FailURLs != nil && d.FailURLs[req.URL] {
		return nil, &errString{"dummy fetch fail for " + req.URL}
	}

	status := d.Status
	if status == 0 {
		status = http.StatusOK
	}
	body := d.Body
	if body == nil {
		body = []byte("ok:" + req.URL)
	}
	return &webclient.Response{
		Request:    req,
		Body:       body,
		Headers:    d.RespHeaders,
		StatusCode: status,
		FetchedAt:  time.Now(),
	}, nil
}

func (d *DummyWebClient) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Calls returns how many requests reached the transport.
func (d *DummyWebClient) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Requests)
}

// Last returns the most recent request, or nil.
func (d *DummyWebClient) Last() *webclient.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Requests) == 0 {
		return nil
	}
	return d.Requests[len(d.Requests)-1]
}

// Closed reports whether Close was called.
func (d *DummyWebClient) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// ─── Credential provider ───────────────────────────────────────────────

// CountingProvider implements credential.Provider and counts reads.
type CountingProvider struct {
	Value string
	Err   error

	mu    sync.Mutex
	reads int
}

func (p *CountingProvider) Credential(context.Context) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	if p.Err != nil {
		return "", false, p.Err
	}
	return p.Value, p.Value != "", nil
}

// Reads returns the number of Credential calls.
func (p *CountingProvider) Reads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

type errString struct{ s string }

func (e *errString) Error() string { return e.s }
