package webclient

import (
	"context"
	"strings"
	"time"

	"github.com/raysh454/policyctl/internal/metrics"
)

// Instrumented wraps a WebClient and records one observation per dispatch.
type Instrumented struct {
	next    WebClient
	metrics metrics.ClientMetrics
	now     func() time.Time
}

// NewInstrumented decorates next. A nil m records nothing.
func NewInstrumented(next WebClient, m metrics.ClientMetrics) *Instrumented {
	if m == nil {
		m = metrics.Noop{}
	}
	return &Instrumented{next: next, metrics: m, now: time.Now}
}

func (i *Instrumented) Do(ctx context.Context, req *Request) (*Response, error) {
	method := "GET"
	if req != nil && req.Method != "" {
		method = strings.ToUpper(req.Method)
	}

	start := i.now()
	resp, err := i.next.Do(ctx, req)
	if err != nil {
		i.metrics.IncTransportError(method)
		return nil, err
	}
	i.metrics.ObserveRequest(method, resp.StatusCode, i.now().Sub(start).Seconds())
	return resp, nil
}

func (i *Instrumented) Close() error {
	return i.next.Close()
}
