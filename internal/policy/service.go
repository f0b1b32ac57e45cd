// Package policy holds the typed operations a person performs against the
// policy backend: health check, listing, creation, deletion and CSV export.
// Every call goes through the authenticated API client; interpreting status
// codes is done here, not in the client.
package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/raysh454/policyctl/internal/apiclient"
	"github.com/raysh454/policyctl/internal/logging"
	"github.com/raysh454/policyctl/internal/webclient"
)

const (
	OpHealth = "health"
	OpList   = "list"
	OpCreate = "create"
	OpDelete = "delete"
	OpExport = "export"
)

// HeaderTotalCount carries the unpaginated result count of a listing.
const HeaderTotalCount = "X-Total-Count"

const (
	pathHealth   = "/health"
	pathPolicies = "/policies"
	pathCSV      = "/policies.csv"
)

// Requester is the part of apiclient.Client the service needs.
type Requester interface {
	Request(ctx context.Context, rawURL string, opts *apiclient.Options) (*webclient.Response, error)
	BuildURLWithParams(rawURL string, params apiclient.Params) (string, error)
}

// Service performs policy operations.
type Service struct {
	api Requester
	// anon sends requests without credentials; used for the health check
	// and the auth probe, which must not carry the key.
	anon   webclient.WebClient
	origin string
	logger logging.Logger
}

// NewService builds a Service. anon and origin may be empty, in which case
// Health and ProbeAuth go through the authenticated client.
func NewService(api Requester, anon webclient.WebClient, origin string, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Service{
		api:    api,
		anon:   anon,
		origin: origin,
		logger: logger.With(logging.Field{Key: "component", Value: "policy"}),
	}
}

// Health returns the backend's reported status, or "unknown" when the body
// has none.
func (s *Service) Health(ctx context.Context) (string, error) {
	resp, err := s.anonGet(ctx, pathHealth)
	if err != nil {
		return "", fmt.Errorf("%s: %w", OpHealth, err)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", OpHealth, err)
	}
	if body.Status == "" {
		return "unknown", nil
	}
	return body.Status, nil
}

// ProbeAuth asks the backend, without a key, whether listing requires one.
func (s *Service) ProbeAuth(ctx context.Context) (AuthMode, error) {
	resp, err := s.anonGet(ctx, pathPolicies+"?limit=1")
	if err != nil {
		return "", fmt.Errorf("probe auth: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return AuthRequired, nil
	}
	return AuthOpen, nil
}

// List returns the policies matching q.
func (s *Service) List(ctx context.Context, q ListQuery) (*Page, error) {
	u, err := s.api.BuildURLWithParams(pathPolicies, q.Params())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpList, err)
	}
	resp, err := s.api.Request(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpList, err)
	}
	if !resp.OK() {
		return nil, newAPIError(OpList, resp)
	}
	page := &Page{Total: -1}
	if err := json.Unmarshal(resp.Body, &page.Items); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", OpList, err)
	}
	if page.Items == nil {
		page.Items = []Policy{}
	}
	if total, err := strconv.Atoi(resp.Headers.Get(HeaderTotalCount)); err == nil {
		page.Total = total
	}
	return page, nil
}

// Create submits p. Any 2xx response counts as created; the returned policy
// is nil when the backend sent no JSON body.
func (s *Service) Create(ctx context.Context, p NewPolicy) (*Policy, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", OpCreate, err)
	}
	resp, err := s.api.Request(ctx, pathPolicies, &apiclient.Options{
		Method:  http.MethodPost,
		Headers: http.Header{"Content-Type": {"application/json"}},
		Body:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpCreate, err)
	}
	if !resp.OK() {
		apiErr := newAPIError(OpCreate, resp)
		s.logger.Info("create rejected",
			logging.Field{Key: "status", Value: resp.StatusCode},
			logging.Field{Key: "number", Value: p.Number})
		return nil, apiErr
	}

	var created Policy
	if len(bytes.TrimSpace(resp.Body)) == 0 || json.Unmarshal(resp.Body, &created) != nil {
		return nil, nil
	}
	return &created, nil
}

// Delete removes the policy with id. Only 204 No Content counts as success.
func (s *Service) Delete(ctx context.Context, id int64) error {
	resp, err := s.api.Request(ctx, pathPolicies+"/"+strconv.FormatInt(id, 10), &apiclient.Options{
		Method: http.MethodDelete,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", OpDelete, err)
	}
	if resp.StatusCode != http.StatusNoContent {
		return newAPIError(OpDelete, resp)
	}
	return nil
}

// ExportCSV writes the CSV export, filtered by q when non-empty, to w and
// returns the number of bytes written.
func (s *Service) ExportCSV(ctx context.Context, q string, w io.Writer) (int64, error) {
	u := pathCSV
	if q != "" {
		u += "?q=" + url.QueryEscape(q)
	}
	resp, err := s.api.Request(ctx, u, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", OpExport, err)
	}
	if !resp.OK() {
		return 0, newAPIError(OpExport, resp)
	}
	n, err := io.Copy(w, bytes.NewReader(resp.Body))
	if err != nil {
		return n, fmt.Errorf("%s: write csv: %w", OpExport, err)
	}
	return n, nil
}

func (s *Service) anonGet(ctx context.Context, path string) (*webclient.Response, error) {
	if s.anon == nil || s.origin == "" {
		return s.api.Request(ctx, path, nil)
	}
	return s.anon.Do(ctx, &webclient.Request{Method: http.MethodGet, URL: s.origin + path})
}
