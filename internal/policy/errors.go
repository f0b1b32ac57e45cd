package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/raysh454/policyctl/internal/webclient"
)

// Kind classifies a failed backend response.
type Kind int

const (
	KindGeneric Kind = iota
	KindUnauthorized
	KindConflict
	KindValidation
	KindNotFound
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
)

// APIError describes a non-success response from the backend.
type APIError struct {
	Op         string
	StatusCode int
	Detail     string
}

// Kind maps the status code to an error class.
func (e *APIError) Kind() Kind {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusConflict:
		return KindConflict
	case http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindGeneric
	}
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Detail)
}

func (e *APIError) Is(target error) bool {
	switch e.Kind() {
	case KindUnauthorized:
		return target == ErrUnauthorized
	case KindConflict:
		return target == ErrConflict
	case KindValidation:
		return target == ErrValidation
	case KindNotFound:
		return target == ErrNotFound
	}
	return false
}

// Message is the text shown to a person for this failure.
func (e *APIError) Message() string {
	switch e.Op {
	case OpCreate:
		switch e.Kind() {
		case KindUnauthorized:
			return "Unauthorized: missing/invalid API key."
		case KindConflict:
			return "Duplicate number: that policy already exists."
		case KindValidation:
			return "Validation error: " + e.Detail
		}
		return fmt.Sprintf("Error %d: %s", e.StatusCode, e.Detail)
	case OpExport:
		if e.Detail != "" {
			return fmt.Sprintf("Export failed: %d – %s", e.StatusCode, e.Detail)
		}
		return fmt.Sprintf("Export failed: %d", e.StatusCode)
	case OpDelete:
		return strings.TrimSpace(fmt.Sprintf("Delete failed (%d) %s", e.StatusCode, e.Detail))
	}
	if e.Kind() == KindUnauthorized {
		return "Unauthorized: missing/invalid API key."
	}
	return fmt.Sprintf("Error %d: %s", e.StatusCode, e.Detail)
}

// newAPIError builds an APIError, taking the detail from the JSON body's
// "detail" field, else the JSON body itself, else nothing.
func newAPIError(op string, resp *webclient.Response) *APIError {
	return &APIError{Op: op, StatusCode: resp.StatusCode, Detail: extractDetail(resp.Body)}
}

func extractDetail(body []byte) string {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return ""
	}
	if obj, ok := raw.(map[string]any); ok {
		if d, ok := obj["detail"]; ok && d != nil && d != "" {
			if s, ok := d.(string); ok {
				return s
			}
			if enc, err := json.Marshal(d); err == nil {
				return string(enc)
			}
		}
	}
	enc, err := json.Marshal(raw)
	if err != nil {
		return ""
	}
	return string(enc)
}
