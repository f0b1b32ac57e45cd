package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/raysh454/policyctl/internal/apiclient"
	"github.com/raysh454/policyctl/internal/credential"
	"github.com/raysh454/policyctl/internal/policy"
)

// Exit codes.
const (
	ExitSuccess  = 0
	ExitGeneral  = 1
	ExitAuth     = 2 // missing/invalid key, or a refused cross-origin request
	ExitNotFound = 4
	ExitRejected = 5 // duplicate number or validation failure
)

const (
	CodeCrossOrigin      = "CROSS_ORIGIN_BLOCKED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeNotFound         = "NOT_FOUND"
	CodeDuplicate        = "DUPLICATE_NUMBER"
	CodeValidation       = "VALIDATION_ERROR"
	CodeRequestFailed    = "REQUEST_FAILED"
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodeEmptyKey         = "EMPTY_API_KEY"
	CodeInternal         = "INTERNAL_ERROR"
)

// CLIError is an error prepared for display, with an exit code and an
// optional remediation hint.
type CLIError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Hint     string `json:"hint,omitempty"`
	ExitCode int    `json:"-"`

	err error
}

func (e *CLIError) Error() string { return e.Message }

func (e *CLIError) Unwrap() error { return e.err }

// toCLIError classifies err. Errors that are already *CLIError pass through.
func toCLIError(err error) *CLIError {
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	var apiErr *policy.APIError
	switch {
	case errors.Is(err, apiclient.ErrCrossOrigin):
		return &CLIError{
			Code:     CodeCrossOrigin,
			Message:  err.Error(),
			Hint:     "Only URLs on the configured base_url origin may be requested",
			ExitCode: ExitAuth,
			err:      err,
		}
	case errors.As(err, &apiErr):
		return fromAPIError(apiErr)
	case errors.Is(err, credential.ErrEmptyCredential):
		return &CLIError{
			Code:     CodeEmptyKey,
			Message:  "API key is empty; nothing saved",
			ExitCode: ExitGeneral,
			err:      err,
		}
	case isConnectionError(err):
		return &CLIError{
			Code:     CodeConnectionFailed,
			Message:  err.Error(),
			Hint:     "Check that the backend is running and base_url is correct",
			ExitCode: ExitGeneral,
			err:      err,
		}
	}
	return &CLIError{Code: CodeInternal, Message: err.Error(), ExitCode: ExitGeneral, err: err}
}

func fromAPIError(e *policy.APIError) *CLIError {
	out := &CLIError{Code: CodeRequestFailed, Message: e.Message(), ExitCode: ExitGeneral, err: e}
	switch e.Kind() {
	case policy.KindUnauthorized:
		out.Code, out.ExitCode = CodeUnauthorized, ExitAuth
		out.Hint = "Save a key with 'policyctl key set' or pass --api-key"
	case policy.KindNotFound:
		out.Code, out.ExitCode = CodeNotFound, ExitNotFound
	case policy.KindConflict:
		out.Code, out.ExitCode = CodeDuplicate, ExitRejected
	case policy.KindValidation:
		out.Code, out.ExitCode = CodeValidation, ExitRejected
	}
	return out
}

func isConnectionError(err error) bool {
	var netErr net.Error
	var opErr *net.OpError
	return errors.As(err, &opErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded)
}

// formatError renders e for the chosen output format.
func formatError(e *CLIError, outputFormat string) string {
	if outputFormat == "json" {
		data, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			return fmt.Sprintf(`{"code":%q,"message":%q}`, e.Code, e.Message)
		}
		return string(data)
	}
	out := fmt.Sprintf("%s %s", errFmt("Error:"), e.Message)
	if e.Hint != "" {
		out += fmt.Sprintf("\n%s %s", dimFmt("Hint:"), e.Hint)
	}
	return out
}
