// Package syncerr holds the failure taxonomy for a reconciliation run.
// Every error here is fatal to the run it occurs in and is never retried internally.
package syncerr

import (
	"errors"
	"fmt"
)

// AuthenticationError means the mailing-list host issued no session credential.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("mailing list authentication failed: %s", e.Reason)
}

// ListFetchError covers a bad content type, a malformed dump, or an error
// message scraped from the host's HTML.
type ListFetchError struct {
	Message string
}

func (e *ListFetchError) Error() string {
	return fmt.Sprintf("error retrieving mailing list members:\n%s", e.Message)
}

// APIResponseError means the CRM answered with a status code other than success.
type APIResponseError struct {
	Code int
	Hint string
}

func (e *APIResponseError) Error() string {
	msg := fmt.Sprintf("unexpected status code from CRM API: %d", e.Code)
	if e.Hint != "" {
		msg += "\n" + e.Hint
	}
	return msg
}

// SchemaValidationError means a response did not have the expected shape.
type SchemaValidationError struct {
	Subject string
	Err     error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("%s failed schema validation: %v", e.Subject, e.Err)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// Kind names the taxonomy bucket of err for log fields and reports.
func Kind(err error) string {
	var (
		authErr   *AuthenticationError
		fetchErr  *ListFetchError
		apiErr    *APIResponseError
		schemaErr *SchemaValidationError
	)
	switch {
	case errors.As(err, &authErr):
		return "authentication"
	case errors.As(err, &fetchErr):
		return "list_fetch"
	case errors.As(err, &apiErr):
		return "api_response"
	case errors.As(err, &schemaErr):
		return "schema_validation"
	default:
		return "internal"
	}
}
