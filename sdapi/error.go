package sdapi

import (
	"fmt"

	"github.com/serum-errors/go-serum"
)

const (
	ECodeConnection     = "sedar-error-connection"
	ECodeHttpStatus     = "sedar-error-http-status"
	ECodeSerialization  = "sedar-error-serialization"
	ECodeInvalid        = "sedar-error-invalid"
	ECodeFileMissing    = "sedar-error-file-missing"
	ECodeIo             = "sedar-error-io"
	ECodeResourceFetch  = "sedar-error-resource-fetch"
	ECodeResourceUpdate = "sedar-error-resource-update"
	ECodeResourceDelete = "sedar-error-resource-delete"
	ECodeNotFound       = "sedar-error-not-found"
	ECodeRequestFailed  = "sedar-error-request-failed"
	ECodeInternal       = "sedar-error-internal"
	ECodeInitialization = "sedar-error-initialization"
	ECodeUnknown        = "sedar-error-unknown"
)

// IsAbsent reports whether err is one of the failures the transport funnels
// into an absent result: the server could not be reached, answered with a
// non-2xx status, or a local precondition stopped the request from being sent.
func IsAbsent(err error) bool {
	switch serum.Code(err) {
	case ECodeConnection, ECodeHttpStatus, ECodeInvalid, ECodeFileMissing:
		return true
	}
	return false
}

// ErrorInternal is for miscellaneous errors that a caller cannot do much about.
//
// Errors:
//
//    - sedar-error-internal --
func ErrorInternal(msgTmpl string, cause error) error {
	return serum.Errorf(ECodeInternal, "%s: %w", msgTmpl, cause)
}

// ErrorConnection is returned when the server cannot be reached at all.
//
// Errors:
//
//    - sedar-error-connection --
func ErrorConnection(method, url string, cause error) error {
	return serum.Error(ECodeConnection, serum.WithCause(cause),
		serum.WithMessageTemplate("failed to connect to the server: {{method}} {{url|q}}"),
		serum.WithDetail("method", method),
		serum.WithDetail("url", url),
	)
}

// ErrorHttpStatus is returned when the server answered with a non-2xx status.
// The response body is kept as a detail so callers can show what the server said.
//
// Errors:
//
//    - sedar-error-http-status --
func ErrorHttpStatus(method, path string, status int, body []byte) error {
	return serum.Error(ECodeHttpStatus,
		serum.WithMessageTemplate("{{method}} {{path|q}} failed with status {{status}}"),
		serum.WithDetail("method", method),
		serum.WithDetail("path", path),
		serum.WithDetail("status", fmt.Sprintf("%d", status)),
		serum.WithDetail("body", string(body)),
	)
}

// ErrorSerialization is returned when a serialization or deserialization error occurs
//
// Errors:
//
//    - sedar-error-serialization --
func ErrorSerialization(context string, cause error) error {
	result := serum.Errorf(ECodeSerialization,
		"serialization error: %s: %w", context, cause)
	addDetails(result, [][2]string{
		{"context", context},
	})
	return result
}

// ErrorInvalid is returned when a caller supplied something unusable.
// The caller must format the message string.
//
// Errors:
//
//    - sedar-error-invalid --
func ErrorInvalid(message string, deets ...[2]string) error {
	opts := make([]serum.WithConstruction, 0, len(deets)+1)
	for _, d := range deets {
		opts = append(opts, serum.WithDetail(d[0], d[1]))
	}
	opts = append(opts, serum.WithMessageLiteral(message))
	return serum.Error(ECodeInvalid, opts...)
}

// ErrorFileMissing is returned when a local file needed for a request does not exist.
//
// Errors:
//
//    - sedar-error-file-missing --
func ErrorFileMissing(path string) error {
	return serum.Error(ECodeFileMissing,
		serum.WithMessageTemplate("file not found: {{path|q}}"),
		serum.WithDetail("path", path),
	)
}

// ErrorIo wraps generic I/O errors from the Go stdlib
//
// Errors:
//
//    - sedar-error-io --
func ErrorIo(context string, path string, cause error) error {
	result := serum.Errorf(ECodeIo,
		"io error: %s: %w", context, cause)
	addDetails(result, [][2]string{{"context", context}, {"path", path}})
	return result
}

// ErrorResourceFetch is returned when a resource could not be retrieved.
//
// Errors:
//
//    - sedar-error-resource-fetch --
func ErrorResourceFetch(kind string, path string, cause error) error {
	result := serum.Errorf(ECodeResourceFetch,
		"failed to fetch %s: %w", kind, cause)
	addDetails(result, [][2]string{{"kind", kind}, {"path", path}})
	return result
}

// ErrorResourceUpdate is returned when the server refused an update.
//
// Errors:
//
//    - sedar-error-resource-update --
func ErrorResourceUpdate(kind string, path string, cause error) error {
	result := serum.Errorf(ECodeResourceUpdate,
		"%s could not be updated: %w", kind, cause)
	addDetails(result, [][2]string{{"kind", kind}, {"path", path}})
	return result
}

// ErrorResourceDelete is returned when the server refused a delete.
//
// Errors:
//
//    - sedar-error-resource-delete --
func ErrorResourceDelete(kind string, path string, cause error) error {
	result := serum.Errorf(ECodeResourceDelete,
		"failed to delete %s: %w", kind, cause)
	addDetails(result, [][2]string{{"kind", kind}, {"path", path}})
	return result
}

// ErrorRequestFailed is returned by operations that are not plain
// fetch/update/delete of a resource, such as a search or a login.
//
// Errors:
//
//    - sedar-error-request-failed --
func ErrorRequestFailed(operation string, cause error) error {
	result := serum.Errorf(ECodeRequestFailed,
		"%s failed: %w", operation, cause)
	addDetails(result, [][2]string{{"operation", operation}})
	return result
}

// ErrorNotFound is returned when a listing did not contain the requested item.
//
// Errors:
//
//    - sedar-error-not-found --
func ErrorNotFound(kind string, id string) error {
	return serum.Error(ECodeNotFound,
		serum.WithMessageTemplate("{{kind}} {{id|q}} does not exist"),
		serum.WithDetail("kind", kind),
		serum.WithDetail("id", id),
	)
}

// serum does not allow details on Errorf results yet, so they are appended afterwards.
func addDetails(err error, details [][2]string) {
	s := err.(*serum.ErrorValue)
	s.Data.Details = append(s.Data.Details, details...)
}

// ErrorInitialization is returned when client setup fails.
//
// Errors:
//
//    - sedar-error-initialization --
func ErrorInitialization(context string, cause error) error {
	result := serum.Errorf(ECodeInitialization,
		"initialization failed: %s: %w", context, cause)
	addDetails(result, [][2]string{{"context", context}})
	return result
}
