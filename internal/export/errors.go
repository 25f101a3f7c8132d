package export

import "net/http"

// Kind classifies export failures so transports can map them to a status
// code without inspecting error chains.
type Kind string

const (
	// KindQueryNotFound means there is no record for the requested client id
	// and the user has to re-run the original query.
	KindQueryNotFound Kind = "query_not_found"

	// KindAccessDenied means the caller may not read the query results.
	KindAccessDenied Kind = "access_denied"

	// KindBackendFailure means the results backend misbehaved (a cache miss
	// is not a failure).
	KindBackendFailure Kind = "backend_failure"

	// KindEngineFailure means the query could not be replayed.
	KindEngineFailure Kind = "engine_failure"

	// KindExportFailed is the uniform wrapper for everything that broke
	// while materializing the file.
	KindExportFailed Kind = "export_failed"
)

func (k Kind) HTTPStatus() int {
	switch k {
	case KindQueryNotFound:
		return http.StatusNotFound
	case KindAccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified export failure.
type Error struct {
	Kind    Kind
	Message string

	cause error
}

func NewError(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// WrapError keeps the cause reachable for errors.Is and errors.As while the
// message stays the user-facing description.
func WrapError(kind Kind, cause error, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		cause:   cause,
	}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}
