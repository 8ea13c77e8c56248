package internal

import "net/http"

const (
	// ErrCodeUnknown is the error code for unknown errors
	ErrCodeUnknown = "UNKNOWN_ERROR"
	// ErrCodeRepoError is returned when the request to a repo fails with an error
	ErrCodeRepoError = "STORAGE_QUERY_FAILED"
	// ErrCodeIllegalJSON is returned when the request did not contain a valid JSON body
	ErrCodeIllegalJSON = "ILLEGAL_JSON_REQUEST"
	// ErrCodeRequiredFieldMissing is returned when a required path or body parameter has not been sent
	ErrCodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	// ErrCodeValidationFailed is returned when at least one field of the transferred data does not validate
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	// ErrCodeEventNotFound is returned when an operation works on an event that does not exist, has been deleted,
	// has expired or - for guests - has been deactivated
	ErrCodeEventNotFound = "EVENT_NOT_FOUND"
	// ErrCodeMessageNotFound is returned when an operation works on a message that does not exist
	ErrCodeMessageNotFound = "MESSAGE_NOT_FOUND"
	// ErrCodeInvalidCode is returned when a typed string code does not have the expected format
	ErrCodeInvalidCode = "INVALID_CODE"
	// ErrCodeInvalidURL is returned when a scanned URL does not point to an event
	ErrCodeInvalidURL = "INVALID_URL"
	// ErrCodeNotLoggedIn is returned when the caller tried to access an API that needs a host identity, but sent no
	// valid identity token
	ErrCodeNotLoggedIn = "NOT_LOGGED_IN"
	// ErrCodeForbidden is returned when a host tries to modify an event owned by another host
	ErrCodeForbidden = "FORBIDDEN"
	// ErrCodeFeedUnavailable is returned when a live feed cannot be established
	ErrCodeFeedUnavailable = "FEED_UNAVAILABLE"
)

// Every reason an event cannot be resolved yields the same message
const msgEventNotFound = "Event not found or has expired"

var (
	// ErrEventNotFound is returned whenever an event cannot be resolved
	ErrEventNotFound = MakeError(http.StatusNotFound, ErrCodeEventNotFound, msgEventNotFound)
	// ErrMessageNotFound is returned when a message does not exist or has already been deleted
	ErrMessageNotFound = MakeError(http.StatusNotFound, ErrCodeMessageNotFound, "Message not found")
	// ErrNotLoggedIn is returned by host-only functions called without a host identity
	ErrNotLoggedIn = MakeError(http.StatusForbidden, ErrCodeNotLoggedIn, "This function needs a logged-in host")
	// ErrForbidden is returned when a host works on an event of another host
	ErrForbidden = MakeError(http.StatusForbidden, ErrCodeForbidden, "Only the host of an event may do this")
)

// HTTPError is an error that contains information about the error message to return to the client
type HTTPError struct {
	message string
	code    string
	status  int
	data    interface{}
}

// MakeError creates a new HTTPError with the given contents
func MakeError(status int, code, message string) *HTTPError {
	return MakeErrorWithData(status, code, message, nil)
}

// MakeErrorWithData creates a new HTTPError with the given contents and an additional data element
func MakeErrorWithData(status int, code, message string, data interface{}) *HTTPError {
	return &HTTPError{message, code, status, data}
}

// Error implements the errorer interface
func (e *HTTPError) Error() string {
	return e.message
}

// Status returns the HTTP status that should be returned
func (e *HTTPError) Status() int {
	return e.status
}

// ErrorCode returns the machine-readable error code
func (e *HTTPError) ErrorCode() string {
	return e.code
}

// Data returns additional data about the error
func (e *HTTPError) Data() interface{} {
	return e.data
}

// makeRepoError wraps a failed storage call. The underlying error is passed on to the client as-is.
func makeRepoError(message string, err error) *HTTPError {
	return MakeErrorWithData(http.StatusInternalServerError, ErrCodeRepoError, message, err)
}
