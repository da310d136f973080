package service

import "net/http"

// NotFoundMessage is reported for pipelines that do not exist or that the
// caller may not see.
const NotFoundMessage = "Either the resource you requested was not found, or you are not authorized to perform this action."

// OperationResult collects the outcome of an operation that reports failure
// through a message and an HTTP status instead of an error. The zero value
// is a success.
type OperationResult struct {
	code    int
	message string
}

func (r *OperationResult) Unauthorized(message string) { r.fail(http.StatusUnauthorized, message) }

func (r *OperationResult) NotFound(message string) { r.fail(http.StatusNotFound, message) }

// NotAcceptable marks a request whose content failed validation.
func (r *OperationResult) NotAcceptable(message string) { r.fail(http.StatusNotAcceptable, message) }

func (r *OperationResult) InternalServerError(message string) {
	r.fail(http.StatusInternalServerError, message)
}

func (r *OperationResult) fail(code int, message string) {
	r.code = code
	r.message = message
}

func (r *OperationResult) IsSuccessful() bool { return r.code == 0 }

// HTTPCode is 200 for a successful result.
func (r *OperationResult) HTTPCode() int {
	if r.code == 0 {
		return http.StatusOK
	}
	return r.code
}

func (r *OperationResult) Message() string { return r.message }
