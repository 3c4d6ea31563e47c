// Package errors defines the sentinel errors shared by the indexing and
// search layers and maps them onto HTTP status codes and the literal
// response messages existing clients depend on.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNameInvalid      = errors.New("collection name invalid")
	ErrContentInvalid   = errors.New("collection content is not an array")
	ErrContentEmpty     = errors.New("collection content is empty")
	ErrContentMalformed = errors.New("collection content has malformed documents")
	ErrIndexInvalid     = errors.New("index payload invalid")
	ErrTermsEmpty       = errors.New("search terms empty")

	ErrIndexNotFound = errors.New("index not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrInternal      = errors.New("internal error")
	ErrTimeout       = errors.New("operation timed out")
)

// Literal failure bodies. Clients compare these byte for byte.
const (
	MsgNameInvalid      = "File name Invalid"
	MsgContentInvalid   = "Invalid!"
	MsgContentEmpty     = "Empty!"
	MsgContentMalformed = "Malformed!"
	MsgIndexInvalid     = "Invalid index Object"
	MsgTermsEmpty       = "Terms cannot be empty"
	MsgIndexNotFound    = "Index not found"
	MsgBadRequest       = "Invalid request body"
	MsgBodyTooLarge     = "Request body too large"
	MsgRateLimited      = "Rate limit exceeded"
	MsgInternal         = "Request could not be completed. Please try again"
)

// AppError carries its own status code and public message, for failures
// that do not map onto a sentinel's defaults.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New wraps sentinel with an explicit status and client-facing message.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNameInvalid),
		errors.Is(err, ErrContentInvalid),
		errors.Is(err, ErrContentEmpty),
		errors.Is(err, ErrContentMalformed),
		errors.Is(err, ErrIndexInvalid),
		errors.Is(err, ErrTermsEmpty),
		errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the literal body sent to clients for err.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}

	switch {
	case errors.Is(err, ErrNameInvalid):
		return MsgNameInvalid
	case errors.Is(err, ErrContentInvalid):
		return MsgContentInvalid
	case errors.Is(err, ErrContentEmpty):
		return MsgContentEmpty
	case errors.Is(err, ErrContentMalformed):
		return MsgContentMalformed
	case errors.Is(err, ErrIndexInvalid):
		return MsgIndexInvalid
	case errors.Is(err, ErrTermsEmpty):
		return MsgTermsEmpty
	case errors.Is(err, ErrIndexNotFound):
		return MsgIndexNotFound
	case errors.Is(err, ErrInvalidInput):
		return MsgBadRequest
	case errors.Is(err, ErrRateLimited):
		return MsgRateLimited
	default:
		return MsgInternal
	}
}

// Reason returns a short, label-safe name for err, used in metrics and
// analytics events.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNameInvalid):
		return "name_invalid"
	case errors.Is(err, ErrContentInvalid):
		return "content_invalid"
	case errors.Is(err, ErrContentEmpty):
		return "content_empty"
	case errors.Is(err, ErrContentMalformed):
		return "content_malformed"
	case errors.Is(err, ErrIndexInvalid):
		return "index_invalid"
	case errors.Is(err, ErrTermsEmpty):
		return "terms_empty"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
