package chatgpt

import (
	"errors"
	"fmt"
)

// Error codes
const (
	ErrCodeNotLoggedIn    = "NOT_LOGGED_IN"
	ErrCodeNetwork        = "NETWORK_ERROR"
	ErrCodeResponseDecode = "RESPONSE_DECODE_ERROR"
	ErrCodeSessionRefresh = "SESSION_REFRESH_ERROR"
	ErrCodeTimeout        = "TIMEOUT_ERROR"
	ErrCodeAccessDenied   = "ACCESS_DENIED"
	ErrCodeAPIRequest     = "API_REQUEST_ERROR"
)

// Error is a coded bridge error. The code distinguishes user-actionable
// failures (log in again) from transient ones (service unreachable) from
// structural ones (unparsable response).
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err carries the given bridge error code.
func IsCode(err error, code string) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

func newNotLoggedInError() *Error {
	return &Error{
		Code: ErrCodeNotLoggedIn,
		Message: "your session is not usable, you need to log in\n" +
			" * run `chatbridge install` and log in through the opened browser\n" +
			" * if you believe you are already logged in, run `chatbridge session`",
	}
}

func newNetworkError() *Error {
	return &Error{
		Code:    ErrCodeNetwork,
		Message: "cannot communicate with the service: retry budget exhausted",
	}
}

func newResponseDecodeError(err error) *Error {
	return &Error{
		Code: ErrCodeResponseDecode,
		Message: "failed to read the response\n" +
			" * try again, the service can be flaky\n" +
			" * run `chatbridge session` to refresh your session, then try again",
		Err: err,
	}
}
