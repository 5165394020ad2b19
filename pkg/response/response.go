package response

import (
	"errors"
	"fmt"
)

type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Err.Error() == t.Err.Error()
}

func NewError(code int, err string) error {
	return &Error{code, errors.New(err)}
}

// Wrap keeps both the response error and its cause in the chain so callers
// can match either with errors.Is while the message carries the reason.
func Wrap(respErr error, cause error) error {
	if cause == nil {
		return respErr
	}
	return fmt.Errorf("%w: %w", respErr, cause)
}

// StatusCode returns the HTTP status carried by err, or fallback when err has
// no *Error in its chain.
func StatusCode(err error, fallback int) int {
	var respErr *Error
	if errors.As(err, &respErr) {
		return respErr.Code
	}
	return fallback
}
