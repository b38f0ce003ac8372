package apiclient

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-storefront-client/internal/errors"
)

// ErrAuthExpired means the credential could not be renewed. By the time a
// caller sees it the session has been cleared and the navigator told to show
// the login view.
var ErrAuthExpired = errors.ErrAuthExpired

// RequestError is any failure other than an expired session: a non-2xx
// response or a transport error. Message is meant for display.
type RequestError struct {
	Op         string // "GET /api/cart"
	StatusCode int    // 0 when no response was received
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err is a RequestError with the given status code.
func IsStatus(err error, code int) bool {
	var re *RequestError
	return errors.As(err, &re) && re.StatusCode == code
}

func transportError(op string, err error) *RequestError {
	return &RequestError{Op: op, Message: err.Error(), Err: err}
}

func statusError(op string, status int, body []byte) *RequestError {
	return &RequestError{
		Op:         op,
		StatusCode: status,
		Message:    errorMessage(status, body),
	}
}

// errorMessage reads message, then error, from the body and falls back to a
// generic status line.
func errorMessage(status int, body []byte) string {
	var b struct {
		Message any `json:"message"`
		Error   any `json:"error"`
	}
	if err := json.Unmarshal(body, &b); err == nil {
		for _, v := range []any{b.Message, b.Error} {
			if s := messageString(v); s != "" {
				return s
			}
		}
	}
	return fmt.Sprintf("request failed with status code %d", status)
}

func messageString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		return messageString(t["message"])
	default:
		return ""
	}
}
