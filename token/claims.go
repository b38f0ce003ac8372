package token

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jrsteele09/go-storefront-client/internal/errors"
)

// Claims are read from a bearer token without verifying its signature. They
// are untrusted display data for the UI (who is logged in, which menu to
// show). Authorization decisions belong to the server, which verifies the
// token on every request.
type Claims struct {
	Subject   string // sub, the user's email
	Role      string
	UserID    string
	FullName  string
	LastLogin string
	Exp       *int64 // seconds since epoch
}

// ExpiresAtMillis converts exp to epoch milliseconds, or nil when absent.
func (c *Claims) ExpiresAtMillis() *int64 {
	if c.Exp == nil {
		return nil
	}
	ms := *c.Exp * 1000
	return &ms
}

// DecodeError reports a token that could not be parsed into claims. A session
// cannot be built from it, so it matches errors.ErrAuthExpired.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode token: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == errors.ErrAuthExpired || target == errors.ErrDecode
}

// DecodeClaims parses the payload of a JWT without verification.
func DecodeClaims(raw string) (*Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &DecodeError{Err: fmt.Errorf("empty token")}
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, &DecodeError{Err: fmt.Errorf("error extracting claims")}
	}

	c := &Claims{
		Subject:   claimString(mc["sub"]),
		Role:      claimString(mc["role"]),
		UserID:    claimString(mc["userId"]),
		FullName:  claimString(mc["fullName"]),
		LastLogin: claimString(mc["lastLogin"]),
	}
	if exp, ok := mc["exp"].(float64); ok {
		e := int64(exp)
		c.Exp = &e
	}
	return c, nil
}

// claimString accepts strings and numbers; numeric user ids are common.
func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
