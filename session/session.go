package session

import (
	"time"

	"github.com/jrsteele09/go-storefront-client/authmodel"
	"github.com/jrsteele09/go-storefront-client/users"
)

// Session is who the current actor is. The zero value is the logged out state.
//
// AccessToken is set exactly when Role is set, apart from a session restored
// with only a refresh token, which is waiting for its first silent refresh.
type Session struct {
	User         *users.User    `json:"user"`
	Role         users.RoleType `json:"role,omitempty"`
	RawRole      string         `json:"rawRole,omitempty"` // server value before normalisation, for display
	AccessToken  string         `json:"accessToken,omitempty"`
	RefreshToken string         `json:"refreshToken,omitempty"`
	TokenType    string         `json:"tokenType,omitempty"`
	ExpiresAt    *int64         `json:"expiresAt,omitempty"` // epoch milliseconds, client-side hint only
}

// Identity is the user payload of a login. Some backends nest the token
// fields inside it; explicit AuthMeta passed to Login wins over these.
type Identity struct {
	users.User
	authmodel.AuthMeta
}

// IsEmpty reports whether s is the logged out state.
func (s Session) IsEmpty() bool {
	return s.User == nil && s.Role == "" && s.AccessToken == "" && s.RefreshToken == ""
}

// IsTokenExpired is a pure function of ExpiresAt. Missing expiry information
// never counts as expired.
func (s Session) IsTokenExpired(now time.Time) bool {
	if s.ExpiresAt == nil {
		return false
	}
	return now.UnixMilli() >= *s.ExpiresAt
}

func (s Session) clone() Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	if s.ExpiresAt != nil {
		e := *s.ExpiresAt
		s.ExpiresAt = &e
	}
	return s
}
