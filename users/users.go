package users

import (
	"strings"
)

// RoleType is the closed set of roles the client authorizes against.
type RoleType string

const (
	RoleCustomer RoleType = "customer"
	RoleAdmin    RoleType = "admin"
)

// User is the identity shown in the UI after login. It comes from the login
// payload or from decoded token claims and is never used for authorization
// decisions on its own.
type User struct {
	ID        string `json:"id,omitempty"`        // Backend user id (userId claim)
	Email     string `json:"email,omitempty"`     // Email address (sub claim)
	FullName  string `json:"fullName,omitempty"`  // Display name
	LastLogin string `json:"lastLogin,omitempty"` // Server formatted timestamp, passed through
}

// NormalizeRole maps a server role onto the closed role set. An empty value is
// a customer; "customer" in any case is a customer; every other designation
// (ADMIN, STAFF, ...) is treated as admin. The raw value is kept separately by
// callers that want to display it.
func NormalizeRole(raw string) RoleType {
	r := strings.ToLower(strings.TrimSpace(raw))
	r = strings.TrimPrefix(r, "role_")
	switch r {
	case "", string(RoleCustomer):
		return RoleCustomer
	default:
		return RoleAdmin
	}
}

func (r RoleType) IsAdmin() bool {
	return r == RoleAdmin
}

// Valid reports whether r is one of the known roles.
func (r RoleType) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

// HomePath is where a freshly logged in user lands.
func (r RoleType) HomePath() string {
	if r.IsAdmin() {
		return "/admin"
	}
	return "/catalog"
}
