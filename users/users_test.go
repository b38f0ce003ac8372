package users_test

import (
	"testing"

	"github.com/jrsteele09/go-storefront-client/users"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRole(t *testing.T) {
	cases := map[string]users.RoleType{
		"":              users.RoleCustomer,
		"CUSTOMER":      users.RoleCustomer,
		"customer":      users.RoleCustomer,
		"ROLE_CUSTOMER": users.RoleCustomer,
		"ADMIN":         users.RoleAdmin,
		"admin":         users.RoleAdmin,
		"STAFF":         users.RoleAdmin,
		"ROLE_ADMIN":    users.RoleAdmin,
		"warehouse":     users.RoleAdmin,
	}
	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			require.Equal(t, want, users.NormalizeRole(raw))
		})
	}
}

func TestRoleType(t *testing.T) {
	require.True(t, users.RoleAdmin.IsAdmin())
	require.False(t, users.RoleCustomer.IsAdmin())
	require.True(t, users.RoleCustomer.Valid())
	require.False(t, users.RoleType("staff").Valid())
	require.Equal(t, "/admin", users.RoleAdmin.HomePath())
	require.Equal(t, "/catalog", users.RoleCustomer.HomePath())
}
