package authmodel_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-storefront-client/authmodel"
)

func decode(t *testing.T, payload string) authmodel.TokenResponse {
	t.Helper()
	var tr authmodel.TokenResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &tr))
	return tr
}

func TestTokenResponse_Shapes(t *testing.T) {
	t.Run("bare token string", func(t *testing.T) {
		tr := decode(t, `"eyJ.a.b"`)
		require.True(t, tr.Bare)
		require.Equal(t, "eyJ.a.b", tr.AccessToken)
		require.False(t, tr.HasIdentity())
		require.Equal(t, "Bearer", tr.Meta().TokenType)
	})

	t.Run("camelCase with identity", func(t *testing.T) {
		tr := decode(t, `{"id":7,"fullName":"Ada","email":"ada@example.com","role":"ADMIN",
			"accessToken":"at","tokenType":"Bearer","expiresAt":1893456000000}`)
		require.False(t, tr.Bare)
		require.Equal(t, "at", tr.AccessToken)
		require.Equal(t, "", tr.RefreshToken)
		require.Equal(t, "7", tr.UserID)
		require.Equal(t, "ada@example.com", tr.Email)
		require.Equal(t, "ADMIN", tr.Role)
		require.Equal(t, int64(1893456000000), *tr.ExpiresAt)
		require.True(t, tr.HasIdentity())
	})

	t.Run("RFC 6749 snake_case", func(t *testing.T) {
		tr := decode(t, `{"access_token":"at","refresh_token":"rt","token_type":"bearer","expires_in":900}`)
		require.Equal(t, "at", tr.AccessToken)
		require.Equal(t, "rt", tr.RefreshToken)
		require.Equal(t, "bearer", tr.TokenType)
		require.Nil(t, tr.ExpiresAt)
		require.Equal(t, int64(900), tr.ExpiresIn)

		now := time.UnixMilli(1_000_000)
		tr.ResolveExpiry(now)
		require.Equal(t, int64(1_000_000+900_000), *tr.ExpiresAt)
	})

	t.Run("nested user object", func(t *testing.T) {
		tr := decode(t, `{"accessToken":"at","refreshToken":"rt","user":{"userId":"u-1","sub":"b@example.com","name":"Bob"}}`)
		require.Equal(t, "u-1", tr.UserID)
		require.Equal(t, "b@example.com", tr.Email)
		require.Equal(t, "Bob", tr.FullName)
	})

	t.Run("expiresAt as RFC 3339", func(t *testing.T) {
		tr := decode(t, `{"accessToken":"at","expiresAt":"2030-01-01T00:00:00Z"}`)
		require.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), *tr.ExpiresAt)
	})

	t.Run("refresh without rotation", func(t *testing.T) {
		tr := decode(t, `{"accessToken":"at-2"}`)
		m := tr.Meta()
		require.Equal(t, "at-2", m.AccessToken)
		require.Equal(t, "", m.RefreshToken)
	})
}

func TestTokenResponse_Invalid(t *testing.T) {
	var tr authmodel.TokenResponse
	require.Error(t, json.Unmarshal([]byte(`[1,2]`), &tr))
}
