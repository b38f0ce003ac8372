package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-storefront-client/storage"
	"github.com/stretchr/testify/require"
)

func exerciseStorage(t *testing.T, s storage.Storage) {
	t.Helper()

	_, err := s.Get("missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set("ecom_rt", "refresh-1"))
	v, err := s.Get("ecom_rt")
	require.NoError(t, err)
	require.Equal(t, "refresh-1", v)

	require.NoError(t, s.Set("ecom_rt", "refresh-2"))
	v, err = s.Get("ecom_rt")
	require.NoError(t, err)
	require.Equal(t, "refresh-2", v)

	require.NoError(t, s.Delete("ecom_rt"))
	require.NoError(t, s.Delete("ecom_rt"))
	_, err = s.Get("ecom_rt")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMemory(t *testing.T) {
	exerciseStorage(t, storage.NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	f, err := storage.NewFile(path)
	require.NoError(t, err)
	exerciseStorage(t, f)

	t.Run("survives reopen", func(t *testing.T) {
		require.NoError(t, f.Set("ecom-session", `{"role":"customer"}`))

		reopened, err := storage.NewFile(path)
		require.NoError(t, err)
		v, err := reopened.Get("ecom-session")
		require.NoError(t, err)
		require.Equal(t, `{"role":"customer"}`, v)
	})

	t.Run("corrupt file surfaces an error", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
		s, err := storage.NewFile(bad)
		require.NoError(t, err)
		_, err = s.Get("x")
		require.Error(t, err)
		require.NotErrorIs(t, err, storage.ErrNotFound)
	})
}
