package sqlitestore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-storefront-client/storage"
	"github.com/jrsteele09/go-storefront-client/storage/sqlitestore"
)

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.db")
	s, err := sqlitestore.Open(path)
	require.NoError(t, err)

	_, err = s.Get("ecom_rt")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set("ecom_rt", "v1"))
	require.NoError(t, s.Set("ecom_rt", "v2"))
	v, err := s.Get("ecom_rt")
	require.NoError(t, err)
	require.Equal(t, "v2", v)

	require.NoError(t, s.Close())

	reopened, err := sqlitestore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	v, err = reopened.Get("ecom_rt")
	require.NoError(t, err)
	require.Equal(t, "v2", v)

	require.NoError(t, reopened.Delete("ecom_rt"))
	_, err = reopened.Get("ecom_rt")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
