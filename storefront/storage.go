package storefront

import (
	"io"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-storefront-client/internal/config"
	"github.com/jrsteele09/go-storefront-client/internal/errors"
	"github.com/jrsteele09/go-storefront-client/storage"
	"github.com/jrsteele09/go-storefront-client/storage/redisstore"
	"github.com/jrsteele09/go-storefront-client/storage/sqlitestore"
)

var ErrUnsupportedStorage = errors.ErrUnsupportedStorage

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStorage builds the durable storage named by the configuration. The
// closer releases connections and files; it is never nil.
func OpenStorage(cfg config.StorageConfig) (storage.Storage, io.Closer, error) {
	switch cfg.GetStorageBackend() {
	case config.StorageMemory:
		return storage.NewMemory(), nopCloser{}, nil
	case config.StorageFile:
		f, err := storage.NewFile(cfg.GetStorageFile())
		if err != nil {
			return nil, nil, errors.Wrapf(err, "open file storage")
		}
		return f, nopCloser{}, nil
	case config.StorageRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.GetRedisAddr()})
		return redisstore.New(client, cfg.GetRedisPrefix()), client, nil
	case config.StorageSQLite:
		s, err := sqlitestore.Open(cfg.GetSQLitePath())
		if err != nil {
			return nil, nil, errors.Wrapf(err, "open sqlite storage")
		}
		return s, s, nil
	default:
		return nil, nil, errors.Wrapf(ErrUnsupportedStorage, "%q", cfg.GetStorageBackend())
	}
}
