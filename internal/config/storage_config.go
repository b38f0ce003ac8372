package config

import "strconv"

// StorageBackend names a durable storage implementation.
type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageFile   StorageBackend = "file"
	StorageRedis  StorageBackend = "redis"
	StorageSQLite StorageBackend = "sqlite"
)

type StorageConfig interface {
	GetStorageBackend() StorageBackend
	GetStorageFile() string
	GetRedisAddr() string
	GetRedisPrefix() string
	GetSQLitePath() string
}

type CartConfig interface {
	GetMaxSyncWrites() int
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetStorageBackend() StorageBackend {
	return StorageBackend(GetEnv("STORAGE_BACKEND", string(StorageFile)))
}

func (Storage) GetStorageFile() string {
	return GetEnv("STORAGE_FILE", "./data/storefront.json")
}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Storage) GetRedisPrefix() string {
	return GetEnv("REDIS_PREFIX", "storefront:")
}

func (Storage) GetSQLitePath() string {
	return GetEnv("SQLITE_PATH", "./data/storefront.db")
}

type Cart struct{}

var _ CartConfig = Cart{}

func (Cart) GetMaxSyncWrites() int {
	n, err := strconv.Atoi(GetEnv("CART_SYNC_WRITES", "4"))
	if err != nil || n < 1 {
		return 4
	}
	return n
}
