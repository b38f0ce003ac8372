package config

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	StorageConfig
	CartConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	API
	Session
	Storage
	Cart
}

// New returns a Config backed by environment variables.
func New() Config {
	return mainConfig{}
}
