package config

import "time"

// PersistPolicy selects which session fields survive a restart.
type PersistPolicy string

const (
	// PersistIdentity keeps user and role only; tokens live in the token store.
	PersistIdentity PersistPolicy = "identity"
	// PersistTokens additionally writes the tokens into the session record.
	PersistTokens PersistPolicy = "tokens"
)

// ObfuscationSecret is meant to be set at build time:
//
//	go build -ldflags "-X github.com/jrsteele09/go-storefront-client/internal/config.ObfuscationSecret=..."
var ObfuscationSecret = ""

type SessionConfig interface {
	GetPersistPolicy() PersistPolicy
	GetRefreshTimeout() time.Duration
	GetObfuscationSecret() string
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetPersistPolicy() PersistPolicy {
	if PersistPolicy(GetEnv("SESSION_PERSIST", "")) == PersistTokens {
		return PersistTokens
	}
	return PersistIdentity
}

func (Session) GetRefreshTimeout() time.Duration {
	return durationEnv("REFRESH_TIMEOUT", 10*time.Second)
}

func (Session) GetObfuscationSecret() string {
	return GetEnv("TOKEN_OBFUSCATION_SECRET", ObfuscationSecret)
}
