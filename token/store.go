package token

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-storefront-client/internal/errors"
	"github.com/jrsteele09/go-storefront-client/storage"
)

const (
	AccessTokenKey  = "ecom_at"
	RefreshTokenKey = "ecom_rt"
)

// Store is the single source of truth for the bearer credentials attached to
// outgoing requests. Persistence is best-effort: storage failures never reach
// the caller, reads return "" and writes are dropped.
type Store struct {
	tab        storage.Storage // access token, lives as long as the process
	durable    storage.Storage // refresh token, survives restarts
	obfuscator *Obfuscator
	logger     zerolog.Logger
}

type StoreOption func(*Store)

// WithObfuscator stores the refresh token through o. See Obfuscator for what
// this does and does not protect against.
func WithObfuscator(o *Obfuscator) StoreOption {
	return func(s *Store) {
		s.obfuscator = o
	}
}

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(tab, durable storage.Storage, options ...StoreOption) *Store {
	s := &Store{
		tab:     tab,
		durable: durable,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// SetAccessToken is a no-op for an empty token.
func (s *Store) SetAccessToken(token string) {
	if token == "" {
		return
	}
	s.write(s.tab, AccessTokenKey, token)
}

func (s *Store) AccessToken() string {
	return s.read(s.tab, AccessTokenKey)
}

// SetRefreshToken is a no-op for an empty token.
func (s *Store) SetRefreshToken(token string) {
	if token == "" {
		return
	}
	value := token
	if s.obfuscator != nil {
		value = s.obfuscator.Obfuscate(token)
	}
	s.write(s.durable, RefreshTokenKey, value)
}

func (s *Store) RefreshToken() string {
	value := s.read(s.durable, RefreshTokenKey)
	if value == "" || s.obfuscator == nil {
		return value
	}
	plain, err := s.obfuscator.Reveal(value)
	if err != nil {
		s.logger.Debug().Err(err).Msg("token store: unreadable refresh token")
		return ""
	}
	return plain
}

// ClearAll removes both credentials. Safe to call when nothing is stored. A
// failure on one side still clears the other.
func (s *Store) ClearAll() {
	s.remove(s.tab, AccessTokenKey)
	s.remove(s.durable, RefreshTokenKey)
}

func (s *Store) read(st storage.Storage, key string) (value string) {
	defer s.recoverStorage(key)
	v, err := st.Get(key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Debug().Err(err).Str("key", key).Msg("token store: read failed")
		}
		return ""
	}
	return v
}

func (s *Store) write(st storage.Storage, key, value string) {
	defer s.recoverStorage(key)
	if err := st.Set(key, value); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("token store: dropping write")
	}
}

func (s *Store) remove(st storage.Storage, key string) {
	defer s.recoverStorage(key)
	if err := st.Delete(key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Debug().Err(err).Str("key", key).Msg("token store: clear failed")
	}
}

func (s *Store) recoverStorage(key string) {
	if r := recover(); r != nil {
		s.logger.Debug().Interface("panic", r).Str("key", key).Msg("token store: storage panicked")
	}
}
