package session

import (
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/go-storefront-client/internal/config"
	"github.com/jrsteele09/go-storefront-client/internal/errors"
	"github.com/jrsteele09/go-storefront-client/storage"
)

// RecordKey names the persisted session record.
const RecordKey = "ecom-session"

// PersistencePolicy decides which session fields survive a restart and where
// they are kept. One implementation is chosen per deployment.
type PersistencePolicy interface {
	Load() (Session, bool, error)
	Save(s Session) error
	Clear() error
}

// RecordPolicy stores the session as one JSON record. With includeTokens
// unset, only identity and role are written and tokens are left to the token
// store.
type RecordPolicy struct {
	store         storage.Storage
	key           string
	includeTokens bool
}

var _ PersistencePolicy = (*RecordPolicy)(nil)

type record struct {
	State   *Session `json:"state"`
	Version int      `json:"version"`
}

// IdentityOnly persists user and role.
func IdentityOnly(store storage.Storage) *RecordPolicy {
	return &RecordPolicy{store: store, key: RecordKey}
}

// WithTokens persists the full session, tokens included.
func WithTokens(store storage.Storage) *RecordPolicy {
	return &RecordPolicy{store: store, key: RecordKey, includeTokens: true}
}

// PolicyFor returns the policy configured for the deployment.
func PolicyFor(p config.PersistPolicy, store storage.Storage) *RecordPolicy {
	if p == config.PersistTokens {
		return WithTokens(store)
	}
	return IdentityOnly(store)
}

func (p *RecordPolicy) Load() (Session, bool, error) {
	raw, err := p.store.Get(p.key)
	if errors.Is(err, storage.ErrNotFound) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("load session record: %w", err)
	}

	// Older records hold the session directly rather than under "state".
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Session{}, false, fmt.Errorf("decode session record: %w", err)
	}
	s := rec.State
	if s == nil {
		s = &Session{}
		if err := json.Unmarshal([]byte(raw), s); err != nil {
			return Session{}, false, fmt.Errorf("decode session record: %w", err)
		}
	}
	if !p.includeTokens {
		s.AccessToken, s.RefreshToken, s.ExpiresAt = "", "", nil
	}
	return *s, !s.IsEmpty(), nil
}

func (p *RecordPolicy) Save(s Session) error {
	if s.IsEmpty() {
		return p.Clear()
	}
	if !p.includeTokens {
		s.AccessToken, s.RefreshToken, s.ExpiresAt = "", "", nil
	}
	data, err := json.Marshal(record{State: &s, Version: 1})
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}
	if err := p.store.Set(p.key, string(data)); err != nil {
		return fmt.Errorf("save session record: %w", err)
	}
	return nil
}

func (p *RecordPolicy) Clear() error {
	if err := p.store.Delete(p.key); err != nil {
		return fmt.Errorf("clear session record: %w", err)
	}
	return nil
}
