package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-storefront-client/authmodel"
	"github.com/jrsteele09/go-storefront-client/internal/errors"
	"github.com/jrsteele09/go-storefront-client/internal/utils"
	"github.com/jrsteele09/go-storefront-client/token"
	"github.com/jrsteele09/go-storefront-client/users"
)

// ErrNoAccessToken is returned by Login when neither the identity nor the auth
// metadata carry an access token, and by Token when logged out.
var ErrNoAccessToken = errors.ErrNoAccessToken

// Reason tells logout hooks why the session ended.
type Reason string

const (
	// ReasonLogout is a user initiated logout.
	ReasonLogout Reason = "logout"
	// ReasonExpired is a forced logout after the credential could not be renewed.
	ReasonExpired Reason = "expired"
)

// LogoutHook runs after the session has been cleared. prev is the session as
// it was before logout. Hooks run synchronously and must not block; network
// work belongs in a goroutine.
type LogoutHook func(prev Session, reason Reason)

// Manager owns the current session. It is explicitly constructed and passed to
// whatever needs it; there is no package level state.
type Manager struct {
	current    Session
	generation uint64 // bumped whenever the session is replaced or ended
	tokens  *token.Store
	policy  PersistencePolicy
	hooks   []LogoutHook
	nowFunc func() time.Time
	logger  zerolog.Logger
	lock    sync.RWMutex
}

var _ oauth2.TokenSource = (*Manager)(nil)

type ManagerOption func(*Manager)

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager builds a manager and synchronously rehydrates the persisted
// session, so the first request after a restart already carries a credential.
func NewManager(tokens *token.Store, policy PersistencePolicy, options ...ManagerOption) *Manager {
	m := &Manager{
		tokens:  tokens,
		policy:  policy,
		nowFunc: time.Now,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}
	m.restore()
	return m
}

func (m *Manager) restore() {
	s, ok, err := m.policy.Load()
	if err != nil {
		m.logger.Warn().Err(err).Msg("session: discarding unreadable session record")
		m.clearRecord()
		return
	}
	if !ok {
		return
	}

	// Tokens written by a policy that persists them are copied into the token
	// store so both views agree.
	if s.AccessToken != "" && m.tokens.AccessToken() == "" {
		m.tokens.SetAccessToken(s.AccessToken)
	}
	if s.RefreshToken != "" && m.tokens.RefreshToken() == "" {
		m.tokens.SetRefreshToken(s.RefreshToken)
	}
	s.AccessToken = utils.Coalesce(m.tokens.AccessToken(), s.AccessToken)
	s.RefreshToken = utils.Coalesce(m.tokens.RefreshToken(), s.RefreshToken)

	if s.AccessToken == "" && s.RefreshToken == "" {
		m.logger.Debug().Msg("session: persisted identity has no credential, dropping it")
		m.clearRecord()
		return
	}
	if !s.Role.Valid() {
		s.Role = users.NormalizeRole(s.RawRole)
	}
	if s.TokenType == "" {
		s.TokenType = authmodel.DefaultTokenType
	}

	m.lock.Lock()
	m.current = s
	m.lock.Unlock()
}

// Login replaces the whole session. Fields in meta override the same fields
// nested in identity. The role is normalised onto {customer, admin}; the raw
// value is kept for display.
func (m *Manager) Login(identity Identity, role string, meta authmodel.AuthMeta) (Session, error) {
	access := utils.Coalesce(meta.AccessToken, identity.AccessToken)
	if access == "" {
		return Session{}, ErrNoAccessToken
	}

	user := identity.User

	// Switching accounts ends the previous session first so its cart and
	// refresh token do not leak into the new one.
	if prev := m.Current(); !prev.IsEmpty() && (prev.User == nil || prev.User.ID != user.ID) {
		m.end(ReasonLogout)
	}

	s := Session{
		User:         &user,
		Role:         users.NormalizeRole(role),
		RawRole:      role,
		AccessToken:  access,
		RefreshToken: utils.Coalesce(meta.RefreshToken, identity.RefreshToken),
		TokenType:    utils.Coalesce(meta.TokenType, identity.TokenType, authmodel.DefaultTokenType),
		ExpiresAt:    utils.CoalescePtr(meta.ExpiresAt, identity.ExpiresAt),
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.current = s
	m.generation++

	// A refresh token left over from a previous account must not survive.
	m.tokens.ClearAll()
	m.tokens.SetAccessToken(s.AccessToken)
	m.tokens.SetRefreshToken(s.RefreshToken)
	m.save(s)

	return s.clone(), nil
}

// Generation identifies the current session. It changes on every login,
// logout and expiry.
func (m *Manager) Generation() uint64 {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.generation
}

// UpdateTokens applies the result of a silent refresh started during session
// generation. Only the access token, refresh token and expiry change, and only
// when meta provides them; a backend that does not rotate refresh tokens
// leaves the stored one in place.
//
// It reports false and changes nothing when the session has ended or been
// replaced since generation, or when nobody is logged in.
func (m *Manager) UpdateTokens(generation uint64, meta authmodel.AuthMeta) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if generation != m.generation || !m.current.Role.Valid() {
		return false
	}
	if meta.AccessToken != "" {
		m.current.AccessToken = meta.AccessToken
	}
	if meta.RefreshToken != "" {
		m.current.RefreshToken = meta.RefreshToken
	}
	if meta.ExpiresAt != nil {
		e := *meta.ExpiresAt
		m.current.ExpiresAt = &e
	}
	m.tokens.SetAccessToken(meta.AccessToken)
	m.tokens.SetRefreshToken(meta.RefreshToken)
	m.save(m.current.clone())
	return true
}

// Logout resets every field, clears the token store and the persisted record,
// then runs the logout hooks.
func (m *Manager) Logout() {
	m.end(ReasonLogout)
}

// Expire is the forced logout used when a credential cannot be renewed.
func (m *Manager) Expire() {
	m.end(ReasonExpired)
}

func (m *Manager) end(reason Reason) {
	m.lock.Lock()
	prev := m.current.clone()
	m.current = Session{}
	m.generation++
	hooks := append([]LogoutHook(nil), m.hooks...)
	m.tokens.ClearAll()
	m.clearRecord()
	m.lock.Unlock()

	if reason == ReasonExpired {
		m.logger.Warn().Msg("session: credential could not be renewed, logged out")
	}
	for _, hook := range hooks {
		hook(prev, reason)
	}
}

// OnLogout registers a hook run on every logout or expiry.
func (m *Manager) OnLogout(hook LogoutHook) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.hooks = append(m.hooks, hook)
}

// IsTokenExpired is false when no expiry is known.
func (m *Manager) IsTokenExpired() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.current.IsTokenExpired(m.nowFunc())
}

// Current returns a copy of the session.
func (m *Manager) Current() Session {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.current.clone()
}

// IsAuthenticated reports whether requests go to the server as a known user.
func (m *Manager) IsAuthenticated() bool {
	m.lock.RLock()
	role := m.current.Role
	m.lock.RUnlock()
	return role.Valid() && (m.AccessToken() != "" || m.RefreshToken() != "")
}

func (m *Manager) Role() users.RoleType {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.current.Role
}

// AccessToken reads the token store first; it is the source of truth for the
// request pipeline.
func (m *Manager) AccessToken() string {
	if t := m.tokens.AccessToken(); t != "" {
		return t
	}
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.current.AccessToken
}

func (m *Manager) RefreshToken() string {
	if t := m.tokens.RefreshToken(); t != "" {
		return t
	}
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.current.RefreshToken
}

func (m *Manager) TokenType() string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return utils.Coalesce(m.current.TokenType, authmodel.DefaultTokenType)
}

// Token implements oauth2.TokenSource over the current credential so the
// session can back an oauth2.Transport. It never refreshes; the request
// pipeline owns refresh.
func (m *Manager) Token() (*oauth2.Token, error) {
	access := m.AccessToken()
	if access == "" {
		return nil, ErrNoAccessToken
	}
	m.lock.RLock()
	defer m.lock.RUnlock()
	tok := &oauth2.Token{
		AccessToken: access,
		TokenType:   utils.Coalesce(m.current.TokenType, authmodel.DefaultTokenType),
	}
	if m.current.ExpiresAt != nil {
		tok.Expiry = time.UnixMilli(*m.current.ExpiresAt)
	}
	return tok, nil
}

func (m *Manager) save(s Session) {
	if err := m.policy.Save(s); err != nil {
		m.logger.Debug().Err(err).Msg("session: persisting session failed")
	}
}

func (m *Manager) clearRecord() {
	if err := m.policy.Clear(); err != nil {
		m.logger.Debug().Err(err).Msg("session: clearing session record failed")
	}
}
