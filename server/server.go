package server

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoginStyle selects the payload shape of the login endpoint. Real backends
// disagree, and clients have to cope with all of them.
type LoginStyle string

const (
	// LoginObject answers {status, message, data: {accessToken, refreshToken, ..., user}}.
	LoginObject LoginStyle = "object"
	// LoginJWT answers {status, message, data: "<signed token>"} and the
	// refresh token in a second field.
	LoginJWT LoginStyle = "jwt"
	// LoginOAuth answers an RFC 6749 token response without an envelope.
	LoginOAuth LoginStyle = "oauth"
)

// CartShape selects where the cart endpoints put their line items.
type CartShape string

const (
	CartItemsKey     CartShape = "cartItems"
	CartPlainItems   CartShape = "items"
	CartNestedObject CartShape = "cart.items"
)

// CartWrite is one mutating call against the cart endpoints.
type CartWrite struct {
	Method    string
	ProductID string
	Quantity  int
}

// Stats counts calls so tests can assert on traffic, not only on state.
type Stats struct {
	Logins     int
	Refreshes  int
	Logouts    int
	CartReads  int
	CartWrites []CartWrite
	Orders     int
}

// Server is an in-memory storefront backend: auth with rotating refresh
// tokens, carts, catalog and orders. It exists for tests and local
// development of the client and keeps no state across restarts.
type Server struct {
	env       string
	router    chi.Router
	prefix    string
	state     *state
	signer    *hmacSigner
	accessTTL time.Duration
	rotate    bool
	login     LoginStyle
	cartShape CartShape
	seedUsers []SeedUser
	nowFunc   func() time.Time
	logger    zerolog.Logger

	statsLock  sync.Mutex
	stats      Stats
	generation int64 // access tokens minted before this are rejected
}

type Option func(*Server)

func WithEnv(env string) Option {
	return func(s *Server) {
		s.env = env
	}
}

func WithPrefix(prefix string) Option {
	return func(s *Server) {
		s.prefix = prefix
	}
}

func WithSecret(secret string) Option {
	return func(s *Server) {
		s.signer = newHMACSigner(secret)
	}
}

func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

// WithRefreshRotation makes every refresh return a new refresh token and
// invalidate the old one.
func WithRefreshRotation(rotate bool) Option {
	return func(s *Server) {
		s.rotate = rotate
	}
}

func WithLoginStyle(style LoginStyle) Option {
	return func(s *Server) {
		s.login = style
	}
}

func WithCartShape(shape CartShape) Option {
	return func(s *Server) {
		s.cartShape = shape
	}
}

func WithUsers(users []SeedUser) Option {
	return func(s *Server) {
		s.seedUsers = users
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(options ...Option) (*Server, error) {
	s := &Server{
		prefix:    "/api",
		state:     newState(),
		signer:    newHMACSigner("mock-backend-secret"),
		accessTTL: 15 * time.Minute,
		login:     LoginObject,
		cartShape: CartItemsKey,
		seedUsers: DefaultUsers,
		nowFunc:   time.Now,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}

	if err := s.state.seed(s.seedUsers); err != nil {
		return nil, fmt.Errorf("[Server New] failed to seed the backend: %w", err)
	}

	s.initRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Stats returns a copy of the call counters.
func (s *Server) Stats() Stats {
	s.statsLock.Lock()
	defer s.statsLock.Unlock()
	out := s.stats
	out.CartWrites = append([]CartWrite(nil), s.stats.CartWrites...)
	return out
}

// ResetStats zeroes the call counters.
func (s *Server) ResetStats() {
	s.statsLock.Lock()
	defer s.statsLock.Unlock()
	s.stats = Stats{}
}

// ExpireAccessTokens makes every access token issued so far fail with 401,
// as if they had all reached their expiry.
func (s *Server) ExpireAccessTokens() {
	s.statsLock.Lock()
	defer s.statsLock.Unlock()
	s.generation++
}

// RevokeRefreshTokens makes every outstanding refresh token unusable.
func (s *Server) RevokeRefreshTokens() {
	s.state.lock.Lock()
	defer s.state.lock.Unlock()
	s.state.refreshTokens = make(map[string]string)
}

// SetCart replaces a user's server cart, for arranging test scenarios.
func (s *Server) SetCart(email string, quantities map[string]int) error {
	s.state.lock.Lock()
	defer s.state.lock.Unlock()

	u, ok := s.state.users[strings.ToLower(email)]
	if !ok {
		return fmt.Errorf("unknown user %s", email)
	}
	c := make(map[string]*cartLine, len(quantities))
	for id, qty := range quantities {
		p, ok := s.state.products[id]
		if !ok {
			return fmt.Errorf("unknown product %s", id)
		}
		c[id] = &cartLine{ProductID: id, Quantity: qty, PriceAtTime: p.Price, AddedAt: s.state.nextSeq()}
	}
	s.state.carts[u.ID] = c
	return nil
}

// CartQuantities returns a user's server cart as productID -> quantity.
func (s *Server) CartQuantities(email string) map[string]int {
	s.state.lock.Lock()
	defer s.state.lock.Unlock()

	out := map[string]int{}
	u, ok := s.state.users[strings.ToLower(email)]
	if !ok {
		return out
	}
	for id, line := range s.state.carts[u.ID] {
		out[id] = line.Quantity
	}
	return out
}

func (s *Server) count(fn func(*Stats)) {
	s.statsLock.Lock()
	defer s.statsLock.Unlock()
	fn(&s.stats)
}

func (s *Server) currentGeneration() int64 {
	s.statsLock.Lock()
	defer s.statsLock.Unlock()
	return s.generation
}
