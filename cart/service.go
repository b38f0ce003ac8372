package cart

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jrsteele09/go-storefront-client/internal/errors"
	"github.com/jrsteele09/go-storefront-client/session"
)

// Session is the part of the session manager the cart depends on.
type Session interface {
	IsAuthenticated() bool
	OnLogout(hook session.LogoutHook)
}

// Service presents one cart whether or not the user is logged in. A guest
// cart lives only in memory; once authenticated the server cart is
// authoritative and the local copy is replaced by every server answer.
type Service struct {
	backend   Backend
	session   Session
	maxWrites int
	logger    zerolog.Logger

	lock sync.RWMutex
	cart Cart
}

type ServiceOption func(*Service)

// WithMaxSyncWrites bounds the concurrent writes of SyncToServer.
func WithMaxSyncWrites(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxWrites = n
		}
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService registers a logout hook on sess that drops the cart back to an
// empty guest cart.
func NewService(backend Backend, sess Session, options ...ServiceOption) *Service {
	s := &Service{
		backend:   backend,
		session:   sess,
		maxWrites: 4,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	sess.OnLogout(s.reset)
	return s
}

// Cart returns a copy of the current cart.
func (s *Service) Cart() Cart {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.cart.clone()
}

// AddItem adds quantity units of p.
func (s *Service) AddItem(ctx context.Context, p Product, quantity int) (Cart, error) {
	if quantity < 1 || p.ID == "" {
		return s.Cart(), ErrInvalidQuantity
	}

	if !s.session.IsAuthenticated() {
		s.lock.Lock()
		defer s.lock.Unlock()
		s.cart = s.cart.upsert(p, quantity)
		return s.cart.clone(), nil
	}

	c, ok, err := s.backend.Add(ctx, p.ID, quantity)
	if err != nil {
		return s.Cart(), err
	}
	if !ok {
		return s.refetch(ctx)
	}
	return s.adopt(c), nil
}

// UpdateQuantity sets the quantity of a line. Values below 1 are raised to 1;
// RemoveItem is the only way to drop a line.
func (s *Service) UpdateQuantity(ctx context.Context, productID string, quantity int) (Cart, error) {
	quantity = max(quantity, 1)

	if !s.session.IsAuthenticated() {
		s.lock.Lock()
		defer s.lock.Unlock()
		s.cart = s.cart.setQuantity(productID, quantity)
		return s.cart.clone(), nil
	}

	c, ok, err := s.backend.Update(ctx, productID, quantity)
	if err != nil {
		return s.Cart(), err
	}
	if !ok {
		return s.refetch(ctx)
	}
	return s.adopt(c), nil
}

// RemoveItem drops a line. An unreadable server answer still removes the
// line locally.
func (s *Service) RemoveItem(ctx context.Context, productID string) (Cart, error) {
	if s.session.IsAuthenticated() {
		c, ok, err := s.backend.Remove(ctx, productID)
		if err != nil {
			return s.Cart(), err
		}
		if ok {
			return s.adopt(c), nil
		}
		s.logger.Debug().Str("productId", productID).Msg("cart: unusable remove response, filtering locally")
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.cart = s.cart.without(productID)
	return s.cart.clone(), nil
}

// Clear empties the cart. The server call is best effort.
func (s *Service) Clear(ctx context.Context) {
	if s.session.IsAuthenticated() {
		if err := s.backend.Clear(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("cart: server clear failed")
		}
	}
	s.adopt(Cart{})
}

// SyncToServer merges the local cart into the server cart once after login.
// Each product ends at the larger of the two quantities, lines only the
// server has are untouched, and only lines that change are written. The
// writes run concurrently; the server cart is fetched again once they have
// all finished and becomes the local cart.
//
// Running it twice without local changes issues no writes the second time.
func (s *Service) SyncToServer(ctx context.Context) (Cart, error) {
	if !s.session.IsAuthenticated() {
		return s.Cart(), nil
	}

	server, ok, err := s.backend.Fetch(ctx)
	if err != nil {
		return s.Cart(), errors.Wrapf(err, "cart sync: fetch")
	}
	if !ok {
		return s.Cart(), errors.Wrapf(ErrInvalidResponse, "cart sync: fetch")
	}

	local := s.Cart()
	if local.IsEmpty() {
		return s.adopt(server), nil
	}

	writes := PlanMerge(server, local)
	if len(writes) == 0 {
		return s.adopt(server), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWrites)
	for _, w := range writes {
		g.Go(func() error {
			var err error
			if w.Create {
				_, _, err = s.backend.Add(gctx, w.ProductID, w.Quantity)
			} else {
				_, _, err = s.backend.Update(gctx, w.ProductID, w.Quantity)
			}
			return errors.Wrapf(err, "cart sync: write %s", w.ProductID)
		})
	}
	if err := g.Wait(); err != nil {
		return s.Cart(), err
	}

	s.logger.Debug().Int("writes", len(writes)).Msg("cart: merged local cart into server cart")
	return s.refetch(ctx)
}

func (s *Service) refetch(ctx context.Context) (Cart, error) {
	c, ok, err := s.backend.Fetch(ctx)
	if err != nil {
		return s.Cart(), err
	}
	if !ok {
		return s.Cart(), ErrInvalidResponse
	}
	return s.adopt(c), nil
}

func (s *Service) adopt(c Cart) Cart {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.cart = c.clone()
	return s.cart.clone()
}

func (s *Service) reset(session.Session, session.Reason) {
	s.adopt(Cart{})
}
