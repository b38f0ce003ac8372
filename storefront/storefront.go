// Package storefront wires the client components together from configuration
// and runs the flows that span several of them.
package storefront

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-storefront-client/apiclient"
	"github.com/jrsteele09/go-storefront-client/auth"
	"github.com/jrsteele09/go-storefront-client/cart"
	"github.com/jrsteele09/go-storefront-client/catalog"
	"github.com/jrsteele09/go-storefront-client/internal/config"
	"github.com/jrsteele09/go-storefront-client/internal/errors"
	"github.com/jrsteele09/go-storefront-client/orders"
	"github.com/jrsteele09/go-storefront-client/session"
	"github.com/jrsteele09/go-storefront-client/storage"
	"github.com/jrsteele09/go-storefront-client/token"
)

var (
	ErrNotLoggedIn = errors.New("not logged in")
	ErrEmptyCart   = errors.New("cart is empty")
)

// Client is the assembled storefront client.
type Client struct {
	Tokens  *token.Store
	Session *session.Manager
	API     *apiclient.Client
	Auth    *auth.Service
	Cart    *cart.Service
	Catalog *catalog.Service
	Orders  *orders.Service

	closer io.Closer
	logger zerolog.Logger
}

type options struct {
	navigator  apiclient.Navigator
	httpClient *http.Client
	durable    storage.Storage
	nowFunc    func() time.Time
	logger     zerolog.Logger
}

type Option func(*options)

func WithNavigator(n apiclient.Navigator) Option {
	return func(o *options) {
		o.navigator = n
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithDurableStorage replaces the storage chosen by configuration.
func WithDurableStorage(s storage.Storage) Option {
	return func(o *options) {
		o.durable = s
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(o *options) {
		o.nowFunc = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New builds every component. The session is restored from durable storage
// before New returns.
func New(cfg config.Config, opts ...Option) (*Client, error) {
	o := options{nowFunc: time.Now, logger: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}

	var closer io.Closer = nopCloser{}
	durable := o.durable
	if durable == nil {
		var err error
		durable, closer, err = OpenStorage(cfg)
		if err != nil {
			return nil, err
		}
	}

	storeOpts := []token.StoreOption{token.WithLogger(o.logger)}
	if obf := token.NewObfuscator(cfg.GetObfuscationSecret()); obf != nil {
		storeOpts = append(storeOpts, token.WithObfuscator(obf))
	}
	tokens := token.NewStore(storage.NewMemory(), durable, storeOpts...)

	sm := session.NewManager(tokens, session.PolicyFor(cfg.GetPersistPolicy(), durable),
		session.WithNowFunc(o.nowFunc),
		session.WithLogger(o.logger),
	)

	apiOpts := []apiclient.Option{
		apiclient.WithRefreshTimeout(cfg.GetRefreshTimeout()),
		apiclient.WithNowFunc(o.nowFunc),
		apiclient.WithLogger(o.logger),
	}
	if o.navigator != nil {
		apiOpts = append(apiOpts, apiclient.WithNavigator(o.navigator))
	}
	if o.httpClient != nil {
		apiOpts = append(apiOpts, apiclient.WithHTTPClient(o.httpClient))
	}
	api := apiclient.New(cfg, sm, apiOpts...)

	authService, err := auth.NewService(api, sm, auth.WithNowTime(o.nowFunc), auth.WithLogger(o.logger))
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	return &Client{
		Tokens:  tokens,
		Session: sm,
		API:     api,
		Auth:    authService,
		Cart: cart.NewService(cart.NewHTTPBackend(api), sm,
			cart.WithMaxSyncWrites(cfg.GetMaxSyncWrites()),
			cart.WithLogger(o.logger),
		),
		Catalog: catalog.NewService(api, catalog.WithLogger(o.logger)),
		Orders:  orders.NewService(api),
		closer:  closer,
		logger:  o.logger,
	}, nil
}

// Close releases the durable storage.
func (c *Client) Close() error {
	return c.closer.Close()
}

// Login signs in and merges the guest cart into the server cart.
func (c *Client) Login(ctx context.Context, email, password string) (session.Session, error) {
	s, err := c.Auth.Login(ctx, auth.LoginRequest{Email: email, Password: password})
	if err != nil {
		return s, err
	}
	c.syncCart(ctx)
	return s, nil
}

// Signup creates the account, signs in and merges the guest cart.
func (c *Client) Signup(ctx context.Context, req auth.SignupRequest) (session.Session, error) {
	s, err := c.Auth.Signup(ctx, req)
	if err != nil {
		return s, err
	}
	c.syncCart(ctx)
	return s, nil
}

// CompleteOAuthRedirect finishes a provider sign in and merges the guest cart.
func (c *Client) CompleteOAuthRedirect(ctx context.Context, query url.Values) (session.Session, error) {
	s, err := c.Auth.CompleteOAuthRedirect(query)
	if err != nil {
		return s, err
	}
	c.syncCart(ctx)
	return s, nil
}

// Resume continues a restored session. When only the refresh token
// survived, the access token is renewed silently first. The server cart is
// then loaded.
func (c *Client) Resume(ctx context.Context) (session.Session, error) {
	if !c.Session.IsAuthenticated() {
		return session.Session{}, ErrNotLoggedIn
	}
	if c.Session.AccessToken() == "" {
		if err := c.API.Refresh(ctx); err != nil {
			return session.Session{}, err
		}
	}
	if _, err := c.Cart.SyncToServer(ctx); err != nil {
		return c.Session.Current(), err
	}
	return c.Session.Current(), nil
}

// Checkout places an order for the cart and empties it.
func (c *Client) Checkout(ctx context.Context) (orders.Order, error) {
	current := c.Session.Current()
	if !c.Session.IsAuthenticated() || current.User == nil {
		return orders.Order{}, ErrNotLoggedIn
	}
	items := c.Cart.Cart()
	if items.IsEmpty() {
		return orders.Order{}, ErrEmptyCart
	}

	o, err := c.Orders.Create(ctx, orders.CreateRequest{
		UserID: current.User.ID,
		Items:  orders.LinesFromCart(items),
	})
	if err != nil {
		return o, err
	}
	c.Cart.Clear(ctx)
	return o, nil
}

// Logout ends the session. The cart drops back to an empty guest cart.
func (c *Client) Logout() {
	c.Auth.Logout()
}

// syncCart never fails a login: the cart can be merged again later.
func (c *Client) syncCart(ctx context.Context) {
	if _, err := c.Cart.SyncToServer(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("storefront: cart sync after login failed")
	}
}
