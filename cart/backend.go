package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-storefront-client/apiclient"
)

// Backend is the server side of the cart. Every call returns the cart the
// server answered with; usable is false when that answer could not be read
// as a cart.
type Backend interface {
	Fetch(ctx context.Context) (c Cart, usable bool, err error)
	Add(ctx context.Context, productID string, quantity int) (c Cart, usable bool, err error)
	Update(ctx context.Context, productID string, quantity int) (c Cart, usable bool, err error)
	Remove(ctx context.Context, productID string) (c Cart, usable bool, err error)
	Clear(ctx context.Context) error
}

// HTTPBackend talks to the cart endpoints through the authenticated client.
type HTTPBackend struct {
	client *apiclient.Client
}

var _ Backend = (*HTTPBackend)(nil)

func NewHTTPBackend(client *apiclient.Client) *HTTPBackend {
	return &HTTPBackend{client: client}
}

func (b *HTTPBackend) Fetch(ctx context.Context) (Cart, bool, error) {
	return b.call(ctx, http.MethodGet, b.client.Endpoints().Cart, nil)
}

func (b *HTTPBackend) Add(ctx context.Context, productID string, quantity int) (Cart, bool, error) {
	return b.call(ctx, http.MethodPost, b.client.Endpoints().CartItems, map[string]any{
		"productId": productID,
		"quantity":  quantity,
	})
}

func (b *HTTPBackend) Update(ctx context.Context, productID string, quantity int) (Cart, bool, error) {
	return b.call(ctx, http.MethodPatch, b.itemPath(productID), map[string]any{"quantity": quantity})
}

func (b *HTTPBackend) Remove(ctx context.Context, productID string) (Cart, bool, error) {
	return b.call(ctx, http.MethodDelete, b.itemPath(productID), nil)
}

func (b *HTTPBackend) Clear(ctx context.Context) error {
	return b.client.Do(ctx, &apiclient.Request{Method: http.MethodDelete, Path: b.client.Endpoints().Cart}, nil)
}

func (b *HTTPBackend) itemPath(productID string) string {
	return b.client.Endpoints().CartItems + "/" + url.PathEscape(productID)
}

func (b *HTTPBackend) call(ctx context.Context, method, path string, body any) (Cart, bool, error) {
	var raw json.RawMessage
	if err := b.client.Do(ctx, &apiclient.Request{Method: method, Path: path, Body: body}, &raw); err != nil {
		return Cart{}, false, err
	}
	c, ok := Normalize(raw)
	return c, ok, nil
}
