package orders

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-storefront-client/apiclient"
	"github.com/jrsteele09/go-storefront-client/cart"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

type Line struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price,omitempty"`
}

type Order struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId"`
	Items       []Line  `json:"items"`
	TotalAmount float64 `json:"totalAmount"`
	Status      Status  `json:"status"`
	OrderDate   string  `json:"orderDate"`
}

// CreateRequest places an order. IdempotencyKey is generated when empty;
// pass the same key again to resubmit the same order safely.
type CreateRequest struct {
	UserID         string `json:"userId"`
	Items          []Line `json:"items"`
	IdempotencyKey string `json:"-"`
}

// LinesFromCart turns cart lines into order lines.
func LinesFromCart(c cart.Cart) []Line {
	lines := make([]Line, 0, len(c.Items))
	for _, it := range c.Items {
		lines = append(lines, Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

type Service struct {
	client *apiclient.Client
}

func NewService(client *apiclient.Client) *Service {
	return &Service{client: client}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Order, error) {
	key := req.IdempotencyKey
	if key == "" {
		key = apiclient.NewIdempotencyKey()
	}
	var out Order
	err := s.client.Do(ctx, &apiclient.Request{
		Method:         http.MethodPost,
		Path:           s.client.Endpoints().Orders,
		Body:           req,
		IdempotencyKey: key,
	}, &out)
	return out, err
}

// List returns the caller's orders; admins get every order.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	var out []Order
	err := s.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: s.client.Endpoints().Orders}, &out)
	return out, err
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (Order, error) {
	var out Order
	err := s.client.Do(ctx, &apiclient.Request{
		Method: http.MethodPatch,
		Path:   s.client.Endpoints().Orders + "/" + url.PathEscape(id) + "/status",
		Body:   map[string]string{"status": strings.ToUpper(string(status))},
	}, &out)
	return out, err
}
