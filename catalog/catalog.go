package catalog

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-storefront-client/apiclient"
	"github.com/jrsteele09/go-storefront-client/internal/errors"
)

type Product struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Rating        float64 `json:"rating,omitempty"`
	ReviewCount   int     `json:"reviewCount,omitempty"`
	Category      string  `json:"category,omitempty"`
	Description   string  `json:"description,omitempty"`
	ImageURL      string  `json:"imageUrl,omitempty"`
	StockQuantity *int    `json:"stockQuantity,omitempty"`
	InStock       *bool   `json:"inStock,omitempty"`
	StockStatus   string  `json:"stockStatus,omitempty"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Review struct {
	ID        string `json:"id,omitempty"`
	ProductID string `json:"productId"`
	UserID    string `json:"userId,omitempty"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type Inventory struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// ProductQuery filters the product list. Empty fields are not sent.
type ProductQuery struct {
	Category string
	Search   string
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

const productsQuery = `query Products {
  products { id name price rating reviewCount category description imageUrl stockQuantity inStock stockStatus }
}`

// Service is thin transport glue over the catalog endpoints.
type Service struct {
	client *apiclient.Client
	logger zerolog.Logger
}

type ServiceOption func(*Service)

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(client *apiclient.Client, options ...ServiceOption) *Service {
	s := &Service{
		client: client,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Products lists products over REST. When the REST call fails for any reason
// other than an ended session, the unfiltered list is fetched over GraphQL
// instead; the REST error is returned if that fails too.
func (s *Service) Products(ctx context.Context, q ProductQuery) ([]Product, error) {
	var out []Product
	err := s.client.Do(ctx, &apiclient.Request{
		Method: http.MethodGet,
		Path:   s.client.Endpoints().Products,
		Query:  q.values(),
	}, &out)
	if err == nil || errors.Is(err, apiclient.ErrAuthExpired) {
		return out, err
	}

	s.logger.Debug().Err(err).Msg("catalog: REST product list failed, trying GraphQL")
	products, gqlErr := s.ProductsGraphQL(ctx)
	if gqlErr != nil {
		return nil, err
	}
	return products, nil
}

func (s *Service) ProductsGraphQL(ctx context.Context) ([]Product, error) {
	var data struct {
		Products []Product `json:"products"`
	}
	if err := s.client.GraphQL(ctx, productsQuery, nil, &data); err != nil {
		return nil, err
	}
	return data.Products, nil
}

func (s *Service) Product(ctx context.Context, id string) (Product, error) {
	var p Product
	err := s.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: s.productPath(id)}, &p)
	return p, err
}

func (s *Service) CreateProduct(ctx context.Context, p Product) (Product, error) {
	var out Product
	err := s.client.Do(ctx, &apiclient.Request{Method: http.MethodPost, Path: s.client.Endpoints().Products, Body: p}, &out)
	return out, err
}

func (s *Service) UpdateProduct(ctx context.Context, id string, p Product) (Product, error) {
	var out Product
	err := s.client.Do(ctx, &apiclient.Request{Method: http.MethodPut, Path: s.productPath(id), Body: p}, &out)
	return out, err
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.client.Do(ctx, &apiclient.Request{Method: http.MethodDelete, Path: s.productPath(id)}, nil)
}

func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := s.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: s.client.Endpoints().Categories}, &out)
	return out, err
}

func (s *Service) CreateCategory(ctx context.Context, c Category) (Category, error) {
	var out Category
	err := s.client.Do(ctx, &apiclient.Request{Method: http.MethodPost, Path: s.client.Endpoints().Categories, Body: c}, &out)
	return out, err
}

func (s *Service) UpdateCategory(ctx context.Context, id string, c Category) (Category, error) {
	var out Category
	err := s.client.Do(ctx, &apiclient.Request{Method: http.MethodPut, Path: s.categoryPath(id), Body: c}, &out)
	return out, err
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return s.client.Do(ctx, &apiclient.Request{Method: http.MethodDelete, Path: s.categoryPath(id)}, nil)
}

// Reviews lists reviews, of one product when productID is set.
func (s *Service) Reviews(ctx context.Context, productID string) ([]Review, error) {
	q := url.Values{}
	if productID != "" {
		q.Set("productId", productID)
	}
	var out []Review
	err := s.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: s.client.Endpoints().Reviews, Query: q}, &out)
	return out, err
}

func (s *Service) CreateReview(ctx context.Context, r Review) (Review, error) {
	var out Review
	err := s.client.Do(ctx, &apiclient.Request{Method: http.MethodPost, Path: s.client.Endpoints().Reviews, Body: r}, &out)
	return out, err
}

func (s *Service) Inventory(ctx context.Context, productID string) (Inventory, error) {
	var out Inventory
	err := s.client.Do(ctx, &apiclient.Request{
		Method: http.MethodGet,
		Path:   s.client.Endpoints().Inventory + "/" + url.PathEscape(productID),
	}, &out)
	return out, err
}

// AdjustInventory applies a signed stock delta.
func (s *Service) AdjustInventory(ctx context.Context, productID string, delta int) (Inventory, error) {
	var out Inventory
	err := s.client.Do(ctx, &apiclient.Request{
		Method: http.MethodPost,
		Path:   s.client.Endpoints().Inventory + "/adjust",
		Body:   map[string]any{"productId": productID, "delta": delta},
	}, &out)
	return out, err
}

func (s *Service) productPath(id string) string {
	return s.client.Endpoints().Products + "/" + url.PathEscape(id)
}

func (s *Service) categoryPath(id string) string {
	return s.client.Endpoints().Categories + "/" + url.PathEscape(id)
}
