package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-storefront-client/apiclient"
	"github.com/jrsteele09/go-storefront-client/auth"
	"github.com/jrsteele09/go-storefront-client/catalog"
	"github.com/jrsteele09/go-storefront-client/internal/config"
	"github.com/jrsteele09/go-storefront-client/server"
	"github.com/jrsteele09/go-storefront-client/session"
	"github.com/jrsteele09/go-storefront-client/storage"
	"github.com/jrsteele09/go-storefront-client/token"
)

type testFixture struct {
	auth    *auth.Service
	catalog *catalog.Service
}

func setupTestFixture(t *testing.T, endpoints string) *testFixture {
	t.Helper()

	backend, err := server.New()
	require.NoError(t, err)
	ts := httptest.NewServer(backend)
	t.Cleanup(ts.Close)

	cfg, err := config.Parse([]byte("api:\n  base_url: " + ts.URL + "\n  prefix: /api\n" + endpoints))
	require.NoError(t, err)

	durable := storage.NewMemory()
	sm := session.NewManager(token.NewStore(storage.NewMemory(), durable), session.IdentityOnly(durable))
	client := apiclient.New(cfg, sm)
	authService, err := auth.NewService(client, sm)
	require.NoError(t, err)

	return &testFixture{auth: authService, catalog: catalog.NewService(client)}
}

func (f *testFixture) loginAdmin(t *testing.T) {
	t.Helper()
	_, err := f.auth.Login(context.Background(), auth.LoginRequest{Email: "admin@example.com", Password: "admin123"})
	require.NoError(t, err)
}

func TestProducts(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, "")

	t.Run("list", func(t *testing.T) {
		products, err := f.catalog.Products(ctx, catalog.ProductQuery{})
		require.NoError(t, err)
		require.Len(t, products, 5)
		require.Equal(t, "p-1001", products[0].ID)
		require.NotNil(t, products[0].StockQuantity)
		require.Equal(t, 25, *products[0].StockQuantity)
	})

	t.Run("filtered", func(t *testing.T) {
		products, err := f.catalog.Products(ctx, catalog.ProductQuery{Category: "audio"})
		require.NoError(t, err)
		require.Len(t, products, 1)
		require.Equal(t, "Nimbus Wireless Headphones", products[0].Name)

		products, err = f.catalog.Products(ctx, catalog.ProductQuery{Search: "lamp"})
		require.NoError(t, err)
		require.Len(t, products, 1)
		require.Equal(t, "p-1004", products[0].ID)
	})

	t.Run("single", func(t *testing.T) {
		p, err := f.catalog.Product(ctx, "p-1003")
		require.NoError(t, err)
		require.Equal(t, "Summit Hiking Backpack", p.Name)
		require.Equal(t, "1 unit in stock", p.StockStatus)

		_, err = f.catalog.Product(ctx, "p-404")
		require.True(t, apiclient.IsStatus(err, http.StatusNotFound))
	})

	t.Run("graphql", func(t *testing.T) {
		products, err := f.catalog.ProductsGraphQL(ctx)
		require.NoError(t, err)
		require.Len(t, products, 5)
	})
}

func TestProductsFallsBackToGraphQL(t *testing.T) {
	f := setupTestFixture(t, "  endpoints:\n    products: /no-such-list\n")

	products, err := f.catalog.Products(context.Background(), catalog.ProductQuery{Category: "Audio"})
	require.NoError(t, err)
	// The GraphQL query is unfiltered.
	require.Len(t, products, 5)
}

func TestProductsFallbackFailure(t *testing.T) {
	f := setupTestFixture(t, "  endpoints:\n    products: /no-such-list\n    graphql: /no-such-graphql\n")

	_, err := f.catalog.Products(context.Background(), catalog.ProductQuery{})
	require.True(t, apiclient.IsStatus(err, http.StatusNotFound))
	var reqErr *apiclient.RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Contains(t, reqErr.Op, "/no-such-list")
}

func TestAdminOperations(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, "")

	// A guest has no refresh token to recover the 401 with.
	_, err := f.catalog.CreateProduct(ctx, catalog.Product{Name: "Unauthorised"})
	require.ErrorIs(t, err, apiclient.ErrAuthExpired)

	f.loginAdmin(t)

	t.Run("products", func(t *testing.T) {
		p, err := f.catalog.CreateProduct(ctx, catalog.Product{Name: "Orbit Speaker", Price: 79, Category: "Audio"})
		require.NoError(t, err)
		require.NotEmpty(t, p.ID)
		require.Equal(t, "Out of stock", p.StockStatus)

		p, err = f.catalog.UpdateProduct(ctx, p.ID, catalog.Product{Name: "Orbit Speaker Mini", Price: 59, Category: "Audio"})
		require.NoError(t, err)
		require.Equal(t, "Orbit Speaker Mini", p.Name)

		inv, err := f.catalog.AdjustInventory(ctx, p.ID, 4)
		require.NoError(t, err)
		require.Equal(t, 4, inv.Quantity)
		inv, err = f.catalog.AdjustInventory(ctx, p.ID, -10)
		require.NoError(t, err)
		require.Zero(t, inv.Quantity)

		inv, err = f.catalog.Inventory(ctx, "p-1002")
		require.NoError(t, err)
		require.Equal(t, 3, inv.Quantity)

		require.NoError(t, f.catalog.DeleteProduct(ctx, p.ID))
		_, err = f.catalog.Product(ctx, p.ID)
		require.True(t, apiclient.IsStatus(err, http.StatusNotFound))
	})

	t.Run("categories", func(t *testing.T) {
		c, err := f.catalog.CreateCategory(ctx, catalog.Category{Name: "Kitchen"})
		require.NoError(t, err)

		c, err = f.catalog.UpdateCategory(ctx, c.ID, catalog.Category{Name: "Cookware"})
		require.NoError(t, err)
		require.Equal(t, "Cookware", c.Name)

		all, err := f.catalog.Categories(ctx)
		require.NoError(t, err)
		require.Contains(t, all, c)

		require.NoError(t, f.catalog.DeleteCategory(ctx, c.ID))
		all, err = f.catalog.Categories(ctx)
		require.NoError(t, err)
		require.NotContains(t, all, c)
	})

	t.Run("reviews", func(t *testing.T) {
		_, err := f.catalog.CreateReview(ctx, catalog.Review{ProductID: "p-1001", Rating: 6})
		require.True(t, apiclient.IsStatus(err, http.StatusBadRequest))

		r, err := f.catalog.CreateReview(ctx, catalog.Review{ProductID: "p-1001", Rating: 5, Comment: "Great battery"})
		require.NoError(t, err)
		require.NotEmpty(t, r.ID)

		reviews, err := f.catalog.Reviews(ctx, "p-1001")
		require.NoError(t, err)
		require.Len(t, reviews, 1)
		require.Equal(t, "Great battery", reviews[0].Comment)

		reviews, err = f.catalog.Reviews(ctx, "p-1002")
		require.NoError(t, err)
		require.Empty(t, reviews)
	})
}

func TestStockStatus(t *testing.T) {
	qty := func(n int) *int { return &n }
	flag := func(b bool) *bool { return &b }

	tests := []struct {
		name    string
		product catalog.Product
		want    catalog.Availability
	}{
		{"no information", catalog.Product{}, catalog.Availability{Label: "In stock", Available: true}},
		{"label wins", catalog.Product{StockStatus: "Few units in stock", StockQuantity: qty(2)}, catalog.Availability{Label: "Few units in stock", Available: true}},
		{"quantity", catalog.Product{StockQuantity: qty(7)}, catalog.Availability{Label: "In stock", Available: true}},
		{"zero quantity", catalog.Product{StockQuantity: qty(0)}, catalog.Availability{Label: "Out of stock"}},
		{"flag off", catalog.Product{InStock: flag(false)}, catalog.Availability{Label: "Out of stock"}},
		{"flag on", catalog.Product{InStock: flag(true), StockQuantity: qty(0)}, catalog.Availability{Label: "Out of stock", Available: true}},
		{"label on unavailable", catalog.Product{StockStatus: "Back soon", InStock: flag(false)}, catalog.Availability{Label: "Back soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, catalog.StockStatus(tt.product))
		})
	}
}
