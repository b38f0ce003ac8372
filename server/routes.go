package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Route paths below the API prefix
const (
	RouteAuthLogin        = "/auth/login"
	RouteAuthRefresh      = "/auth/refresh"
	RouteAuthLogout       = "/auth/logout"
	RouteUsers            = "/users"
	RouteCart             = "/cart"
	RouteCartItems        = "/cart/items"
	RouteCartItem         = "/cart/items/{productId}"
	RouteProducts         = "/products"
	RouteProduct          = "/products/{id}"
	RouteCategories       = "/categories"
	RouteCategory         = "/categories/{id}"
	RouteReviews          = "/reviews"
	RouteInventory        = "/inventory/{productId}"
	RouteInventoryAdjust  = "/inventory/adjust"
	RouteOrders           = "/orders"
	RouteOrderStatus      = "/orders/{id}/status"
	RouteGraphQL          = "/graphql"
	RouteOAuth2Authorize  = "/oauth2/authorization/{provider}"
	DefaultOAuth2Redirect = "/oauth2/redirect"
)

func (s *Server) initRoutes() {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.LoggingMiddleware)
	r.Use(s.CorsMiddleware)

	r.Route(s.prefix, func(r chi.Router) {
		r.Post(RouteAuthLogin, s.LoginHandler())
		r.Post(RouteAuthRefresh, s.RefreshHandler())
		r.Post(RouteAuthLogout, s.LogoutHandler())
		r.Post(RouteUsers, s.SignupHandler())
		r.Get(RouteOAuth2Authorize, s.OAuth2AuthorizeHandler())

		r.Get(RouteProducts, s.ListProductsHandler())
		r.Get(RouteProduct, s.GetProductHandler())
		r.Get(RouteCategories, s.ListCategoriesHandler())
		r.Get(RouteReviews, s.ListReviewsHandler())
		r.Get(RouteInventory, s.GetInventoryHandler())
		r.Post(RouteGraphQL, s.GraphQLHandler())

		r.Group(func(r chi.Router) {
			r.Use(s.RequireAuth)

			r.Get(RouteCart, s.GetCartHandler())
			r.Delete(RouteCart, s.ClearCartHandler())
			r.Post(RouteCartItems, s.AddCartItemHandler())
			r.Patch(RouteCartItem, s.UpdateCartItemHandler())
			r.Delete(RouteCartItem, s.RemoveCartItemHandler())

			r.Post(RouteReviews, s.CreateReviewHandler())
			r.Post(RouteOrders, s.CreateOrderHandler())
			r.Get(RouteOrders, s.ListOrdersHandler())

			r.Group(func(r chi.Router) {
				r.Use(s.RequireAdmin)

				r.Get(RouteUsers, s.ListUsersHandler())
				r.Post(RouteProducts, s.CreateProductHandler())
				r.Put(RouteProduct, s.UpdateProductHandler())
				r.Delete(RouteProduct, s.DeleteProductHandler())
				r.Post(RouteCategories, s.CreateCategoryHandler())
				r.Put(RouteCategory, s.UpdateCategoryHandler())
				r.Delete(RouteCategory, s.DeleteCategoryHandler())
				r.Post(RouteInventoryAdjust, s.AdjustInventoryHandler())
				r.Patch(RouteOrderStatus, s.UpdateOrderStatusHandler())
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "404 - Not Found")
	})

	s.router = r
	if s.env == "DEV" {
		s.logRoutes()
	}
}

func (s *Server) logRoutes() {
	_ = chi.Walk(s.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		s.logRoute(method, route)
		return nil
	})
}
