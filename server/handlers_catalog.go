package server

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
)

// productView adds the stock fields the catalog endpoints report.
type productView struct {
	product
	StockQuantity int    `json:"stockQuantity"`
	InStock       bool   `json:"inStock"`
	StockStatus   string `json:"stockStatus"`
}

func stockLabel(qty int) string {
	switch {
	case qty <= 0:
		return "Out of stock"
	case qty == 1:
		return "1 unit in stock"
	case qty <= 5:
		return "Few units in stock"
	default:
		return "In stock"
	}
}

func (s *Server) view(p product) productView {
	qty := s.state.inventory[p.ID]
	return productView{product: p, StockQuantity: qty, InStock: qty > 0, StockStatus: stockLabel(qty)}
}

func (s *Server) ListProductsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cat := r.URL.Query().Get("category")
		search := strings.ToLower(r.URL.Query().Get("search"))

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		out := make([]productView, 0)
		for _, p := range s.state.sortedProducts() {
			if cat != "" && !strings.EqualFold(p.Category, cat) {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
				continue
			}
			out = append(out, s.view(p))
		}
		writeSuccess(w, http.StatusOK, out)
	}
}

func (s *Server) GetProductHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		p, ok := s.state.products[chi.URLParam(r, "id")]
		if !ok {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		writeSuccess(w, http.StatusOK, s.view(*p))
	}
}

func (s *Server) CreateProductHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p product
		if !readJSON(r, &p) || p.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		if p.ID == "" {
			p.ID = "p-" + itoa(2000+s.state.nextSeq())
		}
		if _, exists := s.state.products[p.ID]; exists {
			writeError(w, http.StatusConflict, "Product already exists")
			return
		}
		s.state.products[p.ID] = &p
		writeSuccess(w, http.StatusCreated, s.view(p))
	}
}

func (s *Server) UpdateProductHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var p product
		if !readJSON(r, &p) {
			writeError(w, http.StatusBadRequest, "invalid product")
			return
		}

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		if _, ok := s.state.products[id]; !ok {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		p.ID = id
		s.state.products[id] = &p
		writeSuccess(w, http.StatusOK, s.view(p))
	}
}

func (s *Server) DeleteProductHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		delete(s.state.products, chi.URLParam(r, "id"))
		writeSuccess(w, http.StatusOK, nil)
	}
}

func (s *Server) ListCategoriesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		out := make([]category, 0, len(s.state.categories))
		for _, c := range s.state.categories {
			out = append(out, *c)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		writeSuccess(w, http.StatusOK, out)
	}
}

func (s *Server) CreateCategoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c category
		if !readJSON(r, &c) || c.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if c.ID == "" {
			c.ID = c.Name
		}

		s.state.lock.Lock()
		defer s.state.lock.Unlock()
		s.state.categories[c.ID] = &c
		writeSuccess(w, http.StatusCreated, c)
	}
}

func (s *Server) UpdateCategoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var c category
		if !readJSON(r, &c) {
			writeError(w, http.StatusBadRequest, "invalid category")
			return
		}

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		if _, ok := s.state.categories[id]; !ok {
			writeError(w, http.StatusNotFound, "Category not found")
			return
		}
		c.ID = id
		s.state.categories[id] = &c
		writeSuccess(w, http.StatusOK, c)
	}
}

func (s *Server) DeleteCategoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		delete(s.state.categories, chi.URLParam(r, "id"))
		writeSuccess(w, http.StatusOK, nil)
	}
}

func (s *Server) ListReviewsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID := r.URL.Query().Get("productId")

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		out := make([]review, 0)
		for _, rv := range s.state.reviews {
			if productID == "" || rv.ProductID == productID {
				out = append(out, rv)
			}
		}
		writeSuccess(w, http.StatusOK, out)
	}
}

func (s *Server) CreateReviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rv review
		if !readJSON(r, &rv) || rv.ProductID == "" || rv.Rating < 1 || rv.Rating > 5 {
			writeError(w, http.StatusBadRequest, "productId and a rating from 1 to 5 are required")
			return
		}

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		if _, ok := s.state.products[rv.ProductID]; !ok {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		rv.ID = "r-" + itoa(s.state.nextSeq())
		rv.UserID = callerFrom(r).UserID
		rv.CreatedAt = s.nowFunc()
		s.state.reviews = append(s.state.reviews, rv)
		writeSuccess(w, http.StatusCreated, rv)
	}
}

func (s *Server) GetInventoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "productId")

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		if _, ok := s.state.products[id]; !ok {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"productId": id, "quantity": s.state.inventory[id]})
	}
}

// AdjustInventoryHandler applies a signed delta; stock never goes below zero.
func (s *Server) AdjustInventoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ProductID string `json:"productId"`
			Delta     int    `json:"delta"`
		}
		if !readJSON(r, &body) || body.ProductID == "" {
			writeError(w, http.StatusBadRequest, "productId is required")
			return
		}

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		if _, ok := s.state.products[body.ProductID]; !ok {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		qty := s.state.inventory[body.ProductID] + body.Delta
		if qty < 0 {
			qty = 0
		}
		s.state.inventory[body.ProductID] = qty
		writeSuccess(w, http.StatusOK, map[string]any{"productId": body.ProductID, "quantity": qty})
	}
}

// GraphQLHandler understands just enough to list products. Anything else is
// answered with a GraphQL error.
func (s *Server) GraphQLHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query string `json:"query"`
		}
		if !readJSON(r, &body) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []map[string]string{{"message": "invalid request"}}})
			return
		}
		if !strings.Contains(body.Query, "products") {
			writeJSON(w, http.StatusOK, map[string]any{"errors": []map[string]string{{"message": "Unsupported query"}}})
			return
		}

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		out := make([]productView, 0, len(s.state.products))
		for _, p := range s.state.sortedProducts() {
			out = append(out, s.view(p))
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"products": out}})
	}
}
