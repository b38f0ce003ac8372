package server

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// cartPayload renders a cart in the configured shape. Must be called with
// the state lock held.
func (s *Server) cartPayload(userID string) any {
	lines := make([]*cartLine, 0)
	for _, l := range s.state.carts[userID] {
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].AddedAt < lines[j].AddedAt })

	items := make([]map[string]any, 0, len(lines))
	total := 0.0
	for _, l := range lines {
		p := s.state.products[l.ProductID]
		if p == nil {
			continue
		}
		total += l.PriceAtTime * float64(l.Quantity)

		switch s.cartShape {
		case CartPlainItems:
			items = append(items, map[string]any{
				"productId": p.ID,
				"name":      p.Name,
				"price":     strconv.FormatFloat(l.PriceAtTime, 'f', 2, 64),
				"image":     p.ImageURL,
				"category":  p.Category,
				"quantity":  l.Quantity,
			})
		case CartNestedObject:
			items = append(items, map[string]any{
				"unitPrice": l.PriceAtTime,
				"quantity":  strconv.Itoa(l.Quantity),
				"product": map[string]any{
					"id":       p.ID,
					"name":     p.Name,
					"price":    p.Price,
					"image":    p.ImageURL,
					"category": p.Category,
				},
			})
		default:
			items = append(items, map[string]any{
				"productId":   p.ID,
				"quantity":    l.Quantity,
				"priceAtTime": l.PriceAtTime,
				"product": map[string]any{
					"id":       p.ID,
					"name":     p.Name,
					"price":    p.Price,
					"imageUrl": p.ImageURL,
					"category": p.Category,
				},
			})
		}
	}

	switch s.cartShape {
	case CartPlainItems:
		return map[string]any{"items": items, "subtotal": total}
	case CartNestedObject:
		return map[string]any{"cart": map[string]any{"items": items, "total": total}}
	default:
		return map[string]any{"cartItems": items, "totalAmount": total}
	}
}

func (s *Server) GetCartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.count(func(st *Stats) { st.CartReads++ })

		s.state.lock.Lock()
		defer s.state.lock.Unlock()
		writeSuccess(w, http.StatusOK, s.cartPayload(callerFrom(r).UserID))
	}
}

// AddCartItemHandler adds quantity to the line, creating it if needed.
func (s *Server) AddCartItemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ProductID string `json:"productId"`
			Quantity  int    `json:"quantity"`
		}
		if !readJSON(r, &body) || body.ProductID == "" {
			writeError(w, http.StatusBadRequest, "productId is required")
			return
		}
		if body.Quantity < 1 {
			body.Quantity = 1
		}
		s.count(func(st *Stats) {
			st.CartWrites = append(st.CartWrites, CartWrite{Method: http.MethodPost, ProductID: body.ProductID, Quantity: body.Quantity})
		})

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		p, ok := s.state.products[body.ProductID]
		if !ok {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		caller := callerFrom(r)
		c := s.state.cart(caller.UserID)
		if line, ok := c[p.ID]; ok {
			line.Quantity += body.Quantity
		} else {
			c[p.ID] = &cartLine{ProductID: p.ID, Quantity: body.Quantity, PriceAtTime: p.Price, AddedAt: s.state.nextSeq()}
		}
		writeSuccess(w, http.StatusOK, s.cartPayload(caller.UserID))
	}
}

// UpdateCartItemHandler sets the quantity of an existing line.
func (s *Server) UpdateCartItemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID := chi.URLParam(r, "productId")
		var body struct {
			Quantity int `json:"quantity"`
		}
		if !readJSON(r, &body) || body.Quantity < 1 {
			writeError(w, http.StatusBadRequest, "quantity must be at least 1")
			return
		}
		s.count(func(st *Stats) {
			st.CartWrites = append(st.CartWrites, CartWrite{Method: http.MethodPatch, ProductID: productID, Quantity: body.Quantity})
		})

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		caller := callerFrom(r)
		line, ok := s.state.cart(caller.UserID)[productID]
		if !ok {
			writeError(w, http.StatusNotFound, "Item not in cart")
			return
		}
		line.Quantity = body.Quantity
		writeSuccess(w, http.StatusOK, s.cartPayload(caller.UserID))
	}
}

func (s *Server) RemoveCartItemHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID := chi.URLParam(r, "productId")
		s.count(func(st *Stats) {
			st.CartWrites = append(st.CartWrites, CartWrite{Method: http.MethodDelete, ProductID: productID})
		})

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		caller := callerFrom(r)
		delete(s.state.cart(caller.UserID), productID)
		writeSuccess(w, http.StatusOK, s.cartPayload(caller.UserID))
	}
}

func (s *Server) ClearCartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.count(func(st *Stats) {
			st.CartWrites = append(st.CartWrites, CartWrite{Method: http.MethodDelete})
		})

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		caller := callerFrom(r)
		delete(s.state.carts, caller.UserID)
		writeSuccess(w, http.StatusOK, s.cartPayload(caller.UserID))
	}
}
