package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Order statuses
const (
	OrderPending   = "PENDING"
	OrderShipped   = "SHIPPED"
	OrderDelivered = "DELIVERED"
	OrderCancelled = "CANCELLED"
)

var orderStatuses = map[string]bool{
	OrderPending:   true,
	OrderShipped:   true,
	OrderDelivered: true,
	OrderCancelled: true,
}

// CreateOrderHandler places an order. A repeated Idempotency-Key returns the
// order created the first time instead of placing another one.
func (s *Server) CreateOrderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID string `json:"userId"`
			Items  []struct {
				ProductID string `json:"productId"`
				Quantity  int    `json:"quantity"`
			} `json:"items"`
		}
		if !readJSON(r, &body) || len(body.Items) == 0 {
			writeError(w, http.StatusBadRequest, "an order needs at least one item")
			return
		}
		key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		caller := callerFrom(r)

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		if key != "" {
			if o, ok := s.state.idempotent[key]; ok {
				writeSuccess(w, http.StatusOK, o)
				return
			}
		}

		o := &order{
			ID:        "o-" + itoa(s.state.nextSeq()),
			UserID:    caller.UserID,
			Status:    OrderPending,
			OrderDate: s.nowFunc(),
		}
		for _, it := range body.Items {
			p, ok := s.state.products[it.ProductID]
			if !ok {
				writeError(w, http.StatusNotFound, "Product not found: "+it.ProductID)
				return
			}
			if it.Quantity < 1 {
				writeError(w, http.StatusBadRequest, "quantity must be at least 1")
				return
			}
			o.Items = append(o.Items, orderLine{ProductID: p.ID, Name: p.Name, Quantity: it.Quantity, Price: p.Price})
			o.TotalAmount += p.Price * float64(it.Quantity)
		}

		s.state.orders = append(s.state.orders, o)
		if key != "" {
			s.state.idempotent[key] = o
		}
		s.count(func(st *Stats) { st.Orders++ })
		writeSuccess(w, http.StatusCreated, o)
	}
}

// ListOrdersHandler returns the caller's orders, or every order for admins.
func (s *Server) ListOrdersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := callerFrom(r)

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		out := make([]order, 0)
		for _, o := range s.state.orders {
			if caller.Role.IsAdmin() || o.UserID == caller.UserID {
				out = append(out, *o)
			}
		}
		writeSuccess(w, http.StatusOK, out)
	}
}

func (s *Server) UpdateOrderStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status string `json:"status"`
		}
		if !readJSON(r, &body) || !orderStatuses[strings.ToUpper(body.Status)] {
			writeError(w, http.StatusBadRequest, "unknown order status")
			return
		}

		s.state.lock.Lock()
		defer s.state.lock.Unlock()

		id := chi.URLParam(r, "id")
		for _, o := range s.state.orders {
			if o.ID == id {
				o.Status = strings.ToUpper(body.Status)
				writeSuccess(w, http.StatusOK, o)
				return
			}
		}
		writeError(w, http.StatusNotFound, "Order not found")
	}
}
