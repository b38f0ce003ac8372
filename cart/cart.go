package cart

import (
	"github.com/jrsteele09/go-storefront-client/internal/errors"
)

var (
	ErrInvalidQuantity = errors.ErrInvalidQuantity
	ErrInvalidResponse = errors.ErrInvalidResponse
)

// Product is what the catalog hands to AddItem.
type Product struct {
	ID       string
	Name     string
	Price    float64
	ImageURL string
	Category string
}

// Item is one cart line. Quantity is always at least 1; a line that would
// reach 0 is removed instead.
type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	ImageURL  string  `json:"imageUrl"`
	Category  string  `json:"category"`
	Quantity  int     `json:"quantity"`
}

// Cart is a set of lines keyed by product id. Order carries no meaning.
type Cart struct {
	Items []Item `json:"items"`
}

func (c Cart) Subtotal() float64 {
	total := 0.0
	for _, it := range c.Items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

// Count is the number of units, not lines.
func (c Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Quantity returns the quantity of productID, 0 when absent.
func (c Cart) Quantity(productID string) int {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}

func (c Cart) clone() Cart {
	return Cart{Items: append([]Item(nil), c.Items...)}
}

// upsert adds qty to an existing line or appends a new one.
func (c Cart) upsert(p Product, qty int) Cart {
	out := c.clone()
	for i := range out.Items {
		if out.Items[i].ProductID == p.ID {
			out.Items[i].Quantity += qty
			return out
		}
	}
	out.Items = append(out.Items, Item{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
		Category:  p.Category,
		Quantity:  qty,
	})
	return out
}

func (c Cart) setQuantity(productID string, qty int) Cart {
	out := c.clone()
	for i := range out.Items {
		if out.Items[i].ProductID == productID {
			out.Items[i].Quantity = qty
		}
	}
	return out
}

func (c Cart) without(productID string) Cart {
	out := Cart{Items: make([]Item, 0, len(c.Items))}
	for _, it := range c.Items {
		if it.ProductID != productID {
			out.Items = append(out.Items, it)
		}
	}
	return out
}
