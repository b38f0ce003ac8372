package backendfake

import (
	"context"
	"sort"
	"sync"

	"github.com/jrsteele09/go-storefront-client/cart"
)

// Call records one mutating call.
type Call struct {
	Method    string // add, update, remove, clear
	ProductID string
	Quantity  int
}

// Backend is an in-memory cart.Backend that records every write.
type Backend struct {
	lock     sync.Mutex
	lines    map[string]cart.Item
	order    map[string]int
	seq      int
	calls    []Call
	fetches  int
	catalog  map[string]cart.Product
	writeErr error
	clearErr error

	// UnusableRemove makes Remove answer with something that is not a cart.
	UnusableRemove bool
}

var _ cart.Backend = (*Backend)(nil)

func New(products ...cart.Product) *Backend {
	b := &Backend{
		lines:   make(map[string]cart.Item),
		order:   make(map[string]int),
		catalog: make(map[string]cart.Product),
	}
	for _, p := range products {
		b.catalog[p.ID] = p
	}
	return b
}

// Set arranges the server cart without recording a write.
func (b *Backend) Set(quantities map[string]int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.lines = make(map[string]cart.Item)
	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		b.put(id, quantities[id])
	}
}

// FailWrites makes every add and update fail with err.
func (b *Backend) FailWrites(err error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.writeErr = err
}

func (b *Backend) FailClear(err error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.clearErr = err
}

func (b *Backend) Calls() []Call {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]Call(nil), b.calls...)
}

func (b *Backend) Fetches() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.fetches
}

// Quantities returns the server cart as productID -> quantity.
func (b *Backend) Quantities() map[string]int {
	b.lock.Lock()
	defer b.lock.Unlock()
	out := make(map[string]int, len(b.lines))
	for id, it := range b.lines {
		out[id] = it.Quantity
	}
	return out
}

func (b *Backend) Fetch(context.Context) (cart.Cart, bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.fetches++
	return b.snapshot(), true, nil
}

func (b *Backend) Add(_ context.Context, productID string, quantity int) (cart.Cart, bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.calls = append(b.calls, Call{Method: "add", ProductID: productID, Quantity: quantity})
	if b.writeErr != nil {
		return cart.Cart{}, false, b.writeErr
	}
	b.put(productID, b.lines[productID].Quantity+quantity)
	return b.snapshot(), true, nil
}

func (b *Backend) Update(_ context.Context, productID string, quantity int) (cart.Cart, bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.calls = append(b.calls, Call{Method: "update", ProductID: productID, Quantity: quantity})
	if b.writeErr != nil {
		return cart.Cart{}, false, b.writeErr
	}
	if _, ok := b.lines[productID]; ok {
		b.put(productID, quantity)
	}
	return b.snapshot(), true, nil
}

func (b *Backend) Remove(_ context.Context, productID string) (cart.Cart, bool, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.calls = append(b.calls, Call{Method: "remove", ProductID: productID})
	delete(b.lines, productID)
	if b.UnusableRemove {
		return cart.Cart{}, false, nil
	}
	return b.snapshot(), true, nil
}

func (b *Backend) Clear(context.Context) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.calls = append(b.calls, Call{Method: "clear"})
	if b.clearErr != nil {
		return b.clearErr
	}
	b.lines = make(map[string]cart.Item)
	return nil
}

// put must be called with the lock held.
func (b *Backend) put(productID string, quantity int) {
	p, ok := b.catalog[productID]
	if !ok {
		p = cart.Product{ID: productID, Name: productID}
	}
	if _, exists := b.order[productID]; !exists {
		b.seq++
		b.order[productID] = b.seq
	}
	b.lines[productID] = cart.Item{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
		Category:  p.Category,
		Quantity:  quantity,
	}
}

func (b *Backend) snapshot() cart.Cart {
	out := cart.Cart{Items: make([]cart.Item, 0, len(b.lines))}
	for _, it := range b.lines {
		out.Items = append(out.Items, it)
	}
	sort.Slice(out.Items, func(i, j int) bool {
		return b.order[out.Items[i].ProductID] < b.order[out.Items[j].ProductID]
	})
	return out
}
