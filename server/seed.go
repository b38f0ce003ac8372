package server

// SeedUser is an account created when the server starts.
type SeedUser struct {
	Email    string
	Password string
	FullName string
	Role     string
}

// DefaultUsers are the accounts of a fresh mock backend.
var DefaultUsers = []SeedUser{
	{Email: "jane@example.com", Password: "password123", FullName: "Jane Doe", Role: "CUSTOMER"},
	{Email: "admin@example.com", Password: "admin123", FullName: "Store Admin", Role: "ADMIN"},
	{Email: "staff@example.com", Password: "staff123", FullName: "Warehouse Staff", Role: "STAFF"},
}

var seedProducts = []product{
	{ID: "p-1001", Name: "Aurora Smartwatch", Price: 199, Rating: 4.6, ReviewCount: 128, Category: "Wearables",
		Description: "Track fitness, receive notifications, and personalize health insights with an all-day battery.",
		ImageURL:    "https://images.unsplash.com/photo-1523275335684-37898b6baf30?auto=format&fit=crop&w=800&q=80"},
	{ID: "p-1002", Name: "Nimbus Wireless Headphones", Price: 149, Rating: 4.4, ReviewCount: 92, Category: "Audio",
		Description: "Experience immersive sound with adaptive noise control and cloud-soft ear cushions.",
		ImageURL:    "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?auto=format&fit=crop&w=800&q=80"},
	{ID: "p-1003", Name: "Summit Hiking Backpack", Price: 89, Rating: 4.8, ReviewCount: 204, Category: "Outdoor",
		Description: "Water-resistant backpack with modular storage, hydration compatibility, and ergonomic straps.",
		ImageURL:    "https://images.unsplash.com/photo-1500530855697-b586d89ba3ee?auto=format&fit=crop&w=800&q=80"},
	{ID: "p-1004", Name: "Lumen Desk Lamp", Price: 59, Rating: 4.5, ReviewCount: 67, Category: "Home",
		Description: "Adjustable LED lamp with warm/cool tones and a sleek, minimalist profile.",
		ImageURL:    "https://images.unsplash.com/photo-1519710164239-da123dc03ef4?auto=format&fit=crop&w=800&q=80"},
	{ID: "p-1005", Name: "Vista Travel Mug", Price: 32, Rating: 4.2, ReviewCount: 48, Category: "Lifestyle",
		Description: "Double-wall insulated mug designed to keep drinks hot for 8 hours or cold for 12.",
		ImageURL:    "https://images.unsplash.com/photo-1523362628745-0c100150b504?auto=format&fit=crop&w=800&q=80"},
}

var seedInventory = map[string]int{
	"p-1001": 25,
	"p-1002": 3,
	"p-1003": 1,
	"p-1004": 0,
	"p-1005": 40,
}

// seed fills an empty state. Password hashing makes it the slowest part of
// New, so the bcrypt cost is kept at the minimum.
func (st *state) seed(accounts []SeedUser) error {
	st.lock.Lock()
	defer st.lock.Unlock()

	for _, a := range accounts {
		if _, err := st.addUser(a.Email, a.Password, a.FullName, a.Role); err != nil {
			return err
		}
	}
	for i := range seedProducts {
		p := seedProducts[i]
		st.products[p.ID] = &p
		if _, ok := st.categories[p.Category]; !ok {
			st.categories[p.Category] = &category{ID: p.Category, Name: p.Category}
		}
	}
	for id, qty := range seedInventory {
		st.inventory[id] = qty
	}
	return nil
}
