package server

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type user struct {
	ID           string
	Email        string
	FullName     string
	Role         string // server form: CUSTOMER, ADMIN, STAFF
	PasswordHash []byte
	LastLogin    time.Time
}

type product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"reviewCount,omitempty"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
}

type category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

type orderLine struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	Items       []orderLine `json:"items"`
	TotalAmount float64     `json:"totalAmount"`
	Status      string      `json:"status"`
	OrderDate   time.Time   `json:"orderDate"`
}

// cartLine keeps the price the item was added at.
type cartLine struct {
	ProductID   string
	Quantity    int
	PriceAtTime float64
	AddedAt     int64
}

// state is the whole backend. One lock is enough for a test double.
type state struct {
	lock sync.Mutex

	users         map[string]*user // by email
	refreshTokens map[string]string
	products      map[string]*product
	categories    map[string]*category
	reviews       []review
	inventory     map[string]int
	carts         map[string]map[string]*cartLine // userID -> productID
	orders        []*order
	idempotent    map[string]*order // Idempotency-Key -> order
	seq           int64
}

func newState() *state {
	return &state{
		users:         make(map[string]*user),
		refreshTokens: make(map[string]string),
		products:      make(map[string]*product),
		categories:    make(map[string]*category),
		inventory:     make(map[string]int),
		carts:         make(map[string]map[string]*cartLine),
		idempotent:    make(map[string]*order),
	}
}

func (st *state) addUser(email, password, fullName, role string) (*user, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, exists := st.users[email]; exists {
		return nil, fmt.Errorf("user %s already exists", email)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	u := &user{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     fullName,
		Role:         strings.ToUpper(role),
		PasswordHash: hash,
	}
	st.users[email] = u
	return u, nil
}

func (st *state) authenticate(email, password string) (*user, bool) {
	u, ok := st.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return nil, false
	}
	return u, true
}

func (st *state) userByID(id string) *user {
	for _, u := range st.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (st *state) cart(userID string) map[string]*cartLine {
	c, ok := st.carts[userID]
	if !ok {
		c = make(map[string]*cartLine)
		st.carts[userID] = c
	}
	return c
}

func (st *state) nextSeq() int64 {
	st.seq++
	return st.seq
}

func (st *state) sortedProducts() []product {
	out := make([]product, 0, len(st.products))
	for _, p := range st.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
