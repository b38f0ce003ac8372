package config

import (
	"strings"
	"time"
)

// Endpoints holds the backend paths relative to the API prefix. Backends differ
// between versions, so none of these are fixed in the client core.
type Endpoints struct {
	Login      string `yaml:"login"`
	Refresh    string `yaml:"refresh"`
	Logout     string `yaml:"logout"`
	Users      string `yaml:"users"`
	Cart       string `yaml:"cart"`
	CartItems  string `yaml:"cart_items"`
	Products   string `yaml:"products"`
	Categories string `yaml:"categories"`
	Reviews    string `yaml:"reviews"`
	Inventory  string `yaml:"inventory"`
	Orders     string `yaml:"orders"`
	GraphQL    string `yaml:"graphql"`
	OAuth2     string `yaml:"oauth2"`
}

type APIConfig interface {
	GetBaseURL() string
	GetAPIPrefix() string
	GetEndpoints() Endpoints
	GetHTTPTimeout() time.Duration
}

type API struct{}

var _ APIConfig = API{}

// DefaultEndpoints matches the current backend version.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:      "/auth/login",
		Refresh:    "/auth/refresh",
		Logout:     "/auth/logout",
		Users:      "/users",
		Cart:       "/cart",
		CartItems:  "/cart/items",
		Products:   "/products",
		Categories: "/categories",
		Reviews:    "/reviews",
		Inventory:  "/inventory",
		Orders:     "/orders",
		GraphQL:    "/graphql",
		OAuth2:     "/oauth2/authorization",
	}
}

func (API) GetBaseURL() string {
	return strings.TrimRight(GetEnv("API_BASE_URL", "http://localhost:8080"), "/")
}

func (API) GetAPIPrefix() string {
	return GetEnv("API_PREFIX", "/api")
}

func (API) GetEndpoints() Endpoints {
	return DefaultEndpoints()
}

func (API) GetHTTPTimeout() time.Duration {
	return durationEnv("HTTP_TIMEOUT", 15*time.Second)
}

func durationEnv(envVar string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(GetEnv(envVar, ""))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
