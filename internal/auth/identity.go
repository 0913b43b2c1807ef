package auth

// Identity is the authenticated principal produced by a provider.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Assertion is an external identity vouched for by an OAuth provider after
// its own protocol exchange.
type Assertion struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}
