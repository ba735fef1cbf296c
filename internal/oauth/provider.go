package oauth

import "context"

// Identity is the normalized result of an OAuth code exchange. Only these
// three fields are consumed; everything provider-specific stays inside the
// provider implementation.
type Identity struct {
	ID    string // provider-stable subject
	Email string
	Name  string
}

type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}
