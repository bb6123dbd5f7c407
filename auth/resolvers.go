package auth

import (
	"context"
)

// UsernamePasswordResolver maps a username/password credential to a
// principal whose id is the username. Attribute lookup against external
// directories is out of scope; static attributes may be configured per user.
type UsernamePasswordResolver struct {
	// Attributes holds optional per-user principal attributes
	Attributes map[string]map[string][]interface{}
}

func (r *UsernamePasswordResolver) Supports(c Credential) bool {
	_, ok := c.(UsernamePassword)
	return ok
}

func (r *UsernamePasswordResolver) Resolve(ctx context.Context, c Credential) (Principal, error) {
	up := c.(UsernamePassword)
	if up.Username == "" {
		return Principal{}, nil
	}
	return NewPrincipal(up.Username, r.Attributes[up.Username]), nil
}
