// Package auth implements the authentication pipeline: a chain of handlers
// verifies credentials, resolvers map them to a principal, and metadata
// populators enrich the resulting authentication.
package auth

// Principal is the verified identity produced by authentication.
// It is a value; construct it with NewPrincipal and never mutate it.
type Principal struct {
	// ID is the unique identifier of the principal
	ID string `json:"id"`
	// Attributes are descriptive only and carry no identity semantics
	Attributes map[string][]interface{} `json:"attributes,omitempty"`
}

// NewPrincipal copies the given attributes into a new Principal.
func NewPrincipal(id string, attributes map[string][]interface{}) Principal {
	p := Principal{ID: id}
	if len(attributes) != 0 {
		p.Attributes = make(map[string][]interface{}, len(attributes))
		for k, v := range attributes {
			p.Attributes[k] = append([]interface{}(nil), v...)
		}
	}
	return p
}

// IsZero reports the absent principal.
func (p Principal) IsZero() bool {
	return p.ID == ""
}

// Equal compares principals by ID only; attributes are not identity-bearing.
func (p Principal) Equal(other Principal) bool {
	return p.ID == other.ID
}
