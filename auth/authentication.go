package auth

import (
	"time"
)

// Authentication records who was verified and how. It is immutable once
// built; enrichment during the pipeline happens on a Builder, which is
// frozen by Build.
type Authentication struct {
	Principal       Principal              `json:"principal"`
	AuthenticatedAt time.Time              `json:"authenticatedAt"`
	Attributes      map[string]interface{} `json:"attributes,omitempty"`
}

// Copy returns an Authentication detached from the receiver's maps.
func (a Authentication) Copy() Authentication {
	c := a
	c.Principal = NewPrincipal(a.Principal.ID, a.Principal.Attributes)
	if len(a.Attributes) != 0 {
		c.Attributes = make(map[string]interface{}, len(a.Attributes))
		for k, v := range a.Attributes {
			c.Attributes[k] = v
		}
	}
	return c
}

// Builder assembles an Authentication during the pipeline run.
// It must not escape the pipeline: Build freezes it.
type Builder struct {
	principal  Principal
	attributes map[string]interface{}
	built      bool
}

func NewBuilder(p Principal) *Builder {
	return &Builder{
		principal:  p,
		attributes: make(map[string]interface{}),
	}
}

// SetAttribute records a cross-cutting fact about the authentication.
func (b *Builder) SetAttribute(key string, value interface{}) *Builder {
	if b.built {
		panic("auth: builder used after Build")
	}
	b.attributes[key] = value
	return b
}

// Attribute returns a previously set attribute, or nil.
func (b *Builder) Attribute(key string) interface{} {
	return b.attributes[key]
}

// Build freezes the builder and returns the immutable snapshot.
// The authentication timestamp is fixed at this moment.
func (b *Builder) Build() Authentication {
	b.built = true
	a := Authentication{
		Principal:       b.principal,
		AuthenticatedAt: time.Now(),
	}
	if len(b.attributes) != 0 {
		a.Attributes = make(map[string]interface{}, len(b.attributes))
		for k, v := range b.attributes {
			a.Attributes[k] = v
		}
	}
	return a
}
