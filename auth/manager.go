package auth

import (
	"context"
	"fmt"
	"log"

	"github.com/apereo/cas-sub043/common"
)

// Handler verifies that credentials are genuine. A false return rejects the
// credentials without aborting the chain; an error aborts it.
type Handler interface {
	// Supports reports whether the handler understands this credential type
	Supports(c Credential) bool
	// Authenticate verifies the credentials
	Authenticate(ctx context.Context, c Credential) (bool, error)
}

// Resolver maps verified credentials to a Principal. A zero Principal means
// the resolver understands the type but found no identity.
type Resolver interface {
	Supports(c Credential) bool
	Resolve(ctx context.Context, c Credential) (Principal, error)
}

// Populator enriches the in-progress authentication with metadata.
// Populators never fail the pipeline.
type Populator interface {
	Populate(ctx context.Context, b *Builder, c Credential)
}

// Manager runs the authentication pipeline over ordered chains of handlers,
// resolvers and populators. It is safe for concurrent use.
type Manager struct {
	handlers   []Handler
	resolvers  []Resolver
	populators []Populator
}

func NewManager(handlers []Handler, resolvers []Resolver, populators []Populator) *Manager {
	return &Manager{
		handlers:   handlers,
		resolvers:  resolvers,
		populators: populators,
	}
}

// Authenticate turns raw credentials into a verified Authentication.
// Failure kinds: common.ErrUnsupportedCredentials when no chain member
// understands the credential type, common.ErrBadCredentials when the type is
// understood but rejected. Handler and resolver errors abort immediately.
func (m *Manager) Authenticate(ctx context.Context, c Credential) (Authentication, error) {
	if c == nil {
		return Authentication{}, fmt.Errorf("%w: credentials must not be nil", common.ErrInvalidArgument)
	}

	supported := false
	accepted := false
	for _, h := range m.handlers {
		if !h.Supports(c) {
			continue
		}
		supported = true
		ok, err := h.Authenticate(ctx, c)
		if err != nil {
			return Authentication{}, fmt.Errorf("authentication handler %T: %w", h, err)
		}
		if ok {
			if common.DebugLogs {
				log.Printf("Handler %T authenticated credentials [%s]", h, c.ID())
			}
			accepted = true
			break
		}
	}
	if !supported {
		return Authentication{}, fmt.Errorf("%w: no handler for credential type %T", common.ErrUnsupportedCredentials, c)
	}
	if !accepted {
		return Authentication{}, fmt.Errorf("%w: credentials [%s] rejected", common.ErrBadCredentials, c.ID())
	}

	var principal Principal
	resolverSupported := false
	for _, r := range m.resolvers {
		if !r.Supports(c) {
			continue
		}
		resolverSupported = true
		p, err := r.Resolve(ctx, c)
		if err != nil {
			return Authentication{}, fmt.Errorf("principal resolver %T: %w", r, err)
		}
		if !p.IsZero() {
			principal = p
			break
		}
	}
	if !resolverSupported {
		return Authentication{}, fmt.Errorf("%w: no resolver for credential type %T", common.ErrUnsupportedCredentials, c)
	}
	if principal.IsZero() {
		return Authentication{}, fmt.Errorf("%w: no principal resolved for [%s]", common.ErrBadCredentials, c.ID())
	}

	b := NewBuilder(principal)
	for _, p := range m.populators {
		p.Populate(ctx, b, c)
	}

	return b.Build(), nil
}
