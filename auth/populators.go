package auth

import (
	"context"
)

// AttrRememberMe marks an authentication that asked for a long-lived session.
const AttrRememberMe = "rememberMe"

// AttrAuthenticationMethod records which credential shape was used.
const AttrAuthenticationMethod = "authenticationMethod"

// RememberMePopulator copies the remember-me request from the credential
// onto the authentication.
type RememberMePopulator struct{}

func (RememberMePopulator) Populate(ctx context.Context, b *Builder, c Credential) {
	if up, ok := c.(UsernamePassword); ok && up.RememberMe {
		b.SetAttribute(AttrRememberMe, true)
	}
}

// MethodPopulator records the credential type on the authentication.
type MethodPopulator struct{}

func (MethodPopulator) Populate(ctx context.Context, b *Builder, c Credential) {
	switch c.(type) {
	case UsernamePassword:
		b.SetAttribute(AttrAuthenticationMethod, "password")
	}
}
