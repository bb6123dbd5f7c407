package auth

// Credential is presented by a client to prove an identity. Concrete shapes
// (X.509, one-time tokens, etc.) are supplied by the surrounding protocol
// layers; the pipeline only needs an identifier for logging and dispatch.
type Credential interface {
	ID() string
}

// UsernamePassword is the canonical credential shape for form login.
type UsernamePassword struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

func (c UsernamePassword) ID() string { return c.Username }
