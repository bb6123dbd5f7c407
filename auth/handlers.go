package auth

import (
	"context"
)

// AcceptUsersHandler authenticates username/password credentials against a
// fixed in-memory user map. Meant for small deployments and tests; directory
// backed handlers are registered by the deployment instead.
type AcceptUsersHandler struct {
	Users map[string]string
}

func NewAcceptUsersHandler(users map[string]string) *AcceptUsersHandler {
	return &AcceptUsersHandler{Users: users}
}

func (h *AcceptUsersHandler) Supports(c Credential) bool {
	_, ok := c.(UsernamePassword)
	return ok
}

func (h *AcceptUsersHandler) Authenticate(ctx context.Context, c Credential) (bool, error) {
	up := c.(UsernamePassword)
	password, ok := h.Users[up.Username]
	if !ok {
		return false, nil
	}
	return password == up.Password, nil
}
