package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/apereo/cas-sub043/common"
)

type tokenCredential struct{ Token string }

func (c tokenCredential) ID() string { return c.Token }

func testManager() *Manager {
	return NewManager(
		[]Handler{NewAcceptUsersHandler(map[string]string{"alice": "secret", "bob": "hunter2"})},
		[]Resolver{&UsernamePasswordResolver{
			Attributes: map[string]map[string][]interface{}{
				"alice": {"mail": {"alice@example.org"}},
			},
		}},
		[]Populator{RememberMePopulator{}, MethodPopulator{}},
	)
}

func TestAuthenticate(t *testing.T) {
	m := testManager()

	a, err := m.Authenticate(context.Background(), UsernamePassword{Username: "alice", Password: "secret"})
	if err != nil {
		t.Fatalf("Received unexpected error: %s", err)
	}
	if a.Principal.ID != "alice" {
		t.Fatalf("Resolved principal %s, expected alice", a.Principal.ID)
	}
	if a.AuthenticatedAt.IsZero() {
		t.Fatal("Authentication timestamp not set")
	}
	if a.Principal.Attributes["mail"][0] != "alice@example.org" {
		t.Fatalf("Principal attributes not resolved: %v", a.Principal.Attributes)
	}
	if a.Attributes[AttrAuthenticationMethod] != "password" {
		t.Fatalf("Authentication method attribute not populated: %v", a.Attributes)
	}
	if _, set := a.Attributes[AttrRememberMe]; set {
		t.Fatal("Remember-me attribute set without being requested")
	}
}

func TestAuthenticateRememberMe(t *testing.T) {
	m := testManager()

	a, err := m.Authenticate(context.Background(), UsernamePassword{Username: "alice", Password: "secret", RememberMe: true})
	if err != nil {
		t.Fatalf("Received unexpected error: %s", err)
	}
	if a.Attributes[AttrRememberMe] != true {
		t.Fatalf("Remember-me attribute not populated: %v", a.Attributes)
	}
}

func TestAuthenticateBadPassword(t *testing.T) {
	m := testManager()

	_, err := m.Authenticate(context.Background(), UsernamePassword{Username: "alice", Password: "wrong"})
	if !errors.Is(err, common.ErrBadCredentials) {
		t.Fatalf("Expected bad credentials error, got: %v", err)
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	m := testManager()

	_, err := m.Authenticate(context.Background(), UsernamePassword{Username: "mallory", Password: "secret"})
	if !errors.Is(err, common.ErrBadCredentials) {
		t.Fatalf("Expected bad credentials error, got: %v", err)
	}
}

func TestAuthenticateUnsupportedCredentials(t *testing.T) {
	m := testManager()

	_, err := m.Authenticate(context.Background(), tokenCredential{Token: "opaque"})
	if !errors.Is(err, common.ErrUnsupportedCredentials) {
		t.Fatalf("Expected unsupported credentials error, got: %v", err)
	}
}

func TestAuthenticateNilCredentials(t *testing.T) {
	m := testManager()

	_, err := m.Authenticate(context.Background(), nil)
	if !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("Expected invalid argument error, got: %v", err)
	}
}

type countingHandler struct {
	calls  int
	accept bool
	err    error
}

func (h *countingHandler) Supports(c Credential) bool { return true }
func (h *countingHandler) Authenticate(ctx context.Context, c Credential) (bool, error) {
	h.calls++
	return h.accept, h.err
}

func TestHandlerChainShortCircuit(t *testing.T) {
	first := &countingHandler{accept: true}
	second := &countingHandler{accept: true}
	m := NewManager(
		[]Handler{first, second},
		[]Resolver{&UsernamePasswordResolver{}},
		nil,
	)

	_, err := m.Authenticate(context.Background(), UsernamePassword{Username: "alice", Password: "x"})
	if err != nil {
		t.Fatalf("Received unexpected error: %s", err)
	}
	if first.calls != 1 {
		t.Fatalf("First handler called %d times, expected 1", first.calls)
	}
	if second.calls != 0 {
		t.Fatal("Chain did not stop at the first accepting handler")
	}
}

func TestHandlerChainContinuesOnReject(t *testing.T) {
	first := &countingHandler{accept: false}
	second := &countingHandler{accept: true}
	m := NewManager(
		[]Handler{first, second},
		[]Resolver{&UsernamePasswordResolver{}},
		nil,
	)

	_, err := m.Authenticate(context.Background(), UsernamePassword{Username: "alice", Password: "x"})
	if err != nil {
		t.Fatalf("Received unexpected error: %s", err)
	}
	if second.calls != 1 {
		t.Fatal("Chain did not try the next handler after a rejection")
	}
}

func TestHandlerErrorAborts(t *testing.T) {
	boom := fmt.Errorf("directory unreachable")
	first := &countingHandler{err: boom}
	second := &countingHandler{accept: true}
	m := NewManager(
		[]Handler{first, second},
		[]Resolver{&UsernamePasswordResolver{}},
		nil,
	)

	_, err := m.Authenticate(context.Background(), UsernamePassword{Username: "alice", Password: "x"})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the handler error to propagate, got: %v", err)
	}
	if second.calls != 0 {
		t.Fatal("Chain continued past a failing handler")
	}
}

func TestBuilderFrozenAfterBuild(t *testing.T) {
	b := NewBuilder(NewPrincipal("alice", nil))
	b.SetAttribute("k", "v")
	b.Build()

	defer func() {
		if recover() == nil {
			t.Fatal("Expected a panic on builder reuse after Build")
		}
	}()
	b.SetAttribute("k2", "v2")
}
