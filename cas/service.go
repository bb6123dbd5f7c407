// Package cas implements the central authentication service: the operation
// surface that composes the authentication pipeline and the ticket registry
// into the single sign-on state machine.
package cas

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/apereo/cas-sub043/auth"
	"github.com/apereo/cas-sub043/common"
	"github.com/apereo/cas-sub043/registry"
	"github.com/apereo/cas-sub043/ticket"
)

// casRetries bounds the optimistic retry loops around version conflicts.
// Conflicts beyond that indicate a pathologically contended ticket and are
// reported as a transient registry failure.
const casRetries = 5

// maxProxyChain bounds the parent walk of delegated ticket chains.
const maxProxyChain = 32

// Service orchestrates ticket creation, granting, validation, delegation
// and destruction. It is safe for concurrent use; all ticket state lives in
// the registry.
type Service struct {
	registry  registry.Storage
	auth      *auth.Manager
	idgen     ticket.Generator
	tgtPolicy ticket.Policy
	stPolicy  ticket.Policy
	pgtPolicy ticket.Policy
}

func New(reg registry.Storage, mgr *auth.Manager, idgen ticket.Generator, tgtPolicy, stPolicy, pgtPolicy ticket.Policy) *Service {
	return &Service{
		registry:  reg,
		auth:      mgr,
		idgen:     idgen,
		tgtPolicy: tgtPolicy,
		stPolicy:  stPolicy,
		pgtPolicy: pgtPolicy,
	}
}

// CreateTicketGrantingTicket authenticates the credentials and mints a TGT.
func (s *Service) CreateTicketGrantingTicket(ctx context.Context, c auth.Credential) (string, error) {
	if c == nil {
		return "", fmt.Errorf("%w: credentials must not be nil", common.ErrInvalidArgument)
	}

	a, err := s.auth.Authenticate(ctx, c)
	if err != nil {
		return "", err
	}

	tgt := ticket.NewTicketGrantingTicket(s.idgen.Generate(ticket.KindTicketGrantingTicket), a, s.tgtPolicy)
	if err := s.registry.Add(ctx, tgt); err != nil {
		return "", s.registryErr(err)
	}

	log.Printf("Granted ticket granting ticket [%s] for [%s]", tgt.ID, a.Principal.ID)
	return tgt.ID, nil
}

// GrantServiceTicket mints a service ticket under the given TGT (or a proxy
// ticket under a PGT) for the target service. Optional credentials trigger
// the re-authentication path and must resolve to the TGT's principal.
func (s *Service) GrantServiceTicket(ctx context.Context, tgtID, service string, c auth.Credential) (string, error) {
	if tgtID == "" {
		return "", fmt.Errorf("%w: ticket granting ticket id must not be empty", common.ErrInvalidArgument)
	}
	if service == "" {
		return "", fmt.Errorf("%w: service must not be empty", common.ErrInvalidArgument)
	}

	tgt, err := s.registry.Get(ctx, tgtID, ticket.KindAny)
	if err != nil {
		return "", s.registryErr(err)
	}
	if !tgt.Kind.IsGranting() {
		return "", fmt.Errorf("%w: %s cannot grant service tickets", common.ErrTicketKindMismatch, tgt.Kind)
	}

	expired, err := s.grantingChainExpired(ctx, tgt)
	if err != nil {
		return "", err
	}
	if expired {
		if _, err := s.registry.Delete(ctx, tgtID); err != nil {
			log.Printf("Error deleting expired ticket [%s]: %s", tgtID, err)
		}
		return "", fmt.Errorf("%w: %s", common.ErrTicketExpired, tgtID)
	}

	if c != nil {
		a, err := s.auth.Authenticate(ctx, c)
		if err != nil {
			return "", err
		}
		if !a.Principal.Equal(tgt.Authentication.Principal) {
			return "", fmt.Errorf("%w: credentials resolve to [%s], ticket belongs to [%s]",
				common.ErrMismatchedPrincipal, a.Principal.ID, tgt.Authentication.Principal.ID)
		}
	}

	childKind := ticket.KindServiceTicket
	if tgt.Kind == ticket.KindProxyGrantingTicket {
		childKind = ticket.KindProxyTicket
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		working := tgt.Copy()
		st := working.Grant(s.idgen.Generate(childKind), service, s.stPolicy, c != nil)

		if _, err := s.registry.Update(ctx, working); err != nil {
			if errors.Is(err, common.ErrConflict) {
				tgt, err = s.registry.Get(ctx, tgtID, ticket.KindAny)
				if err != nil {
					return "", s.registryErr(err)
				}
				continue
			}
			return "", s.registryErr(err)
		}
		if err := s.registry.Add(ctx, st); err != nil {
			return "", s.registryErr(err)
		}

		log.Printf("Granted %s [%s] for service [%s] for user [%s]",
			childKind, st.ID, service, tgt.Authentication.Principal.ID)
		return st.ID, nil
	}

	return "", fmt.Errorf("%w: too many conflicting updates of %s", common.ErrRegistryUnavailable, tgtID)
}

// ValidateServiceTicket checks a service ticket against the presenting
// service and consumes it. Exactly one of any set of concurrent validations
// of a single-use ticket succeeds.
func (s *Service) ValidateServiceTicket(ctx context.Context, stID, service string) (auth.Authentication, error) {
	if stID == "" {
		return auth.Authentication{}, fmt.Errorf("%w: service ticket id must not be empty", common.ErrInvalidArgument)
	}
	if service == "" {
		return auth.Authentication{}, fmt.Errorf("%w: service must not be empty", common.ErrInvalidArgument)
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		st, err := s.registry.Get(ctx, stID, ticket.KindAny)
		if err != nil {
			return auth.Authentication{}, s.registryErr(err)
		}
		if !st.Kind.IsService() {
			return auth.Authentication{}, fmt.Errorf("%w: %s is not a service ticket", common.ErrTicketKindMismatch, st.Kind)
		}

		// Service identity is checked before expiration state on purpose:
		// a mismatch is a mismatch no matter how stale the ticket is.
		if st.Service != service {
			return auth.Authentication{}, fmt.Errorf("%w: ticket granted for [%s], presented by [%s]",
				common.ErrInvalidService, st.Service, service)
		}
		if st.Consumed {
			return auth.Authentication{}, fmt.Errorf("%w: %s", common.ErrTicketConsumed, stID)
		}
		now := time.Now()
		if st.Expiry.IsExpired(&st, now) {
			if _, err := s.registry.Delete(ctx, stID); err != nil {
				log.Printf("Error deleting expired ticket [%s]: %s", stID, err)
			}
			return auth.Authentication{}, fmt.Errorf("%w: %s", common.ErrTicketExpired, stID)
		}

		// Orphan detection: a ticket whose granting chain is gone or
		// expired must not validate, even if its own policy still holds.
		if err := s.checkGrantingChain(ctx, st); err != nil {
			return auth.Authentication{}, err
		}

		st.Touch(now)
		if st.Expiry.ShouldConsume() {
			// Tombstone instead of deleting so that replays fail as
			// already-consumed rather than not-found; the sweep collects
			// the tombstone later.
			st.Consumed = true
		}
		if _, err := s.registry.Update(ctx, st); err != nil {
			if errors.Is(err, common.ErrConflict) {
				continue
			}
			return auth.Authentication{}, s.registryErr(err)
		}

		log.Printf("Validated %s [%s] for service [%s]", st.Kind, stID, service)
		return st.Authentication, nil
	}

	return auth.Authentication{}, fmt.Errorf("%w: too many conflicting updates of %s", common.ErrRegistryUnavailable, stID)
}

// DelegateTicketGrantingTicket mints a proxy granting ticket for the
// application that presented the service ticket, so it can request proxy
// tickets on the original principal's behalf. The service ticket is checked
// but not consumed.
func (s *Service) DelegateTicketGrantingTicket(ctx context.Context, stID string, proxyCred auth.Credential) (string, error) {
	if stID == "" {
		return "", fmt.Errorf("%w: service ticket id must not be empty", common.ErrInvalidArgument)
	}
	if proxyCred == nil {
		return "", fmt.Errorf("%w: proxy credentials must not be nil", common.ErrInvalidArgument)
	}

	proxyAuth, err := s.auth.Authenticate(ctx, proxyCred)
	if err != nil {
		return "", err
	}

	st, err := s.registry.Get(ctx, stID, ticket.KindAny)
	if err != nil {
		return "", s.registryErr(err)
	}
	if !st.Kind.IsService() {
		return "", fmt.Errorf("%w: %s is not a service ticket", common.ErrTicketKindMismatch, st.Kind)
	}
	if st.Consumed {
		return "", fmt.Errorf("%w: %s", common.ErrTicketConsumed, stID)
	}
	if st.Expiry.IsExpired(&st, time.Now()) {
		if _, err := s.registry.Delete(ctx, stID); err != nil {
			log.Printf("Error deleting expired ticket [%s]: %s", stID, err)
		}
		return "", fmt.Errorf("%w: %s", common.ErrTicketExpired, stID)
	}

	tgt, err := s.registry.Get(ctx, st.GrantingTicket, ticket.KindAny)
	if err != nil {
		if errors.Is(err, common.ErrTicketNotFound) {
			// The granting chain is gone; the service ticket is an orphan.
			if _, err := s.registry.Delete(ctx, stID); err != nil {
				log.Printf("Error deleting orphaned ticket [%s]: %s", stID, err)
			}
			return "", fmt.Errorf("%w: granting ticket of %s is gone", common.ErrTicketExpired, stID)
		}
		return "", s.registryErr(err)
	}
	expired, err := s.grantingChainExpired(ctx, tgt)
	if err != nil {
		return "", err
	}
	if expired {
		if _, err := s.registry.Delete(ctx, tgt.ID); err != nil {
			log.Printf("Error deleting expired ticket [%s]: %s", tgt.ID, err)
		}
		return "", fmt.Errorf("%w: %s", common.ErrTicketExpired, tgt.ID)
	}

	pgt := ticket.NewProxyGrantingTicket(s.idgen.Generate(ticket.KindProxyGrantingTicket),
		tgt.ID, st.Authentication, proxyAuth.Principal.ID, s.pgtPolicy)

	for attempt := 0; attempt < casRetries; attempt++ {
		working := tgt.Copy()
		working.Link(pgt.ID)
		if _, err := s.registry.Update(ctx, working); err != nil {
			if errors.Is(err, common.ErrConflict) {
				tgt, err = s.registry.Get(ctx, tgt.ID, ticket.KindAny)
				if err != nil {
					return "", s.registryErr(err)
				}
				continue
			}
			return "", s.registryErr(err)
		}
		if err := s.registry.Add(ctx, pgt); err != nil {
			return "", s.registryErr(err)
		}

		log.Printf("Granted proxy granting ticket [%s] to [%s] on behalf of [%s]",
			pgt.ID, proxyAuth.Principal.ID, st.Authentication.Principal.ID)
		return pgt.ID, nil
	}

	return "", fmt.Errorf("%w: too many conflicting updates of %s", common.ErrRegistryUnavailable, tgt.ID)
}

// DestroyTicketGrantingTicket removes the TGT and every descendant ticket,
// returning the number of tickets removed. Destroying an unknown id is not
// an error; logout is idempotent.
func (s *Service) DestroyTicketGrantingTicket(ctx context.Context, tgtID string) (int, error) {
	if tgtID == "" {
		return 0, fmt.Errorf("%w: ticket granting ticket id must not be empty", common.ErrInvalidArgument)
	}

	n, err := s.registry.Delete(ctx, tgtID)
	if err != nil {
		return 0, s.registryErr(err)
	}
	if n > 0 {
		log.Printf("Destroyed ticket granting ticket [%s] and %d descendants", tgtID, n-1)
	}
	return n, nil
}

// Tickets enumerates the registry, for diagnostics.
func (s *Service) Tickets(ctx context.Context) ([]ticket.Ticket, error) {
	all, err := s.registry.GetAll(ctx)
	if err != nil {
		return nil, s.registryErr(err)
	}
	return all, nil
}

// grantingChainExpired walks the parent chain of a granting ticket. A TGT is
// expired when its own policy says so or when any ancestor is expired or
// missing.
func (s *Service) grantingChainExpired(ctx context.Context, t ticket.Ticket) (bool, error) {
	now := time.Now()
	cur := t
	for depth := 0; depth < maxProxyChain; depth++ {
		if cur.Expiry.IsExpired(&cur, now) {
			return true, nil
		}
		if cur.Parent == "" {
			return false, nil
		}
		parent, err := s.registry.Get(ctx, cur.Parent, ticket.KindAny)
		if err != nil {
			if errors.Is(err, common.ErrTicketNotFound) {
				return true, nil
			}
			return false, s.registryErr(err)
		}
		cur = parent
	}
	return true, nil
}

// checkGrantingChain fails validation of a service ticket whose granting
// ticket is gone or expired, removing what it can along the way.
func (s *Service) checkGrantingChain(ctx context.Context, st ticket.Ticket) error {
	if st.GrantingTicket == "" {
		return nil
	}
	tgt, err := s.registry.Get(ctx, st.GrantingTicket, ticket.KindAny)
	if err != nil {
		if errors.Is(err, common.ErrTicketNotFound) {
			if _, err := s.registry.Delete(ctx, st.ID); err != nil {
				log.Printf("Error deleting orphaned ticket [%s]: %s", st.ID, err)
			}
			return fmt.Errorf("%w: granting ticket of %s is gone", common.ErrTicketExpired, st.ID)
		}
		return s.registryErr(err)
	}
	expired, err := s.grantingChainExpired(ctx, tgt)
	if err != nil {
		return err
	}
	if expired {
		if _, err := s.registry.Delete(ctx, tgt.ID); err != nil {
			log.Printf("Error deleting expired ticket [%s]: %s", tgt.ID, err)
		}
		return fmt.Errorf("%w: granting ticket %s is expired", common.ErrTicketExpired, tgt.ID)
	}
	return nil
}

// registryErr maps deadline expiry to the transient failure kind so that a
// timed-out lookup is never reported as a missing ticket.
func (s *Service) registryErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s", common.ErrRegistryUnavailable, err)
	}
	return err
}
