// Package ticket defines the ticket hierarchy of the single sign-on engine:
// ticket-granting tickets, service tickets and their proxy variants, plus
// the expiration policies governing them.
package ticket

import (
	"time"

	"github.com/apereo/cas-sub043/auth"
)

// Kind tags the ticket family.
type Kind string

const (
	KindTicketGrantingTicket Kind = "tgt"
	KindServiceTicket        Kind = "st"
	KindProxyGrantingTicket  Kind = "pgt"
	KindProxyTicket          Kind = "pt"

	// KindAny matches every kind on registry lookups
	KindAny Kind = ""
)

// Prefix returns the id prefix identifying the kind.
func (k Kind) Prefix() string {
	switch k {
	case KindTicketGrantingTicket:
		return "TGT"
	case KindServiceTicket:
		return "ST"
	case KindProxyGrantingTicket:
		return "PGT"
	case KindProxyTicket:
		return "PT"
	}
	return "T"
}

// IsGranting reports whether tickets of this kind can grant service tickets.
func (k Kind) IsGranting() bool {
	return k == KindTicketGrantingTicket || k == KindProxyGrantingTicket
}

// IsService reports whether tickets of this kind are presented to a service
// for validation.
func (k Kind) IsService() bool {
	return k == KindServiceTicket || k == KindProxyTicket
}

// Ticket is one member of the tagged ticket family. The JSON form is the
// registry's persisted layout; every mutation must go through the registry.
type Ticket struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	UsageCount int       `json:"usageCount"`
	// Version is the optimistic-concurrency counter, managed by the registry
	Version int64  `json:"version"`
	Expiry  Expiry `json:"expiry"`
	// Authentication is fixed at issuance, sourced from the granting chain
	Authentication auth.Authentication `json:"authentication"`

	// Service and GrantingTicket are set on st/pt tickets
	Service        string `json:"service,omitempty"`
	GrantingTicket string `json:"grantingTicket,omitempty"`
	Consumed       bool   `json:"consumed,omitempty"`
	FromNewLogin   bool   `json:"fromNewLogin,omitempty"`

	// Parent and Children are set on tgt/pgt tickets
	Parent   string   `json:"parent,omitempty"`
	Children []string `json:"children,omitempty"`
	// ProxiedBy is the proxying principal on pgt tickets
	ProxiedBy string `json:"proxiedBy,omitempty"`
}

// NewTicketGrantingTicket mints a root TGT for a verified authentication.
func NewTicketGrantingTicket(id string, a auth.Authentication, p Policy) Ticket {
	now := time.Now()
	return Ticket{
		ID:             id,
		Kind:           KindTicketGrantingTicket,
		CreatedAt:      now,
		LastUsedAt:     now,
		Expiry:         Expiry{p},
		Authentication: a.Copy(),
	}
}

// NewProxyGrantingTicket mints a PGT chained to the granting TGT of a
// validated service ticket, carrying the proxying principal's identity.
func NewProxyGrantingTicket(id, parent string, a auth.Authentication, proxiedBy string, p Policy) Ticket {
	now := time.Now()
	return Ticket{
		ID:             id,
		Kind:           KindProxyGrantingTicket,
		CreatedAt:      now,
		LastUsedAt:     now,
		Expiry:         Expiry{p},
		Authentication: a.Copy(),
		Parent:         parent,
		ProxiedBy:      proxiedBy,
	}
}

// Grant mints a service ticket (or proxy ticket, when the receiver is a
// PGT) as a child of the receiver. The receiver is touched and the child is
// linked; the caller persists both.
func (t *Ticket) Grant(id, service string, p Policy, fromNewLogin bool) Ticket {
	now := time.Now()
	kind := KindServiceTicket
	if t.Kind == KindProxyGrantingTicket {
		kind = KindProxyTicket
	}
	child := Ticket{
		ID:             id,
		Kind:           kind,
		CreatedAt:      now,
		LastUsedAt:     now,
		Expiry:         Expiry{p},
		Authentication: t.Authentication.Copy(),
		Service:        service,
		GrantingTicket: t.ID,
		FromNewLogin:   fromNewLogin,
	}
	t.Children = append(t.Children, id)
	t.Touch(now)
	return child
}

// Link records a delegated child (PGT) on the receiver without touching it.
func (t *Ticket) Link(childID string) {
	t.Children = append(t.Children, childID)
}

// Touch records a successful use of the ticket.
func (t *Ticket) Touch(now time.Time) {
	t.UsageCount++
	t.LastUsedAt = now
}

// Equal compares tickets by id; all other fields are state, not identity.
func (t Ticket) Equal(other Ticket) bool {
	return t.ID == other.ID
}

// Copy returns a Ticket detached from the receiver's slices and maps.
func (t Ticket) Copy() Ticket {
	c := t
	if t.Children != nil {
		c.Children = append([]string(nil), t.Children...)
	}
	c.Authentication = t.Authentication.Copy()
	return c
}
