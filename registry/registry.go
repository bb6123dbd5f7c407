// Package registry implements the ticket registry: the storage abstraction
// holding all live tickets, with single-node and cluster-replicated
// backends.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/apereo/cas-sub043/common"
	"github.com/apereo/cas-sub043/ticket"
)

const (
	MEMORY  = "memory"
	LEVELDB = "leveldb"
)

// SupportedBackends returns true if the backend is listed as true
func SupportedBackends(name string) bool {
	supportedBackends := map[string]bool{
		MEMORY:  true,
		LEVELDB: true,
	}
	return supportedBackends[strings.ToLower(name)]
}

// Storage is an interface of a ticket registry backend.
//
// Update applies optimistic concurrency: it fails with common.ErrConflict
// unless the submitted ticket's version matches the stored version, and
// bumps the version on success. Delete cascades through children links and
// is a no-op (count 0) for unknown ids.
type Storage interface {
	Add(ctx context.Context, t ticket.Ticket) error
	Get(ctx context.Context, id string, kind ticket.Kind) (ticket.Ticket, error)
	Update(ctx context.Context, t ticket.Ticket) (ticket.Ticket, error)
	Delete(ctx context.Context, id string) (int, error)
	GetAll(ctx context.Context) ([]ticket.Ticket, error)
}

// replicable is implemented by local backends that can apply peer writes
// directly, bypassing version checks already arbitrated by the replicator.
type replicable interface {
	applyPut(t ticket.Ticket)
	applyDelete(id string)
	getLocal(id string) (ticket.Ticket, bool)
	deleteCascade(id string) []string
}

func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s", common.ErrRegistryUnavailable, err)
	}
	return nil
}

func checkKind(t ticket.Ticket, kind ticket.Kind) error {
	if kind != ticket.KindAny && t.Kind != kind {
		return fmt.Errorf("%w: %s is a %s, not a %s", common.ErrTicketKindMismatch, t.ID, t.Kind, kind)
	}
	return nil
}
