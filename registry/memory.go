package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/apereo/cas-sub043/common"
	"github.com/apereo/cas-sub043/ticket"
)

// In-memory storage
type MemoryStorage struct {
	data         map[string]*ticket.Ticket
	mutex        sync.RWMutex
	lastModified time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		data:         make(map[string]*ticket.Ticket),
		lastModified: time.Now(),
	}
}

func (ms *MemoryStorage) Add(ctx context.Context, t ticket.Ticket) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	if _, exists := ms.data[t.ID]; exists {
		return fmt.Errorf("%w: %s", common.ErrDuplicateID, t.ID)
	}

	stored := t.Copy()
	if stored.Version == 0 {
		stored.Version = 1
	}
	ms.data[stored.ID] = &stored

	ms.lastModified = time.Now()
	return nil
}

func (ms *MemoryStorage) Get(ctx context.Context, id string, kind ticket.Kind) (ticket.Ticket, error) {
	if err := checkCtx(ctx); err != nil {
		return ticket.Ticket{}, err
	}
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	t, ok := ms.data[id]
	if !ok {
		return ticket.Ticket{}, fmt.Errorf("%w: %s", common.ErrTicketNotFound, id)
	}
	if err := checkKind(*t, kind); err != nil {
		return ticket.Ticket{}, err
	}

	return t.Copy(), nil
}

func (ms *MemoryStorage) Update(ctx context.Context, t ticket.Ticket) (ticket.Ticket, error) {
	if err := checkCtx(ctx); err != nil {
		return ticket.Ticket{}, err
	}
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	stored, ok := ms.data[t.ID]
	if !ok {
		return ticket.Ticket{}, fmt.Errorf("%w: %s", common.ErrTicketNotFound, t.ID)
	}
	if stored.Version != t.Version {
		return ticket.Ticket{}, fmt.Errorf("%w: %s is at version %d, update submitted against %d",
			common.ErrConflict, t.ID, stored.Version, t.Version)
	}

	updated := t.Copy()
	updated.Version++
	ms.data[updated.ID] = &updated

	ms.lastModified = time.Now()
	return updated.Copy(), nil
}

func (ms *MemoryStorage) Delete(ctx context.Context, id string) (int, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	removed := ms.deleteCascadeLocked(id)
	if len(removed) > 0 {
		ms.lastModified = time.Now()
	}
	return len(removed), nil
}

func (ms *MemoryStorage) GetAll(ctx context.Context) ([]ticket.Ticket, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	all := make([]ticket.Ticket, 0, len(ms.data))
	for _, t := range ms.data {
		all = append(all, t.Copy())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	return all, nil
}

// deleteCascadeLocked removes the ticket and all descendants reachable over
// children links, returning the removed ids. Caller holds the write lock.
func (ms *MemoryStorage) deleteCascadeLocked(id string) []string {
	t, ok := ms.data[id]
	if !ok {
		return nil
	}
	removed := []string{id}
	children := append([]string(nil), t.Children...)
	delete(ms.data, id)
	for _, child := range children {
		removed = append(removed, ms.deleteCascadeLocked(child)...)
	}
	return removed
}

// replicable

func (ms *MemoryStorage) applyPut(t ticket.Ticket) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	stored := t.Copy()
	ms.data[stored.ID] = &stored
	ms.lastModified = time.Now()
}

func (ms *MemoryStorage) applyDelete(id string) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	delete(ms.data, id)
	ms.lastModified = time.Now()
}

func (ms *MemoryStorage) getLocal(id string) (ticket.Ticket, bool) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()
	t, ok := ms.data[id]
	if !ok {
		return ticket.Ticket{}, false
	}
	return t.Copy(), true
}

func (ms *MemoryStorage) deleteCascade(id string) []string {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	return ms.deleteCascadeLocked(id)
}
