package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/apereo/cas-sub043/common"
	"github.com/apereo/cas-sub043/ticket"
)

// LevelDB storage
type LevelDBStorage struct {
	db *leveldb.DB
	// mutex serializes read-modify-write sequences (version checks, cascades)
	mutex sync.Mutex
	wg    sync.WaitGroup
}

func NewLevelDBStorage(dsn string, opts *opt.Options) (*LevelDBStorage, func() error, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, nil, err
	}

	// Open the database
	db, err := leveldb.OpenFile(u.Path, opts)
	if err != nil {
		return nil, nil, err
	}

	s := &LevelDBStorage{
		db: db,
	}
	return s, s.close, nil
}

func (s *LevelDBStorage) close() error {
	// Wait for pending iterations
	s.wg.Wait()
	return s.db.Close()
}

func (s *LevelDBStorage) Add(ctx context.Context, t ticket.Ticket) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, err := s.db.Get([]byte(t.ID), nil)
	if err == nil {
		return fmt.Errorf("%w: %s", common.ErrDuplicateID, t.ID)
	} else if err != leveldb.ErrNotFound {
		return fmt.Errorf("%w: %s", common.ErrRegistryUnavailable, err)
	}

	if t.Version == 0 {
		t.Version = 1
	}
	return s.put(t)
}

func (s *LevelDBStorage) Get(ctx context.Context, id string, kind ticket.Kind) (ticket.Ticket, error) {
	if err := checkCtx(ctx); err != nil {
		return ticket.Ticket{}, err
	}

	t, err := s.get(id)
	if err != nil {
		return ticket.Ticket{}, err
	}
	if err := checkKind(t, kind); err != nil {
		return ticket.Ticket{}, err
	}
	return t, nil
}

func (s *LevelDBStorage) Update(ctx context.Context, t ticket.Ticket) (ticket.Ticket, error) {
	if err := checkCtx(ctx); err != nil {
		return ticket.Ticket{}, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	stored, err := s.get(t.ID)
	if err != nil {
		return ticket.Ticket{}, err
	}
	if stored.Version != t.Version {
		return ticket.Ticket{}, fmt.Errorf("%w: %s is at version %d, update submitted against %d",
			common.ErrConflict, t.ID, stored.Version, t.Version)
	}

	updated := t.Copy()
	updated.Version++
	if err := s.put(updated); err != nil {
		return ticket.Ticket{}, err
	}
	return updated, nil
}

func (s *LevelDBStorage) Delete(ctx context.Context, id string) (int, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}
	return len(s.deleteCascade(id)), nil
}

func (s *LevelDBStorage) GetAll(ctx context.Context) ([]ticket.Ticket, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	var all []ticket.Ticket

	// Iterate over a latest snapshot of the database
	s.wg.Add(1)
	iter := s.db.NewIterator(nil, nil)
	for iter.Next() {
		var t ticket.Ticket
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			iter.Release()
			s.wg.Done()
			return nil, fmt.Errorf("error parsing registry data: %s", err)
		}
		all = append(all, t)
	}
	iter.Release()
	s.wg.Done()
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrRegistryUnavailable, err)
	}

	return all, nil
}

func (s *LevelDBStorage) get(id string) (ticket.Ticket, error) {
	b, err := s.db.Get([]byte(id), nil)
	if err == leveldb.ErrNotFound {
		return ticket.Ticket{}, fmt.Errorf("%w: %s", common.ErrTicketNotFound, id)
	} else if err != nil {
		return ticket.Ticket{}, fmt.Errorf("%w: %s", common.ErrRegistryUnavailable, err)
	}

	var t ticket.Ticket
	if err := json.Unmarshal(b, &t); err != nil {
		return ticket.Ticket{}, fmt.Errorf("error parsing registry data: %s", err)
	}
	return t, nil
}

func (s *LevelDBStorage) put(t ticket.Ticket) error {
	b, err := json.Marshal(&t)
	if err != nil {
		return err
	}
	if err := s.db.Put([]byte(t.ID), b, nil); err != nil {
		return fmt.Errorf("%w: %s", common.ErrRegistryUnavailable, err)
	}
	return nil
}

// replicable

func (s *LevelDBStorage) applyPut(t ticket.Ticket) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.put(t)
}

func (s *LevelDBStorage) applyDelete(id string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.db.Delete([]byte(id), nil)
}

func (s *LevelDBStorage) getLocal(id string) (ticket.Ticket, bool) {
	t, err := s.get(id)
	if err != nil {
		return ticket.Ticket{}, false
	}
	return t, true
}

func (s *LevelDBStorage) deleteCascade(id string) []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.deleteCascadeLocked(id)
}

func (s *LevelDBStorage) deleteCascadeLocked(id string) []string {
	t, err := s.get(id)
	if err != nil {
		return nil
	}
	removed := []string{id}
	if err := s.db.Delete([]byte(id), nil); err != nil {
		return nil
	}
	for _, child := range t.Children {
		removed = append(removed, s.deleteCascadeLocked(child)...)
	}
	return removed
}
