package registry

import (
	"context"
	"log"
	"time"

	"github.com/apereo/cas-sub043/common"
)

// Sweeper periodically enumerates the registry and removes expired and
// consumed tickets, bounding storage growth from abandoned sessions.
// Every node runs its own sweeper; deletes replicate like any other write.
type Sweeper struct {
	storage  Storage
	interval time.Duration
	done     chan struct{}
}

func NewSweeper(storage Storage, interval time.Duration) *Sweeper {
	return &Sweeper{
		storage:  storage,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.done:
				return
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	close(s.done)
}

// Sweep runs a single pass over the registry.
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	all, err := s.storage.GetAll(ctx)
	if err != nil {
		log.Printf("Sweeper: error enumerating tickets: %s", err)
		return
	}

	now := time.Now()
	removed := 0
	for i := range all {
		t := all[i]
		if !t.Consumed && !t.Expiry.IsExpired(&t, now) {
			continue
		}
		n, err := s.storage.Delete(ctx, t.ID)
		if err != nil {
			log.Printf("Sweeper: error deleting %s: %s", t.ID, err)
			continue
		}
		removed += n
	}
	if removed > 0 || common.DebugLogs {
		log.Printf("Sweeper: checked %d tickets, removed %d", len(all), removed)
	}
}
