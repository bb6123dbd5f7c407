package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/apereo/cas-sub043/auth"
	"github.com/apereo/cas-sub043/common"
	"github.com/apereo/cas-sub043/ticket"
)

func dummyTGT(id string) ticket.Ticket {
	a := auth.Authentication{Principal: auth.NewPrincipal("tester", nil), AuthenticatedAt: time.Now()}
	return ticket.NewTicketGrantingTicket(id, a, ticket.NeverExpires{})
}

// dummySession adds a TGT with the given number of granted service tickets
// and returns all ids, TGT first.
func dummySession(storage Storage, tgtID string, children int) ([]string, error) {
	ctx := context.Background()
	tgt := dummyTGT(tgtID)
	ids := []string{tgtID}
	var sts []ticket.Ticket
	for i := 0; i < children; i++ {
		stID := fmt.Sprintf("%s-ST-%d", tgtID, i)
		sts = append(sts, tgt.Grant(stID, "https://app.example.org", ticket.NeverExpires{}, false))
		ids = append(ids, stID)
	}
	if err := storage.Add(ctx, tgt); err != nil {
		return nil, err
	}
	for _, st := range sts {
		if err := storage.Add(ctx, st); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// runStorageTests exercises the storage contract shared by all backends.
func runStorageTests(t *testing.T, storage Storage) {
	ctx := context.Background()

	t.Run("add and get", func(t *testing.T) {
		tgt := dummyTGT("TGT-add")
		if err := storage.Add(ctx, tgt); err != nil {
			t.Fatalf("Received unexpected error on add: %s", err)
		}

		got, err := storage.Get(ctx, tgt.ID, ticket.KindTicketGrantingTicket)
		if err != nil {
			t.Fatalf("Received unexpected error on get: %s", err)
		}
		if !got.Equal(tgt) {
			t.Fatalf("Retrieved ticket %s, expected %s", got.ID, tgt.ID)
		}
		if got.Version != 1 {
			t.Fatalf("Added ticket must start at version 1, got %d", got.Version)
		}
		if got.Authentication.Principal.ID != "tester" {
			t.Fatalf("Authentication not persisted: %v", got.Authentication)
		}

		if err := storage.Add(ctx, tgt); !errors.Is(err, common.ErrDuplicateID) {
			t.Fatalf("Expected duplicate id error, got: %v", err)
		}
	})

	t.Run("get kind mismatch", func(t *testing.T) {
		tgt := dummyTGT("TGT-kind")
		if err := storage.Add(ctx, tgt); err != nil {
			t.Fatalf("Received unexpected error on add: %s", err)
		}

		if _, err := storage.Get(ctx, tgt.ID, ticket.KindServiceTicket); !errors.Is(err, common.ErrTicketKindMismatch) {
			t.Fatalf("Expected kind mismatch error, got: %v", err)
		}
		if _, err := storage.Get(ctx, tgt.ID, ticket.KindAny); err != nil {
			t.Fatalf("KindAny lookup failed: %s", err)
		}
	})

	t.Run("get not found", func(t *testing.T) {
		if _, err := storage.Get(ctx, "TGT-missing", ticket.KindAny); !errors.Is(err, common.ErrTicketNotFound) {
			t.Fatalf("Expected not found error, got: %v", err)
		}
	})

	t.Run("update", func(t *testing.T) {
		tgt := dummyTGT("TGT-update")
		if err := storage.Add(ctx, tgt); err != nil {
			t.Fatalf("Received unexpected error on add: %s", err)
		}
		stored, err := storage.Get(ctx, tgt.ID, ticket.KindAny)
		if err != nil {
			t.Fatalf("Received unexpected error on get: %s", err)
		}

		stored.Touch(time.Now())
		updated, err := storage.Update(ctx, stored)
		if err != nil {
			t.Fatalf("Received unexpected error on update: %s", err)
		}
		if updated.Version != stored.Version+1 {
			t.Fatalf("Update must bump the version: got %d, had %d", updated.Version, stored.Version)
		}
		if updated.UsageCount != 1 {
			t.Fatalf("Updated state not persisted: usage count %d", updated.UsageCount)
		}

		// a second update against the stale version must conflict
		stored.Touch(time.Now())
		if _, err := storage.Update(ctx, stored); !errors.Is(err, common.ErrConflict) {
			t.Fatalf("Expected version conflict error, got: %v", err)
		}
	})

	t.Run("update not found", func(t *testing.T) {
		if _, err := storage.Update(ctx, dummyTGT("TGT-update-missing")); !errors.Is(err, common.ErrTicketNotFound) {
			t.Fatalf("Expected not found error, got: %v", err)
		}
	})

	t.Run("delete cascade", func(t *testing.T) {
		ids, err := dummySession(storage, "TGT-cascade", 3)
		if err != nil {
			t.Fatalf("Error preparing session: %s", err)
		}

		n, err := storage.Delete(ctx, ids[0])
		if err != nil {
			t.Fatalf("Received unexpected error on delete: %s", err)
		}
		if n != len(ids) {
			t.Fatalf("Cascade removed %d tickets, expected %d", n, len(ids))
		}
		for _, id := range ids {
			if _, err := storage.Get(ctx, id, ticket.KindAny); !errors.Is(err, common.ErrTicketNotFound) {
				t.Fatalf("Ticket %s survived the cascade: %v", id, err)
			}
		}

		// logout is idempotent
		n, err = storage.Delete(ctx, ids[0])
		if err != nil {
			t.Fatalf("Received unexpected error on repeated delete: %s", err)
		}
		if n != 0 {
			t.Fatalf("Repeated delete removed %d tickets, expected 0", n)
		}
	})

	t.Run("get all", func(t *testing.T) {
		before, err := storage.GetAll(ctx)
		if err != nil {
			t.Fatalf("Received unexpected error on get all: %s", err)
		}
		if _, err := dummySession(storage, "TGT-all", 2); err != nil {
			t.Fatalf("Error preparing session: %s", err)
		}
		after, err := storage.GetAll(ctx)
		if err != nil {
			t.Fatalf("Received unexpected error on get all: %s", err)
		}
		if len(after)-len(before) != 3 {
			t.Fatalf("Enumerated %d new tickets, expected 3", len(after)-len(before))
		}
	})

	t.Run("expired context", func(t *testing.T) {
		expired, cancel := context.WithCancel(ctx)
		cancel()

		if _, err := storage.Get(expired, "TGT-any", ticket.KindAny); !errors.Is(err, common.ErrRegistryUnavailable) {
			t.Fatalf("Expected registry unavailable error, got: %v", err)
		}
		if err := storage.Add(expired, dummyTGT("TGT-ctx")); !errors.Is(err, common.ErrRegistryUnavailable) {
			t.Fatalf("Expected registry unavailable error, got: %v", err)
		}
	})
}
