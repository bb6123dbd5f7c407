package registry

import (
	"testing"
	"time"
)

// newTestReplica builds a replica around an in-memory backend without a
// broker connection; only the merge logic is exercised.
func newTestReplica(nodeID string) *ReplicatedStorage {
	local := NewMemoryStorage()
	return &ReplicatedStorage{
		local:   local,
		rep:     local,
		nodeID:  nodeID,
		topic:   "cas/tickets",
		writers: make(map[string]writerInfo),
	}
}

func TestReplicaApplyPut(t *testing.T) {
	r := newTestReplica("node-a")

	tgt := dummyTGT("TGT-rep")
	tgt.Version = 1
	r.apply(event{Op: opPut, Node: "node-b", Time: time.Now().UTC(), Ticket: &tgt})

	got, ok := r.rep.getLocal(tgt.ID)
	if !ok {
		t.Fatal("Peer put not applied to the local store")
	}
	if got.Version != 1 {
		t.Fatalf("Applied ticket at version %d, expected 1", got.Version)
	}
}

func TestReplicaStalePutDiscarded(t *testing.T) {
	r := newTestReplica("node-a")

	tgt := dummyTGT("TGT-rep")
	tgt.Version = 3
	tgt.UsageCount = 3
	r.apply(event{Op: opPut, Node: "node-b", Time: time.Now().UTC(), Ticket: &tgt})

	stale := tgt.Copy()
	stale.Version = 2
	stale.UsageCount = 2
	r.apply(event{Op: opPut, Node: "node-c", Time: time.Now().UTC(), Ticket: &stale})

	got, _ := r.rep.getLocal(tgt.ID)
	if got.Version != 3 || got.UsageCount != 3 {
		t.Fatalf("Stale put overwrote a newer ticket: version %d, usage %d", got.Version, got.UsageCount)
	}
}

func TestReplicaEqualVersionTieBreak(t *testing.T) {
	r := newTestReplica("node-a")

	earlier := time.Now().UTC()
	later := earlier.Add(time.Second)

	tgt := dummyTGT("TGT-rep")
	tgt.Version = 2
	tgt.UsageCount = 1
	r.apply(event{Op: opPut, Node: "node-b", Time: later, Ticket: &tgt})

	// same version but earlier write time loses
	loser := tgt.Copy()
	loser.UsageCount = 9
	r.apply(event{Op: opPut, Node: "node-c", Time: earlier, Ticket: &loser})

	got, _ := r.rep.getLocal(tgt.ID)
	if got.UsageCount != 1 {
		t.Fatal("Earlier concurrent write overwrote a later one at equal version")
	}

	// same version and time: higher node id wins deterministically
	winner := tgt.Copy()
	winner.UsageCount = 5
	r.apply(event{Op: opPut, Node: "node-z", Time: later, Ticket: &winner})

	got, _ = r.rep.getLocal(tgt.ID)
	if got.UsageCount != 5 {
		t.Fatal("Node id tie break not applied at equal version and time")
	}
}

func TestReplicaApplyDelete(t *testing.T) {
	r := newTestReplica("node-a")

	ids, err := dummySession(r.local, "TGT-rep-del", 2)
	if err != nil {
		t.Fatalf("Error preparing session: %s", err)
	}

	r.apply(event{Op: opDelete, Node: "node-b", Time: time.Now().UTC(), IDs: ids})

	for _, id := range ids {
		if _, ok := r.rep.getLocal(id); ok {
			t.Fatalf("Ticket %s survived a replicated delete", id)
		}
	}
}
