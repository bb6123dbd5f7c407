package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/apereo/cas-sub043/common"
	"github.com/apereo/cas-sub043/ticket"
)

const (
	opPut    = "put"
	opDelete = "delete"

	publishTimeout = 5 * time.Second
)

// event is the replication wire format published for every registry write.
type event struct {
	Op   string    `json:"op"`
	Node string    `json:"node"`
	Time time.Time `json:"time"`
	// Ticket is set on put events
	Ticket *ticket.Ticket `json:"ticket,omitempty"`
	// IDs lists the removed tickets on delete events
	IDs []string `json:"ids,omitempty"`
}

// writerInfo remembers who produced the last applied write of a ticket,
// for last-write-wins arbitration between concurrent peers.
type writerInfo struct {
	version int64
	node    string
	time    time.Time
}

// ReplicatedStorage decorates a local backend with MQTT-based replication.
// Writes apply locally first (read-your-writes) and are then published to
// the cluster topic; peer events are merged last-write-wins on the ticket
// version, with write time and node id as tie breakers.
type ReplicatedStorage struct {
	local  Storage
	rep    replicable
	client paho.Client
	nodeID string
	topic  string
	qos    byte

	mutex   sync.Mutex
	writers map[string]writerInfo
}

func NewReplicatedStorage(local Storage, conf common.ReplicationConf, nodeID string) (*ReplicatedStorage, func() error, error) {
	rep, ok := local.(replicable)
	if !ok {
		return nil, nil, fmt.Errorf("backend %T does not support replication", local)
	}

	r := &ReplicatedStorage{
		local:   local,
		rep:     rep,
		nodeID:  nodeID,
		topic:   conf.TopicPrefix + "/tickets",
		qos:     conf.QoS,
		writers: make(map[string]writerInfo),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(conf.BrokerURL)
	opts.SetClientID(fmt.Sprintf("CAS-%s", nodeID))
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(r.onConnectHandler)
	opts.SetConnectionLostHandler(r.onConnectionLostHandler)
	if conf.Username != "" {
		opts.SetUsername(conf.Username)
	}
	if conf.Password != "" {
		opts.SetPassword(conf.Password)
	}

	r.client = paho.NewClient(opts)
	if token := r.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, nil, fmt.Errorf("MQTT: error connecting to broker %s: %s", conf.BrokerURL, token.Error())
	}

	return r, r.close, nil
}

func (r *ReplicatedStorage) close() error {
	if token := r.client.Unsubscribe(r.topic); token.Wait() && token.Error() != nil {
		log.Printf("MQTT: error unsubscribing: %s", token.Error())
	}
	r.client.Disconnect(250)
	return nil
}

func (r *ReplicatedStorage) onConnectHandler(client paho.Client) {
	log.Printf("MQTT: connected, subscribing to %s", r.topic)
	if token := client.Subscribe(r.topic, r.qos, r.messageHandler); token.Wait() && token.Error() != nil {
		log.Printf("MQTT: error subscribing: %s", token.Error())
	}
}

func (r *ReplicatedStorage) onConnectionLostHandler(client paho.Client, err error) {
	log.Printf("MQTT: connection lost: %s. Reconnecting.", err)
}

func (r *ReplicatedStorage) Add(ctx context.Context, t ticket.Ticket) error {
	if err := r.local.Add(ctx, t); err != nil {
		return err
	}
	stored, ok := r.rep.getLocal(t.ID)
	if !ok {
		return fmt.Errorf("%w: %s vanished after add", common.ErrRegistryUnavailable, t.ID)
	}
	r.recordWriter(stored.ID, stored.Version)
	r.publishPut(stored)
	return nil
}

func (r *ReplicatedStorage) Get(ctx context.Context, id string, kind ticket.Kind) (ticket.Ticket, error) {
	return r.local.Get(ctx, id, kind)
}

func (r *ReplicatedStorage) Update(ctx context.Context, t ticket.Ticket) (ticket.Ticket, error) {
	updated, err := r.local.Update(ctx, t)
	if err != nil {
		return ticket.Ticket{}, err
	}
	r.recordWriter(updated.ID, updated.Version)
	r.publishPut(updated)
	return updated, nil
}

func (r *ReplicatedStorage) Delete(ctx context.Context, id string) (int, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}
	removed := r.rep.deleteCascade(id)
	if len(removed) == 0 {
		return 0, nil
	}
	r.forgetWriters(removed)
	r.publish(event{Op: opDelete, Node: r.nodeID, Time: time.Now().UTC(), IDs: removed})
	return len(removed), nil
}

func (r *ReplicatedStorage) GetAll(ctx context.Context) ([]ticket.Ticket, error) {
	return r.local.GetAll(ctx)
}

func (r *ReplicatedStorage) publishPut(t ticket.Ticket) {
	r.publish(event{Op: opPut, Node: r.nodeID, Time: time.Now().UTC(), Ticket: &t})
}

func (r *ReplicatedStorage) publish(e event) {
	b, err := json.Marshal(&e)
	if err != nil {
		log.Printf("MQTT: error serializing event: %s", err)
		return
	}
	token := r.client.Publish(r.topic, r.qos, false, b)
	if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		// The auto-reconnecting client delivers queued messages after
		// recovery; peers stay stale-bounded until then.
		log.Printf("MQTT: error publishing %s event: %v", e.Op, token.Error())
	}
}

func (r *ReplicatedStorage) messageHandler(client paho.Client, msg paho.Message) {
	var e event
	if err := json.Unmarshal(msg.Payload(), &e); err != nil {
		log.Printf("MQTT: error parsing event: %s", err)
		return
	}
	if e.Node == r.nodeID {
		return
	}
	r.apply(e)
}

// apply merges a peer event into the local store.
func (r *ReplicatedStorage) apply(e event) {
	switch e.Op {
	case opPut:
		if e.Ticket == nil {
			return
		}
		if !r.wins(*e.Ticket, e) {
			if common.DebugLogs {
				log.Printf("Replication: discarding stale put of %s from node %s", e.Ticket.ID, e.Node)
			}
			return
		}
		r.rep.applyPut(*e.Ticket)
		r.setWriter(e.Ticket.ID, writerInfo{version: e.Ticket.Version, node: e.Node, time: e.Time})
	case opDelete:
		for _, id := range e.IDs {
			r.rep.applyDelete(id)
		}
		r.forgetWriters(e.IDs)
	default:
		log.Printf("MQTT: unknown event op: %s", e.Op)
	}
}

// wins decides last-write-wins: higher version first, then later write time,
// then node id as a deterministic tie breaker.
func (r *ReplicatedStorage) wins(t ticket.Ticket, e event) bool {
	existing, ok := r.rep.getLocal(t.ID)
	if !ok {
		return true
	}
	if t.Version != existing.Version {
		return t.Version > existing.Version
	}

	r.mutex.Lock()
	w, known := r.writers[t.ID]
	r.mutex.Unlock()
	if !known {
		return true
	}
	if !e.Time.Equal(w.time) {
		return e.Time.After(w.time)
	}
	return e.Node > w.node
}

func (r *ReplicatedStorage) recordWriter(id string, version int64) {
	r.setWriter(id, writerInfo{version: version, node: r.nodeID, time: time.Now().UTC()})
}

func (r *ReplicatedStorage) setWriter(id string, w writerInfo) {
	r.mutex.Lock()
	r.writers[id] = w
	r.mutex.Unlock()
}

func (r *ReplicatedStorage) forgetWriters(ids []string) {
	r.mutex.Lock()
	for _, id := range ids {
		delete(r.writers, id)
	}
	r.mutex.Unlock()
}
