package app

import (
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

// ResourceState is the lifecycle of every tracked media resource. Transitions
// only ever move forward: Open -> Closing -> Closed. BeginClose is the single
// gate into Closing, so a cascade visits each resource exactly once no matter
// how many paths reach it (explicit close, owner disconnect, producer close).
type ResourceState int

const (
	ResourceOpen ResourceState = iota
	ResourceClosing
	ResourceClosed
)

// Peer is the per-connection state while joined to a room. The id slices keep
// creation order; the authoritative records live in the PeerStore indices.
type Peer struct {
	ConnID       domain.ConnID
	Room         domain.RoomName
	DisplayName  string
	IsRoomAdmin  bool
	TransportIDs []string
	ProducerIDs  []string
	ConsumerIDs  []string
}

type TransportRec struct {
	ID           string
	Owner        domain.ConnID
	Room         domain.RoomName
	ConsumerSide bool
	State        ResourceState
	Handle       core.Transport
	Connected    bool
}

type ProducerRec struct {
	ID     string
	Owner  domain.ConnID
	Room   domain.RoomName
	Kind   core.MediaKind
	State  ResourceState
	Handle core.Producer
}

type ConsumerRec struct {
	ID          string
	Owner       domain.ConnID
	Room        domain.RoomName
	ProducerID  string
	TransportID string
	Kind        core.MediaKind
	State       ResourceState
	Handle      core.Consumer
}

// PeerStore holds every peer and flat transport/producer/consumer indices.
// The flat indices give O(1) lookup by id; the per-peer id lists and the
// producer->consumers index give O(1) lookup by owner and by dependency.
// Every mutation keeps all of them consistent under one lock.
type PeerStore struct {
	mu                  sync.RWMutex
	peers               map[domain.ConnID]*Peer
	transports          map[string]*TransportRec
	producers           map[string]*ProducerRec
	consumers           map[string]*ConsumerRec
	consumersByProducer map[string][]string
}

func NewPeerStore() *PeerStore {
	return &PeerStore{
		peers:               make(map[domain.ConnID]*Peer),
		transports:          make(map[string]*TransportRec),
		producers:           make(map[string]*ProducerRec),
		consumers:           make(map[string]*ConsumerRec),
		consumersByProducer: make(map[string][]string),
	}
}

// AddPeer registers a peer on room join. Rejoining the same room is a no-op;
// the existing peer state survives.
func (s *PeerStore) AddPeer(cid domain.ConnID, room domain.RoomName, displayName string, admin bool) *Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.peers[cid]; ok {
		p.Room = room
		return p
	}
	p := &Peer{ConnID: cid, Room: room, DisplayName: displayName, IsRoomAdmin: admin}
	s.peers[cid] = p
	return p
}

func (s *PeerStore) Peer(cid domain.ConnID) (*Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[cid]
	return p, ok
}

func (s *PeerStore) RoomOf(cid domain.ConnID) (domain.RoomName, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[cid]
	if !ok {
		return "", false
	}
	return p.Room, true
}

// RemovePeer drops the peer record. Callers must have closed and removed the
// peer's resources first; any leftovers are reported back for logging.
func (s *PeerStore) RemovePeer(cid domain.ConnID) (leftover int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[cid]
	if !ok {
		return 0
	}
	leftover = len(p.TransportIDs) + len(p.ProducerIDs) + len(p.ConsumerIDs)
	delete(s.peers, cid)
	return leftover
}

func (s *PeerStore) AddTransport(rec *TransportRec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transports[rec.ID] = rec
	if p, ok := s.peers[rec.Owner]; ok {
		p.TransportIDs = append(p.TransportIDs, rec.ID)
	}
}

func (s *PeerStore) Transport(id string) (*TransportRec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transports[id]
	return t, ok
}

// ProducerTransport returns the peer's single producer-side transport.
func (s *PeerStore) ProducerTransport(cid domain.ConnID) (*TransportRec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[cid]
	if !ok {
		return nil, false
	}
	for _, id := range p.TransportIDs {
		if t, ok := s.transports[id]; ok && !t.ConsumerSide && t.State == ResourceOpen {
			return t, true
		}
	}
	return nil, false
}

// ConsumerTransport returns the peer's consumer-side transport with the given
// id; ownership and role are both checked.
func (s *PeerStore) ConsumerTransport(cid domain.ConnID, id string) (*TransportRec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transports[id]
	if !ok || t.Owner != cid || !t.ConsumerSide {
		return nil, false
	}
	return t, true
}

func (s *PeerStore) SetTransportConnected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transports[id]
	if !ok || t.State != ResourceOpen {
		return false
	}
	t.Connected = true
	return true
}

func (s *PeerStore) AddProducer(rec *ProducerRec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.producers[rec.ID] = rec
	if p, ok := s.peers[rec.Owner]; ok {
		p.ProducerIDs = append(p.ProducerIDs, rec.ID)
	}
}

func (s *PeerStore) Producer(id string) (*ProducerRec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.producers[id]
	return p, ok
}

// ProducersInRoom returns open producers in the room, excluding excl's own.
func (s *PeerStore) ProducersInRoom(room domain.RoomName, excl domain.ConnID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, rec := range s.producers {
		if rec.Room == room && rec.Owner != excl && rec.State == ResourceOpen {
			out = append(out, id)
		}
	}
	return out
}

func (s *PeerStore) AddConsumer(rec *ConsumerRec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumers[rec.ID] = rec
	s.consumersByProducer[rec.ProducerID] = append(s.consumersByProducer[rec.ProducerID], rec.ID)
	if p, ok := s.peers[rec.Owner]; ok {
		p.ConsumerIDs = append(p.ConsumerIDs, rec.ID)
	}
}

func (s *PeerStore) Consumer(id string) (*ConsumerRec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.consumers[id]
	return c, ok
}

// OpenConsumerOf returns the consumer only when cid owns it and it is still
// Open. Owner and state are checked under the store lock, so callers never
// read a record a concurrent close is transitioning.
func (s *PeerStore) OpenConsumerOf(cid domain.ConnID, id string) (*ConsumerRec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.consumers[id]
	if !ok || c.Owner != cid || c.State != ResourceOpen {
		return nil, false
	}
	return c, true
}

// ProducerOwnedBy returns the producer only when cid owns it, checked under
// the store lock.
func (s *PeerStore) ProducerOwnedBy(cid domain.ConnID, id string) (*ProducerRec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.producers[id]
	if !ok || p.Owner != cid {
		return nil, false
	}
	return p, true
}

// ConsumersOf returns the consumers currently bound to a producer.
func (s *PeerStore) ConsumersOf(producerID string) []*ConsumerRec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.consumersByProducer[producerID]
	out := make([]*ConsumerRec, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.consumers[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// TransportsOf / ProducersOf / ConsumersOf-by-owner snapshots, creation order.

func (s *PeerStore) TransportsOf(cid domain.ConnID) []*TransportRec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[cid]
	if !ok {
		return nil
	}
	out := make([]*TransportRec, 0, len(p.TransportIDs))
	for _, id := range p.TransportIDs {
		if t, ok := s.transports[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (s *PeerStore) ProducersOf(cid domain.ConnID) []*ProducerRec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[cid]
	if !ok {
		return nil
	}
	out := make([]*ProducerRec, 0, len(p.ProducerIDs))
	for _, id := range p.ProducerIDs {
		if rec, ok := s.producers[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

func (s *PeerStore) OwnedConsumers(cid domain.ConnID) []*ConsumerRec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[cid]
	if !ok {
		return nil
	}
	out := make([]*ConsumerRec, 0, len(p.ConsumerIDs))
	for _, id := range p.ConsumerIDs {
		if rec, ok := s.consumers[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// BeginClose transitions a resource Open -> Closing. It returns false when the
// resource is unknown or already past Open, which is what makes every close
// cascade idempotent.
func (s *PeerStore) BeginCloseTransport(id string) (*TransportRec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transports[id]
	if !ok || t.State != ResourceOpen {
		return nil, false
	}
	t.State = ResourceClosing
	return t, true
}

func (s *PeerStore) BeginCloseProducer(id string) (*ProducerRec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.producers[id]
	if !ok || p.State != ResourceOpen {
		return nil, false
	}
	p.State = ResourceClosing
	return p, true
}

func (s *PeerStore) BeginCloseConsumer(id string) (*ConsumerRec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consumers[id]
	if !ok || c.State != ResourceOpen {
		return nil, false
	}
	c.State = ResourceClosing
	return c, true
}

// FinishClose marks the resource Closed and prunes it from every index.

func (s *PeerStore) FinishCloseTransport(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transports[id]
	if !ok {
		return
	}
	t.State = ResourceClosed
	delete(s.transports, id)
	if p, ok := s.peers[t.Owner]; ok {
		p.TransportIDs = removeID(p.TransportIDs, id)
	}
}

func (s *PeerStore) FinishCloseProducer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.producers[id]
	if !ok {
		return
	}
	p.State = ResourceClosed
	delete(s.producers, id)
	delete(s.consumersByProducer, id)
	if peer, ok := s.peers[p.Owner]; ok {
		peer.ProducerIDs = removeID(peer.ProducerIDs, id)
	}
}

func (s *PeerStore) FinishCloseConsumer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consumers[id]
	if !ok {
		return
	}
	c.State = ResourceClosed
	delete(s.consumers, id)
	s.consumersByProducer[c.ProducerID] = removeID(s.consumersByProducer[c.ProducerID], id)
	if len(s.consumersByProducer[c.ProducerID]) == 0 {
		delete(s.consumersByProducer, c.ProducerID)
	}
	if p, ok := s.peers[c.Owner]; ok {
		p.ConsumerIDs = removeID(p.ConsumerIDs, id)
	}
}

// Residue counts entries still referencing a connection id across all
// indices. Zero after disconnect is an invariant the tests lean on.
func (s *PeerStore) Residue(cid domain.ConnID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	if _, ok := s.peers[cid]; ok {
		n++
	}
	for _, t := range s.transports {
		if t.Owner == cid {
			n++
		}
	}
	for _, p := range s.producers {
		if p.Owner == cid {
			n++
		}
	}
	for _, c := range s.consumers {
		if c.Owner == cid {
			n++
		}
	}
	return n
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
