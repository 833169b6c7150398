package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/app/sfu"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

// DefaultMediaCodecs is the fixed capability set every room router is created
// with: Opus stereo at 48kHz and VP8 at 90kHz with a starting bitrate hint.
var DefaultMediaCodecs = []core.RtpCodecCapability{
	{
		Kind:      core.MediaKindAudio,
		MimeType:  "audio/opus",
		ClockRate: 48000,
		Channels:  2,
	},
	{
		Kind:      core.MediaKindVideo,
		MimeType:  "video/VP8",
		ClockRate: 90000,
		Parameters: map[string]any{
			"x-google-start-bitrate": 1000,
		},
	},
}

type Room struct {
	Name    domain.RoomName
	Router  core.Router
	members map[domain.ConnID]core.SignalConnection
}

type MemberSnap struct {
	ConnID domain.ConnID
	Conn   core.SignalConnection
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"memberCount"`
}

// RoomRegistry maps a room name to its routing context and member set. The
// router is created lazily on first join and never recreated for the same
// name. Routers are not destroyed when a room empties; see DESIGN.md.
type RoomRegistry struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomName]*Room
	pool   *sfu.WorkerPool
	codecs []core.RtpCodecCapability
}

func NewRoomRegistry(pool *sfu.WorkerPool, codecs []core.RtpCodecCapability) *RoomRegistry {
	return &RoomRegistry{
		rooms:  make(map[domain.RoomName]*Room),
		pool:   pool,
		codecs: codecs,
	}
}

// Join adds the connection to the room, creating the routing context if the
// room is unseen. Joining twice with the same connection id is idempotent:
// membership is keyed by connection id, never appended twice.
func (r *RoomRegistry) Join(ctx context.Context, name domain.RoomName, cid domain.ConnID, conn core.SignalConnection) (core.Router, error) {
	room, err := r.getOrCreate(ctx, name)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	room.members[cid] = conn
	r.mu.Unlock()
	log.Info().Str("module", "app.rooms").Str("room", string(name)).Str("conn", string(cid)).Msg("joined room")
	return room.Router, nil
}

func (r *RoomRegistry) getOrCreate(ctx context.Context, name domain.RoomName) (*Room, error) {
	r.mu.RLock()
	room, ok := r.rooms[name]
	r.mu.RUnlock()
	if ok {
		return room, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok = r.rooms[name]; ok {
		return room, nil
	}
	worker, err := r.pool.Worker()
	if err != nil {
		return nil, err
	}
	router, err := worker.CreateRouter(ctx, r.codecs)
	if err != nil {
		return nil, fmt.Errorf("create router for %q: %w", name, err)
	}
	room = &Room{
		Name:    name,
		Router:  router,
		members: make(map[domain.ConnID]core.SignalConnection),
	}
	r.rooms[name] = room
	log.Info().Str("module", "app.rooms").Str("room", string(name)).Str("router", router.ID()).Msg("created routing context")
	return room, nil
}

// Router returns the routing context for an existing room.
func (r *RoomRegistry) Router(name domain.RoomName) (core.Router, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[name]
	if !ok {
		return nil, false
	}
	return room.Router, true
}

// Capabilities is read-only: what a newly joined peer needs to configure its
// local media stack.
func (r *RoomRegistry) Capabilities(name domain.RoomName) (core.RtpCapabilities, error) {
	router, ok := r.Router(name)
	if !ok {
		return core.RtpCapabilities{}, core.ErrNotFound
	}
	return router.Capabilities(), nil
}

// Leave removes the connection from membership. The routing context stays.
func (r *RoomRegistry) Leave(name domain.RoomName, cid domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[name]
	if !ok {
		return
	}
	delete(room.members, cid)
	log.Info().Str("module", "app.rooms").Str("room", string(name)).Str("conn", string(cid)).Msg("left room")
}

// Members snapshots the room's membership for fan-out.
func (r *RoomRegistry) Members(name domain.RoomName) []MemberSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[name]
	if !ok {
		return nil
	}
	out := make([]MemberSnap, 0, len(room.members))
	for cid, conn := range room.members {
		out = append(out, MemberSnap{ConnID: cid, Conn: conn})
	}
	return out
}

// Member returns one member's live connection handle.
func (r *RoomRegistry) Member(name domain.RoomName, cid domain.ConnID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[name]
	if !ok {
		return nil, false
	}
	conn, ok := room.members[cid]
	return conn, ok
}

func (r *RoomRegistry) MemberCount(name domain.RoomName) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[name]
	if !ok {
		return 0
	}
	return len(room.members)
}

func (r *RoomRegistry) List() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomInfo, 0, len(r.rooms))
	for name, room := range r.rooms {
		out = append(out, RoomInfo{Name: name, MemberCount: len(room.members)})
	}
	return out
}
