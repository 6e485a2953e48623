package room

import (
	"sync"

	"github.com/yixinin/camsight/proto"
)

// Conn is a connection handle as far as the registry is concerned.
type Conn interface {
	ID() string
}

type Room struct {
	ID        string
	Initiator Conn
	Capture   Conn
}

func (r *Room) handle(role proto.Role) Conn {
	switch role {
	case proto.Initiator:
		return r.Initiator
	case proto.Capture:
		return r.Capture
	}
	return nil
}

func (r *Room) set(role proto.Role, c Conn) {
	switch role {
	case proto.Initiator:
		r.Initiator = c
	case proto.Capture:
		r.Capture = c
	}
}

// Empty reports whether neither role is held.
func (r *Room) Empty() bool {
	return r.Initiator == nil && r.Capture == nil
}

// Binding is the room and role a connection was bound to.
type Binding struct {
	Room string
	Role proto.Role
}

// Registry maps room ids to rooms and connections to their binding.
// It is safe for concurrent use.
type Registry struct {
	sync.Mutex
	rooms    map[string]*Room
	bindings map[string]Binding
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		bindings: make(map[string]Binding),
	}
}

func (r *Registry) GetOrCreate(id string) *Room {
	r.Lock()
	defer r.Unlock()
	return r.getOrCreate(id)
}

func (r *Registry) getOrCreate(id string) *Room {
	rm, ok := r.rooms[id]
	if !ok {
		rm = &Room{ID: id}
		r.rooms[id] = rm
	}
	return rm
}

// Get returns a snapshot of the room, if it exists.
func (r *Registry) Get(id string) (Room, bool) {
	r.Lock()
	defer r.Unlock()
	rm, ok := r.rooms[id]
	if !ok {
		return Room{}, false
	}
	return *rm, true
}

// Bind puts c into room id under role. A previous holder of the role is
// replaced without error; it keeps its binding but no longer owns the handle.
func (r *Registry) Bind(c Conn, id string, role proto.Role) {
	r.Lock()
	defer r.Unlock()
	rm := r.getOrCreate(id)
	rm.set(role, c)
	r.bindings[c.ID()] = Binding{Room: id, Role: role}
}

// Binding returns where c is bound.
func (r *Registry) Binding(c Conn) (Binding, bool) {
	r.Lock()
	defer r.Unlock()
	b, ok := r.bindings[c.ID()]
	return b, ok
}

// Unbind releases c. The role handle is cleared only while c still holds it.
// It returns the binding c had and, when c was still the holder, the peer
// left behind. Rooms that end up empty are removed.
func (r *Registry) Unbind(c Conn) (Binding, Conn, bool) {
	r.Lock()
	defer r.Unlock()
	b, ok := r.bindings[c.ID()]
	if !ok {
		return Binding{}, nil, false
	}
	delete(r.bindings, c.ID())

	rm, ok := r.rooms[b.Room]
	if !ok {
		return b, nil, true
	}
	var peer Conn
	if h := rm.handle(b.Role); h != nil && h.ID() == c.ID() {
		rm.set(b.Role, nil)
		peer = rm.handle(b.Role.Other())
	}
	if rm.Empty() {
		delete(r.rooms, b.Room)
	}
	return b, peer, true
}

// PeerOf returns the connection holding the opposite role in c's room.
func (r *Registry) PeerOf(c Conn) Conn {
	r.Lock()
	defer r.Unlock()
	b, ok := r.bindings[c.ID()]
	if !ok {
		return nil
	}
	rm, ok := r.rooms[b.Room]
	if !ok {
		return nil
	}
	peer := rm.handle(b.Role.Other())
	if peer != nil && peer.ID() == c.ID() {
		return nil
	}
	return peer
}

func (r *Registry) Len() int {
	r.Lock()
	defer r.Unlock()
	return len(r.rooms)
}

// Rooms calls f with a snapshot of every room.
func (r *Registry) Rooms(f func(rm Room)) {
	r.Lock()
	var rooms = make([]Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, *rm)
	}
	r.Unlock()

	for _, rm := range rooms {
		f(rm)
	}
}
