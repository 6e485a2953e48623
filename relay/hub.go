// Package relay pairs an initiator and a capture connection per room and
// forwards their negotiation messages.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yixinin/camsight/proto"
	"github.com/yixinin/camsight/room"
	"github.com/yixinin/camsight/telemetry"
)

var ErrStopped = errors.New("relay stopped")

// Conn is one client connection as seen by the hub.
type Conn interface {
	room.Conn
	// Send queues a text frame without blocking. It reports false when the
	// frame was dropped.
	Send(data []byte) bool
	// Close is called once the hub has forgotten the connection. No Send
	// follows it.
	Close()
}

type inbound struct {
	conn Conn
	data []byte
}

// Hub owns the registry. All registry mutation happens on the Run
// goroutine, so messages are handled one at a time.
type Hub struct {
	registry *room.Registry
	sink     telemetry.Sink
	now      func() time.Time

	conns      map[string]Conn
	register   chan Conn
	unregister chan Conn
	inbound    chan inbound
	done       chan struct{}
}

func NewHub(registry *room.Registry, sink telemetry.Sink) *Hub {
	return &Hub{
		registry:   registry,
		sink:       sink,
		now:        time.Now,
		conns:      make(map[string]Conn),
		register:   make(chan Conn),
		unregister: make(chan Conn),
		inbound:    make(chan inbound, 256),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Registry() *room.Registry {
	return h.registry
}

func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, c := range h.conns {
				h.leave(ctx, c)
			}
			return nil
		case c := <-h.register:
			h.conns[c.ID()] = c
			logrus.WithField("conn", c.ID()).Debug("conn registered")
		case c := <-h.unregister:
			h.leave(ctx, c)
		case in := <-h.inbound:
			h.handle(ctx, in.conn, in.data)
		}
	}
}

func (h *Hub) Register(c Conn) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrStopped
	}
}

func (h *Hub) Unregister(c Conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Dispatch hands a received frame to the hub. Frames from one connection
// are handled in the order they were dispatched.
func (h *Hub) Dispatch(c Conn, data []byte) error {
	select {
	case h.inbound <- inbound{conn: c, data: data}:
		return nil
	case <-h.done:
		return ErrStopped
	}
}

func (h *Hub) handle(ctx context.Context, c Conn, data []byte) {
	if _, ok := h.conns[c.ID()]; !ok {
		return
	}
	log := logrus.WithField("conn", c.ID())
	msg, err := proto.Decode(data)
	if err != nil {
		log.Debugf("drop frame:%v", err)
		return
	}
	b, bound := h.registry.Binding(c)

	switch m := msg.(type) {
	case proto.Create:
		if bound {
			log.WithField("room", b.Room).Debug("drop create from bound conn")
			return
		}
		h.registry.Bind(c, m.Room, proto.Initiator)
		log.WithField("room", m.Room).Info("initiator created room")
		h.send(c, proto.Created{Room: m.Room})

	case proto.Join:
		if bound {
			log.WithField("room", b.Room).Debug("drop join from bound conn")
			return
		}
		h.registry.Bind(c, m.Room, proto.Capture)
		log.WithField("room", m.Room).Info("capture joined room")
		h.send(c, proto.Joined{Room: m.Room})
		if peer, ok := h.lookup(h.registry.PeerOf(c)); ok {
			h.send(peer, proto.PeerJoined{Room: m.Room})
		}

	case proto.Signal:
		if !bound {
			return
		}
		peer, ok := h.lookup(h.registry.PeerOf(c))
		if !ok {
			log.WithField("room", b.Room).Debugf("no peer for %s", m.Kind)
			return
		}
		h.forward(peer, m.Raw)

	case proto.Metrics:
		if !bound {
			return
		}
		if m.Room == "" {
			m.Room = b.Room
		}
		if m.Role == "" {
			m.Role = b.Role
		}
		if h.sink == nil {
			return
		}
		if err := h.sink.Append(ctx, telemetry.FromMetrics(m, h.now())); err != nil {
			log.Warnf("append telemetry:%v", err)
		}

	default:
		log.Debugf("drop %s", msg.Type())
	}
}

func (h *Hub) leave(ctx context.Context, c Conn) {
	if _, ok := h.conns[c.ID()]; !ok {
		return
	}
	delete(h.conns, c.ID())
	defer c.Close()

	b, peer, ok := h.registry.Unbind(c)
	if !ok {
		return
	}
	logrus.WithField("conn", c.ID()).WithField("room", b.Room).Infof("%s left room", b.Role)
	if p, ok := h.lookup(peer); ok {
		h.send(p, proto.PeerLeft{Room: b.Room, Role: b.Role})
	}
}

// lookup resolves a registry handle to a connection the hub still tracks.
func (h *Hub) lookup(rc room.Conn) (Conn, bool) {
	if rc == nil {
		return nil, false
	}
	c, ok := h.conns[rc.ID()]
	return c, ok
}

func (h *Hub) send(c Conn, m proto.Message) {
	data, err := proto.Encode(m)
	if err != nil {
		logrus.Errorf("encode %s:%v", m.Type(), err)
		return
	}
	h.forward(c, data)
}

func (h *Hub) forward(c Conn, data []byte) {
	if !c.Send(data) {
		logrus.WithField("conn", c.ID()).Warn("send buffer full, frame dropped")
	}
}
