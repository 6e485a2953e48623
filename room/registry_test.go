package room

import (
	"fmt"
	"sync"
	"testing"

	"github.com/matryer/is"
	"github.com/yixinin/camsight/proto"
)

type conn string

func (c conn) ID() string { return string(c) }

func TestGetOrCreateSingleInstance(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	var wg sync.WaitGroup
	var got = make([]*Room, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = r.GetOrCreate("lobby")
		}(i)
	}
	wg.Wait()

	for _, rm := range got {
		is.True(rm == got[0]) // every caller sees the same room
	}
	is.Equal(r.Len(), 1)
}

func TestBindLastWriterWins(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	r.Bind(conn("a"), "r", proto.Initiator)
	r.Bind(conn("b"), "r", proto.Initiator)
	r.Bind(conn("c"), "r", proto.Capture)
	r.Bind(conn("d"), "r", proto.Capture)

	rm, ok := r.Get("r")
	is.True(ok)
	is.Equal(rm.Initiator, conn("b"))
	is.Equal(rm.Capture, conn("d"))

	is.Equal(r.PeerOf(conn("d")), conn("b"))
	is.Equal(r.PeerOf(conn("b")), conn("d"))
}

func TestUnbindDisplacedKeepsReplacement(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	r.Bind(conn("old"), "r", proto.Initiator)
	r.Bind(conn("new"), "r", proto.Initiator)
	r.Bind(conn("p"), "r", proto.Capture)

	b, peer, ok := r.Unbind(conn("old"))
	is.True(ok)
	is.Equal(b, Binding{Room: "r", Role: proto.Initiator})
	is.Equal(peer, nil)

	rm, ok := r.Get("r")
	is.True(ok)
	is.Equal(rm.Initiator, conn("new"))
}

func TestUnbindReturnsPeer(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	r.Bind(conn("v"), "r", proto.Initiator)
	r.Bind(conn("p"), "r", proto.Capture)

	_, peer, ok := r.Unbind(conn("p"))
	is.True(ok)
	is.Equal(peer, conn("v"))
	is.Equal(r.PeerOf(conn("v")), nil)
	is.Equal(r.Len(), 1)

	_, peer, ok = r.Unbind(conn("v"))
	is.True(ok)
	is.Equal(peer, nil)
	is.Equal(r.Len(), 0)
}

func TestUnbindUnbound(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()
	_, _, ok := r.Unbind(conn("ghost"))
	is.True(!ok)
	is.Equal(r.PeerOf(conn("ghost")), nil)
}

func TestNoLeakAfterDisconnect(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()
	r.Bind(conn("resident"), "keep", proto.Initiator)
	before := r.Len()

	var conns []conn
	for i := 0; i < 50; i++ {
		c := conn(fmt.Sprintf("c%d", i))
		role := proto.Initiator
		if i%2 == 1 {
			role = proto.Capture
		}
		r.Bind(c, fmt.Sprintf("room-%d", i%7), role)
		conns = append(conns, c)
	}
	is.True(r.Len() > before)

	for _, c := range conns {
		r.Unbind(c)
	}
	is.Equal(r.Len(), before)
}

func TestRoleUniqueness(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			role := proto.Initiator
			if i%2 == 0 {
				role = proto.Capture
			}
			r.Bind(conn(fmt.Sprintf("c%d", i)), "shared", role)
		}(i)
	}
	wg.Wait()

	var holders int
	r.Rooms(func(rm Room) {
		is.Equal(rm.ID, "shared")
		if rm.Initiator != nil {
			holders++
		}
		if rm.Capture != nil {
			holders++
		}
	})
	is.Equal(holders, 2)
}
