// Package signal is a websocket client for the relay.
package signal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
	"github.com/yixinin/camsight/proto"
	"github.com/yixinin/camsight/stderr"
)

var ErrClosed = errors.New("signaling connection closed")

const writeWait = 10 * time.Second

// Signalinger is what a peer needs from the signaling channel.
type Signalinger interface {
	SendSdp(ctx context.Context, sdp webrtc.SessionDescription) error
	SendCandidate(ctx context.Context, c webrtc.ICECandidateInit) error
	SendMetrics(ctx context.Context, m proto.Metrics) error
	Messages() <-chan proto.Message
}

type Client struct {
	conn *websocket.Conn
	room string
	role proto.Role

	wmu      sync.Mutex
	messages chan proto.Message
	done     chan struct{}
	once     sync.Once
}

// Dial connects to a relay websocket url, e.g. ws://host:8080/ws.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, stderr.Wrap(err)
	}
	c := &Client{
		conn:     conn,
		messages: make(chan proto.Message, 64),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Room() string {
	return c.room
}

func (c *Client) Role() proto.Role {
	return c.role
}

// Create claims the initiator role of room and waits for the ack.
func (c *Client) Create(ctx context.Context, room string) error {
	if err := c.send(ctx, proto.Create{Room: room}); err != nil {
		return err
	}
	ack, err := c.await(ctx, proto.TypeCreated)
	if err != nil {
		return err
	}
	c.room, c.role = ack.RoomID(), proto.Initiator
	return nil
}

// Join claims the capture role of room and waits for the ack.
func (c *Client) Join(ctx context.Context, room string) error {
	if err := c.send(ctx, proto.Join{Room: room}); err != nil {
		return err
	}
	ack, err := c.await(ctx, proto.TypeJoined)
	if err != nil {
		return err
	}
	c.room, c.role = ack.RoomID(), proto.Capture
	return nil
}

func (c *Client) SendSdp(ctx context.Context, sdp webrtc.SessionDescription) error {
	sig, err := proto.NewSdpSignal(c.room, sdp)
	if err != nil {
		return err
	}
	return c.send(ctx, sig)
}

func (c *Client) SendCandidate(ctx context.Context, ice webrtc.ICECandidateInit) error {
	sig, err := proto.NewIceSignal(c.room, ice)
	if err != nil {
		return err
	}
	return c.send(ctx, sig)
}

func (c *Client) SendMetrics(ctx context.Context, m proto.Metrics) error {
	if m.Room == "" {
		m.Room = c.room
	}
	if m.Role == "" {
		m.Role = c.role
	}
	return c.send(ctx, m)
}

// Messages delivers every decoded message from the relay. It is closed when
// the connection ends.
func (c *Client) Messages() <-chan proto.Message {
	return c.messages
}

// Recv waits for the next message.
func (c *Client) Recv(ctx context.Context) (proto.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case m, ok := <-c.messages:
		if !ok {
			return nil, ErrClosed
		}
		return m, nil
	}
}

func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.wmu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.wmu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Done is closed once the read loop has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) await(ctx context.Context, typ proto.Type) (proto.Message, error) {
	for {
		m, err := c.Recv(ctx)
		if err != nil {
			return nil, err
		}
		if m.Type() == typ {
			return m, nil
		}
		logrus.Debugf("skip %s while waiting for %s", m.Type(), typ)
	}
}

func (c *Client) send(ctx context.Context, m proto.Message) error {
	data, err := proto.Encode(m)
	if err != nil {
		return stderr.Wrap(err)
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.conn.SetWriteDeadline(deadline)
	return stderr.Wrap(c.conn.WriteMessage(websocket.TextMessage, data))
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.messages)
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.Warnf("signaling read:%v", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		m, err := proto.Decode(data)
		if err != nil {
			logrus.Debugf("drop signaling frame:%v", err)
			continue
		}
		c.messages <- m
	}
}
