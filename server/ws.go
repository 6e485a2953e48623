package server

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yixinin/camsight/relay"
	"github.com/yixinin/camsight/util"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

func (s *Server) ServeWs(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Warnf("upgrade failed:%v", err)
		return
	}
	client := &Client{
		id:   uuid.NewString(),
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if err := s.hub.Register(client); err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay stopped"), time.Now().Add(writeWait))
		conn.Close()
		return
	}
	logrus.WithField("conn", client.id).WithField("addr", conn.RemoteAddr().String()).Info("websocket connected")

	go client.WritePump()
	go client.ReadPump(s.cfg.ReadLimit)
}

// Client is one websocket connection. The hub talks to it through
// relay.Conn.
type Client struct {
	id   string
	hub  *relay.Hub
	conn *websocket.Conn

	send      chan []byte
	closeOnce sync.Once
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Send(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// ReadPump runs on its own goroutine and is the only reader of the conn.
func (c *Client) ReadPump(limit int64) {
	defer util.Recover("read pump " + c.id)
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if limit > 0 {
		c.conn.SetReadLimit(limit)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logrus.WithField("conn", c.id).Warnf("read:%v", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := c.hub.Dispatch(c, data); err != nil {
			return
		}
	}
}

// WritePump runs on its own goroutine and is the only writer of the conn.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logrus.WithField("conn", c.id).Warnf("write:%v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ relay.Conn = (*Client)(nil)
