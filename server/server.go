package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yixinin/camsight/config"
	"github.com/yixinin/camsight/middles"
	"github.com/yixinin/camsight/relay"
	"github.com/yixinin/camsight/room"
	"github.com/yixinin/camsight/stderr"
	"github.com/yixinin/camsight/telemetry"
	"github.com/yixinin/camsight/util"
	"golang.org/x/crypto/acme/autocert"
)

type Server struct {
	cfg      config.ServerConfig
	hub      *relay.Hub
	store    telemetry.Store
	upgrader websocket.Upgrader
	engine   *gin.Engine
}

func NewServer(cfg config.ServerConfig, hub *relay.Hub, store telemetry.Store) *Server {
	s := &Server{
		cfg:   cfg,
		hub:   hub,
		store: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     middles.OriginAllowed(cfg.AllowedOrigins),
		},
	}

	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(middles.Cors(cfg.AllowedOrigins))
	e.GET("/ws", s.ServeWs)

	g := e.Group("/api", middles.Logging())
	g.GET("/rooms", s.Rooms)
	g.GET("/rooms/:room", s.Room)
	g.GET("/telemetry", s.Telemetry)

	if cfg.StaticDir != "" {
		e.NoRoute(gin.WrapH(http.FileServer(http.Dir(cfg.StaticDir))))
	}
	s.engine = e
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done. Failing to bind the listener is the only
// error it returns.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return stderr.Wrap(err)
	}

	util.GoFunc(ctx, s.hub.Run)

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	if s.cfg.TLS.Enabled() {
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(s.cfg.TLS.AutocertDomains...),
		}
		if s.cfg.TLS.CacheDir != "" {
			m.Cache = autocert.DirCache(s.cfg.TLS.CacheDir)
		}
		srv.TLSConfig = m.TLSConfig()
		logrus.Infof("relay listening on %s (tls %v)", lis.Addr(), s.cfg.TLS.AutocertDomains)
		err = srv.ServeTLS(lis, "", "")
	} else {
		logrus.Infof("relay listening on %s", lis.Addr())
		err = srv.Serve(lis)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return stderr.Wrap(err)
}

type RoomInfo struct {
	Room      string `json:"room"`
	Initiator bool   `json:"initiator"`
	Capture   bool   `json:"capture"`
}

func (s *Server) Rooms(c *gin.Context) {
	var rooms = make([]RoomInfo, 0)
	s.hub.Registry().Rooms(func(rm room.Room) {
		rooms = append(rooms, RoomInfo{
			Room:      rm.ID,
			Initiator: rm.Initiator != nil,
			Capture:   rm.Capture != nil,
		})
	})
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Room < rooms[j].Room })
	c.JSON(http.StatusOK, rooms)
}

func (s *Server) Room(c *gin.Context) {
	rm, ok := s.hub.Registry().Get(c.Param("room"))
	if !ok {
		c.String(http.StatusNotFound, "room %q not found", c.Param("room"))
		return
	}
	c.JSON(http.StatusOK, RoomInfo{
		Room:      rm.ID,
		Initiator: rm.Initiator != nil,
		Capture:   rm.Capture != nil,
	})
}

func (s *Server) Telemetry(c *gin.Context) {
	q := telemetry.Query{Room: c.Query("room")}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.String(http.StatusBadRequest, "bad limit %q", v)
			return
		}
		q.Limit = n
	}
	samples, err := s.store.Scan(c.Request.Context(), q)
	if err != nil {
		logrus.Errorf("scan telemetry:%v", err)
		c.String(http.StatusInternalServerError, "scan telemetry failed")
		return
	}
	c.JSON(http.StatusOK, samples)
}
