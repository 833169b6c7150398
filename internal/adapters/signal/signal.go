// Package signal is the websocket signaling adapter for group calls. It
// translates wire events into orchestrator calls and owns the connection
// lifecycle; all room/peer/media state lives behind the orchestrator.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Orch *orch.Orchestrator
	Cfg  *config.Config
}

func NewController(o *orch.Orchestrator, cfg *config.Config) *Controller {
	return &Controller{Orch: o, Cfg: cfg}
}

type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection until the client
// goes away, then tears down everything the connection owned.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	cid := domain.ConnID(c.GetString("client_token"))
	if ctl.Orch.Pool.Terminating() {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.Cfg != nil && ctl.Cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.Cfg.ReadLimit)
	}

	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)

	ctl.sendJSON(conn, struct {
		Type     string `json:"type"`
		SocketID string `json:"socketId"`
	}{"connection-success", string(cid)})

	go ctl.writePump(ctx, conn)
	go func() {
		ctl.readPump(ctx, cid, conn)
		cancel()
		ctl.Orch.Disconnect(cid)
	}()
}
