// Package chat is the websocket adapter for direct messaging. It owns the
// token handshake and the userID <-> connection binding; conversation state
// lives behind the chat service.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/app"
	chatapp "github.com/dkeye/Huddle/internal/app/chat"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Svc      *chatapp.Service
	Registry *app.ConnectionRegistry
	Verifier core.TokenVerifier
	Limiter  *MessageRateLimiter
}

func NewController(svc *chatapp.Service, reg *app.ConnectionRegistry, verifier core.TokenVerifier, limiter *MessageRateLimiter) *Controller {
	return &Controller{Svc: svc, Registry: reg, Verifier: verifier, Limiter: limiter}
}

type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
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

func (c *wsConn) Close() {
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

// bearerToken pulls the session token from the Authorization header, falling
// back to the token query parameter for browser websocket clients that cannot
// set headers.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// HandleChat authenticates the handshake, binds the user to this connection
// and pumps messages until the client goes away.
func (ctl *Controller) HandleChat(ctx context.Context, c *gin.Context) {
	uid, err := ctl.Verifier.Verify(bearerToken(c.Request))
	if err != nil {
		log.Warn().Err(err).Str("module", "chat").Msg("handshake rejected")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	cid := domain.ConnID(c.GetString("client_token"))
	log.Info().Str("module", "chat").Str("user", string(uid)).Str("conn", string(cid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("ws upgrade")
		return
	}

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	ctl.Registry.Bind(uid, cid, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		ctl.readPump(ctx, uid, cid, conn)
		cancel()
		ctl.Registry.Unbind(cid)
		if ctl.Limiter != nil {
			ctl.Limiter.Forget(uid)
		}
	}()
}

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "chat").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "chat").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, uid domain.UserID, cid domain.ConnID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "chat").Str("conn", string(cid)).Msg("readPump closing")
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "chat").Str("conn", string(cid)).Msg("readPump read error")
				return
			}
			ctl.handleEvent(ctx, uid, cid, c, data)
		}
	}
}

func (ctl *Controller) handleEvent(ctx context.Context, uid domain.UserID, cid domain.ConnID, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("bad json")
		ctl.sendError(c, "bad_payload")
		return
	}

	switch env.Type {
	case "sendMessage":
		ctl.handleSendMessage(ctx, uid, cid, c, data)
	case "markRead":
		ctl.handleMarkRead(ctx, cid, c, data)
	case "ping":
		ctl.sendJSON(c, struct {
			Type string `json:"type"`
		}{"pong"})
	default:
		log.Warn().Str("module", "chat").Str("type", env.Type).Msg("unknown event")
	}
}

func (ctl *Controller) handleSendMessage(ctx context.Context, uid domain.UserID, cid domain.ConnID, c *wsConn, data []byte) {
	if ctl.Limiter != nil && !ctl.Limiter.Allow(uid) {
		ctl.sendError(c, "rate_limited")
		return
	}

	var in chatapp.SendMessageInput
	if err := json.Unmarshal(data, &in); err != nil || in.Receiver == "" || in.Body == "" {
		log.Error().Err(err).Str("module", "chat").Msg("bad sendMessage payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	if _, err := ctl.Svc.SendMessage(ctx, cid, in); err != nil {
		log.Error().Err(err).Str("module", "chat").Str("conn", string(cid)).Msg("sendMessage failed")
		ctl.sendError(c, chatError(err))
	}
}

func (ctl *Controller) handleMarkRead(ctx context.Context, cid domain.ConnID, c *wsConn, data []byte) {
	var p struct {
		Type   string                `json:"type"`
		ChatID domain.ConversationID `json:"chatId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ChatID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	if err := ctl.Svc.MarkRead(ctx, cid, p.ChatID); err != nil {
		log.Error().Err(err).Str("module", "chat").Str("conn", string(cid)).Msg("markRead failed")
		ctl.sendError(c, chatError(err))
	}
}

func chatError(err error) string {
	switch {
	case errors.Is(err, core.ErrAuthFailed):
		return "unauthorized"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrAlreadyExists):
		return "already_exists"
	default:
		return "internal_error"
	}
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *wsConn, msg string) {
	ctl.sendJSON(c, map[string]any{
		"type":  "error",
		"error": msg,
	})
}
