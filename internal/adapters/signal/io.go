package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cid domain.ConnID, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(cid)).Msg("readPump closing")
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("readPump read error")
				return
			}
			ctl.handleEvent(ctx, cid, c, data)
		}
	}
}

// handleEvent dispatches one client event. Events for one connection are
// handled to completion in arrival order because they all run on this
// connection's read loop.
func (ctl *Controller) handleEvent(ctx context.Context, cid domain.ConnID, c *WsConn, data []byte) {
	if ctl.Orch.Pool.Terminating() {
		log.Warn().Str("module", "signal").Str("conn", string(cid)).Msg("dropping event, terminating")
		return
	}

	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, "bad_payload")
		return
	}

	switch env.Type {
	case "joinRoom":
		ctl.handleJoinRoom(ctx, cid, c, data)
	case "leaveRoom":
		ctl.handleLeaveRoom(cid, c)
	case "createWebRtcTransport":
		ctl.handleCreateTransport(ctx, cid, c, data)
	case "transport-connect":
		ctl.handleTransportConnect(ctx, cid, c, data)
	case "transport-recv-connect":
		ctl.handleTransportRecvConnect(ctx, cid, c, data)
	case "transport-produce":
		ctl.handleProduce(ctx, cid, c, data)
	case "getProducers":
		ctl.handleGetProducers(cid, c)
	case "consume":
		ctl.handleConsume(ctx, cid, c, data)
	case "consumer-resume":
		ctl.handleConsumerResume(ctx, cid, c, data)
	case "ping":
		ctl.sendJSON(c, struct {
			Type string `json:"type"`
		}{"pong"})
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(c *WsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *WsConn, msg string) {
	ctl.sendJSON(c, map[string]any{
		"type":  "error",
		"error": msg,
	})
}
