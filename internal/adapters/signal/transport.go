package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

func (ctl *Controller) handleCreateTransport(
	ctx context.Context,
	cid domain.ConnID,
	conn *WsConn,
	data []byte,
) {
	type createPayload struct {
		Type     string `json:"type"`
		Consumer bool   `json:"consumer"`
	}
	var p createPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad createWebRtcTransport payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	info, err := ctl.Orch.CreateTransport(ctx, cid, p.Consumer)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("createWebRtcTransport failed")
		ctl.sendJSON(conn, map[string]any{
			"type":   "createWebRtcTransport",
			"params": map[string]any{"error": wireError(err)},
		})
		return
	}
	ctl.sendJSON(conn, struct {
		Type   string             `json:"type"`
		Params core.TransportInfo `json:"params"`
	}{"createWebRtcTransport", info})
}

func (ctl *Controller) handleTransportConnect(
	ctx context.Context,
	cid domain.ConnID,
	conn *WsConn,
	data []byte,
) {
	type connectPayload struct {
		Type           string              `json:"type"`
		DtlsParameters core.DtlsParameters `json:"dtlsParameters"`
	}
	var p connectPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad transport-connect payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if err := ctl.Orch.ConnectTransport(ctx, cid, p.DtlsParameters, false, ""); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("transport-connect failed")
		ctl.sendError(conn, wireError(err))
	}
}

func (ctl *Controller) handleTransportRecvConnect(
	ctx context.Context,
	cid domain.ConnID,
	conn *WsConn,
	data []byte,
) {
	type recvConnectPayload struct {
		Type                      string              `json:"type"`
		DtlsParameters            core.DtlsParameters `json:"dtlsParameters"`
		ServerConsumerTransportID string              `json:"serverConsumerTransportId"`
	}
	var p recvConnectPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ServerConsumerTransportID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad transport-recv-connect payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if err := ctl.Orch.ConnectTransport(ctx, cid, p.DtlsParameters, true, p.ServerConsumerTransportID); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("transport-recv-connect failed")
		ctl.sendError(conn, wireError(err))
	}
}

// wireError maps taxonomy errors onto the short strings clients key off.
func wireError(err error) string {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, core.ErrCapabilityMismatch):
		return "cannot_consume"
	case errors.Is(err, core.ErrTimeout):
		return "engine_timeout"
	default:
		return "internal_error"
	}
}
