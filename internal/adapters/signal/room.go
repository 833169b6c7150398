package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

func (ctl *Controller) handleJoinRoom(
	ctx context.Context,
	cid domain.ConnID,
	conn *WsConn,
	data []byte,
) {
	type joinPayload struct {
		Type        string `json:"type"`
		RoomName    string `json:"roomName"`
		DisplayName string `json:"displayName,omitempty"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomName == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad joinRoom payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	name := p.RoomName
	if len(name) > domain.MaxRoomNameLen {
		name = name[:domain.MaxRoomNameLen]
	}
	if len(p.DisplayName) > domain.MaxDisplayNameLen {
		p.DisplayName = p.DisplayName[:domain.MaxDisplayNameLen]
	}

	caps, err := ctl.Orch.JoinRoom(ctx, cid, domain.RoomName(name), p.DisplayName, conn)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("room", name).Msg("joinRoom failed")
		ctl.sendError(conn, "join_failed")
		return
	}

	ctl.sendJSON(conn, struct {
		Type            string               `json:"type"`
		RtpCapabilities core.RtpCapabilities `json:"rtpCapabilities"`
	}{"joinRoom", caps})
}

func (ctl *Controller) handleLeaveRoom(cid domain.ConnID, conn *WsConn) {
	ctl.Orch.LeaveRoom(cid)
	ctl.sendJSON(conn, struct {
		Type string `json:"type"`
	}{"leaveRoom"})
}
