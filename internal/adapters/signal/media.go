package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

func (ctl *Controller) handleProduce(
	ctx context.Context,
	cid domain.ConnID,
	conn *WsConn,
	data []byte,
) {
	type producePayload struct {
		Type          string             `json:"type"`
		Kind          core.MediaKind     `json:"kind"`
		RtpParameters core.RtpParameters `json:"rtpParameters"`
		AppData       json.RawMessage    `json:"appData"`
	}
	var p producePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad transport-produce payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if p.Kind != core.MediaKindAudio && p.Kind != core.MediaKindVideo {
		ctl.sendError(conn, "bad_payload")
		return
	}

	id, othersExist, err := ctl.Orch.Produce(ctx, cid, p.Kind, p.RtpParameters)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("produce failed")
		ctl.sendError(conn, wireError(err))
		return
	}
	ctl.sendJSON(conn, struct {
		Type           string `json:"type"`
		ID             string `json:"id"`
		ProducersExist bool   `json:"producersExist"`
	}{"transport-produce", id, othersExist})
}

func (ctl *Controller) handleGetProducers(cid domain.ConnID, conn *WsConn) {
	ids, err := ctl.Orch.Producers(cid)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("getProducers failed")
		ctl.sendError(conn, wireError(err))
		return
	}
	if ids == nil {
		ids = []string{}
	}
	ctl.sendJSON(conn, struct {
		Type        string   `json:"type"`
		ProducerIDs []string `json:"producerIds"`
	}{"getProducers", ids})
}

func (ctl *Controller) handleConsume(
	ctx context.Context,
	cid domain.ConnID,
	conn *WsConn,
	data []byte,
) {
	type consumePayload struct {
		Type                      string               `json:"type"`
		RtpCapabilities           core.RtpCapabilities `json:"rtpCapabilities"`
		RemoteProducerID          string               `json:"remoteProducerId"`
		ServerConsumerTransportID string               `json:"serverConsumerTransportId"`
	}
	var p consumePayload
	if err := json.Unmarshal(data, &p); err != nil || p.RemoteProducerID == "" || p.ServerConsumerTransportID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad consume payload")
		ctl.sendError(conn, "bad_payload")
		return
	}

	info, err := ctl.Orch.Consume(ctx, cid, p.ServerConsumerTransportID, p.RemoteProducerID, p.RtpCapabilities)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(cid)).
			Str("producer", p.RemoteProducerID).Msg("consume failed")
		ctl.sendJSON(conn, map[string]any{
			"type":   "consume",
			"params": map[string]any{"error": wireError(err)},
		})
		return
	}
	ctl.sendJSON(conn, struct {
		Type   string            `json:"type"`
		Params orch.ConsumerInfo `json:"params"`
	}{"consume", info})
}

func (ctl *Controller) handleConsumerResume(
	ctx context.Context,
	cid domain.ConnID,
	conn *WsConn,
	data []byte,
) {
	type resumePayload struct {
		Type             string `json:"type"`
		ServerConsumerID string `json:"serverConsumerId"`
	}
	var p resumePayload
	if err := json.Unmarshal(data, &p); err != nil || p.ServerConsumerID == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad consumer-resume payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if err := ctl.Orch.ResumeConsumer(ctx, cid, p.ServerConsumerID); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(cid)).Msg("consumer-resume failed")
		ctl.sendError(conn, wireError(err))
	}
}
