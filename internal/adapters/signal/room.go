package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/app/orch"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
)

type positionPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Facing string  `json:"facing,omitempty"`
}

func (p positionPayload) position() domain.Position {
	return domain.Position{X: p.X, Y: p.Y, Facing: p.Facing}
}

func (ctl *SignalWSController) handleJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Type   string `json:"type"`
		RoomID string `json:"room_id,omitempty"`
		positionPayload
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if snap, ok := ctl.Orch.Registry.Get(sid); ok && ctl.Joins != nil && !ctl.Joins.Allow(snap.User.ID) {
		ctl.sendJSON(conn, orch.JoinFailed{Type: orch.TypeJoinFailed, Reason: "rate_limited"})
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Msg("join")
	_, _ = ctl.Orch.Join(sid, orch.JoinRequest{
		RoomID:   domain.RoomID(p.RoomID),
		Position: p.position(),
	})
}

func (ctl *SignalWSController) handleMove(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Type string `json:"type"`
		positionPayload
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	if !ctl.Orch.Move(sid, p.position()) {
		ctl.sendError(conn, "not_joined")
	}
}
