package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Presence/internal/app/orch"
	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
)

func (ctl *SignalWSController) handleStatus(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Type  string              `json:"type"`
		State domain.DisplayState `json:"state"`
	}
	if err := json.Unmarshal(data, &p); err != nil || !p.State.Valid() {
		ctl.sendError(conn, "invalid_state")
		return
	}
	if !ctl.Orch.SetStatus(sid, p.State) {
		ctl.sendError(conn, "not_joined")
	}
}

func (ctl *SignalWSController) handleFocusCompleted(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p struct {
		Type  string `json:"type"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	err := ctl.Orch.FocusCompleted(sid, p.Count)
	if errors.Is(err, orch.ErrNotJoined) {
		ctl.sendError(conn, "not_joined")
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("focus completed")
		ctl.sendError(conn, "rejected")
	}
}
