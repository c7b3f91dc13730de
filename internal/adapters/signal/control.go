package signal

import "time"

// handlePing answers the application-level keepalive with the server time.
func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, struct {
		Type string `json:"type"`
		TS   int64  `json:"ts"`
	}{
		Type: "pong",
		TS:   time.Now().UnixMilli(),
	})
}
