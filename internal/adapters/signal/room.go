package signal

import (
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/rs/zerolog/log"
)

// join runs admission for sid and answers with room_created, room_joined or full_room.
func (ctl *SignalWSController) join(sid core.SessionID, conn *WsSignalConn, raw string) {
	if !ctl.limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("join rate limited")
		ctl.sendJSON(conn, protocol.Error(raw, "rate_limited"))
		return
	}

	res, err := ctl.Orch.Join(sid, raw)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room", raw).Msg("join failed")
		ctl.sendJSON(conn, protocol.Error(raw, "bad_room"))
		return
	}

	switch res.Outcome {
	case core.Created:
		ctl.sendJSON(conn, protocol.RoomCreated(res.Room))
	case core.Joined:
		ctl.sendJSON(conn, protocol.RoomJoined(res.Room))
	case core.Rejected:
		ctl.sendJSON(conn, protocol.FullRoom(string(res.Room)))
	}
}
