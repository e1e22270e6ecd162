package signal

import (
	"context"
	"time"

	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			_ = c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump is the only reader of the connection and the only caller of
// OnDisconnect for it, which makes the disconnect hook run exactly once.
func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.OnDisconnect(sid)
		ctl.limiter.Forget(sid)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		ctl.handleSignal(sid, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(sid core.SessionID, c *WsSignalConn, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("malformed message dropped")
		ctl.sendJSON(c, protocol.Error("", "bad_payload"))
		return
	}

	switch msg.Type {
	case protocol.KindJoinRoom:
		ctl.join(sid, c, msg.RoomID)
	case protocol.KindStartCall, protocol.KindOffer, protocol.KindAnswer, protocol.KindICECandidate:
		ctl.handleRelay(sid, msg)
	case protocol.KindPing:
		ctl.handlePing(c)
	case protocol.KindRoomCreated, protocol.KindRoomJoined, protocol.KindFullRoom,
		protocol.KindPeerLeft, protocol.KindError, protocol.KindPong:
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("type", string(msg.Type)).Msg("server-bound message of server-only type")
	}
}

func (ctl *SignalWSController) handleRelay(sid core.SessionID, msg protocol.Message) {
	if _, err := ctl.Orch.Relay(sid, msg); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", string(msg.Type)).Msg("relay not delivered")
	}
}

func (ctl *SignalWSController) sendJSON(c core.SignalConnection, msg protocol.Message) {
	b, err := protocol.Encode(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON encode")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("type", string(msg.Type)).Msg("sendJSON dropped")
	}
}
