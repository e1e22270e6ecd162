package orch

import (
	"github.com/dkeye/Duet/internal/app"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Relay forwards msg unchanged to the other member of the sender's room.
// Routing uses only the sender's current binding; the roomId carried by the
// message must agree with it. Delivery is best-effort with no retry.
func (o *Orchestrator) Relay(sid core.SessionID, msg protocol.Message) (core.PublishResult, error) {
	logger := log.With().Str("module", "orch").Str("sid", string(sid)).Str("type", string(msg.Type)).Logger()

	if !msg.Type.Relayable() {
		return core.PublishResult{}, ErrNotRelayable
	}
	roomID, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		logger.Warn().Msg("relay from unbound connection dropped")
		return core.PublishResult{}, ErrNotInRoom
	}
	claimed, err := domain.NormalizeRoomID(msg.RoomID, o.FoldRoomCase)
	if err != nil || claimed != roomID {
		logger.Warn().Str("room", string(roomID)).Str("claimed", msg.RoomID).Msg("relay room mismatch dropped")
		return core.PublishResult{}, ErrRoomMismatch
	}

	room, ok := o.Rooms.GetRoom(roomID)
	if !ok {
		return core.PublishResult{}, ErrNotInRoom
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		return core.PublishResult{}, err
	}
	res, err := room.Broadcast(sid, frame)
	if err != nil {
		logger.Warn().Err(err).Str("room", string(roomID)).Msg("relay dropped")
		return res, ErrNotInRoom
	}
	if res.SendTo == 0 && len(res.Dropped) == 0 {
		logger.Debug().Str("room", string(roomID)).Msg("no peer in room, dropped")
	}
	o.applyPolicy(room, res.Dropped)
	return res, nil
}

func (o *Orchestrator) applyPolicy(room core.RoomService, dropped []core.MemberSession) {
	if o.Policy == nil {
		return
	}
	for _, slow := range dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			for _, member := range room.Members() {
				if sess, ok := o.Registry.GetSession(member); ok && sess == slow {
					log.Warn().Str("module", "orch").Str("sid", string(member)).Msg("kicking slow member")
					o.Registry.Cancel(member)
				}
			}
		case app.DropFrame, app.NoAction:
		}
	}
}
