package orch

import (
	"github.com/dkeye/Duet/internal/app"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Join admits sid into the room named by raw. A connection already seated in
// another room leaves it first; a rejected connection ends up roomless.
func (o *Orchestrator) Join(sid core.SessionID, raw string) (core.JoinResult, error) {
	roomID, err := domain.NormalizeRoomID(raw, o.FoldRoomCase)
	if err != nil {
		return core.JoinResult{}, err
	}
	session, ok := o.Registry.GetSession(sid)
	if !ok {
		return core.JoinResult{}, app.ErrUnknownConnection
	}

	if current, _, ok := o.Registry.RoomOf(sid); ok && current != roomID {
		o.leaveRoom(sid)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(current)).Msg("left previous room")
	}

	res := o.Rooms.Join(roomID, sid, session)
	if res.Outcome == core.Rejected {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("room full")
		return res, nil
	}
	if err := o.Registry.Bind(sid, roomID); err != nil {
		o.Rooms.Leave(roomID, sid)
		return core.JoinResult{}, err
	}
	log.Info().
		Str("module", "orch").
		Str("sid", string(sid)).
		Str("room", string(roomID)).
		Str("outcome", res.Outcome.String()).
		Str("role", string(res.Role)).
		Msg("joined room")
	return res, nil
}

func (o *Orchestrator) leaveRoom(sid core.SessionID) {
	roomID, err := o.Registry.Unbind(sid)
	if err != nil || roomID == "" {
		return
	}
	remaining, ok := o.Rooms.Leave(roomID, sid)
	if !ok {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("registry bound to room without seat")
		return
	}
	if !o.NotifyPeerLeft {
		return
	}
	room, _ := o.Rooms.GetRoom(roomID)
	for _, peer := range remaining {
		role := domain.RoleNone
		if room != nil {
			role, _ = room.RoleOf(peer)
		}
		if err := o.Send(peer, protocol.PeerLeft(roomID, role)); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("sid", string(peer)).Msg("peer_left not delivered")
		}
	}
}
