package orch

import (
	"errors"

	"github.com/dkeye/Duet/internal/app"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotInRoom    = errors.New("connection is not in a room")
	ErrRoomMismatch = errors.New("message room does not match connection room")
	ErrNotRelayable = errors.New("message type is not relayable")
)

// Orchestrator is the server-side service: room admission, relay and
// disconnect handling. It is constructed once and passed to the transport.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomManager
	Policy   app.Policy

	// FoldRoomCase lower-cases room ids during normalization.
	FoldRoomCase bool
	// NotifyPeerLeft sends peer_left to the remaining member on disconnect.
	NotifyPeerLeft bool
}

func New(reg *app.Registry, rooms core.RoomManager, policy app.Policy) *Orchestrator {
	return &Orchestrator{
		Registry: reg,
		Rooms:    rooms,
		Policy:   policy,
	}
}

// Send encodes msg and queues it on sid's transport without blocking.
func (o *Orchestrator) Send(sid core.SessionID, msg protocol.Message) error {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return app.ErrUnknownConnection
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("type", string(msg.Type)).Msg("encode")
		return err
	}
	return sess.Signal().TrySend(frame)
}
