package orch

import (
	"github.com/dkeye/Duet/internal/core"
	"github.com/rs/zerolog/log"
)

// OnDisconnect unwinds everything the server holds for sid. The transport
// guarantees exactly one call per connection.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	if _, ok := o.Registry.GetSession(sid); !ok {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("disconnect of unknown connection")
		return
	}
	o.leaveRoom(sid)
	o.Registry.Cancel(sid)
	o.Registry.Forget(sid)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("disconnected")
}
