package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/negotiation"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrRejected = errors.New("server rejected request")

// Call joins one room and feeds the server's replies into a negotiation session.
type Call struct {
	client  *Client
	session *negotiation.Session
	room    string
	log     zerolog.Logger

	// OnJoined is told the seat we got. Optional.
	OnJoined func(room string, role domain.Role)
}

func NewCall(c *Client, room string, s *negotiation.Session) *Call {
	return &Call{
		client:  c,
		session: s,
		room:    room,
		log:     log.With().Str("module", "client").Str("room", room).Logger(),
	}
}

// Run joins the room and blocks until the session is over, the connection
// drops before the call connected, or ctx is canceled. It returns the reason
// the call ended; a peer hanging up is not an error.
func (c *Call) Run(ctx context.Context) error {
	if err := c.client.Send(protocol.Join(c.room)); err != nil {
		c.session.End()
		return err
	}

	incoming := c.client.Incoming()
	for {
		select {
		case <-ctx.Done():
			c.session.End()
			return ctx.Err()

		case <-c.session.Done():
			return c.session.Err()

		case msg, ok := <-incoming:
			if !ok {
				incoming = nil
				if c.session.State() == negotiation.Connected {
					c.log.Warn().Err(c.client.Err()).Msg("signaling lost, call continues")
					continue
				}
				cause := c.client.Err()
				if cause == nil {
					cause = ErrClosed
				}
				err := &negotiation.SignalingConnectionError{Op: "read", Err: cause}
				c.session.Fail(err)
				return err
			}
			if err := c.handle(msg); err != nil {
				c.session.End()
				return err
			}
		}
	}
}

func (c *Call) handle(msg protocol.Message) error {
	switch msg.Type {
	case protocol.KindRoomCreated:
		c.log.Info().Msg("room created, waiting for peer")
		c.session.SetRole(msg.Role)
		c.joined(msg)
	case protocol.KindRoomJoined:
		c.log.Info().Msg("room joined, asking peer to start")
		c.session.SetRole(msg.Role)
		c.joined(msg)
		return c.client.Send(protocol.StartCall(msg.RoomID))
	case protocol.KindFullRoom:
		return &negotiation.RoomFullError{Room: msg.RoomID}
	case protocol.KindError:
		if c.session.State() == negotiation.Idle {
			return fmt.Errorf("%w: %s", ErrRejected, msg.Error)
		}
		c.log.Warn().Str("reason", msg.Error).Msg("server error")
	case protocol.KindPong:
	default:
		c.session.HandleMessage(msg)
	}
	return nil
}

func (c *Call) joined(msg protocol.Message) {
	if c.OnJoined != nil {
		c.OnJoined(msg.RoomID, msg.Role)
	}
}
