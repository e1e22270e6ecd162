package core

import (
	"github.com/dkeye/Duet/internal/domain"
	"github.com/google/uuid"
)

// SessionID is the per-connection token assigned at connect time.
type SessionID string

func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// Frame is one encoded signaling message, written as a single text frame.
type Frame []byte

// SignalConnection is the outbound half of a participant's socket.
// TrySend never blocks; a full buffer is reported as an error and the frame is lost.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession is what a room seats and fans out to.
type MemberSession interface {
	Meta() *domain.Member
	Signal() SignalConnection
}
