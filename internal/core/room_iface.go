package core

import (
	"errors"

	"github.com/dkeye/Duet/internal/domain"
)

// MaxSeats is the room capacity. Rooms pair exactly two participants.
const MaxSeats = 2

var (
	ErrNotInRoom   = errors.New("session is not seated in room")
	ErrRoomRetired = errors.New("room retired")
)

type JoinOutcome int

const (
	Created JoinOutcome = iota
	Joined
	Rejected
)

func (o JoinOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case Joined:
		return "joined"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// JoinResult is the admission decision for one join attempt.
type JoinResult struct {
	Room    domain.RoomID
	Outcome JoinOutcome
	Role    domain.Role
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// RoomService is the core-facing API of a room.
// It owns the seat list but never touches transport resources.
type RoomService interface {
	ID() domain.RoomID
	MemberCount() int
	Members() []SessionID
	RoleOf(sid SessionID) (domain.Role, bool)

	Broadcast(from SessionID, data Frame) (PublishResult, error)
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
}

// RoomManager owns room lifetimes. Admission and departure are serialized per room.
type RoomManager interface {
	Join(id domain.RoomID, sid SessionID, ms MemberSession) JoinResult
	Leave(id domain.RoomID, sid SessionID) (remaining []SessionID, ok bool)
	GetRoom(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
}
