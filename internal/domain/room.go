package domain

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
)

const MaxRoomIDLen = 64

var (
	ErrEmptyRoomID   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
)

type RoomID string

// NormalizeRoomID trims surrounding whitespace. Case is preserved unless foldCase is set.
func NormalizeRoomID(raw string, foldCase bool) (RoomID, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", ErrEmptyRoomID
	}
	if len(id) > MaxRoomIDLen {
		return "", ErrRoomIDTooLong
	}
	if foldCase {
		id = strings.ToLower(id)
	}
	return RoomID(id), nil
}

// NewRoomID returns a short random base36 id suitable for sharing.
func NewRoomID() RoomID {
	id := strconv.FormatUint(rand.Uint64(), 36)
	for len(id) < 8 {
		id = "0" + id
	}
	return RoomID(id)
}

// Role is assigned by join order: the first seat initiates, the second responds.
type Role string

const (
	RoleNone      Role = ""
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

func (r Role) Valid() bool {
	return r == RoleInitiator || r == RoleResponder
}
