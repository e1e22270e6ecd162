// Package protocol defines the signaling wire format shared by the server and the peer client.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Kind is the closed set of signaling events. One event type per websocket frame.
type Kind string

const (
	KindJoinRoom     Kind = "join-room"
	KindRoomCreated  Kind = "room_created"
	KindRoomJoined   Kind = "room_joined"
	KindFullRoom     Kind = "full_room"
	KindStartCall    Kind = "start_call"
	KindOffer        Kind = "webrtc_offer"
	KindAnswer       Kind = "webrtc_answer"
	KindICECandidate Kind = "webrtc_ice_candidate"
	KindPeerLeft     Kind = "peer_left"
	KindError        Kind = "error"
	KindPing         Kind = "ping"
	KindPong         Kind = "pong"
)

var (
	ErrUnknownKind      = errors.New("unknown message type")
	ErrMissingRoom      = errors.New("message missing roomId")
	ErrMissingSDP       = errors.New("message missing sdp")
	ErrMissingCandidate = errors.New("message missing candidate")
	ErrMissingRole      = errors.New("message missing role")
	ErrUnexpectedFields = errors.New("message has unexpected fields")
	ErrTrailingData     = errors.New("unexpected trailing data")
)

func (k Kind) Valid() bool {
	switch k {
	case KindJoinRoom, KindRoomCreated, KindRoomJoined, KindFullRoom,
		KindStartCall, KindOffer, KindAnswer, KindICECandidate,
		KindPeerLeft, KindError, KindPing, KindPong:
		return true
	}
	return false
}

// Relayable reports whether the server forwards this kind to the other room member untouched.
func (k Kind) Relayable() bool {
	switch k {
	case KindStartCall, KindOffer, KindAnswer, KindICECandidate:
		return true
	}
	return false
}

// Candidate mirrors RTCIceCandidateInit on the wire.
type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

func CandidateFromPion(init webrtc.ICECandidateInit) *Candidate {
	return &Candidate{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

func (c Candidate) ToPion() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

// Message is the single envelope for every event. Immutable once sent.
type Message struct {
	Type      Kind        `json:"type"`
	RoomID    string      `json:"roomId,omitempty"`
	SDP       string      `json:"sdp,omitempty"`
	Candidate *Candidate  `json:"candidate,omitempty"`
	Role      domain.Role `json:"role,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func Join(room string) Message { return Message{Type: KindJoinRoom, RoomID: room} }

func RoomCreated(room domain.RoomID) Message {
	return Message{Type: KindRoomCreated, RoomID: string(room), Role: domain.RoleInitiator}
}

func RoomJoined(room domain.RoomID) Message {
	return Message{Type: KindRoomJoined, RoomID: string(room), Role: domain.RoleResponder}
}

func FullRoom(room string) Message  { return Message{Type: KindFullRoom, RoomID: room} }
func StartCall(room string) Message { return Message{Type: KindStartCall, RoomID: room} }

// PeerLeft tells the remaining member its peer is gone and which seat it holds now.
func PeerLeft(room domain.RoomID, role domain.Role) Message {
	return Message{Type: KindPeerLeft, RoomID: string(room), Role: role}
}

func Offer(room, sdp string) Message  { return Message{Type: KindOffer, RoomID: room, SDP: sdp} }
func Answer(room, sdp string) Message { return Message{Type: KindAnswer, RoomID: room, SDP: sdp} }

func ICECandidate(room string, c *Candidate) Message {
	return Message{Type: KindICECandidate, RoomID: room, Candidate: c}
}

func Error(room, reason string) Message {
	return Message{Type: KindError, RoomID: room, Error: reason}
}

// Decode parses one frame strictly: unknown fields and trailing data are rejected.
func Decode(data []byte) (Message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var msg Message
	if err := dec.Decode(&msg); err != nil {
		return Message{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Message{}, ErrTrailingData
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func Encode(msg Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

func (m Message) Validate() error {
	switch m.Type {
	case KindJoinRoom, KindFullRoom, KindStartCall:
		if m.RoomID == "" {
			return fmt.Errorf("%s: %w", m.Type, ErrMissingRoom)
		}
		if m.SDP != "" || m.Candidate != nil || m.Role != domain.RoleNone {
			return fmt.Errorf("%s: %w", m.Type, ErrUnexpectedFields)
		}
	case KindPeerLeft:
		if m.RoomID == "" {
			return fmt.Errorf("%s: %w", m.Type, ErrMissingRoom)
		}
		// role, when present, is the receiver's seat after the departure
		if m.SDP != "" || m.Candidate != nil || (m.Role != domain.RoleNone && !m.Role.Valid()) {
			return fmt.Errorf("%s: %w", m.Type, ErrUnexpectedFields)
		}
	case KindRoomCreated, KindRoomJoined:
		if m.RoomID == "" {
			return fmt.Errorf("%s: %w", m.Type, ErrMissingRoom)
		}
		if !m.Role.Valid() {
			return fmt.Errorf("%s: %w", m.Type, ErrMissingRole)
		}
		if m.SDP != "" || m.Candidate != nil {
			return fmt.Errorf("%s: %w", m.Type, ErrUnexpectedFields)
		}
	case KindOffer:
		if m.RoomID == "" {
			return fmt.Errorf("%s: %w", m.Type, ErrMissingRoom)
		}
		if m.SDP == "" {
			return fmt.Errorf("%s: %w", m.Type, ErrMissingSDP)
		}
		// role is the sender's seat, used to settle colliding offers
		if m.Candidate != nil || (m.Role != domain.RoleNone && !m.Role.Valid()) {
			return fmt.Errorf("%s: %w", m.Type, ErrUnexpectedFields)
		}
	case KindAnswer:
		if m.RoomID == "" {
			return fmt.Errorf("%s: %w", m.Type, ErrMissingRoom)
		}
		if m.SDP == "" {
			return fmt.Errorf("%s: %w", m.Type, ErrMissingSDP)
		}
		if m.Candidate != nil || m.Role != domain.RoleNone {
			return fmt.Errorf("%s: %w", m.Type, ErrUnexpectedFields)
		}
	case KindICECandidate:
		if m.RoomID == "" {
			return fmt.Errorf("%s: %w", m.Type, ErrMissingRoom)
		}
		// an empty candidate string is end-of-candidates and is relayed as is
		if m.Candidate == nil {
			return fmt.Errorf("%s: %w", m.Type, ErrMissingCandidate)
		}
		if m.SDP != "" || m.Role != domain.RoleNone {
			return fmt.Errorf("%s: %w", m.Type, ErrUnexpectedFields)
		}
	case KindError:
		if m.Error == "" {
			return fmt.Errorf("error message missing reason")
		}
	case KindPing, KindPong:
		if m.RoomID != "" || m.SDP != "" || m.Candidate != nil {
			return fmt.Errorf("%s: %w", m.Type, ErrUnexpectedFields)
		}
	default:
		return fmt.Errorf("%q: %w", m.Type, ErrUnknownKind)
	}
	return nil
}
