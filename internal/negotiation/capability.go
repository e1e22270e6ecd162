package negotiation

import (
	"context"

	"github.com/dkeye/Duet/internal/protocol"
	"github.com/pion/webrtc/v4"
)

//go:generate mockgen -destination=mock_signaler_test.go -package=negotiation github.com/dkeye/Duet/internal/negotiation Signaler

// LocalMedia is an acquired capture. Close stops every track.
type LocalMedia interface {
	Tracks() []webrtc.TrackLocal
	Close() error
}

type MediaSource interface {
	Acquire(ctx context.Context) (LocalMedia, error)
}

// RemoteTrack is the part of an inbound track the session cares about.
type RemoteTrack interface {
	ID() string
	Kind() webrtc.RTPCodecType
}

// PeerEvents are invoked from the peer connection's own goroutines.
type PeerEvents struct {
	// OnICECandidate receives nil when gathering completes.
	OnICECandidate    func(*protocol.Candidate)
	OnTrack           func(RemoteTrack)
	OnConnectionState func(webrtc.PeerConnectionState)
}

type PeerConnection interface {
	AddLocalMedia(LocalMedia) error
	CreateOffer(ctx context.Context) (webrtc.SessionDescription, error)
	CreateAnswer(ctx context.Context) (webrtc.SessionDescription, error)
	SetLocalDescription(ctx context.Context, desc webrtc.SessionDescription) error
	SetRemoteDescription(ctx context.Context, desc webrtc.SessionDescription) error
	Rollback(ctx context.Context) error
	AddICECandidate(c protocol.Candidate) error
	Close() error
}

type PeerFactory interface {
	NewPeer(ctx context.Context, events PeerEvents) (PeerConnection, error)
}

// Signaler carries outbound messages to the signaling server.
type Signaler interface {
	Send(msg protocol.Message) error
}
