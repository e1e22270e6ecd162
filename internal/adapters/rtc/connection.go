package rtc

import (
	"context"
	"sync"

	"github.com/dkeye/Duet/internal/negotiation"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TrackHandler consumes a remote track until ctx is done.
type TrackHandler func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)

// Factory builds pion peer connections for negotiation sessions.
type Factory struct {
	api     *webrtc.API
	cfg     webrtc.Configuration
	onTrack TrackHandler
}

func Configuration(iceServers []string) webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return cfg
}

func NewFactory(cfg webrtc.Configuration, onTrack TrackHandler) (*Factory, error) {
	api, err := NewAPI()
	if err != nil {
		return nil, err
	}
	return &Factory{api: api, cfg: cfg, onTrack: onTrack}, nil
}

// NewAPI registers the default codecs and routes pion's logs through zerolog.
func NewAPI() (*webrtc.API, error) {
	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	se := webrtc.SettingEngine{LoggerFactory: NewLoggerFactory(log.Logger)}
	return webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithSettingEngine(se)), nil
}

func (f *Factory) NewPeer(ctx context.Context, events negotiation.PeerEvents) (negotiation.PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.cfg)
	if err != nil {
		return nil, err
	}
	p := &Peer{
		pc:  pc,
		log: log.With().Str("module", "webrtc").Logger(),
	}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		p.log.Info().Str("ice_state", s.String()).Msg("ICE state")
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		p.log.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		if events.OnConnectionState != nil {
			events.OnConnectionState(s)
		}
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if events.OnICECandidate == nil {
			return
		}
		if c == nil {
			events.OnICECandidate(nil)
			return
		}
		events.OnICECandidate(protocol.CandidateFromPion(c.ToJSON()))
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		p.log.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		if events.OnTrack != nil {
			events.OnTrack(track)
		}
		if f.onTrack != nil {
			go f.onTrack(ctx, track, receiver)
		}
	})

	return p, nil
}

// Peer adapts *webrtc.PeerConnection to negotiation.PeerConnection.
type Peer struct {
	pc        *webrtc.PeerConnection
	log       zerolog.Logger
	closeOnce sync.Once
	closeErr  error
}

func (p *Peer) AddLocalMedia(m negotiation.LocalMedia) error {
	for _, track := range m.Tracks() {
		sender, err := p.pc.AddTrack(track)
		if err != nil {
			return err
		}
		go drainRTCP(sender)
	}
	return nil
}

// drainRTCP reads sender RTCP until the sender stops.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (p *Peer) CreateOffer(context.Context) (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

func (p *Peer) CreateAnswer(context.Context) (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *Peer) SetLocalDescription(_ context.Context, desc webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(desc)
}

func (p *Peer) SetRemoteDescription(_ context.Context, desc webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

func (p *Peer) Rollback(context.Context) error {
	return p.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback})
}

func (p *Peer) AddICECandidate(c protocol.Candidate) error {
	return p.pc.AddICECandidate(c.ToPion())
}

func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.pc.Close()
		if p.closeErr != nil {
			p.log.Error().Err(p.closeErr).Msg("close error")
		} else {
			p.log.Info().Msg("closed")
		}
	})
	return p.closeErr
}
