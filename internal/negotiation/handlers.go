package negotiation

import (
	"errors"
	"strings"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/pion/webrtc/v4"
)

func (s *Session) dispatch(ev event) {
	switch ev.kind {
	case evStart:
		s.onStart()
	case evRole:
		s.onRole(ev.role)
	case evMessage:
		s.onMessage(ev.msg)
	case evLocalCandidate:
		s.onLocalCandidate(ev.cand)
	case evTrack:
		s.onTrack(ev.track)
	case evPeerState:
		s.onPeerState(ev.state)
	case evTimeout:
		s.onTimeout()
	}
}

func (s *Session) onMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.KindStartCall:
		s.onStart()
	case protocol.KindOffer:
		s.onOffer(msg.SDP, msg.Role)
	case protocol.KindAnswer:
		s.onAnswer(msg.SDP)
	case protocol.KindICECandidate:
		if msg.Candidate == nil {
			s.fail(newNegotiationError("add ice candidate", ErrMalformedPayload))
			return
		}
		s.onRemoteCandidate(*msg.Candidate)
	case protocol.KindRoomCreated, protocol.KindRoomJoined:
		s.onRole(msg.Role)
	case protocol.KindPeerLeft:
		s.onRole(msg.Role)
		s.log.Info().Msg("peer left")
		s.End()
	default:
		s.log.Debug().Str("type", string(msg.Type)).Msg("message ignored")
	}
}

func (s *Session) onRole(role domain.Role) {
	if !role.Valid() {
		return
	}
	s.role = role
	s.log.Debug().Str("role", string(role)).Msg("role set")
}

func (s *Session) onStart() {
	if st := s.State(); st != Idle {
		s.log.Debug().Str("state", st.String()).Msg("start ignored")
		return
	}
	if !s.prepare() {
		return
	}
	if !s.transition(Offering, nil) {
		return
	}

	offer, err := s.pc.CreateOffer(s.ctx)
	if err != nil {
		s.failStep("create offer", err)
		return
	}
	if err := s.pc.SetLocalDescription(s.ctx, offer); err != nil {
		s.failStep("set local description", err)
		return
	}
	s.localDescSet = true
	s.localOffer = offer.SDP

	msg := protocol.Offer(s.cfg.Room, offer.SDP)
	msg.Role = s.role
	if !s.send(msg) {
		return
	}
	s.flushLocal()
}

// prepare acquires media and builds the peer connection. It reports false
// when the session failed or ended meanwhile.
func (s *Session) prepare() bool {
	if !s.transition(AwaitingMedia, nil) {
		return false
	}

	media, err := s.cfg.Media.Acquire(s.ctx)
	if err != nil {
		if s.ctx.Err() == nil {
			s.fail(NewMediaAccessError(err))
		}
		return false
	}
	if !s.res.holdMedia(media) {
		return false
	}
	s.media = media

	pc, err := s.cfg.Peers.NewPeer(s.ctx, PeerEvents{
		OnICECandidate: func(c *protocol.Candidate) {
			s.enqueue(event{kind: evLocalCandidate, cand: c})
		},
		OnTrack: func(t RemoteTrack) {
			s.enqueue(event{kind: evTrack, track: t})
		},
		OnConnectionState: func(st webrtc.PeerConnectionState) {
			s.enqueue(event{kind: evPeerState, state: st})
		},
	})
	if err != nil {
		s.failStep("create peer connection", err)
		return false
	}
	if !s.res.holdPeer(pc) {
		return false
	}
	s.pc = pc

	if err := pc.AddLocalMedia(media); err != nil {
		s.failStep("add local media", err)
		return false
	}
	return true
}

func (s *Session) onOffer(sdp string, peerRole domain.Role) {
	switch st := s.State(); st {
	case Idle:
		if !s.prepare() {
			return
		}
	case Offering:
		yield, ok := yieldsTo(s.role, s.localOffer, peerRole, sdp)
		if !ok {
			s.fail(newNegotiationError("resolve glare", ErrUnresolvedGlare))
			return
		}
		if !yield {
			s.log.Info().Str("role", string(s.role)).Str("peer_role", string(peerRole)).Msg("colliding offer ignored, peer yields")
			return
		}
		s.log.Info().Str("role", string(s.role)).Str("peer_role", string(peerRole)).Msg("colliding offer, rolling back local offer")
		if err := s.pc.Rollback(s.ctx); err != nil {
			s.failStep("rollback", err)
			return
		}
		s.localDescSet = false
		s.localOffer = ""
	default:
		s.log.Debug().Str("state", st.String()).Msg("offer ignored")
		return
	}

	if !s.transition(Answering, nil) {
		return
	}
	if !s.applyRemote(webrtc.SDPTypeOffer, sdp) {
		return
	}

	answer, err := s.pc.CreateAnswer(s.ctx)
	if err != nil {
		s.failStep("create answer", err)
		return
	}
	if err := s.pc.SetLocalDescription(s.ctx, answer); err != nil {
		s.failStep("set local description", err)
		return
	}
	s.localDescSet = true
	if !s.send(protocol.Answer(s.cfg.Room, answer.SDP)) {
		return
	}
	s.flushLocal()
	s.maybeConnected()
}

func (s *Session) onAnswer(sdp string) {
	if st := s.State(); st != Offering || s.answerApplied {
		s.log.Debug().Str("state", st.String()).Msg("answer ignored")
		return
	}
	if !s.applyRemote(webrtc.SDPTypeAnswer, sdp) {
		return
	}
	s.answerApplied = true
	s.maybeConnected()
}

// yieldsTo decides which side of colliding offers rolls back. Distinct
// roles decide: the responder yields. Otherwise the side with the lower offer
// SDP yields; both peers compare the same pair of strings, so exactly one does.
// ok is false only when the offers are identical.
func yieldsTo(role domain.Role, localSDP string, peerRole domain.Role, peerSDP string) (yield, ok bool) {
	if role.Valid() && peerRole.Valid() && role != peerRole {
		return role == domain.RoleResponder, true
	}
	switch strings.Compare(localSDP, peerSDP) {
	case -1:
		return true, true
	case 1:
		return false, true
	}
	return false, false
}

// applyRemote sets the remote description and drains candidates that
// arrived before it, in arrival order.
func (s *Session) applyRemote(typ webrtc.SDPType, sdp string) bool {
	desc := webrtc.SessionDescription{Type: typ, SDP: sdp}
	if err := s.pc.SetRemoteDescription(s.ctx, desc); err != nil {
		s.failStep("set remote description", err)
		return false
	}
	s.remoteDescSet = true

	pending := s.pendingRemote
	s.pendingRemote = nil
	for _, c := range pending {
		if err := s.pc.AddICECandidate(c); err != nil {
			s.failStep("add ice candidate", err)
			return false
		}
	}
	if len(pending) > 0 {
		s.log.Debug().Int("count", len(pending)).Msg("buffered remote candidates applied")
	}
	return true
}

func (s *Session) onRemoteCandidate(c protocol.Candidate) {
	if c.Candidate == "" {
		s.log.Debug().Msg("remote end of candidates")
		return
	}
	if s.pc == nil || !s.remoteDescSet {
		s.pendingRemote = append(s.pendingRemote, c)
		return
	}
	if err := s.pc.AddICECandidate(c); err != nil {
		s.failStep("add ice candidate", err)
	}
}

func (s *Session) onLocalCandidate(c *protocol.Candidate) {
	if c == nil {
		s.log.Debug().Msg("ice gathering complete")
		return
	}
	if !s.localDescSet {
		s.pendingLocal = append(s.pendingLocal, c)
		return
	}
	s.send(protocol.ICECandidate(s.cfg.Room, c))
}

func (s *Session) flushLocal() {
	pending := s.pendingLocal
	s.pendingLocal = nil
	for _, c := range pending {
		if !s.send(protocol.ICECandidate(s.cfg.Room, c)) {
			return
		}
	}
}

func (s *Session) onTrack(t RemoteTrack) {
	s.mu.Lock()
	s.tracks = append(s.tracks, t)
	s.mu.Unlock()
	s.log.Info().Str("track", t.ID()).Str("kind", t.Kind().String()).Msg("remote track")
	s.trackSeen = true
	s.maybeConnected()
}

func (s *Session) maybeConnected() {
	if !s.trackSeen {
		return
	}
	switch s.State() {
	case Offering:
		if !s.answerApplied {
			return
		}
	case Answering:
		if !s.localDescSet {
			return
		}
	default:
		return
	}
	s.transition(Connected, nil)
}

func (s *Session) onPeerState(st webrtc.PeerConnectionState) {
	s.log.Debug().Str("peer_state", st.String()).Msg("peer connection state")
	switch st {
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		s.fail(&NegotiationError{Op: "peer connection", Err: ErrPeerConnection, Details: st.String()})
	}
}

func (s *Session) onTimeout() {
	if st := s.State(); st == Connected || st.Terminal() {
		return
	}
	s.fail(ErrNegotiationTimeout)
}

func (s *Session) send(msg protocol.Message) bool {
	err := s.cfg.Signaler.Send(msg)
	if err == nil {
		return true
	}
	if s.ctx.Err() != nil {
		return false
	}
	var sce *SignalingConnectionError
	if !errors.As(err, &sce) {
		err = &SignalingConnectionError{Op: "send " + string(msg.Type), Err: err}
	}
	s.fail(err)
	return false
}
