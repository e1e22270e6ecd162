// Package negotiation drives one participant's side of a call: media
// acquisition, offer/answer exchange and ICE candidate delivery.
package negotiation

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout = 30 * time.Second
	eventBuffer    = 64
)

type Config struct {
	Room string
	// Role decides glare: the responder yields. Usually set later from
	// room_created / room_joined. Without distinct roles the lower offer yields.
	Role domain.Role
	// Timeout bounds the way from Idle to Connected. Zero disables it.
	Timeout  time.Duration
	Media    MediaSource
	Peers    PeerFactory
	Signaler Signaler
}

type eventKind int

const (
	evStart eventKind = iota
	evRole
	evMessage
	evLocalCandidate
	evTrack
	evPeerState
	evTimeout
)

type event struct {
	kind  eventKind
	msg   protocol.Message
	cand  *protocol.Candidate
	track RemoteTrack
	state webrtc.PeerConnectionState
	role  domain.Role
}

// Session is a single negotiation attempt. Inputs are applied one at a time
// on the session goroutine, in arrival order.
type Session struct {
	cfg      Config
	log      zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	events   chan event
	finished chan struct{}
	started  sync.Once

	mu        sync.Mutex
	state     State
	err       error
	listeners []func(State, error)
	timer     *time.Timer
	tracks    []RemoteTrack

	res resources

	// owned by the session goroutine
	role          domain.Role
	pc            PeerConnection
	media         LocalMedia
	localDescSet  bool
	remoteDescSet bool
	answerApplied bool
	localOffer    string
	trackSeen     bool
	pendingRemote []protocol.Candidate
	pendingLocal  []*protocol.Candidate
}

func NewSession(cfg Config) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:      cfg,
		log:      log.With().Str("module", "negotiation").Str("room", cfg.Room).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan event, eventBuffer),
		finished: make(chan struct{}),
		role:     cfg.Role,
	}
}

// Start launches the session goroutine. Canceling ctx ends the session.
func (s *Session) Start(ctx context.Context) {
	s.started.Do(func() {
		context.AfterFunc(ctx, s.End)
		go s.run()
	})
}

func (s *Session) OnStateChange(fn func(State, error)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err is the cause of Failed, nil otherwise.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the session reaches Failed or Ended.
func (s *Session) Done() <-chan struct{} { return s.finished }

func (s *Session) RemoteTracks() []RemoteTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tracks)
}

// StartCall is the local intent to call: acquire media and send an offer.
func (s *Session) StartCall() { s.enqueue(event{kind: evStart}) }

func (s *Session) SetRole(role domain.Role) { s.enqueue(event{kind: evRole, role: role}) }

// HandleMessage feeds a message received from the signaling server.
func (s *Session) HandleMessage(msg protocol.Message) {
	s.enqueue(event{kind: evMessage, msg: msg})
}

// End moves the session to Ended and releases media and the peer connection.
// Safe to call from any goroutine, any number of times.
func (s *Session) End() {
	s.transition(Ended, nil)
	s.teardown()
}

// Fail moves the session to Failed with err, e.g. when signaling is lost
// before the call connected.
func (s *Session) Fail(err error) { s.fail(err) }

// Close is End reporting the release error.
func (s *Session) Close() error {
	s.transition(Ended, nil)
	return s.teardown()
}

func (s *Session) enqueue(ev event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Session) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			if s.ctx.Err() != nil {
				return
			}
			s.dispatch(ev)
		}
	}
}

func (s *Session) transition(to State, cause error) bool {
	s.mu.Lock()
	from := s.state
	if !canTransition(from, to) {
		s.mu.Unlock()
		if !from.Terminal() {
			s.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("transition refused")
		}
		return false
	}
	s.state = to
	s.err = cause
	if from == Idle && s.cfg.Timeout > 0 && to != Connected && !to.Terminal() {
		s.timer = time.AfterFunc(s.cfg.Timeout, func() { s.enqueue(event{kind: evTimeout}) })
	}
	if (to == Connected || to.Terminal()) && s.timer != nil {
		s.timer.Stop()
	}
	if to.Terminal() {
		close(s.finished)
	}
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	ev := s.log.Info()
	if cause != nil {
		ev = s.log.Warn().Err(cause)
	}
	ev.Str("from", from.String()).Str("to", to.String()).Msg("state changed")
	for _, fn := range listeners {
		fn(to, cause)
	}
	return true
}

func (s *Session) fail(err error) {
	if s.transition(Failed, err) {
		s.teardown()
	}
}

// failStep fails the session unless the error is the fallout of an earlier teardown.
func (s *Session) failStep(op string, err error) {
	if s.ctx.Err() != nil {
		return
	}
	s.fail(newNegotiationError(op, err))
}

func (s *Session) teardown() error {
	s.cancel()
	s.mu.Lock()
	s.tracks = nil
	s.mu.Unlock()
	return s.res.release()
}

// resources owns what must be released exactly once. Anything handed over
// after release is closed on the spot.
type resources struct {
	mu       sync.Mutex
	released bool
	media    LocalMedia
	peer     PeerConnection
}

func (r *resources) holdMedia(m LocalMedia) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		_ = m.Close()
		return false
	}
	r.media = m
	return true
}

func (r *resources) holdPeer(pc PeerConnection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		_ = pc.Close()
		return false
	}
	r.peer = pc
	return true
}

func (r *resources) release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil
	}
	r.released = true

	var errs []error
	if r.peer != nil {
		errs = append(errs, r.peer.Close())
	}
	if r.media != nil {
		errs = append(errs, r.media.Close())
	}
	r.peer, r.media = nil, nil
	return errors.Join(errs...)
}
