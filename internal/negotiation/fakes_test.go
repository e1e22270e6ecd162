package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/Duet/internal/protocol"
	"github.com/pion/webrtc/v4"
)

type fakeMedia struct {
	closed atomic.Int32
}

func (m *fakeMedia) Tracks() []webrtc.TrackLocal { return nil }
func (m *fakeMedia) Close() error                { m.closed.Add(1); return nil }

type fakeSource struct {
	media *fakeMedia
	err   error
	gate  chan struct{}
	calls atomic.Int32
}

func (f *fakeSource) Acquire(ctx context.Context) (LocalMedia, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.media, nil
}

type fakeTrack struct{ id string }

func (t fakeTrack) ID() string                { return t.id }
func (t fakeTrack) Kind() webrtc.RTPCodecType { return webrtc.RTPCodecTypeAudio }

// fakePeer emits `candidates` local candidates on every SetLocalDescription
// and, with autoTrack, one remote track once both descriptions are set.
type fakePeer struct {
	name       string
	candidates int
	autoTrack  bool

	mu      sync.Mutex
	events  PeerEvents
	calls   []string
	applied []string
	local   *webrtc.SessionDescription
	remote  *webrtc.SessionDescription
	closed  int
	emitted int
	fired   bool
}

func (p *fakePeer) record(call string) {
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
}

func (p *fakePeer) AddLocalMedia(LocalMedia) error {
	p.record("add_media")
	return nil
}

func (p *fakePeer) CreateOffer(context.Context) (webrtc.SessionDescription, error) {
	p.record("create_offer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: p.name + "-offer"}, nil
}

func (p *fakePeer) CreateAnswer(context.Context) (webrtc.SessionDescription, error) {
	p.record("create_answer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: p.name + "-answer"}, nil
}

func (p *fakePeer) SetLocalDescription(_ context.Context, desc webrtc.SessionDescription) error {
	p.record("set_local")
	p.mu.Lock()
	p.local = &desc
	var cands []*protocol.Candidate
	for range p.candidates {
		cands = append(cands, &protocol.Candidate{Candidate: fmt.Sprintf("%s-%d", p.name, p.emitted)})
		p.emitted++
	}
	events := p.events
	p.mu.Unlock()

	for _, c := range cands {
		events.OnICECandidate(c)
	}
	p.maybeTrack()
	return nil
}

func (p *fakePeer) SetRemoteDescription(_ context.Context, desc webrtc.SessionDescription) error {
	p.record("set_remote")
	p.mu.Lock()
	p.remote = &desc
	p.mu.Unlock()
	p.maybeTrack()
	return nil
}

func (p *fakePeer) maybeTrack() {
	p.mu.Lock()
	fire := p.autoTrack && !p.fired && p.local != nil && p.remote != nil
	if fire {
		p.fired = true
	}
	events := p.events
	p.mu.Unlock()
	if fire {
		events.OnTrack(fakeTrack{id: p.name + "-remote"})
	}
}

func (p *fakePeer) Rollback(context.Context) error {
	p.record("rollback")
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.local == nil || p.local.Type != webrtc.SDPTypeOffer {
		return errors.New("nothing to roll back")
	}
	p.local = nil
	return nil
}

func (p *fakePeer) AddICECandidate(c protocol.Candidate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return errors.New("remote description not set")
	}
	p.applied = append(p.applied, c.Candidate)
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closed++
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) snapshot() (calls, applied []string, closed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...), append([]string(nil), p.applied...), p.closed
}

func (p *fakePeer) emit() PeerEvents {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events
}

type fakeFactory struct {
	peer  *fakePeer
	calls atomic.Int32
}

func (f *fakeFactory) NewPeer(_ context.Context, events PeerEvents) (PeerConnection, error) {
	f.calls.Add(1)
	f.peer.mu.Lock()
	f.peer.events = events
	f.peer.mu.Unlock()
	return f.peer, nil
}

type recordingSignaler struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (r *recordingSignaler) Send(msg protocol.Message) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	return nil
}

func (r *recordingSignaler) sent() []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Message(nil), r.msgs...)
}

// link forwards one session's output into another, optionally holding
// messages back until released.
type link struct {
	mu      sync.Mutex
	target  *Session
	holding bool
	held    []protocol.Message
}

func (l *link) Send(msg protocol.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holding {
		l.held = append(l.held, msg)
		return nil
	}
	l.target.HandleMessage(msg)
	return nil
}

func (l *link) heldCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

func (l *link) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range l.held {
		l.target.HandleMessage(msg)
	}
	l.held = nil
	l.holding = false
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) observe(s State, _ error) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *stateLog) get() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	waitFor(t, "state "+want.String(), func() bool { return s.State() == want })
}
