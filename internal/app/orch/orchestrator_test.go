package orch

import (
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Duet/internal/app"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/dkeye/Duet/internal/protocol"
)

var errBackpressure = errors.New("backpressure")

type recordingSignal struct {
	mu     sync.Mutex
	frames []protocol.Message
	full   bool
}

func (s *recordingSignal) TrySend(f core.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return errBackpressure
	}
	msg, err := protocol.Decode(f)
	if err != nil {
		return err
	}
	s.frames = append(s.frames, msg)
	return nil
}

func (s *recordingSignal) Close() {}

func (s *recordingSignal) messages() []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Message(nil), s.frames...)
}

type harness struct {
	o       *Orchestrator
	signals map[core.SessionID]*recordingSignal
	cancels map[core.SessionID]int
}

func newHarness(t *testing.T, policy app.Policy) *harness {
	t.Helper()
	return &harness{
		o:       New(app.NewRegistry(), core.NewRoomManager(), policy),
		signals: make(map[core.SessionID]*recordingSignal),
		cancels: make(map[core.SessionID]int),
	}
}

func (h *harness) connect(sid core.SessionID) *recordingSignal {
	sig := &recordingSignal{}
	h.signals[sid] = sig
	h.o.Registry.Register(sid, core.NewMemberSession(domain.NewMember("", ""), sig), func() { h.cancels[sid]++ })
	return sig
}

func (h *harness) join(t *testing.T, sid core.SessionID, room string) core.JoinOutcome {
	t.Helper()
	res, err := h.o.Join(sid, room)
	if err != nil {
		t.Fatalf("Join(%s, %q): %v", sid, room, err)
	}
	return res.Outcome
}

func TestJoin_ThirdJoinerRejected(t *testing.T) {
	h := newHarness(t, nil)
	for _, sid := range []core.SessionID{"A", "B", "C"} {
		h.connect(sid)
	}
	if got := h.join(t, "A", "room1"); got != core.Created {
		t.Fatalf("A=%v, want created", got)
	}
	if got := h.join(t, "B", " room1 "); got != core.Joined {
		t.Fatalf("B=%v, want joined", got)
	}
	if got := h.join(t, "C", "room1"); got != core.Rejected {
		t.Fatalf("C=%v, want rejected", got)
	}
	if _, _, ok := h.o.Registry.RoomOf("C"); ok {
		t.Fatalf("rejected connection must stay roomless")
	}
}

func TestJoin_CaseSensitivityIsConfigurable(t *testing.T) {
	h := newHarness(t, nil)
	h.connect("A")
	h.connect("B")
	h.join(t, "A", "Room1")
	if got := h.join(t, "B", "room1"); got != core.Created {
		t.Fatalf("case-sensitive: B=%v, want created in a distinct room", got)
	}

	h = newHarness(t, nil)
	h.o.FoldRoomCase = true
	h.connect("A")
	h.connect("B")
	h.join(t, "A", "Room1")
	if got := h.join(t, "B", "room1"); got != core.Joined {
		t.Fatalf("case-folded: B=%v, want joined", got)
	}
}

func TestJoin_Errors(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.o.Join("ghost", "room1"); !errors.Is(err, app.ErrUnknownConnection) {
		t.Fatalf("err=%v, want %v", err, app.ErrUnknownConnection)
	}
	h.connect("A")
	if _, err := h.o.Join("A", "   "); !errors.Is(err, domain.ErrEmptyRoomID) {
		t.Fatalf("err=%v, want %v", err, domain.ErrEmptyRoomID)
	}
}

func TestJoin_SwitchingRoomsFreesOldSeat(t *testing.T) {
	h := newHarness(t, nil)
	h.connect("A")
	h.connect("B")
	h.connect("C")
	h.join(t, "A", "room1")
	h.join(t, "B", "room1")
	h.join(t, "A", "room2")

	if got := h.join(t, "C", "room1"); got != core.Joined {
		t.Fatalf("C=%v, want joined after A moved away", got)
	}
	if room, _, _ := h.o.Registry.RoomOf("A"); room != "room2" {
		t.Fatalf("A room=%q, want room2", room)
	}
}

func TestRelay_DeliversOnlyToPeer(t *testing.T) {
	h := newHarness(t, nil)
	sigA := h.connect("A")
	sigB := h.connect("B")
	sigX := h.connect("X")
	sigY := h.connect("Y")
	h.join(t, "A", "room1")
	h.join(t, "B", "room1")
	h.join(t, "X", "room2")
	h.join(t, "Y", "room2")

	res, err := h.o.Relay("A", protocol.Offer("room1", "X-SDP"))
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if res.SendTo != 1 {
		t.Fatalf("SendTo=%d, want 1", res.SendTo)
	}
	got := sigB.messages()
	if len(got) != 1 || got[0].Type != protocol.KindOffer || got[0].SDP != "X-SDP" {
		t.Fatalf("B got %#v", got)
	}
	if len(sigA.messages()) != 0 || len(sigX.messages()) != 0 || len(sigY.messages()) != 0 {
		t.Fatalf("message leaked outside the receiving peer")
	}
}

func TestRelay_DropsSpoofedRoom(t *testing.T) {
	h := newHarness(t, nil)
	h.connect("A")
	sigX := h.connect("X")
	h.connect("Y")
	h.join(t, "A", "room1")
	h.join(t, "X", "room2")
	h.join(t, "Y", "room2")

	if _, err := h.o.Relay("A", protocol.Offer("room2", "evil")); !errors.Is(err, ErrRoomMismatch) {
		t.Fatalf("err=%v, want %v", err, ErrRoomMismatch)
	}
	if len(sigX.messages()) != 0 {
		t.Fatalf("spoofed message delivered across rooms")
	}
}

func TestRelay_DropsFromUnboundAndNonRelayable(t *testing.T) {
	h := newHarness(t, nil)
	h.connect("A")
	if _, err := h.o.Relay("A", protocol.StartCall("room1")); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("err=%v, want %v", err, ErrNotInRoom)
	}
	h.join(t, "A", "room1")
	if _, err := h.o.Relay("A", protocol.Join("room1")); !errors.Is(err, ErrNotRelayable) {
		t.Fatalf("err=%v, want %v", err, ErrNotRelayable)
	}
}

func TestRelay_AloneInRoomIsSilentDrop(t *testing.T) {
	h := newHarness(t, nil)
	sigA := h.connect("A")
	h.join(t, "A", "room1")
	res, err := h.o.Relay("A", protocol.StartCall("room1"))
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if res.SendTo != 0 || len(sigA.messages()) != 0 {
		t.Fatalf("unexpected delivery %+v", res)
	}
}

func TestRelay_KickPolicyCancelsSlowPeer(t *testing.T) {
	h := newHarness(t, app.KickPolicy{})
	h.connect("A")
	sigB := h.connect("B")
	h.join(t, "A", "room1")
	h.join(t, "B", "room1")
	sigB.full = true

	res, err := h.o.Relay("A", protocol.StartCall("room1"))
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if len(res.Dropped) != 1 {
		t.Fatalf("Dropped=%d, want 1", len(res.Dropped))
	}
	if h.cancels["B"] != 1 {
		t.Fatalf("B cancels=%d, want 1", h.cancels["B"])
	}
	if h.cancels["A"] != 0 {
		t.Fatalf("sender was canceled")
	}
}

func TestOnDisconnect_FreesSeatForNewJoiner(t *testing.T) {
	h := newHarness(t, nil)
	h.connect("A")
	sigB := h.connect("B")
	h.connect("D")
	h.join(t, "A", "room1")
	h.join(t, "B", "room1")

	h.o.OnDisconnect("A")

	room, ok := h.o.Rooms.GetRoom("room1")
	if !ok || room.MemberCount() != 1 {
		t.Fatalf("room1 should hold only B")
	}
	if got := h.join(t, "D", "room1"); got != core.Joined {
		t.Fatalf("D=%v, want joined", got)
	}
	if h.cancels["A"] != 1 {
		t.Fatalf("A cancels=%d, want 1", h.cancels["A"])
	}
	if _, ok := h.o.Registry.GetSession("A"); ok {
		t.Fatalf("A still registered")
	}
	if len(sigB.messages()) != 0 {
		t.Fatalf("peer notified although NotifyPeerLeft is off")
	}
}

func TestOnDisconnect_LastMemberRetiresRoom(t *testing.T) {
	h := newHarness(t, nil)
	h.connect("A")
	h.connect("E")
	h.join(t, "A", "room1")
	h.o.OnDisconnect("A")
	h.o.OnDisconnect("A")

	if got := h.join(t, "E", "room1"); got != core.Created {
		t.Fatalf("E=%v, want created", got)
	}
}

func TestOnDisconnect_NotifiesPeerWhenEnabled(t *testing.T) {
	h := newHarness(t, nil)
	h.o.NotifyPeerLeft = true
	h.connect("A")
	sigB := h.connect("B")
	h.join(t, "A", "room1")
	h.join(t, "B", "room1")

	h.o.OnDisconnect("A")

	got := sigB.messages()
	if len(got) != 1 || got[0].Type != protocol.KindPeerLeft || got[0].RoomID != "room1" {
		t.Fatalf("B got %#v", got)
	}
	if got[0].Role != domain.RoleInitiator {
		t.Fatalf("B role=%q, want initiator after A left", got[0].Role)
	}
}

func TestOnDisconnect_PeerLeftCarriesSeatOfSurvivor(t *testing.T) {
	cases := []struct {
		name     string
		leaving  core.SessionID
		survivor core.SessionID
	}{
		{name: "initiator leaves", leaving: "A", survivor: "B"},
		{name: "responder leaves", leaving: "B", survivor: "A"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.o.NotifyPeerLeft = true
			h.connect("A")
			h.connect("B")
			h.join(t, "A", "room1")
			h.join(t, "B", "room1")

			h.o.OnDisconnect(tc.leaving)

			got := h.signals[tc.survivor].messages()
			if len(got) != 1 || got[0].Role != domain.RoleInitiator {
				t.Fatalf("%s got %#v, want peer_left as initiator", tc.survivor, got)
			}

			h.connect("C")
			if out := h.join(t, "C", "room1"); out != core.Joined {
				t.Fatalf("C outcome=%v, want joined", out)
			}
		})
	}
}
