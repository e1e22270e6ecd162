package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Duet/internal/app"
	"github.com/dkeye/Duet/internal/app/orch"
	"github.com/dkeye/Duet/internal/config"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/protocol"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	cfg := &config.Config{
		Mode:       "release",
		StaticPath: t.TempDir(),
		ReadLimit:  64 * 1024,
		PingPeriod: 5 * time.Second,
		PongWait:   10 * time.Second,
		WriteWait:  time.Second,
		SendBuffer: 16,
		Secret:     "test-secret",
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	o := orch.New(app.NewRegistry(), core.NewRoomManager(), app.DropPolicy{})
	srv := httptest.NewServer(SetupRouter(ctx, cfg, o))
	t.Cleanup(srv.Close)
	return srv, o
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal" + query
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, msg protocol.Message) {
	t.Helper()
	b, err := protocol.Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
}

func recv(t *testing.T, ws *websocket.Conn) protocol.Message {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		t.Fatalf("Decode(%s): %v", data, err)
	}
	return msg
}

func expectSilence(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, data, err := ws.ReadMessage(); err == nil {
		t.Fatalf("unexpected message %s", data)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSignal_RoomAdmissionAndRelay(t *testing.T) {
	srv, o := newTestServer(t)

	a := dial(t, srv, "")
	send(t, a, protocol.Join("room1"))
	if got := recv(t, a); got.Type != protocol.KindRoomCreated || got.RoomID != "room1" || got.Role != "initiator" {
		t.Fatalf("A got %#v", got)
	}

	b := dial(t, srv, "?room=room1")
	if got := recv(t, b); got.Type != protocol.KindRoomJoined || got.Role != "responder" {
		t.Fatalf("B got %#v", got)
	}

	c := dial(t, srv, "")
	send(t, c, protocol.Join(" room1 "))
	if got := recv(t, c); got.Type != protocol.KindFullRoom || got.RoomID != "room1" {
		t.Fatalf("C got %#v", got)
	}

	send(t, a, protocol.Offer("room1", "X"))
	if got := recv(t, b); got.Type != protocol.KindOffer || got.SDP != "X" {
		t.Fatalf("B got %#v", got)
	}
	expectSilence(t, a)
	expectSilence(t, c)

	send(t, b, protocol.ICECandidate("room1", &protocol.Candidate{}))
	if got := recv(t, a); got.Type != protocol.KindICECandidate || got.Candidate == nil || got.Candidate.Candidate != "" {
		t.Fatalf("A got %#v, want end-of-candidates relayed", got)
	}
	expectSilence(t, b)

	_ = a.Close()
	waitFor(t, func() bool { return o.Registry.Count() == 2 })

	d := dial(t, srv, "")
	send(t, d, protocol.Join("room1"))
	if got := recv(t, d); got.Type != protocol.KindRoomJoined {
		t.Fatalf("D got %#v", got)
	}
}

func TestSignal_MalformedInputIsDroppedNotFatal(t *testing.T) {
	srv, _ := newTestServer(t)
	a := dial(t, srv, "")
	if err := a.WriteMessage(websocket.TextMessage, []byte(`{"type":"webrtc_offer"}`)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if got := recv(t, a); got.Type != protocol.KindError || got.Error != "bad_payload" {
		t.Fatalf("A got %#v", got)
	}

	send(t, a, protocol.Message{Type: protocol.KindPing})
	if got := recv(t, a); got.Type != protocol.KindPong {
		t.Fatalf("A got %#v after malformed input", got)
	}
}

func TestSignal_RelayFromUnboundConnectionDropped(t *testing.T) {
	srv, _ := newTestServer(t)
	a := dial(t, srv, "?room=room1")
	recv(t, a)
	b := dial(t, srv, "")
	send(t, b, protocol.Offer("room1", "spoof"))
	expectSilence(t, a)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d, want 200", resp.StatusCode)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("status=%q", body.Status)
	}
	if len(resp.Cookies()) == 0 {
		t.Fatalf("expected session cookie")
	}
}
