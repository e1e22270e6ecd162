package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dkeye/Duet/internal/domain"
)

const signalPath = "/api/ws/signal"

var ErrNoRoomInLink = errors.New("link has no room parameter")

// parseTarget accepts a bare room id or a share link such as
// http://host:8080/?room=abc. For links it also returns the websocket URL
// of the server that issued it.
func parseTarget(arg string) (room, serverURL string, err error) {
	if !strings.Contains(arg, "://") {
		return arg, "", nil
	}
	u, err := url.Parse(arg)
	if err != nil {
		return "", "", fmt.Errorf("invalid link: %w", err)
	}
	room = u.Query().Get("room")
	if strings.TrimSpace(room) == "" {
		return "", "", ErrNoRoomInLink
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", "", fmt.Errorf("unsupported link scheme %q", u.Scheme)
	}
	u.Path = signalPath
	u.RawQuery = ""
	u.Fragment = ""
	return room, u.String(), nil
}

// shareLink is the page URL a browser participant opens to join room.
func shareLink(serverURL string, room domain.RoomID) string {
	u, err := url.Parse(serverURL)
	if err != nil {
		return string(room)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = "/"
	u.RawQuery = url.Values{"room": {string(room)}}.Encode()
	return u.String()
}
