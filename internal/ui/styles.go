// Package ui renders call status for the peer CLI.
package ui

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/dkeye/Duet/internal/client"
	"github.com/dkeye/Duet/internal/negotiation"
)

var (
	Primary = lipgloss.Color("#22d3ee")
	Success = lipgloss.Color("#10B981")
	Warning = lipgloss.Color("#F59E0B")
	Error   = lipgloss.Color("#EF4444")
	Muted   = lipgloss.Color("#6B7280")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	RoomStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 2)
)

// StateLabel is the human text for a negotiation state.
func StateLabel(s negotiation.State) string {
	switch s {
	case negotiation.Idle:
		return "Waiting for peer"
	case negotiation.AwaitingMedia:
		return "Starting media"
	case negotiation.Offering:
		return "Calling"
	case negotiation.Answering:
		return "Answering"
	case negotiation.Connected:
		return "Connected"
	case negotiation.Failed:
		return "Call failed"
	case negotiation.Ended:
		return "Call ended"
	}
	return s.String()
}

func StateStyle(s negotiation.State) lipgloss.Style {
	switch s {
	case negotiation.Connected:
		return SuccessStyle
	case negotiation.Failed:
		return ErrorStyle
	case negotiation.Ended:
		return MutedStyle
	}
	return WarningStyle
}

// Describe turns a call error into a message for the user.
func Describe(err error) string {
	var mae *negotiation.MediaAccessError
	var full *negotiation.RoomFullError
	var sce *negotiation.SignalingConnectionError
	switch {
	case errors.As(err, &mae):
		return mae.UserMessage()
	case errors.As(err, &full):
		return full.Error()
	case errors.As(err, &sce):
		return "Lost connection to the signaling server. Check your network and try again."
	case errors.Is(err, negotiation.ErrNegotiationTimeout):
		return "The call could not be established in time."
	case errors.Is(err, client.ErrRejected):
		return fmt.Sprintf("The server refused the request (%v).", err)
	}
	return err.Error()
}

func PrintState(w io.Writer, s negotiation.State) {
	fmt.Fprintln(w, StateStyle(s).Render("● "+StateLabel(s)))
}

func PrintRoom(w io.Writer, room, role string) {
	fmt.Fprintln(w, RoomStyle.Render(TitleStyle.Render("Room ")+room+MutedStyle.Render("  as "+role)))
}

func PrintError(w io.Writer, err error) {
	fmt.Fprintln(w, ErrorStyle.Render("✗ "+Describe(err)))
}
