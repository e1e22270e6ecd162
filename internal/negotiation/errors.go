package negotiation

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied   = errors.New("permission denied")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrDeviceBusy         = errors.New("device busy")
	ErrOverconstrained    = errors.New("constraints unsatisfiable")
	ErrMediaUnavailable   = errors.New("media unavailable")
	ErrNegotiationTimeout = errors.New("negotiation timed out")
	ErrPeerConnection     = errors.New("peer connection failed")
	ErrMalformedPayload   = errors.New("malformed payload")
	ErrUnresolvedGlare    = errors.New("colliding offers are identical")
)

// MediaAccessError aborts a call before any signaling message is sent.
type MediaAccessError struct {
	Reason error
	Err    error
}

func NewMediaAccessError(err error) *MediaAccessError {
	reason := ErrMediaUnavailable
	for _, r := range []error{ErrPermissionDenied, ErrDeviceNotFound, ErrDeviceBusy, ErrOverconstrained} {
		if errors.Is(err, r) {
			reason = r
			break
		}
	}
	return &MediaAccessError{Reason: reason, Err: err}
}

func (e *MediaAccessError) Error() string {
	return fmt.Sprintf("media access: %v", e.Err)
}

func (e *MediaAccessError) Unwrap() []error {
	return []error{e.Reason, e.Err}
}

// UserMessage is the category-specific text shown to the user.
func (e *MediaAccessError) UserMessage() string {
	switch e.Reason {
	case ErrPermissionDenied:
		return "Camera or microphone permission denied. Allow access and try again."
	case ErrDeviceNotFound:
		return "No camera or microphone found. Connect a device and try again."
	case ErrDeviceBusy:
		return "Your camera or microphone is already in use by another application."
	case ErrOverconstrained:
		return "The requested camera or microphone settings are not available on your device."
	}
	return "Failed to access camera and microphone."
}

// SignalingConnectionError is a transport-level failure towards the signaling server.
type SignalingConnectionError struct {
	Op  string
	Err error
}

func (e *SignalingConnectionError) Error() string {
	return fmt.Sprintf("signaling %s: %v", e.Op, e.Err)
}

func (e *SignalingConnectionError) Unwrap() error { return e.Err }

// RoomFullError is the client view of a full_room reply.
type RoomFullError struct {
	Room string
}

func (e *RoomFullError) Error() string {
	return fmt.Sprintf("room %q is full, choose another room", e.Room)
}

// NegotiationError wraps a failed offer/answer/candidate step.
type NegotiationError struct {
	Op      string
	Err     error
	Details string
}

func (e *NegotiationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }

func newNegotiationError(op string, err error) *NegotiationError {
	return &NegotiationError{Op: op, Err: err}
}
