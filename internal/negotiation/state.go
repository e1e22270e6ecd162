package negotiation

// State is the per-participant negotiation state.
type State int

const (
	Idle State = iota
	AwaitingMedia
	Offering
	Answering
	Connected
	Failed
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingMedia:
		return "awaiting_media"
	case Offering:
		return "offering"
	case Answering:
		return "answering"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	case Ended:
		return "ended"
	}
	return "unknown"
}

// Terminal states ignore every further input.
func (s State) Terminal() bool {
	return s == Failed || s == Ended
}

func (s State) rank() int {
	switch s {
	case Idle:
		return 0
	case AwaitingMedia:
		return 1
	case Offering, Answering:
		return 2
	case Connected:
		return 3
	}
	return 4
}

// canTransition enforces forward-only progress. Failed and Ended are reachable
// from any live state; Offering may yield to Answering when losing glare.
func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case Failed, Ended:
		return true
	case Connected:
		return from == Offering || from == Answering
	}
	if from == Offering && to == Answering {
		return true
	}
	return to.rank() > from.rank()
}
