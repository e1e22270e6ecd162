package core

import (
	"sync"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

type seat struct {
	sid SessionID
	ms  MemberSession
}

// roomImpl is a threadsafe in-memory room of at most MaxSeats members.
// Seat order is join order; seat 0 is the initiator.
// It never closes adapter-owned resources.
type roomImpl struct {
	id      domain.RoomID
	mu      sync.Mutex
	seats   []seat
	retired bool
}

func newRoom(id domain.RoomID) *roomImpl {
	return &roomImpl{id: id, seats: make([]seat, 0, MaxSeats)}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seats)
}

func (r *roomImpl) Members() []SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SessionID, 0, len(r.seats))
	for _, s := range r.seats {
		out = append(out, s.sid)
	}
	return out
}

func (r *roomImpl) RoleOf(sid SessionID) (domain.Role, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(sid); i >= 0 {
		return roleAt(i), true
	}
	return domain.RoleNone, false
}

// admit decides and records admission under the room lock.
func (r *roomImpl) admit(sid SessionID, ms MemberSession) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retired {
		return JoinResult{}, ErrRoomRetired
	}
	if i := r.indexLocked(sid); i >= 0 {
		return JoinResult{Room: r.id, Outcome: outcomeAt(i), Role: roleAt(i)}, nil
	}
	if len(r.seats) >= MaxSeats {
		return JoinResult{Room: r.id, Outcome: Rejected}, nil
	}
	i := len(r.seats)
	r.seats = append(r.seats, seat{sid: sid, ms: ms})
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(sid)).Int("seat", i).Msg("member admitted")
	return JoinResult{Room: r.id, Outcome: outcomeAt(i), Role: roleAt(i)}, nil
}

// remove frees sid's seat. When the room empties it is retired inside the same
// critical section, and retire runs while the room lock is still held.
func (r *roomImpl) remove(sid SessionID, retire func()) ([]SessionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexLocked(sid)
	if i < 0 {
		return nil, false
	}
	r.seats = append(r.seats[:i], r.seats[i+1:]...)
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(sid)).Msg("member removed")

	remaining := make([]SessionID, 0, len(r.seats))
	for _, s := range r.seats {
		remaining = append(remaining, s.sid)
	}
	if len(r.seats) == 0 {
		r.retired = true
		retire()
	}
	return remaining, true
}

// Broadcast delivers data to every member except the sender.
// The sender must hold a seat; routing never leaves this room.
func (r *roomImpl) Broadcast(from SessionID, data Frame) (PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := PublishResult{}
	if r.indexLocked(from) < 0 {
		return res, ErrNotInRoom
	}
	for _, s := range r.seats {
		if s.sid == from {
			continue
		}
		if err := s.ms.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, s.ms)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res, nil
}

func (r *roomImpl) indexLocked(sid SessionID) int {
	for i, s := range r.seats {
		if s.sid == sid {
			return i
		}
	}
	return -1
}

func roleAt(i int) domain.Role {
	if i == 0 {
		return domain.RoleInitiator
	}
	return domain.RoleResponder
}

func outcomeAt(i int) JoinOutcome {
	if i == 0 {
		return Created
	}
	return Joined
}
