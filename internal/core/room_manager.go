package core

import (
	"sync"

	"github.com/dkeye/Duet/internal/domain"
)

// roomManager maps room ids to live rooms. The map lock only guards lookup and
// creation; admission runs under each room's own lock, so disjoint rooms never
// contend beyond the map access.
//
// Lock order is room.mu -> roomManager.mu (retire); the manager never waits on a
// room lock while holding its own.
type roomManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomImpl
}

func NewRoomManager() RoomManager {
	return &roomManager{rooms: make(map[domain.RoomID]*roomImpl)}
}

func (m *roomManager) getOrCreate(id domain.RoomID) *roomImpl {
	m.mu.RLock()
	room, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok {
		return room
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok = m.rooms[id]; ok {
		return room
	}
	room = newRoom(id)
	m.rooms[id] = room
	return room
}

func (m *roomManager) Join(id domain.RoomID, sid SessionID, ms MemberSession) JoinResult {
	for {
		res, err := m.getOrCreate(id).admit(sid, ms)
		if err == nil {
			return res
		}
		// The room emptied between lookup and admit and is already gone from
		// the map; the next lookup creates a fresh one.
	}
}

func (m *roomManager) Leave(id domain.RoomID, sid SessionID) ([]SessionID, bool) {
	m.mu.RLock()
	room, ok := m.rooms[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return room.remove(sid, func() {
		m.mu.Lock()
		if m.rooms[id] == room {
			delete(m.rooms, id)
		}
		m.mu.Unlock()
	})
}

func (m *roomManager) GetRoom(id domain.RoomID) (RoomService, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, false
	}
	return room, true
}

func (m *roomManager) List() []RoomInfo {
	m.mu.RLock()
	rooms := make([]*roomImpl, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomInfo{ID: r.id, MemberCount: r.MemberCount()})
	}
	return out
}
