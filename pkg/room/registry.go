package room

import (
	"sort"
	"sync"
)

// MemberSnapshot is one entry of a room's membership list as broadcast to clients.
type MemberSnapshot struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Registry tracks which member identities are present in which room.
// It is pure bookkeeping: no I/O, no notifications. The relay is responsible
// for broadcasting membership changes after calling Join or Leave.
type Registry struct {
	mu sync.RWMutex
	// rooms maps room name -> member id -> display name.
	rooms map[string]map[string]string
	// memberRoom maps member id -> room name, so Leave does not need the room.
	memberRoom map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:      make(map[string]map[string]string),
		memberRoom: make(map[string]string),
	}
}

// Join adds the member to the room and returns the room's full membership
// snapshot, including the member itself. Joining a room the member is already
// in only refreshes the display name. A member can be in one room at a time;
// joining a second room moves it.
func (r *Registry) Join(roomName, memberID, displayName string) []MemberSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.memberRoom[memberID]; ok && prev != roomName {
		r.removeLocked(memberID, prev)
	}

	members, ok := r.rooms[roomName]
	if !ok {
		members = make(map[string]string)
		r.rooms[roomName] = members
	}
	members[memberID] = displayName
	r.memberRoom[memberID] = roomName

	return snapshotLocked(members)
}

// Leave removes the member from whichever room it is in and reports that
// room's name. It is a no-op for unknown members.
func (r *Registry) Leave(memberID string) (roomName string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomName, ok = r.memberRoom[memberID]
	if !ok {
		return "", false
	}
	r.removeLocked(memberID, roomName)
	return roomName, true
}

// ListMembers returns a snapshot of the room's membership. Unknown rooms
// behave as empty sets.
func (r *Registry) ListMembers(roomName string) []MemberSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshotLocked(r.rooms[roomName])
}

func (r *Registry) removeLocked(memberID, roomName string) {
	delete(r.memberRoom, memberID)
	if members, ok := r.rooms[roomName]; ok {
		delete(members, memberID)
		if len(members) == 0 {
			delete(r.rooms, roomName)
		}
	}
}

func snapshotLocked(members map[string]string) []MemberSnapshot {
	snapshot := make([]MemberSnapshot, 0, len(members))
	for id, name := range members {
		snapshot = append(snapshot, MemberSnapshot{ID: id, DisplayName: name})
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID < snapshot[j].ID })
	return snapshot
}
