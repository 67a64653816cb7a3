package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Peer is one live transport connection.
type Peer interface {
	ID() string
	// Send queues a frame without blocking and reports whether it was
	// accepted.
	Send(frame []byte) bool
	Close()
}

type session struct {
	peer       Peer
	identity   *domain.Identity
	joined     map[string]struct{}
	lastActive time.Time
}

// Registry tracks connections, their identities and ticket rooms.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
	rooms    map[string]map[string]struct{}
	users    map[string]map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*session),
		rooms:    make(map[string]map[string]struct{}),
		users:    make(map[string]map[string]struct{}),
	}
}

// Add registers an unauthenticated connection.
func (r *Registry) Add(peer Peer, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[peer.ID()] = &session{
		peer:       peer,
		joined:     make(map[string]struct{}),
		lastActive: now,
	}
}

// Remove drops the connection and its memberships. It returns the tickets
// it had joined, its identity if any, and whether it was registered.
func (r *Registry) Remove(connID string) ([]string, *domain.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return nil, nil, false
	}
	delete(r.sessions, connID)

	tickets := make([]string, 0, len(s.joined))
	for ticketID := range s.joined {
		tickets = append(tickets, ticketID)
		r.leaveRoomLocked(connID, ticketID)
	}
	sort.Strings(tickets)

	if s.identity != nil {
		if conns, ok := r.users[s.identity.UserID]; ok {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(r.users, s.identity.UserID)
			}
		}
	}
	return tickets, s.identity, true
}

// Authenticate binds an identity to the connection once. It returns the
// bound identity and false when the connection is gone.
func (r *Registry) Authenticate(connID string, identity domain.Identity) (domain.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return domain.Identity{}, false
	}
	if s.identity != nil {
		return *s.identity, true
	}
	id := identity
	s.identity = &id
	if r.users[id.UserID] == nil {
		r.users[id.UserID] = make(map[string]struct{})
	}
	r.users[id.UserID][connID] = struct{}{}
	return id, true
}

// Identity returns the connection's identity if it has authenticated.
func (r *Registry) Identity(connID string) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connID]
	if !ok || s.identity == nil {
		return domain.Identity{}, false
	}
	return *s.identity, true
}

// Peer returns the connection's transport handle.
func (r *Registry) Peer(connID string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	if !ok {
		return nil, false
	}
	return s.peer, true
}

// Exists reports whether the connection is still registered.
func (r *Registry) Exists(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[connID]
	return ok
}

// Touch records inbound activity.
func (r *Registry) Touch(connID string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[connID]; ok {
		s.lastActive = now
	}
}

// Join adds an authenticated connection to a room. added is false when it
// was already a member; ok is false when the connection is gone or not
// authenticated.
func (r *Registry) Join(connID, ticketID string) (added, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, exists := r.sessions[connID]
	if !exists || s.identity == nil {
		return false, false
	}
	if _, member := s.joined[ticketID]; member {
		return false, true
	}
	s.joined[ticketID] = struct{}{}
	if r.rooms[ticketID] == nil {
		r.rooms[ticketID] = make(map[string]struct{})
	}
	r.rooms[ticketID][connID] = struct{}{}
	return true, true
}

// Leave removes the connection from a room and reports whether it was a
// member.
func (r *Registry) Leave(connID, ticketID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return false
	}
	if _, member := s.joined[ticketID]; !member {
		return false
	}
	delete(s.joined, ticketID)
	r.leaveRoomLocked(connID, ticketID)
	return true
}

func (r *Registry) leaveRoomLocked(connID, ticketID string) {
	members, ok := r.rooms[ticketID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, ticketID)
	}
}

// IsJoined reports room membership.
func (r *Registry) IsJoined(connID, ticketID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[ticketID][connID]
	return ok
}

// UserInRoom reports whether any connection of the user is in the room.
func (r *Registry) UserInRoom(ticketID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for connID := range r.rooms[ticketID] {
		if s, ok := r.sessions[connID]; ok && s.identity != nil && s.identity.UserID == userID {
			return true
		}
	}
	return false
}

// RoomPeers snapshots the peers in a room, skipping except.
func (r *Registry) RoomPeers(ticketID, except string) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[ticketID]
	peers := make([]Peer, 0, len(members))
	for connID := range members {
		if connID == except {
			continue
		}
		if s, ok := r.sessions[connID]; ok {
			peers = append(peers, s.peer)
		}
	}
	return peers
}

// Presence lists the distinct users in a room ordered by name.
func (r *Registry) Presence(ticketID string) []PresenceUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	users := make([]PresenceUser, 0, len(r.rooms[ticketID]))
	for connID := range r.rooms[ticketID] {
		s, ok := r.sessions[connID]
		if !ok || s.identity == nil {
			continue
		}
		if _, dup := seen[s.identity.UserID]; dup {
			continue
		}
		seen[s.identity.UserID] = struct{}{}
		users = append(users, PresenceUser{
			UserID:      s.identity.UserID,
			DisplayName: s.identity.DisplayName,
			Role:        s.identity.Role,
		})
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].DisplayName == users[j].DisplayName {
			return users[i].UserID < users[j].UserID
		}
		return users[i].DisplayName < users[j].DisplayName
	})
	return users
}

// UserPeers returns every connection authenticated as the user.
func (r *Registry) UserPeers(userID string) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Peer, 0, len(r.users[userID]))
	for connID := range r.users[userID] {
		if s, ok := r.sessions[connID]; ok {
			peers = append(peers, s.peer)
		}
	}
	return peers
}

// SuperAdminPeers returns every connection authenticated as an operator.
func (r *Registry) SuperAdminPeers() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var peers []Peer
	for _, s := range r.sessions {
		if s.identity != nil && s.identity.IsSuperAdmin() {
			peers = append(peers, s.peer)
		}
	}
	return peers
}

// IdleSince returns peers with no inbound activity since cutoff.
func (r *Registry) IdleSince(cutoff time.Time) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var peers []Peer
	for _, s := range r.sessions {
		if s.lastActive.Before(cutoff) {
			peers = append(peers, s.peer)
		}
	}
	return peers
}

// AllPeers snapshots every registered connection.
func (r *Registry) AllPeers() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Peer, 0, len(r.sessions))
	for _, s := range r.sessions {
		peers = append(peers, s.peer)
	}
	return peers
}

// Stats reports connection and room counts.
func (r *Registry) Stats() (connections, rooms int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), len(r.rooms)
}
