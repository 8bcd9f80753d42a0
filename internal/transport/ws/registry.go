package ws

import "sync"

// Registry tracks which connections have joined which rooms. A room key is
// either a user id (personal room) or a conversation id.
type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]*Client // room -> connID -> client
	clientRooms map[string]map[string]struct{} // connID -> rooms
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:       make(map[string]map[string]*Client),
		clientRooms: make(map[string]map[string]struct{}),
	}
}

// Join adds c to room. It reports false if c was already there.
func (r *Registry) Join(c *Client, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[room]
	if members == nil {
		members = make(map[string]*Client)
		r.rooms[room] = members
	}
	if _, ok := members[c.id]; ok {
		return false
	}
	members[c.id] = c

	joined := r.clientRooms[c.id]
	if joined == nil {
		joined = make(map[string]struct{})
		r.clientRooms[c.id] = joined
	}
	joined[room] = struct{}{}
	return true
}

func (r *Registry) Leave(c *Client, room string) {
	r.mu.Lock()
	r.leaveLocked(c.id, room)
	r.mu.Unlock()
}

// Members returns a snapshot of the connections in room.
func (r *Registry) Members(room string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	out := make([]*Client, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

func (r *Registry) RoomsOf(c *Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.clientRooms[c.id]
	out := make([]string, 0, len(joined))
	for room := range joined {
		out = append(out, room)
	}
	return out
}

// Drop removes c from every room. Safe to call more than once.
func (r *Registry) Drop(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.clientRooms[c.id] {
		r.leaveLocked(c.id, room)
	}
	delete(r.clientRooms, c.id)
}

// Len is the number of non-empty rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) leaveLocked(connID, room string) {
	if members := r.rooms[room]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if joined := r.clientRooms[connID]; joined != nil {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.clientRooms, connID)
		}
	}
}
