// Package registry is the single source of truth for presence and
// availability. One mutex is the only serialization point in the relay:
// every mutation and every snapshot goes through it, so a reader can
// never observe a partially applied registration.
package registry

import (
	"fmt"
	"sync"

	"github.com/techlink-io/techlink/internal/domain"
)

// Registry maps connection identity to peer record, with a secondary
// index from application identity to connection identity so routing
// lookups stay O(1) instead of scanning every record per message.
type Registry struct {
	mu     sync.RWMutex
	peers  map[string]*domain.Peer // connID → record
	byUser map[string]string       // userID → connID, last registration wins
	order  []string                // connIDs in insertion order
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		peers:  make(map[string]*domain.Peer),
		byUser: make(map[string]string),
	}
}

// Register inserts or replaces the record for connID with no location
// and availability off. Registering the same connID again replaces the
// record in place. If userID is already claimed by another connection,
// the index moves to this one: the newest registration wins resolution.
func (r *Registry) Register(connID, userID string, role domain.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.peers[connID]; ok {
		// Re-registration on the same connection. Drop the old index
		// entry if it still points here.
		if r.byUser[prev.UserID] == connID {
			delete(r.byUser, prev.UserID)
		}
	} else {
		r.order = append(r.order, connID)
	}

	r.peers[connID] = &domain.Peer{
		ConnID: connID,
		UserID: userID,
		Role:   role,
	}
	r.byUser[userID] = connID
}

// Remove deletes and returns the record for connID. A disconnect from a
// connection that never registered is not an error; ok is false.
func (r *Registry) Remove(connID string) (domain.Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[connID]
	if !ok {
		return domain.Peer{}, false
	}
	delete(r.peers, connID)
	// The index entry may already point at a newer connection that
	// claimed the same identity; only remove it if it is still ours.
	if r.byUser[p.UserID] == connID {
		delete(r.byUser, p.UserID)
	}
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return *p, true
}

// UpdateLocation records the peer's position. No-op if the connection
// never registered; reports whether anything changed.
func (r *Registry) UpdateLocation(connID string, c domain.Coordinate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[connID]
	if !ok {
		return false
	}
	loc := c
	p.Location = &loc
	return true
}

// SetAvailability flips a technician's availability. No-op unless the
// record exists and its role is technician; reports whether it applied.
func (r *Registry) SetAvailability(connID string, available bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[connID]
	if !ok || p.Role != domain.RoleTechnician {
		return false
	}
	p.Available = available
	return true
}

// Get returns a copy of the record for connID.
func (r *Registry) Get(connID string) (domain.Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.peers[connID]
	if !ok {
		return domain.Peer{}, false
	}
	return *p, true
}

// Resolve maps an application identity to its connection identity.
// This is the one lookup every routing and workflow operation uses.
func (r *Registry) Resolve(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.byUser[userID]
	return connID, ok
}

// Snapshot returns copies of all records satisfying keep, in insertion
// order. Copies, not pointers: callers can hold the result across later
// mutations without racing the registry.
func (r *Registry) Snapshot(keep func(domain.Peer) bool) []domain.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Peer, 0, len(r.order))
	for _, connID := range r.order {
		p := r.peers[connID]
		if keep == nil || keep(*p) {
			out = append(out, *p)
		}
	}
	return out
}

// Connections returns the connection IDs of all records satisfying keep,
// in insertion order. Used to pick broadcast targets.
func (r *Registry) Connections(keep func(domain.Peer) bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.order))
	for _, connID := range r.order {
		if keep == nil || keep(*r.peers[connID]) {
			out = append(out, connID)
		}
	}
	return out
}

// Counts reports registered customers, technicians, and how many of the
// technicians are currently available.
func (r *Registry) Counts() (customers, technicians, available int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.peers {
		switch p.Role {
		case domain.RoleCustomer:
			customers++
		case domain.RoleTechnician:
			technicians++
			if p.Available {
				available++
			}
		}
	}
	return
}

// ValidateIndex checks that the secondary index is consistent with the
// primary map: every entry points at a live record carrying that
// identity. Run by the health checker.
func (r *Registry) ValidateIndex() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for userID, connID := range r.byUser {
		p, ok := r.peers[connID]
		if !ok {
			return fmt.Errorf("index entry %q points at dead connection %s", userID, connID)
		}
		if p.UserID != userID {
			return fmt.Errorf("index entry %q points at connection registered as %q", userID, p.UserID)
		}
	}
	if len(r.order) != len(r.peers) {
		return fmt.Errorf("order list has %d entries, registry has %d", len(r.order), len(r.peers))
	}
	return nil
}
