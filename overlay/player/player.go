// Package player tracks the players currently connected to the server that
// overlay elements may be shown to.
package player

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hud-mc/overlay/overlay/session"
)

// Player is a single connected player. A Player is created when the
// connection is accepted and discarded when it closes; the loaded flag is set
// once join processing by all features has completed.
type Player struct {
	id   uuid.UUID
	name string
	conn session.Conn

	online atomic.Bool
	loaded atomic.Bool

	mu          sync.RWMutex
	zone        string
	permissions map[string]struct{}
}

// New creates a Player with the identity, display name and zone (world or
// backend server) it connected to. The player starts out online but not
// loaded.
func New(id uuid.UUID, name, zone string, conn session.Conn) *Player {
	p := &Player{
		id:          id,
		name:        name,
		conn:        conn,
		zone:        zone,
		permissions: make(map[string]struct{}),
	}
	p.online.Store(true)
	return p
}

// UUID returns the stable identity of the player.
func (p *Player) UUID() uuid.UUID { return p.id }

// Name returns the display name of the player.
func (p *Player) Name() string { return p.name }

// Conn returns the connection overlay packets for this player are written to.
func (p *Player) Conn() session.Conn { return p.conn }

// Zone returns the world or backend server the player currently occupies.
func (p *Player) Zone() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.zone
}

// SetZone updates the zone the player occupies. It is called by the
// dispatcher before world change hooks run, so hooks observe the new zone.
func (p *Player) SetZone(zone string) {
	p.mu.Lock()
	p.zone = zone
	p.mu.Unlock()
}

// Online reports whether the connection is still open.
func (p *Player) Online() bool { return p.online.Load() }

// Disconnect marks the connection as closed. Join events dispatched after
// this point are dropped.
func (p *Player) Disconnect() { p.online.Store(false) }

// Loaded reports whether join processing for the player has completed.
func (p *Player) Loaded() bool { return p.loaded.Load() }

// MarkLoaded flags the player as fully joined. World change events for the
// player are deferred until this is set.
func (p *Player) MarkLoaded() { p.loaded.Store(true) }

// HasPermission reports whether the player currently holds the permission
// node passed.
func (p *Player) HasPermission(node string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.permissions[node]
	return ok
}

// GrantPermission adds a permission node to the player. Permissions are
// pushed in by the hosting server's permission plugin and may change at any
// time while the player is online.
func (p *Player) GrantPermission(node string) {
	p.mu.Lock()
	p.permissions[node] = struct{}{}
	p.mu.Unlock()
}

// RevokePermission removes a permission node from the player.
func (p *Player) RevokePermission(node string) {
	p.mu.Lock()
	delete(p.permissions, node)
	p.mu.Unlock()
}

// SendMessage sends a chat message to the player.
func (p *Player) SendMessage(message string) {
	_ = session.SendMessage(p.conn, message)
}

// Registry holds all players currently online. It is read concurrently by
// periodic sweeps, announcements and event handlers.
type Registry struct {
	mu      sync.RWMutex
	players map[uuid.UUID]*Player
}

// NewRegistry creates an empty player registry.
func NewRegistry() *Registry {
	return &Registry{players: make(map[uuid.UUID]*Player)}
}

// Add inserts a player into the registry, replacing any previous entry with
// the same identity.
func (r *Registry) Add(p *Player) {
	if p == nil {
		return
	}
	r.mu.Lock()
	r.players[p.UUID()] = p
	r.mu.Unlock()
}

// Remove deletes the player with the identity passed, if present.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.players, id)
	r.mu.Unlock()
}

// Player looks up an online player by identity.
func (r *Registry) Player(id uuid.UUID) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	return p, ok
}

// All returns a snapshot of all online players. The slice is owned by the
// caller and not affected by later joins or quits.
func (r *Registry) All() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	return out
}

// Count returns the number of players currently online.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}
