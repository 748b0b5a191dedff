package overlay

import (
	"sync"

	"github.com/google/uuid"
	"github.com/hud-mc/overlay/overlay/bossbar"
	"github.com/hud-mc/overlay/overlay/cpu"
	"github.com/hud-mc/overlay/overlay/feature"
	"github.com/hud-mc/overlay/overlay/placeholder"
	"github.com/hud-mc/overlay/overlay/player"
	"github.com/hud-mc/overlay/overlay/session"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
)

// Engine ties the player registry, the feature dispatcher and the built-in
// boss bar feature together. It is the single entry point a host server
// forwards its player lifecycle and packet events to.
type Engine struct {
	conf       Config
	players    *player.Registry
	dispatcher *feature.Dispatcher
	bars       *bossbar.Manager

	once sync.Once
}

// New creates an Engine with a default config.
func New() *Engine {
	var conf Config
	return conf.New()
}

// Start loads every registered feature. Events forwarded before Start are
// still dispatched, but features that set up state in Load, such as the boss
// bar sweep, only do so here.
func (e *Engine) Start() {
	e.dispatcher.Load()
}

// Close unloads every registered feature, stopping background work. It is
// safe to call Close multiple times.
func (e *Engine) Close() error {
	e.once.Do(func() {
		e.dispatcher.Unload()
	})
	return nil
}

// Players returns the registry of players currently known to the Engine.
func (e *Engine) Players() *player.Registry {
	return e.players
}

// BossBars returns the built-in boss bar feature.
func (e *Engine) BossBars() *bossbar.Manager {
	return e.bars
}

// Dispatcher returns the feature dispatcher. Additional features may be
// registered on it before Start is called.
func (e *Engine) Dispatcher() *feature.Dispatcher {
	return e.dispatcher
}

// CPU returns the tracker holding per-feature processing time.
func (e *Engine) CPU() *cpu.Tracker {
	return e.conf.CPU
}

// Placeholders returns the placeholder registry used for dynamic text.
func (e *Engine) Placeholders() *placeholder.Registry {
	return e.conf.Placeholders
}

// Accept runs join processing for a connecting player and returns the Player
// handle tracked by the Engine. Players that disconnect before Accept runs
// are dropped without join processing.
func (e *Engine) Accept(id uuid.UUID, name, zone string, conn session.Conn) *player.Player {
	p := player.New(id, name, zone, conn)
	e.dispatcher.OnJoin(p)
	return p
}

// Disconnect runs quit processing for a player and removes them from the
// Engine. Unknown players are ignored.
func (e *Engine) Disconnect(id uuid.UUID) {
	p, ok := e.players.Player(id)
	if !ok {
		return
	}
	p.Disconnect()
	e.dispatcher.OnQuit(p)
}

// SwitchZone dispatches a world change for the player to the new zone. A
// change arriving before the player finished joining is deferred and
// retried.
func (e *Engine) SwitchZone(id uuid.UUID, zone string) {
	e.dispatcher.OnWorldChange(id, zone)
}

// Command offers a chat command to every feature and reports whether any of
// them consumed it. A consumed command should not be executed by the host
// server.
func (e *Engine) Command(id uuid.UUID, command string) bool {
	p, ok := e.players.Player(id)
	if !ok {
		return false
	}
	return e.dispatcher.OnCommand(p, command)
}

// Login dispatches the pre-join login event for a connecting player. Unlike
// Accept, Login does not register the player with the Engine.
func (e *Engine) Login(p *player.Player) {
	e.dispatcher.OnLogin(p)
}

// HandlePacketReceive runs an inbound packet through every feature's receive
// hook in registration order and returns the resulting packet, or nil if a
// feature swallowed it.
func (e *Engine) HandlePacketReceive(id uuid.UUID, pk packet.Packet) packet.Packet {
	p, ok := e.players.Player(id)
	if !ok {
		return pk
	}
	return e.dispatcher.OnPacketReceive(p, pk)
}

// HandlePacketSend runs an outbound packet through every feature's send
// hook.
func (e *Engine) HandlePacketSend(id uuid.UUID, pk packet.Packet) {
	p, ok := e.players.Player(id)
	if !ok {
		return
	}
	e.dispatcher.OnPacketSend(p, pk)
}

// HandleDisplayObjective offers a scoreboard display packet to every feature
// and reports whether any of them cancelled it.
func (e *Engine) HandleDisplayObjective(id uuid.UUID, pk *packet.SetDisplayObjective) bool {
	p, ok := e.players.Player(id)
	if !ok {
		return false
	}
	return e.dispatcher.OnDisplayObjective(p, pk)
}

// HandleObjective dispatches a scoreboard objective removal to every
// feature.
func (e *Engine) HandleObjective(id uuid.UUID, pk *packet.RemoveObjective) {
	p, ok := e.players.Player(id)
	if !ok {
		return
	}
	e.dispatcher.OnObjective(p, pk)
}

// Refresh re-renders the dynamic text every feature shows to the player.
func (e *Engine) Refresh(id uuid.UUID, force bool) {
	p, ok := e.players.Player(id)
	if !ok {
		return
	}
	e.dispatcher.Refresh(p, force)
}
