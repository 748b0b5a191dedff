// Package feature defines the capability interface overlay features implement
// and the dispatcher that fans lifecycle and packet events out to them.
package feature

import (
	"github.com/hud-mc/overlay/overlay/player"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
)

// Event kinds used for processing-cost attribution.
const (
	EventLoad             = "load"
	EventUnload           = "unload"
	EventJoin             = "join"
	EventQuit             = "quit"
	EventWorldChange      = "world-change"
	EventCommand          = "command"
	EventRefresh          = "refresh"
	EventLogin            = "login"
	EventPacketIn         = "packet-in"
	EventPacketOut        = "packet-out"
	EventDisplayObjective = "display-objective"
	EventObjective        = "objective"
)

// Feature is a single overlay feature fed by a Dispatcher. Implementations
// usually embed NopFeature and override only the hooks they care about.
//
// Hooks for one event instance are called sequentially in registration order;
// no hook is ever called concurrently with another hook for the same event
// instance. Hooks for different events may run concurrently, so features must
// guard their own state.
type Feature interface {
	// Load is called once when the engine starts, after all features have
	// been registered.
	Load()
	// Unload is called once when the engine shuts down. Features must undo
	// every visible effect they had on connected clients.
	Unload()
	// OnJoin is called after a player's connection has been accepted and the
	// player was added to the registry.
	OnJoin(p *player.Player)
	// OnQuit is called when a player's connection closes, before the player
	// is removed from the registry.
	OnQuit(p *player.Player)
	// OnWorldChange is called after the player's zone was updated from from
	// to to.
	OnWorldChange(p *player.Player, from, to string)
	// OnCommand is called for every chat command the player runs. Returning
	// true votes to cancel the command; every feature still runs.
	OnCommand(p *player.Player, command string) bool
	// Refresh is called periodically for players whose dynamic text should
	// be re-rendered and re-sent.
	Refresh(p *player.Player, force bool)
	// OnLogin is called when the login packet for a player is processed.
	OnLogin(p *player.Player)
	// OnPacketReceive is called for every inbound packet. The feature may
	// return the packet unchanged, a replacement, or nil to cancel it.
	OnPacketReceive(p *player.Player, pk packet.Packet) packet.Packet
	// OnPacketSend is called for every outbound packet.
	OnPacketSend(p *player.Player, pk packet.Packet)
	// OnDisplayObjective is called when a display objective packet is about
	// to be sent to the player. Returning true cancels the packet and stops
	// the remaining features from seeing it.
	OnDisplayObjective(p *player.Player, pk *packet.SetDisplayObjective) bool
	// OnObjective is called when an objective removal packet is about to be
	// sent to the player.
	OnObjective(p *player.Player, pk *packet.RemoveObjective)
}

// NopFeature implements Feature with no-op hooks. Embed it to implement only
// a subset of the interface.
type NopFeature struct{}

// Compile-time check to ensure that NopFeature implements Feature.
var _ Feature = NopFeature{}

func (NopFeature) Load()                                          {}
func (NopFeature) Unload()                                        {}
func (NopFeature) OnJoin(*player.Player)                          {}
func (NopFeature) OnQuit(*player.Player)                          {}
func (NopFeature) OnWorldChange(*player.Player, string, string)   {}
func (NopFeature) OnCommand(*player.Player, string) bool          { return false }
func (NopFeature) Refresh(*player.Player, bool)                   {}
func (NopFeature) OnLogin(*player.Player)                         {}
func (NopFeature) OnPacketSend(*player.Player, packet.Packet)     {}
func (NopFeature) OnObjective(*player.Player, *packet.RemoveObjective) {}

func (NopFeature) OnPacketReceive(_ *player.Player, pk packet.Packet) packet.Packet { return pk }

func (NopFeature) OnDisplayObjective(*player.Player, *packet.SetDisplayObjective) bool {
	return false
}
