package feature

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hud-mc/overlay/overlay/cpu"
	"github.com/hud-mc/overlay/overlay/player"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
)

// Config holds the collaborators a Dispatcher needs.
type Config struct {
	// Log is the logger dispatch problems are reported to. Defaults to
	// slog.Default().
	Log *slog.Logger
	// CPU receives the processing time of every hook call, attributed to the
	// feature name and event kind. Defaults to a fresh tracker.
	CPU *cpu.Tracker
	// Players is the registry joins add to and quits remove from. Required.
	Players *player.Registry
	// WorldChangeRetryDelay is how long a world change event for a player
	// that has not finished joining is deferred before it is re-dispatched.
	// Defaults to 100ms.
	WorldChangeRetryDelay time.Duration
}

// Dispatcher fans events out to registered features one at a time, in
// registration order, measuring each hook call. A feature that panics is
// logged and skipped for that event; the remaining features still run.
type Dispatcher struct {
	log        *slog.Logger
	cpu        *cpu.Tracker
	players    *player.Registry
	retryDelay time.Duration

	mu       sync.RWMutex
	order    []string
	features map[string]Feature
}

// NewDispatcher creates a Dispatcher using the collaborators in cfg.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.Players == nil {
		panic("feature: dispatcher requires a player registry")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.CPU == nil {
		cfg.CPU = cpu.NewTracker()
	}
	if cfg.WorldChangeRetryDelay <= 0 {
		cfg.WorldChangeRetryDelay = time.Millisecond * 100
	}
	return &Dispatcher{
		log:        cfg.Log.With("subsystem", "feature"),
		cpu:        cfg.CPU,
		players:    cfg.Players,
		retryDelay: cfg.WorldChangeRetryDelay,
		features:   make(map[string]Feature),
	}
}

// Register installs a feature under the name passed. Registration order is
// dispatch order for every event kind. Registering a name twice replaces the
// handler but keeps its original position.
func (d *Dispatcher) Register(name string, f Feature) {
	if f == nil {
		return
	}
	d.mu.Lock()
	if _, ok := d.features[name]; !ok {
		d.order = append(d.order, name)
	}
	d.features[name] = f
	d.mu.Unlock()
}

// Unregister removes a feature. The feature stops receiving events but its
// Unload hook is not called.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	if _, ok := d.features[name]; ok {
		delete(d.features, name)
		for i, n := range d.order {
			if n == name {
				d.order = append(d.order[:i], d.order[i+1:]...)
				break
			}
		}
	}
	d.mu.Unlock()
}

// Feature returns a registered feature by name.
func (d *Dispatcher) Feature(name string) (Feature, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.features[name]
	return f, ok
}

// Features returns all registered features in registration order.
func (d *Dispatcher) Features() []Feature {
	regs := d.snapshot()
	out := make([]Feature, len(regs))
	for i, reg := range regs {
		out[i] = reg.f
	}
	return out
}

type registration struct {
	name string
	f    Feature
}

func (d *Dispatcher) snapshot() []registration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]registration, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, registration{name: name, f: d.features[name]})
	}
	return out
}

// invoke runs call, attributes its wall time to (name, event) and turns a
// panic into an error log so one broken feature cannot take the chain down.
func (d *Dispatcher) invoke(name, event string, call func()) {
	start := time.Now()
	defer func() {
		d.cpu.Add(name, event, time.Since(start))
		if r := recover(); r != nil {
			d.log.Error("Feature hook panicked.", "feature", name, "event", event, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	call()
}

// Load calls Load on every feature in registration order.
func (d *Dispatcher) Load() {
	for _, reg := range d.snapshot() {
		d.invoke(reg.name, EventLoad, reg.f.Load)
	}
}

// Unload calls Unload on every feature in registration order.
func (d *Dispatcher) Unload() {
	for _, reg := range d.snapshot() {
		d.invoke(reg.name, EventUnload, reg.f.Unload)
	}
}

// OnJoin adds the player to the registry and dispatches the join to every
// feature, after which the player counts as loaded. A player whose connection
// already closed again before dispatch begins is dropped.
func (d *Dispatcher) OnJoin(p *player.Player) {
	if p == nil {
		return
	}
	if !p.Online() {
		d.log.Debug("Dropped join of player that disconnected during login.", "player", p.Name())
		return
	}
	start := time.Now()
	d.players.Add(p)
	for _, reg := range d.snapshot() {
		reg := reg
		d.invoke(reg.name, EventJoin, func() { reg.f.OnJoin(p) })
	}
	p.MarkLoaded()
	d.log.Debug("Processed player join.", "player", p.Name(), "took", time.Since(start))
}

// OnQuit dispatches the quit to every feature and removes the player from the
// registry afterwards, so features can still look the player up in quit hooks.
func (d *Dispatcher) OnQuit(p *player.Player) {
	if p == nil {
		return
	}
	for _, reg := range d.snapshot() {
		reg := reg
		d.invoke(reg.name, EventQuit, func() { reg.f.OnQuit(p) })
	}
	d.players.Remove(p.UUID())
}

// OnWorldChange updates the player's zone and dispatches the change to every
// feature. A change arriving before the player finished joining is
// re-dispatched after a short delay instead of dropped, so that features
// never observe a world change for a player they have not seen join. Changes
// for players no longer in the registry are discarded.
func (d *Dispatcher) OnWorldChange(id uuid.UUID, to string) {
	p, ok := d.players.Player(id)
	if !ok {
		d.log.Debug("Discarded world change of unknown player.", "player", id, "to", to)
		return
	}
	if !p.Loaded() {
		time.AfterFunc(d.retryDelay, func() { d.OnWorldChange(id, to) })
		return
	}
	from := p.Zone()
	p.SetZone(to)
	for _, reg := range d.snapshot() {
		reg := reg
		d.invoke(reg.name, EventWorldChange, func() { reg.f.OnWorldChange(p, from, to) })
	}
}

// OnCommand dispatches a chat command to every feature and reports whether
// any of them voted to cancel it. All features run even after a cancel vote.
func (d *Dispatcher) OnCommand(p *player.Player, command string) bool {
	if p == nil {
		return false
	}
	cancelled := false
	for _, reg := range d.snapshot() {
		reg := reg
		d.invoke(reg.name, EventCommand, func() {
			if reg.f.OnCommand(p, command) {
				cancelled = true
			}
		})
	}
	return cancelled
}

// Refresh dispatches a refresh of the player's dynamic text to every feature.
func (d *Dispatcher) Refresh(p *player.Player, force bool) {
	if p == nil {
		return
	}
	for _, reg := range d.snapshot() {
		reg := reg
		d.invoke(reg.name, EventRefresh, func() { reg.f.Refresh(p, force) })
	}
}

// OnLogin dispatches the login packet event to every feature.
func (d *Dispatcher) OnLogin(p *player.Player) {
	if p == nil {
		return
	}
	for _, reg := range d.snapshot() {
		reg := reg
		d.invoke(reg.name, EventLogin, func() { reg.f.OnLogin(p) })
	}
}

// OnPacketReceive passes an inbound packet through every feature in order and
// returns the rewritten packet, or nil if a feature cancelled it. Once the
// packet is nil the remaining features no longer see it, but the iteration
// still visits and times every feature.
func (d *Dispatcher) OnPacketReceive(p *player.Player, pk packet.Packet) packet.Packet {
	current := pk
	for _, reg := range d.snapshot() {
		reg := reg
		d.invoke(reg.name, EventPacketIn, func() {
			if current != nil {
				current = reg.f.OnPacketReceive(p, current)
			}
		})
	}
	return current
}

// OnPacketSend passes an outbound packet to every feature in order. Outbound
// hooks observe the packet but cannot cancel it.
func (d *Dispatcher) OnPacketSend(p *player.Player, pk packet.Packet) {
	for _, reg := range d.snapshot() {
		reg := reg
		d.invoke(reg.name, EventPacketOut, func() { reg.f.OnPacketSend(p, pk) })
	}
}

// OnDisplayObjective dispatches a display objective packet and reports
// whether it should be cancelled. Unlike the generic packet hooks, the first
// cancel vote stops the remaining features from running.
func (d *Dispatcher) OnDisplayObjective(p *player.Player, pk *packet.SetDisplayObjective) bool {
	for _, reg := range d.snapshot() {
		reg := reg
		cancelled := false
		d.invoke(reg.name, EventDisplayObjective, func() {
			cancelled = reg.f.OnDisplayObjective(p, pk)
		})
		if cancelled {
			return true
		}
	}
	return false
}

// OnObjective dispatches an objective removal packet to every feature.
func (d *Dispatcher) OnObjective(p *player.Player, pk *packet.RemoveObjective) {
	for _, reg := range d.snapshot() {
		reg := reg
		d.invoke(reg.name, EventObjective, func() { reg.f.OnObjective(p, pk) })
	}
}
