package bossbar

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hud-mc/overlay/overlay/cpu"
	"github.com/hud-mc/overlay/overlay/feature"
	"github.com/hud-mc/overlay/overlay/placeholder"
	"github.com/hud-mc/overlay/overlay/player"
	"github.com/hud-mc/overlay/overlay/playerdb"
	"github.com/hud-mc/overlay/overlay/session"
)

// featureName is the name the boss bar feature reports processing time under.
const featureName = "bossbar"

// BarDefinition is the configured shape of a single boss bar line. Empty
// attributes fall back to safe defaults with a startup warning.
type BarDefinition struct {
	// Condition is an optional display condition expression, see
	// ParseCondition.
	Condition string
	// Style is the bar overlay texture name, such as "PROGRESS" or
	// "NOTCHED_10". Defaults to "PROGRESS".
	Style string
	// Colour is the bar colour name, such as "RED". Defaults to "WHITE".
	Colour string
	// Progress is the fill expression on a 0-100 scale, possibly containing
	// placeholders. Defaults to "100".
	Progress string
	// Text is the title template, possibly containing placeholders.
	Text string
}

// Config holds the configuration and collaborators of a Manager.
type Config struct {
	// Log is the logger configuration problems are reported to. Defaults to
	// slog.Default().
	Log *slog.Logger
	// Players is the registry of online players. Required.
	Players *player.Registry
	// Placeholders resolves dynamic text. The manager registers its
	// %countdown% provider on it. Defaults to a fresh registry.
	Placeholders *placeholder.Registry
	// CPU receives the processing time of sweep passes. Defaults to a fresh
	// tracker.
	CPU *cpu.Tracker
	// Store persists toggle choices. May be nil, in which case choices are
	// forgotten on disconnect regardless of RememberToggleChoice.
	Store *playerdb.Toggles

	// ToggleCommand is the chat command that flips a player's visibility
	// gate. Defaults to "/bossbar".
	ToggleCommand string
	// ToggleOnMessage and ToggleOffMessage are the confirmations sent when a
	// player toggles their boss bars.
	ToggleOnMessage, ToggleOffMessage string
	// HiddenByDefault hides all bars from joining players until they run the
	// toggle command.
	HiddenByDefault bool
	// RememberToggleChoice persists every toggle to Store so it survives
	// reconnects.
	RememberToggleChoice bool
	// SweepInterval is the period of the re-validation pass that reacts to
	// permission changes. Defaults to one second.
	SweepInterval time.Duration

	// DisabledZones lists zones in which boss bars are disabled entirely. A
	// trailing "*" matches any zone with the prefix before it.
	DisabledZones []string
	// DefaultBars names the bars shown to every eligible player.
	DefaultBars []string
	// PerZone maps zone group keys to the bars shown in those zones. A group
	// key is a "-"-separated union of zone names, possibly with trailing "*"
	// wildcards.
	PerZone map[string][]string
	// Bars holds all bar definitions by name.
	Bars map[string]BarDefinition
}

// Manager is the boss bar visibility engine. It reconciles the set of lines
// each player should see with the set they do see, driven by join, quit,
// world change and toggle events plus a periodic re-validation sweep.
type Manager struct {
	feature.NopFeature

	log          *slog.Logger
	players      *player.Registry
	placeholders *placeholder.Registry
	cpu          *cpu.Tracker
	store        *playerdb.Toggles

	toggleCommand  string
	toggleOn       string
	toggleOff      string
	hiddenDefault  bool
	rememberToggle bool
	sweepInterval  time.Duration

	disabledZones []string
	defaultBars   []string
	perZone       map[string][]string
	perZoneKeys   []string

	linesMu sync.RWMutex
	lines   map[string]*Line

	mu       sync.RWMutex
	visible  map[uuid.UUID]struct{}
	disabled map[uuid.UUID]struct{}

	announceMu    sync.Mutex
	announcements map[string]*Line
	announceEnd   atomicMillis

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager from cfg, loading every bar definition with
// safe fallbacks for missing attributes and dropping dangling bar references
// from the default and per-zone lists. Configuration problems are logged once
// here and never fault at runtime.
func NewManager(cfg Config) *Manager {
	if cfg.Players == nil {
		panic("bossbar: manager requires a player registry")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Placeholders == nil {
		cfg.Placeholders = placeholder.NewRegistry()
	}
	if cfg.CPU == nil {
		cfg.CPU = cpu.NewTracker()
	}
	if cfg.ToggleCommand == "" {
		cfg.ToggleCommand = "/bossbar"
	}
	if cfg.ToggleOnMessage == "" {
		cfg.ToggleOnMessage = "Boss bar is now visible."
	}
	if cfg.ToggleOffMessage == "" {
		cfg.ToggleOffMessage = "Boss bar is now hidden."
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		log:            cfg.Log.With("subsystem", "bossbar"),
		players:        cfg.Players,
		placeholders:   cfg.Placeholders,
		cpu:            cfg.CPU,
		store:          cfg.Store,
		toggleCommand:  cfg.ToggleCommand,
		toggleOn:       cfg.ToggleOnMessage,
		toggleOff:      cfg.ToggleOffMessage,
		hiddenDefault:  cfg.HiddenByDefault,
		rememberToggle: cfg.RememberToggleChoice && cfg.Store != nil,
		sweepInterval:  cfg.SweepInterval,
		disabledZones:  append([]string(nil), cfg.DisabledZones...),
		lines:          make(map[string]*Line, len(cfg.Bars)),
		visible:        make(map[uuid.UUID]struct{}),
		disabled:       make(map[uuid.UUID]struct{}),
		announcements:  make(map[string]*Line),
		ctx:            ctx,
		cancel:         cancel,
	}
	if cfg.RememberToggleChoice && cfg.Store == nil {
		m.log.Warn("Toggle choices cannot be remembered without a toggle store.")
	}

	for name, def := range cfg.Bars {
		m.lines[name] = m.loadBar(name, def)
	}
	m.defaultBars = m.pruneReferences("default list", cfg.DefaultBars)
	m.perZone = make(map[string][]string, len(cfg.PerZone))
	for key, bars := range cfg.PerZone {
		m.perZone[key] = m.pruneReferences("zone group "+key, bars)
		m.perZoneKeys = append(m.perZoneKeys, key)
	}
	sort.Strings(m.perZoneKeys)

	m.placeholders.Register("countdown", time.Second, func() string {
		return strconv.FormatInt(m.CountdownSeconds(), 10)
	})

	m.log.Debug("Loaded boss bar feature.",
		"bars", len(m.lines), "defaultBars", m.defaultBars, "disabledZones", m.disabledZones,
		"toggleCommand", m.toggleCommand, "hiddenByDefault", m.hiddenDefault, "rememberToggleChoice", m.rememberToggle)
	return m
}

// loadBar builds a Line from its definition, substituting defaults for
// missing or unparsable attributes.
func (m *Manager) loadBar(name string, def BarDefinition) *Line {
	if def.Style == "" {
		m.log.Warn("Boss bar definition is missing an attribute, using default.", "bar", name, "attribute", "style", "default", "PROGRESS")
		def.Style = "PROGRESS"
	}
	if def.Colour == "" {
		m.log.Warn("Boss bar definition is missing an attribute, using default.", "bar", name, "attribute", "colour", "default", "WHITE")
		def.Colour = "WHITE"
	}
	if def.Progress == "" {
		m.log.Warn("Boss bar definition is missing an attribute, using default.", "bar", name, "attribute", "progress", "default", "100")
		def.Progress = "100"
	}
	if def.Text == "" {
		m.log.Warn("Boss bar definition is missing an attribute, using default.", "bar", name, "attribute", "text", "default", "")
	}

	overlay, ok := session.ParseStyle(def.Style)
	if !ok {
		m.log.Warn("Boss bar definition has an unknown style.", "bar", name, "style", def.Style)
	}
	colour, ok := session.ParseColour(def.Colour)
	if !ok {
		m.log.Warn("Boss bar definition has an unknown colour.", "bar", name, "colour", def.Colour)
	}
	condition, err := ParseCondition(def.Condition, m.placeholders)
	if err != nil {
		m.log.Warn("Boss bar definition has an invalid display condition, showing unconditionally.", "bar", name, "error", err)
		condition = nil
	}
	return NewLine(name, condition, colour, overlay, def.Progress, def.Text, m.placeholders)
}

// pruneReferences drops names from a configured bar list that do not match a
// registered bar, logging each dropped reference once.
func (m *Manager) pruneReferences(where string, names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := m.lines[name]; !ok {
			m.log.Warn("Boss bar referenced in configuration does not exist, ignoring.", "bar", name, "referencedIn", where)
			continue
		}
		out = append(out, name)
	}
	return out
}

// Bar returns a registered line by name.
func (m *Manager) Bar(name string) (*Line, bool) {
	m.linesMu.RLock()
	defer m.linesMu.RUnlock()
	l, ok := m.lines[name]
	return l, ok
}

// Bars returns all registered lines in name order.
func (m *Manager) Bars() []*Line {
	m.linesMu.RLock()
	defer m.linesMu.RUnlock()
	names := make([]string, 0, len(m.lines))
	for name := range m.lines {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Line, len(names))
	for i, name := range names {
		out[i] = m.lines[name]
	}
	return out
}

// CreateBar registers a line at runtime, replacing any line with the same
// name. The new line starts with no recipients; it becomes visible through
// announcements or an explicit AddPlayer.
func (m *Manager) CreateBar(name string, def BarDefinition) *Line {
	l := m.loadBar(name, def)
	m.linesMu.Lock()
	m.lines[name] = l
	m.linesMu.Unlock()
	return l
}

func (m *Manager) line(name string) *Line {
	m.linesMu.RLock()
	defer m.linesMu.RUnlock()
	return m.lines[name]
}

func (m *Manager) linesSnapshot() []*Line {
	m.linesMu.RLock()
	defer m.linesMu.RUnlock()
	out := make([]*Line, 0, len(m.lines))
	for _, l := range m.lines {
		out = append(out, l)
	}
	return out
}

// Load runs join processing for every player already online and starts the
// periodic re-validation sweep.
func (m *Manager) Load() {
	for _, p := range m.players.All() {
		m.OnJoin(p)
	}
	m.wg.Add(1)
	go m.sweepLoop()
}

// Unload stops the sweep, interrupts running announcements, waits for their
// cleanup and removes every line from every player unconditionally.
func (m *Manager) Unload() {
	m.cancel()
	m.wg.Wait()
	for _, l := range m.linesSnapshot() {
		for _, p := range l.Players() {
			l.RemovePlayer(p)
		}
	}
}

// OnJoin establishes the player's initial visibility. The gate opens unless
// the player previously toggled off or bars are hidden by default. Players
// joining into a disabled zone keep their gate state but receive nothing
// until they leave the zone. No confirmation message is sent on join.
func (m *Manager) OnJoin(p *player.Player) {
	if m.zoneListed(p.Zone()) {
		m.mu.Lock()
		m.disabled[p.UUID()] = struct{}{}
		m.mu.Unlock()
	}
	m.SetVisible(p, !m.store.Contains(p.UUID()) && !m.hiddenDefault, false)
}

// OnQuit drops all state held for the player and removes them from every
// line.
func (m *Manager) OnQuit(p *player.Player) {
	m.mu.Lock()
	delete(m.disabled, p.UUID())
	delete(m.visible, p.UUID())
	m.mu.Unlock()
	for _, l := range m.linesSnapshot() {
		l.RemovePlayer(p)
	}
}

// OnWorldChange recomputes the player's disabled-zone flag, clears every line
// assignment from the previous zone and resends the full applicable set for
// the new one.
func (m *Manager) OnWorldChange(p *player.Player, _, to string) {
	m.mu.Lock()
	if m.zoneListed(to) {
		m.disabled[p.UUID()] = struct{}{}
	} else {
		delete(m.disabled, p.UUID())
	}
	m.mu.Unlock()
	for _, l := range m.linesSnapshot() {
		l.RemovePlayer(p)
	}
	m.detectAndSend(p)
}

// OnCommand intercepts the toggle command and flips the player's visibility
// gate with a confirmation message. Any other command passes through.
func (m *Manager) OnCommand(p *player.Player, command string) bool {
	if !strings.EqualFold(strings.TrimSpace(command), m.toggleCommand) {
		return false
	}
	m.Toggle(p, true)
	return true
}

// Refresh re-renders the dynamic text of every line currently shown to the
// player.
func (m *Manager) Refresh(p *player.Player, _ bool) {
	for _, l := range m.linesSnapshot() {
		l.Refresh(p)
	}
}

// Visible reports whether the player's visibility gate is open.
func (m *Manager) Visible(p *player.Player) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.visible[p.UUID()]
	return ok
}

// Toggle flips the player's visibility gate.
func (m *Manager) Toggle(p *player.Player, confirm bool) {
	m.SetVisible(p, !m.Visible(p), confirm)
}

// SetVisible opens or closes the player's visibility gate. Opening triggers a
// full reconciliation of the player's lines; closing removes the player from
// every line. Setting the gate to its current state is a no-op: no packets,
// no messages, no persistence writes.
func (m *Manager) SetVisible(p *player.Player, visible, confirm bool) {
	m.mu.Lock()
	_, current := m.visible[p.UUID()]
	if current == visible {
		m.mu.Unlock()
		return
	}
	if visible {
		m.visible[p.UUID()] = struct{}{}
	} else {
		delete(m.visible, p.UUID())
	}
	m.mu.Unlock()

	if visible {
		m.detectAndSend(p)
		if confirm {
			p.SendMessage(m.toggleOn)
		}
		if m.rememberToggle {
			if err := m.store.Remove(p.UUID()); err != nil {
				m.log.Error("Save toggle choice.", "player", p.Name(), "error", err)
			}
		}
	} else {
		for _, l := range m.linesSnapshot() {
			l.RemovePlayer(p)
		}
		if confirm {
			p.SendMessage(m.toggleOff)
		}
		if m.rememberToggle {
			if err := m.store.Add(p.UUID()); err != nil {
				m.log.Error("Save toggle choice.", "player", p.Name(), "error", err)
			}
		}
	}
}

// Sweep re-validates the display conditions of every line currently shown to
// each eligible player and re-applies the default and per-zone lists. This is
// the pass that reacts to permission changes granted or revoked outside any
// world change.
func (m *Manager) Sweep() {
	for _, p := range m.players.All() {
		if !p.Loaded() || !m.Visible(p) || m.zoneDisabled(p) {
			continue
		}
		for _, l := range m.linesSnapshot() {
			if l.HasPlayer(p) && !l.ConditionMet(p) {
				l.RemovePlayer(p)
			}
		}
		m.showBars(p, m.defaultBars)
		m.showBars(p, m.zoneBars(p.Zone()))
	}
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			m.Sweep()
			m.cpu.Add(featureName, "sweep", time.Since(start))
		}
	}
}

// detectAndSend resends the full applicable line set to the player: default
// bars, currently announced bars and the bars of the player's zone group. It
// does nothing for players behind the disabled-zone or visibility gate.
func (m *Manager) detectAndSend(p *player.Player) {
	if m.zoneDisabled(p) || !m.Visible(p) {
		return
	}
	m.showBars(p, m.defaultBars)
	m.showBars(p, m.Announced())
	m.showBars(p, m.zoneBars(p.Zone()))
}

// showBars adds the player to every named line whose display condition they
// pass. Lines already shown are left untouched.
func (m *Manager) showBars(p *player.Player, names []string) {
	for _, name := range names {
		l := m.line(name)
		if l == nil {
			continue
		}
		if l.ConditionMet(p) && !l.HasPlayer(p) {
			l.AddPlayer(p)
		}
	}
}

func (m *Manager) zoneDisabled(p *player.Player) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.disabled[p.UUID()]
	return ok
}

// zoneListed reports whether the zone is in the configured disabled list.
// Entries ending in "*" match any zone with that prefix.
func (m *Manager) zoneListed(zone string) bool {
	for _, entry := range m.disabledZones {
		if prefix, ok := strings.CutSuffix(entry, "*"); ok {
			if strings.HasPrefix(zone, prefix) {
				return true
			}
		} else if entry == zone {
			return true
		}
	}
	return false
}

// zoneBars resolves the per-zone bar list for a zone. Group keys are
// "-"-separated unions of zone names; the first matching key in sorted order
// wins and an unmatched zone has no per-zone bars.
func (m *Manager) zoneBars(zone string) []string {
	for _, key := range m.perZoneKeys {
		for _, part := range strings.Split(key, "-") {
			if prefix, ok := strings.CutSuffix(part, "*"); ok {
				if strings.HasPrefix(zone, prefix) {
					return m.perZone[key]
				}
			} else if part == zone {
				return m.perZone[key]
			}
		}
	}
	return nil
}
