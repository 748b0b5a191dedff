// Package bossbar implements the boss bar overlay: named lines with display
// conditions and per-player recipient tracking, the visibility engine that
// reconciles which lines each player should see, and timed announcements.
package bossbar

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/hud-mc/overlay/overlay/placeholder"
	"github.com/hud-mc/overlay/overlay/player"
	"github.com/hud-mc/overlay/overlay/session"
)

// Line is a single boss bar overlay element. Its recipient set is the source
// of truth for which clients currently render the bar: a player is a member
// if and only if the bar was last sent to them without a removal in between.
//
// All methods are safe for concurrent use. Membership changes and their
// network writes are serialised per line, so two concurrent calls for the
// same player never duplicate a write.
type Line struct {
	name     string
	uid      uuid.UUID
	entityID int64

	condition Condition

	placeholders *placeholder.Registry

	mu       sync.Mutex
	colour   uint32
	overlay  uint32
	text     string
	progress string
	players  map[uuid.UUID]*player.Player
}

// NewLine creates a line with the display parameters passed. The bar's entity
// unique ID and UUID are derived from the name, so the same line name always
// addresses the same client-side element across restarts.
func NewLine(name string, condition Condition, colour, overlay uint32, progress, text string, placeholders *placeholder.Registry) *Line {
	if placeholders == nil {
		placeholders = placeholder.NewRegistry()
	}
	seed := "overlay:bossbar:" + name
	return &Line{
		name:         name,
		uid:          uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)),
		entityID:     int64(xxhash.Sum64String(seed)),
		condition:    condition,
		colour:       colour,
		overlay:      overlay,
		placeholders: placeholders,
		text:         text,
		progress:     progress,
		players:      make(map[uuid.UUID]*player.Player),
	}
}

// Name returns the unique name the line is registered under.
func (l *Line) Name() string { return l.name }

// UUID returns the stable identity of the line.
func (l *Line) UUID() uuid.UUID { return l.uid }

// EntityID returns the boss entity unique ID used on the wire.
func (l *Line) EntityID() int64 { return l.entityID }

// ConditionMet evaluates the line's display condition for the player. A line
// without a condition is shown unconditionally.
func (l *Line) ConditionMet(p *player.Player) bool {
	if l.condition == nil {
		return true
	}
	return l.condition.Met(p)
}

// AddPlayer starts displaying the line to p. Adding a player that already
// receives the line is a no-op and writes nothing.
func (l *Line) AddPlayer(p *player.Player) {
	if p == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.players[p.UUID()]; ok {
		return
	}
	l.players[p.UUID()] = p
	_ = session.ShowBossBar(p.Conn(), l.entityID, l.renderText(p), l.renderProgress(p), l.colour, l.overlay)
}

// RemovePlayer stops displaying the line to p. Removing a player that does
// not receive the line is a no-op and writes nothing.
func (l *Line) RemovePlayer(p *player.Player) {
	if p == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.players[p.UUID()]; !ok {
		return
	}
	delete(l.players, p.UUID())
	_ = session.HideBossBar(p.Conn(), l.entityID)
}

// HasPlayer reports whether the line is currently displayed to p.
func (l *Line) HasPlayer(p *player.Player) bool {
	if p == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.players[p.UUID()]
	return ok
}

// Players returns a snapshot of all players currently receiving the line.
func (l *Line) Players() []*player.Player {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*player.Player, 0, len(l.players))
	for _, p := range l.players {
		out = append(out, p)
	}
	return out
}

// SetText replaces the line's text template and pushes the re-rendered title
// to every current recipient.
func (l *Line) SetText(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.text = text
	for _, p := range l.players {
		_ = session.UpdateBossBarTitle(p.Conn(), l.entityID, l.renderText(p))
	}
}

// SetProgress replaces the line's progress expression and pushes the
// re-rendered fill fraction to every current recipient.
func (l *Line) SetProgress(progress string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress = progress
	for _, p := range l.players {
		_ = session.UpdateBossBarHealth(p.Conn(), l.entityID, l.renderProgress(p))
	}
}

// SetColour changes the line's colour. The client has no partial update for
// bar appearance, so the bar is re-sent in full to every current recipient.
func (l *Line) SetColour(colour uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.colour = colour
	l.resendLocked()
}

// SetStyle changes the line's overlay texture and re-sends the bar in full to
// every current recipient.
func (l *Line) SetStyle(overlay uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overlay = overlay
	l.resendLocked()
}

func (l *Line) resendLocked() {
	for _, p := range l.players {
		_ = session.ShowBossBar(p.Conn(), l.entityID, l.renderText(p), l.renderProgress(p), l.colour, l.overlay)
	}
}

// Refresh re-renders the line's dynamic text and progress for one recipient
// and pushes the result. It writes nothing for players not receiving the
// line.
func (l *Line) Refresh(p *player.Player) {
	if p == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.players[p.UUID()]; !ok {
		return
	}
	_ = session.UpdateBossBarTitle(p.Conn(), l.entityID, l.renderText(p))
	_ = session.UpdateBossBarHealth(p.Conn(), l.entityID, l.renderProgress(p))
}

// renderText resolves the text template for a player. Callers hold l.mu.
func (l *Line) renderText(p *player.Player) string {
	return l.placeholders.Resolve(p, l.text)
}

// renderProgress resolves the progress expression for a player and converts
// it from the configured 0-100 scale to the 0-1 wire scale. Unparsable
// expressions render as a full bar. Callers hold l.mu.
func (l *Line) renderProgress(p *player.Player) float32 {
	resolved := l.placeholders.Resolve(p, l.progress)
	v, err := strconv.ParseFloat(resolved, 64)
	if err != nil {
		return 1
	}
	if v < 0 {
		v = 0
	} else if v > 100 {
		v = 100
	}
	return float32(v / 100)
}
