package bossbar

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hud-mc/overlay/overlay/placeholder"
	"github.com/hud-mc/overlay/overlay/player"
	"github.com/hud-mc/overlay/overlay/session"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
)

// recordingConn collects every packet written to it so tests can assert on
// the exact traffic a player received.
type recordingConn struct {
	mu      sync.Mutex
	packets []packet.Packet
}

func (c *recordingConn) WritePacket(pk packet.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packets = append(c.packets, pk)
	return nil
}

func (c *recordingConn) Flush() error { return nil }

func (c *recordingConn) all() []packet.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]packet.Packet(nil), c.packets...)
}

func (c *recordingConn) bossEvents() []*packet.BossEvent {
	var out []*packet.BossEvent
	for _, pk := range c.all() {
		if ev, ok := pk.(*packet.BossEvent); ok {
			out = append(out, ev)
		}
	}
	return out
}

func (c *recordingConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packets = nil
}

func newTestPlayer(name, zone string) (*player.Player, *recordingConn) {
	conn := &recordingConn{}
	p := player.New(uuid.New(), name, zone, conn)
	p.MarkLoaded()
	return p, conn
}

func TestLineAddRemoveIdempotent(t *testing.T) {
	reg := placeholder.NewRegistry()
	l := NewLine("test", nil, session.ColourRed, session.OverlayProgress, "100", "hello", reg)
	p, conn := newTestPlayer("Steve", "world")

	l.AddPlayer(p)
	l.AddPlayer(p)
	if got := len(conn.bossEvents()); got != 1 {
		t.Fatalf("expected 1 boss event after duplicate add, got %d", got)
	}
	ev := conn.bossEvents()[0]
	if ev.EventType != packet.BossEventShow {
		t.Fatalf("expected show event, got type %d", ev.EventType)
	}
	if ev.BossBarTitle != "hello" {
		t.Fatalf("expected title %q, got %q", "hello", ev.BossBarTitle)
	}
	if ev.Colour != session.ColourRed {
		t.Fatalf("expected colour %d, got %d", session.ColourRed, ev.Colour)
	}
	if !l.HasPlayer(p) {
		t.Fatalf("expected player to be a recipient after add")
	}

	conn.reset()
	l.RemovePlayer(p)
	l.RemovePlayer(p)
	events := conn.bossEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 boss event after duplicate remove, got %d", len(events))
	}
	if events[0].EventType != packet.BossEventHide {
		t.Fatalf("expected hide event, got type %d", events[0].EventType)
	}
	if l.HasPlayer(p) {
		t.Fatalf("expected player to no longer be a recipient")
	}
}

func TestLineProgressRendering(t *testing.T) {
	reg := placeholder.NewRegistry()
	reg.Register("health", 0, func() string { return "50" })

	l := NewLine("hp", nil, session.ColourGreen, session.OverlayProgress, "%health%", "hp bar", reg)
	p, conn := newTestPlayer("Steve", "world")
	l.AddPlayer(p)

	ev := conn.bossEvents()[0]
	if ev.HealthPercentage != 0.5 {
		t.Fatalf("expected health 0.5, got %v", ev.HealthPercentage)
	}
}

func TestLineProgressClampAndFallback(t *testing.T) {
	reg := placeholder.NewRegistry()
	for _, tc := range []struct {
		progress string
		want     float32
	}{
		{"250", 1},
		{"-10", 0},
		{"not a number", 1},
		{"25", 0.25},
	} {
		l := NewLine("clamp", nil, session.ColourWhite, session.OverlayProgress, tc.progress, "", reg)
		p, conn := newTestPlayer("Steve", "world")
		l.AddPlayer(p)
		if got := conn.bossEvents()[0].HealthPercentage; got != tc.want {
			t.Fatalf("progress %q: expected health %v, got %v", tc.progress, tc.want, got)
		}
	}
}

func TestLineSetTextPushesToRecipients(t *testing.T) {
	reg := placeholder.NewRegistry()
	l := NewLine("news", nil, session.ColourBlue, session.OverlayProgress, "100", "old", reg)
	member, memberConn := newTestPlayer("Steve", "world")
	_, outsiderConn := newTestPlayer("Alex", "world")
	l.AddPlayer(member)
	memberConn.reset()

	l.SetText("new")
	events := memberConn.bossEvents()
	if len(events) != 1 || events[0].EventType != packet.BossEventTitle {
		t.Fatalf("expected a single title update for the recipient, got %v", events)
	}
	if events[0].BossBarTitle != "new" {
		t.Fatalf("expected updated title %q, got %q", "new", events[0].BossBarTitle)
	}
	if len(outsiderConn.all()) != 0 {
		t.Fatalf("expected no packets for a player not shown the line, got %d", len(outsiderConn.all()))
	}
}

func TestLineRefreshOnlyForRecipients(t *testing.T) {
	reg := placeholder.NewRegistry()
	l := NewLine("refresh", nil, session.ColourWhite, session.OverlayProgress, "100", "%player%", reg)
	member, memberConn := newTestPlayer("Steve", "world")
	outsider, outsiderConn := newTestPlayer("Alex", "world")
	l.AddPlayer(member)

	title := memberConn.bossEvents()[0].BossBarTitle
	if title != "Steve" {
		t.Fatalf("expected player placeholder to resolve to Steve, got %q", title)
	}
	memberConn.reset()

	l.Refresh(member)
	l.Refresh(outsider)
	if got := len(memberConn.bossEvents()); got == 0 {
		t.Fatalf("expected refresh traffic for recipient")
	}
	if got := len(outsiderConn.all()); got != 0 {
		t.Fatalf("expected no refresh traffic for non-recipient, got %d packets", got)
	}
}

func TestLineSetColourResendsBar(t *testing.T) {
	reg := placeholder.NewRegistry()
	l := NewLine("paint", nil, session.ColourWhite, session.OverlayProgress, "100", "painted", reg)
	p, conn := newTestPlayer("Steve", "world")
	l.AddPlayer(p)
	conn.reset()

	l.SetColour(session.ColourRed)
	events := conn.bossEvents()
	if len(events) != 1 || events[0].EventType != packet.BossEventShow {
		t.Fatalf("expected a full re-send after colour change, got %v", events)
	}
	if events[0].Colour != session.ColourRed {
		t.Fatalf("expected colour red, got %d", events[0].Colour)
	}

	conn.reset()
	l.SetStyle(session.OverlayNotched10)
	events = conn.bossEvents()
	if len(events) != 1 || events[0].Overlay != session.OverlayNotched10 {
		t.Fatalf("expected re-send with new style, got %v", events)
	}
}

func TestLineStableIdentity(t *testing.T) {
	reg := placeholder.NewRegistry()
	a := NewLine("same", nil, session.ColourWhite, session.OverlayProgress, "100", "", reg)
	b := NewLine("same", nil, session.ColourWhite, session.OverlayProgress, "100", "", reg)
	c := NewLine("other", nil, session.ColourWhite, session.OverlayProgress, "100", "", reg)

	if a.UUID() != b.UUID() || a.EntityID() != b.EntityID() {
		t.Fatalf("expected identical identity for lines with the same name")
	}
	if a.UUID() == c.UUID() || a.EntityID() == c.EntityID() {
		t.Fatalf("expected distinct identity for lines with different names")
	}
}

func TestConditionParsing(t *testing.T) {
	reg := placeholder.NewRegistry()
	p, _ := newTestPlayer("Steve", "world")

	cond, err := ParseCondition("permission:overlay.vip", reg)
	if err != nil {
		t.Fatalf("parse permission condition: %v", err)
	}
	if cond.Met(p) {
		t.Fatalf("expected permission condition to fail without the node")
	}
	p.GrantPermission("overlay.vip")
	if !cond.Met(p) {
		t.Fatalf("expected permission condition to pass after grant")
	}

	cond, err = ParseCondition("%zone%=world", reg)
	if err != nil {
		t.Fatalf("parse equals condition: %v", err)
	}
	if !cond.Met(p) {
		t.Fatalf("expected equals condition to pass for matching zone")
	}
	p.SetZone("nether")
	if cond.Met(p) {
		t.Fatalf("expected equals condition to fail after zone change")
	}

	if cond, err := ParseCondition("", reg); err != nil || cond != nil {
		t.Fatalf("expected empty condition to parse to nil, got %v, %v", cond, err)
	}
	if _, err := ParseCondition("no delimiter here", reg); err == nil {
		t.Fatalf("expected error for unparsable condition")
	}
}
