package bossbar

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hud-mc/overlay/overlay/player"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
)

func testManager(t *testing.T, mutate func(*Config)) *Manager {
	t.Helper()
	cfg := Config{
		Log:     slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})),
		Players: player.NewRegistry(),
		// Long enough that tests drive Sweep explicitly.
		SweepInterval: time.Hour,
		DefaultBars:   []string{"default"},
		Bars: map[string]BarDefinition{
			"default": {Style: "PROGRESS", Colour: "WHITE", Progress: "100", Text: "welcome"},
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m := NewManager(cfg)
	t.Cleanup(m.Unload)
	return m
}

func join(m *Manager, p *player.Player) {
	m.players.Add(p)
	m.OnJoin(p)
}

func TestManagerJoinShowsDefaultBars(t *testing.T) {
	m := testManager(t, nil)
	p, conn := newTestPlayer("Steve", "world")
	join(m, p)

	if !m.Visible(p) {
		t.Fatalf("expected visibility gate open after join")
	}
	events := conn.bossEvents()
	if len(events) != 1 || events[0].EventType != packet.BossEventShow {
		t.Fatalf("expected a single show event after join, got %v", events)
	}
	l, _ := m.Bar("default")
	if !l.HasPlayer(p) {
		t.Fatalf("expected player to receive the default bar")
	}
}

func TestManagerHiddenByDefault(t *testing.T) {
	m := testManager(t, func(cfg *Config) { cfg.HiddenByDefault = true })
	p, conn := newTestPlayer("Steve", "world")
	join(m, p)

	if m.Visible(p) {
		t.Fatalf("expected visibility gate closed when hidden by default")
	}
	if len(conn.all()) != 0 {
		t.Fatalf("expected no traffic for hidden-by-default join, got %d packets", len(conn.all()))
	}
}

func TestManagerDisabledZoneJoin(t *testing.T) {
	m := testManager(t, func(cfg *Config) { cfg.DisabledZones = []string{"lobby*"} })
	p, conn := newTestPlayer("Steve", "lobby-1")
	join(m, p)

	if len(conn.all()) != 0 {
		t.Fatalf("expected no traffic joining into a disabled zone, got %d packets", len(conn.all()))
	}

	// Leaving the disabled zone brings the bars in.
	p.SetZone("world")
	m.OnWorldChange(p, "lobby-1", "world")
	if len(conn.bossEvents()) == 0 {
		t.Fatalf("expected bars after leaving the disabled zone")
	}
}

func TestManagerSetVisibleNoOpOnEqualState(t *testing.T) {
	m := testManager(t, nil)
	p, conn := newTestPlayer("Steve", "world")
	join(m, p)
	conn.reset()

	m.SetVisible(p, true, true)
	if len(conn.all()) != 0 {
		t.Fatalf("expected no traffic for redundant SetVisible, got %d packets", len(conn.all()))
	}

	m.SetVisible(p, false, false)
	conn.reset()
	m.SetVisible(p, false, true)
	if len(conn.all()) != 0 {
		t.Fatalf("expected no traffic for redundant hide, got %d packets", len(conn.all()))
	}
}

func TestManagerToggleCommand(t *testing.T) {
	m := testManager(t, nil)
	p, conn := newTestPlayer("Steve", "world")
	join(m, p)
	conn.reset()

	if !m.OnCommand(p, "/BossBar") {
		t.Fatalf("expected toggle command to be consumed case-insensitively")
	}
	if m.Visible(p) {
		t.Fatalf("expected gate closed after toggle off")
	}
	events := conn.bossEvents()
	if len(events) != 1 || events[0].EventType != packet.BossEventHide {
		t.Fatalf("expected a hide event after toggle off, got %v", events)
	}
	var texts int
	for _, pk := range conn.all() {
		if _, ok := pk.(*packet.Text); ok {
			texts++
		}
	}
	if texts != 1 {
		t.Fatalf("expected 1 confirmation message, got %d", texts)
	}

	if m.OnCommand(p, "/somethingelse") {
		t.Fatalf("expected unrelated command to pass through")
	}
}

func TestManagerWorldChangeReappliesBars(t *testing.T) {
	m := testManager(t, func(cfg *Config) {
		cfg.Bars["nether"] = BarDefinition{Style: "NOTCHED_10", Colour: "RED", Progress: "100", Text: "nether"}
		cfg.PerZone = map[string][]string{"nether*": {"nether"}}
	})
	steve, steveConn := newTestPlayer("Steve", "world")
	alex, _ := newTestPlayer("Alex", "world")
	join(m, steve)
	join(m, alex)
	steveConn.reset()

	steve.SetZone("nether-1")
	m.OnWorldChange(steve, "world", "nether-1")

	defaultBar, _ := m.Bar("default")
	netherBar, _ := m.Bar("nether")
	if !defaultBar.HasPlayer(steve) || !netherBar.HasPlayer(steve) {
		t.Fatalf("expected Steve to see default and nether bars after world change")
	}
	if netherBar.HasPlayer(alex) {
		t.Fatalf("expected Alex to be unaffected by Steve's world change")
	}
	if !defaultBar.HasPlayer(alex) {
		t.Fatalf("expected Alex to keep the default bar")
	}
}

func TestManagerQuitClearsState(t *testing.T) {
	m := testManager(t, nil)
	p, _ := newTestPlayer("Steve", "world")
	join(m, p)

	m.OnQuit(p)
	m.players.Remove(p.UUID())
	if m.Visible(p) {
		t.Fatalf("expected gate closed after quit")
	}
	l, _ := m.Bar("default")
	if l.HasPlayer(p) {
		t.Fatalf("expected player removed from lines after quit")
	}
}

func TestManagerSweepPicksUpPermissionChange(t *testing.T) {
	m := testManager(t, func(cfg *Config) {
		cfg.Bars["vip"] = BarDefinition{Condition: "permission:overlay.vip", Style: "PROGRESS", Colour: "PURPLE", Progress: "100", Text: "vip"}
		cfg.DefaultBars = []string{"default", "vip"}
	})
	p, _ := newTestPlayer("Steve", "world")
	join(m, p)

	vip, _ := m.Bar("vip")
	if vip.HasPlayer(p) {
		t.Fatalf("expected vip bar withheld without the permission")
	}

	p.GrantPermission("overlay.vip")
	m.Sweep()
	if !vip.HasPlayer(p) {
		t.Fatalf("expected sweep to add the vip bar after grant")
	}

	p.RevokePermission("overlay.vip")
	m.Sweep()
	if vip.HasPlayer(p) {
		t.Fatalf("expected sweep to remove the vip bar after revoke")
	}
}

func TestManagerUnloadClearsAllLines(t *testing.T) {
	m := testManager(t, nil)
	p, conn := newTestPlayer("Steve", "world")
	join(m, p)
	conn.reset()

	m.Unload()
	events := conn.bossEvents()
	if len(events) != 1 || events[0].EventType != packet.BossEventHide {
		t.Fatalf("expected a hide event on unload, got %v", events)
	}
}

func TestManagerDanglingReferencesPruned(t *testing.T) {
	m := testManager(t, func(cfg *Config) {
		cfg.DefaultBars = []string{"default", "ghost"}
		cfg.PerZone = map[string][]string{"world": {"ghost"}}
	})
	p, conn := newTestPlayer("Steve", "world")
	join(m, p)

	if got := len(conn.bossEvents()); got != 1 {
		t.Fatalf("expected only the existing bar to be sent, got %d events", got)
	}
}

func TestManagerCreateBarAtRuntime(t *testing.T) {
	m := testManager(t, nil)
	p, _ := newTestPlayer("Steve", "world")
	join(m, p)

	l := m.CreateBar("event", BarDefinition{Style: "NOTCHED_20", Colour: "YELLOW", Progress: "100", Text: "event"})
	if got, ok := m.Bar("event"); !ok || got != l {
		t.Fatalf("expected runtime bar to be registered")
	}
	if l.HasPlayer(p) {
		t.Fatalf("expected runtime bar to start without recipients")
	}
}
