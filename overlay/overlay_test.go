package overlay

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hud-mc/overlay/overlay/bossbar"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
)

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

func (c *recordingConn) bossEvents() []*packet.BossEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*packet.BossEvent
	for _, pk := range c.packets {
		if ev, ok := pk.(*packet.BossEvent); ok {
			out = append(out, ev)
		}
	}
	return out
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	conf := Config{
		Log: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})),
	}
	conf.BossBar.DefaultBars = []string{"default"}
	conf.BossBar.Bars = map[string]bossbar.BarDefinition{
		"default": {Style: "PROGRESS", Colour: "WHITE", Progress: "100", Text: "welcome %player%"},
	}
	e := conf.New()
	e.Start()
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngineSessionLifecycle(t *testing.T) {
	e := testEngine(t)
	conn := &recordingConn{}
	id := uuid.New()

	p := e.Accept(id, "Steve", "world", conn)
	if got, ok := e.Players().Player(id); !ok || got != p {
		t.Fatalf("expected accepted player in the registry")
	}
	events := conn.bossEvents()
	if len(events) != 1 || events[0].EventType != packet.BossEventShow {
		t.Fatalf("expected the default bar on accept, got %v", events)
	}
	if events[0].BossBarTitle != "welcome Steve" {
		t.Fatalf("expected rendered title, got %q", events[0].BossBarTitle)
	}

	e.Disconnect(id)
	if e.Players().Count() != 0 {
		t.Fatalf("expected registry emptied on disconnect")
	}
	// A second disconnect for the same player must be harmless.
	e.Disconnect(id)
}

func TestEngineToggleCommand(t *testing.T) {
	e := testEngine(t)
	conn := &recordingConn{}
	id := uuid.New()
	p := e.Accept(id, "Steve", "world", conn)

	if !e.Command(id, "/bossbar") {
		t.Fatalf("expected toggle command to be consumed")
	}
	if e.BossBars().Visible(p) {
		t.Fatalf("expected bars hidden after toggle")
	}
	if e.Command(uuid.New(), "/bossbar") {
		t.Fatalf("expected command of unknown player to pass through")
	}
}

func TestEngineZoneSwitch(t *testing.T) {
	e := testEngine(t)
	conn := &recordingConn{}
	id := uuid.New()
	p := e.Accept(id, "Steve", "world", conn)

	e.SwitchZone(id, "nether")
	if p.Zone() != "nether" {
		t.Fatalf("expected zone updated, got %q", p.Zone())
	}
	l, _ := e.BossBars().Bar("default")
	if !l.HasPlayer(p) {
		t.Fatalf("expected default bar re-applied after zone switch")
	}
}

func TestEnginePacketHooks(t *testing.T) {
	e := testEngine(t)
	conn := &recordingConn{}
	id := uuid.New()
	e.Accept(id, "Steve", "world", conn)

	pk := &packet.Text{Message: "hi"}
	if got := e.HandlePacketReceive(id, pk); got != pk {
		t.Fatalf("expected packet passed through unchanged")
	}
	if got := e.HandlePacketReceive(uuid.New(), pk); got != pk {
		t.Fatalf("expected packet of unknown player returned unchanged")
	}
	if e.HandleDisplayObjective(id, &packet.SetDisplayObjective{ObjectiveName: "obj"}) {
		t.Fatalf("expected display objective not to be cancelled by default")
	}
	e.HandlePacketSend(id, pk)
	e.HandleObjective(id, &packet.RemoveObjective{ObjectiveName: "obj"})
	e.Refresh(id, false)
}

func TestEngineCloseIdempotent(t *testing.T) {
	e := testEngine(t)
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
