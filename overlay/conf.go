package overlay

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hud-mc/overlay/overlay/bossbar"
	"github.com/hud-mc/overlay/overlay/cpu"
	"github.com/hud-mc/overlay/overlay/feature"
	"github.com/hud-mc/overlay/overlay/placeholder"
	"github.com/hud-mc/overlay/overlay/player"
	"github.com/hud-mc/overlay/overlay/playerdb"
)

// Config contains options for starting an overlay Engine.
type Config struct {
	// Log is the Logger to use for logging information. If nil, Log is set to
	// slog.Default().
	Log *slog.Logger
	// Placeholders resolves dynamic text in boss bar titles and progress
	// expressions. If nil, a fresh registry with only the built-in
	// placeholders is used.
	Placeholders *placeholder.Registry
	// CPU receives per-feature processing time. If nil, a fresh tracker is
	// used.
	CPU *cpu.Tracker
	// Store persists boss bar toggle choices across reconnects. May be nil.
	Store *playerdb.Toggles
	// WorldChangeRetryDelay is how long a world change for a player whose
	// join has not completed is deferred before being retried. Defaults to
	// 100 milliseconds.
	WorldChangeRetryDelay time.Duration
	// BossBar configures the boss bar feature. The Players, Placeholders,
	// CPU and Store fields of it are overwritten with the Engine's own.
	BossBar bossbar.Config
}

// New creates an Engine using fields of conf. Features only begin receiving
// events after Engine.Start() is called.
func (conf Config) New() *Engine {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Placeholders == nil {
		conf.Placeholders = placeholder.NewRegistry()
	}
	if conf.CPU == nil {
		conf.CPU = cpu.NewTracker()
	}
	players := player.NewRegistry()

	conf.BossBar.Log = conf.Log
	conf.BossBar.Players = players
	conf.BossBar.Placeholders = conf.Placeholders
	conf.BossBar.CPU = conf.CPU
	conf.BossBar.Store = conf.Store

	e := &Engine{
		conf:    conf,
		players: players,
		bars:    bossbar.NewManager(conf.BossBar),
	}
	e.dispatcher = feature.NewDispatcher(feature.Config{
		Log:                   conf.Log,
		CPU:                   conf.CPU,
		Players:               players,
		WorldChangeRetryDelay: conf.WorldChangeRetryDelay,
	})
	e.dispatcher.Register("bossbar", e.bars)
	return e
}

// UserConfig is the user configuration for an overlay Engine. It holds
// settings that affect the dispatcher and the boss bar feature. UserConfig
// may be serialised and can be converted to a Config by calling
// UserConfig.Config().
type UserConfig struct {
	Engine struct {
		// SweepIntervalSeconds is the period, in seconds, of the pass that
		// re-validates boss bar display conditions for online players.
		SweepIntervalSeconds int
		// WorldChangeRetryDelayMillis is how long, in milliseconds, a world
		// change arriving before a player finished joining is deferred.
		WorldChangeRetryDelayMillis int
	}
	BossBar struct {
		// ToggleCommand is the chat command players use to show or hide
		// their boss bars.
		ToggleCommand string
		// ToggleOnMessage and ToggleOffMessage are the confirmations sent
		// when a player toggles their boss bars.
		ToggleOnMessage  string
		ToggleOffMessage string
		// HiddenByDefault hides all bars from joining players until they run
		// the toggle command.
		HiddenByDefault bool
		// RememberToggleChoice persists toggle choices to TogglesFile so
		// they survive reconnects.
		RememberToggleChoice bool
		// TogglesFile is the path to the TOML file toggle choices are stored
		// in when RememberToggleChoice is enabled.
		TogglesFile string
		// DisabledZones lists zones in which the boss bar feature is
		// disabled entirely. A trailing "*" matches zones by prefix.
		DisabledZones []string
		// DefaultBars names the bars shown to every eligible player.
		DefaultBars []string
		// PerZone maps zone group keys to the bars shown in those zones.
		PerZone map[string][]string
		// Bars holds all bar definitions by name.
		Bars map[string]BarConfig
	}
}

// BarConfig is the serialisable definition of a single boss bar.
type BarConfig struct {
	// Condition is an optional display condition, either
	// "permission:<node>" or "<left>=<right>".
	Condition string
	// Style is the bar texture, one of PROGRESS, NOTCHED_6, NOTCHED_10,
	// NOTCHED_12 and NOTCHED_20.
	Style string
	// Colour is the bar colour, one of GREY, BLUE, RED, GREEN, YELLOW,
	// PURPLE and WHITE.
	Colour string
	// Progress is the fill of the bar on a 0-100 scale. It may contain
	// placeholders.
	Progress string
	// Text is the title of the bar. It may contain placeholders.
	Text string
}

// Config converts a UserConfig to a Config, so that it may be used for
// creating an Engine. An error is returned if the toggle store could not be
// opened.
func (uc UserConfig) Config(log *slog.Logger) (Config, error) {
	conf := Config{
		Log:                   log,
		WorldChangeRetryDelay: time.Duration(uc.Engine.WorldChangeRetryDelayMillis) * time.Millisecond,
	}
	conf.BossBar.SweepInterval = time.Duration(uc.Engine.SweepIntervalSeconds) * time.Second
	conf.BossBar.ToggleCommand = uc.BossBar.ToggleCommand
	conf.BossBar.ToggleOnMessage = uc.BossBar.ToggleOnMessage
	conf.BossBar.ToggleOffMessage = uc.BossBar.ToggleOffMessage
	conf.BossBar.HiddenByDefault = uc.BossBar.HiddenByDefault
	conf.BossBar.RememberToggleChoice = uc.BossBar.RememberToggleChoice
	conf.BossBar.DisabledZones = uc.BossBar.DisabledZones
	conf.BossBar.DefaultBars = uc.BossBar.DefaultBars
	conf.BossBar.PerZone = uc.BossBar.PerZone
	conf.BossBar.Bars = make(map[string]bossbar.BarDefinition, len(uc.BossBar.Bars))
	for name, bc := range uc.BossBar.Bars {
		conf.BossBar.Bars[name] = bossbar.BarDefinition{
			Condition: bc.Condition,
			Style:     bc.Style,
			Colour:    bc.Colour,
			Progress:  bc.Progress,
			Text:      bc.Text,
		}
	}
	if uc.BossBar.RememberToggleChoice {
		file := strings.TrimSpace(uc.BossBar.TogglesFile)
		if file == "" {
			file = "bossbar_toggles.toml"
		}
		store, err := playerdb.LoadToggles(file)
		if err != nil {
			return conf, fmt.Errorf("load toggle store: %w", err)
		}
		conf.Store = store
	}
	return conf, nil
}

// DefaultConfig returns a configuration with the default values filled out.
func DefaultConfig() UserConfig {
	c := UserConfig{}
	c.Engine.SweepIntervalSeconds = 1
	c.Engine.WorldChangeRetryDelayMillis = 100
	c.BossBar.ToggleCommand = "/bossbar"
	c.BossBar.ToggleOnMessage = "Boss bar is now visible."
	c.BossBar.ToggleOffMessage = "Boss bar is now hidden."
	c.BossBar.HiddenByDefault = false
	c.BossBar.RememberToggleChoice = true
	c.BossBar.TogglesFile = "bossbar_toggles.toml"
	c.BossBar.DefaultBars = []string{"default"}
	c.BossBar.Bars = map[string]BarConfig{
		"default": {
			Style:    "PROGRESS",
			Colour:   "WHITE",
			Progress: "100",
			Text:     "Welcome, %player%!",
		},
	}
	return c
}
