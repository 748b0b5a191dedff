package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/hud-mc/overlay/overlay"
	"github.com/pelletier/go-toml"
)

// barcheck loads an overlay configuration file and reports every problem the
// engine would warn about at startup: missing bar attributes, unknown colours
// and styles, invalid display conditions and dangling bar references.
func main() {
	path := flag.String("config", "config.toml", "path to the overlay configuration file")
	flag.Parse()

	data, err := os.ReadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read config: %v\n", err)
		os.Exit(1)
	}
	uc := overlay.DefaultConfig()
	if err := toml.Unmarshal(data, &uc); err != nil {
		fmt.Fprintf(os.Stderr, "decode config: %v\n", err)
		os.Exit(1)
	}
	// The toggle store is not needed to validate bar definitions.
	uc.BossBar.RememberToggleChoice = false

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	conf, err := uc.Config(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "convert config: %v\n", err)
		os.Exit(1)
	}
	e := conf.New()
	defer e.Close()

	bars := e.BossBars().Bars()
	fmt.Printf("%d bar(s) registered:\n", len(bars))
	for _, l := range bars {
		fmt.Printf("  %s (entity %d)\n", l.Name(), l.EntityID())
	}
}
