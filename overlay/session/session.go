// Package session exposes the small slice of a player's network connection
// that the overlay engine writes to. The engine never reads packets itself; it
// is handed inbound and outbound packets by the hosting server and only ever
// writes boss bar and chat packets of its own.
package session

import (
	"strings"

	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
)

// Conn is a connection to a player that overlay elements may be written to.
// Implementations are expected to be safe for concurrent use: line membership
// changes for different players may write from several goroutines at once.
type Conn interface {
	// WritePacket writes a packet to the connection. The packet may be
	// buffered until the next Flush.
	WritePacket(pk packet.Packet) error
	// Flush flushes any packets currently buffered.
	Flush() error
}

// Boss bar colours as understood by the Bedrock client.
const (
	ColourGrey uint32 = iota
	ColourBlue
	ColourRed
	ColourGreen
	ColourYellow
	ColourPurple
	ColourWhite
)

// Boss bar overlay textures: a smooth progress bar or a bar notched into
// segments.
const (
	OverlayProgress uint32 = iota
	OverlayNotched6
	OverlayNotched10
	OverlayNotched12
	OverlayNotched20
)

// ParseColour maps a configured colour name such as "RED" to its wire value.
// The second return value is false if the name is not a known colour.
func ParseColour(name string) (uint32, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "GREY", "GRAY":
		return ColourGrey, true
	case "BLUE":
		return ColourBlue, true
	case "RED":
		return ColourRed, true
	case "GREEN":
		return ColourGreen, true
	case "YELLOW":
		return ColourYellow, true
	case "PURPLE", "PINK":
		return ColourPurple, true
	case "WHITE":
		return ColourWhite, true
	}
	return ColourWhite, false
}

// ParseStyle maps a configured style name such as "PROGRESS" or "NOTCHED_10"
// to its wire value. The second return value is false if the name is unknown.
func ParseStyle(name string) (uint32, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "PROGRESS", "SOLID":
		return OverlayProgress, true
	case "NOTCHED_6", "SEGMENTED_6":
		return OverlayNotched6, true
	case "NOTCHED_10", "SEGMENTED_10":
		return OverlayNotched10, true
	case "NOTCHED_12", "SEGMENTED_12":
		return OverlayNotched12, true
	case "NOTCHED_20", "SEGMENTED_20":
		return OverlayNotched20, true
	}
	return OverlayProgress, false
}

// ShowBossBar writes the packet that creates, or fully replaces, a boss bar on
// the client. health is the filled fraction of the bar in the range [0, 1].
func ShowBossBar(c Conn, barID int64, title string, health float32, colour, overlay uint32) error {
	if c == nil {
		return nil
	}
	return c.WritePacket(&packet.BossEvent{
		BossEntityUniqueID: barID,
		EventType:          packet.BossEventShow,
		BossBarTitle:       title,
		HealthPercentage:   health,
		Colour:             colour,
		Overlay:            overlay,
	})
}

// HideBossBar writes the packet that removes a boss bar from the client.
func HideBossBar(c Conn, barID int64) error {
	if c == nil {
		return nil
	}
	return c.WritePacket(&packet.BossEvent{
		BossEntityUniqueID: barID,
		EventType:          packet.BossEventHide,
	})
}

// UpdateBossBarTitle rewrites the title of a boss bar already shown on the
// client.
func UpdateBossBarTitle(c Conn, barID int64, title string) error {
	if c == nil {
		return nil
	}
	return c.WritePacket(&packet.BossEvent{
		BossEntityUniqueID: barID,
		EventType:          packet.BossEventTitle,
		BossBarTitle:       title,
	})
}

// UpdateBossBarHealth rewrites the filled fraction of a boss bar already shown
// on the client.
func UpdateBossBarHealth(c Conn, barID int64, health float32) error {
	if c == nil {
		return nil
	}
	return c.WritePacket(&packet.BossEvent{
		BossEntityUniqueID: barID,
		EventType:          packet.BossEventHealthPercentage,
		HealthPercentage:   health,
	})
}

// SendMessage writes a raw chat message to the connection.
func SendMessage(c Conn, message string) error {
	if c == nil {
		return nil
	}
	return c.WritePacket(&packet.Text{
		TextType: packet.TextTypeRaw,
		Message:  message,
	})
}
