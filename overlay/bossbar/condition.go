package bossbar

import (
	"fmt"
	"strings"

	"github.com/hud-mc/overlay/overlay/placeholder"
	"github.com/hud-mc/overlay/overlay/player"
)

// Condition is a display predicate evaluated against a player every time a
// line is considered for them.
type Condition interface {
	Met(p *player.Player) bool
}

// permissionCondition requires the player to hold a permission node.
type permissionCondition struct {
	node string
}

func (c permissionCondition) Met(p *player.Player) bool {
	return p != nil && p.HasPermission(c.node)
}

// equalsCondition compares two placeholder-resolved strings.
type equalsCondition struct {
	left, right  string
	placeholders *placeholder.Registry
}

func (c equalsCondition) Met(p *player.Player) bool {
	return c.placeholders.Resolve(p, c.left) == c.placeholders.Resolve(p, c.right)
}

// ParseCondition parses a display condition expression. Supported forms are
// "permission:<node>" and "<left>=<right>" where either side may contain
// placeholders. An empty expression yields a nil Condition, meaning the line
// is unconditional.
func ParseCondition(expr string, placeholders *placeholder.Registry) (Condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	if node, ok := strings.CutPrefix(expr, "permission:"); ok {
		node = strings.TrimSpace(node)
		if node == "" {
			return nil, fmt.Errorf("parse condition %q: empty permission node", expr)
		}
		return permissionCondition{node: node}, nil
	}
	if left, right, ok := strings.Cut(expr, "="); ok {
		return equalsCondition{
			left:         strings.TrimSpace(left),
			right:        strings.TrimSpace(right),
			placeholders: placeholders,
		}, nil
	}
	return nil, fmt.Errorf("parse condition %q: expected \"permission:<node>\" or \"<left>=<right>\"", expr)
}
