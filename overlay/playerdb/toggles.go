// Package playerdb persists per-player overlay preferences. The only data
// currently stored is the set of players that switched their boss bar off, so
// the choice survives reconnects.
package playerdb

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml"
)

// ErrTogglesUnavailable is returned when no toggle store is configured.
var ErrTogglesUnavailable = errors.New("toggle store is not configured")

// Toggles stores the identities of players that toggled their overlay off.
// Entries are persisted to a TOML file on every mutation.
type Toggles struct {
	mu       sync.RWMutex
	players  map[uuid.UUID]struct{}
	filePath string
}

type togglesFile struct {
	BossBarOff []string `toml:"bossbar-off"`
}

// LoadToggles loads the toggle store from the file at the provided path. If
// the file does not exist yet, it is created empty.
func LoadToggles(path string) (*Toggles, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("toggle store path must not be empty")
	}
	t := &Toggles{
		players:  make(map[uuid.UUID]struct{}),
		filePath: path,
	}
	if err := t.reloadFromDisk(); err != nil {
		return nil, err
	}
	return t, nil
}

// Contains reports whether the player identity is recorded as toggled off. A
// nil store contains nothing.
func (t *Toggles) Contains(id uuid.UUID) bool {
	if t == nil {
		return false
	}
	t.mu.RLock()
	_, ok := t.players[id]
	t.mu.RUnlock()
	return ok
}

// Add records a player identity as toggled off. Adding an identity that is
// already present writes nothing. A nil store discards the call.
func (t *Toggles) Add(id uuid.UUID) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.players[id]; exists {
		return nil
	}
	t.players[id] = struct{}{}
	if err := t.writeLocked(); err != nil {
		delete(t.players, id)
		return err
	}
	return nil
}

// Remove deletes a player identity from the store. Removing an absent
// identity writes nothing. A nil store discards the call.
func (t *Toggles) Remove(id uuid.UUID) error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.players[id]; !exists {
		return nil
	}
	delete(t.players, id)
	if err := t.writeLocked(); err != nil {
		t.players[id] = struct{}{}
		return err
	}
	return nil
}

// Players returns the stored identities in sorted order.
func (t *Toggles) Players() []uuid.UUID {
	if t == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(t.players))
	for id := range t.players {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return strings.Compare(a.String(), b.String())
	})
	return ids
}

func (t *Toggles) reloadFromDisk() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data := togglesFile{}
	contents, err := os.ReadFile(t.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			t.players = make(map[uuid.UUID]struct{})
			return t.writeLocked()
		}
		return fmt.Errorf("read toggle store: %w", err)
	}
	if len(contents) != 0 {
		if err := toml.Unmarshal(contents, &data); err != nil {
			return fmt.Errorf("decode toggle store: %w", err)
		}
	}
	t.players = make(map[uuid.UUID]struct{}, len(data.BossBarOff))
	for _, raw := range data.BossBarOff {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			// Malformed entries are skipped rather than failing the whole
			// store; one corrupt line must not reset every player's choice.
			continue
		}
		t.players[id] = struct{}{}
	}
	return nil
}

func (t *Toggles) writeLocked() error {
	dir := filepath.Dir(t.filePath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return fmt.Errorf("create toggle store directory: %w", err)
		}
	}
	ids := make([]string, 0, len(t.players))
	for id := range t.players {
		ids = append(ids, id.String())
	}
	slices.Sort(ids)
	encoded, err := toml.Marshal(togglesFile{BossBarOff: ids})
	if err != nil {
		return fmt.Errorf("encode toggle store: %w", err)
	}
	if err := os.WriteFile(t.filePath, encoded, 0644); err != nil {
		return fmt.Errorf("write toggle store: %w", err)
	}
	return nil
}
