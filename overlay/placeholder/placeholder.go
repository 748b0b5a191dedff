// Package placeholder resolves %identifier% tokens in overlay text against a
// registry of server-wide value providers.
package placeholder

import (
	"strings"
	"sync"
	"time"

	"github.com/hud-mc/overlay/overlay/player"
)

// Provider supplies the current value of a single server-wide placeholder.
type Provider func() string

type entry struct {
	refresh time.Duration
	fn      Provider

	mu      sync.Mutex
	value   string
	updated time.Time
}

// value returns the cached value, refreshing it when it has gone stale. A
// non-positive refresh interval disables caching entirely.
func (e *entry) valueNow(now time.Time) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refresh <= 0 || e.updated.IsZero() || now.Sub(e.updated) >= e.refresh {
		e.value = e.fn()
		e.updated = now
	}
	return e.value
}

// Registry holds registered placeholder providers. Provider values are cached
// and refreshed lazily at each provider's interval, so a provider is never
// invoked more than once per interval no matter how many lines reference it.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty placeholder registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register installs a provider for %identifier%. The identifier is given
// without the surrounding percent signs. Registering an identifier twice
// replaces the previous provider.
func (r *Registry) Register(identifier string, refresh time.Duration, fn Provider) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.entries[identifier] = &entry{refresh: refresh, fn: fn}
	r.mu.Unlock()
}

// Unregister removes the provider for %identifier%, if any.
func (r *Registry) Unregister(identifier string) {
	r.mu.Lock()
	delete(r.entries, identifier)
	r.mu.Unlock()
}

// Resolve replaces every %identifier% token in text. The built-in %player%
// and %zone% tokens resolve from the player passed; all other tokens resolve
// through registered providers. Unknown tokens are left untouched so broken
// configuration stays visible instead of silently disappearing.
func (r *Registry) Resolve(p *player.Player, text string) string {
	if !strings.Contains(text, "%") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for {
		i := strings.IndexByte(text, '%')
		if i < 0 {
			b.WriteString(text)
			break
		}
		j := strings.IndexByte(text[i+1:], '%')
		if j < 0 {
			b.WriteString(text)
			break
		}
		b.WriteString(text[:i])
		b.WriteString(r.resolveToken(p, text[i+1:i+1+j]))
		text = text[i+j+2:]
	}
	return b.String()
}

func (r *Registry) resolveToken(p *player.Player, identifier string) string {
	switch identifier {
	case "player":
		if p != nil {
			return p.Name()
		}
	case "zone":
		if p != nil {
			return p.Zone()
		}
	}
	r.mu.RLock()
	e, ok := r.entries[identifier]
	r.mu.RUnlock()
	if !ok {
		return "%" + identifier + "%"
	}
	return e.valueNow(time.Now())
}
