package bossbar

import (
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/hud-mc/overlay/overlay/player"
)

// ErrUnknownBar is returned when an announcement names a bar that is not
// registered.
var ErrUnknownBar = errors.New("bossbar: unknown bar")

// atomicMillis stores a wall clock instant as Unix milliseconds.
type atomicMillis struct {
	v atomic.Int64
}

func (a *atomicMillis) Store(t time.Time) { a.v.Store(t.UnixMilli()) }

func (a *atomicMillis) Until(now time.Time) time.Duration {
	return time.UnixMilli(a.v.Load()).Sub(now)
}

// AnnounceToPlayer temporarily shows a registered bar to a single player for
// the duration d. Players with a closed visibility gate are skipped silently.
// The bar is removed when the duration elapses or the manager unloads,
// whichever comes first.
func (m *Manager) AnnounceToPlayer(name string, p *player.Player, d time.Duration) error {
	l := m.line(name)
	if l == nil {
		return ErrUnknownBar
	}
	if !m.Visible(p) || m.zoneDisabled(p) {
		return nil
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if l.ConditionMet(p) {
			l.AddPlayer(p)
		}
		m.sleep(d)
		l.RemovePlayer(p)
	}()
	return nil
}

// Announce temporarily shows a registered bar to every player whose
// visibility gate is open, for the duration d. While the announcement runs
// the bar is part of every detectAndSend pass, so players who join or toggle
// on mid-announcement receive it too. The countdown placeholder tracks the
// end of the most recently started announcement.
func (m *Manager) Announce(name string, d time.Duration) error {
	l := m.line(name)
	if l == nil {
		return ErrUnknownBar
	}
	m.announceMu.Lock()
	m.announcements[name] = l
	m.announceMu.Unlock()
	m.announceEnd.Store(time.Now().Add(d))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for _, p := range m.players.All() {
			if m.Visible(p) && !m.zoneDisabled(p) && l.ConditionMet(p) {
				l.AddPlayer(p)
			}
		}
		m.sleep(d)
		m.announceMu.Lock()
		delete(m.announcements, name)
		m.announceMu.Unlock()
		for _, p := range l.Players() {
			l.RemovePlayer(p)
		}
	}()
	return nil
}

// Announced returns the names of all currently running global announcements
// in sorted order.
func (m *Manager) Announced() []string {
	m.announceMu.Lock()
	defer m.announceMu.Unlock()
	names := make([]string, 0, len(m.announcements))
	for name := range m.announcements {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CountdownSeconds returns the whole seconds remaining until the most
// recently started global announcement ends, or 0 when none is running or
// the last one has expired.
func (m *Manager) CountdownSeconds() int64 {
	remaining := m.announceEnd.Until(time.Now())
	if remaining <= 0 {
		return 0
	}
	return int64(remaining / time.Second)
}

// sleep waits for d or until the manager unloads.
func (m *Manager) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-m.ctx.Done():
	}
}
