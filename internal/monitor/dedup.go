package monitor

import (
	"sync"
	"time"
)

const DefaultCooldown = 30 * time.Second

// Deduplicator suppresses alerts of a kind that fired less than cooldown ago.
type Deduplicator struct {
	mu        sync.Mutex
	cooldown  time.Duration
	lastFired map[ConditionKind]time.Time
	newID     func() string
}

func NewDeduplicator(cooldown time.Duration, newID func() string) *Deduplicator {
	return &Deduplicator{
		cooldown:  cooldown,
		lastFired: make(map[ConditionKind]time.Time),
		newID:     newID,
	}
}

// Consider returns one alert per condition whose cooldown has elapsed, in
// input order. Suppressed conditions leave the table untouched, so the
// window is measured from the last alert that actually fired.
func (d *Deduplicator) Consider(conds []Condition, now time.Time) []Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	var alerts []Alert
	for _, c := range conds {
		if last, ok := d.lastFired[c.Kind]; ok && now.Sub(last) < d.cooldown {
			continue
		}

		msg, severity := describe(c)
		alerts = append(alerts, Alert{
			ID:        d.newID(),
			Kind:      c.Kind,
			Message:   msg,
			Severity:  severity,
			Timestamp: now,
		})
		d.lastFired[c.Kind] = now
	}

	return alerts
}

// LastFired reports when kind last produced an alert.
func (d *Deduplicator) LastFired(kind ConditionKind) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.lastFired[kind]
	return t, ok
}

func (d *Deduplicator) Cooldown() time.Duration {
	return d.cooldown
}
