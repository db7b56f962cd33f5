package monitor

import (
	"sort"
	"sync"

	"github.com/nithinbasa/SmartGrid/internal/errors"
)

// AlertLog keeps every alert in append order. Nothing is ever removed;
// callers bound what they read with List.
type AlertLog struct {
	mu     sync.RWMutex
	alerts []Alert
	index  map[string]int
}

func NewAlertLog() *AlertLog {
	return &AlertLog{index: make(map[string]int)}
}

func (l *AlertLog) Append(a Alert) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.index[a.ID] = len(l.alerts)
	l.alerts = append(l.alerts, a)
}

// Acknowledge marks the alert as acknowledged. It returns the updated
// alert and whether this call changed it; acknowledging twice is not an error.
func (l *AlertLog) Acknowledge(id string) (Alert, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.index[id]
	if !ok {
		return Alert{}, false, errors.New().WithData(errors.ErrAlertNotFound, id)
	}

	changed := !l.alerts[i].Acknowledged
	l.alerts[i].Acknowledged = true
	return l.alerts[i], changed, nil
}

// List returns at most limit alerts, newest first. Equal timestamps are
// ordered by insertion, later first. limit <= 0 returns everything.
func (l *AlertLog) List(limit int) []Alert {
	l.mu.RLock()
	out := make([]Alert, len(l.alerts))
	for i, a := range l.alerts {
		out[len(l.alerts)-1-i] = a
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (l *AlertLog) Get(id string) (Alert, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i, ok := l.index[id]
	if !ok {
		return Alert{}, false
	}
	return l.alerts[i], true
}

func (l *AlertLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.alerts)
}

// Unacknowledged counts alerts still waiting for an operator.
func (l *AlertLog) Unacknowledged() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, a := range l.alerts {
		if !a.Acknowledged {
			n++
		}
	}
	return n
}
