package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Observer is told about alert log changes after the engine lock is
// released. Implementations must not block; mirrors queue the work.
type Observer interface {
	AlertAppended(a Alert)
	AlertAcknowledged(a Alert)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Result describes what one reading did to the engine.
type Result struct {
	Reading    SensorReading
	Conditions []Condition
	Alerts     []Alert
}

// Suppressed lists the conditions that were held back by their cooldown.
func (r Result) Suppressed() []ConditionKind {
	fired := make(map[ConditionKind]bool, len(r.Alerts))
	for _, a := range r.Alerts {
		fired[a.Kind] = true
	}

	var out []ConditionKind
	for _, c := range r.Conditions {
		if !fired[c.Kind] {
			out = append(out, c.Kind)
		}
	}
	return out
}

// Engine owns the cooldown table and the alert log for one session.
type Engine struct {
	mu         sync.Mutex
	thresholds ThresholdConfig
	cooldown   time.Duration
	clock      Clock
	newID      func() string
	dedup      *Deduplicator
	log        *AlertLog
	observers  []Observer
}

// Option customizes the engine.
type Option func(*Engine)

// WithCooldown sets the minimum interval between alerts of the same kind.
func WithCooldown(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.cooldown = d
		}
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithIDGenerator replaces the uuid alert id generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

func NewEngine(thresholds ThresholdConfig, opts ...Option) (*Engine, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		thresholds: thresholds,
		cooldown:   DefaultCooldown,
		clock:      systemClock{},
		newID:      uuid.NewString,
		log:        NewAlertLog(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.dedup = NewDeduplicator(e.cooldown, e.newID)

	return e, nil
}

// Process runs evaluate, consider and append for one reading as a single
// critical section, so two readings can never both pass a stale cooldown check.
func (e *Engine) Process(r SensorReading) Result {
	e.mu.Lock()
	conds := Evaluate(r, e.thresholds)
	alerts := e.dedup.Consider(conds, e.clock.Now())
	for _, a := range alerts {
		e.log.Append(a)
	}
	e.mu.Unlock()

	for _, a := range alerts {
		for _, o := range e.observers {
			o.AlertAppended(a)
		}
	}

	return Result{Reading: r, Conditions: conds, Alerts: alerts}
}

// Notice appends a system message that bypasses the cooldown table.
func (e *Engine) Notice(severity Severity, message string) Alert {
	a := Alert{
		ID:        e.newID(),
		Kind:      KindNotice,
		Message:   message,
		Severity:  severity,
		Timestamp: e.clock.Now(),
	}

	e.mu.Lock()
	e.log.Append(a)
	e.mu.Unlock()

	for _, o := range e.observers {
		o.AlertAppended(a)
	}
	return a
}

// Acknowledge marks an alert as seen. Unknown ids return ErrAlertNotFound.
func (e *Engine) Acknowledge(id string) (Alert, error) {
	a, changed, err := e.log.Acknowledge(id)
	if err != nil {
		return Alert{}, err
	}

	if changed {
		for _, o := range e.observers {
			o.AlertAcknowledged(a)
		}
	}
	return a, nil
}

// Alerts returns at most limit alerts, newest first.
func (e *Engine) Alerts(limit int) []Alert {
	return e.log.List(limit)
}

// Len is the number of alerts in the log.
func (e *Engine) Len() int {
	return e.log.Len()
}

func (e *Engine) Unacknowledged() int {
	return e.log.Unacknowledged()
}

func (e *Engine) Thresholds() ThresholdConfig {
	return e.thresholds
}

func (e *Engine) Cooldown() time.Duration {
	return e.cooldown
}
