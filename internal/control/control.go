package control

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nithinbasa/SmartGrid/internal/errors"
)

// LoadState is the switch position of the controllable loads.
type LoadState struct {
	Load1    bool `json:"load1"`
	Load2    bool `json:"load2"`
	AutoMode bool `json:"autoMode"`
}

func DefaultLoadState() LoadState {
	return LoadState{Load1: true, Load2: false, AutoMode: true}
}

// StateLoader reads a previously stored switch state.
type StateLoader interface {
	LoadState(ctx context.Context) (LoadState, bool, error)
}

// Restore returns the stored state, or the default when nothing is stored
// or the store cannot be read.
func Restore(ctx context.Context, loader StateLoader) (LoadState, error) {
	state, ok, err := loader.LoadState(ctx)
	if err != nil {
		return DefaultLoadState(), err
	}
	if !ok {
		return DefaultLoadState(), nil
	}
	return state, nil
}

// LoadUpdate is a partial update; nil fields keep their value.
type LoadUpdate struct {
	Load1    *bool `json:"load1,omitempty"`
	Load2    *bool `json:"load2,omitempty"`
	AutoMode *bool `json:"autoMode,omitempty"`
}

func (u LoadUpdate) IsEmpty() bool {
	return u.Load1 == nil && u.Load2 == nil && u.AutoMode == nil
}

func (u LoadUpdate) apply(s LoadState) LoadState {
	if u.Load1 != nil {
		s.Load1 = *u.Load1
	}
	if u.Load2 != nil {
		s.Load2 = *u.Load2
	}
	if u.AutoMode != nil {
		s.AutoMode = *u.AutoMode
	}
	return s
}

// Change is emitted after every accepted update.
type Change struct {
	State     LoadState `json:"state"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

type Observer interface {
	LoadsChanged(c Change)
}

type Controller struct {
	mu        sync.Mutex
	state     LoadState
	observers []Observer
	now       func() time.Time
}

type Option func(*Controller)

func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

func WithInitialState(s LoadState) Option {
	return func(c *Controller) {
		c.state = s
	}
}

func WithNow(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func NewController(opts ...Option) *Controller {
	c := &Controller{
		state: DefaultLoadState(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) State() LoadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Update merges u into the current state and notifies observers.
func (c *Controller) Update(u LoadUpdate) (Change, error) {
	errFactory := errors.New()

	if u.IsEmpty() {
		return Change{}, errFactory.WithMessage(errors.ErrInvalidArgument, "load update has no fields")
	}

	action, err := json.Marshal(u)
	if err != nil {
		return Change{}, errFactory.Wrap(errors.ErrInvalidArgument, err)
	}

	c.mu.Lock()
	c.state = u.apply(c.state)
	change := Change{
		State:     c.state,
		Action:    "Load control updated: " + string(action),
		Timestamp: c.now(),
	}
	c.mu.Unlock()

	for _, o := range c.observers {
		o.LoadsChanged(change)
	}
	return change, nil
}
